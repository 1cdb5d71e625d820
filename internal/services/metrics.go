package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports scheduler and dispatcher counters. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	ticks        *prometheus.CounterVec
	tickDuration prometheus.Histogram
	transitions  *prometheus.CounterVec
	dispatches   *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg (the default registerer when nil).
// Collectors that already exist are reused so tests and restarts can share a registry.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "followup"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Due-check ticks by outcome.",
		}, []string{"result"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of a due-check tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "reminders_total",
			Help:      "Per-reminder outcomes of due-check ticks.",
		}, []string{"outcome"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "notifications_total",
			Help:      "Dispatched notifications by platform delivery result.",
		}, []string{"platform"}),
	}

	var err error
	if m.ticks, err = register(reg, m.ticks); err != nil {
		return nil, err
	}
	if m.tickDuration, err = register(reg, m.tickDuration); err != nil {
		return nil, err
	}
	if m.transitions, err = register(reg, m.transitions); err != nil {
		return nil, err
	}
	if m.dispatches, err = register(reg, m.dispatches); err != nil {
		return nil, err
	}
	return m, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metrics collector: %w", err)
	}
	return c, nil
}

func (m *Metrics) observeTick(result string, started time.Time, res TickResult) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(result).Inc()
	m.tickDuration.Observe(time.Since(started).Seconds())
	m.transitions.WithLabelValues("triggered").Add(float64(res.Triggered))
	m.transitions.WithLabelValues("skipped").Add(float64(res.Skipped))
	m.transitions.WithLabelValues("stale").Add(float64(res.Stale))
	m.transitions.WithLabelValues("failed").Add(float64(res.Failed))
}

func (m *Metrics) observeDispatch(platform string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(platform).Inc()
}
