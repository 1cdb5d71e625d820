package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Check pings one backend. A nil error means the backend is reachable.
type Check func(ctx context.Context) error

type namedCheck struct {
	name  string
	check Check
}

// Monitor periodically pings the configured backends. The scheduler consults
// IsOnline before each tick and the health endpoint reports GetStatus.
type Monitor struct {
	checks []namedCheck

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// Add registers a backend check. Call before Start.
func (m *Monitor) Add(name string, check Check) {
	if check == nil {
		return
	}
	m.checks = append(m.checks, namedCheck{name: name, check: check})
}

// Start runs a first check synchronously, then keeps checking in the background.
func (m *Monitor) Start() {
	m.Refresh(context.Background())
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether every backend answered the last check.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Online
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	components := make(map[string]ComponentStatus, len(m.status.Components))
	for name, c := range m.status.Components {
		components[name] = c
	}
	status := m.status
	status.Components = components
	return status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh checks every backend once and logs online/offline flips.
func (m *Monitor) Refresh(ctx context.Context) Status {
	status := Status{
		Online:     true,
		Components: make(map[string]ComponentStatus, len(m.checks)),
		LastCheck:  time.Now(),
	}
	for _, c := range m.checks {
		component := ComponentStatus{Online: true}
		if err := c.check(ctx); err != nil {
			component = ComponentStatus{Online: false, Error: err.Error()}
			status.Online = false
		}
		status.Components[c.name] = component
	}

	m.mu.Lock()
	previous := m.status
	m.status = status
	m.mu.Unlock()

	if previous.LastCheck.IsZero() || previous.Online != status.Online {
		if status.Online {
			m.logger.Info("backends online")
		} else {
			m.logger.Warn("backends offline", zap.Any("components", status.Components))
		}
	}
	return status
}
