package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/followup/domain"
	"github.com/fastygo/followup/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ReminderDispatcher receives reminders the scheduler has just triggered.
type ReminderDispatcher interface {
	Dispatch(ctx context.Context, reminder domain.Reminder) domain.NotificationEvent
}

// SchedulerConfig controls how often and how far back the due-check looks.
type SchedulerConfig struct {
	Interval    time.Duration
	Lookback    time.Duration
	Concurrency int
	TickTimeout time.Duration
}

// TickResult summarizes one due-check pass.
type TickResult struct {
	Fetched   int
	Due       int
	Triggered int
	Skipped   int
	Stale     int
	Failed    int
}

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// Scheduler periodically moves due pending reminders to triggered and hands
// them to the dispatcher. Exactly-once delivery across processes rests on the
// repository's conditional update: only the writer whose expectation still
// holds may trigger and dispatch.
type Scheduler struct {
	repo       repository.ReminderRepository
	dispatcher ReminderDispatcher
	health     ConnectionHealth
	metrics    *Metrics
	logger     *zap.Logger
	cfg        SchedulerConfig
	now        func() time.Time

	cron      *cron.Cron
	baseCtx   context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewScheduler(
	repo repository.ReminderRepository,
	dispatcher ReminderDispatcher,
	health ConnectionHealth,
	metrics *Metrics,
	logger *zap.Logger,
	cfg SchedulerConfig,
	opts ...SchedulerOption,
) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 5 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = cfg.Interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cronLog := cronLogger{logger.Sugar()}
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		repo:       repo,
		dispatcher: dispatcher,
		health:     health,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
		cron:       cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
		baseCtx:    baseCtx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the interval timer. Calling it twice has no effect.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.cron.Schedule(cron.Every(s.cfg.Interval), cron.FuncJob(s.runScheduled))
		s.cron.Start()
		s.logger.Info("reminder scheduler started",
			zap.Duration("interval", s.cfg.Interval),
			zap.Duration("lookback", s.cfg.Lookback))
	})
}

// Stop cancels the timer and waits for an in-flight tick. If ctx expires first
// the tick's context is cancelled so store calls return promptly.
func (s *Scheduler) Stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		stopCtx := s.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
			s.logger.Warn("scheduler stop deadline reached, cancelling in-flight tick")
			s.cancel()
			<-stopCtx.Done()
		}
		s.cancel()
		s.logger.Info("reminder scheduler stopped")
	})
}

func (s *Scheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.cfg.TickTimeout)
	defer cancel()
	if _, err := s.Tick(ctx); err != nil {
		s.logger.Error("due-check tick failed", zap.Error(err))
	}
}

// Tick runs one due-check pass. Only a failure to fetch pending reminders is
// returned; per-reminder failures are logged, counted and retried next tick.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	started := time.Now()
	var res TickResult

	if s.health != nil && !s.health.IsOnline() {
		s.logger.Debug("skipping due-check tick (store offline)")
		s.metrics.observeTick("offline", started, res)
		return res, nil
	}

	pending, err := s.repo.GetPending(ctx)
	if err != nil {
		s.metrics.observeTick("error", started, res)
		return res, fmt.Errorf("fetch pending reminders: %w", err)
	}

	now := s.now()
	res.Fetched = len(pending)
	due := make([]domain.Reminder, 0, len(pending))
	for i := range pending {
		switch {
		case pending[i].IsDue(now, s.cfg.Lookback):
			due = append(due, pending[i])
		case pending[i].IsStale(now, s.cfg.Lookback):
			res.Stale++
		}
	}
	res.Due = len(due)

	var triggered, skipped, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, reminder := range due {
		g.Go(func() error {
			switch s.trigger(ctx, reminder, now) {
			case outcomeTriggered:
				triggered.Add(1)
			case outcomeSkipped:
				skipped.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Triggered = int(triggered.Load())
	res.Skipped = int(skipped.Load())
	res.Failed = int(failed.Load())

	s.metrics.observeTick("ok", started, res)
	if res.Due > 0 || res.Failed > 0 {
		s.logger.Info("due-check tick finished",
			zap.Int("fetched", res.Fetched),
			zap.Int("due", res.Due),
			zap.Int("triggered", res.Triggered),
			zap.Int("skipped", res.Skipped),
			zap.Int("stale", res.Stale),
			zap.Int("failed", res.Failed),
			zap.Duration("took", time.Since(started)))
	}
	return res, nil
}

type outcome int

const (
	outcomeTriggered outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (s *Scheduler) trigger(ctx context.Context, reminder domain.Reminder, now time.Time) outcome {
	status := domain.StatusTriggered
	at := now
	updated, err := s.repo.Update(ctx, reminder.ID,
		repository.ReminderPatch{Status: &status, TriggeredAt: &at},
		repository.Expectation{Status: domain.StatusPending, Version: reminder.Version},
	)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrReminderNotFound):
		s.logger.Debug("reminder handled elsewhere, skipping", zap.String("reminder_id", reminder.ID))
		return outcomeSkipped
	default:
		s.logger.Error("failed to trigger reminder",
			zap.String("reminder_id", reminder.ID),
			zap.Error(err))
		return outcomeFailed
	}

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, *updated)
	}
	return outcomeTriggered
}

// cronLogger bridges robfig/cron logging to zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
