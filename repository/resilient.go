package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/fastygo/followup/domain"
)

// RetryPolicy bounds the backoff applied to retryable store calls.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	MaxRetries      uint64
}

func (p RetryPolicy) options() []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	maxElapsed := p.MaxElapsedTime
	if maxElapsed <= 0 {
		maxElapsed = 5 * time.Second
	}
	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(maxElapsed),
	}
	if p.MaxRetries > 0 {
		opts = append(opts, backoff.WithMaxTries(uint(p.MaxRetries)+1))
	}
	return opts
}

// ResilientRepository classifies backend failures as store errors and retries
// reads and deletes. Create and Update are attempted once: a create is not
// idempotent and an update carries its own expectation.
type ResilientRepository struct {
	delegate ReminderRepository
	policy   RetryPolicy
	logger   *zap.Logger
}

// NewResilientRepository wraps delegate with the given retry policy.
func NewResilientRepository(delegate ReminderRepository, policy RetryPolicy, logger *zap.Logger) *ResilientRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResilientRepository{
		delegate: delegate,
		policy:   policy,
		logger:   logger,
	}
}

func (r *ResilientRepository) Create(ctx context.Context, reminder *domain.Reminder) (*domain.Reminder, error) {
	created, err := r.delegate.Create(ctx, reminder)
	return created, classify("create", err)
}

func (r *ResilientRepository) GetByID(ctx context.Context, id string) (*domain.Reminder, error) {
	var out *domain.Reminder
	err := r.retry(ctx, "get", func() error {
		var err error
		out, err = r.delegate.GetByID(ctx, id)
		return err
	})
	return out, err
}

func (r *ResilientRepository) GetPending(ctx context.Context) ([]domain.Reminder, error) {
	var out []domain.Reminder
	err := r.retry(ctx, "get pending", func() error {
		var err error
		out, err = r.delegate.GetPending(ctx)
		return err
	})
	return out, err
}

func (r *ResilientRepository) List(ctx context.Context, filter ReminderFilter) ([]domain.Reminder, error) {
	var out []domain.Reminder
	err := r.retry(ctx, "list", func() error {
		var err error
		out, err = r.delegate.List(ctx, filter)
		return err
	})
	return out, err
}

func (r *ResilientRepository) Update(ctx context.Context, id string, patch ReminderPatch, expect Expectation) (*domain.Reminder, error) {
	updated, err := r.delegate.Update(ctx, id, patch, expect)
	return updated, classify("update", err)
}

func (r *ResilientRepository) Delete(ctx context.Context, id string) error {
	return r.retry(ctx, "delete", func() error {
		err := r.delegate.Delete(ctx, id)
		if errors.Is(err, domain.ErrReminderNotFound) {
			return nil
		}
		return err
	})
}

func (r *ResilientRepository) retry(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("reminder store call failed, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := fn()
		if err == nil {
			return struct{}{}, nil
		}
		if _, ok := asDomain(err); ok || ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, append(r.policy.options(), backoff.WithNotify(notify))...)
	return classify(op, err)
}

// classify leaves domain errors untouched and marks everything else transient.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := asDomain(err); ok {
		return err
	}
	return domain.StoreError(op, err)
}

func asDomain(err error) (*domain.Error, bool) {
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		return dErr, true
	}
	return nil, false
}

var _ ReminderRepository = (*ResilientRepository)(nil)
