package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/followup/domain"
	"github.com/fastygo/followup/repository"
)

const defaultMaxAttempts = 5

// CreateInput carries the user-supplied fields of a new reminder.
type CreateInput struct {
	Title           string
	Note            string
	ContactRef      string
	ContactName     string
	InteractionType string
	DueAt           time.Time
}

// Option customizes a UseCase.
type Option func(*UseCase)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		if now != nil {
			uc.now = now
		}
	}
}

// WithMaxAttempts bounds how often a transition is retried after losing a race.
func WithMaxAttempts(n int) Option {
	return func(uc *UseCase) {
		if n > 0 {
			uc.maxAttempts = n
		}
	}
}

// UseCase is the command surface for user-initiated reminder transitions.
// Errors are returned to the caller as-is; nothing is retried in the background.
type UseCase struct {
	reminders   repository.ReminderRepository
	logger      *zap.Logger
	now         func() time.Time
	maxAttempts int
}

func New(reminders repository.ReminderRepository, logger *zap.Logger, opts ...Option) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	uc := &UseCase{
		reminders:   reminders,
		logger:      logger,
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Create validates and stores a new pending reminder. A due time in the past
// is accepted and will fire on the next tick if it is inside the lookback window.
func (uc *UseCase) Create(ctx context.Context, in CreateInput) (*domain.Reminder, error) {
	interaction, ok := domain.ParseInteractionType(in.InteractionType)
	if !ok {
		return nil, domain.ValidationError("unknown interaction type %q", in.InteractionType)
	}

	reminder := &domain.Reminder{
		Title:           strings.TrimSpace(in.Title),
		Note:            strings.TrimSpace(in.Note),
		ContactRef:      strings.TrimSpace(in.ContactRef),
		ContactName:     strings.TrimSpace(in.ContactName),
		InteractionType: interaction,
		DueAt:           in.DueAt,
	}
	if err := reminder.Validate(); err != nil {
		return nil, err
	}

	created, err := uc.reminders.Create(ctx, reminder)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("reminder created",
		zap.String("reminder_id", created.ID),
		zap.Time("due_at", created.DueAt))
	return created, nil
}

func (uc *UseCase) Get(ctx context.Context, id string) (*domain.Reminder, error) {
	return uc.reminders.GetByID(ctx, id)
}

func (uc *UseCase) List(ctx context.Context, filter repository.ReminderFilter) ([]domain.Reminder, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, domain.ValidationError("unknown status %q", filter.Status)
	}
	return uc.reminders.List(ctx, filter)
}

// Snooze re-arms a pending or triggered reminder at now+extension. Repeated
// calls are anchored to the latest call, not added together.
func (uc *UseCase) Snooze(ctx context.Context, id string, extension time.Duration) (*domain.Reminder, error) {
	if extension <= 0 {
		return nil, domain.ValidationError("snooze extension must be positive")
	}
	return uc.transition(ctx, id, domain.OpSnooze, func(now time.Time) repository.ReminderPatch {
		status := domain.StatusPending
		due := now.Add(extension)
		return repository.ReminderPatch{Status: &status, DueAt: &due, ClearTriggeredAt: true}
	})
}

// Complete finishes a pending or triggered reminder. It overrides a trigger
// that races with it.
func (uc *UseCase) Complete(ctx context.Context, id string) (*domain.Reminder, error) {
	return uc.transition(ctx, id, domain.OpComplete, func(now time.Time) repository.ReminderPatch {
		status := domain.StatusCompleted
		return repository.ReminderPatch{Status: &status, CompletedAt: &now}
	})
}

// Cancel marks a pending or triggered reminder cancelled; the record is kept.
func (uc *UseCase) Cancel(ctx context.Context, id string) (*domain.Reminder, error) {
	return uc.transition(ctx, id, domain.OpCancel, func(now time.Time) repository.ReminderPatch {
		status := domain.StatusCancelled
		return repository.ReminderPatch{Status: &status, CancelledAt: &now}
	})
}

// Delete removes the reminder permanently. Deleting an unknown id succeeds.
func (uc *UseCase) Delete(ctx context.Context, id string) error {
	if err := uc.reminders.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrReminderNotFound) {
		return err
	}
	uc.logger.Info("reminder deleted", zap.String("reminder_id", id))
	return nil
}

// transition performs a compare-and-set on status and version. When another
// writer gets there first it re-reads and re-validates, so a transition that
// became illegal surfaces as an invalid-state error.
func (uc *UseCase) transition(ctx context.Context, id string, op domain.Operation, build func(now time.Time) repository.ReminderPatch) (*domain.Reminder, error) {
	for attempt := 1; attempt <= uc.maxAttempts; attempt++ {
		current, err := uc.reminders.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !current.CanTransition(op) {
			return nil, domain.InvalidStateError(op, current.Status)
		}

		updated, err := uc.reminders.Update(ctx, id, build(uc.now()), repository.Expectation{
			Status:  current.Status,
			Version: current.Version,
		})
		if err == nil {
			uc.logger.Info("reminder transitioned",
				zap.String("reminder_id", id),
				zap.String("operation", string(op)),
				zap.String("from", string(current.Status)),
				zap.String("to", string(updated.Status)))
			return updated, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		uc.logger.Debug("reminder transition lost a race, retrying",
			zap.String("reminder_id", id),
			zap.String("operation", string(op)),
			zap.Int("attempt", attempt))
	}
	return nil, domain.WrapError(domain.ErrCodeConflict,
		fmt.Sprintf("could not %s reminder after %d attempts", op, uc.maxAttempts), domain.ErrConflict)
}
