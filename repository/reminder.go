package repository

import (
	"context"
	"time"

	"github.com/fastygo/followup/domain"
)

type ReminderFilter struct {
	Status     domain.ReminderStatus
	ContactRef string
	Limit      int
	Offset     int
}

// ReminderPatch is a partial update. Nil fields are left untouched; the Clear
// flags null out optional timestamps.
type ReminderPatch struct {
	Title            *string
	Note             *string
	Status           *domain.ReminderStatus
	DueAt            *time.Time
	TriggeredAt      *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
	ClearTriggeredAt bool
	ClearCompletedAt bool
}

// Apply mutates r in place, bumping its version and update time.
func (p ReminderPatch) Apply(r *domain.Reminder, now time.Time) {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Note != nil {
		r.Note = *p.Note
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.DueAt != nil {
		r.DueAt = *p.DueAt
	}
	if p.ClearTriggeredAt {
		r.TriggeredAt = nil
	}
	if p.TriggeredAt != nil {
		t := *p.TriggeredAt
		r.TriggeredAt = &t
	}
	if p.ClearCompletedAt {
		r.CompletedAt = nil
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		r.CompletedAt = &t
	}
	if p.CancelledAt != nil {
		t := *p.CancelledAt
		r.CancelledAt = &t
	}
	r.Version++
	r.UpdatedAt = now
}

// Expectation guards a conditional update. Zero fields are not checked.
type Expectation struct {
	Status  domain.ReminderStatus
	Version int
}

// Check returns domain.ErrConflict when the stored record does not match.
func (e Expectation) Check(current *domain.Reminder) error {
	if e.Status != "" && current.Status != e.Status {
		return domain.ErrConflict
	}
	if e.Version != 0 && current.Version != e.Version {
		return domain.ErrConflict
	}
	return nil
}

// ReminderRepository is the typed document store for reminders.
// Update must be atomic with respect to the expectation check.
type ReminderRepository interface {
	Create(ctx context.Context, reminder *domain.Reminder) (*domain.Reminder, error)
	GetByID(ctx context.Context, id string) (*domain.Reminder, error)
	GetPending(ctx context.Context) ([]domain.Reminder, error)
	List(ctx context.Context, filter ReminderFilter) ([]domain.Reminder, error)
	Update(ctx context.Context, id string, patch ReminderPatch, expect Expectation) (*domain.Reminder, error)
	Delete(ctx context.Context, id string) error
}

// PrepareNew fills the store-assigned fields of a reminder about to be created.
func PrepareNew(r *domain.Reminder, id string, now time.Time) {
	r.ID = id
	r.Status = domain.StatusPending
	r.TriggeredAt = nil
	r.CompletedAt = nil
	r.CancelledAt = nil
	r.Version = 1
	if r.InteractionType == "" {
		r.InteractionType = domain.InteractionOther
	}
	r.CreatedAt = now
	r.UpdatedAt = now
}

// Matches reports whether r passes the filter. Backends without query pushdown use it.
func (f ReminderFilter) Matches(r *domain.Reminder) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.ContactRef != "" && r.ContactRef != f.ContactRef {
		return false
	}
	return true
}

// ClampLimit bounds list page sizes.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
