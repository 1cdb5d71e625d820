package domain

import (
	"strings"
	"time"
)

// ReminderStatus is the lifecycle state of a reminder.
type ReminderStatus string

const (
	StatusPending   ReminderStatus = "pending"
	StatusTriggered ReminderStatus = "triggered"
	StatusCompleted ReminderStatus = "completed"
	StatusCancelled ReminderStatus = "cancelled"
)

// IsValid reports whether s is a known status.
func (s ReminderStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusTriggered, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is permitted.
func (s ReminderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// InteractionType describes how the user intends to follow up.
type InteractionType string

const (
	InteractionEmail   InteractionType = "email"
	InteractionMessage InteractionType = "message"
	InteractionOther   InteractionType = "other"
)

// ParseInteractionType accepts the labels used by the mobile screens ("Email", "Message", "Other").
// An empty value maps to InteractionOther.
func ParseInteractionType(raw string) (InteractionType, bool) {
	switch InteractionType(strings.ToLower(strings.TrimSpace(raw))) {
	case InteractionEmail:
		return InteractionEmail, true
	case InteractionMessage:
		return InteractionMessage, true
	case InteractionOther, "":
		return InteractionOther, true
	}
	return "", false
}

// Operation names a state transition.
type Operation string

const (
	OpTrigger  Operation = "trigger"
	OpSnooze   Operation = "snooze"
	OpComplete Operation = "complete"
	OpCancel   Operation = "cancel"
)

// transitions maps each operation to the statuses it may start from.
var transitions = map[Operation][]ReminderStatus{
	OpTrigger:  {StatusPending},
	OpSnooze:   {StatusPending, StatusTriggered},
	OpComplete: {StatusPending, StatusTriggered},
	OpCancel:   {StatusPending, StatusTriggered},
}

// Reminder represents a single scheduled follow-up.
type Reminder struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Note            string          `json:"note,omitempty"`
	ContactRef      string          `json:"contact_ref,omitempty"`
	ContactName     string          `json:"contact_name,omitempty"`
	InteractionType InteractionType `json:"interaction_type"`
	DueAt           time.Time       `json:"due_at"`
	Status          ReminderStatus  `json:"status"`
	TriggeredAt     *time.Time      `json:"triggered_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	Version         int             `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CanTransition reports whether op is legal from the reminder's current status.
func (r *Reminder) CanTransition(op Operation) bool {
	if r == nil {
		return false
	}
	for _, from := range transitions[op] {
		if r.Status == from {
			return true
		}
	}
	return false
}

// IsDue reports whether a pending reminder should fire at now, honoring the lookback window.
// A non-positive lookback disables the lower bound.
func (r *Reminder) IsDue(now time.Time, lookback time.Duration) bool {
	if r == nil || r.Status != StatusPending || r.DueAt.After(now) {
		return false
	}
	if lookback <= 0 {
		return true
	}
	return !r.DueAt.Before(now.Add(-lookback))
}

// IsStale reports whether a pending reminder fell out of the lookback window.
func (r *Reminder) IsStale(now time.Time, lookback time.Duration) bool {
	if r == nil || r.Status != StatusPending || lookback <= 0 {
		return false
	}
	return r.DueAt.Before(now.Add(-lookback))
}

// Validate checks the fields required on creation.
func (r *Reminder) Validate() error {
	if r == nil {
		return ErrInvalidPayload
	}
	if strings.TrimSpace(r.Title) == "" {
		return ValidationError("title is required")
	}
	if r.DueAt.IsZero() {
		return ValidationError("due_at must be a valid instant")
	}
	if _, ok := ParseInteractionType(string(r.InteractionType)); !ok {
		return ValidationError("unknown interaction type %q", r.InteractionType)
	}
	return nil
}

// CheckInvariants verifies the status/timestamp relationship of a stored record.
func (r *Reminder) CheckInvariants() error {
	switch r.Status {
	case StatusPending:
		if r.TriggeredAt != nil || r.CompletedAt != nil {
			return ValidationError("pending reminder %s carries trigger or completion time", r.ID)
		}
	case StatusTriggered:
		if r.TriggeredAt == nil || r.DueAt.After(*r.TriggeredAt) {
			return ValidationError("triggered reminder %s has no valid trigger time", r.ID)
		}
	case StatusCompleted:
		if r.CompletedAt == nil {
			return ValidationError("completed reminder %s has no completion time", r.ID)
		}
	case StatusCancelled:
	default:
		return ValidationError("unknown status %q", r.Status)
	}
	return nil
}
