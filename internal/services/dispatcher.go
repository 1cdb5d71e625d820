package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/followup/domain"
)

const (
	defaultTitle = "Reminder"
	defaultBody  = "Time to follow up"
)

// Notifier is the platform notification capability.
type Notifier interface {
	RequestPermission(ctx context.Context) (bool, error)
	Show(ctx context.Context, title, body string, data map[string]string) (string, error)
}

// EventQueue holds notification events until the UI layer drains them.
type EventQueue interface {
	Push(ctx context.Context, event domain.NotificationEvent) error
	Drain(ctx context.Context, max int) ([]domain.NotificationEvent, error)
	Len(ctx context.Context) (int, error)
}

// Dispatcher turns a just-triggered reminder into a NotificationEvent, queues
// it for the UI and asks the platform to show it. Platform failures never fail
// a dispatch.
type Dispatcher struct {
	notifier Notifier
	queue    EventQueue
	metrics  *Metrics
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	permitted bool
	asked     bool
}

func NewDispatcher(notifier Notifier, queue EventQueue, metrics *Metrics, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		notifier: notifier,
		queue:    queue,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Dispatch always returns the event; the queue entry is produced even when the
// platform denies permission or fails to show.
func (d *Dispatcher) Dispatch(ctx context.Context, reminder domain.Reminder) domain.NotificationEvent {
	event := domain.NotificationEvent{
		ReminderID:      reminder.ID,
		Title:           notificationTitle(reminder),
		Body:            notificationBody(reminder),
		ContactRef:      reminder.ContactRef,
		InteractionType: reminder.InteractionType,
		EmittedAt:       d.now(),
	}

	platform := "skipped"
	if d.permission(ctx) {
		id, err := d.notifier.Show(ctx, event.Title, event.Body, map[string]string{
			"reminder_id": reminder.ID,
			"contact_ref": reminder.ContactRef,
		})
		if err != nil {
			platform = "failed"
			d.logger.Warn("platform notification failed",
				zap.String("reminder_id", reminder.ID),
				zap.Error(err))
		} else {
			platform = "shown"
			event.NotificationID = id
		}
	}
	d.metrics.observeDispatch(platform)

	if d.queue != nil {
		if err := d.queue.Push(ctx, event); err != nil {
			d.logger.Error("failed to enqueue notification event",
				zap.String("reminder_id", reminder.ID),
				zap.Error(err))
		}
	}

	d.logger.Info("reminder dispatched",
		zap.String("reminder_id", reminder.ID),
		zap.String("platform", platform))
	return event
}

// Drain hands queued events to the UI layer.
func (d *Dispatcher) Drain(ctx context.Context, max int) ([]domain.NotificationEvent, error) {
	if d.queue == nil {
		return nil, nil
	}
	return d.queue.Drain(ctx, max)
}

// permission asks the platform once and caches a definite answer.
func (d *Dispatcher) permission(ctx context.Context) bool {
	if d.notifier == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.asked {
		return d.permitted
	}
	granted, err := d.notifier.RequestPermission(ctx)
	if err != nil {
		d.logger.Warn("notification permission request failed", zap.Error(err))
		return false
	}
	d.asked = true
	d.permitted = granted
	if !granted {
		d.logger.Info("notification permission denied, showing in-app only")
	}
	return granted
}

func notificationTitle(r domain.Reminder) string {
	if title := strings.TrimSpace(r.Title); title != "" {
		return title
	}
	contact := r.ContactName
	if contact == "" {
		contact = r.ContactRef
	}
	if contact != "" {
		return "Reminder for " + contact
	}
	return defaultTitle
}

func notificationBody(r domain.Reminder) string {
	if note := strings.TrimSpace(r.Note); note != "" {
		return note
	}
	switch r.InteractionType {
	case domain.InteractionEmail:
		return defaultBody + " by email"
	case domain.InteractionMessage:
		return defaultBody + " with a message"
	}
	return defaultBody
}
