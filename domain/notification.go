package domain

import "time"

// NotificationEvent is produced when a reminder fires and is consumed by the UI layer.
// It lives only in process memory or the notification queue.
type NotificationEvent struct {
	ReminderID      string          `json:"reminder_id"`
	Title           string          `json:"title"`
	Body            string          `json:"body"`
	ContactRef      string          `json:"contact_ref,omitempty"`
	InteractionType InteractionType `json:"interaction_type,omitempty"`
	NotificationID  string          `json:"notification_id,omitempty"`
	EmittedAt       time.Time       `json:"emitted_at"`
}

// Summary buckets open reminders by due date for report screens.
type Summary struct {
	Overdue   int       `json:"overdue"`
	DueToday  int       `json:"due_today"`
	DueWeek   int       `json:"due_this_week"`
	Later     int       `json:"later"`
	Triggered int       `json:"triggered"`
	Completed int       `json:"completed"`
	Cancelled int       `json:"cancelled"`
	Total     int       `json:"total"`
	AsOf      time.Time `json:"as_of"`
}
