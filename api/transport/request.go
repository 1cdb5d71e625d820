package transport

import (
	"math"
	"time"

	"github.com/fastygo/followup/domain"
)

type ReminderRequest struct {
	Title           string `json:"title"`
	Note            string `json:"note"`
	ContactRef      string `json:"contact_ref"`
	ContactName     string `json:"contact_name"`
	InteractionType string `json:"interaction_type"`
	DueAt           string `json:"due_at"`
}

// SnoozeRequest accepts either whole minutes (the mobile screens offer 15,
// 60 and 1440) or a Go duration string such as "90m".
type SnoozeRequest struct {
	Minutes  int    `json:"minutes"`
	Duration string `json:"duration"`
}

// Extension resolves the requested snooze length.
func (r SnoozeRequest) Extension() (time.Duration, error) {
	if r.Duration != "" {
		d, err := time.ParseDuration(r.Duration)
		if err != nil {
			return 0, domain.ValidationError("invalid duration %q", r.Duration)
		}
		return d, nil
	}
	if int64(r.Minutes) > math.MaxInt64/int64(time.Minute) {
		return 0, domain.ValidationError("minutes out of range: %d", r.Minutes)
	}
	return time.Duration(r.Minutes) * time.Minute, nil
}
