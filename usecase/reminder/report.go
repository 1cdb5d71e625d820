package reminder

import (
	"context"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/fastygo/followup/domain"
	"github.com/fastygo/followup/repository"
)

const (
	pageSize      = 100
	eventDuration = 15 * time.Minute
	productID     = "-//fastygo//followup//EN"
)

// Summary buckets reminders for the report screens. Open reminders are
// grouped by due date relative to now in now's location: overdue, later
// today, before the end of the ISO week, or later.
func (uc *UseCase) Summary(ctx context.Context, now time.Time) (*domain.Summary, error) {
	if now.IsZero() {
		now = uc.now()
	}
	all, err := uc.listAll(ctx, repository.ReminderFilter{})
	if err != nil {
		return nil, err
	}

	endOfDay := startOfDay(now).AddDate(0, 0, 1)
	endOfWeek := startOfWeek(now).AddDate(0, 0, 7)

	summary := &domain.Summary{Total: len(all), AsOf: now}
	for _, r := range all {
		switch r.Status {
		case domain.StatusCompleted:
			summary.Completed++
		case domain.StatusCancelled:
			summary.Cancelled++
		case domain.StatusTriggered:
			summary.Triggered++
		case domain.StatusPending:
			switch {
			case r.DueAt.Before(now):
				summary.Overdue++
			case r.DueAt.Before(endOfDay):
				summary.DueToday++
			case r.DueAt.Before(endOfWeek):
				summary.DueWeek++
			default:
				summary.Later++
			}
		}
	}
	return summary, nil
}

// Calendar writes open reminders as an iCalendar feed.
func (uc *UseCase) Calendar(ctx context.Context, w io.Writer) error {
	var open []domain.Reminder
	for _, status := range []domain.ReminderStatus{domain.StatusPending, domain.StatusTriggered} {
		page, err := uc.listAll(ctx, repository.ReminderFilter{Status: status})
		if err != nil {
			return err
		}
		open = append(open, page...)
	}

	stamp := uc.now().UTC()
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, r := range open {
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, r.ID+"@followup")
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		event.Props.SetDateTime(ical.PropDateTimeStart, r.DueAt.UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, r.DueAt.Add(eventDuration).UTC())
		event.Props.SetText(ical.PropSummary, r.Title)
		if r.Note != "" {
			event.Props.SetText(ical.PropDescription, r.Note)
		}
		event.Props.SetText(ical.PropCategories, string(r.InteractionType))
		cal.Children = append(cal.Children, event.Component)
	}

	// the encoder refuses a calendar without components
	if len(cal.Children) == 0 {
		_, err := io.WriteString(w, "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:"+productID+"\r\nEND:VCALENDAR\r\n")
		return err
	}
	return ical.NewEncoder(w).Encode(cal)
}

func (uc *UseCase) listAll(ctx context.Context, filter repository.ReminderFilter) ([]domain.Reminder, error) {
	var all []domain.Reminder
	filter.Limit = pageSize
	for offset := 0; ; offset += pageSize {
		filter.Offset = offset
		page, err := uc.reminders.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// startOfWeek returns Monday 00:00 of t's week.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}
