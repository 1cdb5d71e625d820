package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/followup/domain"
	"github.com/fastygo/followup/internal/infrastructure/queue"
)

type fakeNotifier struct {
	granted  bool
	permErr  error
	showErr  error
	asked    int
	shown    []string
	lastData map[string]string
}

func (n *fakeNotifier) RequestPermission(context.Context) (bool, error) {
	n.asked++
	return n.granted, n.permErr
}

func (n *fakeNotifier) Show(_ context.Context, title, _ string, data map[string]string) (string, error) {
	if n.showErr != nil {
		return "", n.showErr
	}
	n.shown = append(n.shown, title)
	n.lastData = data
	return "notif-1", nil
}

func triggered(id string) domain.Reminder {
	return domain.Reminder{
		ID:              id,
		Title:           "Call Sarah",
		Note:            "about the offer",
		ContactRef:      "c-42",
		InteractionType: domain.InteractionMessage,
		Status:          domain.StatusTriggered,
	}
}

func TestDispatchShowsAndQueues(t *testing.T) {
	notifier := &fakeNotifier{granted: true}
	q := queue.NewMemory(10)
	metrics, err := NewMetrics("test", prometheus.NewRegistry())
	require.NoError(t, err)
	d := NewDispatcher(notifier, q, metrics, nil)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d.now = func() time.Time { return at }

	event := d.Dispatch(context.Background(), triggered("r-1"))
	assert.Equal(t, "r-1", event.ReminderID)
	assert.Equal(t, "Call Sarah", event.Title)
	assert.Equal(t, "about the offer", event.Body)
	assert.Equal(t, "c-42", event.ContactRef)
	assert.Equal(t, domain.InteractionMessage, event.InteractionType)
	assert.Equal(t, "notif-1", event.NotificationID)
	assert.Equal(t, at, event.EmittedAt)
	assert.Equal(t, "r-1", notifier.lastData["reminder_id"])

	events, err := d.Drain(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event, events[0])
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.dispatches.WithLabelValues("shown")))
}

func TestDispatchPermissionDeniedStillQueues(t *testing.T) {
	notifier := &fakeNotifier{granted: false}
	q := queue.NewMemory(10)
	d := NewDispatcher(notifier, q, nil, nil)

	d.Dispatch(context.Background(), triggered("r-1"))
	d.Dispatch(context.Background(), triggered("r-2"))

	assert.Empty(t, notifier.shown)
	assert.Equal(t, 1, notifier.asked, "a definite answer is cached")

	n, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDispatchRetriesPermissionAfterError(t *testing.T) {
	notifier := &fakeNotifier{permErr: errors.New("bridge down")}
	d := NewDispatcher(notifier, queue.NewMemory(10), nil, nil)

	d.Dispatch(context.Background(), triggered("r-1"))
	notifier.permErr = nil
	notifier.granted = true
	d.Dispatch(context.Background(), triggered("r-2"))

	assert.Equal(t, 2, notifier.asked)
	assert.Equal(t, []string{"Call Sarah"}, notifier.shown)
}

func TestDispatchShowFailureIsNotFatal(t *testing.T) {
	notifier := &fakeNotifier{granted: true, showErr: errors.New("gateway 502")}
	q := queue.NewMemory(10)
	d := NewDispatcher(notifier, q, nil, nil)

	event := d.Dispatch(context.Background(), triggered("r-1"))
	assert.Empty(t, event.NotificationID)

	events, err := q.Drain(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestDispatchWithoutNotifierOrQueue(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, nil)
	event := d.Dispatch(context.Background(), triggered("r-1"))
	assert.Equal(t, "r-1", event.ReminderID)

	events, err := d.Drain(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestNotificationTextFallbacks(t *testing.T) {
	cases := []struct {
		name      string
		reminder  domain.Reminder
		wantTitle string
		wantBody  string
	}{
		{
			name:      "explicit text",
			reminder:  domain.Reminder{Title: "Call Sarah", Note: "re: offer"},
			wantTitle: "Call Sarah",
			wantBody:  "re: offer",
		},
		{
			name:      "contact name",
			reminder:  domain.Reminder{ContactName: "Sarah", ContactRef: "c-1", InteractionType: domain.InteractionEmail},
			wantTitle: "Reminder for Sarah",
			wantBody:  "Time to follow up by email",
		},
		{
			name:      "contact ref",
			reminder:  domain.Reminder{ContactRef: "c-1", InteractionType: domain.InteractionMessage},
			wantTitle: "Reminder for c-1",
			wantBody:  "Time to follow up with a message",
		},
		{
			name:      "nothing",
			reminder:  domain.Reminder{Title: "  ", InteractionType: domain.InteractionOther},
			wantTitle: "Reminder",
			wantBody:  "Time to follow up",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantTitle, notificationTitle(tc.reminder))
			assert.Equal(t, tc.wantBody, notificationBody(tc.reminder))
		})
	}
}
