package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/followup/domain"
)

func event(id string) domain.NotificationEvent {
	return domain.NotificationEvent{ReminderID: id, Title: "t-" + id}
}

func TestMemoryDrainReturnsOldestFirst(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(4)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Push(ctx, event(id)))
	}

	got, err := q.Drain(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ReminderID)
	assert.Equal(t, "b", got[1].ReminderID)

	n, _ := q.Len(ctx)
	assert.Equal(t, 1, n)

	rest, err := q.Drain(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", rest[0].ReminderID)
}

func TestMemoryDropsOldestWhenFull(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(2)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Push(ctx, event(id)))
	}

	assert.Equal(t, 1, q.Dropped())
	got, err := q.Drain(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ReminderID)
	assert.Equal(t, "c", got[1].ReminderID)
}

func TestMemoryDrainEmpty(t *testing.T) {
	got, err := NewMemory(3).Drain(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
