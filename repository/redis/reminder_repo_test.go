package redis

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/followup/domain"
	"github.com/fastygo/followup/repository"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redislib.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func statusPtr(s domain.ReminderStatus) *domain.ReminderStatus { return &s }

func TestCreateAndGet(t *testing.T) {
	mr, client := newTestClient(t)
	repo := NewReminderRepository(client, 0)
	ctx := context.Background()
	due := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	created, err := repo.Create(ctx, &domain.Reminder{Title: "Call Sarah", DueAt: due, Status: domain.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, created.Status)
	assert.Equal(t, 1, created.Version)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Call Sarah", got.Title)
	assert.True(t, got.DueAt.Equal(due))

	members, err := mr.Members("reminder:index:pending")
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID}, members)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrReminderNotFound)
}

func TestUpdateMovesStatusIndex(t *testing.T) {
	mr, client := newTestClient(t)
	repo := NewReminderRepository(client, 0)
	ctx := context.Background()
	now := time.Now()

	a, err := repo.Create(ctx, &domain.Reminder{Title: "a", DueAt: now})
	require.NoError(t, err)
	b, err := repo.Create(ctx, &domain.Reminder{Title: "b", DueAt: now})
	require.NoError(t, err)

	_, err = repo.Update(ctx, a.ID,
		repository.ReminderPatch{Status: statusPtr(domain.StatusTriggered), TriggeredAt: &now},
		repository.Expectation{Status: domain.StatusPending, Version: a.Version})
	require.NoError(t, err)

	pending, err := repo.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)

	members, err := mr.Members("reminder:index:triggered")
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, members)

	triggered, err := repo.List(ctx, repository.ReminderFilter{Status: domain.StatusTriggered})
	require.NoError(t, err)
	require.Len(t, triggered, 1)
	assert.Equal(t, a.ID, triggered[0].ID)

	_, err = repo.Update(ctx, a.ID,
		repository.ReminderPatch{Status: statusPtr(domain.StatusPending), ClearTriggeredAt: true},
		repository.Expectation{Status: domain.StatusTriggered})
	require.NoError(t, err)

	pending, err = repo.GetPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	assert.Zero(t, client.SCard(ctx, "reminder:index:triggered").Val())
}

func TestUpdateChecksExpectation(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewReminderRepository(client, 0)
	ctx := context.Background()

	created, err := repo.Create(ctx, &domain.Reminder{Title: "a", DueAt: time.Now()})
	require.NoError(t, err)

	title := "renamed"
	_, err = repo.Update(ctx, created.ID, repository.ReminderPatch{Title: &title}, repository.Expectation{Version: created.Version})
	require.NoError(t, err)

	_, err = repo.Update(ctx, created.ID, repository.ReminderPatch{Title: &title}, repository.Expectation{Version: created.Version})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = repo.Update(ctx, "missing", repository.ReminderPatch{Title: &title}, repository.Expectation{})
	assert.ErrorIs(t, err, domain.ErrReminderNotFound)
}

func TestUpdateRejectsInvalidRecord(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewReminderRepository(client, 0)
	ctx := context.Background()

	created, err := repo.Create(ctx, &domain.Reminder{Title: "a", DueAt: time.Now()})
	require.NoError(t, err)

	_, err = repo.Update(ctx, created.ID,
		repository.ReminderPatch{Status: statusPtr(domain.StatusTriggered)},
		repository.Expectation{Status: domain.StatusPending})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestConditionalWriteHasOneWinner(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewReminderRepository(client, 0)
	ctx := context.Background()
	now := time.Now()

	created, err := repo.Create(ctx, &domain.Reminder{Title: "a", DueAt: now})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		wins      atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, created.ID,
				repository.ReminderPatch{Status: statusPtr(domain.StatusTriggered), TriggeredAt: &now},
				repository.Expectation{Status: domain.StatusPending, Version: created.Version})
			switch {
			case err == nil:
				wins.Add(1)
			case domain.IsDomainError(err, domain.ErrCodeConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(9), conflicts.Load())

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
}

// interferingHook rewrites the watched key from a second connection after
// every GET, so each WATCH transaction is aborted.
type interferingHook struct {
	other  *redislib.Client
	key    string
	active atomic.Bool
	reads  atomic.Int32
}

func (h *interferingHook) DialHook(next redislib.DialHook) redislib.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *interferingHook) ProcessHook(next redislib.ProcessHook) redislib.ProcessHook {
	return func(ctx context.Context, cmd redislib.Cmder) error {
		err := next(ctx, cmd)
		if !h.active.Load() || cmd.Name() != "get" || len(cmd.Args()) < 2 || cmd.Args()[1] != h.key {
			return err
		}
		h.reads.Add(1)
		if get, ok := cmd.(*redislib.StringCmd); ok && err == nil {
			if setErr := h.other.Set(ctx, h.key, get.Val(), 0).Err(); setErr != nil {
				return setErr
			}
		}
		return err
	}
}

func (h *interferingHook) ProcessPipelineHook(next redislib.ProcessPipelineHook) redislib.ProcessPipelineHook {
	return next
}

func TestUpdateGivesUpAfterMaxAttempts(t *testing.T) {
	mr, client := newTestClient(t)
	other := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = other.Close() })

	repo := NewReminderRepository(client, 3)
	ctx := context.Background()
	created, err := repo.Create(ctx, &domain.Reminder{Title: "contended", DueAt: time.Now()})
	require.NoError(t, err)

	hook := &interferingHook{other: other, key: "reminder:" + created.ID}
	client.AddHook(hook)
	hook.active.Store(true)

	title := "never lands"
	_, err = repo.Update(ctx, created.ID, repository.ReminderPatch{Title: &title}, repository.Expectation{})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, int32(3), hook.reads.Load())

	hook.active.Store(false)
	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "contended", got.Title)
	assert.Equal(t, 1, got.Version)
}

func TestListSortsAndPages(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewReminderRepository(client, 0)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		title  string
		offset time.Duration
	}{{"third", 2 * time.Hour}, {"first", 0}, {"second", time.Hour}} {
		_, err := repo.Create(ctx, &domain.Reminder{Title: tc.title, DueAt: base.Add(tc.offset)})
		require.NoError(t, err)
	}

	all, err := repo.List(ctx, repository.ReminderFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{all[0].Title, all[1].Title, all[2].Title})

	page, err := repo.List(ctx, repository.ReminderFilter{Limit: 1, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "third", page[0].Title)
}

func TestDeleteIsIdempotent(t *testing.T) {
	mr, client := newTestClient(t)
	repo := NewReminderRepository(client, 0)
	ctx := context.Background()

	created, err := repo.Create(ctx, &domain.Reminder{Title: "a", DueAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created.ID))
	require.NoError(t, repo.Delete(ctx, created.ID))

	assert.False(t, mr.Exists("reminder:"+created.ID))
	assert.Zero(t, client.SCard(ctx, "reminder:index:pending").Val())
	assert.Zero(t, client.SCard(ctx, "reminder:index:all").Val())

	_, err = repo.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrReminderNotFound)
}
