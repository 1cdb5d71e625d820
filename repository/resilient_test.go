package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/followup/domain"
)

// flakyRepo fails the first failures calls of every method with err.
type flakyRepo struct {
	failures int
	err      error
	calls    int
}

func (f *flakyRepo) fail() error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyRepo) Create(_ context.Context, r *domain.Reminder) (*domain.Reminder, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return r, nil
}

func (f *flakyRepo) GetByID(_ context.Context, id string) (*domain.Reminder, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return &domain.Reminder{ID: id}, nil
}

func (f *flakyRepo) GetPending(context.Context) ([]domain.Reminder, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return []domain.Reminder{{ID: "r-1"}}, nil
}

func (f *flakyRepo) List(context.Context, ReminderFilter) ([]domain.Reminder, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *flakyRepo) Update(_ context.Context, id string, _ ReminderPatch, _ Expectation) (*domain.Reminder, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return &domain.Reminder{ID: id}, nil
}

func (f *flakyRepo) Delete(context.Context, string) error {
	return f.fail()
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, MaxElapsedTime: time.Second}
}

func TestResilientRetriesTransientReads(t *testing.T) {
	delegate := &flakyRepo{failures: 2, err: errors.New("connection reset")}
	repo := NewResilientRepository(delegate, fastPolicy(), nil)

	pending, err := repo.GetPending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, 3, delegate.calls)
}

func TestResilientDoesNotRetryDomainErrors(t *testing.T) {
	delegate := &flakyRepo{failures: 5, err: domain.ErrReminderNotFound}
	repo := NewResilientRepository(delegate, fastPolicy(), nil)

	_, err := repo.GetByID(context.Background(), "r-1")
	assert.ErrorIs(t, err, domain.ErrReminderNotFound)
	assert.Equal(t, 1, delegate.calls)
}

func TestResilientWritesAreAttemptedOnce(t *testing.T) {
	delegate := &flakyRepo{failures: 1, err: errors.New("timeout")}
	repo := NewResilientRepository(delegate, fastPolicy(), nil)

	_, err := repo.Update(context.Background(), "r-1", ReminderPatch{}, Expectation{})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeUnavailable, domain.CodeOf(err))
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, 1, delegate.calls)
}

func TestResilientGivesUpAfterMaxRetries(t *testing.T) {
	delegate := &flakyRepo{failures: 100, err: errors.New("down")}
	policy := fastPolicy()
	policy.MaxRetries = 2
	repo := NewResilientRepository(delegate, policy, nil)

	_, err := repo.List(context.Background(), ReminderFilter{})
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, 3, delegate.calls)
}

func TestResilientDeleteTreatsNotFoundAsSuccess(t *testing.T) {
	delegate := &flakyRepo{failures: 1, err: domain.ErrReminderNotFound}
	repo := NewResilientRepository(delegate, fastPolicy(), nil)

	assert.NoError(t, repo.Delete(context.Background(), "r-1"))
}

func TestExpectationCheck(t *testing.T) {
	current := &domain.Reminder{Status: domain.StatusPending, Version: 3}

	assert.NoError(t, Expectation{}.Check(current))
	assert.NoError(t, Expectation{Status: domain.StatusPending, Version: 3}.Check(current))
	assert.ErrorIs(t, Expectation{Status: domain.StatusTriggered}.Check(current), domain.ErrConflict)
	assert.ErrorIs(t, Expectation{Version: 2}.Check(current), domain.ErrConflict)
}

func TestPatchApply(t *testing.T) {
	triggeredAt := time.Now()
	r := &domain.Reminder{Status: domain.StatusTriggered, TriggeredAt: &triggeredAt, Version: 4}
	status := domain.StatusPending
	due := triggeredAt.Add(15 * time.Minute)
	now := triggeredAt.Add(time.Second)

	ReminderPatch{Status: &status, DueAt: &due, ClearTriggeredAt: true}.Apply(r, now)

	assert.Equal(t, domain.StatusPending, r.Status)
	assert.Nil(t, r.TriggeredAt)
	assert.Equal(t, due, r.DueAt)
	assert.Equal(t, 5, r.Version)
	assert.Equal(t, now, r.UpdatedAt)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 100, ClampLimit(0))
	assert.Equal(t, 100, ClampLimit(-1))
	assert.Equal(t, 100, ClampLimit(500))
	assert.Equal(t, 20, ClampLimit(20))
}
