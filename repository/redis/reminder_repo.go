package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/followup/domain"
	"github.com/fastygo/followup/repository"
)

const defaultMaxAttempts = 5

type reminderRepository struct {
	client      *redislib.Client
	prefix      string
	maxAttempts int
}

// NewReminderRepository creates a Redis-backed reminder repository. Redis has no
// native compare-and-set on a JSON document, so Update runs an optimistic
// WATCH/MULTI read-modify-write that is retried at most maxAttempts times.
func NewReminderRepository(client *redislib.Client, maxAttempts int) repository.ReminderRepository {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &reminderRepository{
		client:      client,
		prefix:      "reminder:",
		maxAttempts: maxAttempts,
	}
}

func (r *reminderRepository) Create(ctx context.Context, reminder *domain.Reminder) (*domain.Reminder, error) {
	if reminder == nil {
		return nil, domain.ErrInvalidPayload
	}

	created := *reminder
	repository.PrepareNew(&created, uuid.NewString(), time.Now())

	payload, err := json.Marshal(&created)
	if err != nil {
		return nil, err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
		pipe.Set(ctx, r.key(created.ID), payload, 0)
		pipe.SAdd(ctx, r.allKey(), created.ID)
		pipe.SAdd(ctx, r.statusKey(created.Status), created.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *reminderRepository) GetByID(ctx context.Context, id string) (*domain.Reminder, error) {
	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, domain.ErrReminderNotFound
		}
		return nil, err
	}
	return decode(raw)
}

func (r *reminderRepository) GetPending(ctx context.Context) ([]domain.Reminder, error) {
	reminders, err := r.loadSet(ctx, r.statusKey(domain.StatusPending))
	if err != nil {
		return nil, err
	}
	pending := reminders[:0]
	for _, reminder := range reminders {
		if reminder.Status == domain.StatusPending {
			pending = append(pending, reminder)
		}
	}
	return pending, nil
}

func (r *reminderRepository) List(ctx context.Context, filter repository.ReminderFilter) ([]domain.Reminder, error) {
	setKey := r.allKey()
	if filter.Status != "" {
		setKey = r.statusKey(filter.Status)
	}
	reminders, err := r.loadSet(ctx, setKey)
	if err != nil {
		return nil, err
	}

	matched := reminders[:0]
	for i := range reminders {
		if filter.Matches(&reminders[i]) {
			matched = append(matched, reminders[i])
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].DueAt.Before(matched[j].DueAt) })

	if filter.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[filter.Offset:]
	if limit := repository.ClampLimit(filter.Limit); len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *reminderRepository) Update(ctx context.Context, id string, patch repository.ReminderPatch, expect repository.Expectation) (*domain.Reminder, error) {
	key := r.key(id)
	var out *domain.Reminder

	txf := func(tx *redislib.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redislib.Nil) {
				return domain.ErrReminderNotFound
			}
			return err
		}
		current, err := decode(raw)
		if err != nil {
			return err
		}
		if err := expect.Check(current); err != nil {
			return err
		}

		previous := current.Status
		patch.Apply(current, time.Now())
		if err := current.CheckInvariants(); err != nil {
			return err
		}
		payload, err := json.Marshal(current)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			if previous != current.Status {
				pipe.SRem(ctx, r.statusKey(previous), id)
				pipe.SAdd(ctx, r.statusKey(current.Status), id)
			}
			return nil
		})
		if err == nil {
			out = current
		}
		return err
	}

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redislib.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, domain.ErrConflict
}

// Delete is idempotent: removing an absent document is not an error.
func (r *reminderRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
		pipe.Del(ctx, r.key(id))
		pipe.SRem(ctx, r.allKey(), id)
		for _, status := range []domain.ReminderStatus{
			domain.StatusPending, domain.StatusTriggered, domain.StatusCompleted, domain.StatusCancelled,
		} {
			pipe.SRem(ctx, r.statusKey(status), id)
		}
		return nil
	})
	return err
}

func (r *reminderRepository) loadSet(ctx context.Context, setKey string) ([]domain.Reminder, error) {
	ids, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	reminders := make([]domain.Reminder, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		reminder, err := decode([]byte(raw))
		if err != nil {
			continue
		}
		reminders = append(reminders, *reminder)
	}
	return reminders, nil
}

func decode(raw []byte) (*domain.Reminder, error) {
	var reminder domain.Reminder
	if err := json.Unmarshal(raw, &reminder); err != nil {
		return nil, err
	}
	return &reminder, nil
}

func (r *reminderRepository) key(id string) string {
	return fmt.Sprintf("%s%s", r.prefix, id)
}

func (r *reminderRepository) allKey() string {
	return r.prefix + "index:all"
}

func (r *reminderRepository) statusKey(status domain.ReminderStatus) string {
	return r.prefix + "index:" + string(status)
}
