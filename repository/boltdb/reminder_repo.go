package boltdb

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/fastygo/followup/domain"
	"github.com/fastygo/followup/repository"
)

var (
	remindersBucket = []byte("reminders")
	pendingBucket   = []byte("reminders_pending")
)

// Buckets lists the buckets the repository expects to exist.
var Buckets = []string{string(remindersBucket), string(pendingBucket)}

type reminderRepository struct {
	db  *bolt.DB
	now func() time.Time
}

// NewReminderRepository returns a BoltDB-backed ReminderRepository. Writers
// are serialized by Bolt, so the expectation check and the write share one
// transaction.
func NewReminderRepository(db *bolt.DB) repository.ReminderRepository {
	return &reminderRepository{db: db, now: time.Now}
}

func (r *reminderRepository) Create(ctx context.Context, reminder *domain.Reminder) (*domain.Reminder, error) {
	if reminder == nil {
		return nil, domain.ErrInvalidPayload
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	created := *reminder
	repository.PrepareNew(&created, uuid.NewString(), r.now())

	err := r.db.Update(func(tx *bolt.Tx) error {
		return put(tx, &created)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *reminderRepository) GetByID(ctx context.Context, id string) (*domain.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *domain.Reminder
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = get(tx, id)
		return err
	})
	return out, err
}

func (r *reminderRepository) GetPending(ctx context.Context) ([]domain.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var pending []domain.Reminder
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(pendingBucket).ForEach(func(k, _ []byte) error {
			reminder, err := get(tx, string(k))
			if err != nil {
				// index entry without a document; skip it
				return nil
			}
			if reminder.Status == domain.StatusPending {
				pending = append(pending, *reminder)
			}
			return nil
		})
	})
	return pending, err
}

func (r *reminderRepository) List(ctx context.Context, filter repository.ReminderFilter) ([]domain.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var all []domain.Reminder
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(remindersBucket).ForEach(func(_, v []byte) error {
			var reminder domain.Reminder
			if err := json.Unmarshal(v, &reminder); err != nil {
				return nil
			}
			if filter.Matches(&reminder) {
				all = append(all, reminder)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].DueAt.Before(all[j].DueAt) })

	if filter.Offset >= len(all) {
		return nil, nil
	}
	all = all[filter.Offset:]
	if limit := repository.ClampLimit(filter.Limit); len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *reminderRepository) Update(ctx context.Context, id string, patch repository.ReminderPatch, expect repository.Expectation) (*domain.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *domain.Reminder
	err := r.db.Update(func(tx *bolt.Tx) error {
		current, err := get(tx, id)
		if err != nil {
			return err
		}
		if err := expect.Check(current); err != nil {
			return err
		}
		patch.Apply(current, r.now())
		if err := current.CheckInvariants(); err != nil {
			return err
		}
		if err := put(tx, current); err != nil {
			return err
		}
		out = current
		return nil
	})
	return out, err
}

// Delete removes the reminder. Deleting an absent id succeeds.
func (r *reminderRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(remindersBucket).Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(pendingBucket).Delete([]byte(id))
	})
}

func get(tx *bolt.Tx, id string) (*domain.Reminder, error) {
	raw := tx.Bucket(remindersBucket).Get([]byte(id))
	if raw == nil {
		return nil, domain.ErrReminderNotFound
	}
	var reminder domain.Reminder
	if err := json.Unmarshal(raw, &reminder); err != nil {
		return nil, err
	}
	return &reminder, nil
}

func put(tx *bolt.Tx, reminder *domain.Reminder) error {
	payload, err := json.Marshal(reminder)
	if err != nil {
		return err
	}
	key := []byte(reminder.ID)
	if err := tx.Bucket(remindersBucket).Put(key, payload); err != nil {
		return err
	}
	if reminder.Status == domain.StatusPending {
		return tx.Bucket(pendingBucket).Put(key, []byte{1})
	}
	return tx.Bucket(pendingBucket).Delete(key)
}
