package queue

import (
	"context"
	"encoding/json"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/followup/domain"
)

// Redis keeps notification events in a capped list so several processes can
// feed one UI consumer. New events are pushed on the left; Drain reads from
// the right so consumers see them oldest first.
type Redis struct {
	client   *redislib.Client
	key      string
	capacity int64
}

// NewRedis creates a list-backed queue. The client is owned by the caller.
func NewRedis(client *redislib.Client, key string, capacity int) *Redis {
	if key == "" {
		key = "followup:notifications"
	}
	if capacity <= 0 {
		capacity = 1000
	}
	return &Redis{client: client, key: key, capacity: int64(capacity)}
}

func (q *Redis) Push(ctx context.Context, event domain.NotificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
		pipe.LPush(ctx, q.key, payload)
		pipe.LTrim(ctx, q.key, 0, q.capacity-1)
		return nil
	})
	return err
}

// Drain atomically pops up to max events. max <= 0 drains everything.
func (q *Redis) Drain(ctx context.Context, max int) ([]domain.NotificationEvent, error) {
	count := q.capacity
	if max > 0 && int64(max) < count {
		count = int64(max)
	}

	var popped *redislib.StringSliceCmd
	_, err := q.client.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
		popped = pipe.RPopCount(ctx, q.key, int(count))
		return nil
	})
	if err != nil && err != redislib.Nil {
		return nil, err
	}

	values, err := popped.Result()
	if err == redislib.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	events := make([]domain.NotificationEvent, 0, len(values))
	for _, raw := range values {
		var event domain.NotificationEvent
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (q *Redis) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	return int(n), err
}

// Close is a no-op; the shared client is closed by its owner.
func (q *Redis) Close() error { return nil }
