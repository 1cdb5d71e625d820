package queue

import (
	"context"
	"sync"

	"github.com/fastygo/followup/domain"
)

// Memory is a bounded in-process ring of notification events. When full, the
// oldest event is dropped so Push never fails.
type Memory struct {
	mu      sync.Mutex
	events  []domain.NotificationEvent
	head    int
	size    int
	dropped int
}

// NewMemory creates a ring holding at most capacity events.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Memory{events: make([]domain.NotificationEvent, capacity)}
}

func (m *Memory) Push(_ context.Context, event domain.NotificationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tail := (m.head + m.size) % len(m.events)
	m.events[tail] = event
	if m.size == len(m.events) {
		m.head = (m.head + 1) % len(m.events)
		m.dropped++
		return nil
	}
	m.size++
	return nil
}

// Drain removes and returns up to max events, oldest first. max <= 0 drains everything.
func (m *Memory) Drain(_ context.Context, max int) ([]domain.NotificationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.size
	if max > 0 && max < n {
		n = max
	}
	out := make([]domain.NotificationEvent, 0, n)
	for i := 0; i < n; i++ {
		idx := (m.head + i) % len(m.events)
		out = append(out, m.events[idx])
		m.events[idx] = domain.NotificationEvent{}
	}
	m.head = (m.head + n) % len(m.events)
	m.size -= n
	return out, nil
}

func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size, nil
}

// Dropped returns how many events were overwritten because the ring was full.
func (m *Memory) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

func (m *Memory) Close() error { return nil }
