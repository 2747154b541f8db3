package store

import (
	"context"
	"sync"

	"github.com/arium/arium/internal/bus"
)

// MemoryStore keeps the journal in process memory. Used when
// persistence is disabled and as the reference implementation in tests.
type MemoryStore struct {
	mu     sync.Mutex
	events []bus.Event
}

func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(ctx context.Context, ev bus.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, limit int) ([]bus.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]bus.Event(nil), m.events...)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
