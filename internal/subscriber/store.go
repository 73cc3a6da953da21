package subscriber

import (
	"context"
	"packwatch/internal/facet"
	"slices"
	"sync"
)

// Store keeps the facet selection of every subscriber, keyed by the
// subscriber id (the chat id on the transport side).
type Store interface {
	// Selection returns the selection of a subscriber, creating an empty one
	// on first contact.
	Selection(ctx context.Context, id int64) (Selection, error)
	// Toggle toggles a facet for a subscriber and returns the new selection.
	Toggle(ctx context.Context, id int64, ref facet.Ref) (Selection, error)
	// Subscribers lists every known subscriber id in ascending order.
	Subscribers(ctx context.Context) ([]int64, error)
}

// MemoryStore is a Store that lives only as long as the process.
type MemoryStore struct {
	mu         sync.Mutex
	selections map[int64]Selection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{selections: map[int64]Selection{}}
}

func (m *MemoryStore) Selection(_ context.Context, id int64) (Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sel, ok := m.selections[id]
	if !ok {
		m.selections[id] = Selection{}
		return Selection{}, nil
	}
	return sel.Clone(), nil
}

func (m *MemoryStore) Toggle(_ context.Context, id int64, ref facet.Ref) (Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sel := m.selections[id]
	sel.Toggle(ref)
	m.selections[id] = sel
	return sel.Clone(), nil
}

func (m *MemoryStore) Subscribers(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.selections))
	for id := range m.selections {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
