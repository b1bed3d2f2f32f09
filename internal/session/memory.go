package session

import (
	"context"
	"sync"
	"time"

	"github.com/fredericrous/texto-diagrama/internal/model"
)

type memoryEntry struct {
	diagram   model.Diagram
	updatedAt time.Time
}

// MemoryStore is a Store backed by a map. Contents are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Put(_ context.Context, sessionID string, d model.Diagram) error {
	m.mu.Lock()
	m.entries[sessionID] = memoryEntry{diagram: d, updatedAt: m.now()}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (*model.Diagram, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	d := e.diagram
	return &d, nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.entries, sessionID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Purge(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, e := range m.entries {
		if e.updatedAt.Before(cutoff) {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() {}
