package preference

import (
	"context"
	"sync"
)

// Store persists the last active affiliation id of each professional. It is
// a weak reference: readers must validate the id against a fresh affiliation
// list. Concurrent writers for the same professional resolve last write wins.
type Store interface {
	Get(ctx context.Context, professionalID string) (affiliationID string, ok bool, err error)
	Set(ctx context.Context, professionalID, affiliationID string) error
}

// MemoryStore keeps preferences for the life of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(ctx context.Context, professionalID string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[professionalID]
	return v, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, professionalID, affiliationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[professionalID] = affiliationID
	return nil
}
