package apikey

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in tests and DSN-less
// development runs.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]*Key
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]*Key)}
}

func (m *MemoryStore) Create(ctx context.Context, key *Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *key
	m.keys[key.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.keys[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *key
	return &cp, nil
}

func (m *MemoryStore) ListByOrganization(ctx context.Context, organizationID string) ([]*Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Key, 0)
	for _, key := range m.keys {
		if key.OrganizationID == organizationID {
			cp := *key
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) FindActiveByPrefix(ctx context.Context, prefix string) ([]*Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Key, 0)
	for _, key := range m.keys {
		if key.IsActive && key.KeyPrefix == prefix {
			cp := *key
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[id]
	if !ok {
		return ErrNotFound
	}
	key.IsActive = false
	key.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[id]
	if !ok {
		return ErrNotFound
	}
	key.LastUsedAt = &at
	key.UpdatedAt = at
	return nil
}
