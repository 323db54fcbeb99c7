package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in tests and DSN-less
// development runs.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*Task)}
}

func (m *MemoryStore) Enqueue(ctx context.Context, task *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *task
	m.tasks[task.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *task
	return &cp, nil
}

func (m *MemoryStore) ListByClient(ctx context.Context, clientID string, limit int) ([]*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Task, 0)
	for _, task := range m.tasks {
		if task.ClientID == clientID {
			cp := *task
			out = append(out, &cp)
		}
	}
	sortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListByOrganization(ctx context.Context, organizationID string, status string, limit int) ([]*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Task, 0)
	for _, task := range m.tasks {
		if task.OrganizationID != organizationID {
			continue
		}
		if status != "" && task.Status != status {
			continue
		}
		cp := *task
		out = append(out, &cp)
	}
	sortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) NextPending(ctx context.Context, at time.Time) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *Task
	for _, task := range m.tasks {
		if task.Status != StatusPending {
			continue
		}
		if best == nil || task.Priority > best.Priority ||
			(task.Priority == best.Priority && task.CreatedAt.Before(best.CreatedAt)) {
			best = task
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	best.Status = StatusProcessing
	best.Attempts++
	started := at
	best.StartedAt = &started
	cp := *best
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, task *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; !ok {
		return ErrNotFound
	}
	cp := *task
	m.tasks[task.ID] = &cp
	return nil
}

func sortNewestFirst(tasks []*Task) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}
