package invoice

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store used in tests and DSN-less
// development runs.
type MemoryStore struct {
	mu         sync.RWMutex
	invoices   map[string]*Invoice
	lineItems  map[string][]*LineItem
	categories map[string]*Category
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		invoices:   make(map[string]*Invoice),
		lineItems:  make(map[string][]*LineItem),
		categories: make(map[string]*Category),
	}
}

func (m *MemoryStore) CreateInvoice(ctx context.Context, inv *Invoice, items []*LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inv
	m.invoices[inv.ID] = &cp
	stored := make([]*LineItem, 0, len(items))
	for _, item := range items {
		li := *item
		stored = append(stored, &li)
	}
	m.lineItems[inv.ID] = stored
	return nil
}

func (m *MemoryStore) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *MemoryStore) ListInvoices(ctx context.Context, organizationID string, f ListFilter) ([]*Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Invoice, 0)
	for _, inv := range m.invoices {
		if inv.OrganizationID != organizationID {
			continue
		}
		if f.ClientID != "" && inv.ClientID != f.ClientID {
			continue
		}
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		if f.NeedsReview != nil && inv.NeedsReview != *f.NeedsReview {
			continue
		}
		cp := *inv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > f.Limit && f.Limit > 0 {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invoices[inv.ID]; !ok {
		return ErrNotFound
	}
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *MemoryStore) ListLineItems(ctx context.Context, invoiceID string) ([]*LineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := m.lineItems[invoiceID]
	out := make([]*LineItem, 0, len(items))
	for _, item := range items {
		cp := *item
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) CreateCategory(ctx context.Context, c *Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.categories[c.ID] = &cp
	return nil
}

func (m *MemoryStore) ListCategories(ctx context.Context, organizationID string) ([]*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Category, 0)
	for _, c := range m.categories {
		if c.OrganizationID == organizationID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
