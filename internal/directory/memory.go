package directory

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in tests and DSN-less
// development runs.
type MemoryStore struct {
	mu           sync.RWMutex
	orgs         map[string]*Organization
	users        map[string]*User
	usersByEmail map[string]string
	clients      map[string]*Client
	integrations map[string]*IntegrationConfig
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orgs:         make(map[string]*Organization),
		users:        make(map[string]*User),
		usersByEmail: make(map[string]string),
		clients:      make(map[string]*Client),
		integrations: make(map[string]*IntegrationConfig),
	}
}

func (m *MemoryStore) CreateOrganization(ctx context.Context, org *Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orgs {
		if existing.Slug == org.Slug {
			return ErrAlreadyExists
		}
	}
	cp := *org
	m.orgs[org.ID] = &cp
	return nil
}

func (m *MemoryStore) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	org, ok := m.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (m *MemoryStore) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Organization, 0, len(m.orgs))
	for _, org := range m.orgs {
		cp := *org
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, ok := m.usersByEmail[email]; ok {
		return ErrAlreadyExists
	}
	cp := *u
	m.users[u.ID] = &cp
	m.usersByEmail[email] = u.ID
	return nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usersByEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *MemoryStore) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.LastLoginAt = &at
	u.UpdatedAt = at
	return nil
}

func (m *MemoryStore) CreateClient(ctx context.Context, c *Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.clients[c.ID] = &cp
	return nil
}

func (m *MemoryStore) GetClient(ctx context.Context, id string) (*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) ListClients(ctx context.Context, organizationID string) ([]*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Client, 0)
	for _, c := range m.clients {
		if c.OrganizationID == organizationID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateClientEmailConfig(ctx context.Context, clientID, provider string, config map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[clientID]
	if !ok {
		return ErrNotFound
	}
	c.EmailEnabled = true
	c.EmailProvider = provider
	c.EmailConfig = config
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) UpdateClientAccountingConfig(ctx context.Context, clientID, system string, config map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[clientID]
	if !ok {
		return ErrNotFound
	}
	c.AccountingSystem = system
	c.AccountingConfig = config
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) CreateIntegrationConfig(ctx context.Context, ic *IntegrationConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ic
	m.integrations[ic.ID] = &cp
	return nil
}

func (m *MemoryStore) GetIntegrationConfig(ctx context.Context, id string) (*IntegrationConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ic, ok := m.integrations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ic
	return &cp, nil
}

func (m *MemoryStore) ListIntegrationConfigs(ctx context.Context, clientID string) ([]*IntegrationConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*IntegrationConfig, 0)
	for _, ic := range m.integrations {
		if ic.ClientID == clientID {
			cp := *ic
			out = append(out, &cp)
		}
	}
	return out, nil
}
