package directory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kolekta.org/internal/collection"
	"kolekta.org/internal/ids"
)

// Memory implements Store with in-process maps. It doubles as the
// collection.Directory the in-memory lifecycle engine runs against.
type Memory struct {
	mu           sync.RWMutex
	orgs         map[string]*Organization
	orgSubdomain map[string]string // subdomain -> org id
	users        map[string]*User
	userEmail    map[string]string // email -> user id
	clients      map[string]*Client
	orgOrder     []string
}

func NewMemory() *Memory {
	return &Memory{
		orgs:         make(map[string]*Organization),
		orgSubdomain: make(map[string]string),
		users:        make(map[string]*User),
		userEmail:    make(map[string]string),
		clients:      make(map[string]*Client),
	}
}

var (
	_ Store                = (*Memory)(nil)
	_ collection.Directory = (*Memory)(nil)
)

func (m *Memory) CreateOrganization(ctx context.Context, org *Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.orgSubdomain[org.Subdomain]; taken {
		return fmt.Errorf("%w: subdomain %s", ErrConflict, org.Subdomain)
	}
	if org.ID == "" {
		org.ID = ids.New()
	}
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now
	cp := *org
	m.orgs[org.ID] = &cp
	m.orgSubdomain[org.Subdomain] = org.ID
	m.orgOrder = append(m.orgOrder, org.ID)
	return nil
}

func (m *Memory) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	org, ok := m.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (m *Memory) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]*Organization, 0, len(m.orgOrder))
	for _, id := range m.orgOrder {
		cp := *m.orgs[id]
		res = append(res, &cp)
	}
	return res, nil
}

func (m *Memory) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.userEmail[u.Email]; taken {
		return fmt.Errorf("%w: email %s", ErrConflict, u.Email)
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	m.users[u.ID] = &cp
	m.userEmail[u.Email] = u.ID
	return nil
}

func (m *Memory) FindUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.userEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *Memory) ListUsersByOrg(ctx context.Context, orgID string) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []*User
	for _, u := range m.users {
		if u.OrganizationID != orgID {
			continue
		}
		cp := *u
		res = append(res, &cp)
	}
	return res, nil
}

func (m *Memory) CreateClient(ctx context.Context, c *Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = ids.New()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	cp := *c
	m.clients[c.ID] = &cp
	return nil
}

func (m *Memory) GetClient(ctx context.Context, id string) (*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) ListClientsByCollector(ctx context.Context, collectorID string) ([]*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []*Client
	for _, c := range m.clients {
		if c.AssignedCollectorID != collectorID {
			continue
		}
		cp := *c
		res = append(res, &cp)
	}
	return res, nil
}

func (m *Memory) SetClientCollector(ctx context.Context, clientID, collectorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[clientID]
	if !ok {
		return ErrNotFound
	}
	c.AssignedCollectorID = collectorID
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// ClientRef satisfies collection.Directory.
func (m *Memory) ClientRef(ctx context.Context, clientID string) (collection.ClientRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[clientID]
	if !ok {
		return collection.ClientRef{}, collection.ErrClientNotFound
	}
	return collection.ClientRef{
		ID:             c.ID,
		OrganizationID: c.OrganizationID,
		CollectorID:    c.AssignedCollectorID,
	}, nil
}

// AdjustClientBalance satisfies collection.Directory. It is reserved for the
// lifecycle engine; nothing else mutates a balance.
func (m *Memory) AdjustClientBalance(ctx context.Context, clientID string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[clientID]
	if !ok {
		return collection.ErrClientNotFound
	}
	c.Balance += delta
	c.UpdatedAt = time.Now().UTC()
	return nil
}
