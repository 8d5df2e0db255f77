// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to count lookups

package store

import (
	"context"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing. It counts
// point lookups so cache behavior can be asserted.
type MockStore struct {
	mu        sync.RWMutex
	servers   map[string]*Server      // keyed by server ID
	providers map[string]*JwtProvider // keyed by provider ID
	users     map[string]*EndUser     // keyed by "tenantID:email"

	// Lookup counters for cache tests
	ServerLookups   int
	ProviderLookups int
	UserLookups     int

	// Err, when set, is returned by every read path to simulate an
	// unavailable data store.
	Err error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		servers:   make(map[string]*Server),
		providers: make(map[string]*JwtProvider),
		users:     make(map[string]*EndUser),
	}
}

// CreateServer stores a new server.
func (m *MockStore) CreateServer(_ context.Context, server *Server) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.servers[server.ID]; exists {
		return ErrDuplicate
	}
	if server.AuthType == "" {
		server.AuthType = AuthTypeBase
	}
	// Copy to avoid external modification
	s := *server
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.servers[s.ID] = &s
	return nil
}

// GetServer retrieves a server by ID.
func (m *MockStore) GetServer(_ context.Context, id string) (*Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ServerLookups++
	if m.Err != nil {
		return nil, m.Err
	}
	s, ok := m.servers[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s
	return &copied, nil
}

// SetServerEnabled toggles the enabled flag on a server.
func (m *MockStore) SetServerEnabled(_ context.Context, id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.servers[id]
	if !ok {
		return ErrNotFound
	}
	s.Enabled = enabled
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// CreateJwtProvider stores a new JWT provider.
func (m *MockStore) CreateJwtProvider(_ context.Context, provider *JwtProvider) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.providers[provider.ID]; exists {
		return ErrDuplicate
	}
	p := *provider
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.providers[p.ID] = &p
	return nil
}

// GetEnabledJwtProvider retrieves the enabled provider for a server.
func (m *MockStore) GetEnabledJwtProvider(_ context.Context, serverID string) (*JwtProvider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ProviderLookups++
	if m.Err != nil {
		return nil, m.Err
	}
	for _, p := range m.providers {
		if p.ServerID == serverID && p.Enabled {
			copied := *p
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// SetJwtProviderEnabled toggles the enabled flag on a provider.
func (m *MockStore) SetJwtProviderEnabled(_ context.Context, id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.providers[id]
	if !ok {
		return ErrNotFound
	}
	p.Enabled = enabled
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// CreateEndUser stores a new end user.
func (m *MockStore) CreateEndUser(_ context.Context, user *EndUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := user.TenantID + ":" + user.Email
	if _, exists := m.users[key]; exists {
		return ErrDuplicate
	}
	u := *user
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.users[key] = &u
	return nil
}

// GetEndUserByEmail retrieves an end user by email scoped to a tenant.
func (m *MockStore) GetEndUserByEmail(_ context.Context, tenantID, email string) (*EndUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UserLookups++
	if m.Err != nil {
		return nil, m.Err
	}
	u, ok := m.users[tenantID+":"+email]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

// SetEndUserEnabled toggles the enabled flag on an end user.
func (m *MockStore) SetEndUserEnabled(_ context.Context, id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.ID == id {
			u.Enabled = enabled
			u.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrNotFound
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error { return nil }
