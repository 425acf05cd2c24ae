package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/authcore/internal/core/domain"
	"github.com/custodia-labs/authcore/internal/core/ports/driven"
)

// Ensure MockUserDirectory implements UserDirectory
var _ driven.UserDirectory = (*MockUserDirectory)(nil)

// MockUserDirectory is an in-memory UserDirectory for testing.
// Records are copied in and out so callers cannot mutate stored state.
type MockUserDirectory struct {
	mu      sync.RWMutex
	users   map[string]*domain.Principal
	byEmail map[string]string

	// Err, when set, is returned by every call
	Err error
	// Block, when set, makes every call wait for ctx to end
	Block bool
	// PersistErr, when set, is returned by Persist only
	PersistErr error
}

// NewMockUserDirectory creates a new MockUserDirectory
func NewMockUserDirectory() *MockUserDirectory {
	return &MockUserDirectory{
		users:   make(map[string]*domain.Principal),
		byEmail: make(map[string]string),
	}
}

func (m *MockUserDirectory) FindByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	if err := m.fail(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	p := *m.users[id]
	return &p, nil
}

func (m *MockUserDirectory) FindByID(ctx context.Context, id string) (*domain.Principal, error) {
	if err := m.fail(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	p := *u
	return &p, nil
}

func (m *MockUserDirectory) Create(ctx context.Context, principal *domain.Principal) (*domain.Principal, error) {
	if err := m.fail(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[principal.Email]; ok {
		return nil, domain.ErrAlreadyExists
	}
	p := *principal
	m.users[p.ID] = &p
	m.byEmail[p.Email] = p.ID
	out := p
	return &out, nil
}

func (m *MockUserDirectory) Persist(ctx context.Context, principal *domain.Principal) error {
	if err := m.fail(ctx); err != nil {
		return err
	}
	if m.PersistErr != nil {
		return m.PersistErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[principal.ID]; !ok {
		return domain.ErrNotFound
	}
	p := *principal
	m.users[p.ID] = &p
	m.byEmail[p.Email] = p.ID
	return nil
}

// Put stores a principal directly, bypassing Create
func (m *MockUserDirectory) Put(principal *domain.Principal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := *principal
	m.users[p.ID] = &p
	m.byEmail[p.Email] = p.ID
}

// Get returns a copy of the stored principal, or nil
func (m *MockUserDirectory) Get(id string) *domain.Principal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	p := *u
	return &p
}

// Count returns the number of stored principals
func (m *MockUserDirectory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

func (m *MockUserDirectory) fail(ctx context.Context) error {
	if m.Block {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.Err
}
