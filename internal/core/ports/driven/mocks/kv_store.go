package mocks

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/custodia-labs/authcore/internal/core/domain"
	"github.com/custodia-labs/authcore/internal/core/ports/driven"
)

// Ensure MockKVStore implements KVStore
var _ driven.KVStore = (*MockKVStore)(nil)

// MockKVStore is a map-backed KVStore with a settable clock
type MockKVStore struct {
	mu      sync.Mutex
	values  map[string][]byte
	expires map[string]time.Time

	Now func() time.Time
	// Err, when set, is returned by every call
	Err error
}

// NewMockKVStore creates a new MockKVStore
func NewMockKVStore() *MockKVStore {
	return &MockKVStore{
		values:  make(map[string][]byte),
		expires: make(map[string]time.Time),
		Now:     time.Now,
	}
}

func (m *MockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.live(key) {
		return nil, domain.ErrNotFound
	}
	return m.values[key], nil
}

func (m *MockKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	if ttl > 0 {
		m.expires[key] = m.Now().Add(ttl)
	} else {
		delete(m.expires, key)
	}
	return nil
}

func (m *MockKVStore) Delete(ctx context.Context, key string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	delete(m.expires, key)
	return nil
}

func (m *MockKVStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live(key), nil
}

func (m *MockKVStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	if m.live(key) {
		n, _ = strconv.ParseInt(string(m.values[key]), 10, 64)
	} else if ttl > 0 {
		m.expires[key] = m.Now().Add(ttl)
	}
	n++
	m.values[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func (m *MockKVStore) Clear(ctx context.Context) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string][]byte)
	m.expires = make(map[string]time.Time)
	return nil
}

func (m *MockKVStore) Ping(ctx context.Context) error {
	return m.Err
}

// Len returns the number of stored keys, expired or not
func (m *MockKVStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}

// live must be called with mu held
func (m *MockKVStore) live(key string) bool {
	if _, ok := m.values[key]; !ok {
		return false
	}
	if exp, ok := m.expires[key]; ok && !m.Now().Before(exp) {
		delete(m.values, key)
		delete(m.expires, key)
		return false
	}
	return true
}
