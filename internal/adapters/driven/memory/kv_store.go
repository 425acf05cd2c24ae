// Package memory provides process-local driven adapters for single-instance
// deployments and development without Redis.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/custodia-labs/authcore/internal/core/domain"
	"github.com/custodia-labs/authcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.KVStore = (*KVStore)(nil)

type entry struct {
	value    []byte
	expireAt time.Time // zero => no TTL
}

func (e entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

// KVStore is a mutex-guarded map with lazy expiry
type KVStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewKVStore creates an empty KVStore
func NewKVStore() *KVStore {
	return &KVStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expireAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *KVStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.lookup(key)
	return ok, nil
}

func (s *KVStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	var n int64
	if ok {
		var err error
		if n, err = strconv.ParseInt(string(e.value), 10, 64); err != nil {
			return 0, domain.ErrInvalidInput
		}
	} else if ttl > 0 {
		e.expireAt = s.now().Add(ttl)
	}

	n++
	e.value = []byte(strconv.FormatInt(n, 10))
	s.entries[key] = e
	return n, nil
}

func (s *KVStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]entry)
	return nil
}

func (s *KVStore) Ping(ctx context.Context) error {
	return nil
}

// Sweep drops expired entries and returns how many were removed
func (s *KVStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// lookup must be called with mu held
func (s *KVStore) lookup(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return entry{}, false
	}
	return e, true
}
