package driven

import (
	"context"
	"time"
)

// KVStore is the durable key/value backend behind the cache (Redis).
// Values are opaque bytes; a ttl of zero means no expiry.
type KVStore interface {
	// Get returns domain.ErrNotFound for a missing or expired key
	Get(ctx context.Context, key string) ([]byte, error)

	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete is idempotent
	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)

	// Incr increments a counter, applying ttl when the key is created
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Clear drops every key owned by this store
	Clear(ctx context.Context) error

	Ping(ctx context.Context) error
}
