package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/authcore/internal/core/domain"
	"github.com/custodia-labs/authcore/internal/core/ports/driven"
	"github.com/custodia-labs/authcore/internal/core/ports/driving"
)

// Ensure Cache implements CacheAdmin
var _ driving.CacheAdmin = (*Cache)(nil)

// CacheConfig holds configuration for the cache.
type CacheConfig struct {
	Store      driven.KVStore
	DefaultTTL time.Duration // Used by Set; zero means entries never expire
	AllowClear bool          // Clear is refused unless set
	Timeout    time.Duration // Per-call backend deadline (default: 5s)
	Logger     *slog.Logger
	Metrics    driven.AuthMetrics
}

// Cache stores JSON-serializable values with per-entry expiry.
//
// Reads degrade: a failing backend is reported as a miss. Writes report
// failures so callers can decide to continue without caching.
type Cache struct {
	store      driven.KVStore
	defaultTTL time.Duration
	allowClear bool
	timeout    time.Duration
	logger     *slog.Logger
	metrics    driven.AuthMetrics
}

// NewCache creates a new Cache over the given backend.
func NewCache(cfg CacheConfig) *Cache {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultCollaboratorTimeout
	}

	return &Cache{
		store:      cfg.Store,
		defaultTTL: cfg.DefaultTTL,
		allowClear: cfg.AllowClear,
		timeout:    timeout,
		logger:     logger.With("component", "cache"),
		metrics:    metricsOrNoop(cfg.Metrics),
	}
}

// DefaultTTL returns the TTL applied by Set
func (c *Cache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Get decodes the cached value for key into dest and reports whether it was found.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	var data []byte
	err := withTimeout(ctx, c.timeout, func(ctx context.Context) error {
		var err error
		data, err = c.store.Get(ctx, key)
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		c.metrics.CacheOperation("get", "miss")
		return false
	}
	if err != nil {
		c.metrics.CacheOperation("get", "error")
		c.logger.WarnContext(ctx, "cache get failed, treating as miss", "key", key, "error", err)
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.metrics.CacheOperation("get", "error")
		c.logger.WarnContext(ctx, "cached value does not decode, treating as miss", "key", key, "error", err)
		return false
	}

	c.metrics.CacheOperation("get", "hit")
	return true
}

// Set stores value under key with the default TTL
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	return c.SetWithTTL(ctx, key, value, c.defaultTTL)
}

// SetWithTTL stores value under key. A zero ttl stores without expiry.
func (c *Cache) SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	if key == "" || ttl < 0 {
		return domain.ErrInvalidInput
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: value is not JSON-serializable: %v", domain.ErrInvalidInput, err)
	}

	err = withTimeout(ctx, c.timeout, func(ctx context.Context) error {
		return c.store.Set(ctx, key, data, ttl)
	})
	c.metrics.CacheOperation("set", resultLabel(err))
	if err != nil {
		return unavailable("cache", "set", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key succeeds.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := withTimeout(ctx, c.timeout, func(ctx context.Context) error {
		return c.store.Delete(ctx, key)
	})
	c.metrics.CacheOperation("delete", resultLabel(err))
	if err != nil {
		return unavailable("cache", "delete", err)
	}
	return nil
}

// Exists reports whether key holds a live entry. Backend failures report false.
func (c *Cache) Exists(ctx context.Context, key string) bool {
	var ok bool
	err := withTimeout(ctx, c.timeout, func(ctx context.Context) error {
		var err error
		ok, err = c.store.Exists(ctx, key)
		return err
	})
	c.metrics.CacheOperation("exists", resultLabel(err))
	if err != nil {
		c.logger.WarnContext(ctx, "cache exists failed, treating as miss", "key", key, "error", err)
		return false
	}
	return ok
}

// Increment adds one to the counter at key; ttl applies when the counter is created.
func (c *Cache) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var n int64
	err := withTimeout(ctx, c.timeout, func(ctx context.Context) error {
		var err error
		n, err = c.store.Incr(ctx, key, ttl)
		return err
	})
	c.metrics.CacheOperation("incr", resultLabel(err))
	if err != nil {
		return 0, unavailable("cache", "incr", err)
	}
	return n, nil
}

// Clear drops every entry. Refused with ErrForbidden unless enabled in configuration.
func (c *Cache) Clear(ctx context.Context) error {
	if !c.allowClear {
		return domain.ErrForbidden
	}

	err := withTimeout(ctx, c.timeout, func(ctx context.Context) error {
		return c.store.Clear(ctx)
	})
	c.metrics.CacheOperation("clear", resultLabel(err))
	if err != nil {
		return unavailable("cache", "clear", err)
	}

	c.logger.InfoContext(ctx, "cache cleared")
	return nil
}

// Ping checks the backend is reachable
func (c *Cache) Ping(ctx context.Context) error {
	return withTimeout(ctx, c.timeout, c.store.Ping)
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
