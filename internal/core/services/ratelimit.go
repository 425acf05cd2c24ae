package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/custodia-labs/authcore/internal/core/domain"
)

// Login throttling defaults.
const (
	DefaultMaxLoginAttempts = 5
	DefaultLoginLockout     = 15 * time.Minute
)

const loginFailurePrefix = "auth:login_failures:"

// LoginLimiter counts failed logins per email in the cache.
// When the cache is unreachable it fails open.
type LoginLimiter struct {
	cache       *Cache
	maxAttempts int
	window      time.Duration
	logger      *slog.Logger
}

// NewLoginLimiter creates a LoginLimiter. maxAttempts <= 0 disables throttling.
func NewLoginLimiter(cache *Cache, maxAttempts int, window time.Duration, logger *slog.Logger) *LoginLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = DefaultLoginLockout
	}
	return &LoginLimiter{
		cache:       cache,
		maxAttempts: maxAttempts,
		window:      window,
		logger:      logger,
	}
}

// Check returns ErrRateLimited once the failure budget for email is spent
func (l *LoginLimiter) Check(ctx context.Context, email string) error {
	if !l.enabled() {
		return nil
	}

	var failures int64
	if !l.cache.Get(ctx, loginFailureKey(email), &failures) {
		return nil
	}
	if failures >= int64(l.maxAttempts) {
		return domain.ErrRateLimited
	}
	return nil
}

// RecordFailure counts one failed attempt
func (l *LoginLimiter) RecordFailure(ctx context.Context, email string) {
	if !l.enabled() {
		return
	}
	if _, err := l.cache.Increment(ctx, loginFailureKey(email), l.window); err != nil {
		l.logger.WarnContext(ctx, "failed to record login failure", "error", err)
	}
}

// Reset clears the failure counter after a successful login or password reset
func (l *LoginLimiter) Reset(ctx context.Context, email string) {
	if !l.enabled() {
		return
	}
	if err := l.cache.Delete(ctx, loginFailureKey(email)); err != nil {
		l.logger.WarnContext(ctx, "failed to reset login failures", "error", err)
	}
}

func (l *LoginLimiter) enabled() bool {
	return l != nil && l.cache != nil && l.maxAttempts > 0
}

// loginFailureKey hashes the email so addresses are not stored in the cache
func loginFailureKey(email string) string {
	sum := sha256.Sum256([]byte(email))
	return loginFailurePrefix + hex.EncodeToString(sum[:])
}
