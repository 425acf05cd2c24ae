package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"time"
)

// Advisory locks are held by a session, so the lock, the work and the unlock
// all run on one dedicated connection taken from the pool.

// lockKey converts a lock name to the 64-bit key pg_advisory_lock expects.
// Uses FNV-1a for consistent, well-distributed values.
func lockKey(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte("authcore:lock:" + name))
	return int64(h.Sum64())
}

// withAdvisoryLock blocks until the named lock is held, then runs fn on the
// locked connection.
func (db *DB) withAdvisoryLock(ctx context.Context, name string, fn func(ctx context.Context, conn *sql.Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	key := lockKey(name)
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", key); err != nil {
		return fmt.Errorf("acquire advisory lock %q: %w", name, err)
	}
	defer func() {
		// ctx may already be done; the unlock must still reach the server
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = conn.ExecContext(unlockCtx, "SELECT pg_advisory_unlock($1)", key)
	}()

	return fn(ctx, conn)
}
