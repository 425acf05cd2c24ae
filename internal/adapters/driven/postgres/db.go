package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// DB is the principals database, a lib/pq pool
type DB struct {
	*sql.DB
}

// Config describes the pool. URL is a postgres:// connection string.
type Config struct {
	URL             string
	ApplicationName string
	ConnectTimeout  time.Duration

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig sizes the pool for one authcore replica. Auth traffic is
// short point lookups, so a small pool goes a long way.
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		ApplicationName: "authcore",
		ConnectTimeout:  5 * time.Second,
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: time.Minute,
	}
}

// dsn adds application_name and connect_timeout unless the URL sets them
func (c Config) dsn() (string, error) {
	if c.URL == "" {
		return "", errors.New("postgres: empty connection url")
	}

	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("postgres: parse connection url: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("postgres: unsupported scheme %q", u.Scheme)
	}

	q := u.Query()
	if c.ApplicationName != "" && !q.Has("application_name") {
		q.Set("application_name", c.ApplicationName)
	}
	if secs := int(c.ConnectTimeout / time.Second); secs > 0 && !q.Has("connect_timeout") {
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Connect opens the pool and checks the server answers
func Connect(ctx context.Context, cfg Config) (*DB, error) {
	dsn, err := cfg.dsn()
	if err != nil {
		return nil, err
	}

	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	db := &DB{DB: pool}
	if err := db.Ping(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return db, nil
}

// InitSchema applies schema.sql. Every statement is idempotent and replicas
// starting together take turns under an advisory lock.
func (db *DB) InitSchema(ctx context.Context) error {
	return db.withAdvisoryLock(ctx, "schema", func(ctx context.Context, conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("postgres: apply schema: %w", err)
		}
		return nil
	})
}

// Ping satisfies the readiness check
func (db *DB) Ping(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// nullable stores a nil pointer as NULL
func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringOrNil(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
