package redis

import (
	"fmt"
	"net"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection settings. URL takes precedence over the
// discrete fields when set.
type Config struct {
	URL      string
	Host     string
	Port     int
	Password string
	DB       int
}

// NewClient creates a go-redis client from cfg. It does not dial.
func NewClient(cfg Config) (*redis.Client, error) {
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opts), nil
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("redis host is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}

	return redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Password: cfg.Password,
		DB:       cfg.DB,
	}), nil
}
