// Package worker runs background maintenance alongside the API.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper drops expired entries and reports how many it removed
type Sweeper interface {
	Sweep() int
}

// Janitor periodically sweeps expired entries from an in-process store.
type Janitor struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger

	// Internal state
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// JanitorConfig holds configuration for the janitor.
type JanitorConfig struct {
	Sweeper  Sweeper
	Interval time.Duration // Time between sweeps (default: 1m)
	Logger   *slog.Logger
}

// NewJanitor creates a new Janitor.
func NewJanitor(cfg JanitorConfig) *Janitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	return &Janitor{
		sweeper:  cfg.Sweeper,
		interval: interval,
		logger:   logger.With("component", "janitor"),
	}
}

// Start begins the sweep loop. It runs until Stop is called or ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	j.logger.Info("janitor starting", "interval", j.interval)

	go j.loop(ctx)
}

// Stop halts the loop and waits for it to exit.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	close(j.stopCh)
	doneCh := j.doneCh
	j.mu.Unlock()

	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()

	j.logger.Info("janitor stopped")
}

func (j *Janitor) loop(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopCh:
			return
		case <-ticker.C:
			if n := j.sweeper.Sweep(); n > 0 {
				j.logger.Debug("swept expired entries", "count", n)
			}
		}
	}
}
