package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

const janitorLockName = "janitor"

// Janitor periodically deletes expired usage windows.
//
// For multi-instance deployments, configure a DistributedLock so only one
// instance prunes per cycle.
type Janitor struct {
	pruner    driven.UsagePruner
	lock      driven.DistributedLock
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger

	// Internal state
	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration
	lockTTL  time.Duration
}

// JanitorConfig holds configuration for the janitor.
type JanitorConfig struct {
	Pruner    driven.UsagePruner
	Lock      driven.DistributedLock // Optional: distributed lock for multi-instance coordination
	Interval  time.Duration          // How often to prune (default: 1h)
	Retention time.Duration          // How long past windows are kept (default: 7 days)
	LockTTL   time.Duration          // TTL for the distributed lock (default: 5m)
	Clock     func() time.Time
	Logger    *slog.Logger
}

// NewJanitor creates a new janitor.
func NewJanitor(cfg JanitorConfig) *Janitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = time.Hour
	}
	retention := cfg.Retention
	if retention == 0 {
		retention = 7 * 24 * time.Hour
	}
	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 5 * time.Minute
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Janitor{
		pruner:    cfg.Pruner,
		lock:      cfg.Lock,
		retention: retention,
		now:       clock,
		logger:    logger,
		interval:  interval,
		lockTTL:   lockTTL,
	}
}

// Start begins the prune loop in the background.
// It runs until Stop is called or context is cancelled.
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

	j.logger.Info("janitor starting", "interval", j.interval, "retention", j.retention)

	go j.run(ctx)
}

// Stop gracefully stops the janitor.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	close(j.stopCh)
	j.mu.Unlock()

	<-j.doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()

	j.logger.Info("janitor stopped")
}

func (j *Janitor) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run immediately on start
	j.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopCh:
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce prunes windows older than the retention period. With a lock
// configured, a cycle is skipped when another instance holds it.
func (j *Janitor) RunOnce(ctx context.Context) {
	if j.lock != nil {
		acquired, err := j.lock.Acquire(ctx, janitorLockName, j.lockTTL)
		if err != nil {
			j.logger.Warn("failed to acquire janitor lock", "error", err)
			return
		}
		if !acquired {
			j.logger.Debug("janitor lock held by another instance, skipping cycle")
			return
		}
		defer func() {
			if err := j.lock.Release(context.WithoutCancel(ctx), janitorLockName); err != nil {
				j.logger.Warn("failed to release janitor lock", "error", err)
			}
		}()
	}

	cutoff := domain.DayWindow(j.now().Add(-j.retention)).Start
	removed, err := j.pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("failed to prune usage counters", "error", err)
		return
	}
	if removed > 0 {
		j.logger.Info("pruned usage counters", "removed", removed, "before", cutoff.Format("2006-01-02"))
	}
}
