package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// PrunerConfig configures scheduled bucket pruning.
type PrunerConfig struct {
	// Schedule is a cron expression for when to prune, e.g. "0 3 * * *"
	// for daily at 3 AM. Empty disables scheduled pruning.
	Schedule string

	// Retention is how long an untouched bucket stays before pruning.
	// Default: 24 hours.
	Retention time.Duration
}

// Pruner periodically removes idle buckets from a store. Idle buckets
// belong to subjects that stopped issuing requests; their balance would
// be fully refilled on next use anyway, so dropping them loses nothing.
type Pruner struct {
	store   Store
	config  PrunerConfig
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewPruner creates a pruner. A nil logger uses slog.Default.
func NewPruner(st Store, config PrunerConfig, logger *slog.Logger) *Pruner {
	if config.Retention == 0 {
		config.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:  st,
		config: config,
		cron:   cron.New(),
		logger: logger.With("component", "constraint.pruner"),
	}
}

// Start begins scheduled pruning. A no-op when Schedule is empty.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("pruner already started")
	}
	if p.config.Schedule == "" {
		p.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(p.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", p.config.Schedule, err)
	}

	if _, err := p.cron.AddFunc(p.config.Schedule, func() {
		p.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	p.cron.Start()
	p.running = true
	p.logger.Info("bucket pruning scheduled",
		"schedule", p.config.Schedule,
		"retention", p.config.Retention,
	)
	return nil
}

// RunOnce prunes immediately, regardless of schedule.
func (p *Pruner) RunOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-p.config.Retention)
	deleted, err := p.store.Cleanup(ctx, cutoff)
	if err != nil {
		p.logger.Error("bucket pruning failed", "error", err)
		return
	}
	if deleted > 0 {
		p.logger.Info("pruned idle buckets", "deleted", deleted, "cutoff", cutoff)
	}
}

// Stop halts scheduled pruning and waits for a running job to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	<-p.cron.Stop().Done()
	p.running = false
	p.logger.Info("bucket pruning stopped")
}
