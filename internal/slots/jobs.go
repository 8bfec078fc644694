package slots

import (
	"context"
	"os"
	"time"

	"tutorbook/internal/shared/constants"
	"tutorbook/pkg/atomicstore"
	"tutorbook/pkg/logger"
)

// JobProcessor runs slot maintenance in the background: purge expired
// slots, then check inventory
type JobProcessor struct {
	generator *Generator
	store     atomicstore.Store
	config    *JobConfig
	instance  string
	log       *logger.Logger
	done      chan struct{}
}

// JobConfig contains configuration for background jobs
type JobConfig struct {
	MaintenanceInterval time.Duration
}

// DefaultJobConfig returns default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		MaintenanceInterval: time.Hour,
	}
}

// NewJobProcessor creates a new job processor
func NewJobProcessor(generator *Generator, store atomicstore.Store, config *JobConfig) *JobProcessor {
	if config == nil {
		config = DefaultJobConfig()
	}

	instance, _ := os.Hostname()
	return &JobProcessor{
		generator: generator,
		store:     store,
		config:    config,
		instance:  instance,
		log:       logger.GetDefault().WithComponent("slot-jobs"),
		done:      make(chan struct{}),
	}
}

// Start starts the maintenance loop. It runs once immediately.
func (jp *JobProcessor) Start(ctx context.Context) {
	jp.log.Info("starting slot maintenance", "interval", jp.config.MaintenanceInterval.String())
	go jp.loop(ctx)
}

// Stop stops the maintenance loop
func (jp *JobProcessor) Stop() {
	close(jp.done)
	jp.log.Info("slot maintenance stopped")
}

func (jp *JobProcessor) loop(ctx context.Context) {
	ticker := time.NewTicker(jp.config.MaintenanceInterval)
	defer ticker.Stop()

	jp.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			jp.RunOnce(ctx)
		case <-jp.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce performs one maintenance pass unless another instance already
// did within the interval. It reports whether the pass ran.
func (jp *JobProcessor) RunOnce(ctx context.Context) bool {
	// Shorter than the interval so the next tick can claim again
	claimTTL := jp.config.MaintenanceInterval * 9 / 10
	claimed, err := atomicstore.ClaimOnce(ctx, jp.store, constants.KEY_MAINTENANCE_LAST_RUN, jp.instance, claimTTL)
	if err != nil {
		jp.log.ErrorContext(ctx, "maintenance claim failed", "error", err)
		return false
	}
	if !claimed {
		jp.log.DebugContext(ctx, "maintenance already ran on another instance")
		return false
	}

	if _, err := jp.generator.PurgeExpired(ctx); err != nil {
		jp.log.ErrorContext(ctx, "error purging expired slots", "error", err)
	}
	if _, err := jp.generator.CheckInventory(ctx); err != nil {
		jp.log.ErrorContext(ctx, "error checking slot inventory", "error", err)
	}
	return true
}
