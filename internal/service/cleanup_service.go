package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/flexconvert/flexconvert/internal/lock"
	"github.com/flexconvert/flexconvert/internal/metrics"
	"github.com/flexconvert/flexconvert/internal/repository"
	"github.com/flexconvert/flexconvert/internal/storage"
)

// CleanupService deletes expired shares and their backing objects.
type CleanupService struct {
	shareRepo repository.ShareRepository
	store     storage.ObjectStore
	locker    lock.Locker
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	config    CleanupConfig

	now func() time.Time

	// Control
	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// CleanupConfig contains sweep configuration.
type CleanupConfig struct {
	// Enabled determines if the sweep runs automatically.
	Enabled bool

	// Interval is how often to run the sweep.
	Interval time.Duration

	// BatchSize is the maximum number of shares fetched per batch.
	BatchSize int

	// DryRun logs what would be deleted without actually deleting.
	DryRun bool

	// LockWait is how long a run waits for another sweep to finish. 0 skips immediately.
	LockWait time.Duration
}

// lockPollInterval is how often a waiting run retries the cleanup lock.
const lockPollInterval = time.Second

// DefaultCleanupConfig returns sensible defaults.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Enabled:   true,
		Interval:  6 * time.Hour,
		BatchSize: 500,
		DryRun:    false,
	}
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(
	shareRepo repository.ShareRepository,
	store storage.ObjectStore,
	locker lock.Locker,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config CleanupConfig,
) *CleanupService {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultCleanupConfig().BatchSize
	}
	return &CleanupService{
		shareRepo: shareRepo,
		store:     store,
		locker:    locker,
		metrics:   m,
		logger:    logger.With().Str("service", "cleanup").Logger(),
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

// Start begins the cleanup scheduler.
func (c *CleanupService) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.logger.Info().
		Dur("interval", c.config.Interval).
		Int("batch_size", c.config.BatchSize).
		Bool("dry_run", c.config.DryRun).
		Msg("Starting share cleanup scheduler")

	go c.runLoop()
}

// Stop stops the cleanup scheduler.
func (c *CleanupService) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	close(c.stopChan)
	<-c.doneChan

	c.logger.Info().Msg("Share cleanup scheduler stopped")
}

// runLoop is the main scheduling loop.
func (c *CleanupService) runLoop() {
	defer close(c.doneChan)

	// Run immediately on start
	c.RunOnce(context.Background())

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.RunOnce(context.Background())
		case <-c.stopChan:
			return
		}
	}
}

// CleanupResult contains the result of a sweep.
type CleanupResult struct {
	// SharesDeleted is the number of share rows removed.
	SharesDeleted int `json:"sharesDeleted"`

	// ObjectsDeleted is the number of backing objects removed.
	ObjectsDeleted int `json:"objectsDeleted"`

	// Errors is the number of errors encountered.
	Errors int `json:"errors"`

	// Skipped is true when another process held the cleanup lock.
	Skipped bool `json:"skipped"`

	// DryRun is true when nothing was actually deleted.
	DryRun bool `json:"dryRun"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`
}

// RunOnce executes a single sweep.
// This can be called manually or by the scheduler.
func (c *CleanupService) RunOnce(ctx context.Context) CleanupResult {
	start := time.Now()
	result := CleanupResult{DryRun: c.config.DryRun}

	c.logger.Debug().Msg("Starting share cleanup run")

	// Acquire lock to prevent concurrent sweeps
	lockTTL := c.config.Interval / 2 // Lock expires before next scheduled run
	if lockTTL < 5*time.Minute {
		lockTTL = 5 * time.Minute
	}

	lease, err := lock.Wait(ctx, c.locker, lock.Keys.ShareCleanup(), lockTTL, c.config.LockWait, lockPollInterval)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			c.logger.Debug().Msg("Cleanup lock held by another process, skipping run")
			result.Skipped = true
		} else {
			c.logger.Error().Err(err).Msg("Failed to acquire cleanup lock")
			result.Errors++
		}
		result.Duration = time.Since(start)
		return result
	}
	defer func() {
		if err := lease.Release(ctx); err != nil {
			c.logger.Error().Err(err).Msg("Failed to release cleanup lock")
		}
	}()

	now := c.now()
	// offset skips rows that stay listed after this batch: failures, and every row in a dry run
	offset := 0
	for {
		expired, err := c.shareRepo.ListExpired(ctx, now, c.config.BatchSize, offset)
		if err != nil {
			c.logger.Error().Err(err).Msg("Failed to list expired shares")
			result.Errors++
			break
		}

		for _, share := range expired {
			if c.config.DryRun {
				c.logger.Info().
					Str("share_id", share.ID).
					Str("type", string(share.Type)).
					Msg("[DRY RUN] Would delete expired share")
				result.SharesDeleted++
				offset++
				continue
			}

			if !c.deleteShare(ctx, share.ID, share.IsFile(), &result) {
				offset++
			}
		}

		if len(expired) < c.config.BatchSize || ctx.Err() != nil {
			break
		}

		if err := lease.Refresh(ctx); err != nil {
			c.logger.Error().Err(err).Msg("Lost cleanup lock, stopping run")
			result.Errors++
			break
		}
	}

	result.Duration = time.Since(start)

	if c.metrics != nil {
		c.metrics.RecordCleanupRun(result.Duration.Seconds(), result.SharesDeleted, result.Errors)
	}

	c.logger.Info().
		Int("shares_deleted", result.SharesDeleted).
		Int("objects_deleted", result.ObjectsDeleted).
		Int("errors", result.Errors).
		Dur("duration", result.Duration).
		Msg("Share cleanup run completed")

	return result
}

// deleteShare removes the backing object then the row, counting into result.
// It reports whether the row is gone.
func (c *CleanupService) deleteShare(ctx context.Context, id string, isFile bool, result *CleanupResult) bool {
	// Delete the backing object first so a failure leaves the row for the next run
	if isFile {
		if err := c.store.Delete(ctx, storage.ShareObjectKey(id)); err != nil {
			if !storage.IsNotFound(err) {
				c.logger.Error().
					Err(err).
					Str("share_id", id).
					Msg("Failed to delete shared object")
				result.Errors++
				return false
			}
			// Never uploaded or already removed, continue to delete the row
		} else {
			result.ObjectsDeleted++
		}
	}

	if err := c.shareRepo.Delete(ctx, id); err != nil {
		c.logger.Error().
			Err(err).
			Str("share_id", id).
			Msg("Failed to delete expired share")
		result.Errors++
		return false
	}

	c.logger.Debug().Str("share_id", id).Msg("Deleted expired share")
	result.SharesDeleted++
	return true
}
