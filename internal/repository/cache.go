package repository

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// Cache Interface
// =============================================================================

// Cache defines the interface for caching operations.
// Implemented in memory for single-node deployments and by Redis otherwise.
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrCacheMiss if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL.
	// If ttl is 0, the value doesn't expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error
}

// =============================================================================
// Common Cache Keys
// =============================================================================

// CacheKeys generates cache keys for common scenarios.
var CacheKeys = cacheKeys{}

type cacheKeys struct{}

// UsageStats returns a cache key for an analytics aggregate.
func (cacheKeys) UsageStats(days int, category string) string {
	if category == "" {
		category = "all"
	}
	return fmt.Sprintf("cache:stats:%d:%s", days, category)
}
