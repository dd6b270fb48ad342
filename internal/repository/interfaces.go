// Package repository defines data access interfaces for FlexConvert.
// These interfaces abstract database operations, allowing for different implementations
// (PostgreSQL, SQLite) while keeping the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/flexconvert/flexconvert/internal/domain"
)

// =============================================================================
// Share Repository
// =============================================================================

// ShareRepository defines the interface for share data access.
type ShareRepository interface {
	// Create inserts a new share.
	// Returns domain.ErrShareAlreadyExists on identifier collision.
	Create(ctx context.Context, share *domain.Share) error

	// GetByID retrieves a share by ID regardless of liveness.
	// Returns domain.ErrShareNotFound if no row exists.
	GetByID(ctx context.Context, id string) (*domain.Share, error)

	// ListLive returns live shares, newest first, plus the live total.
	ListLive(ctx context.Context, filter domain.ShareFilter) (*ListResult[domain.Share], error)

	// IncrementDownload atomically increments the download counter
	// only while the share is live at now.
	// Returns false when no row was updated.
	IncrementDownload(ctx context.Context, id string, now time.Time) (bool, error)

	// ListExpired returns up to limit shares whose expiry is at or before now,
	// ordered by expiry then ID, skipping the first offset matches.
	ListExpired(ctx context.Context, now time.Time, limit, offset int) ([]*domain.Share, error)

	// Delete removes a share by ID.
	Delete(ctx context.Context, id string) error
}

// =============================================================================
// Usage Repository
// =============================================================================

// UsageRepository defines the interface for the append-only usage log.
type UsageRepository interface {
	// Insert appends a usage event.
	Insert(ctx context.Context, event *domain.UsageEvent) error

	// AggregateByTool returns per-(category, tool) counts ordered by count descending.
	AggregateByTool(ctx context.Context, filter domain.UsageFilter) ([]domain.ToolUsage, error)

	// Count returns the number of events matching filter.
	Count(ctx context.Context, filter domain.UsageFilter) (int64, error)

	// DailySeries returns per-UTC-day counts ordered by date ascending.
	DailySeries(ctx context.Context, filter domain.UsageFilter) ([]domain.DailyCount, error)
}

// =============================================================================
// Common Types
// =============================================================================

// ListResult is a generic paginated list result.
type ListResult[T any] struct {
	// Items is the list of items.
	Items []*T

	// Total is the total number of items (without pagination).
	Total int64

	// Offset is the current offset.
	Offset int

	// Limit is the current limit.
	Limit int
}
