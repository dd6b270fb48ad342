package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/flexconvert/flexconvert/internal/domain"
	"github.com/flexconvert/flexconvert/internal/metrics"
	"github.com/flexconvert/flexconvert/internal/repository"
)

// AnalyticsService records usage events and serves aggregates.
type AnalyticsService struct {
	usageRepo repository.UsageRepository
	cache     repository.Cache
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	config    AnalyticsConfig

	now func() time.Time
}

// AnalyticsConfig contains analytics configuration.
type AnalyticsConfig struct {
	// StatsCacheTTL is how long aggregates are served from cache. 0 disables caching.
	StatsCacheTTL time.Duration

	// MaxDays bounds the stats window.
	MaxDays int
}

// NewAnalyticsService creates a new AnalyticsService.
// cache may be nil, which disables stats caching.
func NewAnalyticsService(
	usageRepo repository.UsageRepository,
	cache repository.Cache,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config AnalyticsConfig,
) *AnalyticsService {
	if config.MaxDays <= 0 {
		config.MaxDays = 365
	}
	return &AnalyticsService{
		usageRepo: usageRepo,
		cache:     cache,
		metrics:   m,
		logger:    logger.With().Str("service", "analytics").Logger(),
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// TrackInput describes one tool invocation.
// FileCount defaults to 1 when absent or not positive; Success defaults to true.
type TrackInput struct {
	ToolCategory string
	ToolName     string
	FileCount    *int
	Success      *bool
}

// StatsInput selects the aggregation window.
// Days of 0 means all time; an empty Category means every category.
type StatsInput struct {
	Days     int
	Category string
}

// =============================================================================
// Service Methods
// =============================================================================

// Track validates and appends a usage event.
func (s *AnalyticsService) Track(ctx context.Context, input TrackInput) (*domain.UsageEvent, error) {
	category := domain.ToolCategory(strings.TrimSpace(input.ToolCategory))
	if !category.IsValid() {
		return nil, domain.ErrInvalidCategory
	}

	name := strings.TrimSpace(input.ToolName)
	if n := utf8.RuneCountInString(name); n < 1 || n > domain.MaxToolNameLength {
		return nil, domain.ErrInvalidToolName
	}

	fileCount := 1
	if input.FileCount != nil && *input.FileCount > 0 {
		fileCount = *input.FileCount
	}

	success := true
	if input.Success != nil {
		success = *input.Success
	}

	event := domain.NewUsageEvent(category, name, fileCount, success)
	event.CreatedAt = s.now()

	if err := s.usageRepo.Insert(ctx, event); err != nil {
		s.logger.Error().Err(err).
			Str("category", string(category)).
			Str("tool", name).
			Msg("failed to record usage event")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if s.metrics != nil {
		s.metrics.RecordUsageEvent(string(category), success)
	}

	s.logger.Debug().
		Str("category", string(category)).
		Str("tool", name).
		Int("file_count", fileCount).
		Bool("success", success).
		Msg("usage event recorded")

	return event, nil
}

// GetStats returns per-tool counts, the grand total and a daily series.
func (s *AnalyticsService) GetStats(ctx context.Context, input StatsInput) (*domain.UsageStats, error) {
	if input.Days < 0 || input.Days > s.config.MaxDays {
		return nil, domain.NewDomainError(domain.ErrInvalidDays,
			fmt.Sprintf("must be between 1 and %d, or 0 for all time", s.config.MaxDays), "days")
	}

	category := domain.ToolCategory(input.Category)
	if category != "" && !category.IsValid() {
		return nil, domain.ErrInvalidCategory
	}

	cacheKey := repository.CacheKeys.UsageStats(input.Days, input.Category)
	if stats, ok := s.cachedStats(ctx, cacheKey); ok {
		return stats, nil
	}

	filter := domain.UsageFilter{Category: category}
	if input.Days > 0 {
		filter.Since = s.now().Add(-time.Duration(input.Days) * 24 * time.Hour)
	}

	tools, err := s.usageRepo.AggregateByTool(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to aggregate usage")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	total, err := s.usageRepo.Count(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to count usage")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	series, err := s.usageRepo.DailySeries(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to build daily series")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	for i := range tools {
		tools[i].SuccessRate = successRate(tools[i].SuccessCount, tools[i].Count)
	}
	if tools == nil {
		tools = []domain.ToolUsage{}
	}
	if series == nil {
		series = []domain.DailyCount{}
	}

	stats := &domain.UsageStats{
		Tools:      tools,
		Total:      total,
		TimeSeries: series,
	}

	s.storeStats(ctx, cacheKey, stats)
	return stats, nil
}

// successRate returns the success percentage rounded to two decimals.
func successRate(successes, count int64) float64 {
	if count == 0 {
		return 0
	}
	return math.Round(float64(successes)/float64(count)*10000) / 100
}

func (s *AnalyticsService) cachedStats(ctx context.Context, key string) (*domain.UsageStats, bool) {
	if s.cache == nil || s.config.StatsCacheTTL <= 0 {
		return nil, false
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("key", key).Msg("stats cache unavailable")
		}
		if s.metrics != nil {
			s.metrics.StatsCacheMisses.Inc()
		}
		return nil, false
	}

	var stats domain.UsageStats
	if err := json.Unmarshal(data, &stats); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("discarding malformed cached stats")
		return nil, false
	}

	if s.metrics != nil {
		s.metrics.StatsCacheHits.Inc()
	}
	return &stats, true
}

func (s *AnalyticsService) storeStats(ctx context.Context, key string, stats *domain.UsageStats) {
	if s.cache == nil || s.config.StatsCacheTTL <= 0 {
		return
	}

	data, err := json.Marshal(stats)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode stats for cache")
		return
	}
	if err := s.cache.Set(ctx, key, data, s.config.StatsCacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to cache stats")
	}
}
