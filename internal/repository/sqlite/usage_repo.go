package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/flexconvert/flexconvert/internal/domain"
	"github.com/flexconvert/flexconvert/internal/repository"
)

// usageRepository implements repository.UsageRepository for SQLite.
type usageRepository struct {
	db *DB
}

// NewUsageRepository creates a new SQLite usage repository.
func NewUsageRepository(db *DB) repository.UsageRepository {
	return &usageRepository{db: db}
}

// Insert appends a usage event.
func (r *usageRepository) Insert(ctx context.Context, event *domain.UsageEvent) error {
	query := `
		INSERT INTO usage_events (id, tool_category, tool_name, file_count, success, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID.String(),
		string(event.ToolCategory),
		event.ToolName,
		event.FileCount,
		boolToInt(event.Success),
		formatTime(event.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage event: %w", err)
	}

	return nil
}

// whereClause builds the filter conditions from the fixed set of supported filters.
func whereClause(filter domain.UsageFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, formatTime(filter.Since))
	}
	if filter.Category != "" {
		conditions = append(conditions, "tool_category = ?")
		args = append(args, string(filter.Category))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// AggregateByTool returns per-(category, tool) counts ordered by count descending.
func (r *usageRepository) AggregateByTool(ctx context.Context, filter domain.UsageFilter) ([]domain.ToolUsage, error) {
	where, args := whereClause(filter)
	query := `
		SELECT tool_category, tool_name, COUNT(*), COALESCE(SUM(success), 0)
		FROM usage_events` + where + `
		GROUP BY tool_category, tool_name
		ORDER BY COUNT(*) DESC, tool_category ASC, tool_name ASC
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}
	defer rows.Close()

	var usage []domain.ToolUsage
	for rows.Next() {
		var u domain.ToolUsage
		var category string
		if err := rows.Scan(&category, &u.ToolName, &u.Count, &u.SuccessCount); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		u.ToolCategory = domain.ToolCategory(category)
		usage = append(usage, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage rows: %w", err)
	}

	return usage, nil
}

// Count returns the number of events matching filter.
func (r *usageRepository) Count(ctx context.Context, filter domain.UsageFilter) (int64, error) {
	where, args := whereClause(filter)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM usage_events`+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count usage events: %w", err)
	}
	return total, nil
}

// DailySeries returns per-UTC-day counts ordered by date ascending.
func (r *usageRepository) DailySeries(ctx context.Context, filter domain.UsageFilter) ([]domain.DailyCount, error) {
	where, args := whereClause(filter)
	query := `
		SELECT substr(created_at, 1, 10) AS day, COUNT(*)
		FROM usage_events` + where + `
		GROUP BY day
		ORDER BY day ASC
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily series: %w", err)
	}
	defer rows.Close()

	var series []domain.DailyCount
	for rows.Next() {
		var d domain.DailyCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, fmt.Errorf("failed to scan daily row: %w", err)
		}
		series = append(series, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily rows: %w", err)
	}

	return series, nil
}

// Ensure usageRepository implements repository.UsageRepository.
var _ repository.UsageRepository = (*usageRepository)(nil)
