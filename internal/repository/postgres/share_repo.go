package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/flexconvert/flexconvert/internal/domain"
	"github.com/flexconvert/flexconvert/internal/repository"
)

// shareRepository implements repository.ShareRepository.
type shareRepository struct {
	db *DB
}

// NewShareRepository creates a new PostgreSQL share repository.
func NewShareRepository(db *DB) repository.ShareRepository {
	return &shareRepository{db: db}
}

const shareColumns = `
	id, type, title, description, file_name, file_type, file_size, config_data,
	tool_category, tool_name, download_count, max_downloads, expires_at, created_at, updated_at
`

// liveCondition selects shares that are neither expired nor exhausted at $1.
const liveCondition = `(expires_at IS NULL OR expires_at > $1) AND (max_downloads IS NULL OR download_count < max_downloads)`

// Create inserts a new share.
func (r *shareRepository) Create(ctx context.Context, share *domain.Share) error {
	query := `
		INSERT INTO shares (` + shareColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	var configData []byte
	if len(share.ConfigData) > 0 {
		configData = share.ConfigData
	}

	_, err := r.db.Pool.Exec(ctx, query,
		share.ID,
		string(share.Type),
		share.Title,
		share.Description,
		share.FileName,
		share.FileType,
		share.FileSize,
		configData,
		share.ToolCategory,
		share.ToolName,
		share.DownloadCount,
		share.MaxDownloads,
		share.ExpiresAt,
		share.CreatedAt,
		share.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrShareAlreadyExists, share.ID)
		}
		return fmt.Errorf("failed to create share: %w", err)
	}

	return nil
}

// GetByID retrieves a share by ID.
func (r *shareRepository) GetByID(ctx context.Context, id string) (*domain.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE id = $1`

	share, err := scanShare(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrShareNotFound
		}
		return nil, fmt.Errorf("failed to get share by ID: %w", err)
	}

	return share, nil
}

// ListLive returns live shares, newest first, plus the live total.
func (r *shareRepository) ListLive(ctx context.Context, filter domain.ShareFilter) (*repository.ListResult[domain.Share], error) {
	conditions := []string{liveCondition}
	args := []any{filter.Now}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	whereClause := strings.Join(conditions, " AND ")

	var total int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM shares WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count shares: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM shares WHERE %s ORDER BY created_at DESC, id ASC LIMIT $%d OFFSET $%d`,
		shareColumns, whereClause, len(args)+1, len(args)+2)
	rows, err := r.db.Pool.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	defer rows.Close()

	items := make([]*domain.Share, 0, filter.Limit)
	for rows.Next() {
		share, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		items = append(items, share)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shares: %w", err)
	}

	return &repository.ListResult[domain.Share]{
		Items:  items,
		Total:  total,
		Offset: filter.Offset,
		Limit:  filter.Limit,
	}, nil
}

// IncrementDownload atomically increments the download counter of a live share.
func (r *shareRepository) IncrementDownload(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE shares
		SET download_count = download_count + 1, updated_at = $1
		WHERE id = $2 AND ` + liveCondition

	result, err := r.db.Pool.Exec(ctx, query, now, id)
	if err != nil {
		return false, fmt.Errorf("failed to increment download count: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ListExpired returns a page of shares whose expiry is at or before now.
func (r *shareRepository) ListExpired(ctx context.Context, now time.Time, limit, offset int) ([]*domain.Share, error) {
	query := `SELECT ` + shareColumns + `
		FROM shares
		WHERE expires_at IS NOT NULL AND expires_at <= $1
		ORDER BY expires_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, now, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired shares: %w", err)
	}
	defer rows.Close()

	var shares []*domain.Share
	for rows.Next() {
		share, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		shares = append(shares, share)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shares: %w", err)
	}

	return shares, nil
}

// Delete removes a share by ID.
func (r *shareRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM shares WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete share: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrShareNotFound
	}

	return nil
}

// scanShare reads one share row in shareColumns order.
func scanShare(row pgx.Row) (*domain.Share, error) {
	share := &domain.Share{}
	var (
		shareType    string
		configData   []byte
		maxDownloads *int32
		fileSize     *int64
	)

	err := row.Scan(
		&share.ID,
		&shareType,
		&share.Title,
		&share.Description,
		&share.FileName,
		&share.FileType,
		&fileSize,
		&configData,
		&share.ToolCategory,
		&share.ToolName,
		&share.DownloadCount,
		&maxDownloads,
		&share.ExpiresAt,
		&share.CreatedAt,
		&share.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	share.Type = domain.ShareType(shareType)
	share.FileSize = fileSize
	if len(configData) > 0 {
		share.ConfigData = configData
	}
	if maxDownloads != nil {
		v := int(*maxDownloads)
		share.MaxDownloads = &v
	}

	return share, nil
}

// Ensure shareRepository implements repository.ShareRepository.
var _ repository.ShareRepository = (*shareRepository)(nil)
