package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/flexconvert/flexconvert/internal/domain"
	"github.com/flexconvert/flexconvert/internal/repository"
)

// shareRepository implements repository.ShareRepository for SQLite.
type shareRepository struct {
	db *DB
}

// NewShareRepository creates a new SQLite share repository.
func NewShareRepository(db *DB) repository.ShareRepository {
	return &shareRepository{db: db}
}

const shareColumns = `
	id, type, title, description, file_name, file_type, file_size, config_data,
	tool_category, tool_name, download_count, max_downloads, expires_at, created_at, updated_at
`

// Create inserts a new share.
func (r *shareRepository) Create(ctx context.Context, share *domain.Share) error {
	query := `
		INSERT INTO shares (` + shareColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var configData, expiresAt sql.NullString
	if len(share.ConfigData) > 0 {
		configData = sql.NullString{String: string(share.ConfigData), Valid: true}
	}
	if share.ExpiresAt != nil {
		expiresAt = sql.NullString{String: formatTime(*share.ExpiresAt), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
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
		expiresAt,
		formatTime(share.CreatedAt),
		formatTime(share.UpdatedAt),
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
	query := `SELECT ` + shareColumns + ` FROM shares WHERE id = ?`

	share, err := scanShare(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrShareNotFound
		}
		return nil, fmt.Errorf("failed to get share by ID: %w", err)
	}

	return share, nil
}

// liveConditions returns the WHERE clause selecting live shares at now.
func liveConditions(now time.Time) (string, []interface{}) {
	return `(expires_at IS NULL OR expires_at > ?) AND (max_downloads IS NULL OR download_count < max_downloads)`,
		[]interface{}{formatTime(now)}
}

// ListLive returns live shares, newest first, plus the live total.
func (r *shareRepository) ListLive(ctx context.Context, filter domain.ShareFilter) (*repository.ListResult[domain.Share], error) {
	where, args := liveConditions(filter.Now)
	conditions := []string{where}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(filter.Type))
	}
	whereClause := strings.Join(conditions, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM shares WHERE ` + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count shares: %w", err)
	}

	query := `SELECT ` + shareColumns + ` FROM shares WHERE ` + whereClause +
		` ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
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
	where, args := liveConditions(now)
	query := `
		UPDATE shares
		SET download_count = download_count + 1, updated_at = ?
		WHERE id = ? AND ` + where

	args = append([]interface{}{formatTime(now), id}, args...)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to increment download count: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

// ListExpired returns a page of shares whose expiry is at or before now.
func (r *shareRepository) ListExpired(ctx context.Context, now time.Time, limit, offset int) ([]*domain.Share, error) {
	query := `SELECT ` + shareColumns + `
		FROM shares
		WHERE expires_at IS NOT NULL AND expires_at <= ?
		ORDER BY expires_at ASC, id ASC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, formatTime(now), limit, offset)
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
	result, err := r.db.ExecContext(ctx, `DELETE FROM shares WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete share: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrShareNotFound
	}

	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanShare reads one share row in shareColumns order.
func scanShare(row rowScanner) (*domain.Share, error) {
	share := &domain.Share{}
	var (
		shareType                       string
		description, fileName, fileType sql.NullString
		configData                      sql.NullString
		toolCategory, toolName          sql.NullString
		fileSize                        sql.NullInt64
		maxDownloads                    sql.NullInt64
		expiresAt                       sql.NullString
		createdAt, updatedAt            string
	)

	err := row.Scan(
		&share.ID,
		&shareType,
		&share.Title,
		&description,
		&fileName,
		&fileType,
		&fileSize,
		&configData,
		&toolCategory,
		&toolName,
		&share.DownloadCount,
		&maxDownloads,
		&expiresAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	share.Type = domain.ShareType(shareType)
	share.Description = nullString(description)
	share.FileName = nullString(fileName)
	share.FileType = nullString(fileType)
	share.ToolCategory = nullString(toolCategory)
	share.ToolName = nullString(toolName)
	if fileSize.Valid {
		share.FileSize = &fileSize.Int64
	}
	if configData.Valid {
		share.ConfigData = []byte(configData.String)
	}
	if maxDownloads.Valid {
		v := int(maxDownloads.Int64)
		share.MaxDownloads = &v
	}
	if expiresAt.Valid {
		t := parseTime(expiresAt.String)
		share.ExpiresAt = &t
	}
	share.CreatedAt = parseTime(createdAt)
	share.UpdatedAt = parseTime(updatedAt)

	return share, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// Ensure shareRepository implements repository.ShareRepository.
var _ repository.ShareRepository = (*shareRepository)(nil)
