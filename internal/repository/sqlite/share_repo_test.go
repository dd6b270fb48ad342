package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexconvert/flexconvert/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	ctx := context.Background()
	db, err := NewDB(ctx, DefaultConfig(filepath.Join(t.TempDir(), "test.db")), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))
	return db
}

func ptr[T any](v T) *T {
	return &v
}

func newShare(id string, typ domain.ShareType, createdAt time.Time) *domain.Share {
	s := &domain.Share{
		ID:        id,
		Type:      typ,
		Title:     "share " + id,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if typ == domain.ShareTypeFile {
		s.FileName = ptr("doc.pdf")
		s.FileType = ptr("application/pdf")
		s.FileSize = ptr(int64(1024))
	} else {
		s.ConfigData = json.RawMessage(`{"width":800}`)
		s.ToolCategory = ptr("image")
		s.ToolName = ptr("resize")
	}
	return s
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Migrate(ctx))
	version, err := db.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	require.NoError(t, db.Rollback(ctx))
	version, err = db.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, version)

	require.NoError(t, db.Migrate(ctx))
}

func TestShareRepository_CreateAndGet(t *testing.T) {
	repo := NewShareRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	share := newShare("abcDEF123456", domain.ShareTypeConfig, now)
	share.Description = ptr("my settings")
	share.MaxDownloads = ptr(3)
	share.ExpiresAt = ptr(now.Add(time.Hour))
	require.NoError(t, repo.Create(ctx, share))

	got, err := repo.GetByID(ctx, share.ID)
	require.NoError(t, err)
	assert.Equal(t, share.ID, got.ID)
	assert.Equal(t, domain.ShareTypeConfig, got.Type)
	assert.Equal(t, "my settings", *got.Description)
	assert.JSONEq(t, `{"width":800}`, string(got.ConfigData))
	assert.Equal(t, 3, *got.MaxDownloads)
	assert.True(t, share.ExpiresAt.Equal(*got.ExpiresAt))
	assert.True(t, now.Equal(got.CreatedAt))
	assert.Nil(t, got.FileName)

	err = repo.Create(ctx, share)
	assert.ErrorIs(t, err, domain.ErrShareAlreadyExists)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrShareNotFound)
}

func TestShareRepository_IncrementDownload(t *testing.T) {
	repo := NewShareRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	limited := newShare("limited00001", domain.ShareTypeFile, now)
	limited.MaxDownloads = ptr(1)
	require.NoError(t, repo.Create(ctx, limited))

	ok, err := repo.IncrementDownload(ctx, limited.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IncrementDownload(ctx, limited.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, limited.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.DownloadCount)

	expired := newShare("expired00001", domain.ShareTypeFile, now.Add(-2*time.Hour))
	expired.ExpiresAt = ptr(now.Add(-time.Minute))
	require.NoError(t, repo.Create(ctx, expired))

	ok, err = repo.IncrementDownload(ctx, expired.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.IncrementDownload(ctx, "missing", now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShareRepository_ListLive(t *testing.T) {
	repo := NewShareRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	oldest := newShare("oldest000001", domain.ShareTypeFile, now.Add(-3*time.Hour))
	middle := newShare("middle000001", domain.ShareTypeConfig, now.Add(-2*time.Hour))
	newest := newShare("newest000001", domain.ShareTypeFile, now.Add(-1*time.Hour))
	expired := newShare("expired00001", domain.ShareTypeFile, now.Add(-30*time.Minute))
	expired.ExpiresAt = ptr(now.Add(-time.Second))
	exhausted := newShare("exhausted001", domain.ShareTypeFile, now.Add(-10*time.Minute))
	exhausted.MaxDownloads = ptr(2)
	exhausted.DownloadCount = 2

	for _, s := range []*domain.Share{oldest, middle, newest, expired, exhausted} {
		require.NoError(t, repo.Create(ctx, s))
	}

	tests := []struct {
		name      string
		filter    domain.ShareFilter
		wantIDs   []string
		wantTotal int64
	}{
		{
			name:      "all live newest first",
			filter:    domain.ShareFilter{Now: now, Limit: 20},
			wantIDs:   []string{newest.ID, middle.ID, oldest.ID},
			wantTotal: 3,
		},
		{
			name:      "type filter",
			filter:    domain.ShareFilter{Now: now, Type: domain.ShareTypeFile, Limit: 20},
			wantIDs:   []string{newest.ID, oldest.ID},
			wantTotal: 2,
		},
		{
			name:      "pagination",
			filter:    domain.ShareFilter{Now: now, Limit: 1, Offset: 1},
			wantIDs:   []string{middle.ID},
			wantTotal: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.ListLive(ctx, tt.filter)
			require.NoError(t, err)

			ids := make([]string, 0, len(result.Items))
			for _, s := range result.Items {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantTotal, result.Total)
		})
	}
}

func TestShareRepository_ListExpiredAndDelete(t *testing.T) {
	repo := NewShareRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	live := newShare("live00000001", domain.ShareTypeFile, now)
	live.ExpiresAt = ptr(now.Add(time.Hour))
	forever := newShare("forever00001", domain.ShareTypeConfig, now)
	gone1 := newShare("gone00000001", domain.ShareTypeFile, now)
	gone1.ExpiresAt = ptr(now.Add(-2 * time.Hour))
	gone2 := newShare("gone00000002", domain.ShareTypeConfig, now)
	gone2.ExpiresAt = ptr(now.Add(-1 * time.Hour))

	for _, s := range []*domain.Share{live, forever, gone1, gone2} {
		require.NoError(t, repo.Create(ctx, s))
	}

	expired, err := repo.ListExpired(ctx, now, 10, 0)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, gone1.ID, expired[0].ID)
	assert.Equal(t, gone2.ID, expired[1].ID)

	expired, err = repo.ListExpired(ctx, now, 1, 1)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, gone2.ID, expired[0].ID)

	expired, err = repo.ListExpired(ctx, now, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, expired)

	require.NoError(t, repo.Delete(ctx, gone1.ID))
	assert.ErrorIs(t, repo.Delete(ctx, gone1.ID), domain.ErrShareNotFound)

	_, err = repo.GetByID(ctx, gone1.ID)
	assert.ErrorIs(t, err, domain.ErrShareNotFound)
}
