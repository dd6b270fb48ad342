package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flexconvert/flexconvert/internal/domain"
	"github.com/flexconvert/flexconvert/internal/metrics"
	"github.com/flexconvert/flexconvert/internal/storage"
	"github.com/flexconvert/flexconvert/internal/storage/memory"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// newTestShareService wires a ShareService to in-memory collaborators with a fixed clock.
func newTestShareService() (*ShareService, *MockShareRepository, *memory.Store) {
	repo := NewMockShareRepository()
	store := memory.NewStore("http://storage.test/shares")
	svc := NewShareService(repo, store, metrics.New(), zerolog.Nop(), DefaultShareConfig())
	svc.now = func() time.Time { return testNow }

	seq := 0
	svc.newID = func() (string, error) {
		seq++
		return fmt.Sprintf("share%07d", seq), nil
	}
	return svc, repo, store
}

func TestShareService_CreateFileShare(t *testing.T) {
	tests := []struct {
		name    string
		input   CreateFileShareInput
		wantErr error
	}{
		{
			name: "success",
			input: CreateFileShareInput{
				ShareCommon: ShareCommon{Title: "Quarterly report"},
				FileName:    "report.pdf",
				FileType:    "application/pdf",
				FileSize:    2048,
			},
		},
		{
			name: "title is trimmed before validation",
			input: CreateFileShareInput{
				ShareCommon: ShareCommon{Title: "   "},
				FileName:    "report.pdf",
				FileSize:    1,
			},
			wantErr: domain.ErrInvalidTitle,
		},
		{
			name: "title too long",
			input: CreateFileShareInput{
				ShareCommon: ShareCommon{Title: strings.Repeat("a", domain.MaxTitleLength+1)},
				FileName:    "report.pdf",
				FileSize:    1,
			},
			wantErr: domain.ErrInvalidTitle,
		},
		{
			name: "description too long",
			input: CreateFileShareInput{
				ShareCommon: ShareCommon{Title: "t", Description: ptr(strings.Repeat("d", domain.MaxDescriptionLength+1))},
				FileName:    "report.pdf",
				FileSize:    1,
			},
			wantErr: domain.ErrInvalidDescription,
		},
		{
			name: "missing file name",
			input: CreateFileShareInput{
				ShareCommon: ShareCommon{Title: "t"},
				FileSize:    1,
			},
			wantErr: domain.ErrInvalidFileName,
		},
		{
			name: "zero file size",
			input: CreateFileShareInput{
				ShareCommon: ShareCommon{Title: "t"},
				FileName:    "a.png",
			},
			wantErr: domain.ErrInvalidFileSize,
		},
		{
			name: "file too large",
			input: CreateFileShareInput{
				ShareCommon: ShareCommon{Title: "t"},
				FileName:    "a.png",
				FileSize:    DefaultShareConfig().MaxFileSize + 1,
			},
			wantErr: domain.ErrInvalidFileSize,
		},
		{
			name: "non-positive max downloads",
			input: CreateFileShareInput{
				ShareCommon: ShareCommon{Title: "t", MaxDownloads: ptr(0)},
				FileName:    "a.png",
				FileSize:    1,
			},
			wantErr: domain.ErrInvalidMaxDownloads,
		},
		{
			name: "expiry below one hour",
			input: CreateFileShareInput{
				ShareCommon: ShareCommon{Title: "t", ExpiresIn: ptr(30 * time.Minute)},
				FileName:    "a.png",
				FileSize:    1,
			},
			wantErr: domain.ErrInvalidExpiry,
		},
		{
			name: "expiry above thirty days",
			input: CreateFileShareInput{
				ShareCommon: ShareCommon{Title: "t", ExpiresIn: ptr(31 * 24 * time.Hour)},
				FileName:    "a.png",
				FileSize:    1,
			},
			wantErr: domain.ErrInvalidExpiry,
		},
		{
			name: "unknown tool category",
			input: CreateFileShareInput{
				ShareCommon: ShareCommon{Title: "t", ToolCategory: ptr("video")},
				FileName:    "a.png",
				FileSize:    1,
			},
			wantErr: domain.ErrInvalidCategory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newTestShareService()

			output, err := svc.CreateFileShare(context.Background(), tt.input)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, domain.IsValidationError(err))
				assert.Empty(t, repo.shares)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, output.Share)
			require.NotNil(t, output.Upload)

			share := output.Share
			assert.Equal(t, domain.ShareTypeFile, share.Type)
			assert.Equal(t, 0, share.DownloadCount)
			assert.Equal(t, testNow, share.CreatedAt)
			assert.Equal(t, "report.pdf", *share.FileName)
			assert.Equal(t, int64(2048), *share.FileSize)
			assert.Nil(t, share.ConfigData)

			assert.Equal(t, "PUT", output.Upload.Method)
			assert.Contains(t, output.Upload.URL, storage.ShareObjectKey(share.ID))
			assert.Equal(t, "application/pdf", output.Upload.Headers.Get("Content-Type"))
		})
	}
}

func TestShareService_CreateFileShare_PresignFailureRemovesShare(t *testing.T) {
	repo := NewMockShareRepository()
	store := new(mockObjectStore)
	store.On("PresignUpload", mock.Anything, "files/share0000001", "image/png", int64(10), time.Hour).
		Return(nil, errors.New("signer unavailable"))

	svc := NewShareService(repo, store, nil, zerolog.Nop(), DefaultShareConfig())
	svc.newID = func() (string, error) { return "share0000001", nil }

	_, err := svc.CreateFileShare(context.Background(), CreateFileShareInput{
		ShareCommon: ShareCommon{Title: "t"},
		FileName:    "a.png",
		FileType:    "image/png",
		FileSize:    10,
	})

	require.ErrorIs(t, err, ErrInternalError)
	assert.Empty(t, repo.shares)
	store.AssertExpectations(t)
}

func TestShareService_CreateConfigShare(t *testing.T) {
	svc, _, _ := newTestShareService()

	share, err := svc.CreateConfigShare(context.Background(), CreateConfigShareInput{
		ShareCommon: ShareCommon{Title: "My Resize"},
		ConfigData:  json.RawMessage(`{"toolCategory":"image","toolName":"resize","width":800}`),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ShareTypeConfig, share.Type)
	assert.Equal(t, "My Resize", share.Title)
	assert.Equal(t, 0, share.DownloadCount)
	assert.JSONEq(t, `{"toolCategory":"image","toolName":"resize","width":800}`, string(share.ConfigData))
	require.NotNil(t, share.ToolCategory)
	assert.Equal(t, "image", *share.ToolCategory)
	require.NotNil(t, share.ToolName)
	assert.Equal(t, "resize", *share.ToolName)
	assert.Nil(t, share.FileName)

	got, err := svc.GetShare(context.Background(), share.ID)
	require.NoError(t, err)
	assert.Equal(t, share.ID, got.ID)

	_, err = svc.DownloadShare(context.Background(), share.ID)
	assert.ErrorIs(t, err, domain.ErrNotFileShare)
}

func TestShareService_CreateConfigShare_Validation(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{name: "empty", data: ``, wantErr: domain.ErrInvalidConfigData},
		{name: "malformed", data: `{"a":`, wantErr: domain.ErrInvalidConfigData},
		{name: "array", data: `[1,2,3]`, wantErr: domain.ErrInvalidConfigData},
		{name: "scalar", data: `"resize"`, wantErr: domain.ErrInvalidConfigData},
		{name: "too large", data: `{"pad":"` + strings.Repeat("x", 64*1024) + `"}`, wantErr: domain.ErrConfigTooLarge},
		{name: "embedded category not allowed", data: `{"toolCategory":"audio"}`, wantErr: domain.ErrInvalidCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestShareService()
			_, err := svc.CreateConfigShare(context.Background(), CreateConfigShareInput{
				ShareCommon: ShareCommon{Title: "cfg"},
				ConfigData:  json.RawMessage(tt.data),
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestShareService_IDCollisionRegenerates(t *testing.T) {
	svc, repo, _ := newTestShareService()
	repo.Put(&domain.Share{ID: "share0000001", Type: domain.ShareTypeConfig, Title: "taken"})

	share, err := svc.CreateConfigShare(context.Background(), CreateConfigShareInput{
		ShareCommon: ShareCommon{Title: "cfg"},
		ConfigData:  json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "share0000002", share.ID)
}

func TestShareService_IDCollisionExhausted(t *testing.T) {
	svc, repo, _ := newTestShareService()
	svc.newID = func() (string, error) { return "sameidsameid", nil }
	repo.Put(&domain.Share{ID: "sameidsameid", Type: domain.ShareTypeConfig, Title: "taken"})

	_, err := svc.CreateConfigShare(context.Background(), CreateConfigShareInput{
		ShareCommon: ShareCommon{Title: "cfg"},
		ConfigData:  json.RawMessage(`{}`),
	})
	assert.ErrorIs(t, err, ErrIDExhausted)
}

func TestShareService_GetShare(t *testing.T) {
	past := testNow.Add(-time.Minute)
	future := testNow.Add(time.Hour)

	tests := []struct {
		name    string
		share   *domain.Share
		wantErr error
	}{
		{
			name:  "live",
			share: &domain.Share{ID: "live00000000", Type: domain.ShareTypeFile, ExpiresAt: &future},
		},
		{
			name:    "expired",
			share:   &domain.Share{ID: "expired00000", Type: domain.ShareTypeFile, ExpiresAt: &past},
			wantErr: domain.ErrShareNotFound,
		},
		{
			name:    "exhausted",
			share:   &domain.Share{ID: "exhausted000", Type: domain.ShareTypeFile, MaxDownloads: ptr(2), DownloadCount: 2},
			wantErr: domain.ErrShareExhausted,
		},
		{
			name:    "missing",
			wantErr: domain.ErrShareNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newTestShareService()
			id := "doesnotexist"
			if tt.share != nil {
				repo.Put(tt.share)
				id = tt.share.ID
			}

			share, err := svc.GetShare(context.Background(), id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, share)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, id, share.ID)
		})
	}
}

func TestShareService_DownloadShare_SingleUse(t *testing.T) {
	svc, repo, _ := newTestShareService()
	ctx := context.Background()

	out, err := svc.CreateFileShare(ctx, CreateFileShareInput{
		ShareCommon: ShareCommon{Title: "once", MaxDownloads: ptr(1)},
		FileName:    "photo.jpg",
		FileType:    "image/jpeg",
		FileSize:    512,
	})
	require.NoError(t, err)
	id := out.Share.ID

	first, err := svc.DownloadShare(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Share.DownloadCount)
	assert.Equal(t, "GET", first.Download.Method)
	assert.Contains(t, first.Download.URL, "photo.jpg")

	_, err = svc.DownloadShare(ctx, id)
	assert.ErrorIs(t, err, domain.ErrShareExhausted)

	stored, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.DownloadCount)

	listed, err := svc.ListShares(ctx, ListSharesInput{})
	require.NoError(t, err)
	assert.Empty(t, listed.Shares)
	assert.Equal(t, int64(0), listed.Total)
}

func TestShareService_DownloadShare_Expired(t *testing.T) {
	svc, _, _ := newTestShareService()
	ctx := context.Background()

	out, err := svc.CreateFileShare(ctx, CreateFileShareInput{
		ShareCommon: ShareCommon{Title: "short", ExpiresIn: ptr(time.Hour)},
		FileName:    "a.pdf",
		FileSize:    1,
	})
	require.NoError(t, err)

	svc.now = func() time.Time { return testNow.Add(2 * time.Hour) }

	_, err = svc.GetShare(ctx, out.Share.ID)
	assert.ErrorIs(t, err, domain.ErrShareNotFound)

	_, err = svc.DownloadShare(ctx, out.Share.ID)
	assert.ErrorIs(t, err, domain.ErrShareNotFound)
}

func TestShareService_DownloadShare_LostRace(t *testing.T) {
	repo := NewMockShareRepository()
	store := memory.NewStore("http://storage.test")
	svc := NewShareService(repo, store, nil, zerolog.Nop(), DefaultShareConfig())
	svc.now = func() time.Time { return testNow }

	repo.Put(&domain.Share{ID: "raced0000000", Type: domain.ShareTypeFile, FileName: ptr("a.bin"), MaxDownloads: ptr(1)})

	// Another download wins between the read and the conditional increment.
	ok, err := repo.IncrementDownload(context.Background(), "raced0000000", testNow)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.DownloadShare(context.Background(), "raced0000000")
	assert.ErrorIs(t, err, domain.ErrShareExhausted)
}

func TestShareService_ListShares(t *testing.T) {
	svc, repo, _ := newTestShareService()
	past := testNow.Add(-time.Hour)

	for i := 0; i < 5; i++ {
		typ := domain.ShareTypeFile
		if i%2 == 1 {
			typ = domain.ShareTypeConfig
		}
		repo.Put(&domain.Share{
			ID:        fmt.Sprintf("live%08d", i),
			Type:      typ,
			Title:     fmt.Sprintf("share %d", i),
			CreatedAt: testNow.Add(time.Duration(i) * time.Minute),
		})
	}
	repo.Put(&domain.Share{ID: "expired00000", Type: domain.ShareTypeFile, ExpiresAt: &past, CreatedAt: testNow.Add(time.Hour)})

	tests := []struct {
		name      string
		input     ListSharesInput
		wantIDs   []string
		wantTotal int64
		wantErr   error
	}{
		{
			name:      "default page newest first",
			input:     ListSharesInput{},
			wantIDs:   []string{"live00000004", "live00000003", "live00000002", "live00000001", "live00000000"},
			wantTotal: 5,
		},
		{
			name:      "type filter",
			input:     ListSharesInput{Type: "config"},
			wantIDs:   []string{"live00000003", "live00000001"},
			wantTotal: 2,
		},
		{
			name:      "pagination",
			input:     ListSharesInput{Limit: 2, Offset: 1},
			wantIDs:   []string{"live00000003", "live00000002"},
			wantTotal: 5,
		},
		{
			name:    "limit above maximum",
			input:   ListSharesInput{Limit: 101},
			wantErr: domain.ErrInvalidLimit,
		},
		{
			name:    "negative offset",
			input:   ListSharesInput{Offset: -1},
			wantErr: domain.ErrInvalidOffset,
		},
		{
			name:    "unknown type",
			input:   ListSharesInput{Type: "folder"},
			wantErr: domain.ErrInvalidShareType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := svc.ListShares(context.Background(), tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			ids := make([]string, 0, len(out.Shares))
			for _, s := range out.Shares {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantTotal, out.Total)
		})
	}
}
