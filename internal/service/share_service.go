package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/flexconvert/flexconvert/internal/domain"
	"github.com/flexconvert/flexconvert/internal/metrics"
	"github.com/flexconvert/flexconvert/internal/pkg/crypto"
	"github.com/flexconvert/flexconvert/internal/repository"
	"github.com/flexconvert/flexconvert/internal/storage"
)

// maxIDAttempts bounds identifier regeneration after a primary key collision.
const maxIDAttempts = 3

// ShareService handles share creation, lookup, listing and downloads.
type ShareService struct {
	shareRepo repository.ShareRepository
	store     storage.ObjectStore
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	config    ShareConfig

	now   func() time.Time
	newID func() (string, error)
}

// ShareConfig contains share limits.
type ShareConfig struct {
	// URLExpiry is the validity of issued upload/download grants.
	URLExpiry time.Duration

	// MaxFileSize is the largest declared file size accepted.
	MaxFileSize int64

	// MaxConfigSize is the largest embedded configuration accepted, in bytes.
	MaxConfigSize int

	// MaxExpiry bounds the requested share lifetime.
	MaxExpiry time.Duration

	// DefaultPageSize and MaxPageSize bound list pagination.
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultShareConfig returns sensible defaults.
func DefaultShareConfig() ShareConfig {
	return ShareConfig{
		URLExpiry:       time.Hour,
		MaxFileSize:     100 * 1024 * 1024,
		MaxConfigSize:   64 * 1024,
		MaxExpiry:       domain.MaxShareExpiry,
		DefaultPageSize: 20,
		MaxPageSize:     100,
	}
}

// NewShareService creates a new ShareService.
func NewShareService(
	shareRepo repository.ShareRepository,
	store storage.ObjectStore,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config ShareConfig,
) *ShareService {
	return &ShareService{
		shareRepo: shareRepo,
		store:     store,
		metrics:   m,
		logger:    logger.With().Str("service", "share").Logger(),
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     crypto.GenerateShareID,
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// ShareCommon holds the fields shared by both share types.
type ShareCommon struct {
	Title        string
	Description  *string
	ToolCategory *string
	ToolName     *string
	MaxDownloads *int
	ExpiresIn    *time.Duration
}

// CreateFileShareInput contains the data needed to create a file share.
type CreateFileShareInput struct {
	ShareCommon
	FileName string
	FileType string
	FileSize int64
}

// CreateFileShareOutput contains the created share and its upload grant.
type CreateFileShareOutput struct {
	Share  *domain.Share
	Upload *storage.PresignedRequest
}

// CreateConfigShareInput contains the data needed to create a config share.
type CreateConfigShareInput struct {
	ShareCommon
	ConfigData json.RawMessage
}

// ListSharesInput contains listing parameters.
type ListSharesInput struct {
	Type   string
	Limit  int
	Offset int
}

// ListSharesOutput contains one page of live shares.
type ListSharesOutput struct {
	Shares []*domain.Share
	Total  int64
	Limit  int
	Offset int
}

// DownloadShareOutput contains the updated share and its download grant.
type DownloadShareOutput struct {
	Share    *domain.Share
	Download *storage.PresignedRequest
}

// =============================================================================
// Validation
// =============================================================================

// validateCommon checks the fields shared by both share types.
func (s *ShareService) validateCommon(in *ShareCommon) error {
	in.Title = strings.TrimSpace(in.Title)
	if n := utf8.RuneCountInString(in.Title); n < 1 || n > domain.MaxTitleLength {
		return domain.ErrInvalidTitle
	}
	if in.Description != nil && utf8.RuneCountInString(*in.Description) > domain.MaxDescriptionLength {
		return domain.ErrInvalidDescription
	}
	if in.ToolCategory != nil && !domain.ToolCategory(*in.ToolCategory).IsValid() {
		return domain.ErrInvalidCategory
	}
	if in.ToolName != nil {
		if n := utf8.RuneCountInString(*in.ToolName); n < 1 || n > domain.MaxToolNameLength {
			return domain.ErrInvalidToolName
		}
	}
	if in.MaxDownloads != nil && *in.MaxDownloads <= 0 {
		return domain.ErrInvalidMaxDownloads
	}
	if in.ExpiresIn != nil {
		maxExpiry := s.config.MaxExpiry
		if maxExpiry <= 0 {
			maxExpiry = domain.MaxShareExpiry
		}
		if *in.ExpiresIn < domain.MinShareExpiry || *in.ExpiresIn > maxExpiry {
			return domain.ErrInvalidExpiry
		}
	}
	return nil
}

// newShare builds a share record stamped with the current time.
func (s *ShareService) newShare(typ domain.ShareType, in ShareCommon) *domain.Share {
	now := s.now()
	share := &domain.Share{
		Type:         typ,
		Title:        in.Title,
		Description:  in.Description,
		ToolCategory: in.ToolCategory,
		ToolName:     in.ToolName,
		MaxDownloads: in.MaxDownloads,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.ExpiresIn != nil {
		expiresAt := now.Add(*in.ExpiresIn)
		share.ExpiresAt = &expiresAt
	}
	return share
}

// insert assigns a random id and persists the share, regenerating the id
// if it collides with an existing row.
func (s *ShareService) insert(ctx context.Context, share *domain.Share) error {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		share.ID = id

		err = s.shareRepo.Create(ctx, share)
		if err == nil {
			if s.metrics != nil {
				s.metrics.SharesCreated.WithLabelValues(string(share.Type)).Inc()
			}
			return nil
		}
		if !errors.Is(err, domain.ErrShareAlreadyExists) {
			s.logger.Error().Err(err).Str("share_id", id).Msg("failed to create share")
			return fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		s.logger.Warn().Str("share_id", id).Msg("share id collision, regenerating")
	}
	return ErrIDExhausted
}

// =============================================================================
// Service Methods
// =============================================================================

// CreateFileShare records a file share and issues an upload grant for files/{id}.
func (s *ShareService) CreateFileShare(ctx context.Context, input CreateFileShareInput) (*CreateFileShareOutput, error) {
	if err := s.validateCommon(&input.ShareCommon); err != nil {
		return nil, err
	}

	input.FileName = strings.TrimSpace(input.FileName)
	if n := utf8.RuneCountInString(input.FileName); n < 1 || n > domain.MaxFileNameLength {
		return nil, domain.ErrInvalidFileName
	}
	if input.FileSize < 1 || input.FileSize > s.config.MaxFileSize {
		return nil, domain.NewDomainError(domain.ErrInvalidFileSize,
			fmt.Sprintf("must be between 1 and %d bytes", s.config.MaxFileSize), input.FileName)
	}

	share := s.newShare(domain.ShareTypeFile, input.ShareCommon)
	share.FileName = &input.FileName
	share.FileSize = &input.FileSize
	if input.FileType != "" {
		share.FileType = &input.FileType
	}

	if err := s.insert(ctx, share); err != nil {
		return nil, err
	}

	upload, err := s.store.PresignUpload(ctx, storage.ShareObjectKey(share.ID), input.FileType, input.FileSize, s.config.URLExpiry)
	if err != nil {
		s.logger.Error().Err(err).Str("share_id", share.ID).Msg("failed to presign upload")
		// A file share must not outlive a failed upload grant.
		if delErr := s.shareRepo.Delete(ctx, share.ID); delErr != nil {
			s.logger.Error().Err(delErr).Str("share_id", share.ID).Msg("failed to remove share after presign failure")
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("share_id", share.ID).
		Str("file_name", input.FileName).
		Int64("file_size", input.FileSize).
		Msg("file share created")

	return &CreateFileShareOutput{
		Share:  share,
		Upload: upload,
	}, nil
}

// CreateConfigShare records a share embedding a tool configuration.
func (s *ShareService) CreateConfigShare(ctx context.Context, input CreateConfigShareInput) (*domain.Share, error) {
	if len(input.ConfigData) > s.config.MaxConfigSize {
		return nil, domain.NewDomainError(domain.ErrConfigTooLarge,
			fmt.Sprintf("limit is %d bytes", s.config.MaxConfigSize), "configData")
	}
	if len(input.ConfigData) == 0 || !gjson.ValidBytes(input.ConfigData) || !gjson.ParseBytes(input.ConfigData).IsObject() {
		return nil, domain.ErrInvalidConfigData
	}

	// Tool identity defaults to what the configuration itself declares.
	if input.ToolCategory == nil {
		if v := gjson.GetBytes(input.ConfigData, "toolCategory"); v.Type == gjson.String {
			category := v.String()
			input.ToolCategory = &category
		}
	}
	if input.ToolName == nil {
		if v := gjson.GetBytes(input.ConfigData, "toolName"); v.Type == gjson.String {
			name := v.String()
			input.ToolName = &name
		}
	}

	if err := s.validateCommon(&input.ShareCommon); err != nil {
		return nil, err
	}

	share := s.newShare(domain.ShareTypeConfig, input.ShareCommon)
	share.ConfigData = append(json.RawMessage(nil), input.ConfigData...)

	if err := s.insert(ctx, share); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("share_id", share.ID).
		Int("config_size", len(input.ConfigData)).
		Msg("config share created")

	return share, nil
}

// GetShare returns a live share.
// Expired and missing shares both yield domain.ErrShareNotFound.
func (s *ShareService) GetShare(ctx context.Context, id string) (*domain.Share, error) {
	share, err := s.shareRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrShareNotFound) {
			return nil, domain.ErrShareNotFound
		}
		s.logger.Error().Err(err).Str("share_id", id).Msg("failed to get share")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if share.IsExpired(s.now()) {
		return nil, domain.ErrShareNotFound
	}
	if share.IsExhausted() {
		return nil, domain.ErrShareExhausted
	}

	return share, nil
}

// ListShares returns one page of live shares, newest first.
func (s *ShareService) ListShares(ctx context.Context, input ListSharesInput) (*ListSharesOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = s.config.DefaultPageSize
	}
	if limit < 1 || limit > s.config.MaxPageSize {
		return nil, domain.NewDomainError(domain.ErrInvalidLimit,
			fmt.Sprintf("must be between 1 and %d", s.config.MaxPageSize), "limit")
	}
	if input.Offset < 0 {
		return nil, domain.ErrInvalidOffset
	}

	shareType := domain.ShareType(input.Type)
	if shareType != "" && !shareType.IsValid() {
		return nil, domain.ErrInvalidShareType
	}

	result, err := s.shareRepo.ListLive(ctx, domain.ShareFilter{
		Type:   shareType,
		Now:    s.now(),
		Limit:  limit,
		Offset: input.Offset,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list shares")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return &ListSharesOutput{
		Shares: result.Items,
		Total:  result.Total,
		Limit:  limit,
		Offset: input.Offset,
	}, nil
}

// DownloadShare issues a download grant for a live file share and counts it.
func (s *ShareService) DownloadShare(ctx context.Context, id string) (*DownloadShareOutput, error) {
	share, err := s.GetShare(ctx, id)
	if err != nil {
		s.recordDownload(err)
		return nil, err
	}
	if !share.IsFile() {
		return nil, domain.ErrNotFileShare
	}

	fileName := ""
	if share.FileName != nil {
		fileName = *share.FileName
	}

	download, err := s.store.PresignDownload(ctx, storage.ShareObjectKey(share.ID), fileName, s.config.URLExpiry)
	if err != nil {
		s.logger.Error().Err(err).Str("share_id", id).Msg("failed to presign download")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	now := s.now()
	updated, err := s.shareRepo.IncrementDownload(ctx, id, now)
	if err != nil {
		s.logger.Error().Err(err).Str("share_id", id).Msg("failed to increment download count")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !updated {
		// Lost a race against another download or the expiry; report the current state.
		err := s.classifyDead(ctx, id)
		s.recordDownload(err)
		return nil, err
	}

	share.DownloadCount++
	share.UpdatedAt = now
	s.recordDownload(nil)

	s.logger.Info().
		Str("share_id", id).
		Int("download_count", share.DownloadCount).
		Msg("download granted")

	return &DownloadShareOutput{
		Share:    share,
		Download: download,
	}, nil
}

// classifyDead explains why a conditional increment matched no row.
func (s *ShareService) classifyDead(ctx context.Context, id string) error {
	share, err := s.shareRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrShareNotFound) {
			return domain.ErrShareNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if share.IsExpired(s.now()) {
		return domain.ErrShareNotFound
	}
	return domain.ErrShareExhausted
}

func (s *ShareService) recordDownload(err error) {
	if s.metrics == nil {
		return
	}
	result := "granted"
	switch {
	case errors.Is(err, domain.ErrShareExhausted):
		result = "exhausted"
	case errors.Is(err, domain.ErrShareNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	s.metrics.ShareDownloads.WithLabelValues(result).Inc()
}
