// Package client talks to the FlexConvert backend: usage tracking and
// share creation, lookup and download.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/flexconvert/flexconvert/internal/config"
	"github.com/flexconvert/flexconvert/internal/domain"
)

// ErrNotConfigured indicates no backend URL was configured.
var ErrNotConfigured = errors.New("backend URL is not configured")

// maxResponseSize bounds JSON responses read from the backend.
const maxResponseSize = 4 << 20

// Client is an HTTP client for the backend API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// New creates a Client from configuration.
func New(cfg config.ClientConfig, logger zerolog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrNotConfigured
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid client.base_url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "client").Logger(),
	}, nil
}

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// Is maps share status codes onto the domain sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrShareNotFound:
		return e.StatusCode == http.StatusNotFound
	case domain.ErrShareExhausted:
		return e.StatusCode == http.StatusGone
	case domain.ErrAccessDenied:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// =============================================================================
// Request/Response Types
// =============================================================================

// ShareOptions are the fields common to both share kinds.
type ShareOptions struct {
	Title          string  `json:"title"`
	Description    *string `json:"description,omitempty"`
	ToolCategory   *string `json:"toolCategory,omitempty"`
	ToolName       *string `json:"toolName,omitempty"`
	MaxDownloads   *int    `json:"maxDownloads,omitempty"`
	ExpiresInHours *int    `json:"expiresInHours,omitempty"`
}

type fileShareRequest struct {
	ShareOptions
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
}

type configShareRequest struct {
	ShareOptions
	ConfigData json.RawMessage `json:"configData"`
}

// UploadGrant is where to PUT a file share's content.
type UploadGrant struct {
	Share         *domain.Share     `json:"share"`
	UploadURL     string            `json:"uploadUrl"`
	UploadMethod  string            `json:"uploadMethod"`
	UploadHeaders map[string]string `json:"uploadHeaders"`
	ExpiresAt     time.Time         `json:"expiresAt"`
}

// DownloadGrant is a short-lived URL for a file share's content.
type DownloadGrant struct {
	Share       *domain.Share `json:"share"`
	DownloadURL string        `json:"downloadUrl"`
	ExpiresAt   time.Time     `json:"expiresAt"`
}

// ShareList is one page of live shares.
type ShareList struct {
	Shares []*domain.Share `json:"shares"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// ListOptions filters and pages a share listing. Zero values use server defaults.
type ListOptions struct {
	Type   string
	Limit  int
	Offset int
}

type trackRequest struct {
	ToolCategory string `json:"toolCategory"`
	ToolName     string `json:"toolName"`
	FileCount    int    `json:"fileCount"`
	Success      bool   `json:"success"`
}

// =============================================================================
// Analytics
// =============================================================================

// RecordUsage posts one usage event.
func (c *Client) RecordUsage(ctx context.Context, category, tool string, fileCount int, success bool) error {
	return c.do(ctx, http.MethodPost, "/analytics/track", trackRequest{
		ToolCategory: category,
		ToolName:     tool,
		FileCount:    fileCount,
		Success:      success,
	}, nil)
}

// Stats fetches usage aggregates. days 0 means all time.
func (c *Client) Stats(ctx context.Context, days int, category string) (*domain.UsageStats, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	if category != "" {
		q.Set("category", category)
	}

	var stats domain.UsageStats
	if err := c.do(ctx, http.MethodGet, withQuery("/analytics/stats", q), nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// =============================================================================
// Shares
// =============================================================================

// CreateFileShare registers a file share and returns its upload grant.
func (c *Client) CreateFileShare(ctx context.Context, opts ShareOptions, fileName, fileType string, size int64) (*UploadGrant, error) {
	var grant UploadGrant
	err := c.do(ctx, http.MethodPost, "/shares/files", fileShareRequest{
		ShareOptions: opts,
		FileName:     fileName,
		FileType:     fileType,
		FileSize:     size,
	}, &grant)
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

// Upload sends data to the grant's pre-signed URL.
func (c *Client) Upload(ctx context.Context, grant *UploadGrant, data []byte) error {
	method := grant.UploadMethod
	if method == "" {
		method = http.MethodPut
	}

	req, err := http.NewRequestWithContext(ctx, method, grant.UploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	for k, v := range grant.UploadHeaders {
		req.Header.Set(k, v)
	}
	req.ContentLength = int64(len(data))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return nil
}

// ShareFile creates a file share and uploads its content.
func (c *Client) ShareFile(ctx context.Context, opts ShareOptions, fileName, fileType string, data []byte) (*domain.Share, error) {
	grant, err := c.CreateFileShare(ctx, opts, fileName, fileType, int64(len(data)))
	if err != nil {
		return nil, err
	}
	if err := c.Upload(ctx, grant, data); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("share_id", grant.Share.ID).
		Str("file", fileName).
		Int("size", len(data)).
		Msg("file shared")
	return grant.Share, nil
}

// CreateConfigShare stores a tool configuration inline.
func (c *Client) CreateConfigShare(ctx context.Context, opts ShareOptions, configData json.RawMessage) (*domain.Share, error) {
	var share domain.Share
	err := c.do(ctx, http.MethodPost, "/shares/configs", configShareRequest{
		ShareOptions: opts,
		ConfigData:   configData,
	}, &share)
	if err != nil {
		return nil, err
	}
	return &share, nil
}

// GetShare fetches a live share.
func (c *Client) GetShare(ctx context.Context, id string) (*domain.Share, error) {
	var share domain.Share
	if err := c.do(ctx, http.MethodGet, "/shares/"+url.PathEscape(id), nil, &share); err != nil {
		return nil, err
	}
	return &share, nil
}

// ListShares returns a page of live shares.
func (c *Client) ListShares(ctx context.Context, opts ListOptions) (*ShareList, error) {
	q := url.Values{}
	if opts.Type != "" {
		q.Set("type", opts.Type)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}

	var list ShareList
	if err := c.do(ctx, http.MethodGet, withQuery("/shares", q), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// DownloadShare consumes one download and returns the grant.
func (c *Client) DownloadShare(ctx context.Context, id string) (*DownloadGrant, error) {
	var grant DownloadGrant
	if err := c.do(ctx, http.MethodPost, "/shares/"+url.PathEscape(id)+"/download", nil, &grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

// Fetch downloads the content behind a grant.
func (c *Client) Fetch(ctx context.Context, grant *DownloadGrant) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, grant.DownloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	}
	return io.ReadAll(resp.Body)
}

// =============================================================================
// Transport
// =============================================================================

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("backend request")

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
