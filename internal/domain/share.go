package domain

import (
	"encoding/json"
	"time"
)

// ShareType distinguishes uploaded-file shares from tool-configuration shares.
type ShareType string

const (
	// ShareTypeFile points to an uploaded object under files/{id}.
	ShareTypeFile ShareType = "file"

	// ShareTypeConfig embeds a tool configuration JSON document.
	ShareTypeConfig ShareType = "config"
)

// IsValid reports whether t is a known share type.
func (t ShareType) IsValid() bool {
	return t == ShareTypeFile || t == ShareTypeConfig
}

// Share limits.
const (
	// ShareIDLength is the length of generated share identifiers.
	ShareIDLength = 12

	// MaxTitleLength is the maximum title length in characters.
	MaxTitleLength = 200

	// MaxDescriptionLength is the maximum description length in characters.
	MaxDescriptionLength = 1000

	// MaxFileNameLength is the maximum shared file name length.
	MaxFileNameLength = 255

	// MinShareExpiry and MaxShareExpiry bound a requested share lifetime.
	MinShareExpiry = time.Hour
	MaxShareExpiry = 30 * 24 * time.Hour
)

// Share is a persisted, time and download limited pointer to either an
// uploaded file or an embedded tool configuration.
type Share struct {
	// ID is a random 12-character alphanumeric identifier.
	ID string `json:"id"`

	// Type is "file" or "config".
	Type ShareType `json:"type"`

	// Title is a human readable label (1-200 chars).
	Title string `json:"title"`

	// Description is optional free text.
	Description *string `json:"description,omitempty"`

	// File metadata, set for file shares.
	FileName *string `json:"fileName,omitempty"`
	FileType *string `json:"fileType,omitempty"`
	FileSize *int64  `json:"fileSize,omitempty"`

	// ConfigData is the embedded configuration, set for config shares.
	ConfigData json.RawMessage `json:"configData,omitempty"`

	// ToolCategory and ToolName identify the tool the share belongs to.
	ToolCategory *string `json:"toolCategory,omitempty"`
	ToolName     *string `json:"toolName,omitempty"`

	// DownloadCount is incremented atomically on each successful download.
	DownloadCount int `json:"downloadCount"`

	// MaxDownloads caps DownloadCount. Nil means unlimited.
	MaxDownloads *int `json:"maxDownloads,omitempty"`

	// ExpiresAt is when the share stops being live. Nil means never.
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsExpired reports whether the share's expiry has passed at now.
func (s *Share) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

// IsExhausted reports whether the share reached its download limit.
func (s *Share) IsExhausted() bool {
	return s.MaxDownloads != nil && s.DownloadCount >= *s.MaxDownloads
}

// IsLive reports whether the share is neither expired nor exhausted at now.
func (s *Share) IsLive(now time.Time) bool {
	return !s.IsExpired(now) && !s.IsExhausted()
}

// IsFile returns true for file shares.
func (s *Share) IsFile() bool {
	return s.Type == ShareTypeFile
}

// ShareFilter narrows a share listing.
type ShareFilter struct {
	// Type restricts the listing to one share type. Empty means all.
	Type ShareType

	// Now is the reference time for liveness.
	Now time.Time

	Limit  int
	Offset int
}
