// Package domain contains the core business entities for FlexConvert.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// Share Errors
	// ===========================================

	// ErrShareNotFound indicates the share does not exist or is expired.
	// Expired and missing shares are deliberately indistinguishable.
	ErrShareNotFound = errors.New("share not found")

	// ErrShareExhausted indicates the share reached its download limit.
	ErrShareExhausted = errors.New("share download limit reached")

	// ErrNotFileShare indicates a file operation was requested on a config share.
	ErrNotFileShare = errors.New("share is not a file share")

	// ErrShareAlreadyExists indicates an identifier collision on insert.
	ErrShareAlreadyExists = errors.New("share already exists")

	// ErrInvalidShareType indicates the share type is not file or config.
	ErrInvalidShareType = errors.New("share type must be 'file' or 'config'")

	// ErrInvalidTitle indicates the title is empty or too long (1-200 chars).
	ErrInvalidTitle = errors.New("title must be between 1 and 200 characters")

	// ErrInvalidDescription indicates the description is too long.
	ErrInvalidDescription = errors.New("description must be at most 1000 characters")

	// ErrInvalidFileName indicates the file name is empty or too long.
	ErrInvalidFileName = errors.New("file name must be between 1 and 255 characters")

	// ErrInvalidFileSize indicates the declared file size is out of range.
	ErrInvalidFileSize = errors.New("file size is out of range")

	// ErrInvalidMaxDownloads indicates a non-positive download limit.
	ErrInvalidMaxDownloads = errors.New("max downloads must be greater than zero")

	// ErrInvalidExpiry indicates the requested lifetime is out of range.
	ErrInvalidExpiry = errors.New("expiry must be between 1 hour and 30 days")

	// ErrInvalidConfigData indicates the configuration payload is not valid JSON.
	ErrInvalidConfigData = errors.New("config data must be a valid JSON object")

	// ErrConfigTooLarge indicates the configuration payload exceeds the size limit.
	ErrConfigTooLarge = errors.New("config data is too large")

	// ===========================================
	// Analytics Errors
	// ===========================================

	// ErrInvalidCategory indicates the tool category is not in the allow-list.
	ErrInvalidCategory = errors.New("tool category must be one of: pdf, image, convert")

	// ErrInvalidToolName indicates the tool name is empty or too long.
	ErrInvalidToolName = errors.New("tool name must be between 1 and 100 characters")

	// ErrInvalidDays indicates the stats window is out of range.
	ErrInvalidDays = errors.New("days must be between 1 and 365")

	// ===========================================
	// Pagination Errors
	// ===========================================

	// ErrInvalidLimit indicates the page size is out of range.
	ErrInvalidLimit = errors.New("limit is out of range")

	// ErrInvalidOffset indicates a negative offset.
	ErrInvalidOffset = errors.New("offset must not be negative")

	// ===========================================
	// Authentication Errors
	// ===========================================

	// ErrAccessDenied indicates the admin key is missing or wrong.
	ErrAccessDenied = errors.New("access denied")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., share id, parameter name).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}

// IsValidationError reports whether err is a client input error.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidShareType, ErrInvalidTitle, ErrInvalidDescription,
		ErrInvalidFileName, ErrInvalidFileSize, ErrInvalidMaxDownloads,
		ErrInvalidExpiry, ErrInvalidConfigData, ErrConfigTooLarge,
		ErrInvalidCategory, ErrInvalidToolName, ErrInvalidDays,
		ErrInvalidLimit, ErrInvalidOffset, ErrNotFileShare,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
