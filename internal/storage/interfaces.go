// Package storage defines the object storage boundary for shared files.
// The service never streams file bytes itself: clients upload and download
// directly against short-lived pre-signed URLs.
package storage

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrObjectNotFound indicates the object does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// PresignedRequest is a time-limited grant to perform one HTTP request
// against the object store.
type PresignedRequest struct {
	// URL is the pre-signed URL.
	URL string `json:"url"`

	// Method is the HTTP method the grant is valid for.
	Method string `json:"method"`

	// Headers must be sent with the request for the signature to match.
	Headers http.Header `json:"headers,omitempty"`

	// ExpiresAt is when the grant stops being valid.
	ExpiresAt time.Time `json:"expiresAt"`
}

// ObjectStore defines the operations the sharing service needs from an
// object storage backend.
type ObjectStore interface {
	// PresignUpload issues a PUT grant for key.
	PresignUpload(ctx context.Context, key, contentType string, size int64, expiry time.Duration) (*PresignedRequest, error)

	// PresignDownload issues a GET grant for key that makes the browser
	// save the object under fileName.
	PresignDownload(ctx context.Context, key, fileName string, expiry time.Duration) (*PresignedRequest, error)

	// Delete removes the object at key.
	// Returns ErrObjectNotFound if the object doesn't exist.
	Delete(ctx context.Context, key string) error
}

// IsNotFound reports whether err means the object is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}
