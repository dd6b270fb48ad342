// Package memory implements storage.ObjectStore without a real bucket.
// It is used when no storage endpoint is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/flexconvert/flexconvert/internal/storage"
)

// Store records issued grants and tracks which keys exist.
type Store struct {
	mu      sync.Mutex
	baseURL string
	objects map[string]bool
	deleted []string
}

// NewStore creates a Store whose grant URLs start with baseURL.
func NewStore(baseURL string) *Store {
	return &Store{
		baseURL: baseURL,
		objects: make(map[string]bool),
	}
}

func (s *Store) grantURL(key string, expiresAt time.Time, extra url.Values) string {
	q := url.Values{}
	q.Set("expires", expiresAt.Format(time.RFC3339))
	for k, v := range extra {
		q[k] = v
	}
	return fmt.Sprintf("%s/%s?%s", s.baseURL, key, q.Encode())
}

// PresignUpload issues a PUT grant and marks key as present.
func (s *Store) PresignUpload(ctx context.Context, key, contentType string, size int64, expiry time.Duration) (*storage.PresignedRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = true
	expiresAt := time.Now().UTC().Add(expiry)

	headers := http.Header{}
	if contentType != "" {
		headers.Set("Content-Type", contentType)
	}

	return &storage.PresignedRequest{
		URL:       s.grantURL(key, expiresAt, nil),
		Method:    http.MethodPut,
		Headers:   headers,
		ExpiresAt: expiresAt,
	}, nil
}

// PresignDownload issues a GET grant.
func (s *Store) PresignDownload(ctx context.Context, key, fileName string, expiry time.Duration) (*storage.PresignedRequest, error) {
	expiresAt := time.Now().UTC().Add(expiry)
	extra := url.Values{}
	if fileName != "" {
		extra.Set("response-content-disposition", storage.ContentDisposition(fileName))
	}

	return &storage.PresignedRequest{
		URL:       s.grantURL(key, expiresAt, extra),
		Method:    http.MethodGet,
		ExpiresAt: expiresAt,
	}, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.objects[key] {
		return fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	}
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

// Put marks key as present.
func (s *Store) Put(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = true
}

// Deleted returns the keys removed so far, in order.
func (s *Store) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// Ensure Store implements storage.ObjectStore.
var _ storage.ObjectStore = (*Store)(nil)
