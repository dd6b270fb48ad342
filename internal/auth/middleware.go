// Package auth guards administrative endpoints with a bcrypt-hashed admin key.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/flexconvert/flexconvert/internal/domain"
	"github.com/flexconvert/flexconvert/internal/pkg/crypto"
)

const (
	// AdminKeyHeader carries the plaintext admin key.
	AdminKeyHeader = "X-Admin-Key"

	// AuthorizationHeader may carry the admin key as a bearer token.
	AuthorizationHeader = "Authorization"

	bearerPrefix = "Bearer "
)

type contextKey string

// AdminContextKey marks requests that presented a valid admin key.
const AdminContextKey contextKey = "admin"

// Config contains configuration for the admin middleware.
type Config struct {
	// KeyHash is the bcrypt hash of the admin key. Empty rejects every request.
	KeyHash string
}

// ExtractKey returns the admin key presented on r, or "".
func ExtractKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(AdminKeyHeader)); key != "" {
		return key
	}
	header := r.Header.Get(AuthorizationHeader)
	if len(header) > len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}
	return ""
}

// Verify checks the presented key against the configured hash.
func Verify(config Config, key string) error {
	if config.KeyHash == "" || key == "" {
		return domain.ErrAccessDenied
	}
	if err := crypto.CompareAdminKey(config.KeyHash, key); err != nil {
		if errors.Is(err, crypto.ErrKeyMismatch) {
			return domain.ErrAccessDenied
		}
		return err
	}
	return nil
}

// RequireAdmin creates a middleware that rejects requests without a valid admin key.
func RequireAdmin(config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := Verify(config, ExtractKey(r)); err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("admin authentication failed")
				writeAuthError(w, err)
				return
			}

			r = r.WithContext(context.WithValue(r.Context(), AdminContextKey, true))
			next.ServeHTTP(w, r)
		})
	}
}

// IsAdmin reports whether the request context was authenticated as admin.
func IsAdmin(ctx context.Context) bool {
	v, _ := ctx.Value(AdminContextKey).(bool)
	return v
}

// writeAuthError writes a JSON error response.
func writeAuthError(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	message := domain.ErrAccessDenied.Error()
	if !errors.Is(err, domain.ErrAccessDenied) {
		status = http.StatusInternalServerError
		message = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="flexconvert-admin"`)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
