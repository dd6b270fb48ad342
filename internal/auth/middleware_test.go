package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexconvert/flexconvert/internal/pkg/crypto"
)

func TestRequireAdmin(t *testing.T) {
	hash, err := crypto.HashAdminKey("s3cret-admin-key")
	require.NoError(t, err)

	tests := []struct {
		name       string
		config     Config
		header     string
		value      string
		wantStatus int
	}{
		{
			name:       "admin key header",
			config:     Config{KeyHash: hash},
			header:     AdminKeyHeader,
			value:      "s3cret-admin-key",
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "bearer token",
			config:     Config{KeyHash: hash},
			header:     AuthorizationHeader,
			value:      "Bearer s3cret-admin-key",
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "wrong key",
			config:     Config{KeyHash: hash},
			header:     AdminKeyHeader,
			value:      "guess",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing key",
			config:     Config{KeyHash: hash},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "no hash configured",
			config:     Config{},
			header:     AdminKeyHeader,
			value:      "s3cret-admin-key",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sawAdmin bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				sawAdmin = IsAdmin(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodPost, "/admin/cleanup", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()

			RequireAdmin(tt.config)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.True(t, sawAdmin)
			} else {
				assert.JSONEq(t, `{"error":"access denied"}`, rec.Body.String())
			}
		})
	}
}

func TestExtractKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", ExtractKey(req))

	req.Header.Set(AuthorizationHeader, "bearer abc")
	assert.Equal(t, "abc", ExtractKey(req))

	req.Header.Set(AdminKeyHeader, "xyz")
	assert.Equal(t, "xyz", ExtractKey(req))
}
