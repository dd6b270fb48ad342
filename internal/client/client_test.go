package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexconvert/flexconvert/internal/config"
	"github.com/flexconvert/flexconvert/internal/domain"
)

func newTestClient(t *testing.T, h http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(config.ClientConfig{BaseURL: srv.URL + "/", Timeout: 5 * time.Second}, zerolog.Nop())
	require.NoError(t, err)
	return c, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(config.ClientConfig{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New(config.ClientConfig{BaseURL: "not a url"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestClient_RecordUsage(t *testing.T) {
	var got trackRequest
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analytics/track", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusCreated, map[string]any{"id": "x"})
	}))

	err := c.RecordUsage(context.Background(), "pdf", "merge", 3, false)
	require.NoError(t, err)
	assert.Equal(t, trackRequest{ToolCategory: "pdf", ToolName: "merge", FileCount: 3, Success: false}, got)
}

func TestClient_Stats(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analytics/stats", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("days"))
		assert.Equal(t, "image", r.URL.Query().Get("category"))
		writeJSON(w, http.StatusOK, domain.UsageStats{
			Tools:      []domain.ToolUsage{{ToolCategory: "image", ToolName: "resize", Count: 4, SuccessCount: 3, SuccessRate: 75}},
			Total:      4,
			TimeSeries: []domain.DailyCount{{Date: "2026-03-10", Count: 4}},
		})
	}))

	stats, err := c.Stats(context.Background(), 7, "image")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	require.Len(t, stats.Tools, 1)
	assert.Equal(t, 75.0, stats.Tools[0].SuccessRate)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		target error
	}{
		{"not found", http.StatusNotFound, domain.ErrShareNotFound},
		{"exhausted", http.StatusGone, domain.ErrShareExhausted},
		{"unauthorized", http.StatusUnauthorized, domain.ErrAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]string{"error": "nope"})
			}))

			_, err := c.GetShare(context.Background(), "abc")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, "nope", apiErr.Message)
		})
	}
}

func TestClient_ShareFile(t *testing.T) {
	content := []byte("%PDF-1.7 fake")
	var uploaded []byte
	var uploadType string

	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/shares/files", func(w http.ResponseWriter, r *http.Request) {
		var req fileShareRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Report", req.Title)
		assert.Equal(t, "report.pdf", req.FileName)
		assert.Equal(t, int64(len(content)), req.FileSize)

		writeJSON(w, http.StatusCreated, UploadGrant{
			Share:         &domain.Share{ID: "abc123", Type: domain.ShareTypeFile, Title: req.Title},
			UploadURL:     srvURL + "/upload/abc123",
			UploadMethod:  http.MethodPut,
			UploadHeaders: map[string]string{"Content-Type": "application/pdf"},
		})
	})
	mux.HandleFunc("/upload/abc123", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		uploadType = r.Header.Get("Content-Type")
		uploaded, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})

	c, srv := newTestClient(t, mux)
	srvURL = srv.URL

	share, err := c.ShareFile(context.Background(), ShareOptions{Title: "Report"}, "report.pdf", "application/pdf", content)
	require.NoError(t, err)
	assert.Equal(t, "abc123", share.ID)
	assert.Equal(t, content, uploaded)
	assert.Equal(t, "application/pdf", uploadType)
}

func TestClient_UploadFailure(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("SignatureDoesNotMatch"))
	}))

	err := c.Upload(context.Background(), &UploadGrant{UploadURL: srv.URL + "/x"}, []byte("data"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "SignatureDoesNotMatch")
}

func TestClient_ConfigShareAndList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/shares/configs", func(w http.ResponseWriter, r *http.Request) {
		var req configShareRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.JSONEq(t, `{"level":7}`, string(req.ConfigData))
		writeJSON(w, http.StatusCreated, domain.Share{ID: "cfg1", Type: domain.ShareTypeConfig, Title: req.Title, ConfigData: req.ConfigData})
	})
	mux.HandleFunc("/shares", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "config", r.URL.Query().Get("type"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Empty(t, r.URL.Query().Get("offset"))
		writeJSON(w, http.StatusOK, ShareList{
			Shares: []*domain.Share{{ID: "cfg1", Type: domain.ShareTypeConfig}},
			Total:  1,
			Limit:  10,
		})
	})
	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	share, err := c.CreateConfigShare(ctx, ShareOptions{Title: "Compress preset"}, json.RawMessage(`{"level":7}`))
	require.NoError(t, err)
	assert.Equal(t, "cfg1", share.ID)

	list, err := c.ListShares(ctx, ListOptions{Type: "config", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
	require.Len(t, list.Shares, 1)
}

func TestClient_DownloadAndFetch(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/shares/abc/download", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		writeJSON(w, http.StatusOK, DownloadGrant{
			Share:       &domain.Share{ID: "abc", DownloadCount: 1},
			DownloadURL: srvURL + "/blob/abc",
		})
	})
	mux.HandleFunc("/blob/abc", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	})
	c, srv := newTestClient(t, mux)
	srvURL = srv.URL

	grant, err := c.DownloadShare(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, 1, grant.Share.DownloadCount)

	data, err := c.Fetch(context.Background(), grant)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}
