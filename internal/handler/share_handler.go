package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/flexconvert/flexconvert/internal/domain"
	"github.com/flexconvert/flexconvert/internal/service"
)

// ShareHandler serves the /shares endpoints.
type ShareHandler struct {
	shareService *service.ShareService
	logger       zerolog.Logger
}

// NewShareHandler creates a new ShareHandler.
func NewShareHandler(shareService *service.ShareService, logger zerolog.Logger) *ShareHandler {
	return &ShareHandler{
		shareService: shareService,
		logger:       logger.With().Str("handler", "share").Logger(),
	}
}

// RegisterRoutes mounts the share routes on r.
func (h *ShareHandler) RegisterRoutes(r chi.Router) {
	r.Route("/shares", func(r chi.Router) {
		r.Get("/", h.ListShares)
		r.Post("/files", h.CreateFileShare)
		r.Post("/configs", h.CreateConfigShare)
		r.Get("/{id}", h.GetShare)
		r.Post("/{id}/download", h.DownloadShare)
	})
}

// =============================================================================
// Request/Response Types
// =============================================================================

// shareCommonRequest holds the fields accepted by both create endpoints.
type shareCommonRequest struct {
	Title          string  `json:"title"`
	Description    *string `json:"description,omitempty"`
	ToolCategory   *string `json:"toolCategory,omitempty"`
	ToolName       *string `json:"toolName,omitempty"`
	MaxDownloads   *int    `json:"maxDownloads,omitempty"`
	ExpiresInHours *int    `json:"expiresInHours,omitempty"`
}

// maxExpiresInHours bounds expiresInHours before it is converted to a duration.
var maxExpiresInHours = int(domain.MaxShareExpiry / time.Hour)

func (c shareCommonRequest) toInput() (service.ShareCommon, error) {
	in := service.ShareCommon{
		Title:        c.Title,
		Description:  c.Description,
		ToolCategory: c.ToolCategory,
		ToolName:     c.ToolName,
		MaxDownloads: c.MaxDownloads,
	}
	if c.ExpiresInHours != nil {
		hours := *c.ExpiresInHours
		if hours < 1 || hours > maxExpiresInHours {
			return in, domain.ErrInvalidExpiry
		}
		d := time.Duration(hours) * time.Hour
		in.ExpiresIn = &d
	}
	return in, nil
}

// CreateFileShareRequest is the body of POST /shares/files.
type CreateFileShareRequest struct {
	shareCommonRequest
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
}

// CreateFileShareResponse returns the share and where to upload its content.
type CreateFileShareResponse struct {
	Share         *domain.Share     `json:"share"`
	UploadURL     string            `json:"uploadUrl"`
	UploadMethod  string            `json:"uploadMethod"`
	UploadHeaders map[string]string `json:"uploadHeaders,omitempty"`
	ExpiresAt     time.Time         `json:"expiresAt"`
}

// CreateConfigShareRequest is the body of POST /shares/configs.
type CreateConfigShareRequest struct {
	shareCommonRequest
	ConfigData json.RawMessage `json:"configData"`
}

// ListSharesResponse is one page of live shares.
type ListSharesResponse struct {
	Shares []*domain.Share `json:"shares"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// DownloadShareResponse returns a download grant.
type DownloadShareResponse struct {
	Share       *domain.Share `json:"share"`
	DownloadURL string        `json:"downloadUrl"`
	ExpiresAt   time.Time     `json:"expiresAt"`
}

// =============================================================================
// Handlers
// =============================================================================

// CreateFileShare handles POST /shares/files.
func (h *ShareHandler) CreateFileShare(w http.ResponseWriter, r *http.Request) {
	var req CreateFileShareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "request body must be a valid JSON object")
		return
	}

	common, err := req.toInput()
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	out, err := h.shareService.CreateFileShare(r.Context(), service.CreateFileShareInput{
		ShareCommon: common,
		FileName:    req.FileName,
		FileType:    req.FileType,
		FileSize:    req.FileSize,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	headers := make(map[string]string, len(out.Upload.Headers))
	for k := range out.Upload.Headers {
		headers[k] = out.Upload.Headers.Get(k)
	}

	writeJSON(w, http.StatusCreated, CreateFileShareResponse{
		Share:         out.Share,
		UploadURL:     out.Upload.URL,
		UploadMethod:  out.Upload.Method,
		UploadHeaders: headers,
		ExpiresAt:     out.Upload.ExpiresAt,
	})
}

// CreateConfigShare handles POST /shares/configs.
func (h *ShareHandler) CreateConfigShare(w http.ResponseWriter, r *http.Request) {
	var req CreateConfigShareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "request body must be a valid JSON object")
		return
	}

	common, err := req.toInput()
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	share, err := h.shareService.CreateConfigShare(r.Context(), service.CreateConfigShareInput{
		ShareCommon: common,
		ConfigData:  req.ConfigData,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, share)
}

// GetShare handles GET /shares/{id}.
func (h *ShareHandler) GetShare(w http.ResponseWriter, r *http.Request) {
	share, err := h.shareService.GetShare(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, share)
}

// ListShares handles GET /shares.
func (h *ShareHandler) ListShares(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	input := service.ListSharesInput{Type: query.Get("type")}
	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, h.logger, r, domain.NewDomainError(domain.ErrInvalidLimit, "not an integer", "limit"))
			return
		}
		input.Limit = limit
	}
	if v := query.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, h.logger, r, domain.NewDomainError(domain.ErrInvalidOffset, "not an integer", "offset"))
			return
		}
		input.Offset = offset
	}

	out, err := h.shareService.ListShares(r.Context(), input)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	shares := out.Shares
	if shares == nil {
		shares = []*domain.Share{}
	}
	writeJSON(w, http.StatusOK, ListSharesResponse{
		Shares: shares,
		Total:  out.Total,
		Limit:  out.Limit,
		Offset: out.Offset,
	})
}

// DownloadShare handles POST /shares/{id}/download.
func (h *ShareHandler) DownloadShare(w http.ResponseWriter, r *http.Request) {
	out, err := h.shareService.DownloadShare(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, DownloadShareResponse{
		Share:       out.Share,
		DownloadURL: out.Download.URL,
		ExpiresAt:   out.Download.ExpiresAt,
	})
}
