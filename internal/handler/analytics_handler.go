package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/flexconvert/flexconvert/internal/domain"
	"github.com/flexconvert/flexconvert/internal/service"
)

// AnalyticsHandler serves the /analytics endpoints.
type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
	logger           zerolog.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(analyticsService *service.AnalyticsService, logger zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		logger:           logger.With().Str("handler", "analytics").Logger(),
	}
}

// RegisterRoutes mounts the analytics routes on r.
func (h *AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Post("/track", h.Track)
		r.Get("/stats", h.Stats)
	})
}

// TrackRequest is the body of POST /analytics/track.
type TrackRequest struct {
	ToolCategory string `json:"toolCategory"`
	ToolName     string `json:"toolName"`
	FileCount    *int   `json:"fileCount,omitempty"`
	Success      *bool  `json:"success,omitempty"`
}

// Track handles POST /analytics/track.
func (h *AnalyticsHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "request body must be a valid JSON object")
		return
	}

	event, err := h.analyticsService.Track(r.Context(), service.TrackInput{
		ToolCategory: req.ToolCategory,
		ToolName:     req.ToolName,
		FileCount:    req.FileCount,
		Success:      req.Success,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// Stats handles GET /analytics/stats.
func (h *AnalyticsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	input := service.StatsInput{Category: query.Get("category")}
	if v := query.Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, h.logger, r, domain.NewDomainError(domain.ErrInvalidDays, "not an integer", "days"))
			return
		}
		input.Days = days
	}

	stats, err := h.analyticsService.GetStats(r.Context(), input)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
