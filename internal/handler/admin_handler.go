package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/flexconvert/flexconvert/internal/auth"
	"github.com/flexconvert/flexconvert/internal/service"
)

// AdminHandler serves the internal /admin endpoints.
type AdminHandler struct {
	cleanupService *service.CleanupService
	authConfig     auth.Config
	logger         zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(cleanupService *service.CleanupService, authConfig auth.Config, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		cleanupService: cleanupService,
		authConfig:     authConfig,
		logger:         logger.With().Str("handler", "admin").Logger(),
	}
}

// RegisterRoutes mounts the admin routes on r behind the admin key check.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireAdmin(h.authConfig))
		r.Post("/cleanup", h.Cleanup)
	})
}

// Cleanup handles POST /admin/cleanup.
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	result := h.cleanupService.RunOnce(r.Context())

	h.logger.Info().
		Int("shares_deleted", result.SharesDeleted).
		Int("errors", result.Errors).
		Bool("skipped", result.Skipped).
		Msg("manual cleanup triggered")

	status := http.StatusOK
	if result.Skipped {
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}
