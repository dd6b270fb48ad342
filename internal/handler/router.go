// Package handler provides the HTTP API for FlexConvert.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/flexconvert/flexconvert/internal/metrics"
	"github.com/flexconvert/flexconvert/internal/repository"
)

// Router wires the API handlers onto a chi mux.
type Router struct {
	shareHandler     *ShareHandler
	analyticsHandler *AnalyticsHandler
	adminHandler     *AdminHandler
	health           repository.DatabaseHealth
	metrics          *metrics.Metrics
	maxBodySize      int64
	logger           zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	ShareHandler     *ShareHandler
	AnalyticsHandler *AnalyticsHandler
	AdminHandler     *AdminHandler
	Health           repository.DatabaseHealth
	Metrics          *metrics.Metrics
	Logger           zerolog.Logger

	// MaxBodySize bounds request bodies. Zero means 1MB.
	MaxBodySize int64
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = defaultMaxBodySize
	}
	return &Router{
		shareHandler:     config.ShareHandler,
		analyticsHandler: config.AnalyticsHandler,
		adminHandler:     config.AdminHandler,
		health:           config.Health,
		metrics:          config.Metrics,
		maxBodySize:      config.MaxBodySize,
		logger:           config.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(rt.maxBodySize))

	// Health check (no auth)
	r.Get("/health", rt.handleHealth)

	if rt.shareHandler != nil {
		rt.shareHandler.RegisterRoutes(r)
	}
	if rt.analyticsHandler != nil {
		rt.analyticsHandler.RegisterRoutes(r)
	}
	if rt.adminHandler != nil {
		rt.adminHandler.RegisterRoutes(r)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorMessage(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// handleHealth handles health check requests.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if rt.health != nil {
		if err := rt.health.Ping(r.Context()); err != nil {
			rt.logger.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// accessLog logs each request and records HTTP metrics.
func (rt *Router) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		if rt.metrics != nil {
			rt.metrics.RecordHTTPRequest(r.Method, route, status, duration)
		}

		rt.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", duration).
			Msg("request")
	})
}
