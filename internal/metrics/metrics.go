// Package metrics provides Prometheus instrumentation for FlexConvert.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flexconvert"

// Metrics holds every collector the server exports.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Sharing
	SharesCreated   *prometheus.CounterVec
	ShareDownloads  *prometheus.CounterVec
	CleanupRuns     prometheus.Counter
	CleanupDeleted  prometheus.Counter
	CleanupErrors   prometheus.Counter
	CleanupDuration prometheus.Histogram
	CleanupLastRun  prometheus.Gauge

	// Analytics
	UsageEvents      *prometheus.CounterVec
	StatsCacheHits   prometheus.Counter
	StatsCacheMisses prometheus.Counter
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		SharesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shares",
			Name:      "created_total",
			Help:      "Shares created by type.",
		}, []string{"type"}),

		ShareDownloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shares",
			Name:      "downloads_total",
			Help:      "Download attempts by result (granted, exhausted, not_found).",
		}, []string{"result"}),

		CleanupRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "runs_total",
			Help:      "Completed expired-share sweeps.",
		}),

		CleanupDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "deleted_total",
			Help:      "Expired shares deleted.",
		}),

		CleanupErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "errors_total",
			Help:      "Errors encountered while sweeping.",
		}),

		CleanupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "duration_seconds",
			Help:      "Sweep duration.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),

		CleanupLastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last sweep.",
		}),

		UsageEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "usage_events_total",
			Help:      "Usage events recorded by category and outcome.",
		}, []string{"category", "success"}),

		StatsCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "stats_cache_hits_total",
			Help:      "Stats requests served from cache.",
		}),

		StatsCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "stats_cache_misses_total",
			Help:      "Stats requests computed from the database.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SharesCreated,
		m.ShareDownloads,
		m.CleanupRuns,
		m.CleanupDeleted,
		m.CleanupErrors,
		m.CleanupDuration,
		m.CleanupLastRun,
		m.UsageEvents,
		m.StatsCacheHits,
		m.StatsCacheMisses,
	)

	return m
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordCleanupRun records a completed sweep.
func (m *Metrics) RecordCleanupRun(durationSeconds float64, deleted, errors int) {
	m.CleanupRuns.Inc()
	m.CleanupDuration.Observe(durationSeconds)
	m.CleanupDeleted.Add(float64(deleted))
	m.CleanupErrors.Add(float64(errors))
	m.CleanupLastRun.SetToCurrentTime()
}

// RecordUsageEvent counts a recorded usage event.
func (m *Metrics) RecordUsageEvent(category string, success bool) {
	m.UsageEvents.WithLabelValues(category, strconv.FormatBool(success)).Inc()
}
