// Package metrics provides Prometheus metrics for the repoview server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scan metrics
	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repoview_scans_total",
			Help: "Total number of link scans by outcome",
		},
		[]string{"outcome"},
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "repoview_scan_duration_seconds",
			Help:    "Link scan duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	brokenLinks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "repoview_broken_links",
			Help: "Broken internal links found by the last successful scan",
		},
	)

	filesScanned = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "repoview_files_scanned",
			Help: "Markdown documents read by the last successful scan",
		},
	)

	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repoview_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repoview_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Live reload metrics
	websocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "repoview_websocket_clients",
			Help: "Number of connected live-reload clients",
		},
	)

	reloadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "repoview_reloads_total",
			Help: "Total reload notifications broadcast after file changes",
		},
	)

	// Render cache metrics
	renderCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repoview_render_cache_lookups_total",
			Help: "Rendered-markdown cache lookups by result",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordScan records a finished scan. The gauges only move on success.
func RecordScan(files, broken int, duration time.Duration, err error) {
	scanDuration.Observe(duration.Seconds())
	if err != nil {
		scansTotal.WithLabelValues("error").Inc()
		return
	}
	scansTotal.WithLabelValues("success").Inc()
	brokenLinks.Set(float64(broken))
	filesScanned.Set(float64(files))
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetWebsocketClients sets the number of connected live-reload clients.
func SetWebsocketClients(count int) {
	websocketClients.Set(float64(count))
}

// RecordReload records a reload broadcast.
func RecordReload() {
	reloadsTotal.Inc()
}

// RecordRenderCache records a render cache lookup.
func RecordRenderCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	renderCacheLookups.WithLabelValues(result).Inc()
}
