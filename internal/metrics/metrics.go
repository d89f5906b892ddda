// Package metrics provides Prometheus instrumentation for dash2hls.
//
// Metrics are registered with the default registry through promauto and are
// exposed by mounting promhttp.Handler() on the server's /metrics route.
// All names are prefixed with "dash2hls_".
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dash2hls_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dash2hls_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dash2hls_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Manifest metrics
var (
	ManifestFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dash2hls_manifest_fetch_duration_seconds",
			Help:    "Manifest fetch duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"status"}, // "ok", "error"
	)

	ManifestParsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dash2hls_manifest_parses_total",
			Help: "Total number of manifest parses by format and result",
		},
		[]string{"format", "result"},
	)

	PlaylistSegments = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dash2hls_playlist_segments",
			Help:    "Number of segments in synthesized playlists",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20, 50, 100, 500},
		},
	)

	LiveEdgeSegment = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dash2hls_live_edge_segment",
			Help: "Most recent live edge segment number per stream",
		},
		[]string{"stream"},
	)
)

// Result labels for ManifestParsesTotal.
const (
	ResultOK    = "ok"
	ResultError = "error"
)
