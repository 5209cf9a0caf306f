// Package metrics defines the Prometheus instrumentation shared across components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache metrics
var (
	// CacheHits tracks cache reads that returned a live entry
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache reads that returned a live entry",
		},
	)

	// CacheMisses tracks cache reads for absent or expired keys
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache reads for absent or expired keys",
		},
	)

	// CacheEvictions tracks entries removed by lazy expiry or the sweep
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total expired entries evicted from the cache",
		},
	)

	// CacheSize tracks the current number of cache entries (including expired)
	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_entries_current",
			Help: "Current number of cache entries (including not yet swept)",
		},
	)
)

// Refresh scheduler metrics
var (
	// RefreshesTotal tracks refresh cycles by kind and outcome
	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refreshes_total",
			Help: "Total refresh cycles by kind and status",
		},
		[]string{"kind", "status"},
	)

	// RefreshDuration tracks provider fetch latency per refresh kind
	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refresh_duration_seconds",
			Help:    "Refresh cycle duration in seconds by kind",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)
)

// WebSocket metrics
var (
	// WSConnectedClients tracks currently connected WebSocket clients
	WSConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connected_clients",
			Help: "Number of currently connected WebSocket clients",
		},
	)

	// WSFramesSent tracks outbound frames by frame type
	WSFramesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_frames_sent_total",
			Help: "Total outbound WebSocket frames by type",
		},
		[]string{"type"},
	)

	// WSFramesDropped tracks frames dropped because a client was closed or slow
	WSFramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_frames_dropped_total",
			Help: "Total frames dropped for closed or slow clients",
		},
	)
)

// Provider metrics
var (
	// ProviderRequests tracks upstream provider calls by endpoint and status
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Total upstream provider requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)
)
