// Package metrics defines the Prometheus collectors used across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Snapshot cache metrics
var (
	// CacheHitsTotal tracks snapshot cache hits
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "question_cache_hits_total",
			Help: "Total snapshot cache hits",
		},
	)

	// CacheMissesTotal tracks snapshot cache misses
	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "question_cache_misses_total",
			Help: "Total snapshot cache misses",
		},
	)

	// CacheEvictionsTotal tracks LRU evictions from the snapshot cache
	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "question_cache_evictions_total",
			Help: "Total LRU evictions from the snapshot cache",
		},
	)

	// CacheStalePopulationsTotal tracks cache populations discarded because
	// a write invalidated the entry while the read was in flight
	CacheStalePopulationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "question_cache_stale_populations_total",
			Help: "Cache populations discarded due to a concurrent invalidation",
		},
	)
)

// Hub metrics
var (
	// HubConnectedClients tracks currently connected websocket clients
	HubConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connected_clients",
			Help: "Currently connected websocket clients",
		},
	)

	// HubActiveSubscriptions tracks current (question, connection) memberships
	HubActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_active_subscriptions",
			Help: "Current question subscriptions across all connections",
		},
	)

	// HubPushesTotal tracks push deliveries by outcome
	HubPushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_pushes_total",
			Help: "Push deliveries by outcome (delivered/failed)",
		},
		[]string{"outcome"},
	)

	// HubBroadcastDuration tracks the duration of one full group broadcast
	HubBroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hub_broadcast_duration_seconds",
			Help:    "Duration of one full group broadcast",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// HubDroppedConnectionsTotal tracks connections dropped after a failed delivery
	HubDroppedConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_dropped_connections_total",
			Help: "Connections dropped after a failed delivery",
		},
	)
)

// HTTP metrics
var (
	// HTTPErrorsTotal tracks HTTP errors by type
	HTTPErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total HTTP errors by error type",
		},
		[]string{"type"},
	)
)
