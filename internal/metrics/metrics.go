// Package metrics holds the conversion-level Prometheus collectors for
// DASHBRIDGE. Process and HTTP metrics live in internal/monitoring.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Conversion metrics
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashbridge_conversions_total",
			Help: "Total number of dashboard conversions",
		},
		[]string{"status"}, // completed/failed
	)

	ConversionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dashbridge_conversion_duration_seconds",
			Help:    "Dashboard conversion duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
		},
	)

	PanelsConverted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashbridge_panels_total",
			Help: "Total number of source panels seen during conversion",
		},
		[]string{"type"},
	)

	// Enrichment metrics
	EnrichmentRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashbridge_enrichment_requests_total",
			Help: "Total number of enrichment requests sent to language model providers",
		},
		[]string{"provider", "operation", "result"}, // suggest_type/translate_query, success/error/rejected/cached
	)

	EnrichmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashbridge_enrichment_duration_seconds",
			Help:    "Enrichment request duration in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"provider", "operation"},
	)

	// Batch metrics
	BatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashbridge_batches_total",
			Help: "Total number of batch conversions",
		},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dashbridge_batch_size",
			Help:    "Number of dashboards per batch",
			Buckets: []float64{1, 2, 5, 10, 20, 50},
		},
	)

	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashbridge_jobs_active",
			Help: "Number of conversion or batch jobs in flight",
		},
	)

	// Active WebSocket progress streams
	ActiveWebSocketConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dashbridge_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
		[]string{"stream_type"},
	)

	ArtifactsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashbridge_artifacts_written_total",
			Help: "Total number of stored upload/output artifacts",
		},
		[]string{"kind"}, // upload/output
	)
)
