package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Process-wide metrics, registered via promauto so no explicit
// initialization is needed.

var (
	// HTTP request volume, labeled by method, path and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedgraph_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// Server response time.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schedgraph_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// Graph size gauges, refreshed after every mutating operation.
	NodesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "schedgraph_nodes_total",
			Help: "Total number of nodes in the graph store",
		},
	)

	RelationshipsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "schedgraph_relationships_total",
			Help: "Total number of relationships in the graph store",
		},
	)

	// Conflicts found per detection run, labeled by conflict type.
	ConflictsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedgraph_conflicts_detected_total",
			Help: "Total number of scheduling conflicts detected",
		},
		[]string{"type"},
	)

	// Snapshot flush latency.
	SnapshotDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "schedgraph_snapshot_duration_seconds",
			Help:    "Duration of snapshot flushes in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
)
