package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "genstudio"

var (
	// HTTP
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
		},
		[]string{"method", "route"},
	)

	// Provider calls
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Provider API calls by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Provider API call duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"operation"},
	)

	// Generation runs
	GenerationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "runs_total",
			Help:      "Finished generation runs by model and outcome",
		},
		[]string{"model", "outcome"},
	)

	GenerationRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "run_duration_seconds",
			Help:      "Wall time from submit to terminal state",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"model"},
	)

	// Storage
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Storage operations by backend, operation and outcome",
		},
		[]string{"backend", "operation", "status"},
	)

	SignedURLCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "signed_url_cache_total",
			Help:      "Signed URL cache lookups by result",
		},
		[]string{"result"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Marker-tagged SQL statement duration by operation and outcome",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"marker", "operation", "status"},
	)

	ReconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "generations_total",
			Help:      "Generations visited by the reconciler by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordRequest records an HTTP request.
func RecordRequest(method, route, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(durationSec)
}

// RecordProviderCall records one provider API call.
func RecordProviderCall(operation, status string, durationSec float64) {
	ProviderRequestsTotal.WithLabelValues(operation, status).Inc()
	ProviderRequestDuration.WithLabelValues(operation).Observe(durationSec)
}

// RecordRun records a finished generation run.
func RecordRun(model, outcome string, durationSec float64) {
	GenerationRunsTotal.WithLabelValues(model, outcome).Inc()
	GenerationRunDuration.WithLabelValues(model).Observe(durationSec)
}

// RecordStorage records a storage operation.
func RecordStorage(backend, operation, status string) {
	StorageOperationsTotal.WithLabelValues(backend, operation, status).Inc()
}

// RecordCache records a signed URL cache hit or miss.
func RecordCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	SignedURLCacheTotal.WithLabelValues(result).Inc()
}

// RecordReconcile records one reconciled generation.
func RecordReconcile(outcome string) {
	ReconcileTotal.WithLabelValues(outcome).Inc()
}

// RecordQuery records one SQL statement.
func RecordQuery(marker, operation string, err error, durationSec float64) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DBQueryDuration.WithLabelValues(marker, operation, status).Observe(durationSec)
}
