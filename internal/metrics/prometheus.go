package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Resolution metrics
	Resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_resolutions_total",
			Help: "Total number of completed resolution attempts",
		},
		[]string{"status", "attempt"}, // status: consensus|no_consensus|no_answer|error; attempt: initial|retry
	)

	ResolutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "oracle_resolution_duration_seconds",
			Help:    "End-to-end resolution duration in seconds",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	ResolutionCost = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_resolution_cost_usd",
			Help: "Cumulative operations cost in USD",
		},
	)

	// Provider metrics
	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_provider_calls_total",
			Help: "Total number of answer provider calls",
		},
		[]string{"provider", "status"}, // status: success|error
	)

	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_provider_latency_seconds",
			Help:    "Answer provider call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider"},
	)

	// Retry metrics
	RetriesScheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_retries_scheduled_total",
			Help: "Total number of scheduled retries",
		},
		[]string{"retry_count"},
	)

	RetriesExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_retries_exhausted_total",
			Help: "Total number of resolutions that hit the retry cap",
		},
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)
)

// Register registers all collectors with the default registry.
func Register() {
	prometheus.MustRegister(
		Resolutions,
		ResolutionDuration,
		ResolutionCost,
		ProviderCalls,
		ProviderLatency,
		RetriesScheduled,
		RetriesExhausted,
		WorkerExecutions,
		WorkerDuration,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
