// Package metrics holds the broker's Prometheus collectors. Collectors
// are package-level promauto registrations shared by the wire server,
// the dispatcher, and the admin HTTP middleware; everything is exported
// on the admin /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Wire connection metrics
	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "printspool_connections_total",
			Help: "Total number of accepted wire connections",
		},
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "printspool_connections_active",
			Help: "Number of wire connections currently open",
		},
	)

	// Job lifecycle metrics
	JobsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "printspool_jobs_received_total",
			Help: "Total number of print jobs admitted",
		},
	)

	JobsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "printspool_jobs_completed_total",
			Help: "Total number of print jobs completed",
		},
	)

	JobsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "printspool_jobs_failed_total",
			Help: "Total number of print jobs that exhausted their retries",
		},
	)

	JobsRetried = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "printspool_jobs_retried_total",
			Help: "Total number of print attempt retries",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "printspool_queue_depth",
			Help: "Number of jobs waiting in the dispatch queue",
		},
	)

	ProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "printspool_job_processing_duration_seconds",
			Help:    "Wall time from printing to completed",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Gauntlet rejection metrics
	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "printspool_auth_failures_total",
			Help: "Total number of rejected wire authentications",
		},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "printspool_rate_limited_total",
			Help: "Total number of rate-limited wire requests",
		},
	)

	ValidationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "printspool_validation_errors_total",
			Help: "Total number of rejected job payloads",
		},
	)
)
