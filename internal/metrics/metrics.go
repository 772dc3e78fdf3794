// Package metrics holds the Prometheus collectors for the certificate pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExistenceCacheLookups counts existence checks by artifact kind and result (hit, miss, verify).
	ExistenceCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "certificates_existence_lookups_total",
		Help: "Artifact existence lookups by kind and result.",
	}, []string{"kind", "result"})

	// ArtifactRenders counts artifacts rendered by kind.
	ArtifactRenders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "certificates_artifact_renders_total",
		Help: "Certificate artifacts rendered by kind.",
	}, []string{"kind"})

	// ArtifactRenderDuration observes render time by kind.
	ArtifactRenderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "certificates_artifact_render_duration_seconds",
		Help:    "Time spent rendering certificate artifacts.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"kind"})

	// TaskRuns counts generation task executions by outcome (ok, skipped, error).
	TaskRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "certificates_task_runs_total",
		Help: "Certificate generation task runs by outcome.",
	}, []string{"outcome"})

	// EmailsSent counts certificate emails dispatched.
	EmailsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "certificates_emails_sent_total",
		Help: "Certificate emails dispatched.",
	})

	// DeadLettered counts jobs parked in the DLQ after exhausting retries.
	DeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "certificates_jobs_dead_lettered_total",
		Help: "Certificate jobs moved to the dead-letter queue.",
	})

	// HTTPRequests counts delivery API requests by method, route and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "certificates_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration observes request latency, including inline generation.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "certificates_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
