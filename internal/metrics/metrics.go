// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

// Package metrics registers the Prometheus collectors for Mangaguard:
// DuckDB queries, the HTTP API, provider scoring calls, circuit breakers,
// moderation runs and the job queue. Collectors are created with promauto
// and exposed by the /metrics route.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Scoring provider metrics
	ScoringRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_scoring_requests_total",
			Help: "Total number of scoring provider calls",
		},
		[]string{"provider", "result"}, // result: "success", "error"
	)

	ScoringDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moderation_scoring_duration_seconds",
			Help:    "Scoring provider call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"provider"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Moderation pipeline metrics
	ModerationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_runs_total",
			Help: "Total number of moderation pipeline runs",
		},
		[]string{"result"}, // "completed", "failed"
	)

	ModerationRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moderation_run_duration_seconds",
			Help:    "Moderation pipeline run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		},
	)

	ModerationEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_entries_total",
			Help: "Audit entries processed by the pipeline",
		},
		[]string{"outcome"}, // "moderated", "invalid", "failed"
	)

	ModerationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_decisions_total",
			Help: "Per-attribute moderation decisions",
		},
		[]string{"decision"}, // "flagged", "safe", "auto_resolved", "skipped"
	)

	FlagsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moderation_flags_open",
			Help: "Unresolved flags observed at the end of the last run",
		},
	)

	AuditEntriesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_entries_created_total",
			Help: "Audit log entries written",
		},
		[]string{"action", "moderated"},
	)

	// Job orchestration metrics
	JobRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_job_requests_total",
			Help: "Run requests by outcome",
		},
		[]string{"outcome"}, // "queued", "already_running", "worker_unreachable", "error"
	)

	JobStatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_job_status_transitions_total",
			Help: "Job status writes by target state",
		},
		[]string{"state"},
	)

	WorkerWakeAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_worker_wake_attempts_total",
			Help: "Worker wake probe attempts",
		},
		[]string{"result"}, // "success", "failure"
	)

	// Queue metrics
	QueuePublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moderation_queue_published_total",
			Help: "Total number of job messages published",
		},
	)

	QueueConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_queue_consumed_total",
			Help: "Total number of job messages consumed",
		},
		[]string{"result"}, // "success", "error", "invalid"
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordScoring records one provider call.
func RecordScoring(provider string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	ScoringRequests.WithLabelValues(provider, result).Inc()
	ScoringDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordModerationRun records the outcome of a full pipeline run.
func RecordModerationRun(duration time.Duration, err error) {
	result := "completed"
	if err != nil {
		result = "failed"
	}
	ModerationRuns.WithLabelValues(result).Inc()
	ModerationRunDuration.Observe(duration.Seconds())
}

// RecordModerationEntry records one processed audit entry.
func RecordModerationEntry(outcome string) {
	ModerationEntries.WithLabelValues(outcome).Inc()
}

// RecordModerationDecision records a per-attribute decision.
func RecordModerationDecision(decision string) {
	ModerationDecisions.WithLabelValues(decision).Inc()
}

// RecordAuditEntry records a written audit log entry.
func RecordAuditEntry(action string, moderated bool) {
	AuditEntriesCreated.WithLabelValues(action, strconv.FormatBool(moderated)).Inc()
}

// RecordJobRequest records a RequestRun outcome.
func RecordJobRequest(outcome string) {
	JobRequests.WithLabelValues(outcome).Inc()
}

// RecordJobStatus records a job status write.
func RecordJobStatus(state string) {
	JobStatusTransitions.WithLabelValues(state).Inc()
}

// RecordWakeAttempt records one worker wake probe.
func RecordWakeAttempt(success bool) {
	if success {
		WorkerWakeAttempts.WithLabelValues("success").Inc()
		return
	}
	WorkerWakeAttempts.WithLabelValues("failure").Inc()
}

// RecordQueuePublish records a published job message.
func RecordQueuePublish() {
	QueuePublished.Inc()
}

// RecordQueueConsume records a consumed job message.
func RecordQueueConsume(result string) {
	QueueConsumed.WithLabelValues(result).Inc()
}
