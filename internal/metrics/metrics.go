// Package metrics provides Prometheus metrics for the matcher.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "invoice_matcher"

var (
	// MatchesTotal tracks match results by source and verdict
	MatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "results_total",
			Help:      "Total number of match results by source and verdict",
		},
		[]string{"source", "verdict"},
	)

	// FallbacksTotal tracks why the oracle path was not used
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "fallbacks_total",
			Help:      "Total number of heuristic fallbacks by reason",
		},
		[]string{"reason"},
	)

	// MatchScore tracks the distribution of match scores
	MatchScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "score",
			Help:      "Distribution of match scores",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"source"},
	)

	// OracleRequestDuration tracks oracle call latency
	OracleRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "request_duration_seconds",
			Help:      "Duration of oracle requests in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	// TransitionsTotal tracks match record state transitions
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "transitions_total",
			Help:      "Total number of match record transitions by action and result",
		},
		[]string{"action", "result"},
	)

	// QueueJobsProcessed tracks background matching jobs
	QueueJobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "jobs_processed_total",
			Help:      "Total number of background matching jobs by status",
		},
		[]string{"status"},
	)

	// CandidatesSynced tracks PO lines written by candidate sync
	CandidatesSynced = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "candidates",
			Name:      "synced_total",
			Help:      "Total number of PO lines upserted by candidate sync",
		},
	)
)

// RecordMatch records a match result.
func RecordMatch(source, verdict, fallbackReason string, score float64) {
	MatchesTotal.WithLabelValues(source, verdict).Inc()
	MatchScore.WithLabelValues(source).Observe(score)
	if fallbackReason != "" {
		FallbacksTotal.WithLabelValues(fallbackReason).Inc()
	}
}

// RecordOracleCall records one oracle request.
func RecordOracleCall(outcome string, elapsed time.Duration) {
	OracleRequestDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// RecordTransition records an approve/reject attempt.
func RecordTransition(action, result string) {
	TransitionsTotal.WithLabelValues(action, result).Inc()
}

// RecordQueueJob records a processed background job.
func RecordQueueJob(status string) {
	QueueJobsProcessed.WithLabelValues(status).Inc()
}

// RecordCandidatesSynced adds n upserted PO lines.
func RecordCandidatesSynced(n int) {
	CandidatesSynced.Add(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
