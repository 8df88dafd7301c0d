// Package metrics holds the process-wide Prometheus collectors for database
// routing. The CLI is short-lived, so instead of serving /metrics it can dump
// the default registry to a node_exporter textfile on exit.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Attempt outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
)

// Call results.
const (
	ResultOK         = "ok"
	ResultPartial    = "partial"
	ResultFailed     = "failed"
	ResultNoProfiles = "no_profiles"
)

var (
	// Per-profile attempts by router operation and outcome
	RouterAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airplan_router_attempts_total",
			Help: "Per-profile attempts made by the database router",
		},
		[]string{"operation", "outcome"},
	)

	RouterAttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airplan_router_attempt_duration_seconds",
			Help:    "Duration of one per-profile attempt",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"operation"},
	)

	// Whole router calls by aggregate result
	RouterCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airplan_router_calls_total",
			Help: "Router calls by aggregate result",
		},
		[]string{"operation", "result"},
	)

	SelfHealingInserts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airplan_self_healing_inserts_total",
			Help: "Self-healing writes that fell through from UPDATE to INSERT on a profile",
		},
	)

	WriteRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airplan_write_retries_total",
			Help: "Caller-level retries of writes that failed on every profile",
		},
	)
)

// WriteTextfile writes every registered metric to path in the text
// exposition format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
