// Package metrics records run counters with Prometheus collectors and exports
// them as a node_exporter textfile at the end of a run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every collector of this package. It is separate from the
// default registry so exported files contain only run metrics.
var Registry = prometheus.NewRegistry()

var (
	SearchResultsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "topic_digest_search_results_total",
			Help: "Search results by provider and outcome (accepted, duplicate, filtered)",
		},
		[]string{"provider", "outcome"},
	)

	SearchErrorsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "topic_digest_search_errors_total",
			Help: "Failed search requests by provider",
		},
		[]string{"provider"},
	)

	PagesTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "topic_digest_pages_total",
			Help: "Extracted pages by status and reason",
		},
		[]string{"status", "reason"},
	)

	FetchAttemptsTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "topic_digest_fetch_attempts_total",
			Help: "Fetch attempts including retries",
		},
	)

	StageCallsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "topic_digest_stage_calls_total",
			Help: "Generation stage calls by stage and outcome (ok, failed)",
		},
		[]string{"stage", "outcome"},
	)

	StageDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "topic_digest_stage_duration_seconds",
			Help:    "Duration of generation stage calls in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)
)

// RecordPage counts one PageRecord outcome.
func RecordPage(status, reason string) {
	PagesTotal.WithLabelValues(status, reason).Inc()
}

// RecordStage counts one stage call and its duration.
func RecordStage(stage string, ok bool, elapsed time.Duration) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	StageCallsTotal.WithLabelValues(stage, outcome).Inc()
	StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// WriteTextfile writes all run metrics in the Prometheus text format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("failed to write metrics file %s: %w", path, err)
	}
	return nil
}
