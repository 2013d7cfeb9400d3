package provider

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomatool/stepindex/internal/tooling"
)

const tracerName = "stepindex.provider"

var (
	// findDuration measures FindStepDefinitions calls.
	//
	// Labels:
	//   - status: "success", "no_project" or the failure kind
	findDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stepindex",
			Subsystem: "provider",
			Name:      "find_duration_seconds",
			Help:      "Duration of step definition lookups in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"status"},
	)

	// definitionsTotal counts returned step definitions.
	//
	// Labels:
	//   - resolved: "true" or "false"
	definitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stepindex",
			Subsystem: "provider",
			Name:      "definitions_total",
			Help:      "Step definitions returned by lookups.",
		},
		[]string{"resolved"},
	)
)

func recordFind(duration time.Duration, status string, err error) {
	if err != nil {
		status = statusOf(err)
	}
	findDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func statusOf(err error) string {
	switch tooling.KindOf(err) {
	case tooling.KindLoaderAcquisition:
		return "loader_acquisition"
	case tooling.KindRuntimeExecution:
		return "runtime_execution"
	case tooling.KindIndexUnavailable:
		return "index_unavailable"
	default:
		return "error"
	}
}
