// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "analysis_error"
	OutcomeRejected = "rejected"
	OutcomeBusy     = "busy"
	OutcomeIOError  = "io_error"
)

var (
	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiofeedback_uploads_total",
			Help: "Uploads handled, by outcome.",
		},
		[]string{"outcome"},
	)

	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audiofeedback_analysis_seconds",
			Help:    "Time spent decoding and analysing one file, by decoded format.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"format"},
	)

	AnalysesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "audiofeedback_analyses_in_flight",
			Help: "Analysis jobs currently running on a worker.",
		},
	)

	WorkersRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "audiofeedback_workers_running",
			Help: "Worker goroutines alive in the pool.",
		},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiofeedback_cache_lookups_total",
			Help: "Result cache lookups, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(UploadsTotal, AnalysisDuration, AnalysesInFlight, WorkersRunning, CacheLookups)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
