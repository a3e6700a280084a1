package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bankocr_runs_total",
			Help: "Total number of extraction runs",
		},
		[]string{"status"}, // status: ok, partial, failed, window_not_found, canceled, invalid
	)

	fieldResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bankocr_field_results_total",
			Help: "Total number of field outcomes",
		},
		[]string{"field", "status", "kind"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bankocr_stage_duration_seconds",
			Help:    "Duration of a single field stage in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"stage"},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bankocr_run_duration_seconds",
			Help:    "Duration of a full extraction run in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50},
		},
	)
)

func recordField(fr FieldResult) {
	fieldResultsTotal.WithLabelValues(fr.Field.String(), string(fr.Status), string(fr.ErrorKind)).Inc()
}

func runStatus(res *Result) string {
	switch {
	case res.OK():
		return "ok"
	case res.Succeeded() > 0:
		return "partial"
	default:
		return "failed"
	}
}
