package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/perfgo/testbatch/model"
)

const Namespace = "testbatch"

// Test durations range from sub-second unit tests to the default 300s budget.
var durationBuckets = []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// Recorder collects per-test metrics for one batch into its own registry.
type Recorder struct {
	registry *prometheus.Registry
	results  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	finished prometheus.Gauge
}

// NewRecorder creates a recorder. Every series carries the mode and run_id
// labels.
func NewRecorder(mode model.Mode, runID string) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"mode": string(mode), "run_id": runID}

	r := &Recorder{
		registry: reg,
		results: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   Namespace,
			Name:        "tests_total",
			Help:        "Number of executed tests by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   Namespace,
			Name:        "test_duration_seconds",
			Help:        "Wall time of individual test invocations",
			ConstLabels: labels,
			Buckets:     durationBuckets,
		}, []string{"outcome"}),
		finished: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Name:        "batch_ok",
			Help:        "1 if the last batch had no errors, failures or timeouts",
			ConstLabels: labels,
		}),
	}

	// Export zero counters for every outcome so absent series mean "no run".
	for _, o := range model.Outcomes {
		r.results.WithLabelValues(o.String())
	}
	return r
}

// Observe records one result.
func (r *Recorder) Observe(res model.RunResult) {
	outcome := res.Outcome.String()
	r.results.WithLabelValues(outcome).Inc()
	r.duration.WithLabelValues(outcome).Observe(res.Elapsed.Seconds())
}

// Finish records the batch verdict.
func (r *Recorder) Finish(s *model.Summary) {
	if s.OK() {
		r.finished.Set(1)
	} else {
		r.finished.Set(0)
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteFile writes all metrics in the text exposition format, suitable for
// the node_exporter textfile collector.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
