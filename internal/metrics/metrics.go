// Package metrics records measurement outcomes as Prometheus collectors and
// writes them in the text exposition format, for node_exporter's textfile
// collector or for archiving next to a report.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/lagprobe/internal/latency"
)

// Recorder implements latency.Observer. Each Recorder owns a private
// registry, so several sessions in one process do not collide.
type Recorder struct {
	latency.NopObserver

	registry *prometheus.Registry

	attempts  *prometheus.CounterVec
	pollTicks *prometheus.CounterVec
	runs      *prometheus.CounterVec

	// latency observes accepted, non-warm-up samples only.
	latency prometheus.Histogram

	runP95  prometheus.Gauge
	runMean prometheus.Gauge
}

// NewRecorder creates a recorder with all collectors registered.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lagprobe_attempts_total",
			Help: "Correlated attempts by verdict, warm-up included.",
		}, []string{"verdict"}),
		pollTicks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lagprobe_poll_ticks_total",
			Help: "Non-detecting poll ticks by result.",
		}, []string{"result"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lagprobe_runs_total",
			Help: "Finished runs by status.",
		}, []string{"status"}),
		// 1ms to 512ms: the plausible range ends at 500ms.
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lagprobe_latency_seconds",
			Help:    "Accepted input-to-capture latency samples.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		runP95: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lagprobe_run_p95_seconds",
			Help: "95th percentile latency of the last completed run with samples.",
		}),
		runMean: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lagprobe_run_mean_seconds",
			Help: "Mean latency of the last completed run with samples.",
		}),
	}
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// OnAttempt implements latency.Observer.
func (r *Recorder) OnAttempt(a latency.AttemptRecord) {
	r.attempts.WithLabelValues(a.Verdict.String()).Inc()

	r.pollTicks.WithLabelValues("unchanged").Add(float64(a.Tally.Unchanged))
	r.pollTicks.WithLabelValues("timeout").Add(float64(a.Tally.Timeouts))
	r.pollTicks.WithLabelValues("error").Add(float64(a.Tally.Errors))

	if a.Counted() {
		r.latency.Observe(a.Latency.Seconds())
	}
}

// OnRunFinalized implements latency.Observer.
func (r *Recorder) OnRunFinalized(run *latency.Run) {
	if run.Failed() {
		r.runs.WithLabelValues("aborted").Inc()
		return
	}
	r.runs.WithLabelValues("completed").Inc()
	if run.HasStats {
		r.runP95.Set(run.Stats.P95.Seconds())
		r.runMean.Set(run.Stats.Mean / 1e9)
	}
}

// WriteTextfile writes every collector to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
