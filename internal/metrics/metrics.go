// Package metrics exposes pipeline counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so several pipelines (and tests) never
// collide on the global one.
type Recorder struct {
	registry      *prom.Registry
	runs          *prom.CounterVec
	storeWrites   *prom.CounterVec
	storeFailures *prom.CounterVec
	runDuration   *prom.HistogramVec
}

// NewRecorder registers the collectors on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prom.NewRegistry(),
		runs: prom.NewCounterVec(prom.CounterOpts{
			Name: "healthingest_runs_total",
			Help: "Pipeline runs by stage and final status.",
		}, []string{"stage", "status"}),
		storeWrites: prom.NewCounterVec(prom.CounterOpts{
			Name: "healthingest_store_writes_total",
			Help: "Records written per store.",
		}, []string{"store"}),
		storeFailures: prom.NewCounterVec(prom.CounterOpts{
			Name: "healthingest_store_failures_total",
			Help: "Failed store writes.",
		}, []string{"store"}),
		runDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "healthingest_run_duration_seconds",
			Help:    "Wall time of a pipeline run.",
			Buckets: prom.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
	}
	r.registry.MustRegister(r.runs, r.storeWrites, r.storeFailures, r.runDuration)
	return r
}

// ObserveRun records the outcome and duration of one pipeline run.
func (r *Recorder) ObserveRun(stage, status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(stage, status).Inc()
	r.runDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveStore records one adapter call.
func (r *Recorder) ObserveStore(store string, written int, ok bool) {
	if r == nil {
		return
	}
	if !ok {
		r.storeFailures.WithLabelValues(store).Inc()
		return
	}
	r.storeWrites.WithLabelValues(store).Add(float64(written))
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry is exposed for tests and for embedding into a wider exporter.
func (r *Recorder) Registry() *prom.Registry {
	return r.registry
}
