// Package metrics exposes Prometheus instruments for the validation pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "entrybrain"

// Recorder groups the pipeline instruments. A nil *Recorder records nothing.
type Recorder struct {
	decisions         *prometheus.CounterVec
	stagePaths        *prometheus.CounterVec
	outcomes          *prometheus.CounterVec
	inferenceLatency  *prometheus.HistogramVec
	inferenceOutcomes *prometheus.CounterVec
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		// Labels: intent (lnd_tasks, sbu_tasks), decision (approve, flag, pending)
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "decisions_total",
			Help:      "Final decisions produced by the synthesis stage",
		}, []string{"intent", "decision"}),
		// Labels: stage, path (logic, inference, fallback)
		stagePaths: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_paths_total",
			Help:      "Execution path taken by each pipeline stage",
		}, []string{"stage", "path"}),
		// Labels: outcome (analyzed, skipped, missing, timeout, cancelled, error, unavailable, exhausted)
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analyzer",
			Name:      "runs_total",
			Help:      "Analysis runs by terminal outcome",
		}, []string{"outcome"}),
		inferenceLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "latency_seconds",
			Help:      "Inference call latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}, []string{"provider"}),
		// Labels: provider, outcome (ok, error, unavailable, timeout)
		inferenceOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "calls_total",
			Help:      "Inference calls by outcome",
		}, []string{"provider", "outcome"}),
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Decision counts one final decision.
func (r *Recorder) Decision(intent, decision string) {
	if r == nil {
		return
	}
	r.decisions.WithLabelValues(intent, decision).Inc()
}

// StagePath counts the path one stage took.
func (r *Recorder) StagePath(stage, path string) {
	if r == nil {
		return
	}
	r.stagePaths.WithLabelValues(stage, path).Inc()
}

// Outcome counts one terminal analyzer outcome.
func (r *Recorder) Outcome(outcome string) {
	if r == nil {
		return
	}
	r.outcomes.WithLabelValues(outcome).Inc()
}

// Inference records one completed inference call.
func (r *Recorder) Inference(provider, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.inferenceLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
	r.inferenceOutcomes.WithLabelValues(provider, outcome).Inc()
}
