// Package ctxmetrics records Prometheus metrics for context management
// operations: distillation triggers, journal flush/seal/prune activity,
// and recovery outcomes at startup.
package ctxmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records context-manager and journal activity as Prometheus
// metrics.
type Recorder struct {
	distillationsTotal   *prometheus.CounterVec
	distillationDuration *prometheus.HistogramVec
	streamFlushesTotal   *prometheus.CounterVec
	streamSealsTotal     *prometheus.CounterVec
	streamPrunesTotal    *prometheus.CounterVec
	toolBatchesTotal     *prometheus.CounterVec
	recoveredStepsTotal  *prometheus.CounterVec
}

// New creates a Recorder and registers its metrics with the default
// Prometheus registry.
func New() *Recorder {
	return &Recorder{
		distillationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctxkeep_distillations_total",
				Help: "Total number of distillation operations by model and outcome",
			},
			[]string{"model", "outcome"},
		),
		distillationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ctxkeep_distillation_duration_seconds",
				Help:    "Duration of distillation operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		streamFlushesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctxkeep_stream_flushes_total",
				Help: "Total number of stream journal flushes by trigger",
			},
			[]string{"trigger"},
		),
		streamSealsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctxkeep_stream_seals_total",
				Help: "Total number of stream journal steps sealed",
			},
			[]string{"outcome"},
		),
		streamPrunesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctxkeep_stream_prunes_total",
				Help: "Total number of committed steps pruned from the stream journal",
			},
			[]string{},
		),
		toolBatchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctxkeep_tool_batches_total",
				Help: "Total number of tool batches by outcome",
			},
			[]string{"outcome"},
		),
		recoveredStepsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctxkeep_recovered_steps_total",
				Help: "Total number of journal entries recovered at startup by journal and classification",
			},
			[]string{"journal", "kind"},
		),
	}
}

// ObserveDistillation records the outcome and duration of a distillation.
func (r *Recorder) ObserveDistillation(model, outcome string, duration time.Duration) {
	r.distillationsTotal.WithLabelValues(model, outcome).Inc()
	r.distillationDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// IncStreamFlush records one stream journal flush, labeled by which
// trigger caused it (first_content, threshold, interval, forced).
func (r *Recorder) IncStreamFlush(trigger string) {
	r.streamFlushesTotal.WithLabelValues(trigger).Inc()
}

// IncStreamSeal records one stream journal step being sealed.
func (r *Recorder) IncStreamSeal(outcome string) {
	r.streamSealsTotal.WithLabelValues(outcome).Inc()
}

// IncStreamPrune records one committed step pruned from the stream
// journal.
func (r *Recorder) IncStreamPrune() {
	r.streamPrunesTotal.WithLabelValues().Inc()
}

// IncToolBatch records one tool batch reaching a terminal outcome
// (committed or discarded).
func (r *Recorder) IncToolBatch(outcome string) {
	r.toolBatchesTotal.WithLabelValues(outcome).Inc()
}

// IncRecoveredStep records one entry recovered from a journal at
// startup, labeled by journal name ("stream" or "tool") and
// classification (e.g. "complete", "errored", "incomplete").
func (r *Recorder) IncRecoveredStep(journal, kind string) {
	r.recoveredStepsTotal.WithLabelValues(journal, kind).Inc()
}
