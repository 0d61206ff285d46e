// Package telemetry exposes Prometheus metrics and OpenTelemetry tracing for pipeline runs.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "insightloom"

// Metrics holds the pipeline collectors. Each instance owns its registry, so
// several pipelines (or tests) never collide on registration. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	runs            *prometheus.CounterVec
	classifications *prometheus.CounterVec
	inferenceCalls  *prometheus.CounterVec
	inferenceTime   prometheus.Histogram
	chunks          *prometheus.CounterVec
	mergeFallbacks  *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	sampledRows     prometheus.Histogram
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome",
		}, []string{"outcome"}),
		classifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "classifications_total",
			Help:      "Datasets classified per domain",
		}, []string{"domain"}),
		inferenceCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "calls_total",
			Help:      "Inference attempts by outcome",
		}, []string{"outcome"}),
		inferenceTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "call_duration_seconds",
			Help:      "Duration of individual inference attempts",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		chunks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "synthesizer",
			Name:      "chunks_total",
			Help:      "Chunks processed per insight kind and status",
		}, []string{"kind", "status"}),
		mergeFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "synthesizer",
			Name:      "merge_fallbacks_total",
			Help:      "Reduce steps that fell back to local deduplication",
		}, []string{"kind"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each workflow stage",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		sampledRows: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "sampled_rows",
			Help:      "Rows handed to the model per run",
			Buckets:   []float64{0, 10, 25, 50, 100, 150, 250, 500},
		}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveCall records one inference attempt.
func (m *Metrics) ObserveCall(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.inferenceCalls.WithLabelValues(outcome).Inc()
	m.inferenceTime.Observe(elapsed.Seconds())
}

// RecordRun counts a finished pipeline run.
func (m *Metrics) RecordRun(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// RecordClassification counts the domain chosen for a run.
func (m *Metrics) RecordClassification(domain string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(domain).Inc()
}

// RecordChunk counts one chunk-level map call.
func (m *Metrics) RecordChunk(kind string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.chunks.WithLabelValues(kind, status).Inc()
}

// RecordMergeFallback counts a reduce step that used the local fallback.
func (m *Metrics) RecordMergeFallback(kind string) {
	if m == nil {
		return
	}
	m.mergeFallbacks.WithLabelValues(kind).Inc()
}

// ObserveStage records how long a workflow stage took.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveSampledRows records how many rows a run handed to the model.
func (m *Metrics) ObserveSampledRows(n int) {
	if m == nil {
		return
	}
	m.sampledRows.Observe(float64(n))
}

// WriteTextfile dumps the current metric values in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
