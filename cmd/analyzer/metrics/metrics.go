// Package metrics provides Prometheus metrics instrumentation for the
// analyzer.
//
// It exposes operational metrics about the analysis pipeline, including the
// duration of each stage (ingest, align, attribute, integrate), record
// acceptance per source, and the quality counters carried into the report.
// All metrics are exposed via the /metrics HTTP endpoint.
//
// Metrics exposed:
//   - greenmicrobench_ingest_seconds: Histogram of sample ingestion duration
//   - greenmicrobench_align_seconds: Histogram of timeline alignment duration
//   - greenmicrobench_attribute_seconds: Histogram of attribution duration
//   - greenmicrobench_integrate_seconds: Histogram of energy integration duration
//   - greenmicrobench_samples_total: Counter of records by source and outcome
//   - greenmicrobench_frames: Gauge of aligned frames in the last run
//   - greenmicrobench_degenerate_frames: Gauge of degenerate frames in the last run
//   - greenmicrobench_coverage_gaps: Gauge of coverage gaps in the last run
//   - greenmicrobench_errors_total: Counter of errors by stage and reason
//
// All metrics include the run label.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the analyzer.
type Metrics struct {
	IngestSeconds    prometheus.Histogram
	AlignSeconds     prometheus.Histogram
	AttributeSeconds prometheus.Histogram
	IntegrateSeconds prometheus.Histogram
	SamplesTotal     *prometheus.CounterVec
	Frames           prometheus.Gauge
	DegenerateFrames prometheus.Gauge
	CoverageGaps     prometheus.Gauge
	ErrorsTotal      *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New(runID string) *Metrics {
	labels := prometheus.Labels{"run": runID}

	return &Metrics{
		IngestSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:        "greenmicrobench_ingest_seconds",
			Help:        "Time spent ingesting sample sources",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),

		AlignSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:        "greenmicrobench_align_seconds",
			Help:        "Time spent aligning samples onto the timeline",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),

		AttributeSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:        "greenmicrobench_attribute_seconds",
			Help:        "Time spent attributing measured power to services",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),

		IntegrateSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:        "greenmicrobench_integrate_seconds",
			Help:        "Time spent integrating power into energy",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),

		SamplesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "greenmicrobench_samples_total",
			Help:        "Total ingested records by source and outcome",
			ConstLabels: labels,
		}, []string{"source", "outcome"}),

		Frames: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "greenmicrobench_frames",
			Help:        "Aligned frames produced by the last run",
			ConstLabels: labels,
		}),

		DegenerateFrames: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "greenmicrobench_degenerate_frames",
			Help:        "Frames whose power went fully unattributed in the last run",
			ConstLabels: labels,
		}),

		CoverageGaps: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "greenmicrobench_coverage_gaps",
			Help:        "Coverage gaps excluded from integration in the last run",
			ConstLabels: labels,
		}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "greenmicrobench_errors_total",
			Help:        "Total number of errors by stage and reason",
			ConstLabels: labels,
		}, []string{"stage", "reason"}),
	}
}

// RecordIngest records the time spent ingesting sources.
func (m *Metrics) RecordIngest(seconds float64) {
	m.IngestSeconds.Observe(seconds)
}

// RecordAlign records the time spent aligning the timeline.
func (m *Metrics) RecordAlign(seconds float64) {
	m.AlignSeconds.Observe(seconds)
}

// RecordAttribute records the time spent attributing power.
func (m *Metrics) RecordAttribute(seconds float64) {
	m.AttributeSeconds.Observe(seconds)
}

// RecordIntegrate records the time spent integrating energy.
func (m *Metrics) RecordIntegrate(seconds float64) {
	m.IntegrateSeconds.Observe(seconds)
}

// RecordSamples adds one source's accepted and rejected record counts.
func (m *Metrics) RecordSamples(source string, accepted, rejected int) {
	m.SamplesTotal.WithLabelValues(source, "accepted").Add(float64(accepted))
	m.SamplesTotal.WithLabelValues(source, "rejected").Add(float64(rejected))
}

// SetRunQuality sets the run-level quality gauges.
func (m *Metrics) SetRunQuality(frames, degenerate, gaps int) {
	m.Frames.Set(float64(frames))
	m.DegenerateFrames.Set(float64(degenerate))
	m.CoverageGaps.Set(float64(gaps))
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(stage, reason string) {
	m.ErrorsTotal.WithLabelValues(stage, reason).Inc()
}
