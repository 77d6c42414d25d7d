// Package main implements the analysis run orchestration.
//
// This file contains the Analyzer type which drives the pipeline:
//
//	ingest → align → attribute → integrate → rank → assemble → store
//
// One Run consumes a recorded experiment's three sources and produces a
// single report. The pipeline is instrumented with Prometheus metrics
// tracking the duration of each stage and the record acceptance per source.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/riiali/green-microbench/cmd/analyzer/config"
	"github.com/riiali/green-microbench/cmd/analyzer/metrics"
	"github.com/riiali/green-microbench/pkg/attribution"
	"github.com/riiali/green-microbench/pkg/energy"
	"github.com/riiali/green-microbench/pkg/ingest"
	"github.com/riiali/green-microbench/pkg/ranking"
	"github.com/riiali/green-microbench/pkg/report"
	"github.com/riiali/green-microbench/pkg/storage"
	"github.com/riiali/green-microbench/pkg/timeline"
)

// Analyzer orchestrates one analysis run over a recorded experiment.
type Analyzer struct {
	cfg     *config.Config
	readers []ingest.Reader
	store   storage.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates an Analyzer. client is used for URL sources and may be nil.
func New(cfg *config.Config, client *http.Client, store storage.Store, logger *slog.Logger, m *metrics.Metrics) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Analyzer{
		cfg:     cfg,
		readers: buildReaders(cfg, client),
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

// buildReaders assembles the source readers the configuration names. The
// resource reader is optional; the meter and estimator readers are only
// omitted when the precedence policy makes them unusable.
func buildReaders(cfg *config.Config, client *http.Client) []ingest.Reader {
	readers := []ingest.Reader{
		&ingest.MeterReader{
			Path:            cfg.MeterPath,
			Client:          client,
			TimestampPath:   cfg.MeterTimestampPath,
			ValuePath:       cfg.MeterValuePath,
			TimestampFormat: cfg.MeterTimestampFormat,
			SkewTolerance:   cfg.MeterSkew,
		},
	}
	if cfg.EstimatorPath != "" {
		readers = append(readers, &ingest.EstimatorReader{
			Path:            cfg.EstimatorPath,
			Client:          client,
			TimestampPath:   cfg.EstimatorTimestampPath,
			ValuePath:       cfg.EstimatorValuePath,
			TimestampFormat: cfg.EstimatorTimestampFormat,
		})
	}
	if cfg.ResourcePath != "" {
		readers = append(readers, &ingest.ResourceReader{
			Path:         cfg.ResourcePath,
			Client:       client,
			ServiceLabel: cfg.ResourceServiceLabel,
		})
	}
	return readers
}

// Run executes one complete analysis and stores the resulting report.
func (a *Analyzer) Run(ctx context.Context) (*report.Report, error) {
	a.logger.Info("starting analysis run", "run", a.cfg.RunID, "sources", len(a.readers))

	// Ingest.
	start := time.Now()
	samples, sourceStats, err := ingest.Load(ctx, a.readers, a.cfg.MaxRejectedFraction)
	if a.metrics != nil {
		a.metrics.RecordIngest(time.Since(start).Seconds())
		for source, st := range sourceStats {
			a.metrics.RecordSamples(source, st.Accepted, st.Rejected)
		}
	}
	if err != nil {
		a.recordError("ingest", "load_failed")
		return nil, fmt.Errorf("ingest: %w", err)
	}
	for source, st := range sourceStats {
		a.logger.Info("source ingested",
			"source", source,
			"accepted", st.Accepted,
			"rejected", st.Rejected,
		)
		if st.Rejected > 0 && st.LastErr != nil {
			a.logger.Warn("source had rejected records", "source", source, "last_error", st.LastErr)
		}
	}

	// Align.
	start = time.Now()
	frames, alignStats, err := timeline.Align(samples, timeline.Options{
		Resolution:   a.cfg.Resolution,
		Window:       a.cfg.Window,
		Precedence:   timeline.Precedence(a.cfg.Precedence),
		WattsPerCore: a.cfg.WattsPerCore,
	})
	if a.metrics != nil {
		a.metrics.RecordAlign(time.Since(start).Seconds())
	}
	if err != nil {
		a.recordError("align", "align_failed")
		return nil, fmt.Errorf("align: %w", err)
	}
	if len(frames) == 0 {
		a.recordError("align", "no_frames")
		return nil, fmt.Errorf("align: no ticks fall inside the measured span")
	}
	a.logger.Info("timeline aligned",
		"resolution", alignStats.Resolution,
		"frames", alignStats.Frames,
		"dropped_ticks", alignStats.DroppedTicks,
	)

	// Attribute.
	start = time.Now()
	attributed, attrStats := attribution.Attribute(frames)
	if a.metrics != nil {
		a.metrics.RecordAttribute(time.Since(start).Seconds())
	}
	if attrStats.DegenerateFrames > 0 {
		a.logger.Warn("frames with no usable weights went to the system bucket",
			"degenerate", attrStats.DegenerateFrames,
			"frames", attrStats.Frames,
		)
	}

	// Integrate.
	start = time.Now()
	accs, gaps := energy.Integrate(attributed, energy.Options{
		Resolution: alignStats.Resolution,
		MaxGap:     a.cfg.MaxGap,
		Workers:    a.cfg.Workers,
	})
	if a.metrics != nil {
		a.metrics.RecordIntegrate(time.Since(start).Seconds())
		a.metrics.SetRunQuality(attrStats.Frames, attrStats.DegenerateFrames, len(gaps))
	}
	for _, g := range gaps {
		a.logger.Warn("coverage gap excluded from integration",
			"start", g.Start,
			"end", g.End,
			"duration", g.Duration(),
		)
	}

	// Rank and assemble.
	records := ranking.Records(attributed, accs)
	entries := ranking.Rank(records)

	var system report.SystemTotals
	if sys := accs[attribution.SystemService]; sys != nil {
		system = report.SystemTotals{EnergyJoules: sys.Joules, PeakWatts: sys.PeakWatts}
	}

	stats := report.RunStats{
		Sources:          make(map[string]report.SourceStats, len(sourceStats)),
		Frames:           attrStats.Frames,
		DegenerateFrames: attrStats.DegenerateFrames,
		DroppedTicks:     alignStats.DroppedTicks,
	}
	for source, st := range sourceStats {
		stats.Sources[source] = report.SourceStats{Accepted: st.Accepted, Rejected: st.Rejected}
	}

	rep := report.Assemble(report.Params{
		RunID:       a.cfg.RunID,
		WindowStart: frames[0].Time,
		WindowEnd:   frames[len(frames)-1].Time,
		Resolution:  alignStats.Resolution,
		Services:    records,
		Ranking:     entries,
		System:      system,
		Gaps:        gaps,
		Stats:       stats,
	})

	if err := a.store.Put(ctx, rep); err != nil {
		a.recordError("store", "put_failed")
		return nil, fmt.Errorf("store report: %w", err)
	}

	a.logger.Info("analysis run complete",
		"run", rep.RunID,
		"services", len(rep.Services),
		"gaps", len(rep.Gaps),
		"window_start", rep.WindowStart,
		"window_end", rep.WindowEnd,
	)
	return rep, nil
}

func (a *Analyzer) recordError(stage, reason string) {
	if a.metrics != nil {
		a.metrics.RecordError(stage, reason)
	}
}
