// Package report assembles the final run artifact. The Report is the single
// output consumed by rendering and storage; everything downstream of the
// pipeline reads it, nothing re-derives pipeline results.
package report

import (
	"encoding/json"
	"time"

	"github.com/riiali/green-microbench/pkg/energy"
)

// ServiceEnergyRecord is one service's aggregate over the run window.
type ServiceEnergyRecord struct {
	Service      string    `json:"service"`
	EnergyJoules float64   `json:"energy_joules"`
	EnergyWh     float64   `json:"energy_wh"`
	PeakWatts    float64   `json:"peak_watts"`
	PeakTime     time.Time `json:"peak_time"`
	AvgWatts     float64   `json:"avg_watts"`
	P95Watts     float64   `json:"p95_watts"`
	Samples      int       `json:"samples"`
}

// RankingEntry is one row of the energy leaderboard.
type RankingEntry struct {
	Rank         int     `json:"rank"`
	Service      string  `json:"service"`
	EnergyJoules float64 `json:"energy_joules"`
	PeakWatts    float64 `json:"peak_watts"`
}

// SystemTotals aggregates the unattributed bucket.
type SystemTotals struct {
	EnergyJoules float64 `json:"energy_joules"`
	PeakWatts    float64 `json:"peak_watts"`
}

// SourceStats is one ingestion source's accept/reject tally.
type SourceStats struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// RunStats collects the per-run pipeline counters.
type RunStats struct {
	Sources          map[string]SourceStats `json:"sources"`
	Frames           int                    `json:"frames"`
	DegenerateFrames int                    `json:"degenerate_frames"`
	DroppedTicks     int                    `json:"dropped_ticks"`
}

// Report is the complete run artifact.
type Report struct {
	RunID       string                `json:"run_id"`
	WindowStart time.Time             `json:"window_start"`
	WindowEnd   time.Time             `json:"window_end"`
	Resolution  string                `json:"resolution"`
	Services    []ServiceEnergyRecord `json:"services"`
	Ranking     []RankingEntry        `json:"ranking"`
	System      SystemTotals          `json:"system"`
	Gaps        []energy.Gap          `json:"gaps,omitempty"`
	Stats       RunStats              `json:"stats"`
}

// Params carries everything Assemble needs from the pipeline stages.
type Params struct {
	RunID       string
	WindowStart time.Time
	WindowEnd   time.Time
	Resolution  time.Duration
	Services    []ServiceEnergyRecord
	Ranking     []RankingEntry
	System      SystemTotals
	Gaps        []energy.Gap
	Stats       RunStats
}

// Assemble builds the artifact. Timestamps are normalized to UTC so encoding
// is canonical: decoding a report and re-encoding it yields identical bytes.
func Assemble(p Params) *Report {
	r := &Report{
		RunID:       p.RunID,
		WindowStart: p.WindowStart.UTC(),
		WindowEnd:   p.WindowEnd.UTC(),
		Resolution:  p.Resolution.String(),
		Services:    p.Services,
		Ranking:     p.Ranking,
		System:      p.System,
		Gaps:        make([]energy.Gap, len(p.Gaps)),
		Stats:       p.Stats,
	}
	for i, rec := range r.Services {
		r.Services[i].PeakTime = rec.PeakTime.UTC()
	}
	for i, g := range p.Gaps {
		r.Gaps[i] = energy.Gap{Start: g.Start.UTC(), End: g.End.UTC()}
	}
	if len(r.Gaps) == 0 {
		r.Gaps = nil
	}
	if r.Stats.Sources == nil {
		r.Stats.Sources = map[string]SourceStats{}
	}
	return r
}

// Encode renders the report as indented JSON.
func (r *Report) Encode() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Decode parses a previously encoded report.
func Decode(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
