// Package ranking turns per-service accumulators into report records and the
// energy leaderboard.
package ranking

import (
	"math"
	"sort"

	"github.com/riiali/green-microbench/pkg/attribution"
	"github.com/riiali/green-microbench/pkg/energy"
	"github.com/riiali/green-microbench/pkg/report"
)

// Records builds one record per service, sorted by service name. The system
// bucket is excluded; its totals travel separately in the report. The frame
// sequence is needed because P95 is computed over the per-frame power
// distribution, which the accumulators do not retain.
func Records(frames []attribution.AttributedFrame, accs map[string]*energy.Accumulator) []report.ServiceEnergyRecord {
	services := make([]string, 0, len(accs))
	for svc := range accs {
		if svc != attribution.SystemService {
			services = append(services, svc)
		}
	}
	sort.Strings(services)

	records := make([]report.ServiceEnergyRecord, 0, len(services))
	series := make([]float64, 0, len(frames))
	for _, svc := range services {
		acc := accs[svc]
		series = series[:0]
		for _, f := range frames {
			series = append(series, f.Power[svc])
		}
		records = append(records, report.ServiceEnergyRecord{
			Service:      svc,
			EnergyJoules: acc.Joules,
			EnergyWh:     acc.WattHours(),
			PeakWatts:    acc.PeakWatts,
			PeakTime:     acc.PeakTime,
			AvgWatts:     acc.AvgWatts(),
			P95Watts:     Percentile(series, 95),
			Samples:      acc.Samples,
		})
	}
	return records
}

// Rank orders services by energy descending, breaking ties by peak watts
// descending and then service name ascending. The three keys make the order
// total: shuffling the input never changes the result.
func Rank(records []report.ServiceEnergyRecord) []report.RankingEntry {
	sorted := make([]report.ServiceEnergyRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.EnergyJoules != b.EnergyJoules {
			return a.EnergyJoules > b.EnergyJoules
		}
		if a.PeakWatts != b.PeakWatts {
			return a.PeakWatts > b.PeakWatts
		}
		return a.Service < b.Service
	})

	entries := make([]report.RankingEntry, len(sorted))
	for i, rec := range sorted {
		entries[i] = report.RankingEntry{
			Rank:         i + 1,
			Service:      rec.Service,
			EnergyJoules: rec.EnergyJoules,
			PeakWatts:    rec.PeakWatts,
		}
	}
	return entries
}

// Percentile computes the p-th percentile (0..100) with linear interpolation
// between the two nearest ranks. Empty input yields 0.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}
