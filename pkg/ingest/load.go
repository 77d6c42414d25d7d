package ingest

import (
	"context"
	"fmt"

	"github.com/riiali/green-microbench/pkg/sample"
)

// DefaultMaxRejectedFraction is the default acceptance limit: a source that
// rejects more than this share of its records aborts the run.
const DefaultMaxRejectedFraction = 0.2

// Load runs every reader, enforces the per-source acceptance limit, and
// merges the surviving samples into one chronologically sorted sequence.
// Every reader passed in is a required source: one that yields zero accepted
// samples, or rejects more than maxRejected of its records, fails the run
// with a sample.InsufficientDataError.
//
// maxRejected <= 0 selects DefaultMaxRejectedFraction.
func Load(ctx context.Context, readers []Reader, maxRejected float64) ([]sample.Sample, map[string]Stats, error) {
	if len(readers) == 0 {
		return nil, nil, fmt.Errorf("ingest: no sources configured")
	}
	if maxRejected <= 0 {
		maxRejected = DefaultMaxRejectedFraction
	}

	var merged []sample.Sample
	perSource := make(map[string]Stats, len(readers))

	for _, r := range readers {
		samples, stats, err := r.Read(ctx)
		if err != nil {
			return nil, perSource, fmt.Errorf("ingest %s: %w", r.Name(), err)
		}
		perSource[r.Name()] = stats

		if stats.Accepted == 0 || stats.RejectedFraction() > maxRejected {
			return nil, perSource, &sample.InsufficientDataError{
				Source:      r.Name(),
				Accepted:    stats.Accepted,
				Rejected:    stats.Rejected,
				MaxFraction: maxRejected,
			}
		}

		merged = append(merged, samples...)
	}

	sample.SortChrono(merged)
	return merged, perSource, nil
}
