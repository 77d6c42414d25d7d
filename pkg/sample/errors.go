package sample

import "fmt"

// MalformedSampleError describes a single raw record that could not be turned
// into a valid Sample. Ingestion drops the record, counts it, and moves on;
// the error itself is retained only for diagnostics.
type MalformedSampleError struct {
	Source string // reader name, e.g. "meter"
	Line   int    // 1-based position in the source file
	Reason string
}

func (e *MalformedSampleError) Error() string {
	return fmt.Sprintf("%s: record %d: %s", e.Source, e.Line, e.Reason)
}

// InsufficientDataError is fatal for a run: a required source rejected too
// large a fraction of its records (or produced none at all) to support a
// trustworthy attribution.
type InsufficientDataError struct {
	Source      string
	Accepted    int
	Rejected    int
	MaxFraction float64
}

func (e *InsufficientDataError) Error() string {
	total := e.Accepted + e.Rejected
	if total == 0 {
		return fmt.Sprintf("%s: no usable samples", e.Source)
	}
	return fmt.Sprintf("%s: rejected %d of %d samples (limit %.0f%%)",
		e.Source, e.Rejected, total, e.MaxFraction*100)
}
