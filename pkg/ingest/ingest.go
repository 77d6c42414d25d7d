// Package ingest turns recorded per-source telemetry files into the uniform
// sample shape the rest of the engine consumes.
//
// Each reader handles one source and one on-disk shape:
//   - MeterReader: plug-meter capture, NDJSON, one object per line
//   - EstimatorReader: software power estimator, JSON object keyed by service
//   - ResourceReader: resource monitor, Prometheus range-result JSON
//
// Readers extract fields with gjson paths so collection-layer schema drift is
// a configuration change, not a code change. Malformed records are dropped
// individually and counted; only a source whose rejected fraction crosses the
// configured limit aborts the run.
package ingest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tidwall/gjson"

	"github.com/riiali/green-microbench/pkg/sample"
)

// Reader parses one recorded source into samples. Read returns every accepted
// sample along with per-source acceptance statistics; it fails outright only
// on I/O or whole-file shape problems, never on individual bad records.
type Reader interface {
	Read(ctx context.Context) ([]sample.Sample, Stats, error)

	// Name returns a short, unique identifier for the source.
	// Example: "meter", "estimator", "resource".
	Name() string
}

// Stats counts accepted and rejected records for one source.
type Stats struct {
	Accepted int
	Rejected int
	// LastErr keeps the most recent per-record rejection for diagnostics.
	LastErr error
}

// RejectedFraction returns the share of records rejected, 0 for an empty source.
func (s Stats) RejectedFraction() float64 {
	total := s.Accepted + s.Rejected
	if total == 0 {
		return 0
	}
	return float64(s.Rejected) / float64(total)
}

func (s *Stats) reject(source string, line int, reason string) {
	s.Rejected++
	s.LastErr = &sample.MalformedSampleError{Source: source, Line: line, Reason: reason}
}

// Timestamp formats accepted by the readers.
const (
	FormatRFC3339   = "rfc3339"
	FormatUnix      = "unix"
	FormatUnixMilli = "unix_milli"
)

// parseTimestamp parses a gjson result according to the configured format.
// An empty format means RFC3339.
func parseTimestamp(format string, value gjson.Result) (time.Time, error) {
	switch format {
	case "", FormatRFC3339:
		return time.Parse(time.RFC3339, value.String())

	case FormatUnix:
		sec, err := numericTimestamp(value)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(int64(sec), int64((sec-math.Trunc(sec))*1e9)).UTC(), nil

	case FormatUnixMilli:
		ms, err := numericTimestamp(value)
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(int64(ms)).UTC(), nil

	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp format: %s", format)
	}
}

// numericTimestamp extracts a positive numeric epoch value. gjson coerces
// any non-numeric field to 0, which would place the sample at the 1970
// epoch instead of rejecting it, so the JSON type is checked explicitly.
func numericTimestamp(value gjson.Result) (float64, error) {
	if value.Type != gjson.Number {
		return 0, fmt.Errorf("timestamp is not numeric: %s", value.Raw)
	}
	v := value.Float()
	if v <= 0 {
		return 0, fmt.Errorf("timestamp out of range: %v", v)
	}
	return v, nil
}

// validPower reports whether v is a usable power or usage value. Negative
// readings are artifacts of the collection layer, not real draw.
func validPower(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
