// Package sample defines the uniform sample shape shared by every telemetry
// source the engine ingests, plus the error taxonomy for rejected records.
//
// A Sample is immutable once ingested. Three source kinds exist:
//   - KindEstimate: per-service modeled power from the software estimator
//   - KindResource: per-service CPU usage from the container resource monitor
//   - KindMeasured: whole-system power from the physical plug meter
//
// Measured samples carry no service identifier; the other kinds always do.
package sample

import (
	"sort"
	"time"
)

// SourceKind identifies which telemetry source produced a sample.
type SourceKind string

const (
	KindEstimate SourceKind = "estimate"
	KindResource SourceKind = "resource"
	KindMeasured SourceKind = "measured"
)

// Valid reports whether k is one of the known source kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case KindEstimate, KindResource, KindMeasured:
		return true
	}
	return false
}

// Unit strings used by the known sources.
const (
	UnitWatts = "W"
	UnitCores = "cores"
)

// SystemService is the synthetic bucket that absorbs unattributed power
// downstream. The name is reserved: ingestion rejects records from a real
// service that claims it.
const SystemService = "system"

// Sample is one observation from one source. Service is empty for the
// system-wide measured source and non-empty otherwise.
type Sample struct {
	Time    time.Time
	Kind    SourceKind
	Service string
	Value   float64
	Unit    string
}

// SortChrono sorts samples by time, then kind, then service. The secondary
// keys make the order total, so identical inputs always sort identically
// regardless of their original record order.
func SortChrono(samples []Sample) {
	sort.Slice(samples, func(i, j int) bool {
		a, b := samples[i], samples[j]
		if !a.Time.Equal(b.Time) {
			return a.Time.Before(b.Time)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Service < b.Service
	})
}
