// Package attribution splits each frame's measured total across services in
// proportion to their estimated weights. The split conserves power: the
// per-service shares plus the unattributed remainder always sum back to the
// measured total.
package attribution

import (
	"time"

	"github.com/riiali/green-microbench/pkg/sample"
	"github.com/riiali/green-microbench/pkg/timeline"
)

// SystemService names the synthetic bucket that absorbs power no service
// claims. Downstream stages treat it like any other service for integration,
// but it never appears in rankings. Ingestion reserves the name, so it can
// never collide with a real service.
const SystemService = sample.SystemService

// AttributedFrame is one tick's attributed power split.
// sum(Power) + Unattributed equals the frame's measured total.
type AttributedFrame struct {
	Time time.Time

	// Power holds the attributed watts per service.
	Power map[string]float64

	// Unattributed is the measured power left over when no service
	// reported a usable weight.
	Unattributed float64

	// Degenerate marks frames with no positive weight at all, so the
	// whole measured total is unattributed.
	Degenerate bool
}

// Stats describes one attribution pass.
type Stats struct {
	Frames           int
	DegenerateFrames int
}

// AttributeFrame splits a single frame. Negative weights are treated as
// zero: a negative share is physically meaningless and usually means the
// estimator briefly went unstable.
func AttributeFrame(f timeline.AlignedFrame) AttributedFrame {
	out := AttributedFrame{Time: f.Time, Power: make(map[string]float64, len(f.Estimates))}

	var total float64
	for _, w := range f.Estimates {
		if w > 0 {
			total += w
		}
	}
	// Only an exact zero is degenerate: the split is a ratio, so any
	// positive weight sum attributes the full total regardless of scale.
	if total == 0 {
		out.Unattributed = f.Measured
		out.Degenerate = true
		return out
	}

	for svc, w := range f.Estimates {
		if w < 0 {
			w = 0
		}
		out.Power[svc] = f.Measured * w / total
	}
	return out
}

// Attribute splits every frame of a run.
func Attribute(frames []timeline.AlignedFrame) ([]AttributedFrame, Stats) {
	out := make([]AttributedFrame, 0, len(frames))
	stats := Stats{Frames: len(frames)}
	for _, f := range frames {
		af := AttributeFrame(f)
		if af.Degenerate {
			stats.DegenerateFrames++
		}
		out = append(out, af)
	}
	return out, stats
}
