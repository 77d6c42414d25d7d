// Package timeline merges the ingested sample streams onto one discretized
// timeline. Sources sample at different rates with different clocks, so
// nothing here assumes a shared grid: the measured series is linearly
// interpolated onto each tick, and per-service estimates are looked up
// nearest-neighbor within a bounded window.
//
// Ticks outside the measured source's span are dropped, never extrapolated:
// fabricating a ground-truth reading is worse than omitting the tick.
package timeline

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/riiali/green-microbench/pkg/sample"
)

// AlignedFrame is one timeline tick: the single (possibly interpolated)
// measured total and the per-service estimated weights near that tick.
// Services with no usable signal within the window are simply absent.
type AlignedFrame struct {
	Time      time.Time
	Measured  float64
	Estimates map[string]float64
}

// Precedence selects which source supplies a service's weight when both the
// estimator and the resource monitor report near the same tick.
type Precedence string

const (
	// PrecedenceEstimateFirst uses the estimator and falls back to the
	// resource monitor. This is the default.
	PrecedenceEstimateFirst Precedence = "estimate-first"
	// PrecedenceResourceFirst uses the resource monitor and falls back to
	// the estimator.
	PrecedenceResourceFirst Precedence = "resource-first"
	// PrecedenceEstimateOnly ignores the resource monitor entirely.
	PrecedenceEstimateOnly Precedence = "estimate-only"
	// PrecedenceResourceOnly ignores the estimator entirely.
	PrecedenceResourceOnly Precedence = "resource-only"
)

// Valid reports whether p is a known precedence policy.
func (p Precedence) Valid() bool {
	switch p {
	case PrecedenceEstimateFirst, PrecedenceResourceFirst, PrecedenceEstimateOnly, PrecedenceResourceOnly:
		return true
	}
	return false
}

// Options controls alignment.
type Options struct {
	// Resolution is the tick spacing. 0 selects the coarsest input
	// source's native rate: the largest median inter-sample interval
	// across sources, rounded up to whole seconds (minimum 1s).
	Resolution time.Duration

	// Window bounds the nearest-neighbor estimate lookup around each tick
	// (default 5s).
	Window time.Duration

	// Precedence picks the weight source per service
	// (default PrecedenceEstimateFirst).
	Precedence Precedence

	// WattsPerCore converts resource-monitor CPU cores into a
	// power-equivalent weight (default 1.0). Attribution is
	// scale-invariant, so the factor only matters when estimator and
	// resource weights meet inside the same frame.
	WattsPerCore float64
}

// Stats describes one alignment pass.
type Stats struct {
	Resolution   time.Duration
	Frames       int
	DroppedTicks int // ticks outside the measured source's span
}

type point struct {
	t time.Time
	v float64
}

// Align produces the ordered frame sequence for one run. The input must be
// chronologically sorted (ingest.Load's output already is). Identical inputs
// always yield identical frames: there is no randomness and no wall-clock
// dependence.
func Align(samples []sample.Sample, opts Options) ([]AlignedFrame, Stats, error) {
	if !opts.Precedence.Valid() {
		if opts.Precedence != "" {
			return nil, Stats{}, fmt.Errorf("align: unknown precedence %q", opts.Precedence)
		}
		opts.Precedence = PrecedenceEstimateFirst
	}
	if opts.Window <= 0 {
		opts.Window = 5 * time.Second
	}
	if opts.WattsPerCore <= 0 {
		opts.WattsPerCore = 1.0
	}

	var measured []point
	estimates := make(map[string][]point)
	resources := make(map[string][]point)

	for _, s := range samples {
		switch s.Kind {
		case sample.KindMeasured:
			measured = append(measured, point{s.Time, s.Value})
		case sample.KindEstimate:
			estimates[s.Service] = append(estimates[s.Service], point{s.Time, s.Value})
		case sample.KindResource:
			resources[s.Service] = append(resources[s.Service], point{s.Time, s.Value})
		}
	}
	if len(measured) == 0 {
		return nil, Stats{}, fmt.Errorf("align: no measured samples")
	}

	resolution := opts.Resolution
	if resolution <= 0 {
		resolution = nativeResolution(measured, estimates, resources)
	}

	services := make([]string, 0, len(estimates)+len(resources))
	seen := make(map[string]bool)
	for svc := range estimates {
		services = append(services, svc)
		seen[svc] = true
	}
	for svc := range resources {
		if !seen[svc] {
			services = append(services, svc)
		}
	}
	sort.Strings(services)

	first, last := samples[0].Time, samples[len(samples)-1].Time
	measuredFirst, measuredLast := measured[0].t, measured[len(measured)-1].t

	var (
		frames []AlignedFrame
		stats  = Stats{Resolution: resolution}
	)
	for tick := first.Truncate(resolution); !tick.After(last); tick = tick.Add(resolution) {
		if tick.Before(first) {
			continue // grid aligns below the experiment start
		}
		if tick.Before(measuredFirst) || tick.After(measuredLast) {
			stats.DroppedTicks++
			continue
		}

		frame := AlignedFrame{
			Time:      tick,
			Measured:  interpolate(measured, tick),
			Estimates: make(map[string]float64),
		}
		for _, svc := range services {
			if w, ok := weightAt(estimates[svc], resources[svc], tick, opts); ok {
				frame.Estimates[svc] = w
			}
		}
		frames = append(frames, frame)
	}
	stats.Frames = len(frames)

	return frames, stats, nil
}

// nativeResolution returns the largest median inter-sample interval across
// the input sources, rounded up to whole seconds. Sources too short to have
// a median interval are skipped; if none qualifies the floor of 1s applies.
func nativeResolution(measured []point, estimates, resources map[string][]point) time.Duration {
	coarsest := time.Second

	consider := func(pts []point) {
		if d, ok := medianInterval(pts); ok && d > coarsest {
			coarsest = d
		}
	}
	consider(measured)
	for _, pts := range estimates {
		consider(pts)
	}
	for _, pts := range resources {
		consider(pts)
	}
	return coarsest
}

func medianInterval(pts []point) (time.Duration, bool) {
	if len(pts) < 3 {
		return 0, false
	}
	diffs := make([]time.Duration, 0, len(pts)-1)
	for i := 1; i < len(pts); i++ {
		if d := pts[i].t.Sub(pts[i-1].t); d > 0 {
			diffs = append(diffs, d)
		}
	}
	if len(diffs) == 0 {
		return 0, false
	}
	sort.Slice(diffs, func(i, j int) bool { return diffs[i] < diffs[j] })
	d := diffs[len(diffs)/2]

	secs := time.Duration(math.Ceil(d.Seconds())) * time.Second
	if secs < time.Second {
		secs = time.Second
	}
	return secs, true
}

// interpolate returns the measured value at t, linearly interpolated between
// the two bracketing samples. The caller guarantees t is inside the measured
// span.
func interpolate(measured []point, t time.Time) float64 {
	i := sort.Search(len(measured), func(i int) bool {
		return !measured[i].t.Before(t)
	})
	if i < len(measured) && measured[i].t.Equal(t) {
		return measured[i].v
	}
	lo, hi := measured[i-1], measured[i]

	span := hi.t.Sub(lo.t).Seconds()
	if span <= 0 {
		return lo.v
	}
	frac := t.Sub(lo.t).Seconds() / span
	return lo.v + (hi.v-lo.v)*frac
}

// weightAt resolves one service's weight at a tick per the precedence policy.
func weightAt(est, res []point, t time.Time, opts Options) (float64, bool) {
	fromEstimate := func() (float64, bool) {
		return nearest(est, t, opts.Window)
	}
	fromResource := func() (float64, bool) {
		v, ok := nearest(res, t, opts.Window)
		return v * opts.WattsPerCore, ok
	}

	switch opts.Precedence {
	case PrecedenceEstimateOnly:
		return fromEstimate()
	case PrecedenceResourceOnly:
		return fromResource()
	case PrecedenceResourceFirst:
		if v, ok := fromResource(); ok {
			return v, ok
		}
		return fromEstimate()
	default: // PrecedenceEstimateFirst
		if v, ok := fromEstimate(); ok {
			return v, ok
		}
		return fromResource()
	}
}

// nearest returns the value of the sample closest to t within the window.
// Ties at equal distance resolve to the earlier sample.
func nearest(pts []point, t time.Time, window time.Duration) (float64, bool) {
	if len(pts) == 0 {
		return 0, false
	}
	i := sort.Search(len(pts), func(i int) bool {
		return !pts[i].t.Before(t)
	})

	best := -1
	var bestDist time.Duration
	if i > 0 {
		best = i - 1
		bestDist = t.Sub(pts[i-1].t)
	}
	if i < len(pts) {
		if d := pts[i].t.Sub(t); best == -1 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best == -1 || bestDist > window {
		return 0, false
	}
	return pts[best].v, true
}
