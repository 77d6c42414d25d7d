// Package energy integrates attributed power over time into per-service
// energy totals. Integration is trapezoidal between consecutive frames;
// intervals wider than the gap limit are excluded and reported as coverage
// gaps rather than silently bridged.
package energy

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/riiali/green-microbench/pkg/attribution"
)

// Accumulator collects one service's running totals. Joules only ever grows;
// a later frame can never reduce already-accumulated energy.
type Accumulator struct {
	Joules    float64
	PeakWatts float64
	PeakTime  time.Time
	Samples   int
	SumWatts  float64
}

// observe records one frame's attributed watts. Peak ties keep the earliest
// occurrence.
func (a *Accumulator) observe(t time.Time, watts float64) {
	a.Samples++
	a.SumWatts += watts
	if watts > a.PeakWatts {
		a.PeakWatts = watts
		a.PeakTime = t
	}
}

// WattHours converts the accumulated joules.
func (a *Accumulator) WattHours() float64 {
	return a.Joules / 3600
}

// AvgWatts is the mean attributed power across all observed frames.
func (a *Accumulator) AvgWatts() float64 {
	if a.Samples == 0 {
		return 0
	}
	return a.SumWatts / float64(a.Samples)
}

// Gap is an interval between consecutive frames too wide to integrate.
type Gap struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration is the gap's width.
func (g Gap) Duration() time.Duration {
	return g.End.Sub(g.Start)
}

// Options controls integration.
type Options struct {
	// Resolution is the timeline tick spacing, used to derive the
	// default gap limit.
	Resolution time.Duration

	// MaxGap is the widest inter-frame interval still integrated
	// (default 3x Resolution). Wider intervals become coverage gaps.
	MaxGap time.Duration

	// Workers bounds the integration fan-out
	// (default runtime.GOMAXPROCS(0)).
	Workers int
}

// Integrate folds the frame sequence into per-service accumulators. The
// system bucket integrates the unattributed remainder under
// attribution.SystemService. Services are partitioned across workers by
// identifier, so each accumulator is touched by exactly one goroutine and
// the result is identical to a sequential pass regardless of worker count.
func Integrate(frames []attribution.AttributedFrame, opts Options) (map[string]*Accumulator, []Gap) {
	maxGap := opts.MaxGap
	if maxGap <= 0 {
		maxGap = 3 * opts.Resolution
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	services := serviceSet(frames)
	if len(services) == 0 || len(frames) == 0 {
		return map[string]*Accumulator{}, nil
	}
	if workers > len(services) {
		workers = len(services)
	}

	// Gaps depend only on frame spacing, so find them once up front.
	var gaps []Gap
	bridge := make([]bool, len(frames)) // bridge[i]: integrate frames[i]..frames[i+1]
	for i := 0; i+1 < len(frames); i++ {
		dt := frames[i+1].Time.Sub(frames[i].Time)
		if maxGap > 0 && dt > maxGap {
			gaps = append(gaps, Gap{Start: frames[i].Time, End: frames[i+1].Time})
			continue
		}
		bridge[i] = true
	}

	accs := make(map[string]*Accumulator, len(services))
	for _, svc := range services {
		accs[svc] = &Accumulator{}
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(services); i += workers {
				integrateService(frames, bridge, services[i], accs[services[i]])
			}
		}(w)
	}
	wg.Wait()

	return accs, gaps
}

// integrateService runs the sequential trapezoid pass for one service.
func integrateService(frames []attribution.AttributedFrame, bridge []bool, svc string, acc *Accumulator) {
	prev := watts(frames[0], svc)
	acc.observe(frames[0].Time, prev)

	for i := 1; i < len(frames); i++ {
		cur := watts(frames[i], svc)
		acc.observe(frames[i].Time, cur)
		if bridge[i-1] {
			dt := frames[i].Time.Sub(frames[i-1].Time).Seconds()
			acc.Joules += (prev + cur) / 2 * dt
		}
		prev = cur
	}
}

func watts(f attribution.AttributedFrame, svc string) float64 {
	if svc == attribution.SystemService {
		return f.Unattributed
	}
	return f.Power[svc]
}

// serviceSet returns every service seen across the run, plus the system
// bucket, sorted for deterministic partitioning.
func serviceSet(frames []attribution.AttributedFrame) []string {
	if len(frames) == 0 {
		return nil
	}
	seen := map[string]bool{attribution.SystemService: true}
	for _, f := range frames {
		for svc := range f.Power {
			seen[svc] = true
		}
	}
	services := make([]string, 0, len(seen))
	for svc := range seen {
		services = append(services, svc)
	}
	sort.Strings(services)
	return services
}
