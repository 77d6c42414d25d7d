package timeline

import (
	"testing"
	"time"

	"github.com/riiali/green-microbench/pkg/sample"
)

var base = time.Date(2026, 1, 4, 16, 11, 0, 0, time.UTC)

func measuredAt(offset time.Duration, watts float64) sample.Sample {
	return sample.Sample{Time: base.Add(offset), Kind: sample.KindMeasured, Value: watts, Unit: sample.UnitWatts}
}

func estimateAt(offset time.Duration, svc string, watts float64) sample.Sample {
	return sample.Sample{Time: base.Add(offset), Kind: sample.KindEstimate, Service: svc, Value: watts, Unit: sample.UnitWatts}
}

func resourceAt(offset time.Duration, svc string, cores float64) sample.Sample {
	return sample.Sample{Time: base.Add(offset), Kind: sample.KindResource, Service: svc, Value: cores, Unit: sample.UnitCores}
}

func align(t *testing.T, samples []sample.Sample, opts Options) ([]AlignedFrame, Stats) {
	t.Helper()
	sample.SortChrono(samples)
	frames, stats, err := Align(samples, opts)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	return frames, stats
}

func TestAlign_InterpolatesMeasured(t *testing.T) {
	samples := []sample.Sample{
		measuredAt(0, 10),
		measuredAt(4*time.Second, 18),
		estimateAt(1*time.Second, "booking", 1),
		estimateAt(3*time.Second, "booking", 2),
	}

	frames, stats := align(t, samples, Options{Resolution: 2 * time.Second})
	if stats.Frames != 3 {
		t.Fatalf("got %d frames, want 3", stats.Frames)
	}
	// Tick at +2s sits halfway between 10 W and 18 W.
	if got := frames[1].Measured; got != 14 {
		t.Errorf("interpolated measured = %v, want 14", got)
	}
	if frames[0].Measured != 10 || frames[2].Measured != 18 {
		t.Errorf("exact ticks should use sample values: %v / %v", frames[0].Measured, frames[2].Measured)
	}
}

func TestAlign_NoExtrapolationOutsideMeasuredSpan(t *testing.T) {
	// Estimator runs 10s longer than the meter on both ends.
	samples := []sample.Sample{
		estimateAt(-10*time.Second, "booking", 1),
		measuredAt(0, 10),
		measuredAt(10*time.Second, 12),
		estimateAt(20*time.Second, "booking", 1),
	}

	frames, stats := align(t, samples, Options{Resolution: 5 * time.Second})
	for _, f := range frames {
		if f.Time.Before(base) || f.Time.After(base.Add(10*time.Second)) {
			t.Errorf("frame %v outside measured span", f.Time)
		}
	}
	if stats.DroppedTicks == 0 {
		t.Error("expected dropped ticks outside the measured span")
	}
}

func TestAlign_WindowBoundsEstimateLookup(t *testing.T) {
	samples := []sample.Sample{
		measuredAt(0, 10),
		measuredAt(60*time.Second, 10),
		estimateAt(2*time.Second, "booking", 1.5),
		estimateAt(58*time.Second, "search", 0.5),
	}

	frames, _ := align(t, samples, Options{Resolution: 30 * time.Second, Window: 5 * time.Second})
	if len(frames) != 3 {
		t.Fatalf("got %d frames", len(frames))
	}
	if w, ok := frames[0].Estimates["booking"]; !ok || w != 1.5 {
		t.Errorf("frame 0 booking = %v, %v; want 1.5 within window", w, ok)
	}
	// +30s is 28s from either estimate: both services absent.
	if len(frames[1].Estimates) != 0 {
		t.Errorf("frame 1 should have no estimates, got %v", frames[1].Estimates)
	}
	if w, ok := frames[2].Estimates["search"]; !ok || w != 0.5 {
		t.Errorf("frame 2 search = %v, %v; want 0.5 within window", w, ok)
	}
}

func TestAlign_Precedence(t *testing.T) {
	samples := func() []sample.Sample {
		return []sample.Sample{
			measuredAt(0, 10),
			measuredAt(2*time.Second, 10),
			estimateAt(0, "booking", 3),
			resourceAt(0, "booking", 0.5),
			resourceAt(0, "search", 0.25),
		}
	}

	tests := []struct {
		precedence Precedence
		booking    float64
		search     float64
		hasSearch  bool
	}{
		{PrecedenceEstimateFirst, 3, 0.5, true}, // estimator wins, resource fills the gap
		{PrecedenceResourceFirst, 1.0, 0.5, true},
		{PrecedenceEstimateOnly, 3, 0, false},
		{PrecedenceResourceOnly, 1.0, 0.5, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.precedence), func(t *testing.T) {
			frames, _ := align(t, samples(), Options{
				Resolution:   2 * time.Second,
				Precedence:   tt.precedence,
				WattsPerCore: 2.0,
			})
			got := frames[0].Estimates
			if got["booking"] != tt.booking {
				t.Errorf("booking = %v, want %v", got["booking"], tt.booking)
			}
			w, ok := got["search"]
			if ok != tt.hasSearch || (ok && w != tt.search) {
				t.Errorf("search = %v, %v; want %v, %v", w, ok, tt.search, tt.hasSearch)
			}
		})
	}
}

func TestAlign_AutoResolutionUsesCoarsestSource(t *testing.T) {
	// Meter at 1s, resource monitor at 5s: auto resolution is 5s.
	samples := []sample.Sample{}
	for i := 0; i <= 20; i++ {
		samples = append(samples, measuredAt(time.Duration(i)*time.Second, 10))
	}
	for i := 0; i <= 4; i++ {
		samples = append(samples, resourceAt(time.Duration(i*5)*time.Second, "booking", 0.5))
	}

	_, stats := align(t, samples, Options{})
	if stats.Resolution != 5*time.Second {
		t.Errorf("auto resolution = %v, want 5s", stats.Resolution)
	}
}

func TestAlign_Deterministic(t *testing.T) {
	build := func() []sample.Sample {
		return []sample.Sample{
			measuredAt(0, 10), measuredAt(2*time.Second, 11), measuredAt(4*time.Second, 9),
			estimateAt(1*time.Second, "a", 1), estimateAt(3*time.Second, "b", 2),
			resourceAt(2*time.Second, "c", 0.3),
		}
	}

	a, _ := align(t, build(), Options{Resolution: time.Second})
	// Shuffled record order: SortChrono restores a total order before Align.
	shuffled := build()
	shuffled[0], shuffled[4] = shuffled[4], shuffled[0]
	shuffled[1], shuffled[5] = shuffled[5], shuffled[1]
	b, _ := align(t, shuffled, Options{Resolution: time.Second})

	if len(a) != len(b) {
		t.Fatalf("frame counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Time.Equal(b[i].Time) || a[i].Measured != b[i].Measured {
			t.Fatalf("frame %d differs", i)
		}
		if len(a[i].Estimates) != len(b[i].Estimates) {
			t.Fatalf("frame %d estimate sets differ", i)
		}
		for svc, w := range a[i].Estimates {
			if b[i].Estimates[svc] != w {
				t.Fatalf("frame %d service %s differs", i, svc)
			}
		}
	}
}

func TestAlign_NoMeasuredSamples(t *testing.T) {
	samples := []sample.Sample{estimateAt(0, "booking", 1)}
	if _, _, err := Align(samples, Options{}); err == nil {
		t.Fatal("expected error without measured samples")
	}
}
