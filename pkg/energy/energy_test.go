package energy

import (
	"math"
	"testing"
	"time"

	"github.com/riiali/green-microbench/pkg/attribution"
)

var start = time.Date(2026, 1, 4, 16, 11, 0, 0, time.UTC)

func frameAt(offset time.Duration, power map[string]float64, unattributed float64) attribution.AttributedFrame {
	return attribution.AttributedFrame{Time: start.Add(offset), Power: power, Unattributed: unattributed}
}

func TestIntegrate_Trapezoid(t *testing.T) {
	// 10 W for 10s then ramping to 20 W over 10s:
	// 100 J + (10+20)/2*10 = 250 J total.
	frames := []attribution.AttributedFrame{
		frameAt(0, map[string]float64{"booking": 10}, 0),
		frameAt(10*time.Second, map[string]float64{"booking": 10}, 0),
		frameAt(20*time.Second, map[string]float64{"booking": 20}, 0),
	}

	accs, gaps := Integrate(frames, Options{Resolution: 10 * time.Second})
	if len(gaps) != 0 {
		t.Fatalf("unexpected gaps: %v", gaps)
	}
	acc := accs["booking"]
	if math.Abs(acc.Joules-250) > 1e-9 {
		t.Errorf("joules = %v, want 250", acc.Joules)
	}
	if got := acc.WattHours(); math.Abs(got-250.0/3600) > 1e-12 {
		t.Errorf("watt-hours = %v", got)
	}
	if acc.PeakWatts != 20 || !acc.PeakTime.Equal(start.Add(20*time.Second)) {
		t.Errorf("peak = %v at %v", acc.PeakWatts, acc.PeakTime)
	}
	if got := acc.AvgWatts(); math.Abs(got-40.0/3) > 1e-9 {
		t.Errorf("avg = %v, want 40/3", got)
	}
}

func TestIntegrate_GapsExcluded(t *testing.T) {
	// 1s cadence with two 30-minute holes. Each hole must surface as a
	// gap record and contribute zero energy.
	frames := []attribution.AttributedFrame{
		frameAt(0, map[string]float64{"a": 10}, 0),
		frameAt(1*time.Second, map[string]float64{"a": 10}, 0),
		frameAt(1*time.Second+30*time.Minute, map[string]float64{"a": 10}, 0),
		frameAt(2*time.Second+30*time.Minute, map[string]float64{"a": 10}, 0),
		frameAt(2*time.Second+60*time.Minute, map[string]float64{"a": 10}, 0),
	}

	accs, gaps := Integrate(frames, Options{Resolution: time.Second})
	if len(gaps) != 2 {
		t.Fatalf("got %d gaps, want 2: %v", len(gaps), gaps)
	}
	for _, g := range gaps {
		if g.Duration() != 30*time.Minute {
			t.Errorf("gap duration = %v", g.Duration())
		}
	}
	// Only the two 1s bridges integrate: 2 * 10 J.
	if got := accs["a"].Joules; math.Abs(got-20) > 1e-9 {
		t.Errorf("joules = %v, want 20", got)
	}
}

func TestIntegrate_SystemBucket(t *testing.T) {
	frames := []attribution.AttributedFrame{
		frameAt(0, nil, 6),
		frameAt(2*time.Second, nil, 6),
	}

	accs, _ := Integrate(frames, Options{Resolution: 2 * time.Second})
	sys := accs[attribution.SystemService]
	if sys == nil {
		t.Fatal("missing system accumulator")
	}
	if math.Abs(sys.Joules-12) > 1e-9 || sys.PeakWatts != 6 {
		t.Errorf("system: %v J peak %v", sys.Joules, sys.PeakWatts)
	}
}

func TestIntegrate_PeakTiesKeepEarliest(t *testing.T) {
	frames := []attribution.AttributedFrame{
		frameAt(0, map[string]float64{"a": 5}, 0),
		frameAt(1*time.Second, map[string]float64{"a": 9}, 0),
		frameAt(2*time.Second, map[string]float64{"a": 9}, 0),
	}

	accs, _ := Integrate(frames, Options{Resolution: time.Second})
	if !accs["a"].PeakTime.Equal(start.Add(1 * time.Second)) {
		t.Errorf("peak time = %v, want first occurrence", accs["a"].PeakTime)
	}
}

func TestIntegrate_IndependentOfWorkerCount(t *testing.T) {
	frames := make([]attribution.AttributedFrame, 0, 100)
	for i := 0; i < 100; i++ {
		frames = append(frames, frameAt(time.Duration(i)*time.Second, map[string]float64{
			"a": float64(i % 7), "b": 3.3, "c": float64(i) * 0.01, "d": 0.5, "e": 12,
		}, 0.25))
	}

	want, wantGaps := Integrate(frames, Options{Resolution: time.Second, Workers: 1})
	for _, workers := range []int{2, 3, 8, 32} {
		got, gaps := Integrate(frames, Options{Resolution: time.Second, Workers: workers})
		if len(gaps) != len(wantGaps) {
			t.Fatalf("workers=%d: gap count differs", workers)
		}
		if len(got) != len(want) {
			t.Fatalf("workers=%d: accumulator count differs", workers)
		}
		for svc, w := range want {
			g := got[svc]
			if g.Joules != w.Joules || g.PeakWatts != w.PeakWatts || g.SumWatts != w.SumWatts || g.Samples != w.Samples {
				t.Errorf("workers=%d service %s: %+v vs %+v", workers, svc, g, w)
			}
		}
	}
}

func TestIntegrate_Empty(t *testing.T) {
	accs, gaps := Integrate(nil, Options{Resolution: time.Second})
	if len(accs) != 0 || gaps != nil {
		t.Errorf("empty input: %v %v", accs, gaps)
	}
}
