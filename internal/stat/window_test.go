package stat

import "testing"

func TestWindowStatsEmpty(t *testing.T) {
	w := NewWindow(4)
	got := w.Stats()
	if got.Mean != 0 || got.StdDev != 0 {
		t.Fatalf("Stats() on empty window = %+v, want zero value", got)
	}
	if p := w.P(0); p != 1 {
		t.Fatalf("P(0) on empty window = %v, want 1", p)
	}
}

func TestWindowEvictsOldestPastCapacity(t *testing.T) {
	w := NewWindow(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Add(v)
	}
	// Only {3, 4, 5} should remain in the rolling window.
	got := w.Stats()
	wantMean := (3.0 + 4.0 + 5.0) / 3.0
	if diff := got.Mean - wantMean; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("Stats().Mean = %v, want %v", got.Mean, wantMean)
	}
}

func TestWindowTotalSurvivesEviction(t *testing.T) {
	w := NewWindow(2)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Add(v)
	}
	total := w.TotalStats()
	wantMean := (1.0 + 2.0 + 3.0 + 4.0 + 5.0) / 5.0
	if diff := total.Mean - wantMean; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("TotalStats().Mean = %v, want %v", total.Mean, wantMean)
	}
}

func TestWindowPIsMonotonicallyDecreasing(t *testing.T) {
	w := NewWindow(10)
	for _, v := range []float64{10, 20, 30, 40, 50} {
		w.Add(v)
	}
	pLow := w.P(0)
	pMid := w.P(30)
	pHigh := w.P(1000)
	if !(pLow >= pMid && pMid >= pHigh) {
		t.Fatalf("P not monotonically non-increasing: P(0)=%v P(30)=%v P(1000)=%v", pLow, pMid, pHigh)
	}
	if pHigh != 0 {
		t.Fatalf("P(1000) = %v, want 0 (no sample reaches that high)", pHigh)
	}
}
