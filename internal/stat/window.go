// Package stat provides a bounded rolling sample window with empirical
// distribution statistics, backed by gonum's numerical routines rather than
// hand-rolled accumulators.
package stat

import (
	"math"
	"sort"
	"sync"

	gonumstat "gonum.org/v1/gonum/stat"
)

// Aggregate reports Mean and StdDev over whatever samples a Window or Total
// currently holds. Both return 0 when no samples have been recorded.
type Aggregate struct {
	Mean   float64
	StdDev float64
}

// Window is a fixed-capacity rolling sample buffer with an unbounded running
// total alongside it. Samples are stored as float64; callers decide the
// unit (this package never assumes milliseconds or seconds).
//
// All methods are safe for concurrent use.
type Window struct {
	mu       sync.Mutex
	capacity int
	samples  []float64 // ring buffer, oldest overwritten first
	next     int       // next write position
	filled   bool      // true once samples has wrapped at least once

	totalCount int
	totalSum   float64
	totalSumSq float64
}

// NewWindow creates a Window holding up to capacity samples.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		panic("stat: capacity must be positive")
	}
	return &Window{
		capacity: capacity,
		samples:  make([]float64, 0, capacity),
	}
}

// Add records a new sample, evicting the oldest if the window is full, and
// folds it into the unbounded running total.
func (w *Window) Add(v float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.samples) < w.capacity {
		w.samples = append(w.samples, v)
	} else {
		w.samples[w.next] = v
		w.next = (w.next + 1) % w.capacity
		w.filled = true
	}

	w.totalCount++
	w.totalSum += v
	w.totalSumSq += v * v
}

// Stats returns the rolling window's mean and standard deviation, computed
// with gonum.org/v1/gonum/stat over the samples currently held.
func (w *Window) Stats() Aggregate {
	w.mu.Lock()
	values := append([]float64(nil), w.samples...)
	w.mu.Unlock()

	if len(values) == 0 {
		return Aggregate{}
	}
	mean := gonumstat.Mean(values, nil)
	stddev := gonumstat.StdDev(values, nil)
	return Aggregate{Mean: mean, StdDev: stddev}
}

// TotalStats returns mean and standard deviation over every sample Add has
// ever seen, independent of the rolling window's eviction. These are kept as
// incremental sums rather than a growing slice so Total never grows the
// window's memory footprint.
func (w *Window) TotalStats() Aggregate {
	w.mu.Lock()
	n, sum, sumSq := w.totalCount, w.totalSum, w.totalSumSq
	w.mu.Unlock()

	if n == 0 {
		return Aggregate{}
	}
	mean := sum / float64(n)
	if n < 2 {
		return Aggregate{Mean: mean}
	}
	variance := (sumSq - float64(n)*mean*mean) / float64(n-1)
	if variance < 0 {
		variance = 0 // guards against floating-point drift
	}
	return Aggregate{Mean: mean, StdDev: math.Sqrt(variance)}
}

// P returns the empirical survival probability P(X >= x): the fraction of
// samples currently in the window at least as large as x, computed via
// gonum's empirical CDF as 1 - CDF evaluated at the largest float64 below x.
//
// Returns 1 when the window is empty (no evidence to suggest x is
// unreachable).
func (w *Window) P(x float64) float64 {
	w.mu.Lock()
	values := append([]float64(nil), w.samples...)
	w.mu.Unlock()

	if len(values) == 0 {
		return 1
	}
	sort.Float64s(values)
	return 1 - gonumstat.CDF(math.Nextafter(x, math.Inf(-1)), gonumstat.Empirical, values, nil)
}
