package sim

import (
	"errors"
	"fmt"
	"slices"
)

// ErrCounterInvariant signals an intersection count outside [0, n_cells) or a
// malformed histogram. It indicates an algorithmic defect and aborts the run.
var ErrCounterInvariant = errors.New("collision counter invariant violated")

// Histogram counts trials by intersection count: index i holds the number of
// trials that produced exactly i intersections. Its length is n_cells.
type Histogram []int64

// NewHistogram returns an empty histogram for nCells cells.
func NewHistogram(nCells int) Histogram {
	return make(Histogram, nCells)
}

// Total returns the number of trials recorded in h.
func (h Histogram) Total() int64 {
	var total int64
	for _, v := range h {
		total += v
	}
	return total
}

// Result is an accumulated result handed to callers. The caller owns it.
type Result struct {
	Histogram            Histogram
	Trials               int64 // equals Histogram.Total()
	Chunks               int64 // whole chunks merged; zero for a finite run
	ZeroExpressionTotal  int64 // sum of per-trial zero-expression counts
	ZeroExpressionTrials int64 // trials that reported a zero-expression count
}

// AverageZeroExpression returns the mean number of cells expressing no gene
// per trial, over the trials that reported it. Zero when none did.
func (r *Result) AverageZeroExpression() float64 {
	if r.ZeroExpressionTrials == 0 {
		return 0
	}
	return float64(r.ZeroExpressionTotal) / float64(r.ZeroExpressionTrials)
}

// FromHistogram wraps a raw backend histogram produced by resolution trials.
// The histogram is used as-is; it is only checked for shape and total.
func FromHistogram(h Histogram, resolution int) (*Result, error) {
	if len(h) == 0 {
		return nil, fmt.Errorf("%w: empty histogram", ErrCounterInvariant)
	}
	for i, v := range h {
		if v < 0 {
			return nil, fmt.Errorf("%w: histogram[%d] = %d is negative", ErrCounterInvariant, i, v)
		}
	}
	if total := h.Total(); total != int64(resolution) {
		return nil, fmt.Errorf("%w: histogram holds %d trials, want %d", ErrCounterInvariant, total, resolution)
	}
	return &Result{Histogram: h, Trials: int64(resolution)}, nil
}

// Accumulator is a running histogram plus zero-expression sum.
// Merging is index-wise addition, so merge order never changes the total.
//
// Thread-safety: NOT thread-safe. Concurrent users must serialize access.
type Accumulator struct {
	hist       Histogram
	trials     int64
	zeroTotal  int64
	zeroTrials int64
}

// NewAccumulator returns an empty accumulator for nCells cells.
func NewAccumulator(nCells int) *Accumulator {
	return &Accumulator{hist: NewHistogram(nCells)}
}

// Record counts one trial with the given number of intersections.
func (a *Accumulator) Record(intersections int) error {
	if intersections < 0 || intersections >= len(a.hist) {
		return fmt.Errorf("%w: intersection count %d outside [0, %d)", ErrCounterInvariant, intersections, len(a.hist))
	}
	a.hist[intersections]++
	a.trials++
	return nil
}

// RecordZero adds one trial's zero-expression count to the running sum.
func (a *Accumulator) RecordZero(count int) {
	a.zeroTotal += int64(count)
	a.zeroTrials++
}

// Merge adds every bin of r into a. Either all bins are added or, on a
// shape mismatch, none are.
func (a *Accumulator) Merge(r *Result) error {
	if len(r.Histogram) != len(a.hist) {
		return fmt.Errorf("%w: merging histogram of length %d into length %d", ErrCounterInvariant, len(r.Histogram), len(a.hist))
	}
	for i, v := range r.Histogram {
		a.hist[i] += v
	}
	a.trials += r.Trials
	a.zeroTotal += r.ZeroExpressionTotal
	a.zeroTrials += r.ZeroExpressionTrials
	return nil
}

// Trials returns the number of trials recorded or merged so far.
func (a *Accumulator) Trials() int64 {
	return a.trials
}

// Result returns a copy of the current state.
func (a *Accumulator) Result() *Result {
	return &Result{
		Histogram:            slices.Clone(a.hist),
		Trials:               a.trials,
		ZeroExpressionTotal:  a.zeroTotal,
		ZeroExpressionTrials: a.zeroTrials,
	}
}
