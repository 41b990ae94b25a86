// Package testutil provides assertion helpers shared by the sim test packages.
package testutil

import (
	"math"
	"testing"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertHistogramShape checks the two properties every backend guarantees:
// one bucket per possible intersection count, and counts summing to trials.
func AssertHistogramShape(t *testing.T, h []int64, nCells int, trials int64) {
	t.Helper()
	if len(h) != nCells {
		t.Errorf("histogram length: got %d, want %d", len(h), nCells)
	}
	var sum int64
	for i, v := range h {
		if v < 0 {
			t.Errorf("histogram[%d] = %d, want non-negative", i, v)
		}
		sum += v
	}
	if sum != trials {
		t.Errorf("histogram sum: got %d, want %d", sum, trials)
	}
}
