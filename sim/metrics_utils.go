// sim/metrics_utils.go
package sim

import (
	"gonum.org/v1/gonum/stat"
)

// Summary condenses a histogram of intersection counts.
type Summary struct {
	Trials       int64   `json:"trials"`
	Mean         float64 `json:"mean_intersections"`
	StdDev       float64 `json:"stddev_intersections"`
	Mode         int     `json:"mode_intersections"`
	P50          float64 `json:"p50_intersections"`
	P90          float64 `json:"p90_intersections"`
	P99          float64 `json:"p99_intersections"`
	PNoCollision float64 `json:"p_no_collision"` // fraction of trials where every cell was unique
	First        int     `json:"first_populated"`
	Last         int     `json:"last_populated"`
}

// Summarize computes weighted statistics over h, treating each bucket index
// as a value and its count as the weight. An empty histogram yields a
// zero Summary with First = Last = -1.
func Summarize(h Histogram) Summary {
	total := h.Total()
	if total == 0 {
		return Summary{First: -1, Last: -1}
	}

	x := make([]float64, len(h))
	w := make([]float64, len(h))
	for i, v := range h {
		x[i] = float64(i)
		w[i] = float64(v)
	}
	mean, std := stat.MeanStdDev(x, w)
	if total == 1 {
		// sample variance is undefined for one trial
		std = 0
	}

	first, last := PopulatedRange(h)
	return Summary{
		Trials:       total,
		Mean:         mean,
		StdDev:       std,
		Mode:         mode(h),
		P50:          stat.Quantile(0.50, stat.Empirical, x, w),
		P90:          stat.Quantile(0.90, stat.Empirical, x, w),
		P99:          stat.Quantile(0.99, stat.Empirical, x, w),
		PNoCollision: float64(h[0]) / float64(total),
		First:        first,
		Last:         last,
	}
}

// PopulatedRange returns the first and last non-zero bucket, or -1, -1.
func PopulatedRange(h Histogram) (first, last int) {
	first, last = -1, -1
	for i, v := range h {
		if v == 0 {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	return first, last
}

// lowest index wins ties
func mode(h Histogram) int {
	best := 0
	for i, v := range h {
		if v > h[best] {
			best = i
		}
	}
	return best
}
