package latency

import (
	"math"
	"slices"
	"time"
)

// Stats summarizes a set of latency samples.
//
// Min, Max and the percentiles are actual sample values. Mean, Median and
// StdDev are in nanoseconds and may be fractional.
type Stats struct {
	Count  int           `json:"count"`
	Min    time.Duration `json:"min_ns"`
	Max    time.Duration `json:"max_ns"`
	Mean   float64       `json:"mean_ns"`
	Median float64       `json:"median_ns"`
	P95    time.Duration `json:"p95_ns"`
	P99    time.Duration `json:"p99_ns"`
	StdDev float64       `json:"stddev_ns"`
}

// Reduce computes Stats over samples. The input is not modified.
//
//   - median averages the two middle elements of an even-sized set
//   - percentiles are nearest-rank: sorted[floor(count*p)], clamped to the
//     last element
//   - stddev is the population standard deviation (divides by count)
//
// Returns ErrNoData for an empty set.
func Reduce(samples []time.Duration) (Stats, error) {
	n := len(samples)
	if n == 0 {
		return Stats{}, ErrNoData
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += float64(v)
	}
	mean := sum / float64(n)

	var median float64
	if n%2 == 0 {
		median = (float64(sorted[n/2-1]) + float64(sorted[n/2])) / 2
	} else {
		median = float64(sorted[n/2])
	}

	var sq float64
	for _, v := range sorted {
		d := float64(v) - mean
		sq += d * d
	}

	return Stats{
		Count:  n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   mean,
		Median: median,
		P95:    sorted[percentileIndex(n, 95)],
		P99:    sorted[percentileIndex(n, 99)],
		StdDev: math.Sqrt(sq / float64(n)),
	}, nil
}

// percentileIndex returns floor(n*pct/100) clamped to n-1. Integer
// arithmetic keeps the rank exact (n*0.95 in floating point is not).
func percentileIndex(n, pct int) int {
	return min(n*pct/100, n-1)
}

// Pool concatenates the statistical samples of every completed run, in run
// order. Failed runs are skipped; Run.Finalize gives them no stats either.
func Pool(runs []*Run) []time.Duration {
	var pooled []time.Duration
	for _, r := range runs {
		if r == nil || r.Failed() {
			continue
		}
		pooled = append(pooled, r.Samples...)
	}
	return pooled
}
