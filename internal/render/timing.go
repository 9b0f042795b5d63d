package render

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// TimingStats summarizes per-frame work time in milliseconds
type TimingStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
	Count  int     `json:"count"`
}

// calculateTiming computes the summary for a set of samples
func calculateTiming(data []float64) TimingStats {
	if len(data) == 0 {
		return TimingStats{}
	}

	sorted := slices.Clone(data)
	slices.Sort(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	stats := TimingStats{
		Count:  len(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		P95:    stat.Quantile(0.95, stat.LinInterp, sorted, nil),
		P99:    stat.Quantile(0.99, stat.LinInterp, sorted, nil),
		Mean:   mean,
		StdDev: std,
	}
	return sanitizeTiming(stats)
}

// sanitizeTiming replaces NaN and infinite values so stats always encode as JSON
func sanitizeTiming(s TimingStats) TimingStats {
	for _, v := range []*float64{&s.Mean, &s.Median, &s.P95, &s.P99, &s.Min, &s.Max, &s.StdDev} {
		if math.IsInf(*v, 0) || math.IsNaN(*v) {
			*v = 0
		}
	}
	return s
}

// frameTimeWindow is the number of recent frame times kept for TimingStats
const frameTimeWindow = 4096

// timingRing keeps the most recent samples in a fixed-size buffer
type timingRing struct {
	samples []float64
	next    int
	full    bool
}

func newTimingRing(size int) *timingRing {
	return &timingRing{samples: make([]float64, size)}
}

func (r *timingRing) add(v float64) {
	r.samples[r.next] = v
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.full = true
	}
}

// values returns the retained samples in no particular order
func (r *timingRing) values() []float64 {
	if r.full {
		return r.samples
	}
	return r.samples[:r.next]
}
