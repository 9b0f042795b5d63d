package features

import (
	"runtime"
	"slices"

	"github.com/sourcegraph/conc/pool"
)

// hpss splits a magnitude spectrogram into harmonic and percussive parts by
// median filtering along time (harmonic) and frequency (percussive), then
// applying Wiener-style soft masks.
func hpss(mag [][]float64, kernel int) (harmonic, percussive [][]float64) {
	n := len(mag)
	if n == 0 {
		return nil, nil
	}
	bins := len(mag[0])
	half := kernel / 2

	h := make([][]float64, n)
	p := make([][]float64, n)
	for t := range n {
		h[t] = make([]float64, bins)
		p[t] = make([]float64, bins)
	}

	workers := max(1, runtime.NumCPU())

	// Harmonic: median across neighbouring frames for each bin
	hp := pool.New().WithMaxGoroutines(workers)
	for _, r := range chunks(bins, workers) {
		hp.Go(func() {
			window := make([]float64, 0, kernel)
			for k := r[0]; k < r[1]; k++ {
				for t := range n {
					window = window[:0]
					for j := max(0, t-half); j <= min(n-1, t+half); j++ {
						window = append(window, mag[j][k])
					}
					h[t][k] = median(window)
				}
			}
		})
	}
	hp.Wait()

	// Percussive: median across neighbouring bins for each frame
	pp := pool.New().WithMaxGoroutines(workers)
	for _, r := range chunks(n, workers) {
		pp.Go(func() {
			window := make([]float64, 0, kernel)
			for t := r[0]; t < r[1]; t++ {
				row := mag[t]
				for k := range bins {
					window = window[:0]
					window = append(window, row[max(0, k-half):min(bins, k+half+1)]...)
					p[t][k] = median(window)
				}
			}
		})
	}
	pp.Wait()

	harmonic = make([][]float64, n)
	percussive = make([][]float64, n)
	for t := range n {
		harmonic[t] = make([]float64, bins)
		percussive[t] = make([]float64, bins)
		for k := range bins {
			hh := h[t][k] * h[t][k]
			pq := p[t][k] * p[t][k]
			total := hh + pq
			if total == 0 {
				continue
			}
			harmonic[t][k] = mag[t][k] * hh / total
			percussive[t][k] = mag[t][k] * pq / total
		}
	}
	return harmonic, percussive
}

// chunks splits [0, n) into at most parts contiguous ranges
func chunks(n, parts int) [][2]int {
	if n <= 0 {
		return nil
	}
	parts = max(1, min(parts, n))
	size := (n + parts - 1) / parts
	out := make([][2]int, 0, parts)
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}

// median sorts its argument in place
func median(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	slices.Sort(x)
	mid := len(x) / 2
	if len(x)%2 == 1 {
		return x[mid]
	}
	return (x[mid-1] + x[mid]) / 2
}
