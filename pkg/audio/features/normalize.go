package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// sanitize replaces NaN and ±Inf with 0 in place
func sanitize(x []float64) []float64 {
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			x[i] = 0
		}
	}
	return x
}

// minMax scales x into [0, 1] in place using the whole-series extrema.
// A constant series maps to all zeros.
func minMax(x []float64) []float64 {
	if len(x) == 0 {
		return x
	}
	sanitize(x)

	lo, hi := floats.Min(x), floats.Max(x)
	rng := hi - lo
	if rng <= 0 {
		for i := range x {
			x[i] = 0
		}
		return x
	}

	for i, v := range x {
		x[i] = (v - lo) / rng
	}
	// (hi-lo)/rng is exactly 1 but intermediate values can drift one ulp
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		} else if v > 1 {
			x[i] = 1
		}
	}
	return x
}

// minMaxColumns normalizes each component of a frame-major matrix
// independently across the track.
func minMaxColumns(m [][]float64) [][]float64 {
	if len(m) == 0 {
		return m
	}
	width := len(m[0])
	col := make([]float64, len(m))
	for k := range width {
		for t := range m {
			col[t] = m[t][k]
		}
		minMax(col)
		for t := range m {
			m[t][k] = col[t]
		}
	}
	return m
}

// rowMeans averages each frame's vector
func rowMeans(m [][]float64) []float64 {
	out := make([]float64, len(m))
	for t, row := range m {
		if len(row) > 0 {
			out[t] = floats.Sum(row) / float64(len(row))
		}
	}
	return out
}

// align forces a derived series onto the N-frame grid. Shorter series are
// front-padded with zeros (difference-style series lose their first frame),
// longer ones are truncated.
func align(x []float64, n int) []float64 {
	switch {
	case len(x) == n:
		return x
	case len(x) > n:
		return x[:n]
	}
	out := make([]float64, n)
	copy(out[n-len(x):], x)
	return out
}

func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
