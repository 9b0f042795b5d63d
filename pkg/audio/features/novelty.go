package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// standardize stacks series column-wise into frame-major vectors, each column
// z-scored. Constant columns become zero.
func standardize(columns [][]float64, n int) [][]float64 {
	stack := make([][]float64, n)
	for t := range stack {
		stack[t] = make([]float64, len(columns))
	}
	for c, col := range columns {
		m, sd := stat.MeanStdDev(col, nil)
		if sd <= 0 || math.IsNaN(sd) {
			continue
		}
		for t := range n {
			stack[t][c] = (col[t] - m) / sd
		}
	}
	return stack
}

// noveltyCurve correlates a Gaussian-tapered checkerboard kernel along the
// diagonal of the cosine self-similarity matrix of the feature stack.
// Only similarities within the kernel width are computed.
func noveltyCurve(stack [][]float64, kernelSize int) []float64 {
	n := len(stack)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	half := max(1, kernelSize/2)

	norms := make([]float64, n)
	for t, v := range stack {
		norms[t] = floats.Norm(v, 2)
	}
	// band[t][d] = cos(stack[t], stack[t+d]) for 0 <= d < 2*half
	band := make([][]float64, n)
	for t := range n {
		band[t] = make([]float64, 2*half)
		for d := range 2 * half {
			u := t + d
			if u >= n || norms[t] == 0 || norms[u] == 0 {
				continue
			}
			band[t][d] = floats.Dot(stack[t], stack[u]) / (norms[t] * norms[u])
		}
	}
	sim := func(a, b int) float64 {
		if a > b {
			a, b = b, a
		}
		if b-a >= 2*half {
			return 0
		}
		return band[a][b-a]
	}

	sigma := float64(half) / 2
	kernel := make([][]float64, 2*half)
	for i := range kernel {
		kernel[i] = make([]float64, 2*half)
		x := float64(i-half) + 0.5
		for j := range kernel[i] {
			y := float64(j-half) + 0.5
			sign := 1.0
			if (x < 0) != (y < 0) {
				sign = -1
			}
			kernel[i][j] = sign * math.Exp(-(x*x+y*y)/(2*sigma*sigma))
		}
	}

	for t := range n {
		sum := 0.0
		for i := range kernel {
			// edges repeat the first and last frame
			a := max(0, min(n-1, t+i-half))
			for j, w := range kernel[i] {
				b := max(0, min(n-1, t+j-half))
				sum += w * sim(a, b)
			}
		}
		out[t] = math.Max(sum, 0)
	}
	return out
}
