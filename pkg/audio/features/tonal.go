package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	chromaFmin = 65.0 // C2
	chromaFmax = 8000.0
)

// chromagram folds a magnitude spectrogram into 12 pitch classes (C = 0).
// Each frame is scaled so its strongest class is 1; silent frames stay zero.
func chromagram(mag [][]float64, freqs []float64) [][]float64 {
	classes := make([]int, len(freqs))
	for k, f := range freqs {
		classes[k] = -1
		if f < chromaFmin || f > chromaFmax {
			continue
		}
		midi := 12*math.Log2(f/440.0) + 69
		classes[k] = ((int(math.Round(midi)) % 12) + 12) % 12
	}

	out := make([][]float64, len(mag))
	for t, frame := range mag {
		row := make([]float64, 12)
		for k, v := range frame {
			if c := classes[k]; c >= 0 {
				row[c] += v * v
			}
		}
		if peak := floats.Max(row); peak > 0 {
			floats.Scale(1/peak, row)
		}
		out[t] = row
	}
	return out
}

// tonnetzBasis is the 6x12 projection of pitch classes onto the circles of
// fifths, minor thirds and major thirds.
func tonnetzBasis() *mat.Dense {
	basis := mat.NewDense(6, 12, nil)
	radii := [3]float64{1, 1, 0.5}
	angles := [3]float64{7 * math.Pi / 6, 3 * math.Pi / 2, 2 * math.Pi / 3}
	for p := range 12 {
		for i := range 3 {
			phi := float64(p) * angles[i]
			basis.Set(2*i, p, radii[i]*math.Sin(phi))
			basis.Set(2*i+1, p, radii[i]*math.Cos(phi))
		}
	}
	return basis
}

// tonnetz projects L1-normalized chroma frames onto the tonal centroid space.
// Returns a frame-major N x 6 matrix.
func tonnetz(chroma [][]float64) [][]float64 {
	n := len(chroma)
	if n == 0 {
		return nil
	}

	c := mat.NewDense(12, n, nil)
	for t, row := range chroma {
		total := floats.Sum(row)
		if total <= 0 {
			continue
		}
		for p, v := range row {
			c.Set(p, t, v/total)
		}
	}

	var centroid mat.Dense
	centroid.Mul(tonnetzBasis(), c)

	out := make([][]float64, n)
	for t := range n {
		out[t] = mat.Col(nil, t, &centroid)
	}
	return out
}
