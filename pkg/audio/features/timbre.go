package features

import (
	"math"

	"github.com/RyanBlaney/sonido-sonar/algorithms/spectral"
)

const (
	melFilters = 40
	melFmin    = 0.0
	powerFloor = 1e-10
	topDB      = 80.0
)

// melSpectrogram projects a power spectrogram onto sonido's triangular mel
// filter bank
func melSpectrogram(pow [][]float64, g grid) [][]float64 {
	scale := spectral.NewMelScale()
	bank := scale.CreateMelFilterBank(melFilters, g.window, g.sampleRate, melFmin, float64(g.sampleRate)/2)

	out := make([][]float64, len(pow))
	for t, frame := range pow {
		out[t] = scale.ApplyFilterBank(frame, bank)
	}
	return out
}

// melPowerDB converts a mel power spectrogram to decibels relative to the
// track maximum, clipped to topDB below it. The input is left untouched.
func melPowerDB(mel [][]float64) [][]float64 {
	ref := powerFloor
	for _, row := range mel {
		for _, v := range row {
			ref = math.Max(ref, v)
		}
	}

	refDB := 10 * math.Log10(ref)
	out := make([][]float64, len(mel))
	for t, row := range mel {
		db := make([]float64, len(row))
		for i, v := range row {
			db[i] = math.Max(10*math.Log10(math.Max(v, powerFloor)), refDB-topDB)
		}
		out[t] = db
	}
	return out
}

// mfcc computes unliftered cepstral coefficients per magnitude frame with
// sonido's MFCC over the same mel layout as the onset envelope
func mfcc(mag [][]float64, g grid, numCoeffs int) ([][]float64, error) {
	m := spectral.NewMFCCWithParams(g.sampleRate, spectral.MFCCParams{
		NumCoefficients: numCoeffs,
		NumMelFilters:   melFilters,
		LowFreq:         melFmin,
		HighFreq:        float64(g.sampleRate) / 2,
	})
	if err := m.Initialize(g.window); err != nil {
		return nil, err
	}
	return m.ComputeFrames(mag)
}

// delta is the local regression slope over a window of width frames along
// time, with edge frames repeated.
func delta(m [][]float64, width int) [][]float64 {
	n := len(m)
	if n == 0 {
		return nil
	}
	half := width / 2
	denom := 0.0
	for i := 1; i <= half; i++ {
		denom += float64(i * i)
	}
	denom *= 2

	dims := len(m[0])
	out := make([][]float64, n)
	for t := range n {
		row := make([]float64, dims)
		for d := range dims {
			sum := 0.0
			for i := 1; i <= half; i++ {
				next := m[min(n-1, t+i)][d]
				prev := m[max(0, t-i)][d]
				sum += float64(i) * (next - prev)
			}
			row[d] = sum / denom
		}
		out[t] = row
	}
	return out
}
