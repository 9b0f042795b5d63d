package features

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-sonar/algorithms/spectral"
	"github.com/RyanBlaney/sonido-sonar/fingerprint/analyzers"
)

// grid describes the analysis frame layout shared by every series
type grid struct {
	sampleRate int
	window     int
	hop        int
	frames     int
	samples    int // unpadded signal length
}

func newGrid(samples, sampleRate, window, hop int) (grid, error) {
	if samples < window {
		return grid{}, fmt.Errorf("signal has %d samples, shorter than the %d-sample analysis window", samples, window)
	}
	return grid{
		sampleRate: sampleRate,
		window:     window,
		hop:        hop,
		frames:     1 + samples/hop,
		samples:    samples,
	}, nil
}

// times returns the frame timestamps i*hop/sr
func (g grid) times() []float64 {
	out := make([]float64, g.frames)
	for i := range out {
		out[i] = float64(i*g.hop) / float64(g.sampleRate)
	}
	return out
}

// frequencies returns the center frequency of each rfft bin
func (g grid) frequencies() []float64 {
	bins := g.window/2 + 1
	out := make([]float64, bins)
	for k := range out {
		out[k] = float64(k) * float64(g.sampleRate) / float64(g.window)
	}
	return out
}

// center zero-pads window/2 samples on each side so frame i is centered on
// sample i*hop.
func (g grid) center(x []float64) []float64 {
	pad := g.window / 2
	out := make([]float64, len(x)+2*pad)
	copy(out[pad:], x)
	return out
}

// frame returns the i-th window of a centered signal
func (g grid) frame(padded []float64, i int) []float64 {
	start := i * g.hop
	end := min(start+g.window, len(padded))
	return padded[start:end]
}

// spectrogram computes the magnitude STFT on the centered signal. Phase and
// complex data are dropped right away; only magnitudes are used downstream.
func (g grid) spectrogram(padded []float64) ([][]float64, error) {
	sa := analyzers.NewSpectralAnalyzer(g.sampleRate)
	result, err := sa.ComputeSTFTWithWindow(padded, g.window, g.hop, analyzers.WindowHann)
	if err != nil {
		return nil, err
	}
	if result == nil || len(result.Magnitude) == 0 {
		return nil, fmt.Errorf("STFT returned no frames")
	}
	result.Phase = nil
	result.Complex = nil

	mag := result.Magnitude
	if len(mag) != g.frames {
		mag = alignFrames(mag, g.frames, g.window/2+1)
	}
	for _, row := range mag {
		sanitize(row)
	}
	return mag, nil
}

// alignFrames pads with silent frames or truncates to exactly n frames
func alignFrames(m [][]float64, n, bins int) [][]float64 {
	if len(m) >= n {
		return m[:n]
	}
	out := make([][]float64, n)
	copy(out, m)
	for i := len(m); i < n; i++ {
		out[i] = make([]float64, bins)
	}
	return out
}

// power squares a magnitude spectrogram
func power(mag [][]float64) [][]float64 {
	out := make([][]float64, len(mag))
	for t, row := range mag {
		p := make([]float64, len(row))
		for k, v := range row {
			p[k] = v * v
		}
		out[t] = p
	}
	return out
}

// frameRMS computes time-domain RMS for every frame of the centered signal
func (g grid) frameRMS(padded []float64) []float64 {
	out := make([]float64, g.frames)
	for i := range out {
		fr := g.frame(padded, i)
		if len(fr) == 0 {
			continue
		}
		sum := 0.0
		for _, v := range fr {
			sum += v * v
		}
		out[i] = math.Sqrt(sum / float64(g.window))
	}
	return out
}

// frameZCR uses sonido's zero crossing rate per frame
func (g grid) frameZCR(padded []float64) []float64 {
	zcr := spectral.NewZeroCrossingRate(g.sampleRate)
	out := make([]float64, g.frames)
	for i := range out {
		fr := g.frame(padded, i)
		if len(fr) < 2 {
			continue
		}
		out[i] = zcr.Compute(fr)
	}
	return out
}
