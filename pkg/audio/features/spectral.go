package features

import (
	"math"

	"github.com/RyanBlaney/beatscope/pkg/audio/config"
	"github.com/RyanBlaney/sonido-sonar/algorithms/spectral"
)

// shape holds raw, unnormalized spectral shape descriptors
type shape struct {
	centroid  []float64
	rolloff   []float64
	flatness  []float64
	bandwidth []float64
	flux      []float64
	contrast  [][]float64
}

// spectralShape computes the spectral descriptors frame by frame
func spectralShape(mag [][]float64, g grid, cfg *config.FeatureConfig) shape {
	n := len(mag)
	s := shape{
		centroid:  make([]float64, n),
		rolloff:   make([]float64, n),
		flatness:  make([]float64, n),
		bandwidth: make([]float64, n),
		contrast:  make([][]float64, n),
	}

	centroid := spectral.NewSpectralCentroid(g.sampleRate)
	rolloff := spectral.NewSpectralRolloff(g.sampleRate)
	bandwidth := spectral.NewSpectralBandwidth(g.sampleRate)
	flatness := spectral.NewSpectralFlatness()
	contrast := spectral.NewSpectralContrast(g.sampleRate, cfg.ContrastBands+1)
	edges := contrastEdges(g.sampleRate, cfg.ContrastBands)

	for t, frame := range mag {
		if energy(frame) == 0 {
			// silent frames keep zeros rather than 0/0 from the descriptors
			s.contrast[t] = make([]float64, cfg.ContrastBands+1)
			continue
		}
		s.centroid[t] = centroid.Compute(frame)
		s.rolloff[t] = rolloff.Compute(frame, cfg.RolloffPercent)
		s.bandwidth[t] = bandwidth.Compute(frame, s.centroid[t])
		s.flatness[t] = flatness.Compute(frame)
		s.contrast[t] = contrast.ComputeWithCustomBands(frame, edges)
	}

	s.flux = spectralFlux(mag)
	return s
}

// spectralFlux uses sonido's flux when it lines up with the grid, otherwise
// the L1 frame difference. flux[0] is always 0.
func spectralFlux(mag [][]float64) []float64 {
	n := len(mag)
	if n < 2 {
		return make([]float64, n)
	}

	flux := spectral.NewSpectralFlux().Compute(mag)
	switch len(flux) {
	case n:
		flux = append([]float64(nil), flux...)
		flux[0] = 0
		return flux
	case n - 1:
		return align(flux, n)
	}

	out := make([]float64, n)
	for t := 1; t < n; t++ {
		sum := 0.0
		for k := range mag[t] {
			sum += math.Abs(mag[t][k] - mag[t-1][k])
		}
		out[t] = sum
	}
	return out
}

// contrastEdges returns octave band edges starting at 200 Hz, with a first
// band below it and a last band running to Nyquist: numBands+1 bands.
func contrastEdges(sampleRate, numBands int) []float64 {
	const fmin = 200.0

	edges := make([]float64, numBands+2)
	for i := 1; i < len(edges)-1; i++ {
		edges[i] = fmin * math.Pow(2, float64(i-1))
	}
	edges[len(edges)-1] = float64(sampleRate) / 2
	return edges
}

// bandEnergies sums magnitude bins inside each configured [lo, hi) range
func bandEnergies(mag [][]float64, g grid, bands []config.BandSpec) map[string][]float64 {
	freqs := g.frequencies()
	nyquist := float64(g.sampleRate) / 2

	out := make(map[string][]float64, len(bands))
	for _, b := range bands {
		hi := b.Hi
		if hi == 0 || hi > nyquist {
			hi = nyquist + 1e-9
		}
		lo, end := -1, -1
		for k, f := range freqs {
			if f >= b.Lo && f < hi {
				if lo < 0 {
					lo = k
				}
				end = k + 1
			}
		}

		series := make([]float64, len(mag))
		if lo >= 0 {
			for t, frame := range mag {
				sum := 0.0
				for _, v := range frame[lo:end] {
					sum += v
				}
				series[t] = sum
			}
		}
		out[b.Name] = series
	}
	return out
}

// aWeighting returns the A-weighting gain in dB for a frequency
func aWeighting(f float64) float64 {
	if f <= 0 {
		return -200
	}
	f2 := f * f
	num := 12194.0 * 12194.0 * f2 * f2
	den := (f2 + 20.6*20.6) * math.Sqrt((f2+107.7*107.7)*(f2+737.9*737.9)) * (f2 + 12194.0*12194.0)
	return 20*math.Log10(num/den) + 2.0
}

// loudness is the A-weighted mean power per frame in dB
func loudness(pow [][]float64, g grid) []float64 {
	freqs := g.frequencies()
	weights := make([]float64, len(freqs))
	for k, f := range freqs {
		weights[k] = math.Pow(10, aWeighting(f)/10)
	}

	out := make([]float64, len(pow))
	for t, frame := range pow {
		sum := 0.0
		for k, p := range frame {
			sum += p * weights[k]
		}
		out[t] = 10 * math.Log10(sum/float64(len(frame))+1e-10)
	}
	return out
}

// spectralRMS is the root mean square of a magnitude frame
func spectralRMS(mag [][]float64) []float64 {
	out := make([]float64, len(mag))
	for t, frame := range mag {
		if len(frame) == 0 {
			continue
		}
		out[t] = math.Sqrt(energy(frame) / float64(len(frame)))
	}
	return out
}

func energy(frame []float64) float64 {
	sum := 0.0
	for _, v := range frame {
		sum += v * v
	}
	return sum
}
