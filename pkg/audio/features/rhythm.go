package features

import (
	"math"
	"math/cmplx"
	"slices"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	tempoPriorBPM   = 120.0
	tempogramWindow = 384
	beatTightness   = 100.0
)

// onsetStrength is the mean positive first difference of the mel dB
// spectrogram. onset[0] is 0.
func onsetStrength(melDB [][]float64) []float64 {
	out := make([]float64, len(melDB))
	for t := 1; t < len(melDB); t++ {
		sum := 0.0
		for i, v := range melDB[t] {
			if d := v - melDB[t-1][i]; d > 0 {
				sum += d
			}
		}
		if len(melDB[t]) > 0 {
			out[t] = sum / float64(len(melDB[t]))
		}
	}
	return out
}

// autocorrelate computes the linear autocorrelation of x via FFT, returning
// maxLag+1 lags.
func autocorrelate(x []float64, maxLag int) []float64 {
	size := 1
	for size < 2*len(x) {
		size <<= 1
	}
	padded := make([]float64, size)
	copy(padded, x)

	power := fft.FFTReal(padded)
	for i, c := range power {
		mag := cmplx.Abs(c)
		power[i] = complex(mag*mag, 0)
	}
	ac := fft.IFFT(power)

	maxLag = min(maxLag, len(x)-1)
	out := make([]float64, maxLag+1)
	for i := range out {
		out[i] = real(ac[i])
	}
	return out
}

// estimateTempo picks the autocorrelation peak of the onset envelope inside
// [minBPM, maxBPM], weighted by a log-normal prior around 120 BPM. Returns 0
// when the envelope has no periodic energy.
func estimateTempo(onset []float64, frameRate, minBPM, maxBPM float64) float64 {
	if len(onset) < 4 || floats.Max(onset) <= 0 {
		return 0
	}

	centered := append([]float64(nil), onset...)
	floats.AddConst(-stat.Mean(onset, nil), centered)

	minLag := max(1, int(math.Floor(60*frameRate/maxBPM)))
	maxLag := int(math.Ceil(60 * frameRate / minBPM))
	ac := autocorrelate(centered, maxLag)
	if len(ac) <= minLag || ac[0] <= 0 {
		return 0
	}

	bestLag, bestScore := 0, 0.0
	for lag := minLag; lag < len(ac); lag++ {
		bpm := 60 * frameRate / float64(lag)
		if bpm < minBPM || bpm > maxBPM {
			continue
		}
		prior := math.Exp(-0.5 * math.Pow(math.Log2(bpm/tempoPriorBPM), 2))
		score := ac[lag] / ac[0] * prior
		if score > bestScore {
			bestScore, bestLag = score, lag
		}
	}
	if bestLag == 0 {
		return 0
	}

	// refine with a parabolic fit around the chosen lag
	lag := float64(bestLag)
	if bestLag > minLag && bestLag < len(ac)-1 {
		a, b, c := ac[bestLag-1], ac[bestLag], ac[bestLag+1]
		if den := a - 2*b + c; den != 0 {
			lag += 0.5 * (a - c) / den
		}
	}
	return 60 * frameRate / lag
}

// trackBeats runs dynamic-programming beat tracking against a fixed tempo.
// Returned frames are strictly increasing.
func trackBeats(onset []float64, frameRate, bpm float64) []int {
	n := len(onset)
	if bpm <= 0 || n == 0 {
		return nil
	}
	period := 60 * frameRate / bpm
	if period < 1 {
		return nil
	}

	sd := stat.StdDev(onset, nil)
	if sd <= 0 || math.IsNaN(sd) {
		return nil
	}

	// local score: onset envelope smoothed by a gaussian of width period/32
	radius := int(math.Round(period))
	sigma := period / 32
	kernel := make([]float64, 2*radius+1)
	for i := range kernel {
		x := float64(i - radius)
		kernel[i] = math.Exp(-0.5 * (x / sigma) * (x / sigma))
	}
	local := make([]float64, n)
	for t := range n {
		sum := 0.0
		for i, w := range kernel {
			j := t + i - radius
			if j >= 0 && j < n {
				sum += w * onset[j] / sd
			}
		}
		local[t] = sum
	}

	cumulative := make([]float64, n)
	backlink := make([]int, n)
	lo := int(math.Round(-2 * period))
	hi := -int(math.Round(period / 2))
	for t := range n {
		best := math.Inf(-1)
		backlink[t] = -1
		for off := lo; off <= hi; off++ {
			prev := t + off
			if prev < 0 {
				continue
			}
			penalty := -beatTightness * math.Pow(math.Log(-float64(off)/period), 2)
			if score := cumulative[prev] + penalty; score > best {
				best, backlink[t] = score, prev
			}
		}
		cumulative[t] = local[t]
		if backlink[t] >= 0 {
			cumulative[t] += best
		}
	}

	// last beat: the final local maximum of the cumulative score that is at
	// least half the median local maximum
	var peaks []int
	for t := 1; t < n-1; t++ {
		if cumulative[t] > cumulative[t-1] && cumulative[t] >= cumulative[t+1] {
			peaks = append(peaks, t)
		}
	}
	if len(peaks) == 0 {
		return nil
	}
	peakVals := make([]float64, len(peaks))
	for i, p := range peaks {
		peakVals[i] = cumulative[p]
	}
	threshold := 0.5 * medianOf(peakVals)
	last := peaks[len(peaks)-1]
	for i := len(peaks) - 1; i >= 0; i-- {
		if cumulative[peaks[i]] >= threshold {
			last = peaks[i]
			break
		}
	}

	var beats []int
	for b := last; b >= 0; b = backlink[b] {
		beats = append(beats, b)
	}
	slices.Reverse(beats)

	return trimBeats(beats, local)
}

// trimBeats drops weak beats at either end of the track
func trimBeats(beats []int, local []float64) []int {
	if len(beats) == 0 {
		return beats
	}
	sumSq := 0.0
	for _, b := range beats {
		sumSq += local[b] * local[b]
	}
	threshold := 0.5 * math.Sqrt(sumSq/float64(len(beats)))

	start, end := 0, len(beats)
	for start < end && local[beats[start]] <= threshold {
		start++
	}
	for end > start && local[beats[end-1]] <= threshold {
		end--
	}
	return beats[start:end]
}

// tempogramStrength is, per frame, the mean normalized autocorrelation of a
// Hann-windowed neighbourhood of the onset envelope.
func tempogramStrength(onset []float64) []float64 {
	n := len(onset)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	win := min(tempogramWindow, n)
	hann := make([]float64, win)
	for i := range hann {
		hann[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(win))
	}

	half := win / 2
	buf := make([]float64, win)
	for t := range n {
		for i := range buf {
			j := t - half + i
			if j >= 0 && j < n {
				buf[i] = onset[j] * hann[i]
			} else {
				buf[i] = 0
			}
		}
		ac := autocorrelate(buf, win-1)
		if ac[0] <= 0 {
			continue
		}
		sum := 0.0
		for lag := 1; lag < len(ac); lag++ {
			sum += ac[lag] / ac[0]
		}
		if len(ac) > 1 {
			out[t] = sum / float64(len(ac)-1)
		}
	}
	return out
}

func medianOf(x []float64) float64 {
	return median(append([]float64(nil), x...))
}
