package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/beatscope/pkg/audio/config"
)

func TestMinMax(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"scales to unit range", []float64{2, 4, 6}, []float64{0, 0.5, 1}},
		{"constant becomes zero", []float64{3, 3, 3}, []float64{0, 0, 0}},
		{"non-finite treated as zero", []float64{math.NaN(), 1, math.Inf(1)}, []float64{0, 1, 0}},
		{"negative values", []float64{-1, 0, 1}, []float64{0, 0.5, 1}},
		{"empty", []float64{}, []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDeltaSlice(t, tt.want, minMax(tt.in), 1e-12)
		})
	}
}

func TestMinMaxColumns(t *testing.T) {
	m := [][]float64{{0, 5}, {10, 5}, {5, 5}}
	minMaxColumns(m)
	assert.Equal(t, [][]float64{{0, 0}, {1, 0}, {0.5, 0}}, m)
}

func TestAlign(t *testing.T) {
	assert.Equal(t, []float64{0, 1, 2}, align([]float64{1, 2}, 3))
	assert.Equal(t, []float64{1, 2}, align([]float64{1, 2, 3}, 2))
	assert.Equal(t, []float64{1}, align([]float64{1}, 1))
}

func TestGrid(t *testing.T) {
	_, err := newGrid(100, 22050, 2048, 512)
	require.Error(t, err)

	g, err := newGrid(4096, 22050, 2048, 512)
	require.NoError(t, err)
	assert.Equal(t, 9, g.frames)

	times := g.times()
	assert.Equal(t, 0.0, times[0])
	assert.InDelta(t, 8*512/22050.0, times[8], 1e-12)

	freqs := g.frequencies()
	assert.Len(t, freqs, 1025)
	assert.InDelta(t, 11025.0, freqs[1024], 1e-9)

	padded := g.center(make([]float64, 4096))
	assert.Len(t, padded, 4096+2048)
	assert.Len(t, g.frame(padded, 0), 2048)
}

func TestBandEnergies(t *testing.T) {
	g, err := newGrid(2048, 2048, 2048, 512)
	require.NoError(t, err)

	// bins are 1 Hz apart; put energy at 100 Hz only
	frame := make([]float64, 1025)
	frame[100] = 2
	bands := bandEnergies([][]float64{frame}, g, []config.BandSpec{
		{Name: "low", Lo: 20, Hi: 150},
		{Name: "high", Lo: 150, Hi: 0},
		{Name: "exact", Lo: 100, Hi: 101},
		{Name: "above", Lo: 5000, Hi: 6000},
	})

	assert.Equal(t, []float64{2}, bands["low"])
	assert.Equal(t, []float64{0}, bands["high"])
	assert.Equal(t, []float64{2}, bands["exact"])
	assert.Equal(t, []float64{0}, bands["above"])
}

func TestMedianAndChunks(t *testing.T) {
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
	assert.Equal(t, 0.0, median(nil))

	assert.Equal(t, [][2]int{{0, 4}, {4, 8}, {8, 10}}, chunks(10, 3))
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, chunks(2, 8))
	assert.Nil(t, chunks(0, 4))
}

func TestHPSSSplitsStructure(t *testing.T) {
	// a steady tone (horizontal line) and a click (vertical line)
	n, bins := 21, 33
	mag := make([][]float64, n)
	for i := range mag {
		mag[i] = make([]float64, bins)
		mag[i][8] = 1
	}
	for k := range bins {
		mag[10][k] = 1
	}

	harmonic, percussive := hpss(mag, 7)
	assert.Greater(t, harmonic[3][8], percussive[3][8])
	assert.Greater(t, percussive[10][20], harmonic[10][20])
	for i := range mag {
		for k := range mag[i] {
			require.InDelta(t, mag[i][k], harmonic[i][k]+percussive[i][k], 1e-12)
		}
	}
}

func TestDeltaOfRamp(t *testing.T) {
	m := make([][]float64, 20)
	for i := range m {
		m[i] = []float64{float64(i), 5}
	}
	d := delta(m, 9)
	for i := 4; i < 16; i++ {
		assert.InDelta(t, 1.0, d[i][0], 1e-12)
		assert.InDelta(t, 0.0, d[i][1], 1e-12)
	}
}

func TestCepstralFeaturesOnSilence(t *testing.T) {
	g, err := newGrid(4096, 22050, 2048, 512)
	require.NoError(t, err)

	silent := make([][]float64, 3)
	for i := range silent {
		silent[i] = make([]float64, 1025)
	}

	mel := melSpectrogram(power(silent), g)
	require.Len(t, mel, 3)
	assert.Len(t, mel[0], melFilters)

	melDB := melPowerDB(mel)
	for _, row := range melDB {
		for _, v := range row {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	}

	coeffs, err := mfcc(silent, g, 13)
	require.NoError(t, err)
	require.Len(t, coeffs, 3)
	assert.Len(t, coeffs[0], 13)
	for _, row := range coeffs {
		for _, v := range row {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	}
	assert.Equal(t, coeffs[0], coeffs[2], "identical frames give identical coefficients")
}

func TestMelPowerDBClipsToTopDB(t *testing.T) {
	mel := [][]float64{{1, 1e-3, 0}}
	db := melPowerDB(mel)
	assert.InDeltaSlice(t, []float64{0, -30, -topDB}, db[0], 1e-9)
	assert.Equal(t, 0.0, mel[0][2], "input is not modified")
}

func TestContrastEdges(t *testing.T) {
	assert.Equal(t, []float64{0, 200, 400, 800, 11025}, contrastEdges(22050, 3))

	g, err := newGrid(4096, 22050, 2048, 512)
	require.NoError(t, err)
	cfg := config.DefaultFeatureConfig()

	flat := make([]float64, 1025)
	peaky := make([]float64, 1025)
	for k := range flat {
		flat[k] = 1
		peaky[k] = 0.01
	}
	// a single strong partial inside the 800-1600 Hz band
	peaky[100] = 10

	sh := spectralShape([][]float64{flat, peaky, make([]float64, 1025)}, g, cfg)
	require.Len(t, sh.contrast[0], cfg.ContrastBands+1)
	assert.InDelta(t, 0.0, sh.contrast[0][3], 1e-9)
	assert.Greater(t, sh.contrast[1][3], sh.contrast[0][3])
	assert.Equal(t, make([]float64, cfg.ContrastBands+1), sh.contrast[2])
}

func TestChromaAndTonnetz(t *testing.T) {
	// 1 Hz bins; A4 = 440 Hz is pitch class 9
	freqs := make([]float64, 1000)
	for k := range freqs {
		freqs[k] = float64(k)
	}
	frame := make([]float64, 1000)
	frame[440] = 1

	chroma := chromagram([][]float64{frame, make([]float64, 1000)}, freqs)
	assert.Equal(t, 1.0, chroma[0][9])
	assert.Equal(t, 1.0, floatsSum(chroma[0]))
	assert.Equal(t, 0.0, floatsSum(chroma[1]))

	single := make([]float64, 12)
	single[0] = 1
	tn := tonnetz([][]float64{single})
	assert.InDeltaSlice(t, []float64{0, 1, 0, 1, 0, 0.5}, tn[0], 1e-12)
}

func TestNoveltyPeaksAtBoundary(t *testing.T) {
	n := 80
	a := make([]float64, n)
	b := make([]float64, n)
	for i := range n {
		if i < 40 {
			a[i], b[i] = 1, 0
		} else {
			a[i], b[i] = 0, 1
		}
	}
	curve := noveltyCurve(standardize([][]float64{a, b}, n), 16)

	peak := 0
	for i, v := range curve {
		if v > curve[peak] {
			peak = i
		}
	}
	assert.InDelta(t, 40, peak, 1)
	assert.InDelta(t, 0.0, curve[5], 1e-9)
	assert.InDelta(t, 0.0, curve[20], 1e-9)
}

func TestOnsetStrength(t *testing.T) {
	melDB := [][]float64{{0, 0}, {2, 4}, {1, 1}}
	assert.Equal(t, []float64{0, 3, 0}, onsetStrength(melDB))
}

func floatsSum(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	return sum
}
