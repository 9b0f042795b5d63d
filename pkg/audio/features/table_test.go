package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constFeatures(n int, v float64) *Features {
	s := func() []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = v
		}
		return out
	}
	m := func(width int) [][]float64 {
		out := make([][]float64, n)
		for i := range out {
			out[i] = make([]float64, width)
		}
		return out
	}
	return &Features{
		RMS: s(), Bands: map[string][]float64{"bass": s()}, Onset: s(), Novelty: s(),
		Centroid: s(), Rolloff: s(), Flatness: s(), Bandwidth: s(), Contrast: s(), Flux: s(),
		HarmonicRMS: s(), PercussiveRMS: s(), Tempogram: s(), ChromaMean: s(), TonnetzMean: s(),
		ZCR: s(), Loudness: s(), MFCCMean: s(), MFCCDeltaMean: s(), MFCCDelta2Mean: s(),
		MFCC: m(13), MFCCDelta: m(13), MFCCDelta2: m(13), Chroma: m(12), Tonnetz: m(6), ContrastBands: m(7),
	}
}

func testTable(n int) *Table {
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i) * 0.5
	}
	return &Table{
		SampleRate: 1024,
		HopLength:  512,
		WindowSize: 2048,
		Duration:   float64(n-1)*0.5 + 0.25,
		Times:      times,
		BeatFrames: []int{0, 2, 4},
		BeatTimes:  []float64{0, 1, 2},
		Tempo:      60,
		Mix:        constFeatures(n, 0.5),
	}
}

func TestIndexAt(t *testing.T) {
	table := testTable(10)

	tests := []struct {
		name string
		sec  float64
		want int
	}{
		{"before start", -3, 0},
		{"zero", 0, 0},
		{"between frames", 0.74, 1},
		{"exactly on frame", 1.5, 3},
		{"last frame", 4.5, 9},
		{"past the end", 100, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.IndexAt(tt.sec))
		})
	}

	// times[i] <= t < times[i+1] whenever t is on the grid
	for sec := 0.0; sec < 4.5; sec += 0.07 {
		i := table.IndexAt(sec)
		require.LessOrEqual(t, table.Times[i], sec)
		require.Greater(t, table.Times[i+1], sec)
	}
}

func TestValueAndInterpolation(t *testing.T) {
	table := testTable(4)
	table.Mix.RMS = []float64{0, 1, 0.5, 0.25}

	assert.Equal(t, 1.0, table.Value(SeriesRMS, 1))
	assert.Equal(t, 0.25, table.Value(SeriesRMS, 99))
	assert.Equal(t, 0.0, table.Value("nope", 1))
	assert.Equal(t, 0.5, table.Value("bass", 0))

	assert.InDelta(t, 0.5, table.ValueAt(SeriesRMS, 0.25), 1e-12)
	assert.InDelta(t, 0.75, table.ValueAt(SeriesRMS, 0.75), 1e-12)
	assert.Equal(t, 0.25, table.ValueAt(SeriesRMS, 10))
}

func TestLastBeat(t *testing.T) {
	table := testTable(10)

	_, ok := table.LastBeat(-0.1)
	assert.False(t, ok)

	bt, ok := table.LastBeat(1)
	assert.True(t, ok)
	assert.Equal(t, 1.0, bt)

	bt, ok = table.LastBeat(1.9)
	assert.True(t, ok)
	assert.Equal(t, 1.0, bt)

	bt, _ = table.LastBeat(50)
	assert.Equal(t, 2.0, bt)
}

func TestTableValidate(t *testing.T) {
	require.NoError(t, testTable(10).Validate())

	tests := []struct {
		name   string
		mutate func(*Table)
	}{
		{"times not starting at zero", func(tb *Table) { tb.Times[0] = 0.1 }},
		{"times not increasing", func(tb *Table) { tb.Times[3] = tb.Times[2] }},
		{"frame past duration", func(tb *Table) { tb.Duration = 1 }},
		{"negative tempo", func(tb *Table) { tb.Tempo = -1 }},
		{"beat outside track", func(tb *Table) { tb.BeatTimes[2] = 99 }},
		{"beats decreasing", func(tb *Table) { tb.BeatTimes = []float64{0, 2, 1} }},
		{"repeated beat", func(tb *Table) { tb.BeatTimes = []float64{0, 1, 1} }},
		{"short series", func(tb *Table) { tb.Mix.Flux = tb.Mix.Flux[:3] }},
		{"value above one", func(tb *Table) { tb.Mix.Bands["bass"][2] = 1.5 }},
		{"NaN value", func(tb *Table) { tb.Mix.Onset[0] = math.NaN() }},
		{"vector out of range", func(tb *Table) { tb.Mix.Chroma[1][3] = -0.1 }},
		{"half stereo", func(tb *Table) { tb.Left = constFeatures(10, 0) }},
		{"no mix", func(tb *Table) { tb.Mix = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := testTable(10)
			tt.mutate(table)
			assert.Error(t, table.Validate())
		})
	}
}

func TestSeriesNames(t *testing.T) {
	f := constFeatures(2, 0)
	names := f.SeriesNames()

	assert.Contains(t, names, SeriesRMS)
	assert.Contains(t, names, "bass")
	assert.IsIncreasing(t, names)

	var nilFeatures *Features
	_, ok := nilFeatures.Series(SeriesRMS)
	assert.False(t, ok)
}
