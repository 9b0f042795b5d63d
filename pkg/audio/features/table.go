package features

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/RyanBlaney/beatscope/pkg/audio/decode"
)

// Series names shared by every Features set. Band series use their band
// names from the FeatureConfig.
const (
	SeriesRMS            = "rms"
	SeriesOnset          = "onset"
	SeriesNovelty        = "novelty"
	SeriesCentroid       = "centroid"
	SeriesRolloff        = "rolloff"
	SeriesFlatness       = "flatness"
	SeriesBandwidth      = "bandwidth"
	SeriesContrast       = "contrast"
	SeriesFlux           = "flux"
	SeriesHarmonicRMS    = "harmonic_rms"
	SeriesPercussiveRMS  = "percussive_rms"
	SeriesTempogram      = "tempogram"
	SeriesChromaMean     = "chroma_mean"
	SeriesTonnetzMean    = "tonnetz_mean"
	SeriesZCR            = "zcr"
	SeriesLoudness       = "loudness"
	SeriesMFCCMean       = "mfcc_mean"
	SeriesMFCCDeltaMean  = "mfcc_delta_mean"
	SeriesMFCCDelta2Mean = "mfcc_delta2_mean"
)

// Features is one channel's worth of normalized per-frame series.
// Every slice has the table's frame count and every value is in [0, 1].
type Features struct {
	RMS           []float64            `json:"rms"`
	Bands         map[string][]float64 `json:"bands"`
	Onset         []float64            `json:"onset"`
	Novelty       []float64            `json:"novelty"`
	Centroid      []float64            `json:"centroid"`
	Rolloff       []float64            `json:"rolloff"`
	Flatness      []float64            `json:"flatness"`
	Bandwidth     []float64            `json:"bandwidth"`
	Contrast      []float64            `json:"contrast"`
	Flux          []float64            `json:"flux"`
	HarmonicRMS   []float64            `json:"harmonic_rms"`
	PercussiveRMS []float64            `json:"percussive_rms"`
	Tempogram     []float64            `json:"tempogram"`
	ChromaMean    []float64            `json:"chroma_mean"`
	TonnetzMean   []float64            `json:"tonnetz_mean"`
	ZCR           []float64            `json:"zcr"`
	Loudness      []float64            `json:"loudness"`

	MFCCMean       []float64 `json:"mfcc_mean"`
	MFCCDeltaMean  []float64 `json:"mfcc_delta_mean"`
	MFCCDelta2Mean []float64 `json:"mfcc_delta2_mean"`

	// Frame-major vectors, each component normalized across the track
	MFCC          [][]float64 `json:"mfcc"`
	MFCCDelta     [][]float64 `json:"mfcc_delta"`
	MFCCDelta2    [][]float64 `json:"mfcc_delta2"`
	Chroma        [][]float64 `json:"chroma"`
	Tonnetz       [][]float64 `json:"tonnetz"`
	ContrastBands [][]float64 `json:"contrast_bands"`
}

// Series returns the named scalar series
func (f *Features) Series(name string) ([]float64, bool) {
	if f == nil {
		return nil, false
	}
	if s, ok := f.scalarSeries()[name]; ok {
		return s, true
	}
	s, ok := f.Bands[name]
	return s, ok
}

// SeriesNames lists every scalar series, sorted
func (f *Features) SeriesNames() []string {
	if f == nil {
		return nil
	}
	names := make([]string, 0, 32)
	for name := range f.scalarSeries() {
		names = append(names, name)
	}
	for name := range f.Bands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Vectors returns the named vector series
func (f *Features) Vectors(name string) ([][]float64, bool) {
	if f == nil {
		return nil, false
	}
	m, ok := map[string][][]float64{
		"mfcc":           f.MFCC,
		"mfcc_delta":     f.MFCCDelta,
		"mfcc_delta2":    f.MFCCDelta2,
		"chroma":         f.Chroma,
		"tonnetz":        f.Tonnetz,
		"contrast_bands": f.ContrastBands,
	}[name]
	return m, ok
}

func (f *Features) scalarSeries() map[string][]float64 {
	return map[string][]float64{
		SeriesRMS:            f.RMS,
		SeriesOnset:          f.Onset,
		SeriesNovelty:        f.Novelty,
		SeriesCentroid:       f.Centroid,
		SeriesRolloff:        f.Rolloff,
		SeriesFlatness:       f.Flatness,
		SeriesBandwidth:      f.Bandwidth,
		SeriesContrast:       f.Contrast,
		SeriesFlux:           f.Flux,
		SeriesHarmonicRMS:    f.HarmonicRMS,
		SeriesPercussiveRMS:  f.PercussiveRMS,
		SeriesTempogram:      f.Tempogram,
		SeriesChromaMean:     f.ChromaMean,
		SeriesTonnetzMean:    f.TonnetzMean,
		SeriesZCR:            f.ZCR,
		SeriesLoudness:       f.Loudness,
		SeriesMFCCMean:       f.MFCCMean,
		SeriesMFCCDeltaMean:  f.MFCCDeltaMean,
		SeriesMFCCDelta2Mean: f.MFCCDelta2Mean,
	}
}

// Table is the read-only product of extraction. It is built once before
// playback starts and shared with scenes without locking.
type Table struct {
	Path       string            `json:"path"`
	SampleRate int               `json:"sample_rate"`
	Duration   float64           `json:"duration"`
	HopLength  int               `json:"hop_length"`
	WindowSize int               `json:"window_size"`
	Tempo      float64           `json:"tempo"`
	Times      []float64         `json:"times"`
	BeatFrames []int             `json:"beat_frames"`
	BeatTimes  []float64         `json:"beat_times"`
	Mix        *Features         `json:"mix"`
	Left       *Features         `json:"left,omitempty"`
	Right      *Features         `json:"right,omitempty"`
	Metadata   *decode.TrackInfo `json:"metadata,omitempty"`
}

// Len returns the number of analysis frames
func (t *Table) Len() int {
	return len(t.Times)
}

// FrameRate returns analysis frames per second
func (t *Table) FrameRate() float64 {
	if t.HopLength <= 0 {
		return 0
	}
	return float64(t.SampleRate) / float64(t.HopLength)
}

// IsStereo reports whether per-channel feature sets are present
func (t *Table) IsStereo() bool {
	return t.Left != nil && t.Right != nil
}

// Series looks up a scalar series on the mono mix
func (t *Table) Series(name string) ([]float64, bool) {
	return t.Mix.Series(name)
}

// IndexAt returns the last frame whose time does not exceed sec, clamped to
// [0, N-1]. Times before zero map to frame 0.
func (t *Table) IndexAt(sec float64) int {
	n := len(t.Times)
	if n == 0 {
		return 0
	}
	i := sort.Search(n, func(i int) bool { return t.Times[i] > sec }) - 1
	return max(0, min(i, n-1))
}

// Value reads a series at a frame index, clamping the index to the grid.
// Missing series read as 0.
func (t *Table) Value(name string, idx int) float64 {
	s, ok := t.Series(name)
	if !ok || len(s) == 0 {
		return 0
	}
	return s[max(0, min(idx, len(s)-1))]
}

// ValueAt linearly interpolates a series between analysis frames, for render
// rates that run faster than the hop rate.
func (t *Table) ValueAt(name string, sec float64) float64 {
	s, ok := t.Series(name)
	if !ok || len(s) == 0 {
		return 0
	}
	i := t.IndexAt(sec)
	if i >= len(s)-1 || i+1 >= len(t.Times) {
		return s[min(i, len(s)-1)]
	}
	t0, t1 := t.Times[i], t.Times[i+1]
	if sec <= t0 {
		return s[i]
	}
	frac := (sec - t0) / (t1 - t0)
	return s[i]*(1-frac) + s[i+1]*frac
}

// LastBeat returns the latest beat time not after sec
func (t *Table) LastBeat(sec float64) (float64, bool) {
	i := sort.SearchFloat64s(t.BeatTimes, sec)
	if i < len(t.BeatTimes) && t.BeatTimes[i] == sec {
		return sec, true
	}
	if i == 0 {
		return 0, false
	}
	return t.BeatTimes[i-1], true
}

// Validate checks every table invariant
func (t *Table) Validate() error {
	n := len(t.Times)
	if n == 0 {
		return fmt.Errorf("table has no frames")
	}
	if t.Times[0] != 0 {
		return fmt.Errorf("times[0] must be 0, got %g", t.Times[0])
	}
	for i := 1; i < n; i++ {
		if !(t.Times[i] > t.Times[i-1]) {
			return fmt.Errorf("times not strictly increasing at frame %d", i)
		}
	}
	if t.Times[n-1] > t.Duration+1e-9 {
		return fmt.Errorf("last frame time %g exceeds duration %g", t.Times[n-1], t.Duration)
	}
	if t.Tempo < 0 || math.IsNaN(t.Tempo) {
		return fmt.Errorf("invalid tempo %g", t.Tempo)
	}
	if len(t.BeatFrames) != len(t.BeatTimes) {
		return fmt.Errorf("beat frames and beat times differ in length")
	}
	for i, bt := range t.BeatTimes {
		if bt < 0 || bt > t.Duration+1e-9 {
			return fmt.Errorf("beat %d at %g outside [0, %g]", i, bt, t.Duration)
		}
		if i > 0 && bt <= t.BeatTimes[i-1] {
			return fmt.Errorf("beat times must strictly increase, beat %d is at %g", i, bt)
		}
	}

	if t.Mix == nil {
		return fmt.Errorf("table has no mix features")
	}
	sets := map[string]*Features{"mix": t.Mix}
	if t.Left != nil || t.Right != nil {
		if t.Left == nil || t.Right == nil {
			return fmt.Errorf("stereo tables need both left and right features")
		}
		sets["left"] = t.Left
		sets["right"] = t.Right
	}
	for setName, f := range sets {
		if err := f.validate(n); err != nil {
			return fmt.Errorf("%s: %w", setName, err)
		}
	}
	return nil
}

func (f *Features) validate(n int) error {
	check := func(name string, s []float64) error {
		if len(s) != n {
			return fmt.Errorf("series %s has %d frames, want %d", name, len(s), n)
		}
		for i, v := range s {
			if !(v >= 0 && v <= 1) {
				return fmt.Errorf("series %s frame %d value %g outside [0, 1]", name, i, v)
			}
		}
		return nil
	}

	for name, s := range f.scalarSeries() {
		if err := check(name, s); err != nil {
			return err
		}
	}
	for name, s := range f.Bands {
		if err := check(name, s); err != nil {
			return err
		}
	}
	for _, name := range []string{"mfcc", "mfcc_delta", "mfcc_delta2", "chroma", "tonnetz", "contrast_bands"} {
		m, _ := f.Vectors(name)
		if len(m) != n {
			return fmt.Errorf("vector series %s has %d frames, want %d", name, len(m), n)
		}
		for i, row := range m {
			for k, v := range row {
				if !(v >= 0 && v <= 1) {
					return fmt.Errorf("vector series %s frame %d component %d value %g outside [0, 1]", name, i, k, v)
				}
			}
		}
	}
	return nil
}
