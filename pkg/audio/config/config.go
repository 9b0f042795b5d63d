package config

import "fmt"

// BandSpec is a fixed [Lo, Hi) frequency range in Hz. Hi == 0 means Nyquist.
type BandSpec struct {
	Name string  `json:"name" yaml:"name" mapstructure:"name"`
	Lo   float64 `json:"lo" yaml:"lo" mapstructure:"lo"`
	Hi   float64 `json:"hi" yaml:"hi" mapstructure:"hi"`
}

type FeatureConfig struct {
	// Decoding
	SampleRate int  `json:"sample_rate" yaml:"sample_rate" mapstructure:"sample_rate"` // 0 keeps the native rate
	Mono       bool `json:"mono" yaml:"mono" mapstructure:"mono"`

	// Spectral Analysis
	WindowSize     int        `json:"window_size" yaml:"window_size" mapstructure:"window_size"`
	HopSize        int        `json:"hop_size" yaml:"hop_size" mapstructure:"hop_size"`
	Bands          []BandSpec `json:"bands" yaml:"bands" mapstructure:"bands"`
	RolloffPercent float64    `json:"rolloff_percent" yaml:"rolloff_percent" mapstructure:"rolloff_percent"`
	ContrastBands  int        `json:"contrast_bands" yaml:"contrast_bands" mapstructure:"contrast_bands"`

	// Harmonic/percussive separation
	HPSSKernel int `json:"hpss_kernel" yaml:"hpss_kernel" mapstructure:"hpss_kernel"`

	// Rhythm
	TempoMin float64 `json:"tempo_min" yaml:"tempo_min" mapstructure:"tempo_min"`
	TempoMax float64 `json:"tempo_max" yaml:"tempo_max" mapstructure:"tempo_max"`

	// Tonal and timbral
	ChromaBins       int `json:"chroma_bins" yaml:"chroma_bins" mapstructure:"chroma_bins"`
	MFCCCoefficients int `json:"mfcc_coefficients" yaml:"mfcc_coefficients" mapstructure:"mfcc_coefficients"`
	DeltaWidth       int `json:"delta_width" yaml:"delta_width" mapstructure:"delta_width"`

	// Novelty checkerboard kernel size in frames
	NoveltyKernel int `json:"novelty_kernel" yaml:"novelty_kernel" mapstructure:"novelty_kernel"`
}

// DefaultBands returns the eight named bands every table carries.
func DefaultBands() []BandSpec {
	return []BandSpec{
		{Name: "sub_bass", Lo: 20, Hi: 60},
		{Name: "bass", Lo: 20, Hi: 150},
		{Name: "low_mid", Lo: 250, Hi: 500},
		{Name: "mid", Lo: 150, Hi: 2000},
		{Name: "high_mid", Lo: 2000, Hi: 4000},
		{Name: "treble", Lo: 2000, Hi: 8000},
		{Name: "presence", Lo: 4000, Hi: 6000},
		{Name: "brilliance", Lo: 6000, Hi: 0},
	}
}

// DefaultFeatureConfig mirrors the analysis settings the visualizer was tuned with.
func DefaultFeatureConfig() *FeatureConfig {
	return &FeatureConfig{
		SampleRate:       0,
		Mono:             true,
		WindowSize:       2048,
		HopSize:          512,
		Bands:            DefaultBands(),
		RolloffPercent:   0.85,
		ContrastBands:    6,
		HPSSKernel:       31,
		TempoMin:         60,
		TempoMax:         200,
		ChromaBins:       12,
		MFCCCoefficients: 13,
		DeltaWidth:       9,
		NoveltyKernel:    64,
	}
}

// Validate checks the configuration for values the extractor cannot work with
func (c *FeatureConfig) Validate() error {
	if c.SampleRate < 0 {
		return fmt.Errorf("sample rate cannot be negative")
	}
	if c.WindowSize <= 0 || c.WindowSize&(c.WindowSize-1) != 0 {
		return fmt.Errorf("window size must be a positive power of two, got %d", c.WindowSize)
	}
	if c.HopSize <= 0 || c.HopSize > c.WindowSize {
		return fmt.Errorf("hop size must be in (0, window size], got %d", c.HopSize)
	}
	if len(c.Bands) == 0 {
		return fmt.Errorf("at least one frequency band is required")
	}
	seen := make(map[string]bool, len(c.Bands))
	for _, b := range c.Bands {
		if b.Name == "" {
			return fmt.Errorf("band names cannot be empty")
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate band %q", b.Name)
		}
		seen[b.Name] = true
		if b.Lo < 0 || (b.Hi != 0 && b.Hi <= b.Lo) {
			return fmt.Errorf("band %q has invalid range [%g, %g)", b.Name, b.Lo, b.Hi)
		}
	}
	if c.RolloffPercent <= 0 || c.RolloffPercent >= 1 {
		return fmt.Errorf("rolloff percent must be between 0 and 1")
	}
	if c.ContrastBands <= 0 {
		return fmt.Errorf("contrast bands must be positive")
	}
	if c.HPSSKernel < 3 {
		return fmt.Errorf("hpss kernel must be at least 3")
	}
	if c.TempoMin <= 0 || c.TempoMax <= c.TempoMin {
		return fmt.Errorf("tempo range must satisfy 0 < min < max")
	}
	if c.ChromaBins != 12 {
		return fmt.Errorf("only 12 chroma bins are supported")
	}
	if c.MFCCCoefficients <= 0 {
		return fmt.Errorf("mfcc coefficients must be positive")
	}
	if c.DeltaWidth < 3 || c.DeltaWidth%2 == 0 {
		return fmt.Errorf("delta width must be an odd number >= 3")
	}
	if c.NoveltyKernel < 2 {
		return fmt.Errorf("novelty kernel must be at least 2 frames")
	}
	return nil
}
