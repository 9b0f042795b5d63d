package configs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/RyanBlaney/beatscope/internal/render"
	"github.com/RyanBlaney/beatscope/pkg/audio/config"
	"github.com/RyanBlaney/beatscope/pkg/audio/playback"
)

// SetDefaults sets default configuration values for all components
func SetDefaults(v *viper.Viper) {
	audio := config.DefaultFeatureConfig()
	bands := make([]map[string]any, 0, len(audio.Bands))
	for _, b := range audio.Bands {
		bands = append(bands, map[string]any{"name": b.Name, "lo": b.Lo, "hi": b.Hi})
	}

	// Feature extraction defaults
	v.SetDefault("audio.sample_rate", audio.SampleRate)
	v.SetDefault("audio.mono", audio.Mono)
	v.SetDefault("audio.window_size", audio.WindowSize)
	v.SetDefault("audio.hop_size", audio.HopSize)
	v.SetDefault("audio.bands", bands)
	v.SetDefault("audio.rolloff_percent", audio.RolloffPercent)
	v.SetDefault("audio.contrast_bands", audio.ContrastBands)
	v.SetDefault("audio.hpss_kernel", audio.HPSSKernel)
	v.SetDefault("audio.tempo_min", audio.TempoMin)
	v.SetDefault("audio.tempo_max", audio.TempoMax)
	v.SetDefault("audio.chroma_bins", audio.ChromaBins)
	v.SetDefault("audio.mfcc_coefficients", audio.MFCCCoefficients)
	v.SetDefault("audio.delta_width", audio.DeltaWidth)
	v.SetDefault("audio.novelty_kernel", audio.NoveltyKernel)

	// Render defaults
	r := render.DefaultConfig()
	v.SetDefault("render.fps", r.FPS)
	v.SetDefault("render.width", r.Width)
	v.SetDefault("render.height", r.Height)
	v.SetDefault("render.idle", string(r.Idle))
	v.SetDefault("render.stop_at_end", r.StopAtEnd)

	// Playback defaults
	p := playback.DefaultConfig()
	v.SetDefault("playback.enabled", p.Enabled)
	v.SetDefault("playback.buffer_size", p.BufferSize)

	// Output defaults
	v.SetDefault("output.file", "")
	v.SetDefault("output.precision", 3)
	v.SetDefault("output.series", []string{})
	v.SetDefault("output.frames", false)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.prefix", "beatscope")
	v.SetDefault("metrics.tags", []string{})

	// Logging defaults
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.level", "info")

	// Application defaults
	v.SetDefault("verbose", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("output_format", "table")

	home, _ := os.UserHomeDir()
	v.SetDefault("config_dir", filepath.Join(home, ".config", "beatscope"))
	v.SetDefault("data_dir", filepath.Join(home, ".local", "share", "beatscope"))
}

// GetDefaultConfig returns the configuration used when no file is present
func GetDefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Verbose:      false,
		LogLevel:     "info",
		OutputFormat: "table",
		ConfigDir:    filepath.Join(home, ".config", "beatscope"),
		DataDir:      filepath.Join(home, ".local", "share", "beatscope"),
		Audio:        *config.DefaultFeatureConfig(),
		Render:       render.DefaultConfig(),
		Playback:     playback.DefaultConfig(),
		Output:       GetDefaultOutputConfig(),
		Metrics:      GetDefaultMetricsConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetDefaultOutputConfig returns default output settings
func GetDefaultOutputConfig() OutputConfig {
	return OutputConfig{
		Precision: 3,
	}
}

// GetDefaultMetricsConfig returns default metrics settings
func GetDefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled: false,
		Prefix:  "beatscope",
	}
}

// FastAudioConfig trades resolution for speed on long tracks
func FastAudioConfig() config.FeatureConfig {
	c := *config.DefaultFeatureConfig()
	c.SampleRate = 22050
	c.WindowSize = 1024
	c.HopSize = 512
	c.HPSSKernel = 17
	c.NoveltyKernel = 32
	return c
}

// HeadlessRenderConfig renders small frames and blanks idle time, for
// benchmarks and CI
func HeadlessRenderConfig() render.Config {
	return render.Config{
		FPS:       30,
		Width:     320,
		Height:    180,
		Idle:      render.IdleBlank,
		StopAtEnd: true,
	}
}

// SilentPlaybackConfig disables audio output
func SilentPlaybackConfig() playback.Config {
	return playback.Config{
		Enabled:    false,
		BufferSize: 100 * time.Millisecond,
	}
}

// GetDefaultOutputConfigForFormat returns output config optimized for specific format
func GetDefaultOutputConfigForFormat(format string) OutputConfig {
	base := GetDefaultOutputConfig()

	switch format {
	case "json", "yaml":
		base.Precision = 6
	case "csv":
		base.Frames = true
	case "table":
		base.Precision = 2
	}

	return base
}
