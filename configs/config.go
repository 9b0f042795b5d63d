package configs

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/RyanBlaney/beatscope/internal/render"
	"github.com/RyanBlaney/beatscope/pkg/audio/config"
	"github.com/RyanBlaney/beatscope/pkg/audio/playback"
)

// EnvPrefix is prepended to every environment override, e.g.
// BEATSCOPE_RENDER_FPS=30
const EnvPrefix = "BEATSCOPE"

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose      bool   `mapstructure:"verbose" yaml:"verbose"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`
	OutputFormat string `mapstructure:"output_format" yaml:"output_format"`
	ConfigDir    string `mapstructure:"config_dir" yaml:"config_dir"`
	DataDir      string `mapstructure:"data_dir" yaml:"data_dir"`

	// Feature extraction
	Audio config.FeatureConfig `mapstructure:"audio" yaml:"audio"`

	// Render loop
	Render render.Config `mapstructure:"render" yaml:"render"`

	// Audio output
	Playback playback.Config `mapstructure:"playback" yaml:"playback"`

	// Analysis output
	Output OutputConfig `mapstructure:"output" yaml:"output"`

	// Session metrics
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Persistent log sink
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// OutputConfig contains output formatting settings
type OutputConfig struct {
	File      string   `mapstructure:"file" yaml:"file"`
	Precision int      `mapstructure:"precision" yaml:"precision"`
	Series    []string `mapstructure:"series" yaml:"series"`
	Frames    bool     `mapstructure:"frames" yaml:"frames"`
}

// MetricsConfig controls the render statistics sent through rootcollector
type MetricsConfig struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
	Prefix  string   `mapstructure:"prefix" yaml:"prefix"`
	Tags    []string `mapstructure:"tags" yaml:"tags"`
}

// LoggingConfig configures the optional rootlogger file sink
type LoggingConfig struct {
	File  string `mapstructure:"file" yaml:"file"`
	Level string `mapstructure:"level" yaml:"level"`
}

// LoadConfig loads configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load applies defaults and environment overrides to v and decodes it
func Load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if err := config.Audio.Validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}

	if err := config.Render.Validate(); err != nil {
		return fmt.Errorf("render: %w", err)
	}

	if config.Playback.BufferSize <= 0 {
		return fmt.Errorf("playback buffer size must be positive")
	}

	switch config.OutputFormat {
	case "json", "yaml", "csv", "table":
	default:
		return fmt.Errorf("output format must be one of json, yaml, csv, table, got %q", config.OutputFormat)
	}

	if config.Output.Precision < 0 {
		return fmt.Errorf("output precision cannot be negative")
	}

	if config.Metrics.Enabled && config.Metrics.Prefix == "" {
		return fmt.Errorf("metrics prefix is required when metrics are enabled")
	}

	return nil
}
