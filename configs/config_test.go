package configs

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/beatscope/internal/render"
	"github.com/RyanBlaney/beatscope/pkg/audio/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, *config.DefaultFeatureConfig(), cfg.Audio)
	assert.Equal(t, render.DefaultConfig(), cfg.Render)
	assert.True(t, cfg.Playback.Enabled)
	assert.Equal(t, 100*time.Millisecond, cfg.Playback.BufferSize)
	assert.Equal(t, "table", cfg.OutputFormat)
	assert.Equal(t, "beatscope", cfg.Metrics.Prefix)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("BEATSCOPE_RENDER_FPS", "30")
	t.Setenv("BEATSCOPE_RENDER_IDLE", "blank")
	t.Setenv("BEATSCOPE_PLAYBACK_ENABLED", "false")
	t.Setenv("BEATSCOPE_AUDIO_HOP_SIZE", "256")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Render.FPS)
	assert.Equal(t, render.IdleBlank, cfg.Render.Idle)
	assert.False(t, cfg.Playback.Enabled)
	assert.Equal(t, 256, cfg.Audio.HopSize)
}

func TestLoadExplicitValuesWin(t *testing.T) {
	v := viper.New()
	v.Set("render.width", 640)
	v.Set("playback.buffer_size", "250ms")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Render.Width)
	assert.Equal(t, 720, cfg.Render.Height)
	assert.Equal(t, 250*time.Millisecond, cfg.Playback.BufferSize)
}

func TestValidateConfig(t *testing.T) {
	type test struct {
		name   string
		mutate func(c *Config)
	}
	tests := []test{
		{"bad hop", func(c *Config) { c.Audio.HopSize = 0 }},
		{"bad fps", func(c *Config) { c.Render.FPS = 0 }},
		{"bad idle", func(c *Config) { c.Render.Idle = "fade" }},
		{"bad buffer", func(c *Config) { c.Playback.BufferSize = 0 }},
		{"bad format", func(c *Config) { c.OutputFormat = "xml" }},
		{"bad precision", func(c *Config) { c.Output.Precision = -1 }},
		{"metrics without prefix", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Prefix = "" }},
	}

	require.NoError(t, ValidateConfig(GetDefaultConfig()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, ValidateConfig(cfg))
		})
	}
}

func TestPresets(t *testing.T) {
	fast := FastAudioConfig()
	assert.NoError(t, fast.Validate())
	assert.NoError(t, HeadlessRenderConfig().Validate())
	assert.False(t, SilentPlaybackConfig().Enabled)
	assert.Equal(t, 6, GetDefaultOutputConfigForFormat("json").Precision)
	assert.True(t, GetDefaultOutputConfigForFormat("csv").Frames)
}
