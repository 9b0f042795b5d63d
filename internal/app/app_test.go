package app

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/beatscope/configs"
	"github.com/RyanBlaney/beatscope/internal/render"
	"github.com/RyanBlaney/beatscope/internal/scene"
	"github.com/RyanBlaney/beatscope/pkg/audio/common"
	"github.com/RyanBlaney/beatscope/pkg/audio/decode"
	"github.com/RyanBlaney/beatscope/pkg/audio/playback"
)

// toneDecoder synthesizes a tone with a click every half second
type toneDecoder struct {
	seconds float64
	err     error
}

func (d toneDecoder) Decode(ctx context.Context, path string) (*decode.Buffer, error) {
	if d.err != nil {
		return nil, d.err
	}
	const sr = 22050
	n := int(d.seconds * sr)
	sig := make([]float64, n)
	for i := range sig {
		sig[i] = 0.3 * math.Sin(2*math.Pi*440*float64(i)/sr)
		if i%(sr/2) < 64 {
			sig[i] += 0.6
		}
	}
	return &decode.Buffer{
		Path:       path,
		Channels:   [][]float64{sig},
		SampleRate: sr,
		Metadata:   &decode.TrackInfo{Title: "Tone"},
	}, nil
}

func newTestApp(t *testing.T, ctx *Context, dec decode.Decoder) *VisualizerApp {
	t.Helper()
	if ctx.Config == nil {
		ctx.Config = configs.GetDefaultConfig()
	}
	app, err := NewVisualizerApp(ctx)
	require.NoError(t, err)
	app.decoder = dec
	return app
}

func TestParseShowTime(t *testing.T) {
	type test struct {
		in      string
		seconds float64 // resolved against a 200s track
		wantErr bool
	}
	tests := []test{
		{in: "12.5", seconds: 12.5},
		{in: "1:02.250", seconds: 62.25},
		{in: "01:00:01.5", seconds: 3601.5},
		{in: "40%", seconds: 80},
		{in: " 100 % ", seconds: 200},
		{in: "end", seconds: 200},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "1:75", wantErr: true},
		{in: "1:2:3:4", wantErr: true},
		{in: "-5%", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseShowTime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.seconds, got.Resolve(200), 1e-9)
		})
	}
}

func TestLoadShowFormats(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "show.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
audio: song.wav
chart: charts/song.json
fps: 30
timeline:
  - start: 0
    end: "50%"
    scene: bars
    params:
      color: hotpink
      bands: [bass, mid]
  - start: "50%"
    end: end
    scene: pulse
`), 0o644))

	show, err := LoadShow(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "song.wav"), show.AudioPath())
	assert.Equal(t, filepath.Join(dir, "charts", "song.json"), show.ChartPath())
	assert.Equal(t, 30, show.FPS)
	require.Len(t, show.Scenes, 2)
	assert.Equal(t, 5.0, show.Scenes[0].End.Resolve(10))
	assert.Equal(t, []string{"bass", "mid"}, show.Scenes[0].Params.Strings("bands", nil))
	assert.Equal(t, 10.0, show.Scenes[1].End.Resolve(10))

	jsonPath := filepath.Join(dir, "show.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{
  "audio": "/abs/song.mp3",
  "timeline": [
    {"start": 0, "end": "0:10", "scene": "hud", "params": {"meters": "rms,onset"}},
    {"start": 10, "end": "75%", "scene": "spectrum"}
  ]
}`), 0o644))

	show, err = LoadShow(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "/abs/song.mp3", show.AudioPath())
	assert.Equal(t, "", show.ChartPath())
	assert.Equal(t, 10.0, show.Scenes[0].End.Resolve(99))
	assert.Equal(t, 30.0, show.Scenes[1].End.Resolve(40))

	badPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("timeline: []\n"), 0o644))
	_, err = LoadShow(badPath)
	assert.Error(t, err)

	_, err = LoadShow(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateShow(t *testing.T) {
	registry := scene.Builtins()

	show := &Show{Audio: "a.wav", Scenes: []ShowEntry{
		{Start: Seconds(0), End: Seconds(12), Scene: "bars"},
		{Start: Seconds(10), End: Percent(100), Scene: "pulse"},
	}}
	warnings, err := ValidateShow(show, 30, registry)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, common.ErrCodeOverlap, warnings[0].Code)

	// relative entries are skipped when the duration is unknown
	warnings, err = ValidateShow(show, 0, registry)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	show.Scenes = append(show.Scenes, ShowEntry{Start: Seconds(0), End: Seconds(1), Scene: "laser"})
	_, err = ValidateShow(show, 30, registry)
	assert.Error(t, err)

	// no timeline means the default split, which covers the whole track
	warnings, err = ValidateShow(&Show{Audio: "a.wav"}, 30, registry)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestGenerateExampleShow(t *testing.T) {
	for _, name := range []string{"example.yaml", "example.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "shows", name)
			require.NoError(t, GenerateExampleShow(path, "track.mp3"))

			show, err := LoadShow(path)
			require.NoError(t, err)
			assert.Equal(t, "track.mp3", show.Audio)
			assert.Len(t, show.Scenes, 4)

			warnings, err := ValidateShow(show, 180, scene.Builtins())
			require.NoError(t, err)
			assert.Empty(t, warnings)
		})
	}
}

func TestDefaultEntriesUseChart(t *testing.T) {
	assert.Equal(t, "pulse", DefaultEntries(false)[1].Scene)
	assert.Equal(t, "notes", DefaultEntries(true)[1].Scene)
	assert.InDelta(t, 40.0, DefaultEntries(false)[0].End.Resolve(100), 1e-9)
	assert.InDelta(t, 60.0, DefaultEntries(false)[2].Start.Resolve(100), 1e-9)
}

func TestNewVisualizerAppMergesOverrides(t *testing.T) {
	dir := t.TempDir()
	showPath := filepath.Join(dir, "show.yml")
	require.NoError(t, os.WriteFile(showPath, []byte("audio: a.wav\nfps: 24\nwidth: 320\nheight: 200\nidle: blank\n"), 0o644))

	ctx := &Context{Input: showPath, Height: 100, NoAudio: true, OutputFormat: "json"}
	app := newTestApp(t, ctx, toneDecoder{})

	assert.Equal(t, 24, app.config.Render.FPS)
	assert.Equal(t, 320, app.config.Render.Width)
	assert.Equal(t, 100, app.config.Render.Height)
	assert.Equal(t, render.IdleBlank, app.config.Render.Idle)
	assert.False(t, app.config.Playback.Enabled)
	assert.Equal(t, "json", app.config.OutputFormat)
	assert.NotEmpty(t, app.SessionID())

	_, err := NewVisualizerApp(&Context{Config: configs.GetDefaultConfig()})
	assert.Error(t, err, "input is required")

	_, err = NewVisualizerApp(&Context{Config: configs.GetDefaultConfig(), Input: "a.wav", OutputFormat: "xml"})
	assert.Error(t, err)
}

func TestAnalyze(t *testing.T) {
	var out bytes.Buffer
	app := newTestApp(t, &Context{
		Input:        "tone.wav",
		OutputFormat: "json",
		Series:       []string{"rms", "onset", "bass"},
	}, toneDecoder{seconds: 3})
	app.out = &out

	require.NoError(t, app.Analyze(context.Background()))
	assert.Contains(t, out.String(), "tempo")
	assert.Contains(t, out.String(), "onset")
	assert.NotContains(t, out.String(), "flatness")
}

func TestSummarize(t *testing.T) {
	app := newTestApp(t, &Context{Input: "tone.wav"}, toneDecoder{seconds: 3})
	_, table, err := app.extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Tone", table.Metadata.Title)

	app.config.Output.Series = []string{"rms"}
	app.config.Output.Frames = true
	summary, err := app.summarize(table)
	require.NoError(t, err)

	series := summary["series"].(map[string]SeriesSummary)
	rms := series["rms"]
	assert.GreaterOrEqual(t, rms.Min, 0.0)
	assert.LessOrEqual(t, rms.Max, 1.0)
	assert.Len(t, summary["frames_data"], table.Len())

	data, err := json.Marshal(summary)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	app.config.Output.Series = []string{"nope"}
	_, err = app.summarize(table)
	assert.Error(t, err)
}

func TestAnalyzeDecodeErrorNamesStage(t *testing.T) {
	decodeErr := common.NewDecodeError("broken.mp3", ".mp3", common.ErrCodeDecodeFormat, "bad frame", nil)
	app := newTestApp(t, &Context{Input: "broken.mp3"}, toneDecoder{err: decodeErr})

	err := app.Analyze(context.Background())
	require.Error(t, err)
	assert.Equal(t, "decode", common.Stage(err))
}

func TestAnalyzeTooShortIsProcessingError(t *testing.T) {
	app := newTestApp(t, &Context{Input: "blip.wav"}, toneDecoder{seconds: 0.01})

	err := app.Analyze(context.Background())
	require.Error(t, err)
	assert.Equal(t, "processing", common.Stage(err))
}

func TestRunHeadless(t *testing.T) {
	cfg := configs.GetDefaultConfig()
	cfg.Render.Width, cfg.Render.Height = 64, 36
	cfg.Render.FPS = 100

	app := newTestApp(t, &Context{
		Input:       "tone.wav",
		Config:      cfg,
		Headless:    true,
		MaxDuration: 300 * time.Millisecond,
	}, toneDecoder{seconds: 3})

	frames := &render.FramePresenter{}
	app.presenter = frames
	app.newPlayer = func(_ playback.Config, buf *decode.Buffer) playback.Player {
		return playback.NewSilentClock(buf.TimeDuration())
	}

	require.NoError(t, app.Run(context.Background()))

	session := app.LastSession()
	require.NotNil(t, session)
	assert.Equal(t, app.SessionID(), session.ID)
	assert.Greater(t, session.Stats.Frames, 0)
	assert.Zero(t, session.Stats.SkippedFrames)
	assert.Empty(t, session.Warnings)
	assert.Equal(t, session.Stats.Frames, frames.Count())
	assert.NotNil(t, frames.Last())
}

// noDevicePlayer fails to start like a machine without audio output
type noDevicePlayer struct{}

func (noDevicePlayer) Start(ctx context.Context) error {
	return common.NewPlaybackDeviceError("default", common.ErrCodeNoDevice, "no device", nil)
}
func (noDevicePlayer) Stop() error            { return nil }
func (noDevicePlayer) Elapsed() time.Duration { return 0 }
func (noDevicePlayer) Done() <-chan struct{}  { return nil }

func TestRunMarksDegradedPlayback(t *testing.T) {
	type test struct {
		name         string
		newPlayer    func(buf *decode.Buffer) playback.Player
		wantDegraded bool
	}
	tests := []test{
		{
			name: "silent playback by choice",
			newPlayer: func(buf *decode.Buffer) playback.Player {
				return playback.NewSilentClock(buf.TimeDuration())
			},
		},
		{
			name: "fallback player switched to silent clock",
			newPlayer: func(buf *decode.Buffer) playback.Player {
				return playback.NewFallbackPlayer(noDevicePlayer{}, playback.NewSilentClock(buf.TimeDuration()))
			},
			wantDegraded: true,
		},
		{
			name: "device error without fallback",
			newPlayer: func(buf *decode.Buffer) playback.Player {
				return noDevicePlayer{}
			},
			wantDegraded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := configs.GetDefaultConfig()
			cfg.Render.Width, cfg.Render.Height = 16, 9
			app := newTestApp(t, &Context{
				Input:       "tone.wav",
				Config:      cfg,
				Headless:    true,
				MaxDuration: 150 * time.Millisecond,
			}, toneDecoder{seconds: 3})
			app.presenter = &render.FramePresenter{}
			app.newPlayer = func(_ playback.Config, buf *decode.Buffer) playback.Player {
				return tt.newPlayer(buf)
			}

			require.NoError(t, app.Run(context.Background()))
			session := app.LastSession()
			require.NotNil(t, session)
			assert.Equal(t, tt.wantDegraded, session.Degraded)
			assert.Greater(t, session.Stats.Frames, 0)
		})
	}
}

func TestRunStopsAtEndOfTrack(t *testing.T) {
	cfg := configs.GetDefaultConfig()
	cfg.Render.Width, cfg.Render.Height = 16, 9

	app := newTestApp(t, &Context{
		Input:       "tone.wav",
		Config:      cfg,
		Headless:    true,
		MaxDuration: 10 * time.Second,
	}, toneDecoder{seconds: 0.5})
	app.presenter = &render.FramePresenter{}
	app.newPlayer = func(_ playback.Config, buf *decode.Buffer) playback.Player {
		return playback.NewSilentClock(buf.TimeDuration())
	}

	start := time.Now()
	require.NoError(t, app.Run(context.Background()))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, "track ended", app.LastSession().Stats.StopReason)
}
