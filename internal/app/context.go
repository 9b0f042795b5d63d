package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/tunein/go-logging/v7/pkg/logger"
	"github.com/tunein/go-logging/v7/pkg/logger/logtypes"
	"github.com/tunein/go-logging/v7/pkg/rootcollector"
	"github.com/tunein/go-logging/v7/pkg/rootlogger"

	"github.com/RyanBlaney/beatscope/configs"
	"github.com/RyanBlaney/beatscope/internal/render"
	"github.com/RyanBlaney/beatscope/internal/scene"
	"github.com/RyanBlaney/beatscope/internal/timeline"
	"github.com/RyanBlaney/beatscope/pkg/audio/common"
	"github.com/RyanBlaney/beatscope/pkg/audio/decode"
	"github.com/RyanBlaney/beatscope/pkg/audio/features"
	"github.com/RyanBlaney/beatscope/pkg/audio/playback"
	"github.com/RyanBlaney/beatscope/pkg/chart"
	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

// Context holds the application context and configuration
type Context struct {
	// CLI arguments
	Input        string // audio file or show file
	ChartFile    string
	OutputFile   string
	OutputFormat string
	Series       []string
	FPS          int
	Width        int
	Height       int
	MaxDuration  time.Duration
	NoAudio      bool
	Headless     bool
	Verbose      bool
	Quiet        bool
	LogLevel     string

	// Progress receives extraction stages, e.g. for a progress bar
	Progress features.ProgressFunc

	// Runtime context
	Logger logging.Logger
	Config *configs.Config
	Show   *Show
}

// Session describes one finished play run
type Session struct {
	ID       string                        `json:"id"`
	Path     string                        `json:"path"`
	Stats    render.Stats                  `json:"stats"`
	Warnings []common.ConfigurationWarning `json:"warnings,omitempty"`
	Degraded bool                          `json:"degraded"`
}

// VisualizerApp handles the application lifecycle
type VisualizerApp struct {
	ctx       *Context
	config    *configs.Config
	show      *Show
	logger    logging.Logger
	sessionID string
	registry  *scene.Registry
	decoder   decode.Decoder

	// overridable for headless runs and tests
	presenter render.Presenter
	out       io.Writer
	newPlayer func(playback.Config, *decode.Buffer) playback.Player

	last *Session
}

// NewVisualizerApp creates a new application. A Config already set on ctx
// is used as is; otherwise it is loaded through viper.
func NewVisualizerApp(ctx *Context) (*VisualizerApp, error) {
	config := ctx.Config
	if config == nil {
		var err error
		config, err = configs.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	logger := setupLogging(ctx, config)
	ctx.Logger = logger

	show := ctx.Show
	if show == nil {
		var err error
		show, err = resolveShow(ctx)
		if err != nil {
			return nil, err
		}
	}
	mergeConfig(config, show, ctx)

	if err := configs.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	ctx.Config = config
	ctx.Show = show

	sessionID := uuid.NewString()
	logger = logger.WithFields(logging.Fields{
		"session": sessionID,
	})

	logger.Debug("Visualizer application initialized", logging.Fields{
		"audio":    show.AudioPath(),
		"chart":    show.ChartPath(),
		"entries":  len(show.Scenes),
		"fps":      config.Render.FPS,
		"size":     fmt.Sprintf("%dx%d", config.Render.Width, config.Render.Height),
		"playback": config.Playback.Enabled,
	})

	return &VisualizerApp{
		ctx:       ctx,
		config:    config,
		show:      show,
		logger:    logger,
		sessionID: sessionID,
		registry:  scene.Builtins(),
		decoder:   decode.NewDefaultDecoder(config.Audio.SampleRate, false),
		out:       os.Stdout,
		newPlayer: playback.NewPlayer,
	}, nil
}

// setupLogging configures logging based on context
func setupLogging(ctx *Context, config *configs.Config) logging.Logger {
	level := config.LogLevel
	if ctx.LogLevel != "" {
		level = ctx.LogLevel
	}
	switch {
	case ctx.Verbose || strings.EqualFold(level, "debug"):
		logging.SetLevel(logging.DebugLevel)
	case ctx.Quiet || strings.EqualFold(level, "error"):
		logging.SetLevel(logging.ErrorLevel)
	default:
		logging.SetLevel(logging.InfoLevel)
	}

	if config.Logging.File != "" {
		err := rootlogger.Configure(logger.LogOptions{
			Out:          config.Logging.File,
			ReopenSignal: syscall.SIGHUP,
			Level:        logtypes.InfoLevel,
		})
		if err != nil {
			logging.Error(err, "Failed configuring log writer")
		}
	}

	if ctx.Logger != nil {
		return ctx.Logger
	}
	return logging.WithFields(logging.Fields{
		"component": "visualizer_app",
	})
}

func resolveShow(ctx *Context) (*Show, error) {
	if ctx.Input == "" {
		return nil, fmt.Errorf("an audio file or show file is required")
	}
	if IsShowFile(ctx.Input) {
		show, err := LoadShow(ctx.Input)
		if err != nil {
			return nil, err
		}
		if ctx.ChartFile != "" {
			show.Chart = ctx.ChartFile
		}
		return show, nil
	}
	return &Show{Audio: ctx.Input, Chart: ctx.ChartFile}, nil
}

// mergeConfig applies show settings, then CLI flags, over the loaded config
func mergeConfig(config *configs.Config, show *Show, ctx *Context) {
	if show.FPS > 0 {
		config.Render.FPS = show.FPS
	}
	if show.Width > 0 {
		config.Render.Width = show.Width
	}
	if show.Height > 0 {
		config.Render.Height = show.Height
	}
	if show.Idle != "" {
		config.Render.Idle = render.IdleMode(show.Idle)
	}

	if ctx.FPS > 0 {
		config.Render.FPS = ctx.FPS
	}
	if ctx.Width > 0 {
		config.Render.Width = ctx.Width
	}
	if ctx.Height > 0 {
		config.Render.Height = ctx.Height
	}
	if ctx.NoAudio {
		config.Playback.Enabled = false
	}
	if ctx.OutputFormat != "" {
		config.OutputFormat = ctx.OutputFormat
	}
	if ctx.OutputFile != "" {
		config.Output.File = ctx.OutputFile
	}
	if len(ctx.Series) > 0 {
		config.Output.Series = ctx.Series
	}
}

// SessionID identifies this run in logs and metrics
func (app *VisualizerApp) SessionID() string {
	return app.sessionID
}

// LastSession returns the result of the most recent Run
func (app *VisualizerApp) LastSession() *Session {
	return app.last
}

// extract decodes the track once and analyzes it. The buffer is kept for
// playback; the table is complete before anything renders.
func (app *VisualizerApp) extract(ctx context.Context) (*decode.Buffer, *features.Table, error) {
	path := app.show.AudioPath()
	logger := app.logger.WithFields(logging.Fields{
		"function": "extract",
		"path":     path,
	})

	extractor := features.NewExtractor(app.decoder, &app.config.Audio)
	extractor.Progress = app.ctx.Progress

	start := time.Now()
	if extractor.Progress != nil {
		extractor.Progress(features.StageDecode, 0, 1)
	}
	buf, err := app.decoder.Decode(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	if extractor.Progress != nil {
		extractor.Progress(features.StageDecode, 1, 1)
	}

	table, err := extractor.ExtractBuffer(ctx, buf)
	if err != nil {
		return nil, nil, err
	}
	table.Metadata = buf.Metadata

	logger.Info("Feature extraction complete", logging.Fields{
		"frames":     table.Len(),
		"duration":   table.Duration,
		"tempo":      table.Tempo,
		"beats":      len(table.BeatTimes),
		"stereo":     table.IsStereo(),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return buf, table, nil
}

// loadChart reads the show's chart. A broken chart is logged and skipped.
func (app *VisualizerApp) loadChart(duration float64) *chart.Chart {
	path := app.show.ChartPath()
	c, err := loadChart(path, duration)
	if err != nil {
		app.logger.Warn("Chart could not be loaded, continuing without it", logging.Fields{
			"chart": path,
			"error": err.Error(),
		})
		return nil
	}
	return c
}

// buildTimeline creates the scenes for the show and reports layout warnings
func (app *VisualizerApp) buildTimeline(table *features.Table, c *chart.Chart) (*timeline.Timeline, []common.ConfigurationWarning, error) {
	entries := app.show.Scenes
	if len(entries) == 0 {
		entries = DefaultEntries(c != nil)
	}

	env := scene.Env{
		Size:  image.Pt(app.config.Render.Width, app.config.Render.Height),
		Chart: c,
	}
	built, err := BuildTimeline(entries, table.Duration, app.registry, env)
	if err != nil {
		return nil, nil, err
	}

	tl := timeline.New(built, table)
	warnings := tl.Validate(table.Duration)
	for _, w := range warnings {
		app.logger.Warn("Timeline configuration warning", logging.Fields{
			"code":    w.Code,
			"entry":   w.Index,
			"start":   w.Start,
			"end":     w.End,
			"message": w.Message,
		})
	}
	return tl, warnings, nil
}

// Run extracts features, starts playback and renders until the track ends
// or ctx is cancelled
func (app *VisualizerApp) Run(ctx context.Context) error {
	logger := app.logger.WithFields(logging.Fields{
		"function": "Run",
	})

	buf, table, err := app.extract(ctx)
	if err != nil {
		return err
	}

	c := app.loadChart(table.Duration)
	tl, warnings, err := app.buildTimeline(table, c)
	if err != nil {
		return fmt.Errorf("failed to build timeline: %w", err)
	}

	presenter := app.presenter
	if presenter == nil {
		if app.ctx.Headless {
			presenter = render.NopPresenter{}
		} else {
			presenter = render.NewTerminalPresenter(os.Stdout)
		}
	}
	if closer, ok := presenter.(io.Closer); ok {
		defer closer.Close()
	}

	player := app.newPlayer(app.config.Playback, buf)
	loop, err := render.New(app.config.Render, tl, table, player, presenter, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create render loop: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if app.ctx.MaxDuration > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, app.ctx.MaxDuration)
		defer cancel()
	}

	degraded := false
	if err := player.Start(runCtx); err != nil {
		if !common.IsPlaybackDeviceError(err) {
			return fmt.Errorf("failed to start playback: %w", err)
		}
		// no fallback configured: render against a silent clock
		logger.Warn("Audio output unavailable, rendering silently", logging.Fields{
			"error": err.Error(),
		})
		player = playback.NewSilentClock(buf.TimeDuration())
		degraded = true
		if err := player.Start(runCtx); err != nil {
			return fmt.Errorf("failed to start silent clock: %w", err)
		}
		loop, err = render.New(app.config.Render, tl, table, player, presenter, app.logger)
		if err != nil {
			return fmt.Errorf("failed to create render loop: %w", err)
		}
	}

	stats, runErr := loop.Run(runCtx)
	if err := player.Stop(); err != nil {
		logger.Warn("Failed to stop playback", logging.Fields{
			"error": err.Error(),
		})
	}

	if d, ok := player.(interface{ Degraded() bool }); ok && d.Degraded() {
		degraded = true
	}

	app.last = &Session{
		ID:       app.sessionID,
		Path:     app.show.AudioPath(),
		Stats:    stats,
		Warnings: warnings,
		Degraded: degraded,
	}
	app.collectSessionMetrics(app.last)

	logger.Info("Visualization finished", logging.Fields{
		"frames":         stats.Frames,
		"skipped_frames": stats.SkippedFrames,
		"average_fps":    stats.AverageFPS(),
		"degraded":       degraded,
	})

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("render loop failed: %w", runErr)
	}
	return nil
}

// collectSessionMetrics sends render statistics to rootcollector
func (app *VisualizerApp) collectSessionMetrics(session *Session) {
	if !app.config.Metrics.Enabled || session == nil {
		return
	}

	prefix := app.config.Metrics.Prefix
	tags := append([]string{
		"session:" + session.ID,
		"track:" + filepath.Base(session.Path),
	}, app.config.Metrics.Tags...)
	if session.Degraded {
		tags = append(tags, "playback:silent")
	} else {
		tags = append(tags, "playback:speaker")
	}

	stats := session.Stats
	rootcollector.Metric(prefix+".render.frames", int64(stats.Frames), tags)
	rootcollector.Metric(prefix+".render.skipped_frames", int64(stats.SkippedFrames), tags)
	rootcollector.Metric(prefix+".render.idle_frames", int64(stats.IdleFrames), tags)
	rootcollector.Metric(prefix+".render.late_ticks", int64(stats.LateTicks), tags)
	rootcollector.Metric(prefix+".render.duration.milliseconds", stats.Duration.Milliseconds(), tags)
	rootcollector.Metric(prefix+".render.frame_time.p95.microseconds", int64(stats.FrameTime.P95*1000), tags)
	rootcollector.Metric(prefix+".timeline.warnings", int64(len(session.Warnings)), tags)
}
