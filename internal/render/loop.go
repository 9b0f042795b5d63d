// Package render drives scenes at a fixed frame rate against the playback
// clock.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"runtime/debug"
	"time"

	"github.com/RyanBlaney/beatscope/internal/scene"
	"github.com/RyanBlaney/beatscope/internal/timeline"
	"github.com/RyanBlaney/beatscope/pkg/audio/features"
	"github.com/RyanBlaney/beatscope/pkg/audio/playback"
	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

// IdleMode decides what is shown when no timeline entry covers the clock
type IdleMode string

const (
	// IdleHold keeps running the last active scene
	IdleHold IdleMode = "hold"
	// IdleBlank clears the frame to black
	IdleBlank IdleMode = "blank"
)

// Config holds render loop settings
type Config struct {
	FPS       int      `json:"fps" yaml:"fps" mapstructure:"fps"`
	Width     int      `json:"width" yaml:"width" mapstructure:"width"`
	Height    int      `json:"height" yaml:"height" mapstructure:"height"`
	Idle      IdleMode `json:"idle" yaml:"idle" mapstructure:"idle"`
	StopAtEnd bool     `json:"stop_at_end" yaml:"stop_at_end" mapstructure:"stop_at_end"`
}

// DefaultConfig renders 1280x720 at 60 frames per second
func DefaultConfig() Config {
	return Config{
		FPS:       60,
		Width:     1280,
		Height:    720,
		Idle:      IdleHold,
		StopAtEnd: true,
	}
}

// Validate checks the render settings
func (c Config) Validate() error {
	if c.FPS <= 0 || c.FPS > 1000 {
		return fmt.Errorf("fps must be in (0, 1000], got %d", c.FPS)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("frame size must be positive, got %dx%d", c.Width, c.Height)
	}
	switch c.Idle {
	case IdleHold, IdleBlank:
	default:
		return fmt.Errorf("idle mode must be %q or %q, got %q", IdleHold, IdleBlank, c.Idle)
	}
	return nil
}

// Stats summarizes one run of the loop
type Stats struct {
	Ticks         int           `json:"ticks"`
	Frames        int           `json:"frames"`
	SkippedFrames int           `json:"skipped_frames"`
	IdleFrames    int           `json:"idle_frames"`
	PresentErrors int           `json:"present_errors"`
	Transitions   int           `json:"transitions"`
	LateTicks     int           `json:"late_ticks"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	Duration      time.Duration `json:"duration"`
	PlaybackTime  float64       `json:"playback_time"`
	StopReason    string        `json:"stop_reason"`
	// FrameTime covers the most recent frameTimeWindow ticks
	FrameTime TimingStats `json:"frame_time_ms"`
}

// AverageFPS returns presented frames per wall-clock second
func (s Stats) AverageFPS() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Duration.Seconds()
}

// Loop ticks the active scene. It reads the clock, never audio buffers, so
// a stalled device cannot block rendering.
type Loop struct {
	cfg       Config
	timeline  *timeline.Timeline
	table     *features.Table
	clock     playback.Clock
	presenter Presenter
	logger    logging.Logger

	front      *image.RGBA
	back       *image.RGBA
	stats      Stats
	frameTimes *timingRing
}

// New creates a render loop. The table must be fully extracted before the
// first tick.
func New(cfg Config, tl *timeline.Timeline, table *features.Table, clock playback.Clock, presenter Presenter, logger logging.Logger) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid render config: %w", err)
	}
	if tl == nil {
		return nil, fmt.Errorf("render loop needs a timeline")
	}
	if table == nil {
		return nil, fmt.Errorf("render loop needs a feature table")
	}
	if clock == nil {
		return nil, fmt.Errorf("render loop needs a clock")
	}
	if presenter == nil {
		presenter = NopPresenter{}
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	bounds := image.Rect(0, 0, cfg.Width, cfg.Height)
	l := &Loop{
		cfg:       cfg,
		timeline:  tl,
		table:     table,
		clock:     clock,
		presenter: presenter,
		logger: logger.WithFields(logging.Fields{
			"component": "render_loop",
		}),
		front:      image.NewRGBA(bounds),
		back:       image.NewRGBA(bounds),
		frameTimes: newTimingRing(frameTimeWindow),
	}
	clearFrame(l.front)
	return l, nil
}

// trackDone returns the clock's end-of-track channel when the clock has one
// and the loop stops at the end, nil otherwise.
func (l *Loop) trackDone() <-chan struct{} {
	if !l.cfg.StopAtEnd {
		return nil
	}
	if p, ok := l.clock.(interface{ Done() <-chan struct{} }); ok {
		return p.Done()
	}
	return nil
}

// Run ticks at the configured rate until ctx is cancelled or, with
// StopAtEnd, the track ends: either the clock reports Done or it reaches
// the track duration.
func (l *Loop) Run(ctx context.Context) (Stats, error) {
	logger := l.logger.WithFields(logging.Fields{
		"function": "Run",
	})

	interval := time.Second / time.Duration(l.cfg.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.stats.StartTime = time.Now()
	last := l.stats.StartTime

	logger.Info("Render loop started", logging.Fields{
		"fps":      l.cfg.FPS,
		"width":    l.cfg.Width,
		"height":   l.cfg.Height,
		"entries":  l.timeline.Len(),
		"duration": l.table.Duration,
	})

	for {
		select {
		case <-ctx.Done():
			l.finish(logger, "cancelled")
			return l.stats, nil
		case <-l.trackDone():
			// players also close Done when ctx is cancelled
			if ctx.Err() != nil {
				l.finish(logger, "cancelled")
			} else {
				l.finish(logger, "track ended")
			}
			return l.stats, nil
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if dt > 2*interval {
				l.stats.LateTicks++
			}
			done := l.Step(dt.Seconds())
			l.frameTimes.add(float64(time.Since(now).Microseconds()) / 1000)
			if done {
				l.finish(logger, "track ended")
				return l.stats, nil
			}
		}
	}
}

func (l *Loop) finish(logger logging.Logger, reason string) {
	l.stats.EndTime = time.Now()
	l.stats.Duration = l.stats.EndTime.Sub(l.stats.StartTime)
	l.stats.StopReason = reason
	l.stats.FrameTime = calculateTiming(l.frameTimes.values())
	logger.Info("Render loop stopped", logging.Fields{
		"reason":         reason,
		"frames":         l.stats.Frames,
		"skipped_frames": l.stats.SkippedFrames,
		"idle_frames":    l.stats.IdleFrames,
		"late_ticks":     l.stats.LateTicks,
		"average_fps":    l.stats.AverageFPS(),
		"frame_time_p95": l.stats.FrameTime.P95,
	})
}

// Step performs one tick with dt seconds since the previous one. It
// returns true once the clock has reached the end of the track and the loop
// should stop.
func (l *Loop) Step(dt float64) bool {
	t := l.clock.Elapsed().Seconds()
	l.stats.Ticks++
	l.stats.PlaybackTime = t

	if l.cfg.StopAtEnd && t >= l.table.Duration {
		return true
	}

	res, ok, changed := l.timeline.Active(t)
	if changed {
		l.stats.Transitions++
		l.logger.Debug("Scene transition", logging.Fields{
			"time":  t,
			"entry": res.EntryIndex,
			"scene": res.Entry.Name,
		})
	}

	if !ok {
		l.stats.IdleFrames++
		if l.cfg.Idle == IdleBlank {
			clearFrame(l.front)
			l.present(t)
			return false
		}
		held, found := l.timeline.Entry(l.timeline.Current())
		if !found || held.Scene == nil {
			l.present(t)
			return false
		}
		res = timeline.Resolution{
			Scene:      held.Scene,
			Entry:      held,
			EntryIndex: l.timeline.Current(),
			FrameIndex: res.FrameIndex,
		}
	}

	if res.Scene == nil {
		l.stats.SkippedFrames++
		return false
	}

	if err := l.runScene(res.Scene, dt, t, res.FrameIndex); err != nil {
		l.stats.SkippedFrames++
		l.logger.Error(err, "Scene failed, skipping frame", logging.Fields{
			"time":  t,
			"frame": res.FrameIndex,
			"entry": res.EntryIndex,
			"scene": res.Entry.Name,
		})
		return false
	}

	l.front, l.back = l.back, l.front
	l.present(t)
	return false
}

// runScene updates and draws into the back buffer, turning panics into
// errors so one bad frame never takes the loop down.
func (l *Loop) runScene(s scene.Scene, dt, t float64, idx int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scene panicked: %v", r)
			l.logger.Debug("Scene panic stack", logging.Fields{
				"stack": string(debug.Stack()),
			})
		}
	}()

	if err := s.Update(dt, t, l.table, idx); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	if err := s.Draw(l.back); err != nil {
		return fmt.Errorf("draw failed: %w", err)
	}
	return nil
}

func (l *Loop) present(t float64) {
	if err := l.presenter.Present(l.front); err != nil {
		l.stats.PresentErrors++
		l.logger.Warn("Failed to present frame", logging.Fields{
			"time":  t,
			"error": err.Error(),
		})
		return
	}
	l.stats.Frames++
}

// Stats returns the counters collected so far
func (l *Loop) Stats() Stats {
	return l.stats
}

// Frame returns the most recently completed frame. It is owned by the loop.
func (l *Loop) Frame() *image.RGBA {
	return l.front
}

func clearFrame(img *image.RGBA) {
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
}
