package playback

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RyanBlaney/beatscope/pkg/audio/common"
	"github.com/RyanBlaney/beatscope/pkg/audio/decode"
	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

// Clock reports how far playback has progressed. Elapsed is safe to call
// from any goroutine.
type Clock interface {
	Elapsed() time.Duration
}

// Player plays a decoded track on its own goroutine
type Player interface {
	Clock
	Start(ctx context.Context) error
	Stop() error
	// Done is closed when the track ends or the player is stopped
	Done() <-chan struct{}
}

// Config controls audio output
type Config struct {
	Enabled    bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	BufferSize time.Duration `json:"buffer_size" yaml:"buffer_size" mapstructure:"buffer_size"`
}

// DefaultConfig plays through the speaker with a 100ms device buffer
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		BufferSize: 100 * time.Millisecond,
	}
}

// NewPlayer returns a player for buf. With playback disabled it is a silent
// wall clock; otherwise it drives the speaker and falls back to the silent
// clock if no output device can be opened.
func NewPlayer(cfg Config, buf *decode.Buffer) Player {
	silent := NewSilentClock(buf.TimeDuration())
	if !cfg.Enabled {
		return silent
	}
	return NewFallbackPlayer(NewSpeakerPlayer(buf, cfg.BufferSize), silent)
}

// FallbackPlayer starts its primary player and switches to the fallback when
// the primary's Start reports a PlaybackDeviceError.
type FallbackPlayer struct {
	primary  Player
	fallback Player
	degraded atomic.Bool
	logger   logging.Logger
}

// NewFallbackPlayer creates a degrading player
func NewFallbackPlayer(primary, fallback Player) *FallbackPlayer {
	return &FallbackPlayer{
		primary:  primary,
		fallback: fallback,
		logger: logging.WithFields(logging.Fields{
			"component": "fallback_player",
		}),
	}
}

func (f *FallbackPlayer) active() Player {
	if f.degraded.Load() {
		return f.fallback
	}
	return f.primary
}

func (f *FallbackPlayer) Start(ctx context.Context) error {
	err := f.primary.Start(ctx)
	if err == nil {
		return nil
	}
	if !common.IsPlaybackDeviceError(err) {
		return err
	}

	f.logger.Warn("Audio device unavailable, continuing with silent visualization", logging.Fields{
		"error": err.Error(),
	})
	f.degraded.Store(true)
	return f.fallback.Start(ctx)
}

func (f *FallbackPlayer) Stop() error {
	return f.active().Stop()
}

func (f *FallbackPlayer) Elapsed() time.Duration {
	return f.active().Elapsed()
}

func (f *FallbackPlayer) Done() <-chan struct{} {
	return f.active().Done()
}

// Degraded reports whether playback fell back to the silent clock
func (f *FallbackPlayer) Degraded() bool {
	return f.degraded.Load()
}

// SilentClock advances with the wall clock and produces no sound. Done fires
// once the track duration has passed.
type SilentClock struct {
	duration time.Duration
	base     time.Time

	// nanoseconds since base; -1 while unset
	startedAt atomic.Int64
	stoppedAt atomic.Int64

	done     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSilentClock creates a clock for a track of the given length
func NewSilentClock(duration time.Duration) *SilentClock {
	c := &SilentClock{
		duration: duration,
		base:     time.Now(),
		done:     make(chan struct{}),
		stop:     make(chan struct{}),
	}
	c.startedAt.Store(-1)
	c.stoppedAt.Store(-1)
	return c
}

func (c *SilentClock) Start(ctx context.Context) error {
	if !c.startedAt.CompareAndSwap(-1, int64(time.Since(c.base))) {
		return nil
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(c.done)

		timer := time.NewTimer(c.duration)
		defer timer.Stop()

		select {
		case <-ctx.Done():
		case <-c.stop:
		case <-timer.C:
		}
		c.stoppedAt.CompareAndSwap(-1, int64(time.Since(c.base)))
	}()
	return nil
}

// Stop freezes the clock and waits for the timer goroutine to exit
func (c *SilentClock) Stop() error {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	if c.startedAt.Load() < 0 {
		return nil
	}
	c.wg.Wait()
	return nil
}

func (c *SilentClock) Elapsed() time.Duration {
	start := c.startedAt.Load()
	if start < 0 {
		return 0
	}
	now := c.stoppedAt.Load()
	if now < 0 {
		now = int64(time.Since(c.base))
	}
	return time.Duration(now - start)
}

func (c *SilentClock) Done() <-chan struct{} {
	return c.done
}
