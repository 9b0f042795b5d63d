package playback

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RyanBlaney/beatscope/pkg/audio/common"
	"github.com/RyanBlaney/beatscope/pkg/audio/decode"
	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// SpeakerPlayer plays a decoded buffer through the default output device.
// Elapsed time is derived from the number of frames handed to the device,
// less the device buffer.
type SpeakerPlayer struct {
	buf        *decode.Buffer
	bufferSize time.Duration
	position   atomic.Int64
	started    atomic.Bool

	done     chan struct{}
	doneOnce sync.Once
	stopOnce sync.Once
	logger   logging.Logger
}

// NewSpeakerPlayer creates a speaker player. A zero bufferSize uses 100ms.
func NewSpeakerPlayer(buf *decode.Buffer, bufferSize time.Duration) *SpeakerPlayer {
	if bufferSize <= 0 {
		bufferSize = 100 * time.Millisecond
	}
	return &SpeakerPlayer{
		buf:        buf,
		bufferSize: bufferSize,
		done:       make(chan struct{}),
		logger: logging.WithFields(logging.Fields{
			"component": "speaker_player",
			"path":      buf.Path,
		}),
	}
}

func (p *SpeakerPlayer) Start(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return nil
	}

	rate := beep.SampleRate(p.buf.SampleRate)
	if err := speaker.Init(rate, rate.N(p.bufferSize)); err != nil {
		p.started.Store(false)
		return common.NewPlaybackDeviceError("default", common.ErrCodeNoDevice,
			"cannot open audio output device", err)
	}

	p.logger.Debug("Starting playback", logging.Fields{
		"sample_rate": p.buf.SampleRate,
		"buffer_ms":   p.bufferSize.Milliseconds(),
	})

	speaker.Play(beep.Seq(newCountingStreamer(p.buf, &p.position), beep.Callback(p.finish)))

	go func() {
		select {
		case <-ctx.Done():
			p.Stop()
		case <-p.done:
		}
	}()
	return nil
}

func (p *SpeakerPlayer) finish() {
	p.doneOnce.Do(func() {
		close(p.done)
	})
}

// Stop silences the speaker and releases the device
func (p *SpeakerPlayer) Stop() error {
	if !p.started.Load() {
		p.finish()
		return nil
	}
	p.stopOnce.Do(func() {
		speaker.Clear()
		speaker.Close()
		p.finish()
		p.logger.Debug("Playback stopped", logging.Fields{
			"elapsed_s": p.Elapsed().Seconds(),
		})
	})
	return nil
}

func (p *SpeakerPlayer) Elapsed() time.Duration {
	if p.buf.SampleRate <= 0 {
		return 0
	}
	played := time.Duration(p.position.Load()) * time.Second / time.Duration(p.buf.SampleRate)
	select {
	case <-p.done:
		// nothing is left in the device buffer once the track has ended
		return played
	default:
	}
	return max(0, played-p.bufferSize)
}

func (p *SpeakerPlayer) Done() <-chan struct{} {
	return p.done
}

// countingStreamer streams a decoded buffer as stereo frames and publishes
// its read position through an atomic counter.
type countingStreamer struct {
	left, right []float64
	pos         int
	counter     *atomic.Int64
}

func newCountingStreamer(buf *decode.Buffer, counter *atomic.Int64) *countingStreamer {
	s := &countingStreamer{counter: counter}
	switch buf.NumChannels() {
	case 0:
	case 1:
		s.left, s.right = buf.Channels[0], buf.Channels[0]
	default:
		s.left, s.right = buf.Channels[0], buf.Channels[1]
	}
	return s
}

func (s *countingStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= len(s.left) {
		return 0, false
	}
	n := min(len(samples), len(s.left)-s.pos)
	for i := range n {
		samples[i][0] = s.left[s.pos+i]
		samples[i][1] = s.right[s.pos+i]
	}
	s.pos += n
	s.counter.Store(int64(s.pos))
	return n, true
}

func (s *countingStreamer) Err() error {
	return nil
}
