package decode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/beatscope/pkg/audio/common"
	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// Decoder turns an audio file into a Buffer
type Decoder interface {
	Decode(ctx context.Context, path string) (*Buffer, error)
}

const streamChunk = 4096

// resampleQuality is the beep resampler quality (1 to 64)
const resampleQuality = 4

// BeepDecoder decodes mp3, wav, flac and ogg/vorbis files with beep.
type BeepDecoder struct {
	// TargetRate resamples to a fixed rate when > 0
	TargetRate int
	// Mono keeps only one averaged channel
	Mono   bool
	logger logging.Logger
}

// NewBeepDecoder creates a decoder for the formats beep understands
func NewBeepDecoder(targetRate int, mono bool) *BeepDecoder {
	return &BeepDecoder{
		TargetRate: targetRate,
		Mono:       mono,
		logger: logging.WithFields(logging.Fields{
			"component": "beep_decoder",
		}),
	}
}

// Supports reports whether the file extension has a beep decoder
func (d *BeepDecoder) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".wav", ".wave", ".flac", ".ogg", ".oga":
		return true
	}
	return false
}

func (d *BeepDecoder) Decode(ctx context.Context, path string) (*Buffer, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "Decode",
		"path":     path,
	})

	ext := strings.ToLower(filepath.Ext(path))
	if !d.Supports(path) {
		return nil, common.NewDecodeError(path, ext, common.ErrCodeDecodeFormat,
			"unsupported file extension", nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, common.NewDecodeError(path, ext, common.ErrCodeDecodeOpen,
			"cannot open file", err)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch ext {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".wav", ".wave":
		streamer, format, err = wav.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	case ".ogg", ".oga":
		streamer, format, err = vorbis.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, common.NewDecodeError(path, ext, common.ErrCodeDecodeFormat,
			"cannot decode audio stream", err)
	}
	defer streamer.Close()

	logger.Debug("Decoding audio", logging.Fields{
		"sample_rate": int(format.SampleRate),
		"channels":    format.NumChannels,
		"samples":     streamer.Len(),
	})

	var source beep.Streamer = streamer
	rate := int(format.SampleRate)
	if d.TargetRate > 0 && d.TargetRate != rate {
		source = beep.Resample(resampleQuality, format.SampleRate, beep.SampleRate(d.TargetRate), streamer)
		rate = d.TargetRate
	}

	channels, err := drain(ctx, source, format.NumChannels, streamer.Len())
	if err != nil {
		return nil, common.NewDecodeError(path, ext, common.ErrCodeDecodeFormat,
			"error while reading samples", err)
	}
	if len(channels) == 0 || len(channels[0]) == 0 {
		return nil, common.NewDecodeError(path, ext, common.ErrCodeDecodeEmpty,
			"file contains no audio samples", nil)
	}

	buf := &Buffer{
		Path:       path,
		Channels:   channels,
		SampleRate: rate,
	}
	if d.Mono && len(buf.Channels) > 1 {
		buf.Channels = [][]float64{buf.Mono()}
	}

	logger.Debug("Audio decoded", logging.Fields{
		"duration_s": buf.Duration(),
		"channels":   buf.NumChannels(),
	})

	return buf, nil
}

// drain reads a streamer to exhaustion. beep always yields stereo frames, so
// mono sources only keep the left channel.
func drain(ctx context.Context, s beep.Streamer, numChannels, sizeHint int) ([][]float64, error) {
	if numChannels < 1 {
		numChannels = 1
	}
	if numChannels > 2 {
		numChannels = 2
	}
	if sizeHint < 0 {
		sizeHint = 0
	}

	out := make([][]float64, numChannels)
	for c := range out {
		out[c] = make([]float64, 0, sizeHint)
	}

	chunk := make([][2]float64, streamChunk)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, ok := s.Stream(chunk)
		for _, frame := range chunk[:n] {
			for c := range numChannels {
				out[c] = append(out[c], frame[c])
			}
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return out, nil
}

// ChainDecoder tries each decoder in order and returns the first success.
type ChainDecoder struct {
	decoders []Decoder
}

// NewChainDecoder creates a decoder that falls through the given decoders
func NewChainDecoder(decoders ...Decoder) *ChainDecoder {
	return &ChainDecoder{decoders: decoders}
}

func (c *ChainDecoder) Decode(ctx context.Context, path string) (*Buffer, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, common.NewDecodeError(path, filepath.Ext(path), common.ErrCodeDecodeOpen,
			"cannot open file", err)
	}

	var lastErr error
	for _, d := range c.decoders {
		if s, ok := d.(interface{ Supports(string) bool }); ok && !s.Supports(path) {
			continue
		}
		buf, err := d.Decode(ctx, path)
		if err == nil {
			return buf, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}

	if lastErr == nil {
		return nil, common.NewDecodeError(path, filepath.Ext(path), common.ErrCodeDecodeFormat,
			"no decoder accepts this file", nil)
	}
	var decodeErr *common.DecodeError
	if errors.As(lastErr, &decodeErr) {
		return nil, lastErr
	}
	return nil, common.NewDecodeError(path, filepath.Ext(path), common.ErrCodeDecodeFormat,
		fmt.Sprintf("all %d decoders failed", len(c.decoders)), lastErr)
}

// NewDefaultDecoder returns beep first, falling back to the transcoder, and
// attaches tag metadata to whatever decodes.
func NewDefaultDecoder(targetRate int, mono bool) Decoder {
	return &taggingDecoder{
		next: NewChainDecoder(
			NewBeepDecoder(targetRate, mono),
			NewTranscodeDecoder(targetRate, mono),
		),
	}
}

type taggingDecoder struct {
	next Decoder
}

func (t *taggingDecoder) Decode(ctx context.Context, path string) (*Buffer, error) {
	buf, err := t.next.Decode(ctx, path)
	if err != nil {
		return nil, err
	}
	if buf.Metadata == nil {
		if info, err := ReadTrackInfo(path); err == nil {
			buf.Metadata = info
		}
	}
	return buf, nil
}
