package decode

import (
	"context"
	"path/filepath"

	"github.com/RyanBlaney/beatscope/pkg/audio/common"
	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/sonido-sonar/transcode"
)

// TranscodeDecoder decodes through sonido-sonar's ffmpeg decoder, which
// handles containers beep cannot open (aac, m4a, ...). Loudness
// normalization stays off so level features see the original dynamics.
type TranscodeDecoder struct {
	TargetRate int
	Mono       bool
	logger     logging.Logger
}

// NewTranscodeDecoder creates a fallback decoder
func NewTranscodeDecoder(targetRate int, mono bool) *TranscodeDecoder {
	return &TranscodeDecoder{
		TargetRate: targetRate,
		Mono:       mono,
		logger: logging.WithFields(logging.Fields{
			"component": "transcode_decoder",
		}),
	}
}

// decoderConfig asks ffmpeg for the target rate and channel layout directly
func (d *TranscodeDecoder) decoderConfig() *transcode.DecoderConfig {
	cfg := transcode.DefaultDecoderConfig()
	if d.TargetRate > 0 {
		cfg.TargetSampleRate = d.TargetRate
	}
	cfg.TargetChannels = 2
	if d.Mono {
		cfg.TargetChannels = 1
	}
	cfg.ResampleQuality = "high"
	cfg.EnableNormalization = false
	cfg.NormalizationMethod = ""
	return cfg
}

func (d *TranscodeDecoder) Decode(ctx context.Context, path string) (*Buffer, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "Decode",
		"path":     path,
	})
	ext := filepath.Ext(path)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := d.decoderConfig()
	audio, err := transcode.NewDecoder(cfg).DecodeFile(path)
	if err != nil {
		return nil, common.NewDecodeError(path, ext, common.ErrCodeDecodeFormat,
			"transcoder could not decode file", err)
	}
	if audio == nil || len(audio.PCM) == 0 || audio.SampleRate <= 0 {
		return nil, common.NewDecodeError(path, ext, common.ErrCodeDecodeEmpty,
			"file contains no audio samples", nil)
	}

	channels := audio.Channels
	if channels <= 0 {
		channels = cfg.TargetChannels
	}
	buf := &Buffer{
		Path:       path,
		Channels:   Deinterleave(audio.PCM, channels),
		SampleRate: audio.SampleRate,
	}
	if d.Mono && buf.NumChannels() > 1 {
		buf.Channels = [][]float64{buf.Mono()}
	}

	logger.Debug("Audio decoded via transcoder", logging.Fields{
		"sample_rate": buf.SampleRate,
		"channels":    buf.NumChannels(),
		"duration_s":  buf.Duration(),
	})

	return buf, nil
}
