package decode

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/RyanBlaney/beatscope/pkg/audio/common"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestWAV encodes a stereo 16-bit WAV with a left sine and a silent right
func writeTestWAV(t *testing.T, dir string, sampleRate, numSamples int) string {
	t.Helper()

	path := filepath.Join(dir, "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	pos := 0
	streamer := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= numSamples {
			return 0, false
		}
		n := 0
		for i := range samples {
			if pos >= numSamples {
				break
			}
			samples[i][0] = 0.5 * math.Sin(2*math.Pi*440*float64(pos)/float64(sampleRate))
			samples[i][1] = 0
			pos++
			n++
		}
		return n, true
	})

	format := beep.Format{SampleRate: beep.SampleRate(sampleRate), NumChannels: 2, Precision: 2}
	require.NoError(t, wav.Encode(f, streamer, format))
	return path
}

func TestBeepDecoderWAV(t *testing.T) {
	dir := t.TempDir()
	path := writeTestWAV(t, dir, 22050, 22050)

	buf, err := NewBeepDecoder(0, false).Decode(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 22050, buf.SampleRate)
	assert.Equal(t, 2, buf.NumChannels())
	assert.Equal(t, 22050, buf.Len())
	assert.InDelta(t, 1.0, buf.Duration(), 1e-9)

	peak := 0.0
	for _, v := range buf.Channels[0] {
		peak = math.Max(peak, math.Abs(v))
	}
	assert.InDelta(t, 0.5, peak, 0.01)
	for _, v := range buf.Channels[1] {
		assert.InDelta(t, 0.0, v, 1e-4)
	}
}

func TestBeepDecoderMonoAndResample(t *testing.T) {
	dir := t.TempDir()
	path := writeTestWAV(t, dir, 22050, 22050)

	buf, err := NewBeepDecoder(11025, true).Decode(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 1, buf.NumChannels())
	assert.Equal(t, 11025, buf.SampleRate)
	assert.InDelta(t, 1.0, buf.Duration(), 0.01)
}

func TestDecodeErrors(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not audio"), 0644))

	type test struct {
		name string
		path string
		code string
	}

	tests := []test{
		{name: "missing file", path: filepath.Join(dir, "missing.mp3"), code: common.ErrCodeDecodeOpen},
		{name: "corrupt wav", path: garbage, code: common.ErrCodeDecodeFormat},
	}

	decoder := NewChainDecoder(NewBeepDecoder(0, true))
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decoder.Decode(context.Background(), tc.path)
			require.Error(t, err)

			var decodeErr *common.DecodeError
			require.True(t, errors.As(err, &decodeErr))
			assert.Equal(t, tc.code, decodeErr.Code)
			assert.Equal(t, tc.path, decodeErr.Path)
			assert.Contains(t, err.Error(), tc.path)
			assert.Equal(t, "decode", common.Stage(err))
		})
	}
}

func TestBufferMono(t *testing.T) {
	buf := &Buffer{
		Channels:   [][]float64{{1, 0, -1}, {0, 0, 1}},
		SampleRate: 3,
	}
	assert.Equal(t, []float64{0.5, 0, 0}, buf.Mono())
	assert.InDelta(t, 1.0, buf.Duration(), 1e-12)
}

func TestDeinterleave(t *testing.T) {
	out := Deinterleave([]float64{1, 2, 3, 4, 5, 6}, 2)
	assert.Equal(t, [][]float64{{1, 3, 5}, {2, 4, 6}}, out)

	mono := Deinterleave([]float64{1, 2}, 1)
	assert.Equal(t, [][]float64{{1, 2}}, mono)
}

func TestTranscodeDecoderConfig(t *testing.T) {
	type test struct {
		name         string
		rate         int
		mono         bool
		wantRate     int
		wantChannels int
	}
	tests := []test{
		{"mono at target rate", 22050, true, 22050, 1},
		{"stereo keeps both channels", 48000, false, 48000, 2},
		{"zero rate uses decoder default", 0, true, 44100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTranscodeDecoder(tt.rate, tt.mono).decoderConfig()
			assert.Equal(t, tt.wantRate, cfg.TargetSampleRate)
			assert.Equal(t, tt.wantChannels, cfg.TargetChannels)
			assert.False(t, cfg.EnableNormalization, "loudness normalization flattens level features")
			assert.Equal(t, "high", cfg.ResampleQuality)
		})
	}
}

func TestTranscodeDecoderHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTranscodeDecoder(22050, true).Decode(ctx, "missing.m4a")
	assert.ErrorIs(t, err, context.Canceled)
}
