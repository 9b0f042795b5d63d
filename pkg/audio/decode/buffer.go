package decode

import (
	"time"
)

// TrackInfo is best-effort tag metadata for a decoded file
type TrackInfo struct {
	Title  string `json:"title,omitempty" yaml:"title,omitempty"`
	Artist string `json:"artist,omitempty" yaml:"artist,omitempty"`
	Album  string `json:"album,omitempty" yaml:"album,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Buffer holds decoded, de-interleaved samples in [-1, 1].
// It only lives for the duration of feature extraction and playback setup.
type Buffer struct {
	Path       string      `json:"path"`
	Channels   [][]float64 `json:"-"`
	SampleRate int         `json:"sample_rate"`
	Metadata   *TrackInfo  `json:"metadata,omitempty"`
}

// NumChannels returns the number of decoded channels
func (b *Buffer) NumChannels() int {
	return len(b.Channels)
}

// Len returns the number of samples per channel
func (b *Buffer) Len() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the track length in seconds
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Len()) / float64(b.SampleRate)
}

// TimeDuration returns the track length as a time.Duration
func (b *Buffer) TimeDuration() time.Duration {
	return time.Duration(b.Duration() * float64(time.Second))
}

// Mono averages all channels into a single signal. A mono buffer returns its
// only channel without copying.
func (b *Buffer) Mono() []float64 {
	switch len(b.Channels) {
	case 0:
		return nil
	case 1:
		return b.Channels[0]
	}

	n := b.Len()
	mono := make([]float64, n)
	scale := 1.0 / float64(len(b.Channels))
	for _, ch := range b.Channels {
		for i := 0; i < n && i < len(ch); i++ {
			mono[i] += ch[i]
		}
	}
	for i := range mono {
		mono[i] *= scale
	}
	return mono
}

// Deinterleave splits interleaved PCM into per-channel slices
func Deinterleave(pcm []float64, channels int) [][]float64 {
	if channels <= 1 {
		out := make([]float64, len(pcm))
		copy(out, pcm)
		return [][]float64{out}
	}

	frames := len(pcm) / channels
	out := make([][]float64, channels)
	for c := range out {
		out[c] = make([]float64, frames)
	}
	for i := range frames {
		for c := range channels {
			out[c][i] = pcm[i*channels+c]
		}
	}
	return out
}
