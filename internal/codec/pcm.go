package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"visionary/internal/domain"
)

// AudioBuffer holds decoded PCM samples split per channel.
type AudioBuffer struct {
	SampleRate int
	// Channels holds one slice of samples in [-1, 1] per channel.
	Channels [][]float32
}

// Frames returns the number of samples per channel.
func (b *AudioBuffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length in seconds.
func (b *AudioBuffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// PCM16 re-interleaves the buffer as little-endian 16-bit PCM.
func (b *AudioBuffer) PCM16() []byte {
	frames := b.Frames()
	channels := len(b.Channels)
	out := make([]byte, frames*channels*2)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			offset := (i*channels + ch) * 2
			binary.LittleEndian.PutUint16(out[offset:], uint16(toInt16(b.Channels[ch][i])))
		}
	}
	return out
}

// DecodeAudioData decodes interleaved little-endian PCM16 into an AudioBuffer.
func DecodeAudioData(data []byte, sampleRate int, channels int) (*AudioBuffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	if len(data)%2 != 0 {
		return nil, errors.New("pcm16 payload has an odd byte count")
	}

	samples := len(data) / 2
	frames := samples / channels
	buf := &AudioBuffer{SampleRate: sampleRate, Channels: make([][]float32, channels)}
	for ch := range buf.Channels {
		buf.Channels[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			s := int16(binary.LittleEndian.Uint16(data[(i*channels+ch)*2:]))
			buf.Channels[ch][i] = float32(s) / 32768.0
		}
	}
	return buf, nil
}

// Float32FromLE parses little-endian float32 samples. Trailing partial
// samples are dropped.
func Float32FromLE(data []byte) []float32 {
	n := len(data) / 4
	samples := make([]float32, n)
	for i := range n {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}

// CreateAudioBlob converts captured samples into a PCM16 media chunk.
func CreateAudioBlob(samples []float32, sampleRate int) domain.MediaChunk {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(toInt16(s)))
	}
	return domain.MediaChunk{
		MimeType: fmt.Sprintf("audio/pcm;rate=%d", sampleRate),
		Data:     Encode(out),
	}
}

func toInt16(s float32) int16 {
	scaled := max(-1.0, min(1.0, s)) * 32768
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	}
	return int16(scaled)
}
