// Package audio provides the PCM codec, playback scheduling and microphone
// capture used by live voice sessions.
//
// Audio crosses the wire as base64 text wrapping little-endian 16-bit PCM.
// Inside the process it is held as float32 samples in [-1, 1], one slice per
// channel.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// InputSampleRate is the rate of captured microphone audio sent upstream.
	InputSampleRate = 16000
	// OutputSampleRate is the rate of model audio received from upstream.
	OutputSampleRate = 24000

	pcmScale = 32768.0
)

// BytesToText encodes raw bytes as base64 text.
func BytesToText(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// TextToBytes decodes base64 text produced by BytesToText.
func TextToBytes(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio payload: %w", err)
	}
	if b == nil {
		b = []byte{}
	}
	return b, nil
}

// FloatFrameToPCM16 converts float samples to 16-bit PCM.
// Each sample maps to round(s*32768), saturated at the int16 bounds.
func FloatFrameToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * pcmScale)
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out
}

// PCM16ToFloatFrame converts 16-bit PCM to float samples (v / 32768).
func PCM16ToFloatFrame(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, v := range samples {
		out[i] = float32(float64(v) / pcmScale)
	}
	return out
}

// PCM16ToBytes serializes samples as little-endian 16-bit PCM.
func PCM16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// BytesToPCM16 parses little-endian 16-bit PCM.
func BytesToPCM16(b []byte) ([]int16, error) {
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("audio data length must be even (got %d bytes)", len(b))
	}
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out, nil
}

// Deinterleave splits interleaved samples into one float slice per channel.
// Sample i of channel c lives at flat index i*numChannels+c; a trailing
// partial frame is dropped.
func Deinterleave(samples []int16, numChannels int) ([][]float32, error) {
	if numChannels < 1 {
		return nil, fmt.Errorf("invalid channel count: %d", numChannels)
	}
	frames := len(samples) / numChannels
	channels := make([][]float32, numChannels)
	for c := 0; c < numChannels; c++ {
		data := make([]float32, frames)
		for i := 0; i < frames; i++ {
			data[i] = float32(float64(samples[i*numChannels+c]) / pcmScale)
		}
		channels[c] = data
	}
	return channels, nil
}

// Buffer is a decoded block of audio ready for playback.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// Frames returns the number of sample frames in the buffer.
func (b *Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Interleaved returns the buffer as interleaved 16-bit PCM.
func (b *Buffer) Interleaved() []int16 {
	n := len(b.Channels)
	frames := b.Frames()
	flat := make([]float32, frames*n)
	for c, data := range b.Channels {
		for i := 0; i < frames; i++ {
			flat[i*n+c] = data[i]
		}
	}
	return FloatFrameToPCM16(flat)
}

// DecodeBuffer turns raw little-endian PCM bytes into a playable Buffer.
func DecodeBuffer(data []byte, sampleRate, numChannels int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	pcm, err := BytesToPCM16(data)
	if err != nil {
		return nil, err
	}
	channels, err := Deinterleave(pcm, numChannels)
	if err != nil {
		return nil, err
	}
	return &Buffer{SampleRate: sampleRate, Channels: channels}, nil
}

// Blob is an encoded audio payload tagged with its MIME-style descriptor.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// MIMEType returns the descriptor for 16-bit PCM at the given rate.
func MIMEType(rate int) string {
	return "audio/pcm;rate=" + strconv.Itoa(rate)
}

// ParseRate extracts the sample rate from a PCM descriptor, falling back
// to OutputSampleRate when absent or malformed.
func ParseRate(mime string) int {
	for _, part := range strings.Split(mime, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || strings.TrimSpace(k) != "rate" {
			continue
		}
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			return rate
		}
	}
	return OutputSampleRate
}
