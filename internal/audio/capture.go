package audio

import "fmt"

// FrameSize is the number of samples per captured frame at the device rate.
const FrameSize = 4096

// SendFunc hands an encoded frame to the session's outbound channel.
type SendFunc func(Blob) error

// Pipeline turns raw microphone frames into upstream payloads:
// resample to 16 kHz, convert to PCM16, base64 encode and tag with
// the PCM descriptor. It holds at most one frame in flight.
type Pipeline struct {
	resampler *Resampler
	mimeType  string
	send      SendFunc
	frames    int
}

// NewPipeline creates a capture pipeline for a device running at deviceRate.
func NewPipeline(deviceRate int, send SendFunc) (*Pipeline, error) {
	if send == nil {
		return nil, fmt.Errorf("capture pipeline requires a send function")
	}
	r, err := NewResampler(deviceRate, InputSampleRate)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		resampler: r,
		mimeType:  MIMEType(InputSampleRate),
		send:      send,
	}, nil
}

// Process encodes one single-channel frame and sends it.
func (p *Pipeline) Process(frame []float32) error {
	samples := p.resampler.Process(frame)
	if len(samples) == 0 {
		return nil
	}
	blob := Blob{
		MIMEType: p.mimeType,
		Data:     BytesToText(PCM16ToBytes(FloatFrameToPCM16(samples))),
	}
	p.frames++
	return p.send(blob)
}

// Frames returns the number of frames sent so far.
func (p *Pipeline) Frames() int {
	return p.frames
}
