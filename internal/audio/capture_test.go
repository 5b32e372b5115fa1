package audio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineEncodesFrame(t *testing.T) {
	var sent []Blob
	p, err := NewPipeline(InputSampleRate, func(b Blob) error {
		sent = append(sent, b)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, p.Process([]float32{0, 0.5, -0.5}))
	require.Len(t, sent, 1)
	assert.Equal(t, "audio/pcm;rate=16000", sent[0].MIMEType)

	raw, err := TextToBytes(sent[0].Data)
	require.NoError(t, err)
	pcm, err := BytesToPCM16(raw)
	require.NoError(t, err)
	assert.Equal(t, []int16{0, 16384, -16384}, pcm)
	assert.Equal(t, 1, p.Frames())
}

func TestPipelineDownsamples(t *testing.T) {
	var total int
	p, err := NewPipeline(48000, func(b Blob) error {
		raw, err := TextToBytes(b.Data)
		require.NoError(t, err)
		total += len(raw) / 2
		return nil
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Process(make([]float32, FrameSize)))
	}
	assert.InDelta(t, 3*FrameSize/3, total, 2)
}

func TestPipelinePropagatesSendError(t *testing.T) {
	p, err := NewPipeline(InputSampleRate, func(Blob) error { return errors.New("closed") })
	require.NoError(t, err)
	assert.Error(t, p.Process([]float32{0.1}))

	_, err = NewPipeline(InputSampleRate, nil)
	assert.Error(t, err)
}

func TestResamplerLinear(t *testing.T) {
	r, err := NewResampler(2, 4)
	require.NoError(t, err)
	out := r.Process([]float32{0, 1})
	// Upsampling by two interpolates midpoints.
	assert.Equal(t, []float32{0, 0, 0, 0.5}, out)

	_, err = NewResampler(0, 16000)
	assert.Error(t, err)
}

func TestResamplerSameRateCopies(t *testing.T) {
	r, err := NewResampler(16000, 16000)
	require.NoError(t, err)
	in := []float32{0.1, 0.2}
	out := r.Process(in)
	assert.Equal(t, in, out)
	out[0] = 9
	assert.Equal(t, float32(0.1), in[0])
}
