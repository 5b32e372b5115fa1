package audio

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Resampler converts mono float audio between sample rates using linear
// interpolation. It keeps the last input sample and the fractional read
// position so consecutive frames join without clicks.
type Resampler struct {
	inputRate  int
	outputRate int
	last       float32
	primed     bool
	position   float64
}

// NewResampler creates a resampler from inputRate to outputRate.
func NewResampler(inputRate, outputRate int) (*Resampler, error) {
	if inputRate <= 0 || outputRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: input=%d, output=%d", inputRate, outputRate)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewResampler",
		"input_rate":  inputRate,
		"output_rate": outputRate,
	}).Debug("Creating audio resampler")

	return &Resampler{inputRate: inputRate, outputRate: outputRate}, nil
}

// Process resamples one frame.
func (r *Resampler) Process(in []float32) []float32 {
	if r.inputRate == r.outputRate {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}
	if len(in) == 0 {
		return nil
	}

	// Prepend the previous frame's last sample so interpolation can reach back
	// across the frame boundary. Index 0 of src is that carried sample.
	src := make([]float32, 0, len(in)+1)
	if r.primed {
		src = append(src, r.last)
	} else {
		src = append(src, in[0])
	}
	src = append(src, in...)

	step := float64(r.inputRate) / float64(r.outputRate)
	out := make([]float32, 0, int(float64(len(in))/step)+1)

	pos := r.position
	for pos+1 < float64(len(src)) {
		i := int(pos)
		frac := float32(pos - float64(i))
		out = append(out, src[i]+(src[i+1]-src[i])*frac)
		pos += step
	}

	r.position = pos - float64(len(src)-1)
	r.last = in[len(in)-1]
	r.primed = true
	return out
}

// Reset drops interpolation history.
func (r *Resampler) Reset() {
	r.last = 0
	r.primed = false
	r.position = 0
}
