package audio

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Voice is a buffer that has been handed to an output device.
type Voice interface {
	// Stop halts playback immediately. Stopping a voice that already
	// finished may return an error; callers treat that as harmless.
	Stop() error
}

// Sink is the output device the scheduler plays through.
type Sink interface {
	// Schedule starts buf at the given time on the device clock.
	Schedule(buf *Buffer, at float64) (Voice, error)
}

// Handle identifies one scheduled buffer.
type Handle struct {
	voice   Voice
	StartAt float64
	EndAt   float64
}

// Scheduler queues decoded buffers back to back against the device clock.
//
// A single cursor is enough: every buffer starts exactly when the previous one
// ends, or at the current device time when nothing is queued. Scheduler is not
// safe for concurrent use; the owning session serializes all calls.
type Scheduler struct {
	sink          Sink
	nextStartTime float64
	active        map[*Handle]struct{}
}

// NewScheduler creates a scheduler over the given sink.
func NewScheduler(sink Sink) *Scheduler {
	return &Scheduler{
		sink:   sink,
		active: make(map[*Handle]struct{}),
	}
}

// Enqueue schedules buf to start at max(cursor, now) and advances the cursor
// by the buffer's duration.
func (s *Scheduler) Enqueue(buf *Buffer, now float64) (*Handle, error) {
	if buf == nil {
		return nil, fmt.Errorf("nil audio buffer")
	}
	if now > s.nextStartTime {
		s.nextStartTime = now
	}

	voice, err := s.sink.Schedule(buf, s.nextStartTime)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule playback: %w", err)
	}

	h := &Handle{
		voice:   voice,
		StartAt: s.nextStartTime,
		EndAt:   s.nextStartTime + buf.Duration(),
	}
	s.nextStartTime = h.EndAt
	s.active[h] = struct{}{}
	return h, nil
}

// Ended records the natural completion of h. It reports true when the last
// active buffer finished, which is when the model stops speaking.
func (s *Scheduler) Ended(h *Handle) bool {
	if _, ok := s.active[h]; !ok {
		return false
	}
	delete(s.active, h)
	return len(s.active) == 0
}

// Find returns the active handle playing v, or nil.
func (s *Scheduler) Find(v Voice) *Handle {
	for h := range s.active {
		if h.voice == v {
			return h
		}
	}
	return nil
}

// Interrupt stops everything queued or playing and rewinds the cursor to zero.
func (s *Scheduler) Interrupt() {
	for h := range s.active {
		if err := h.voice.Stop(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Scheduler.Interrupt",
				"error":    err,
			}).Debug("Ignoring stop error on finished voice")
		}
	}
	clear(s.active)
	s.nextStartTime = 0
}

// Speaking reports whether any buffer is queued or playing.
func (s *Scheduler) Speaking() bool {
	return len(s.active) > 0
}

// Active returns the number of buffers queued or playing.
func (s *Scheduler) Active() int {
	return len(s.active)
}

// NextStartTime returns the playback cursor.
func (s *Scheduler) NextStartTime() float64 {
	return s.nextStartTime
}
