package live

import (
	"context"
	"sync"

	"github.com/cid-kageno-dev/Personal-AI/internal/audio"
	"github.com/cid-kageno-dev/Personal-AI/internal/domain"
)

type fakeTransport struct {
	mu     sync.Mutex
	events chan Event
	sent   []audio.Blob
	closed bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan Event, 32)}
}

func (t *fakeTransport) Send(_ context.Context, blob audio.Blob) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrSessionClosed
	}
	t.sent = append(t.sent, blob)
	return nil
}

func (t *fakeTransport) Events() <-chan Event { return t.events }

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) Sent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func (t *fakeTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

type fakeDialer struct {
	transport *fakeTransport
	err       error
	cfg       SessionConfig
}

func (d *fakeDialer) Dial(_ context.Context, cfg SessionConfig) (Transport, error) {
	d.cfg = cfg
	if d.err != nil {
		return nil, d.err
	}
	return d.transport, nil
}

type fakeStream struct {
	mu     sync.Mutex
	frames chan []float32
	rate   int
	closed bool
}

func (s *fakeStream) Frames() <-chan []float32 { return s.frames }
func (s *fakeStream) SampleRate() int          { return s.rate }

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeMic struct {
	stream *fakeStream
	err    error
}

func (m *fakeMic) Open(context.Context) (CaptureStream, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.stream, nil
}

type fakeVoice struct {
	mu      sync.Mutex
	stopped bool
}

func (v *fakeVoice) Stop() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopped = true
	return nil
}

func (v *fakeVoice) Stopped() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stopped
}

type fakeSpeaker struct {
	mu     sync.Mutex
	voices []*fakeVoice
	starts []float64
	ended  chan audio.Voice
	closed bool
}

func newFakeSpeaker() *fakeSpeaker {
	return &fakeSpeaker{ended: make(chan audio.Voice, 8)}
}

func (s *fakeSpeaker) Schedule(_ *audio.Buffer, at float64) (audio.Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := &fakeVoice{}
	s.voices = append(s.voices, v)
	s.starts = append(s.starts, at)
	return v, nil
}

func (s *fakeSpeaker) Now() float64              { return 0 }
func (s *fakeSpeaker) Ended() <-chan audio.Voice { return s.ended }

func (s *fakeSpeaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSpeaker) Voices() []*fakeVoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeVoice(nil), s.voices...)
}

func (s *fakeSpeaker) Starts() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.starts...)
}

type fakeTurns struct {
	mu    sync.Mutex
	calls map[string][][]domain.ChatMessage
}

func (f *fakeTurns) AppendMessages(_ context.Context, personalityID string, msgs ...domain.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string][][]domain.ChatMessage)
	}
	f.calls[personalityID] = append(f.calls[personalityID], msgs)
	return nil
}

func (f *fakeTurns) Calls(personalityID string) [][]domain.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]domain.ChatMessage(nil), f.calls[personalityID]...)
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []domain.LiveStatus
}

func (r *statusRecorder) Record(s domain.LiveStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *statusRecorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.statuses {
		if s.Message != "" {
			out = append(out, s.Message)
		}
	}
	return out
}
