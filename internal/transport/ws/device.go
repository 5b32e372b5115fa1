package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cid-kageno-dev/Personal-AI/internal/audio"
	"github.com/cid-kageno-dev/Personal-AI/internal/live"
)

const (
	frameBuffer = 64
	endedBuffer = 64
)

var (
	errMicPending    = errors.New("microphone request already pending")
	errClientGone    = errors.New("client disconnected")
	errVoiceFinished = errors.New("voice already finished")
)

type micResult struct {
	rate int
	err  error
}

// device is the browser's microphone and speaker for one live session.
// Audio is relayed over the owning connection; play times are on the
// connection clock.
type device struct {
	hub  *Hub
	conn *Connection
	log  *logrus.Entry

	mu         sync.Mutex
	micWait    chan micResult
	capture    *captureStream
	voices     map[string]*remoteVoice
	closed     bool
	controller *live.Controller

	ended chan audio.Voice
}

func newDevice(h *Hub, conn *Connection) *device {
	return &device{
		hub:    h,
		conn:   conn,
		log:    logrus.WithField("conn_id", conn.ID),
		voices: make(map[string]*remoteVoice),
		ended:  make(chan audio.Voice, endedBuffer),
	}
}

// Open asks the client for microphone access and waits for its answer.
func (d *device) Open(ctx context.Context) (live.CaptureStream, error) {
	d.mu.Lock()
	if d.micWait != nil {
		d.mu.Unlock()
		return nil, errMicPending
	}
	wait := make(chan micResult, 1)
	d.micWait = wait
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.micWait = nil
		d.mu.Unlock()
	}()

	if err := d.hub.SendJSONToConnection(d.conn, BaseMessage{Type: TypeMicRequest, Ts: time.Now().UnixMilli()}); err != nil {
		return nil, fmt.Errorf("failed to request microphone: %w", err)
	}

	select {
	case r := <-wait:
		if r.err != nil {
			return nil, r.err
		}
		stream := &captureStream{frames: make(chan []float32, frameBuffer), rate: r.rate}
		d.mu.Lock()
		d.capture = stream
		d.mu.Unlock()
		return stream, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.conn.ctx.Done():
		return nil, errClientGone
	}
}

// resolveMic delivers the client's answer to a pending Open.
func (d *device) resolveMic(r micResult) {
	d.mu.Lock()
	wait := d.micWait
	d.mu.Unlock()
	if wait == nil {
		d.log.Debug("Ignoring microphone answer without a pending request")
		return
	}
	select {
	case wait <- r:
	default:
	}
}

// pushFrame forwards one captured frame. Frames are dropped while no
// capture is open or when the session falls behind.
func (d *device) pushFrame(samples []float32) {
	d.mu.Lock()
	stream := d.capture
	d.mu.Unlock()
	if stream == nil {
		return
	}
	if !stream.push(samples) {
		d.log.Debug("Dropping capture frame")
	}
}

// Schedule sends buf to the client for playback at the given clock time.
func (d *device) Schedule(buf *audio.Buffer, at float64) (audio.Voice, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, live.ErrSessionClosed
	}
	v := &remoteVoice{id: "voice_" + uuid.New().String()[:8], dev: d}
	d.voices[v.id] = v
	d.mu.Unlock()

	msg := PlayMessage{
		BaseMessage: BaseMessage{Type: TypePlay, Ts: time.Now().UnixMilli()},
		VoiceID:     v.id,
		StartAt:     at,
		SampleRate:  buf.SampleRate,
		Data:        audio.BytesToText(audio.PCM16ToBytes(buf.Interleaved())),
	}
	if err := d.hub.SendJSONToConnection(d.conn, msg); err != nil {
		d.forget(v.id)
		return nil, fmt.Errorf("failed to send audio: %w", err)
	}
	return v, nil
}

// Now returns the connection clock in seconds.
func (d *device) Now() float64 {
	return d.conn.clock()
}

// Ended yields voices the client reported as finished.
func (d *device) Ended() <-chan audio.Voice {
	return d.ended
}

// voiceEnded handles the client's report that a voice finished naturally.
func (d *device) voiceEnded(id string) {
	v := d.forget(id)
	if v == nil {
		return
	}
	select {
	case d.ended <- v:
	default:
		d.log.WithField("voice_id", id).Warn("Ended queue full, dropping playback completion")
	}
}

// Close stops every voice still playing and rejects further scheduling.
func (d *device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	ids := make([]string, 0, len(d.voices))
	for id := range d.voices {
		ids = append(ids, id)
	}
	d.voices = make(map[string]*remoteVoice)
	d.mu.Unlock()

	for _, id := range ids {
		d.sendStop(id)
	}
	return nil
}

func (d *device) forget(id string) *remoteVoice {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.voices[id]
	if !ok {
		return nil
	}
	delete(d.voices, id)
	return v
}

func (d *device) sendStop(id string) {
	msg := StopVoiceMessage{
		BaseMessage: BaseMessage{Type: TypeStopVoice, Ts: time.Now().UnixMilli()},
		VoiceID:     id,
	}
	if err := d.hub.SendJSONToConnection(d.conn, msg); err != nil {
		d.log.WithError(err).Warn("Failed to send stop_voice")
	}
}

func (d *device) setController(c *live.Controller) {
	d.mu.Lock()
	d.controller = c
	d.mu.Unlock()
}

func (d *device) liveController() *live.Controller {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.controller
}

// remoteVoice is a buffer scheduled on the client.
type remoteVoice struct {
	id  string
	dev *device
}

func (v *remoteVoice) Stop() error {
	if v.dev.forget(v.id) == nil {
		return errVoiceFinished
	}
	v.dev.sendStop(v.id)
	return nil
}

// captureStream is the client microphone as seen by the session.
type captureStream struct {
	mu     sync.Mutex
	frames chan []float32
	rate   int
	closed bool
}

func (s *captureStream) Frames() <-chan []float32 { return s.frames }
func (s *captureStream) SampleRate() int          { return s.rate }

func (s *captureStream) push(samples []float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.frames <- samples:
		return true
	default:
		return false
	}
}

func (s *captureStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	return nil
}

// micErrorFromClient maps a browser getUserMedia failure to a session error.
func micErrorFromClient(name, message string) error {
	switch name {
	case "NotAllowedError", "PermissionDeniedError", "SecurityError":
		return live.ErrMicPermissionDenied
	case "NotFoundError", "DevicesNotFoundError":
		return live.ErrMicNotFound
	case "NotSupportedError", "TypeError":
		return live.ErrMicUnsupported
	}
	if message == "" {
		message = name
	}
	return errors.New(message)
}
