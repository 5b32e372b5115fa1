package live

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cid-kageno-dev/Personal-AI/internal/audio"
	"github.com/cid-kageno-dev/Personal-AI/internal/domain"
	"github.com/cid-kageno-dev/Personal-AI/internal/metrics"
)

const (
	// DefaultModel is the realtime model used for voice sessions.
	DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"
	// DefaultVoice is the prebuilt voice the model speaks with.
	DefaultVoice = "Zephyr"
)

// StatusFunc observes session status changes. It runs on the session's own
// goroutine and must not call back into Stop.
type StatusFunc func(domain.LiveStatus)

// Config assembles the collaborators of one live session.
type Config struct {
	Personality domain.Personality
	Model       string
	Voice       string

	Dialer     Dialer
	Microphone Microphone
	Speaker    Speaker
	Turns      TurnSink
	OnStatus   StatusFunc
	Metrics    *metrics.Metrics

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// Controller owns the lifecycle IDLE → OPENING → OPEN → CLOSED of one live
// voice session. CLOSED is terminal; going live again needs a new Controller.
//
// After Start, every inbound transport event, capture frame and playback
// completion is handled on a single goroutine, so the scheduler and the
// transcript accumulators need no locking.
type Controller struct {
	id  string
	cfg Config
	log *logrus.Entry

	mu        sync.Mutex
	state     domain.LiveState
	speaking  bool
	running   bool
	capture   CaptureStream
	transport Transport

	scheduler  *audio.Scheduler
	inputText  strings.Builder
	outputText strings.Builder

	ctx    context.Context
	cancel context.CancelFunc

	stopCh       chan struct{}
	done         chan struct{}
	stopOnce     sync.Once
	teardownOnce sync.Once
}

// NewController creates an idle session.
func NewController(cfg Config) *Controller {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return "msg_" + uuid.New().String() }
	}

	id := "live_" + uuid.New().String()[:8]
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		id:  id,
		cfg: cfg,
		log: logrus.WithFields(logrus.Fields{
			"session_id":     id,
			"personality_id": cfg.Personality.ID,
		}),
		state:     domain.LiveStateIdle,
		scheduler: audio.NewScheduler(cfg.Speaker),
		ctx:       ctx,
		cancel:    cancel,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// ID returns the session identifier.
func (c *Controller) ID() string {
	return c.id
}

// PersonalityID returns the personality whose conversation receives turns.
func (c *Controller) PersonalityID() string {
	return c.cfg.Personality.ID
}

// State returns the current lifecycle state.
func (c *Controller) State() domain.LiveState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Speaking reports whether model audio is queued or playing.
func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// Done is closed once the session has fully torn down after Start succeeded.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Start acquires the microphone and opens the upstream session.
//
// A microphone failure returns the session to IDLE and yields a *MicError
// carrying the message for the user. Any later failure tears the session
// down. Capture is attached only once the transport reports open.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != domain.LiveStateIdle {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state = domain.LiveStateOpening
	c.mu.Unlock()
	c.notify("")

	// Stop while opening aborts the microphone prompt and the dial.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(c.ctx, cancel)()

	stream, err := c.cfg.Microphone.Open(ctx)
	if err != nil && c.State() == domain.LiveStateClosed {
		return ErrSessionClosed
	}
	if err != nil {
		micErr := ClassifyMicError(err)
		c.log.WithFields(logrus.Fields{
			"kind":  micErr.Kind,
			"error": err,
		}).Warn("Microphone acquisition failed")
		c.cfg.Metrics.RecordMicFailure(string(micErr.Kind))

		c.mu.Lock()
		if c.state == domain.LiveStateOpening {
			c.state = domain.LiveStateIdle
		}
		c.mu.Unlock()
		c.notify(micErr.Message)
		return micErr
	}

	c.mu.Lock()
	if c.state == domain.LiveStateClosed {
		c.mu.Unlock()
		stream.Close()
		return ErrSessionClosed
	}
	c.capture = stream
	c.mu.Unlock()

	transport, err := c.cfg.Dialer.Dial(ctx, SessionConfig{
		Model:             c.cfg.Model,
		SystemInstruction: c.cfg.Personality.Instruction(),
		Voice:             c.cfg.Voice,
	})
	if err != nil {
		c.log.WithError(err).Error("Failed to start live session")
		c.teardown()
		return fmt.Errorf("failed to connect live session: %w", err)
	}

	c.mu.Lock()
	if c.state == domain.LiveStateClosed {
		c.mu.Unlock()
		transport.Close()
		return ErrSessionClosed
	}
	c.transport = transport
	c.running = true
	c.mu.Unlock()

	go c.run(stream, transport)
	return nil
}

// Stop tears the session down synchronously. It is safe to call repeatedly
// and from any goroutine other than a StatusFunc.
func (c *Controller) Stop() {
	c.mu.Lock()
	running := c.running
	if !running && c.state != domain.LiveStateClosed {
		c.state = domain.LiveStateClosed
	}
	c.mu.Unlock()

	if running {
		c.stopOnce.Do(func() { close(c.stopCh) })
		<-c.done
		return
	}
	c.teardown()
}

func (c *Controller) run(stream CaptureStream, transport Transport) {
	defer close(c.done)
	defer c.teardown()

	var pipeline *audio.Pipeline
	var frames <-chan []float32
	events := transport.Events()
	ended := c.cfg.Speaker.Ended()

	for {
		select {
		case <-c.stopCh:
			c.log.Info("Live session stopped by user")
			return

		case ev, ok := <-events:
			if !ok {
				c.log.Info("Live transport closed")
				return
			}
			if ev.Type == EventOpen && frames == nil {
				p, err := audio.NewPipeline(stream.SampleRate(), func(b audio.Blob) error {
					return transport.Send(c.ctx, b)
				})
				if err != nil {
					c.log.WithError(err).Error("Failed to attach capture pipeline")
					return
				}
				pipeline = p
				frames = stream.Frames()
				if n := discardPending(frames); n > 0 {
					c.log.WithField("frames", n).Debug("Dropped audio captured before open")
				}
			}
			if closed := c.handleEvent(ev); closed {
				return
			}

		case frame, ok := <-frames:
			if !ok {
				c.log.Warn("Capture stream ended")
				frames = nil
				continue
			}
			if err := pipeline.Process(frame); err != nil {
				c.log.WithError(err).Warn("Failed to send capture frame")
				continue
			}
			c.cfg.Metrics.RecordFrameSent()

		case v := <-ended:
			if h := c.scheduler.Find(v); h != nil && c.scheduler.Ended(h) {
				c.setSpeaking(false)
			}
		}
	}
}

// handleEvent applies one inbound event. It reports true when the
// session must close.
// discardPending empties frames of everything already buffered.
func discardPending(frames <-chan []float32) int {
	n := 0
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

func (c *Controller) handleEvent(ev Event) bool {
	switch ev.Type {
	case EventOpen:
		c.mu.Lock()
		c.state = domain.LiveStateOpen
		c.mu.Unlock()
		c.cfg.Metrics.LiveOpened()
		c.log.Info("Live session open")
		c.notify("")

	case EventAudio:
		c.setSpeaking(true)
		if err := c.playFragment(ev.Audio); err != nil {
			c.log.WithError(err).Warn("Dropping undecodable audio fragment")
			if !c.scheduler.Speaking() {
				c.setSpeaking(false)
			}
		}

	case EventInterrupted:
		c.scheduler.Interrupt()
		c.cfg.Metrics.RecordInterruption()
		c.setSpeaking(false)

	case EventInputTranscript:
		c.inputText.WriteString(ev.Text)

	case EventOutputTranscript:
		c.outputText.WriteString(ev.Text)

	case EventTurnComplete:
		c.flushTurn()

	case EventError:
		c.log.WithError(ev.Err).Error("Live session error")
		return true

	case EventClose:
		c.log.Info("Live session closed by remote")
		return true
	}
	return false
}

func (c *Controller) playFragment(blob audio.Blob) error {
	raw, err := audio.TextToBytes(blob.Data)
	if err != nil {
		return err
	}
	buf, err := audio.DecodeBuffer(raw, audio.ParseRate(blob.MIMEType), 1)
	if err != nil {
		return err
	}
	if _, err := c.scheduler.Enqueue(buf, c.cfg.Speaker.Now()); err != nil {
		return err
	}
	c.cfg.Metrics.RecordBufferQueued()
	return nil
}

// flushTurn appends the accumulated transcripts as one USER and one MODEL
// message, then clears both accumulators.
func (c *Controller) flushTurn() {
	userText := c.inputText.String()
	modelText := c.outputText.String()
	c.inputText.Reset()
	c.outputText.Reset()

	if userText == "" && modelText == "" {
		return
	}

	now := c.cfg.Now()
	msgs := []domain.ChatMessage{
		{ID: c.cfg.NewID(), Role: domain.RoleUser, Text: orPlaceholder(userText), Timestamp: now},
		{ID: c.cfg.NewID(), Role: domain.RoleModel, Text: orPlaceholder(modelText), Timestamp: now},
	}
	if err := c.cfg.Turns.AppendMessages(c.ctx, c.cfg.Personality.ID, msgs...); err != nil {
		c.log.WithError(err).Error("Failed to append voice turn")
		return
	}
	c.cfg.Metrics.RecordTurn()
}

func orPlaceholder(s string) string {
	if s == "" {
		return domain.Placeholder
	}
	return s
}

func (c *Controller) setSpeaking(speaking bool) {
	c.mu.Lock()
	changed := c.speaking != speaking
	c.speaking = speaking
	c.mu.Unlock()
	if changed {
		c.notify("")
	}
}

// teardown releases the microphone, closes the transport and the output
// device, flushes playback and clears all live state.
func (c *Controller) teardown() {
	c.teardownOnce.Do(func() {
		c.mu.Lock()
		wasOpen := c.state == domain.LiveStateOpen
		c.state = domain.LiveStateClosed
		c.speaking = false
		capture := c.capture
		transport := c.transport
		c.capture = nil
		c.transport = nil
		c.mu.Unlock()

		c.cancel()
		if capture != nil {
			if err := capture.Close(); err != nil {
				c.log.WithError(err).Debug("Ignoring capture close error")
			}
		}
		if transport != nil {
			if err := transport.Close(); err != nil {
				c.log.WithError(err).Debug("Ignoring transport close error")
			}
		}
		c.scheduler.Interrupt()
		if c.cfg.Speaker != nil {
			if err := c.cfg.Speaker.Close(); err != nil {
				c.log.WithError(err).Debug("Ignoring speaker close error")
			}
		}
		c.inputText.Reset()
		c.outputText.Reset()

		if wasOpen {
			c.cfg.Metrics.LiveClosed()
		}
		c.notify("")
	})
}

func (c *Controller) notify(message string) {
	if c.cfg.OnStatus == nil {
		return
	}
	c.mu.Lock()
	status := domain.LiveStatus{
		SessionID:     c.id,
		PersonalityID: c.cfg.Personality.ID,
		State:         c.state,
		Speaking:      c.speaking,
		Message:       message,
	}
	c.mu.Unlock()
	c.cfg.OnStatus(status)
}
