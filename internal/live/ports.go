// Package live runs realtime voice sessions: it wires microphone capture to the
// upstream realtime transport and the transport's audio back to a playback
// scheduler, folding transcripts into chat turns.
package live

import (
	"context"

	"github.com/cid-kageno-dev/Personal-AI/internal/audio"
	"github.com/cid-kageno-dev/Personal-AI/internal/domain"
)

// EventType classifies inbound transport events.
type EventType int

const (
	EventOpen EventType = iota
	EventAudio
	EventInterrupted
	EventInputTranscript
	EventOutputTranscript
	EventTurnComplete
	EventError
	EventClose
)

func (t EventType) String() string {
	switch t {
	case EventOpen:
		return "open"
	case EventAudio:
		return "audio"
	case EventInterrupted:
		return "interrupted"
	case EventInputTranscript:
		return "input_transcript"
	case EventOutputTranscript:
		return "output_transcript"
	case EventTurnComplete:
		return "turn_complete"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is one inbound message from the realtime session.
type Event struct {
	Type  EventType
	Audio audio.Blob
	Text  string
	Err   error
}

// SessionConfig configures the upstream realtime session.
type SessionConfig struct {
	Model             string
	SystemInstruction string
	Voice             string
}

// Transport is an established bidirectional realtime session.
type Transport interface {
	// Send forwards one encoded capture frame upstream.
	Send(ctx context.Context, blob audio.Blob) error
	// Events yields inbound events in arrival order. The channel is closed
	// after the transport shuts down.
	Events() <-chan Event
	Close() error
}

// Dialer opens realtime sessions.
type Dialer interface {
	Dial(ctx context.Context, cfg SessionConfig) (Transport, error)
}

// CaptureStream is an acquired microphone.
type CaptureStream interface {
	// Frames yields fixed-size single-channel frames at SampleRate.
	Frames() <-chan []float32
	SampleRate() int
	Close() error
}

// Microphone acquires capture streams. Open blocks until the user grants or
// denies access.
type Microphone interface {
	Open(ctx context.Context) (CaptureStream, error)
}

// Speaker is the output audio device.
type Speaker interface {
	audio.Sink
	// Now returns the device clock in seconds.
	Now() float64
	// Ended yields voices that finished playing naturally.
	Ended() <-chan audio.Voice
	Close() error
}

// TurnSink receives the messages flushed at the end of a voice turn.
// All messages of one call must be appended atomically.
type TurnSink interface {
	AppendMessages(ctx context.Context, personalityID string, msgs ...domain.ChatMessage) error
}
