package ws

import (
	"github.com/cid-kageno-dev/Personal-AI/internal/domain"
	"github.com/cid-kageno-dev/Personal-AI/internal/state"
)

// Message types from client to server
const (
	TypeHello     = "hello"
	TypeSubscribe = "subscribe"
	TypeLiveStart = "live_start"
	TypeMicReady  = "mic_ready"
	TypeMicError  = "mic_error"
	TypeAudio     = "audio"
	TypeEnded     = "ended"
	TypeLiveStop  = "live_stop"
)

// Message types from server to client
const (
	TypeHelloAck     = "hello_ack"
	TypeMicRequest   = "mic_request"
	TypePlay         = "play"
	TypeStopVoice    = "stop_voice"
	TypeStatus       = "status"
	TypeConversation = "conversation"
	TypeState        = "state"
	TypeError        = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type string `json:"type"`
	Ts   int64  `json:"ts"`
}

// HelloAckMessage confirms the connection. Clock readings in play messages
// are seconds since ClockOrigin (unix milliseconds).
type HelloAckMessage struct {
	BaseMessage
	ConnectionID string `json:"connection_id"`
	ClockOrigin  int64  `json:"clock_origin"`
}

// SubscribeMessage asks for conversation updates of one personality.
type SubscribeMessage struct {
	BaseMessage
	PersonalityID string `json:"personality_id"`
}

// LiveStartMessage starts a voice session. An empty PersonalityID uses the
// active personality.
type LiveStartMessage struct {
	BaseMessage
	PersonalityID string `json:"personality_id,omitempty"`
}

// MicReadyMessage reports that capture started at SampleRate.
type MicReadyMessage struct {
	BaseMessage
	SampleRate int `json:"sample_rate"`
}

// MicErrorMessage reports a failed capture request. Name is the browser
// error name, such as NotAllowedError.
type MicErrorMessage struct {
	BaseMessage
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
}

// AudioMessage carries one captured single-channel frame.
type AudioMessage struct {
	BaseMessage
	Samples []float32 `json:"samples"`
}

// EndedMessage reports that a voice finished playing.
type EndedMessage struct {
	BaseMessage
	VoiceID string `json:"voice_id"`
}

// PlayMessage schedules base64 PCM16 mono audio at StartAt on the session clock.
type PlayMessage struct {
	BaseMessage
	VoiceID    string  `json:"voice_id"`
	StartAt    float64 `json:"start_at"`
	SampleRate int     `json:"sample_rate"`
	Data       string  `json:"data"`
}

// StopVoiceMessage halts one scheduled voice.
type StopVoiceMessage struct {
	BaseMessage
	VoiceID string `json:"voice_id"`
}

// StatusMessage reports the live session status.
type StatusMessage struct {
	BaseMessage
	domain.LiveStatus
}

// ConversationMessage carries a conversation change, or the full transcript
// in reply to a subscribe.
type ConversationMessage struct {
	BaseMessage
	Kind          state.ChangeKind     `json:"kind,omitempty"`
	PersonalityID string               `json:"personality_id"`
	Message       *domain.ChatMessage  `json:"message,omitempty"`
	Messages      []domain.ChatMessage `json:"messages,omitempty"`
}

// StateMessage reports a change to the personality list or the active id.
type StateMessage struct {
	BaseMessage
	Kind          state.ChangeKind `json:"kind"`
	PersonalityID string           `json:"personality_id,omitempty"`
}

// ErrorMessage is sent when an error occurs.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeNotFound       = "not_found"
	ErrorCodeMicError       = "mic_error"
	ErrorCodeLiveFailed     = "live_failed"
	ErrorCodeInternalError  = "internal_error"
)
