package domain

// LiveState is the lifecycle state of a live voice session.
type LiveState string

const (
	LiveStateIdle    LiveState = "IDLE"
	LiveStateOpening LiveState = "OPENING"
	LiveStateOpen    LiveState = "OPEN"
	LiveStateClosed  LiveState = "CLOSED"
)

// LiveStatus is reported to observers whenever a live session changes state
// or the model starts or stops speaking.
type LiveStatus struct {
	SessionID     string    `json:"session_id"`
	PersonalityID string    `json:"personality_id"`
	State         LiveState `json:"state"`
	Speaking      bool      `json:"speaking"`
	Message       string    `json:"message,omitempty"`
}
