package live

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionClosed is returned when using a session that was torn down.
	ErrSessionClosed = errors.New("live session closed")
	// ErrAlreadyStarted is returned by Start on a session that left IDLE.
	ErrAlreadyStarted = errors.New("live session already started")

	// ErrMicPermissionDenied reports that the user refused microphone access.
	ErrMicPermissionDenied = errors.New("microphone permission denied")
	// ErrMicNotFound reports that no capture device exists.
	ErrMicNotFound = errors.New("microphone not found")
	// ErrMicUnsupported reports that the client cannot capture audio at all.
	ErrMicUnsupported = errors.New("microphone access not supported")
)

// MicErrorKind classifies microphone acquisition failures.
type MicErrorKind string

const (
	MicDenied      MicErrorKind = "denied"
	MicNotFound    MicErrorKind = "not_found"
	MicUnsupported MicErrorKind = "unsupported"
	MicOther       MicErrorKind = "other"
)

// MicError is a microphone failure with the message shown to the user.
type MicError struct {
	Kind    MicErrorKind
	Message string
	Err     error
}

func (e *MicError) Error() string {
	return e.Message
}

func (e *MicError) Unwrap() error {
	return e.Err
}

// ClassifyMicError maps an acquisition failure to its user-facing message.
func ClassifyMicError(err error) *MicError {
	var me *MicError
	if errors.As(err, &me) {
		return me
	}

	switch {
	case errors.Is(err, ErrMicPermissionDenied):
		return &MicError{Kind: MicDenied, Message: "Microphone permission was denied. Please click the lock icon in your address bar.", Err: err}
	case errors.Is(err, ErrMicNotFound):
		return &MicError{Kind: MicNotFound, Message: "No microphone found.", Err: err}
	case errors.Is(err, ErrMicUnsupported):
		return &MicError{Kind: MicUnsupported, Message: "Microphone access is not supported in this browser.", Err: err}
	}

	detail := "Access failed"
	if err != nil && err.Error() != "" {
		detail = err.Error()
	}
	return &MicError{Kind: MicOther, Message: fmt.Sprintf("Microphone error: %s", detail), Err: err}
}
