package session

import (
	"errors"
	"fmt"
)

// Kind tags an Error by error category. It is a kind, not a Go type
// hierarchy: callers switch on Kind, not on error identity.
type Kind string

const (
	KindValidation Kind = "validation"
	KindResource   Kind = "resource"
	KindTransport  Kind = "transport"
	KindLifecycle  Kind = "lifecycle"
	KindIntegrity  Kind = "integrity"
)

// Error is the structured error returned across session-manager and
// state-machine operations.
type Error struct {
	Kind      Kind
	Message   string
	SessionID string
	Err       error
}

func (e *Error) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s: %s (session %s)", e.Kind, e.Message, e.SessionID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, sessionID, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, SessionID: sessionID, Err: err}
}

func errValidation(sessionID, message string) *Error {
	return newError(KindValidation, sessionID, message, nil)
}

func errResource(sessionID, message string, err error) *Error {
	return newError(KindResource, sessionID, message, err)
}

func errNotFound(sessionID string) *Error {
	return newError(KindValidation, sessionID, "unknown session", nil)
}

func errTerminalState(sessionID string) *Error {
	return newError(KindValidation, sessionID, "session already in terminal state", nil)
}

// IsNotFound reports whether err is the "unknown session" case, which
// HTTP handlers map to 404 rather than the generic 400 used for other
// validation errors.
func IsNotFound(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindValidation && e.Message == "unknown session"
}
