package app

import (
	"errors"
	"strings"
)

var (
	// ErrAlreadyRunning is returned by a second Start.
	ErrAlreadyRunning = errors.New("control plane already started")

	// ErrNotRunning is returned by Start after Shutdown and by a second
	// Shutdown.
	ErrNotRunning = errors.New("control plane stopped")

	// ErrShutdownTimeout means the loop or background suspends outlived
	// the shutdown deadline. Sockets and locks are released regardless.
	ErrShutdownTimeout = errors.New("shutdown deadline exceeded")
)

// InitError names the collaborator New could not set up: "config",
// "hooks", "command socket", "event socket" or "event routes".
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error { return e.Err }

// ComponentError wraps a failure of a running component, such as the loop
// or channel refusing to start.
type ComponentError struct {
	Component string
	Action    string
	Err       error
}

// NewComponentError returns a ComponentError.
func NewComponentError(component, action string, err error) *ComponentError {
	return &ComponentError{Component: component, Action: action, Err: err}
}

func (e *ComponentError) Error() string {
	parts := []string{e.Component}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *ComponentError) Unwrap() error { return e.Err }
