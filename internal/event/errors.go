package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for the event package.
var (
	// ErrLoopRunning is returned when Start is called on a running loop.
	ErrLoopRunning = errors.New("event loop is already running")

	// ErrLoopStopped is returned when work is submitted to a stopped loop.
	ErrLoopStopped = errors.New("event loop is stopped")

	// ErrNilHandler is returned when an entry has no handler.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrInvalidPriority is returned for priorities outside the defined levels.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrNotInLoop is returned by Split when called outside a loop handler.
	ErrNotInLoop = errors.New("not running inside an event loop handler")

	// ErrSplitDepth is returned by Split when the nesting cap is reached.
	ErrSplitDepth = errors.New("split nesting depth exceeded")

	// ErrHandlerPanic matches every *PanicError.
	ErrHandlerPanic = errors.New("handler panicked")
)

// PanicError wraps a panic value recovered from a handler.
type PanicError struct {
	// Entry is the name of the entry whose handler panicked.
	Entry string

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic in %s: %v", e.Entry, e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}
