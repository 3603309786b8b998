package channel

import (
	"errors"
	"fmt"
)

// Sentinel errors for the channel package.
var (
	// ErrClosed is returned for operations on a closed channel.
	ErrClosed = errors.New("channel closed")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("channel already started")

	// ErrUnknownEvent is returned for datagrams whose event id has no schema.
	ErrUnknownEvent = errors.New("unknown event id")

	// ErrRouteConflict is returned when a handler is registered with the
	// wrong delivery for its event id: completion events must be inline,
	// every other event must be queued.
	ErrRouteConflict = errors.New("route conflicts with event delivery")
)

// ChannelError describes a socket failure.
type ChannelError struct {
	// Op is the failed operation ("listen", "dial", "send", "receive").
	Op string

	// Path is the socket path.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ChannelError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("channel %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("channel %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ChannelError) Unwrap() error {
	return e.Err
}
