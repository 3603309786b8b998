package event

import (
	"context"
	"fmt"
)

// Priority determines dispatch order. Lower values are served first.
type Priority int

const (
	// PriorityImmediate is for input that targets system regions and for
	// the loop's own STOP sentinel.
	PriorityImmediate Priority = iota

	// PriorityHigh is for events that invalidate queued work, such as a
	// page change.
	PriorityHigh

	// PriorityNormal is the default priority.
	PriorityNormal

	// PriorityLow is for housekeeping that may wait behind everything else.
	PriorityLow

	numPriorities = int(PriorityLow) + 1
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch p {
	case PriorityImmediate:
		return "immediate"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Valid reports whether p is one of the defined levels.
func (p Priority) Valid() bool {
	return p >= PriorityImmediate && p <= PriorityLow
}

// Handler processes the arguments of one queued entry.
type Handler interface {
	Handle(ctx context.Context, args any) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, args any) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, args any) error {
	return f(ctx, args)
}

// Entry is one unit of queued work.
type Entry struct {
	// Priority selects the band the entry waits in.
	Priority Priority

	// Name identifies the entry in logs.
	Name string

	// Handler is invoked exactly once with Args.
	Handler Handler

	// Args is passed to the handler unchanged.
	Args any

	stop bool
}

// Stats contains event loop statistics.
type Stats struct {
	// Enqueued is the number of entries accepted by the queue.
	Enqueued uint64

	// Removed is the number of entries discarded by RemoveIf.
	Removed uint64

	// Dispatched is the number of handler invocations.
	Dispatched uint64

	// Failed is the number of handlers that returned an error.
	Failed uint64

	// Panicked is the number of handlers that panicked.
	Panicked uint64

	// Splits is the number of successor workers started by Split.
	Splits uint64

	// SplitDepth is the number of workers currently parked after a Split.
	SplitDepth int

	// QueueDepth is the number of entries waiting.
	QueueDepth int
}
