// Package correlator turns the asynchronous display-server channel into a
// blocking call for application code that needs to wait for a command's
// completion event.
//
// A caller allocates a Pending with BeginWait, sends its command carrying
// Pending.ID as the request id, then blocks in Wait. The channel's inline
// completion handlers call Resolve or Fail with the request id found in the
// read-complete, render-complete and error events. Close releases every
// waiter with an Outcome of Cancelled.
//
// Wait must not be called from an event loop handler unless the handler
// has called event.Split first: the completion that would release it may
// be dispatched by the same loop.
package correlator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Hirshol/equill-core-apps-sub000/internal/logging"
)

// maxID is the largest request id; ids cycle through 1..maxID.
const maxID = 0xFFFF

var (
	// ErrClosed is returned by BeginWait after Close.
	ErrClosed = errors.New("correlator closed")

	// ErrNoFreeIDs is returned when every request id is outstanding.
	ErrNoFreeIDs = errors.New("no free request ids")

	// ErrRequestCancelled is the error form of an OutcomeCancelled completion.
	ErrRequestCancelled = errors.New("request cancelled: channel closed")
)

// Outcome classifies a completion.
type Outcome int

const (
	// OutcomeResolved means the peer reported success.
	OutcomeResolved Outcome = iota
	// OutcomeFailed means the peer reported an error code.
	OutcomeFailed
	// OutcomeCancelled means the channel was torn down first.
	OutcomeCancelled
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Completion is the result delivered to a waiter.
type Completion struct {
	Outcome Outcome

	// Code is the peer's error code for OutcomeFailed.
	Code uint32
}

// Err converts the completion to an error; nil when resolved.
func (c Completion) Err() error {
	switch c.Outcome {
	case OutcomeResolved:
		return nil
	case OutcomeFailed:
		return &PeerError{Code: c.Code}
	default:
		return ErrRequestCancelled
	}
}

// PeerError is an error code reported by the display server.
type PeerError struct {
	Code uint32
}

// Error implements the error interface.
func (e *PeerError) Error() string {
	return fmt.Sprintf("display server error %d", e.Code)
}

// Pending is an outstanding request.
type Pending struct {
	// ID is the request id to put in the outbound frame.
	ID uint32

	// Op names the operation for logs.
	Op string

	done chan Completion
}

// Correlator maps request ids to waiting callers.
type Correlator struct {
	mu      sync.Mutex
	last    uint32
	pending map[uint32]*Pending
	closed  bool
	logger  *logging.Logger
}

// New creates a correlator. A nil logger discards output.
func New(logger *logging.Logger) *Correlator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Correlator{
		pending: make(map[uint32]*Pending),
		logger:  logger,
	}
}

// BeginWait allocates a request id for op. Ids increase monotonically,
// wrap from 0xFFFF back to 1, never use 0 and never reuse an id that is
// still outstanding.
func (c *Correlator) BeginWait(op string) (*Pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if len(c.pending) >= maxID {
		return nil, ErrNoFreeIDs
	}

	id := c.last
	for {
		id++
		if id > maxID {
			id = 1
		}
		if _, busy := c.pending[id]; !busy {
			break
		}
	}
	c.last = id

	p := &Pending{ID: id, Op: op, done: make(chan Completion, 1)}
	c.pending[id] = p
	return p, nil
}

// Wait blocks until p is completed or ctx is done. A ctx error is the only
// error returned; peer failures and cancellation arrive as the Completion.
func (c *Correlator) Wait(ctx context.Context, p *Pending) (Completion, error) {
	select {
	case comp := <-p.done:
		return comp, nil
	case <-ctx.Done():
		c.Abandon(p)
		// A completion may have raced the context.
		select {
		case comp := <-p.done:
			return comp, nil
		default:
		}
		return Completion{}, ctx.Err()
	}
}

// Abandon forgets p without waiting, e.g. when its command could not be sent.
func (c *Correlator) Abandon(p *Pending) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.pending[p.ID]; ok && cur == p {
		delete(c.pending, p.ID)
	}
}

// Resolve completes the request with success. It never blocks and is safe
// to call from the channel's receive goroutine. Unknown ids are logged and
// ignored; the return value reports whether a waiter was found.
func (c *Correlator) Resolve(id uint32) bool {
	return c.complete(id, Completion{Outcome: OutcomeResolved})
}

// Fail completes the request with the peer's error code.
func (c *Correlator) Fail(id uint32, code uint32) bool {
	return c.complete(id, Completion{Outcome: OutcomeFailed, Code: code})
}

func (c *Correlator) complete(id uint32, comp Completion) bool {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.WithField("request_id", id).Warn("completion for unknown request (%s)", comp.Outcome)
		return false
	}
	p.done <- comp
	return true
}

// CancelAll completes every outstanding request with OutcomeCancelled.
func (c *Correlator) CancelAll() int {
	c.mu.Lock()
	victims := make([]*Pending, 0, len(c.pending))
	for id, p := range c.pending {
		victims = append(victims, p)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	for _, p := range victims {
		p.done <- Completion{Outcome: OutcomeCancelled}
	}
	if len(victims) > 0 {
		c.logger.Info("cancelled %d outstanding requests", len(victims))
	}
	return len(victims)
}

// Close cancels every outstanding request and refuses new ones.
func (c *Correlator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.CancelAll()
}

// Outstanding returns the number of requests awaiting completion.
func (c *Correlator) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
