// Package display is the command-side API of the display server.
//
// Message builders in commands.go lay out each tablet op-code's arguments.
// A Client posts them fire-and-forget or, with Call, sets the notify option,
// tags the frame with a correlator request id and blocks until the matching
// completion event arrives.
package display

import (
	"context"
	"fmt"

	"github.com/Hirshol/equill-core-apps-sub000/internal/correlator"
	"github.com/Hirshol/equill-core-apps-sub000/internal/logging"
	"github.com/Hirshol/equill-core-apps-sub000/internal/wire"
)

// Sender writes one framed message.
type Sender interface {
	Send(m wire.Message) error
}

// Client sends tablet commands.
type Client struct {
	out    Sender
	corr   *correlator.Correlator
	family wire.Family
	logger *logging.Logger
}

// NewClient creates a client. family is used only to name op-codes in logs.
func NewClient(out Sender, corr *correlator.Correlator, family wire.Family, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{out: out, corr: corr, family: family, logger: logger}
}

// Post sends m without waiting. The request id is cleared so the display
// server does not emit a completion for it.
func (c *Client) Post(m wire.Message) error {
	m.RequestID = 0
	m.Options = m.Options.Without(wire.TabletNotify)
	if err := c.out.Send(m); err != nil {
		return fmt.Errorf("%s: %w", c.family.OpName(m.OpCode), err)
	}
	return nil
}

// Call sends m and waits for its read_complete, render_complete or error
// event. A peer error is returned as *correlator.PeerError and teardown as
// correlator.ErrRequestCancelled.
//
// Called from an event loop handler, Call requires a prior event.Split.
func (c *Client) Call(ctx context.Context, m wire.Message) error {
	op := c.family.OpName(m.OpCode)
	p, err := c.corr.BeginWait(op)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m.RequestID = p.ID
	m.Options = m.Options.With(wire.TabletNotify)
	if err := c.out.Send(m); err != nil {
		c.corr.Abandon(p)
		return fmt.Errorf("%s: %w", op, err)
	}

	comp, err := c.corr.Wait(ctx, p)
	if err != nil {
		return fmt.Errorf("%s request %d: %w", op, p.ID, err)
	}
	if err := comp.Err(); err != nil {
		c.logger.WithFields(map[string]any{"op": op, "request_id": p.ID}).Debug("completed: %s", comp.Outcome)
		return fmt.Errorf("%s request %d: %w", op, p.ID, err)
	}
	return nil
}

// Load opens a document. It waits for the display server's acknowledgement.
func (c *Client) Load(ctx context.Context, path string, page uint32) error {
	return c.Call(ctx, LoadDocument(path, page, wire.TabletFullRefresh))
}

// RequestSleep posts the sleep command; the acknowledgement arrives as a
// sleep_ack event rather than a completion.
func (c *Client) RequestSleep(context.Context) error {
	return c.Post(Sleep())
}

// Blank clears the panel and waits until it is drawn.
func (c *Client) Blank(ctx context.Context) error {
	return c.Call(ctx, BlankScreen(wire.TabletFlash))
}

// Resume posts the wake command.
func (c *Client) Resume(context.Context) error {
	return c.Post(Wake())
}
