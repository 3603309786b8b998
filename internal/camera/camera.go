// Package camera sends commands to the camera server. The camera server
// speaks the same framing as the display server with its own magic number
// and option vocabulary, on a separate socket.
package camera

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Hirshol/equill-core-apps-sub000/internal/logging"
	"github.com/Hirshol/equill-core-apps-sub000/internal/wire"
)

// Sender writes one framed camera message.
type Sender interface {
	Send(m wire.Message) error
}

// Resolution is a capture size in pixels.
type Resolution struct {
	Width, Height uint32
}

// Client controls the camera server. It tracks whether a session is
// running so a stray Stop or Capture is rejected locally.
type Client struct {
	out    Sender
	logger *logging.Logger

	mu      sync.Mutex
	running bool
	opts    wire.Options
}

// ErrNotRunning is returned by Capture and Stop without a prior Start.
var ErrNotRunning = errors.New("camera not running")

// NewClient creates a camera client.
func NewClient(out Sender, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{out: out, logger: logger.WithComponent("camera")}
}

// Start begins a camera session with the given options.
func (c *Client) Start(opts wire.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.out.Send(wire.NewMessage(wire.OpCameraStart, opts, 0, nil)); err != nil {
		return fmt.Errorf("camera start: %w", err)
	}
	c.running = true
	c.opts = opts
	c.logger.Debug("started with %s", wire.CameraFamily(0).Options.Format(opts))
	return nil
}

// SetResolution changes the capture size.
func (c *Client) SetResolution(r Resolution) error {
	if err := c.out.Send(wire.NewMessage(wire.OpCameraSetResolution, 0, 0, []uint32{r.Width, r.Height})); err != nil {
		return fmt.Errorf("camera set_resolution: %w", err)
	}
	return nil
}

// Capture writes a still image to path.
func (c *Client) Capture(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return ErrNotRunning
	}
	if err := c.out.Send(wire.NewMessage(wire.OpCameraCapture, c.opts&wire.CameraTorch, 0, nil, path)); err != nil {
		return fmt.Errorf("camera capture: %w", err)
	}
	return nil
}

// Stop ends the session.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return ErrNotRunning
	}
	if err := c.out.Send(wire.NewMessage(wire.OpCameraStop, 0, 0, nil)); err != nil {
		return fmt.Errorf("camera stop: %w", err)
	}
	c.running = false
	return nil
}

// Running reports whether a session is active.
func (c *Client) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
