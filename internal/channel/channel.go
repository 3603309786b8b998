package channel

import (
	"encoding/binary"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Hirshol/equill-core-apps-sub000/internal/event"
	"github.com/Hirshol/equill-core-apps-sub000/internal/logging"
	"github.com/Hirshol/equill-core-apps-sub000/internal/wire"
)

// DefaultMaxDatagram is the receive buffer size.
const DefaultMaxDatagram = 64 << 10

// Receive error backoff bounds.
const (
	minReceiveBackoff = 10 * time.Millisecond
	maxReceiveBackoff = time.Second
)

// Outbound writes framed messages to one sender. Sends are serialized so
// concurrent callers never interleave datagrams.
type Outbound struct {
	codec  *wire.Codec
	sender Sender
	path   string

	mu     sync.Mutex
	closed bool
	sent   atomic.Uint64
}

// NewOutbound creates an outbound writer. path is used in error messages.
func NewOutbound(codec *wire.Codec, sender Sender, path string) *Outbound {
	return &Outbound{codec: codec, sender: sender, path: path}
}

// Codec returns the codec used to frame messages.
func (o *Outbound) Codec() *wire.Codec {
	return o.codec
}

// Send encodes m and writes it as one datagram.
func (o *Outbound) Send(m wire.Message) error {
	b, err := o.codec.Encode(m)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if err := o.sender.Send(b); err != nil {
		return &ChannelError{Op: "send", Path: o.path, Err: err}
	}
	o.sent.Add(1)
	return nil
}

// Sent returns the number of datagrams written.
func (o *Outbound) Sent() uint64 {
	return o.sent.Load()
}

// Close closes the sender. Further sends return ErrClosed.
func (o *Outbound) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	return o.sender.Close()
}

// InlineFunc handles a completion event on the receiving goroutine.
// It must not block.
type InlineFunc func(ev Event)

// Stats contains receive-side counters.
type Stats struct {
	Received  uint64
	Queued    uint64
	Inline    uint64
	Unknown   uint64
	Malformed uint64
	Unrouted  uint64
	Failures  uint64
	Sent      uint64
}

// Channel is the duplex link to the display server: a command socket for
// framed outbound requests and an event socket for schema-decoded inbound
// events. Completion events are delivered inline; everything else is
// classified and submitted to the event loop.
type Channel struct {
	out    *Outbound
	recv   Receiver
	loop   *event.Loop
	order  binary.ByteOrder
	logger *logging.Logger

	maxDatagram   int
	systemRegions map[uint32]struct{}

	mu     sync.RWMutex
	queued map[EventID]event.Handler
	inline map[EventID]InlineFunc

	started atomic.Bool
	closed  atomic.Bool
	closing chan struct{}
	done    chan struct{}

	received  atomic.Uint64
	nQueued   atomic.Uint64
	nInline   atomic.Uint64
	unknown   atomic.Uint64
	malformed atomic.Uint64
	unrouted  atomic.Uint64
	failures  atomic.Uint64
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the channel's logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Channel) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSystemRegions sets the region ids whose strokes jump the queue.
func WithSystemRegions(regions ...uint32) Option {
	return func(c *Channel) {
		for _, r := range regions {
			c.systemRegions[r] = struct{}{}
		}
	}
}

// WithMaxDatagram sets the receive buffer size.
func WithMaxDatagram(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.maxDatagram = n
		}
	}
}

// New creates a channel. Events are decoded with the byte order of the
// outbound codec.
func New(out *Outbound, recv Receiver, loop *event.Loop, opts ...Option) *Channel {
	c := &Channel{
		out:           out,
		recv:          recv,
		loop:          loop,
		order:         out.Codec().ByteOrder(),
		logger:        logging.Nop(),
		maxDatagram:   DefaultMaxDatagram,
		systemRegions: make(map[uint32]struct{}),
		queued:        make(map[EventID]event.Handler),
		inline:        make(map[EventID]InlineFunc),
		closing:       make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle routes a non-completion event to h via the event loop. The
// handler receives the decoded Event as its args.
func (c *Channel) Handle(id EventID, h event.Handler) error {
	if h == nil {
		return event.ErrNilHandler
	}
	if id.IsCompletion() {
		return ErrRouteConflict
	}
	if _, ok := schemas[id]; !ok {
		return ErrUnknownEvent
	}
	c.mu.Lock()
	c.queued[id] = h
	c.mu.Unlock()
	return nil
}

// HandleInline routes a completion event to fn on the receiving goroutine.
func (c *Channel) HandleInline(id EventID, fn InlineFunc) error {
	if fn == nil {
		return event.ErrNilHandler
	}
	if !id.IsCompletion() {
		return ErrRouteConflict
	}
	c.mu.Lock()
	c.inline[id] = fn
	c.mu.Unlock()
	return nil
}

// Classify returns the queue priority for ev. A page change outranks
// ordinary input so it can discard strokes queued for the old page;
// strokes on system regions outrank everything.
func (c *Channel) Classify(ev Event) event.Priority {
	switch ev.ID {
	case EventPageStop:
		return event.PriorityHigh
	case EventStroke:
		if _, ok := c.systemRegions[ev.Int(1)]; ok {
			return event.PriorityImmediate
		}
		return event.PriorityNormal
	default:
		return event.PriorityNormal
	}
}

// Start starts the receive goroutine.
func (c *Channel) Start() error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.started.Swap(true) {
		return ErrAlreadyStarted
	}
	go c.receiveLoop()
	return nil
}

// Send writes a framed command to the display server.
func (c *Channel) Send(m wire.Message) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.out.Send(m)
}

// Codec returns the command codec.
func (c *Channel) Codec() *wire.Codec {
	return c.out.Codec()
}

// Close closes both sockets and waits for the receive goroutine.
func (c *Channel) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.closing)
	errRecv := c.recv.Close()
	errSend := c.out.Close()
	if c.started.Load() {
		<-c.done
	}
	return errors.Join(errRecv, errSend)
}

// Stats returns channel counters.
func (c *Channel) Stats() Stats {
	return Stats{
		Received:  c.received.Load(),
		Queued:    c.nQueued.Load(),
		Inline:    c.nInline.Load(),
		Unknown:   c.unknown.Load(),
		Malformed: c.malformed.Load(),
		Unrouted:  c.unrouted.Load(),
		Failures:  c.failures.Load(),
		Sent:      c.out.Sent(),
	}
}

func (c *Channel) receiveLoop() {
	defer close(c.done)
	buf := make([]byte, c.maxDatagram)
	var backoff time.Duration

	for {
		n, err := c.recv.Receive(buf)
		if err != nil {
			if c.closed.Load() || errors.Is(err, net.ErrClosed) {
				c.logger.Debug("receive loop exiting")
				return
			}
			c.failures.Add(1)
			backoff = min(max(2*backoff, minReceiveBackoff), maxReceiveBackoff)
			c.logger.Warn("%v, retrying in %s", &ChannelError{Op: "receive", Err: err}, backoff)
			select {
			case <-c.closing:
				return
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0
		c.received.Add(1)

		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		c.deliver(datagram)
	}
}

// deliver decodes one datagram and routes it.
func (c *Channel) deliver(b []byte) {
	ev, err := DecodeEvent(c.order, b)
	switch {
	case errors.Is(err, ErrUnknownEvent):
		c.unknown.Add(1)
		c.logger.Debug("dropping %v", err)
		return
	case err != nil:
		c.malformed.Add(1)
		c.logger.Warn("dropping malformed event: %v", err)
		return
	}

	if ev.ID.IsCompletion() {
		c.mu.RLock()
		fn := c.inline[ev.ID]
		c.mu.RUnlock()
		if fn == nil {
			c.unrouted.Add(1)
			c.logger.Debug("no inline handler for %s", ev.Name())
			return
		}
		c.nInline.Add(1)
		fn(ev)
		return
	}

	c.mu.RLock()
	h := c.queued[ev.ID]
	c.mu.RUnlock()
	if h == nil {
		c.unrouted.Add(1)
		c.logger.Debug("no handler for %s", ev.Name())
		return
	}

	entry := event.Entry{
		Priority: c.Classify(ev),
		Name:     ev.Name(),
		Handler:  h,
		Args:     ev,
	}
	c.nQueued.Add(1)
	if err := c.loop.Submit(entry); err != nil {
		c.nQueued.Add(^uint64(0))
		c.logger.Warn("dropping %s: %v", ev.Name(), err)
	}
}
