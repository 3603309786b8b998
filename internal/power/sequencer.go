package power

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Hirshol/equill-core-apps-sub000/internal/logging"
)

// Default bounds for the suspend handshake.
const (
	DefaultSleepAckTimeout = 10 * time.Second
	DefaultNetworkTimeout  = 30 * time.Second
)

// ErrSuspendInProgress is returned when a suspend is requested while one runs.
var ErrSuspendInProgress = errors.New("suspend already in progress")

// Kind selects the suspend flavour.
type Kind int

const (
	// KindSleep suspends to memory.
	KindSleep Kind = iota
	// KindHalt powers off.
	KindHalt
)

// String returns the kind name.
func (k Kind) String() string {
	if k == KindHalt {
		return "halt"
	}
	return "sleep"
}

// SuspendOutcome is the expected result of a suspend sequence.
type SuspendOutcome int

const (
	// SuspendCompleted means the device was handed to the power subsystem.
	SuspendCompleted SuspendOutcome = iota
	// SuspendAborted means a wake signal arrived first; nothing changed.
	SuspendAborted
)

// String returns the outcome name.
func (o SuspendOutcome) String() string {
	if o == SuspendAborted {
		return "aborted"
	}
	return "completed"
}

// Display is the display-server side of the handshake.
type Display interface {
	// RequestSleep asks the display server to prepare for suspend; the
	// acknowledgement is reported through Sequencer.AckSleep.
	RequestSleep(ctx context.Context) error
	// Blank clears the panel before power-off.
	Blank(ctx context.Context) error
	// Resume undoes RequestSleep.
	Resume(ctx context.Context) error
}

// Network reports radio activity and controls the radios.
type Network interface {
	WaitQuiescent(ctx context.Context) error
	DisableRadios() error
	EnableRadios() error
}

// Backend physically suspends or powers off the device. For KindSleep it
// returns after the device resumes.
type Backend interface {
	Suspend(kind Kind) error
}

// Snapshotter reports the open document and page.
type Snapshotter interface {
	Current() (docID string, page uint32, ok bool)
}

// Remembered is the document that was open when the last suspend began.
type Remembered struct {
	DocID string
	Page  uint32
	Valid bool
}

// Sequencer runs the suspend handshake:
//
//  1. remember the open document and page
//  2. sleep: send the sleep command and wait for its acknowledgement;
//     halt: blank the panel
//  3. wait for the network to go quiet
//  4. disable radios and hand over to the power backend
//
// Steps 2 and 3 are bounded; a step that times out is logged and the
// sequence proceeds. A wake signal before step 4 aborts the sequence and
// leaves the power state as it was.
type Sequencer struct {
	manager *Manager
	display Display
	network Network
	backend Backend
	docs    Snapshotter
	logger  *logging.Logger

	ackTimeout time.Duration
	netTimeout time.Duration

	mu         sync.Mutex
	active     bool
	woken      bool
	wake       chan struct{}
	ack        chan struct{}
	remembered Remembered
}

// SequencerConfig holds the collaborators of a Sequencer.
type SequencerConfig struct {
	Manager         *Manager
	Display         Display
	Network         Network
	Backend         Backend
	Documents       Snapshotter
	Logger          *logging.Logger
	SleepAckTimeout time.Duration
	NetworkTimeout  time.Duration
}

// NewSequencer creates a sequencer.
func NewSequencer(cfg SequencerConfig) *Sequencer {
	s := &Sequencer{
		manager:    cfg.Manager,
		display:    cfg.Display,
		network:    cfg.Network,
		backend:    cfg.Backend,
		docs:       cfg.Documents,
		logger:     cfg.Logger,
		ackTimeout: cfg.SleepAckTimeout,
		netTimeout: cfg.NetworkTimeout,
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	if s.ackTimeout <= 0 {
		s.ackTimeout = DefaultSleepAckTimeout
	}
	if s.netTimeout <= 0 {
		s.netTimeout = DefaultNetworkTimeout
	}
	return s
}

// SetTimeouts changes the step bounds for later sequences.
func (s *Sequencer) SetTimeouts(ack, network time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ack > 0 {
		s.ackTimeout = ack
	}
	if network > 0 {
		s.netTimeout = network
	}
}

// Suspend runs one sequence. It returns SuspendAborted with a nil error
// when a wake signal interrupts it.
func (s *Sequencer) Suspend(ctx context.Context, kind Kind) (SuspendOutcome, error) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return SuspendAborted, ErrSuspendInProgress
	}
	s.active = true
	s.woken = false
	s.wake = make(chan struct{})
	s.ack = make(chan struct{}, 1)
	wake, ack := s.wake, s.ack
	ackTimeout, netTimeout := s.ackTimeout, s.netTimeout
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
	}()

	log := s.logger.WithField("kind", kind)
	prev := s.manager.State()

	// 1. remember
	var rem Remembered
	if s.docs != nil {
		rem.DocID, rem.Page, rem.Valid = s.docs.Current()
	}
	s.mu.Lock()
	s.remembered = rem
	s.mu.Unlock()
	log.Info("suspend requested in %s, doc %q page %d", prev, rem.DocID, rem.Page)

	sentSleep := false
	abort := func(step string) (SuspendOutcome, error) {
		log.Info("suspend aborted by wake during %s", step)
		if sentSleep {
			if err := s.display.Resume(context.WithoutCancel(ctx)); err != nil {
				log.Warn("resume display: %v", err)
			}
		}
		return SuspendAborted, nil
	}

	if signalled(wake) {
		return abort("start")
	}

	// 2. display handshake
	switch kind {
	case KindSleep:
		if err := s.display.RequestSleep(ctx); err != nil {
			log.Warn("request sleep: %v", err)
			break
		}
		sentSleep = true
		woke, err := await(ctx, wake, ackTimeout, func(c context.Context) error {
			select {
			case <-ack:
				return nil
			case <-c.Done():
				return c.Err()
			}
		})
		if woke {
			return abort("sleep acknowledgement")
		}
		if err != nil {
			log.Warn("no sleep acknowledgement: %v", err)
		}
	case KindHalt:
		woke, err := await(ctx, wake, ackTimeout, s.display.Blank)
		if woke {
			return abort("blank screen")
		}
		if err != nil {
			log.Warn("blank screen: %v", err)
		}
	}

	// 3. network quiescence
	if signalled(wake) {
		return abort("network wait")
	}
	woke, err := await(ctx, wake, netTimeout, s.network.WaitQuiescent)
	if woke {
		return abort("network wait")
	}
	if err != nil {
		log.Warn("network not quiescent: %v", err)
	}

	if err := ctx.Err(); err != nil {
		outcome, _ := abort("cancelled context")
		return outcome, err
	}
	if signalled(wake) {
		return abort("final check")
	}

	// 4. commit
	if err := s.network.DisableRadios(); err != nil {
		log.Warn("disable radios: %v", err)
	}
	target := StateSleeping
	if kind == KindHalt {
		target = StateHalted
	}
	s.manager.Enter(target)

	if err := s.backend.Suspend(kind); err != nil {
		log.Error("power backend: %v", err)
		if rerr := s.network.EnableRadios(); rerr != nil {
			log.Warn("enable radios: %v", rerr)
		}
		s.manager.Resume()
		return SuspendAborted, err
	}
	log.Info("suspend completed")
	return SuspendCompleted, nil
}

// AckSleep records the display server's sleep acknowledgement.
func (s *Sequencer) AckSleep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		s.logger.Debug("sleep ack outside a suspend")
		return
	}
	select {
	case s.ack <- struct{}{}:
	default:
	}
}

// Wake signals a running sequence to abort. It reports whether one was
// running.
func (s *Sequencer) Wake() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	if !s.woken {
		s.woken = true
		close(s.wake)
	}
	return true
}

// InProgress reports whether a sequence is running.
func (s *Sequencer) InProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Resume brings a sleeping device back: full clocks, fresh timers, radios
// on and the display told to wake. It returns the document remembered
// by the last sequence. Resume is a no-op unless the device is sleeping.
func (s *Sequencer) Resume(ctx context.Context) (Remembered, bool) {
	if !s.manager.ResumeFrom(StateSleeping) {
		return Remembered{}, false
	}
	if err := s.network.EnableRadios(); err != nil {
		s.logger.Warn("enable radios: %v", err)
	}
	if err := s.display.Resume(ctx); err != nil {
		s.logger.Warn("resume display: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remembered, true
}

// LastRemembered returns the document remembered by the last sequence.
func (s *Sequencer) LastRemembered() Remembered {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remembered
}

func signalled(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// await runs step with a context bounded by timeout and cancelled by wake.
// It reports whether wake fired.
func await(ctx context.Context, wake <-chan struct{}, timeout time.Duration, step func(context.Context) error) (bool, error) {
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	go func() {
		select {
		case <-wake:
			cancel()
		case <-sctx.Done():
		}
	}()

	err := step(sctx)
	return signalled(wake), err
}
