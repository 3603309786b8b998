package power

import (
	"sync"
	"time"

	"github.com/Hirshol/equill-core-apps-sub000/internal/logging"
)

// State is the device power state.
type State int

const (
	// StateActive is full CPU and panel clocking.
	StateActive State = iota
	// StateReady is the half-power idle state.
	StateReady
	// StateSleeping is suspended to memory.
	StateSleeping
	// StateHalted is powered off.
	StateHalted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateReady:
		return "ready"
	case StateSleeping:
		return "sleeping"
	case StateHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// Clock switches CPU and panel clocking between full and reduced.
type Clock interface {
	SetFull() error
	SetReduced() error
}

// Manager owns the power state and the two idle timers. The ready timer
// drops an idle device to StateReady; the sleep timer calls the sleep
// callback, which is expected to start a suspend sequence. Timer expiry
// is the only way the state is downgraded without an explicit request.
type Manager struct {
	clock   Clock
	onSleep func()
	logger  *logging.Logger

	mu    sync.Mutex
	state State
	ready *idleTimer
	sleep *idleTimer
}

// NewManager creates a manager in StateActive with its timers stopped.
func NewManager(clock Clock, readyTimeout, sleepTimeout time.Duration, onSleep func(), logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	m := &Manager{
		clock:   clock,
		onSleep: onSleep,
		logger:  logger,
		state:   StateActive,
	}
	m.ready = newIdleTimer(readyTimeout, m.readyExpired)
	m.sleep = newIdleTimer(sleepTimeout, m.sleepExpired)
	return m
}

// Start arms both timers.
func (m *Manager) Start() {
	m.ready.Reset()
	m.sleep.Reset()
}

// Stop disarms both timers.
func (m *Manager) Stop() {
	m.ready.Stop()
	m.sleep.Stop()
}

// State returns the current power state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Activity reports user input. A device in StateReady returns to
// StateActive and both timers restart from their full duration. Activity
// while sleeping or halted is ignored.
func (m *Manager) Activity() {
	m.mu.Lock()
	switch m.state {
	case StateSleeping, StateHalted:
		m.mu.Unlock()
		return
	case StateReady:
		if err := m.clock.SetFull(); err != nil {
			m.logger.Warn("set full clock: %v", err)
		}
		m.state = StateActive
		m.logger.Debug("ready -> active")
	}
	m.mu.Unlock()

	m.ready.Reset()
	m.sleep.Reset()
}

// SetTimeouts changes both durations and restarts the timers if the
// device is awake.
func (m *Manager) SetTimeouts(ready, sleep time.Duration) {
	m.ready.SetDuration(ready)
	m.sleep.SetDuration(sleep)

	m.mu.Lock()
	awake := m.state == StateActive || m.state == StateReady
	m.mu.Unlock()
	if awake {
		m.ready.Reset()
		m.sleep.Reset()
	}
}

// Enter moves to a suspended state and stops the timers.
func (m *Manager) Enter(s State) {
	m.Stop()
	m.mu.Lock()
	old := m.state
	m.state = s
	m.mu.Unlock()
	m.logger.Info("%s -> %s", old, s)
}

// Resume returns to StateActive with full clocking and fresh timers.
func (m *Manager) Resume() {
	m.mu.Lock()
	old := m.state
	m.state = StateActive
	m.mu.Unlock()
	m.resumed(old)
}

// ResumeFrom resumes only if the current state is from. It reports whether
// it did, so concurrent callers resume at most once.
func (m *Manager) ResumeFrom(from State) bool {
	m.mu.Lock()
	if m.state != from {
		m.mu.Unlock()
		return false
	}
	m.state = StateActive
	m.mu.Unlock()
	m.resumed(from)
	return true
}

func (m *Manager) resumed(old State) {
	if err := m.clock.SetFull(); err != nil {
		m.logger.Warn("set full clock: %v", err)
	}
	m.logger.Info("%s -> active", old)
	m.Start()
}

// Doze drops an active device to StateReady without waiting for the ready
// timer. The sleep timer keeps running.
func (m *Manager) Doze() {
	m.readyExpired()
}

func (m *Manager) readyExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive {
		return
	}
	if err := m.clock.SetReduced(); err != nil {
		m.logger.Warn("set reduced clock: %v", err)
		return
	}
	m.state = StateReady
	m.logger.Debug("active -> ready")
}

func (m *Manager) sleepExpired() {
	m.mu.Lock()
	awake := m.state == StateActive || m.state == StateReady
	m.mu.Unlock()
	if awake && m.onSleep != nil {
		m.logger.Info("sleep timeout")
		m.onSleep()
	}
}
