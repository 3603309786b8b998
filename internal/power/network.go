package power

import (
	"context"
	"sync"
)

// Radios switches the wireless radios.
type Radios interface {
	Disable() error
	Enable() error
}

// NetworkMonitor counts in-flight radio operations. The control plane
// itself only uses local sockets; services that use the radios (sync,
// provisioning) reach the monitor through the application and wrap each
// exchange in Begin/done. The suspend sequence waits, bounded, for the
// count to reach zero.
type NetworkMonitor struct {
	radios Radios

	mu     sync.Mutex
	active int
	idle   chan struct{}
}

// NewNetworkMonitor creates a monitor. A nil radios makes radio control a
// no-op.
func NewNetworkMonitor(radios Radios) *NetworkMonitor {
	idle := make(chan struct{})
	close(idle)
	return &NetworkMonitor{radios: radios, idle: idle}
}

// Begin marks one radio operation in flight. Call the returned function
// exactly once when it ends.
func (n *NetworkMonitor) Begin() (done func()) {
	n.mu.Lock()
	if n.active == 0 {
		n.idle = make(chan struct{})
	}
	n.active++
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			n.active--
			if n.active == 0 {
				close(n.idle)
			}
			n.mu.Unlock()
		})
	}
}

// Active returns the number of operations in flight.
func (n *NetworkMonitor) Active() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

// WaitQuiescent blocks until no operation is in flight or ctx is done.
func (n *NetworkMonitor) WaitQuiescent(ctx context.Context) error {
	n.mu.Lock()
	idle := n.idle
	n.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DisableRadios turns the radios off.
func (n *NetworkMonitor) DisableRadios() error {
	if n.radios == nil {
		return nil
	}
	return n.radios.Disable()
}

// EnableRadios turns the radios on.
func (n *NetworkMonitor) EnableRadios() error {
	if n.radios == nil {
		return nil
	}
	return n.radios.Enable()
}
