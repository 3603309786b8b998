package power

import (
	"sync"
	"time"
)

// idleTimer fires fn once after d without a Reset. A sequence number
// discards callbacks of timers that were reset or stopped after firing.
type idleTimer struct {
	mu    sync.Mutex
	d     time.Duration
	t     *time.Timer
	seq   uint64
	armed bool
	fn    func()
}

func newIdleTimer(d time.Duration, fn func()) *idleTimer {
	return &idleTimer{d: d, fn: fn}
}

// Reset (re)arms the timer for its full duration.
func (it *idleTimer) Reset() {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.t != nil {
		it.t.Stop()
	}
	it.seq++
	it.armed = true
	seq := it.seq

	it.t = time.AfterFunc(it.d, func() {
		it.mu.Lock()
		if !it.armed || it.seq != seq {
			it.mu.Unlock()
			return
		}
		it.armed = false
		it.mu.Unlock()
		it.fn()
	})
}

// Stop disarms the timer.
func (it *idleTimer) Stop() {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.t != nil {
		it.t.Stop()
		it.t = nil
	}
	it.seq++
	it.armed = false
}

// SetDuration changes the duration used by the next Reset.
func (it *idleTimer) SetDuration(d time.Duration) {
	it.mu.Lock()
	it.d = d
	it.mu.Unlock()
}

// Armed reports whether the timer will fire.
func (it *idleTimer) Armed() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.armed
}
