package app

import (
	"sync"

	"github.com/Hirshol/equill-core-apps-sub000/internal/display"
	"github.com/Hirshol/equill-core-apps-sub000/internal/hooks"
)

// Observer receives device notifications that belong to screens and
// services outside the control plane. Methods are called from the event
// loop and must not block.
type Observer interface {
	BatteryChanged(percent uint32, charging bool)
	OrientationChanged(degrees uint32)
	ViewportChanged(page uint32, r display.Region)
	FormSubmitted(docID string, page, overlay uint32, form string)
}

var _ Observer = (*hooks.Script)(nil)

// NopObserver ignores every notification. Embed it to implement only the
// methods of interest.
type NopObserver struct{}

func (NopObserver) BatteryChanged(uint32, bool)                  {}
func (NopObserver) OrientationChanged(uint32)                    {}
func (NopObserver) ViewportChanged(uint32, display.Region)       {}
func (NopObserver) FormSubmitted(string, uint32, uint32, string) {}

// pageTracker remembers which pages of the current document received
// strokes since the display server last wrote their stroke file.
type pageTracker struct {
	mu    sync.Mutex
	dirty map[uint32]struct{}
}

func newPageTracker() *pageTracker {
	return &pageTracker{dirty: make(map[uint32]struct{})}
}

func (t *pageTracker) mark(page uint32) {
	t.mu.Lock()
	t.dirty[page] = struct{}{}
	t.mu.Unlock()
}

// take clears page and reports whether it was dirty.
func (t *pageTracker) take(page uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.dirty[page]
	delete(t.dirty, page)
	return ok
}

func (t *pageTracker) reset() {
	t.mu.Lock()
	t.dirty = make(map[uint32]struct{})
	t.mu.Unlock()
}
