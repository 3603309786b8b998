// Package document tracks which document is loaded on the panel and owns
// the advisory lock of every document this process still depends on.
//
// Exactly one session is current at a time. Switching away from a session
// closes it; if asynchronous work started on it is still outstanding, the
// session is parked and its lock is released only when the last pending
// operation completes.
package document

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Hirshol/equill-core-apps-sub000/internal/doclock"
	"github.com/Hirshol/equill-core-apps-sub000/internal/logging"
)

// State is the orchestrator's current-document state.
type State int

const (
	// StateNoDocument means nothing is loaded.
	StateNoDocument State = iota
	// StateSwitching means Open is in progress.
	StateSwitching
	// StateLoaded means a current session exists.
	StateLoaded
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNoDocument:
		return "no-document"
	case StateSwitching:
		return "switching"
	case StateLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// SwitchResult is the expected outcome of Open.
type SwitchResult int

const (
	// SwitchOK means the document is now current.
	SwitchOK SwitchResult = iota
	// SwitchBusy means another process holds the document; nothing changed.
	SwitchBusy
)

// String returns the result name.
func (r SwitchResult) String() string {
	if r == SwitchBusy {
		return "busy"
	}
	return "ok"
}

// Loader shows a document on the panel.
type Loader interface {
	LoadDocument(ctx context.Context, docID string, page uint32) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, docID string, page uint32) error

// LoadDocument implements Loader.
func (f LoaderFunc) LoadDocument(ctx context.Context, docID string, page uint32) error {
	return f(ctx, docID, page)
}

// CloseHook runs when a session stops being current. Errors are logged.
type CloseHook func(info SessionInfo) error

// Orchestrator owns the current-document slot.
type Orchestrator struct {
	locker  doclock.Locker
	loader  Loader
	special map[string]bool
	onClose CloseHook
	logger  *logging.Logger

	// switchMu serializes Open and Close.
	switchMu sync.Mutex

	// mu guards everything below, shared by the switch path and the
	// pending-op completion path.
	mu      sync.Mutex
	state   State
	current *Session
	parked  map[string]*Session
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSpecial marks built-in documents that are opened without a lock.
func WithSpecial(docIDs ...string) Option {
	return func(o *Orchestrator) {
		for _, id := range docIDs {
			o.special[id] = true
		}
	}
}

// WithCloseHook sets the hook run for each closed session.
func WithCloseHook(h CloseHook) Option {
	return func(o *Orchestrator) {
		o.onClose = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an orchestrator.
func New(locker doclock.Locker, loader Loader, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		locker:  locker,
		loader:  loader,
		special: make(map[string]bool),
		parked:  make(map[string]*Session),
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// IsSpecial reports whether docID is a built-in document.
func (o *Orchestrator) IsSpecial(docID string) bool {
	return o.special[docID]
}

// Open makes docID current at page.
//
// A non-special document takes a shared lock first; if another process
// holds it, Open returns SwitchBusy with a nil error and the previous
// session stays current. Reopening a parked document reuses its session
// and lock. If loading fails the new lock is dropped and the previous
// session stays current. On success the previous session is closed.
func (o *Orchestrator) Open(ctx context.Context, docID string, page uint32) (SwitchResult, error) {
	if docID == "" {
		return SwitchOK, ErrEmptyDocID
	}

	o.switchMu.Lock()
	defer o.switchMu.Unlock()

	o.mu.Lock()
	if o.current != nil && o.current.DocID == docID {
		o.mu.Unlock()
		if err := o.loader.LoadDocument(ctx, docID, page); err != nil {
			return SwitchOK, fmt.Errorf("load %s: %w", docID, err)
		}
		o.SetPage(page)
		return SwitchOK, nil
	}
	prevState := o.state
	o.state = StateSwitching
	next, reused := o.parked[docID]
	if reused {
		delete(o.parked, docID)
		next.releaseRequested = false
	}
	o.mu.Unlock()

	log := o.logger.WithField("doc", docID)

	if !reused {
		var lock doclock.Lock
		special := o.special[docID]
		if !special {
			var err error
			lock, err = o.locker.Acquire(docID)
			if err != nil {
				o.restoreState(prevState)
				if errors.Is(err, doclock.ErrBusy) {
					log.Info("document busy, switch refused")
					return SwitchBusy, nil
				}
				return SwitchOK, fmt.Errorf("lock %s: %w", docID, err)
			}
		}
		next = newSession(docID, special, lock)
	} else {
		log.WithField("session", next.ID).Debug("reusing parked session")
	}

	if err := o.loader.LoadDocument(ctx, docID, page); err != nil {
		o.mu.Lock()
		if reused {
			o.parkOrRelease(next)
		} else {
			o.releaseLocked(next)
		}
		o.state = prevState
		o.mu.Unlock()
		return SwitchOK, fmt.Errorf("load %s: %w", docID, err)
	}

	o.mu.Lock()
	prev := o.current
	next.page = page
	o.current = next
	o.state = StateLoaded
	o.detachLocked(prev)
	o.mu.Unlock()

	if prev != nil {
		o.closeSession(prev)
	}
	log.WithField("session", next.ID).Info("document loaded at page %d", page)
	return SwitchOK, nil
}

// Close closes the current session without opening another.
func (o *Orchestrator) Close() {
	o.switchMu.Lock()
	defer o.switchMu.Unlock()

	o.mu.Lock()
	prev := o.current
	o.current = nil
	o.state = StateNoDocument
	o.detachLocked(prev)
	o.mu.Unlock()

	if prev != nil {
		o.closeSession(prev)
	}
}

func (o *Orchestrator) restoreState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// detachLocked moves a session that just stopped being current into the
// parked table so completions arriving while it closes still find it.
// mu must be held.
func (o *Orchestrator) detachLocked(s *Session) {
	if s != nil {
		o.parked[s.DocID] = s
	}
}

// closeSession runs the close hook and then releases or keeps parked s.
func (o *Orchestrator) closeSession(s *Session) {
	o.mu.Lock()
	info := s.info(false)
	o.mu.Unlock()

	if o.onClose != nil {
		if err := o.runHook(info); err != nil {
			o.logger.WithFields(map[string]any{"doc": s.DocID, "session": s.ID}).Warn("close hook failed: %v", err)
		}
	}

	o.mu.Lock()
	o.parkOrRelease(s)
	o.mu.Unlock()
}

func (o *Orchestrator) runHook(info SessionInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("close hook panic: %v", r)
		}
	}()
	return o.onClose(info)
}

// parkOrRelease must be called with mu held.
func (o *Orchestrator) parkOrRelease(s *Session) {
	s.releaseRequested = true
	if len(s.pending) == 0 {
		o.releaseLocked(s)
		return
	}
	o.parked[s.DocID] = s
	o.logger.WithFields(map[string]any{"doc": s.DocID, "session": s.ID}).
		Debug("parked with pending ops %v", s.pendingOps())
}

// releaseLocked drops s's lock exactly once. mu must be held.
func (o *Orchestrator) releaseLocked(s *Session) {
	if s.released {
		return
	}
	s.released = true
	delete(o.parked, s.DocID)
	if s.lock == nil {
		return
	}
	if err := s.lock.Release(); err != nil {
		o.logger.WithField("doc", s.DocID).Warn("release lock: %v", err)
		return
	}
	o.logger.WithFields(map[string]any{"doc": s.DocID, "session": s.ID}).Debug("lock released")
}

// BeginOp registers a pending operation on the current session and returns
// the document it belongs to. Register before issuing the command whose
// completion the op tracks.
func (o *Orchestrator) BeginOp(name string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return "", ErrNoDocument
	}
	o.current.pending[name] = struct{}{}
	return o.current.DocID, nil
}

// CompleteOp reports that the named op on docID finished. When it was the
// last op of a closed session the session's lock is released.
func (o *Orchestrator) CompleteOp(docID, name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := o.parked[docID]
	if s == nil && o.current != nil && o.current.DocID == docID {
		s = o.current
	}
	if s == nil {
		return fmt.Errorf("%s/%s: %w", docID, name, ErrUnknownOp)
	}
	if _, ok := s.pending[name]; !ok {
		return fmt.Errorf("%s/%s: %w", docID, name, ErrUnknownOp)
	}
	delete(s.pending, name)

	if len(s.pending) == 0 && s.releaseRequested {
		o.releaseLocked(s)
	}
	return nil
}

// SetPage records the current page.
func (o *Orchestrator) SetPage(page uint32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != nil {
		o.current.page = page
	}
}

// Current returns the current document and page.
func (o *Orchestrator) Current() (docID string, page uint32, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return "", 0, false
	}
	return o.current.DocID, o.current.page, true
}

// CurrentSession returns a snapshot of the current session.
func (o *Orchestrator) CurrentSession() (SessionInfo, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return SessionInfo{}, false
	}
	return o.current.info(false), true
}

// Parked returns snapshots of sessions awaiting pending ops.
func (o *Orchestrator) Parked() []SessionInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]SessionInfo, 0, len(o.parked))
	for _, s := range o.parked {
		out = append(out, s.info(true))
	}
	return out
}

// State returns the orchestrator state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Shutdown closes the current session and then releases every parked
// lock regardless of pending ops. It returns the number of sessions whose
// ops were abandoned.
func (o *Orchestrator) Shutdown() int {
	o.Close()

	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, s := range o.parked {
		o.logger.WithField("doc", s.DocID).Warn("abandoning pending ops %v", s.pendingOps())
		o.releaseLocked(s)
		n++
	}
	return n
}
