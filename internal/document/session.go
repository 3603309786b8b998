package document

import (
	"sort"

	"github.com/google/uuid"

	"github.com/Hirshol/equill-core-apps-sub000/internal/doclock"
)

// Session is one opened document. All fields except ID, DocID and Special
// are guarded by the owning Orchestrator's mutex.
type Session struct {
	// ID distinguishes successive sessions of the same document in logs.
	ID uuid.UUID

	// DocID names the document.
	DocID string

	// Special marks a built-in document that takes no lock.
	Special bool

	lock             doclock.Lock
	page             uint32
	pending          map[string]struct{}
	releaseRequested bool
	released         bool
}

func newSession(docID string, special bool, lock doclock.Lock) *Session {
	return &Session{
		ID:      uuid.New(),
		DocID:   docID,
		Special: special,
		lock:    lock,
		pending: make(map[string]struct{}),
	}
}

func (s *Session) pendingOps() []string {
	ops := make([]string, 0, len(s.pending))
	for op := range s.pending {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// SessionInfo is a snapshot of a session.
type SessionInfo struct {
	ID         uuid.UUID
	DocID      string
	Special    bool
	Page       uint32
	PendingOps []string
	Parked     bool
}

func (s *Session) info(parked bool) SessionInfo {
	return SessionInfo{
		ID:         s.ID,
		DocID:      s.DocID,
		Special:    s.Special,
		Page:       s.page,
		PendingOps: s.pendingOps(),
		Parked:     parked,
	}
}
