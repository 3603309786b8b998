package event

import (
	"context"
	"sync"
	"sync/atomic"
)

// Queue holds entries in strict priority order, FIFO within a priority band.
// It is unbounded; the producers (the inbound datagram reader) are paced by
// the peer, not by the queue.
type Queue struct {
	mu     sync.Mutex
	bands  [numPriorities][]Entry
	notify chan struct{}

	enqueued atomic.Uint64
	removed  atomic.Uint64
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push appends an entry to the end of its priority band.
func (q *Queue) Push(e Entry) error {
	if !e.Priority.Valid() {
		return ErrInvalidPriority
	}
	if e.Handler == nil && !e.stop {
		return ErrNilHandler
	}

	q.mu.Lock()
	q.bands[e.Priority] = append(q.bands[e.Priority], e)
	q.mu.Unlock()

	if !e.stop {
		q.enqueued.Add(1)
	}
	q.signal()
	return nil
}

func (q *Queue) pushStop() {
	_ = q.Push(Entry{Priority: PriorityImmediate, Name: "STOP", stop: true})
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryPop removes and returns the highest-priority entry without blocking.
func (q *Queue) TryPop() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *Queue) popLocked() (Entry, bool) {
	for p := range q.bands {
		band := q.bands[p]
		if len(band) == 0 {
			continue
		}
		e := band[0]
		band[0] = Entry{}
		q.bands[p] = band[1:]
		return e, true
	}
	return Entry{}, false
}

// Pop blocks until an entry is available or ctx is done.
func (q *Queue) Pop(ctx context.Context) (Entry, error) {
	for {
		q.mu.Lock()
		e, ok := q.popLocked()
		more := q.lenLocked() > 0
		q.mu.Unlock()

		if ok {
			if more {
				q.signal()
			}
			return e, nil
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			return Entry{}, ctx.Err()
		}
	}
}

// RemoveIf discards every queued entry for which pred returns true and
// returns how many were removed. The relative order of the remaining
// entries is unchanged.
func (q *Queue) RemoveIf(pred func(Entry) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for p, band := range q.bands {
		kept := band[:0]
		for _, e := range band {
			if !e.stop && pred(e) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		for i := len(kept); i < len(band); i++ {
			band[i] = Entry{}
		}
		q.bands[p] = kept
	}
	q.removed.Add(uint64(removed))
	return removed
}

// Len returns the number of waiting entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

func (q *Queue) lenLocked() int {
	n := 0
	for _, band := range q.bands {
		n += len(band)
	}
	return n
}
