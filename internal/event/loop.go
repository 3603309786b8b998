package event

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/Hirshol/equill-core-apps-sub000/internal/logging"
)

// DefaultMaxSplitDepth caps how many workers may be parked in Split at once.
const DefaultMaxSplitDepth = 4

// Loop drains a Queue with one active worker goroutine. A handler that
// must block on a future event calls Split first: the current worker
// finishes that handler and then exits, while a freshly started successor
// keeps draining the queue so the awaited event can be dispatched.
type Loop struct {
	queue         *Queue
	logger        *logging.Logger
	maxSplitDepth int

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
	stopped atomic.Bool
	nextID  atomic.Int64

	splitDepth atomic.Int32
	dispatched atomic.Uint64
	failed     atomic.Uint64
	panicked   atomic.Uint64
	splits     atomic.Uint64
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the loop's logger.
func WithLogger(l *logging.Logger) Option {
	return func(lp *Loop) {
		if l != nil {
			lp.logger = l
		}
	}
}

// WithMaxSplitDepth sets the nesting cap for Split.
func WithMaxSplitDepth(n int) Option {
	return func(lp *Loop) {
		if n > 0 {
			lp.maxSplitDepth = n
		}
	}
}

// NewLoop creates a loop draining q.
func NewLoop(q *Queue, opts ...Option) *Loop {
	l := &Loop{
		queue:         q,
		logger:        logging.Nop(),
		maxSplitDepth: DefaultMaxSplitDepth,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Queue returns the queue the loop drains.
func (l *Loop) Queue() *Queue {
	return l.queue
}

// Start starts the first worker.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped.Load() {
		return ErrLoopStopped
	}
	if l.running.Load() {
		return ErrLoopRunning
	}

	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.running.Store(true)
	l.spawn()
	return nil
}

// Submit queues an entry for dispatch.
func (l *Loop) Submit(e Entry) error {
	if l.stopped.Load() {
		return ErrLoopStopped
	}
	return l.queue.Push(e)
}

// Stop queues the STOP sentinel at immediate priority, cancels the context
// seen by handlers so that any worker parked in Split is released, and waits
// for every worker to exit or ctx to expire. Entries still queued behind
// STOP are not dispatched.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running.Load() || l.stopped.Swap(true) {
		l.mu.Unlock()
		return ErrLoopStopped
	}
	l.queue.pushStop()
	l.cancel()
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.running.Store(false)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning returns true between Start and Stop.
func (l *Loop) IsRunning() bool {
	return l.running.Load() && !l.stopped.Load()
}

// Stats returns loop statistics.
func (l *Loop) Stats() Stats {
	return Stats{
		Enqueued:   l.queue.enqueued.Load(),
		Removed:    l.queue.removed.Load(),
		Dispatched: l.dispatched.Load(),
		Failed:     l.failed.Load(),
		Panicked:   l.panicked.Load(),
		Splits:     l.splits.Load(),
		SplitDepth: int(l.splitDepth.Load()),
		QueueDepth: l.queue.Len(),
	}
}

type workerKey struct{}

type worker struct {
	id    int64
	loop  *Loop
	split bool
}

func (l *Loop) spawn() {
	w := &worker{id: l.nextID.Add(1), loop: l}
	l.wg.Add(1)
	go l.run(w)
}

func (l *Loop) run(w *worker) {
	defer l.wg.Done()
	log := l.logger.WithField("worker", w.id)
	log.Debug("worker started")

	for {
		e, err := l.queue.Pop(l.ctx)
		if err != nil {
			log.Debug("worker exiting: %v", err)
			return
		}
		if e.stop {
			log.Debug("worker received STOP")
			return
		}

		l.dispatch(w, e)

		if w.split {
			l.splitDepth.Add(-1)
			log.Debug("worker retiring after split")
			return
		}
	}
}

func (l *Loop) dispatch(w *worker, e Entry) {
	l.dispatched.Add(1)
	ctx := context.WithValue(l.ctx, workerKey{}, w)

	defer func() {
		if r := recover(); r != nil {
			l.panicked.Add(1)
			perr := &PanicError{Entry: e.Name, Value: r, Stack: string(debug.Stack())}
			l.logger.WithField("entry", e.Name).Error("%v\n%s", perr, perr.Stack)
		}
	}()

	if err := e.Handler.Handle(ctx, e.Args); err != nil {
		l.failed.Add(1)
		l.logger.WithFields(map[string]any{
			"entry":    e.Name,
			"priority": e.Priority,
		}).Warn("handler failed: %v", err)
	}
}

// split hands queue draining to a new worker. The calling worker exits
// once its current handler returns.
func (l *Loop) split(w *worker) error {
	if w.split {
		return nil
	}
	for {
		depth := l.splitDepth.Load()
		if int(depth) >= l.maxSplitDepth {
			return ErrSplitDepth
		}
		if l.splitDepth.CompareAndSwap(depth, depth+1) {
			break
		}
	}

	w.split = true
	l.splits.Add(1)
	l.logger.WithField("worker", w.id).Debug("splitting, depth %d", l.splitDepth.Load())
	l.spawn()
	return nil
}

// Split must be called by a handler before it blocks on an event that can
// only be dispatched by this loop. It starts a successor worker and marks
// the calling worker to exit after the handler returns. The handler should
// then block using the ctx it was given, which is cancelled when the loop
// stops. Calling Split more than once from the same handler is a no-op.
//
// Split returns ErrNotInLoop outside a handler and ErrSplitDepth when the
// nesting cap is reached; in both cases the handler must not block.
func Split(ctx context.Context) error {
	w, ok := ctx.Value(workerKey{}).(*worker)
	if !ok {
		return ErrNotInLoop
	}
	return w.loop.split(w)
}

// InLoop reports whether ctx belongs to a handler running on a loop worker.
func InLoop(ctx context.Context) bool {
	_, ok := ctx.Value(workerKey{}).(*worker)
	return ok
}
