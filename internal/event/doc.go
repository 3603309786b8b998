// Package event provides the priority queue and dispatch loop that process
// inbound display-server events.
//
// # Queue
//
// Entries wait in four bands, served strictly in order:
//
//	Immediate < High < Normal < Low
//
// Within a band entries are served in arrival order. RemoveIf discards
// entries matching a predicate (used when a page change invalidates strokes
// queued for the page being left) without reordering the rest.
//
// # Loop
//
// A Loop runs one draining worker. Each entry's handler runs to completion
// before the next entry is taken; an error or panic in a handler is logged
// and counted and the loop moves on. A higher-priority entry never preempts
// a handler that is already running.
//
// Stop queues a STOP sentinel at Immediate priority. Whatever is still
// queued behind it is dropped.
//
// # Blocking Handlers
//
// A handler that has to wait for another event (for example, closing an
// overlay and waiting for the display server to acknowledge it) would
// deadlock a single consumer, because the acknowledgement can only be
// dispatched by the same worker. Such a handler calls Split before blocking:
//
//	func(ctx context.Context, args any) error {
//	    if err := event.Split(ctx); err != nil {
//	        return err
//	    }
//	    return waitForAck(ctx)
//	}
//
// Split starts a successor worker and retires the current one once the
// handler returns. The number of workers parked this way is capped
// (WithMaxSplitDepth, default DefaultMaxSplitDepth); beyond the cap Split
// fails with ErrSplitDepth. The ctx given to handlers is cancelled by Stop,
// so a parked handler never outlives the loop.
package event
