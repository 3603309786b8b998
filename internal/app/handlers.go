package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Hirshol/equill-core-apps-sub000/internal/channel"
	"github.com/Hirshol/equill-core-apps-sub000/internal/display"
	"github.com/Hirshol/equill-core-apps-sub000/internal/document"
	"github.com/Hirshol/equill-core-apps-sub000/internal/event"
	"github.com/Hirshol/equill-core-apps-sub000/internal/power"
	"github.com/Hirshol/equill-core-apps-sub000/internal/wire"
)

// eventFunc handles one decoded inbound event.
type eventFunc func(ctx context.Context, ev channel.Event) error

// registerHandlers maps every inbound event id to its handler.
func (app *Application) registerHandlers() error {
	inline := map[channel.EventID]channel.InlineFunc{
		channel.EventReadComplete:   app.onComplete,
		channel.EventRenderComplete: app.onComplete,
		channel.EventError:          app.onError,
	}
	for id, fn := range inline {
		if err := app.channel.HandleInline(id, fn); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
	}

	queued := map[channel.EventID]eventFunc{
		channel.EventStroke:          app.onStroke,
		channel.EventPageStop:        app.onPageStop,
		channel.EventSubmit:          app.onSubmit,
		channel.EventStrokeFileReady: app.onStrokeFileReady,
		channel.EventOrientation:     app.onOrientation,
		channel.EventSleep:           app.onSleep,
		channel.EventDoze:            app.onDoze,
		channel.EventWake:            app.onWake,
		channel.EventShutdown:        app.onShutdown,
		channel.EventFuelGauge:       app.onFuelGauge,
		channel.EventViewport:        app.onViewport,
		channel.EventSleepAck:        app.onSleepAck,
	}
	for id, fn := range queued {
		if err := app.channel.Handle(id, app.wrap(fn)); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
	}
	return nil
}

// wrap adapts fn to event.Handler and times it.
func (app *Application) wrap(fn eventFunc) event.Handler {
	return event.HandlerFunc(func(ctx context.Context, args any) error {
		ev, ok := args.(channel.Event)
		if !ok {
			return fmt.Errorf("unexpected args %T", args)
		}
		start := time.Now()
		err := fn(ctx, ev)
		app.metrics.RecordEvent(time.Since(start), err)
		return err
	})
}

// Completion events run on the receive goroutine and must not block.

func (app *Application) onComplete(ev channel.Event) {
	if !app.correlator.Resolve(ev.Int(0)) {
		app.logger.Debug("%s for unknown request %d", ev.Name(), ev.Int(0))
	}
}

func (app *Application) onError(ev channel.Event) {
	id, code := ev.Int(0), ev.Int(1)
	app.logger.WithFields(map[string]any{"request_id": id, "code": code}).Warn("display error: %s", ev.Text(0))
	if id != 0 {
		app.correlator.Fail(id, code)
	}
}

func strokeFileOp(page uint32) string {
	return fmt.Sprintf("stroke-file/%d", page)
}

// beginStrokeFile registers the stroke file write for page as a pending
// operation on the current document.
func (app *Application) beginStrokeFile(page uint32) {
	docID, err := app.documents.BeginOp(strokeFileOp(page))
	if err != nil {
		app.logger.Debug("stroke file for page %d: %v", page, err)
		return
	}
	app.logger.WithField("doc", docID).Debug("awaiting stroke file for page %d", page)
}

// onStroke: page, region, x, y, doc.
func (app *Application) onStroke(_ context.Context, ev channel.Event) error {
	app.power.Activity()
	app.strokes.mark(ev.Int(0))
	return nil
}

// onPageStop: page, prev_page, doc. Strokes still queued for the page being
// left are dropped; the page's stroke file becomes a pending operation.
func (app *Application) onPageStop(_ context.Context, ev channel.Event) error {
	app.power.Activity()
	page, prev := ev.Int(0), ev.Int(1)

	removed := app.queue.RemoveIf(func(e event.Entry) bool {
		sev, ok := e.Args.(channel.Event)
		if !ok || sev.ID != channel.EventStroke || sev.Int(0) != prev {
			return false
		}
		app.strokes.mark(prev)
		return true
	})
	if removed > 0 {
		app.logger.Debug("dropped %d queued strokes for page %d", removed, prev)
	}

	if prev != page && app.strokes.take(prev) {
		app.beginStrokeFile(prev)
	}
	app.documents.SetPage(page)
	return nil
}

// onStrokeFileReady: page, doc, path.
func (app *Application) onStrokeFileReady(_ context.Context, ev channel.Event) error {
	err := app.documents.CompleteOp(ev.Text(0), strokeFileOp(ev.Int(0)))
	if errors.Is(err, document.ErrUnknownOp) {
		app.logger.Debug("unsolicited stroke file %s", ev.Text(1))
		return nil
	}
	return err
}

// onSubmit: page, overlay, form. The form's overlay is closed and the
// handler waits for the display server to confirm before passing the form
// on.
func (app *Application) onSubmit(ctx context.Context, ev channel.Event) error {
	app.power.Activity()
	page, overlay := ev.Int(0), ev.Int(1)

	if err := event.Split(ctx); err != nil {
		return err
	}
	if err := app.display.Call(ctx, display.CloseOverlay(overlay, wire.TabletFlash)); err != nil {
		return fmt.Errorf("close overlay %d: %w", overlay, err)
	}

	docID, _, _ := app.documents.Current()
	app.observer.FormSubmitted(docID, page, overlay, ev.Text(0))
	return nil
}

func (app *Application) onOrientation(_ context.Context, ev channel.Event) error {
	app.observer.OrientationChanged(ev.Int(0))
	return nil
}

func (app *Application) onFuelGauge(_ context.Context, ev channel.Event) error {
	app.observer.BatteryChanged(ev.Int(0), ev.Int(1) != 0)
	return nil
}

// onViewport: page, x, y, width, height.
func (app *Application) onViewport(_ context.Context, ev channel.Event) error {
	app.observer.ViewportChanged(ev.Int(0), display.Region{
		X: ev.Int(1), Y: ev.Int(2), Width: ev.Int(3), Height: ev.Int(4),
	})
	return nil
}

func (app *Application) onSleep(_ context.Context, ev channel.Event) error {
	app.logger.Info("sleep requested (reason %d)", ev.Int(0))
	app.requestSuspend(power.KindSleep)
	return nil
}

func (app *Application) onShutdown(context.Context, channel.Event) error {
	app.logger.Info("shutdown requested")
	app.requestSuspend(power.KindHalt)
	return nil
}

func (app *Application) onDoze(context.Context, channel.Event) error {
	app.power.Doze()
	return nil
}

func (app *Application) onSleepAck(context.Context, channel.Event) error {
	app.sequencer.AckSleep()
	return nil
}

// onWake aborts a suspend in progress, or resumes a sleeping device and
// reopens the document that was open when it went to sleep.
func (app *Application) onWake(ctx context.Context, ev channel.Event) error {
	if app.sequencer.Wake() {
		app.logger.Info("wake (reason %d) aborts suspend", ev.Int(0))
	}
	return app.resume(ctx, true)
}
