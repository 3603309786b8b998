// Package app wires the control plane together: configuration, the display
// channel and event loop, the correlator, the document orchestrator and the
// power subsystem. It maps inbound display-server events to handlers and
// owns the process lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Hirshol/equill-core-apps-sub000/internal/camera"
	"github.com/Hirshol/equill-core-apps-sub000/internal/channel"
	"github.com/Hirshol/equill-core-apps-sub000/internal/config"
	"github.com/Hirshol/equill-core-apps-sub000/internal/correlator"
	"github.com/Hirshol/equill-core-apps-sub000/internal/display"
	"github.com/Hirshol/equill-core-apps-sub000/internal/doclock"
	"github.com/Hirshol/equill-core-apps-sub000/internal/document"
	"github.com/Hirshol/equill-core-apps-sub000/internal/event"
	"github.com/Hirshol/equill-core-apps-sub000/internal/hooks"
	"github.com/Hirshol/equill-core-apps-sub000/internal/logging"
	"github.com/Hirshol/equill-core-apps-sub000/internal/power"
)

// DefaultShutdownTimeout bounds Shutdown when the caller's context has no
// deadline.
const DefaultShutdownTimeout = 5 * time.Second

// Application is the central coordinator for all control-plane components.
type Application struct {
	mu     sync.RWMutex
	config *config.Config
	opts   Options

	logger   *logging.Logger
	metrics  *Metrics
	observer Observer
	hooks    *hooks.Script

	// Display link
	queue      *event.Queue
	loop       *event.Loop
	channel    *channel.Channel
	correlator *correlator.Correlator
	display    *display.Client

	// Camera link, nil when the camera server is absent
	cameraOut *channel.Outbound
	camera    *camera.Client

	// Documents
	documents *document.Orchestrator
	strokes   *pageTracker

	// Power
	power     *power.Manager
	sequencer *power.Sequencer
	network   *power.NetworkMonitor

	watcher *config.Watcher

	// State
	running  atomic.Bool
	stopped  atomic.Bool
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// Options configures the application. Every collaborator left nil is
// created from the configuration: unixgram sockets, flock(2) locks, the
// sysfs power interfaces and the Lua hook script. Tests inject fakes.
type Options struct {
	// ConfigPath enables live reload of the file the config came from.
	ConfigPath string

	Logger   *logging.Logger
	Observer Observer

	Command channel.Sender
	Events  channel.Receiver
	Camera  channel.Sender

	Locker  doclock.Locker
	Clock   power.Clock
	Radios  power.Radios
	Backend power.Backend
}

// New creates an Application from a validated configuration. Nothing runs
// until Start.
func New(cfg *config.Config, opts Options) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}

	app := &Application{
		config:   cfg,
		opts:     opts,
		metrics:  NewMetrics(),
		observer: opts.Observer,
		strokes:  newPageTracker(),
	}
	app.bgCtx, app.bgCancel = context.WithCancel(context.Background())

	if err := app.bootstrap(); err != nil {
		app.bgCancel()
		return nil, err
	}
	return app, nil
}

// Start starts the event loop, the receive goroutine and the idle timers.
func (app *Application) Start() error {
	if app.stopped.Load() {
		return ErrNotRunning
	}
	if app.running.Swap(true) {
		return ErrAlreadyRunning
	}
	if err := app.loop.Start(); err != nil {
		return NewComponentError("loop", "start", err)
	}
	if err := app.channel.Start(); err != nil {
		return NewComponentError("channel", "start", err)
	}
	app.power.Start()

	cfg := app.Config()
	app.logger.Info("started: %s", cfg)
	return nil
}

// Shutdown stops everything in reverse dependency order. Outstanding
// requests are cancelled, the loop is stopped with its STOP sentinel and
// every document lock is released. It also releases an Application that
// was never started.
func (app *Application) Shutdown(ctx context.Context) error {
	if app.stopped.Swap(true) {
		return ErrNotRunning
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultShutdownTimeout)
		defer cancel()
	}

	// 1. Abort any suspend in progress and stop background work
	app.sequencer.Wake()
	app.bgCancel()
	if app.watcher != nil {
		app.watcher.Close() //nolint:errcheck
	}
	app.power.Stop()

	// 2. Release every waiter, then stop the loop
	if n := app.correlator.CancelAll(); n > 0 {
		app.logger.Info("cancelled %d outstanding requests", n)
	}
	app.correlator.Close()

	var timedOut bool
	if app.loop.IsRunning() {
		if err := app.loop.Stop(ctx); err != nil {
			app.logger.Warn("event loop stop: %v", err)
			timedOut = true
		}
	}

	// 3. Sockets
	if err := app.channel.Close(); err != nil {
		app.logger.Warn("channel close: %v", err)
	}
	if app.cameraOut != nil {
		if app.camera.Running() {
			app.camera.Stop() //nolint:errcheck
		}
		app.cameraOut.Close() //nolint:errcheck
	}

	if app.hooks != nil {
		app.hooks.Close() //nolint:errcheck
	}

	// 4. Documents
	if n := app.documents.Shutdown(); n > 0 {
		app.logger.Warn("released %d documents with pending operations", n)
	}

	done := make(chan struct{})
	go func() {
		app.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		timedOut = true
	}

	app.logStats()
	app.running.Store(false)
	if timedOut {
		return ErrShutdownTimeout
	}
	return nil
}

func (app *Application) logStats() {
	ls := app.loop.Stats()
	cs := app.channel.Stats()
	ms := app.metrics.Snapshot()
	app.logger.WithFields(map[string]any{
		"received":   cs.Received,
		"malformed":  cs.Malformed,
		"unknown":    cs.Unknown,
		"sent":       cs.Sent,
		"dispatched": ls.Dispatched,
		"failed":     ls.Failed,
		"panicked":   ls.Panicked,
		"removed":    ls.Removed,
		"splits":     ls.Splits,
		"switches":   ms.Switches,
		"busy":       ms.SwitchesBusy,
		"suspends":   ms.Suspends,
		"aborted":    ms.SuspendsAborted,
	}).Info("stopped after %s", ms.Uptime.Round(time.Second))
}

// IsRunning returns true between Start and Shutdown.
func (app *Application) IsRunning() bool {
	return app.running.Load() && !app.stopped.Load()
}

// OpenDocument makes docID the current document at page. A page of the
// outgoing document that still has unsaved strokes is registered as a
// pending operation first, so the outgoing lock outlives the stroke file
// write. A document locked elsewhere yields SwitchBusy.
//
// Called from an event loop handler, OpenDocument requires a prior
// event.Split.
func (app *Application) OpenDocument(ctx context.Context, docID string, page uint32) (document.SwitchResult, error) {
	if _, cur, ok := app.documents.Current(); ok && app.strokes.take(cur) {
		app.beginStrokeFile(cur)
	}
	res, err := app.documents.Open(ctx, docID, page)
	app.metrics.RecordSwitch(res, err)
	return res, err
}

// Suspend runs one suspend sequence. After a completed sleep the device
// has resumed and the remembered document is reopened.
func (app *Application) Suspend(ctx context.Context, kind power.Kind) (power.SuspendOutcome, error) {
	outcome, err := app.sequencer.Suspend(ctx, kind)
	if errors.Is(err, power.ErrSuspendInProgress) {
		return outcome, err
	}
	app.metrics.RecordSuspend(outcome)
	if err == nil && outcome == power.SuspendCompleted && kind == power.KindSleep {
		if rerr := app.resume(ctx, false); rerr != nil {
			app.logger.Warn("resume: %v", rerr)
		}
	}
	return outcome, err
}

// requestSuspend starts a suspend sequence in the background.
func (app *Application) requestSuspend(kind power.Kind) {
	if app.stopped.Load() {
		return
	}
	app.bg.Add(1)
	go func() {
		defer app.bg.Done()
		outcome, err := app.Suspend(app.bgCtx, kind)
		switch {
		case errors.Is(err, power.ErrSuspendInProgress):
			app.logger.Debug("%s request ignored: %v", kind, err)
		case err != nil:
			app.logger.Warn("%s: %s: %v", kind, outcome, err)
		default:
			app.logger.Info("%s: %s", kind, outcome)
		}
	}()
}

// sleepTimeout is the power manager's sleep-timer callback.
func (app *Application) sleepTimeout() {
	app.requestSuspend(power.KindSleep)
}

// resume brings a sleeping device back and reopens the remembered
// document. inLoop must be true when called from an event loop handler.
func (app *Application) resume(ctx context.Context, inLoop bool) error {
	rem, ok := app.sequencer.Resume(ctx)
	if !ok {
		return nil
	}
	app.metrics.RecordResume()
	if !rem.Valid {
		return nil
	}
	if inLoop {
		if err := event.Split(ctx); err != nil {
			return err
		}
	}
	res, err := app.OpenDocument(ctx, rem.DocID, rem.Page)
	if err != nil {
		return fmt.Errorf("reopen %s: %w", rem.DocID, err)
	}
	if res == document.SwitchBusy {
		app.logger.Warn("reopen %s: %s", rem.DocID, res)
	}
	return nil
}

// loadDocument is the orchestrator's loader.
func (app *Application) loadDocument(ctx context.Context, docID string, page uint32) error {
	return app.display.Load(ctx, app.documentPath(docID), page)
}

func (app *Application) documentPath(docID string) string {
	return filepath.Join(app.Config().Documents.Root, docID)
}

// documentClosed is the orchestrator's close hook.
func (app *Application) documentClosed(info document.SessionInfo) error {
	app.strokes.reset()
	log := app.logger.WithFields(map[string]any{"doc": info.DocID, "session": info.ID})
	if len(info.PendingOps) > 0 {
		log.Info("closed at page %d, waiting for %v", info.Page, info.PendingOps)
	} else {
		log.Info("closed at page %d", info.Page)
	}
	return nil
}

// Config returns the active configuration.
func (app *Application) Config() *config.Config {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.config
}

// Logger returns the root logger.
func (app *Application) Logger() *logging.Logger {
	return app.logger
}

// Metrics returns the application's metrics.
func (app *Application) Metrics() *Metrics {
	return app.metrics
}

// Display returns the display command client.
func (app *Application) Display() *display.Client {
	return app.display
}

// Camera returns the camera client, or nil without a camera server.
func (app *Application) Camera() *camera.Client {
	return app.camera
}

// Documents returns the document orchestrator.
func (app *Application) Documents() *document.Orchestrator {
	return app.documents
}

// Power returns the power manager.
func (app *Application) Power() *power.Manager {
	return app.power
}

// Network returns the radio activity monitor.
func (app *Application) Network() *power.NetworkMonitor {
	return app.network
}

// Loop returns the event loop.
func (app *Application) Loop() *event.Loop {
	return app.loop
}

// Channel returns the display channel.
func (app *Application) Channel() *channel.Channel {
	return app.channel
}
