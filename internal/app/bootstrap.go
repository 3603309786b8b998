package app

import (
	"errors"
	"io"

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
	"github.com/Hirshol/equill-core-apps-sub000/internal/wire"
)

// bootstrap initializes all components in dependency order. Anything
// opened before a failure is closed again.
func (app *Application) bootstrap() (err error) {
	var closers []io.Closer
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i].Close() //nolint:errcheck
			}
		}
	}()

	cfg := app.config
	order := cfg.ByteOrderValue()

	// 1. Logger
	app.logger = app.opts.Logger
	if app.logger == nil {
		lc := logging.DefaultConfig()
		lc.Level = cfg.LogLevel()
		app.logger = logging.New(lc)
	}

	// Observer: injected, the hook script, or nothing
	switch {
	case app.observer != nil:
	case cfg.Hooks.Script != "":
		s, err := hooks.Load(cfg.Hooks.Script,
			hooks.WithTimeout(cfg.Hooks.Timeout.Std()),
			hooks.WithLogger(app.logger.WithComponent("hooks")))
		if err != nil {
			return &InitError{Component: "hooks", Err: err}
		}
		closers = append(closers, s)
		app.hooks = s
		app.observer = s
	default:
		app.observer = NopObserver{}
	}

	// 2. Display channel: command socket, event socket, loop
	family := wire.TabletFamily(cfg.Channel.TabletMagic)
	cmd := app.opts.Command
	if cmd == nil {
		s, err := channel.DialUnixgram(cfg.Channel.CommandSocket)
		if err != nil {
			return &InitError{Component: "command socket", Err: err}
		}
		cmd = s
	}
	out := channel.NewOutbound(wire.NewCodec(family, order), cmd, cfg.Channel.CommandSocket)
	closers = append(closers, out)

	recv := app.opts.Events
	if recv == nil {
		r, err := channel.ListenUnixgram(cfg.Channel.EventSocket)
		if err != nil {
			return &InitError{Component: "event socket", Err: err}
		}
		recv = r
	}
	closers = append(closers, recv)

	app.queue = event.NewQueue()
	app.loop = event.NewLoop(app.queue,
		event.WithLogger(app.logger.WithComponent("loop")),
		event.WithMaxSplitDepth(cfg.Loop.MaxSplitDepth),
	)
	app.channel = channel.New(out, recv, app.loop,
		channel.WithLogger(app.logger.WithComponent("channel")),
		channel.WithSystemRegions(cfg.Channel.SystemRegions...),
		channel.WithMaxDatagram(cfg.Channel.MaxDatagram),
	)

	// 3. Correlator and command clients
	app.correlator = correlator.New(app.logger.WithComponent("correlator"))
	app.display = display.NewClient(app.channel, app.correlator, family, app.logger.WithComponent("display"))

	camSender := app.opts.Camera
	if camSender == nil && cfg.Channel.CameraSocket != "" {
		s, err := channel.DialUnixgram(cfg.Channel.CameraSocket)
		if err != nil {
			// The camera server is optional.
			app.logger.Warn("camera unavailable: %v", err)
		} else {
			camSender = s
		}
	}
	if camSender != nil {
		app.cameraOut = channel.NewOutbound(
			wire.NewCodec(wire.CameraFamily(cfg.Channel.CameraMagic), order),
			camSender, cfg.Channel.CameraSocket)
		closers = append(closers, app.cameraOut)
		app.camera = camera.NewClient(app.cameraOut, app.logger)
	}

	// 4. Documents
	locker := app.opts.Locker
	if locker == nil {
		locker = doclock.NewFileLocker(cfg.Documents.Root, cfg.Documents.LockName)
	}
	app.documents = document.New(locker, document.LoaderFunc(app.loadDocument),
		document.WithSpecial(cfg.Documents.Special...),
		document.WithCloseHook(app.documentClosed),
		document.WithLogger(app.logger.WithComponent("documents")),
	)

	// 5. Power
	clock := app.opts.Clock
	if clock == nil {
		clock = power.NewGovernorClock(cfg.Power.GovernorPath)
	}
	app.power = power.NewManager(&panelClock{clock: clock, display: app.display},
		cfg.Power.ReadyTimeout.Std(), cfg.Power.SleepTimeout.Std(),
		app.sleepTimeout, app.logger.WithComponent("power"))

	radios := app.opts.Radios
	if radios == nil {
		radios = &power.RFKill{Root: cfg.Power.RFKillRoot}
	}
	app.network = power.NewNetworkMonitor(radios)

	backend := app.opts.Backend
	if backend == nil {
		backend = &power.SysfsBackend{StatePath: cfg.Power.StatePath}
	}
	app.sequencer = power.NewSequencer(power.SequencerConfig{
		Manager:         app.power,
		Display:         app.display,
		Network:         app.network,
		Backend:         backend,
		Documents:       app.documents,
		Logger:          app.logger.WithComponent("suspend"),
		SleepAckTimeout: cfg.Power.SleepAckTimeout.Std(),
		NetworkTimeout:  cfg.Power.NetworkTimeout.Std(),
	})

	// 6. Routes
	if err := app.registerHandlers(); err != nil {
		return &InitError{Component: "event routes", Err: err}
	}

	// 7. Live config
	if app.opts.ConfigPath != "" {
		w, err := config.NewWatcher(app.opts.ConfigPath,
			config.WithWatcherLogger(app.logger.WithComponent("config")))
		if err != nil {
			app.logger.Warn("config watcher disabled: %v", err)
		} else {
			w.OnChange(app.applyConfig)
			app.watcher = w
		}
	}

	return nil
}

// applyConfig applies the settings that can change without a restart.
func (app *Application) applyConfig(cfg *config.Config) {
	app.logger.SetLevel(cfg.LogLevel())
	app.power.SetTimeouts(cfg.Power.ReadyTimeout.Std(), cfg.Power.SleepTimeout.Std())
	app.sequencer.SetTimeouts(cfg.Power.SleepAckTimeout.Std(), cfg.Power.NetworkTimeout.Std())

	app.mu.Lock()
	prev := app.config
	app.config = cfg
	app.mu.Unlock()

	if prev.Channel.CommandSocket != cfg.Channel.CommandSocket ||
		prev.Channel.EventSocket != cfg.Channel.EventSocket ||
		prev.Documents.Root != cfg.Documents.Root {
		app.logger.Warn("socket and document root changes take effect on restart")
	}
	if prev.Hooks != cfg.Hooks {
		app.logger.Warn("hook script changes take effect on restart")
	}
}

// panelClock dozes the panel together with the CPU.
type panelClock struct {
	clock   power.Clock
	display *display.Client
}

func (p *panelClock) SetFull() error {
	return errors.Join(p.clock.SetFull(), p.display.Post(display.Wake()))
}

func (p *panelClock) SetReduced() error {
	return errors.Join(p.clock.SetReduced(), p.display.Post(display.Doze()))
}
