// Package hooks runs a user-supplied Lua script on device notifications.
//
// The script defines any of these global functions; missing ones are
// skipped:
//
//	function on_form_submitted(doc, page, overlay, form) end
//	function on_battery(percent, charging) end
//	function on_orientation(degrees) end
//	function on_viewport(page, region) end -- region.x, .y, .width, .height
//
// Scripts run in a restricted state: only the base, table, string and math
// libraries are open, the file-loading builtins are removed and print and
// log write to the daemon log. Every call is bounded by a timeout.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/Hirshol/equill-core-apps-sub000/internal/display"
	"github.com/Hirshol/equill-core-apps-sub000/internal/logging"
)

// DefaultTimeout bounds one hook call.
const DefaultTimeout = 250 * time.Millisecond

// Hook function names.
const (
	FormSubmitted      = "on_form_submitted"
	BatteryChanged     = "on_battery"
	OrientationChanged = "on_orientation"
	ViewportChanged    = "on_viewport"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("hook script closed")

	// ErrTimeout is returned when a hook runs past its timeout.
	ErrTimeout = errors.New("hook timed out")
)

// Stats counts hook calls.
type Stats struct {
	Calls    uint64
	Failed   uint64
	TimedOut uint64
}

// Script is a loaded hook script. gopher-lua states are single-threaded;
// calls are serialized.
type Script struct {
	mu     sync.Mutex
	L      *lua.LState
	path   string
	closed bool

	timeout time.Duration
	logger  *logging.Logger

	calls    atomic.Uint64
	failed   atomic.Uint64
	timedOut atomic.Uint64
}

// Option configures a Script.
type Option func(*Script)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Script) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger print and log write to.
func WithLogger(l *logging.Logger) Option {
	return func(s *Script) {
		if l != nil {
			s.logger = l
		}
	}
}

// Load creates a restricted state and runs the script at path once.
func Load(path string, opts ...Option) (*Script, error) {
	s := &Script{
		path:    path,
		timeout: DefaultTimeout,
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	if err := s.install(); err != nil {
		s.L.Close()
		return nil, fmt.Errorf("hooks %s: %w", path, err)
	}

	s.mu.Lock()
	err := s.withTimeout(func() error { return s.L.DoFile(path) })
	s.mu.Unlock()
	if err != nil {
		s.L.Close()
		return nil, fmt.Errorf("hooks %s: %w", path, err)
	}

	s.logger.Info("loaded %s (%s)", path, strings.Join(s.Defined(), ", "))
	return s, nil
}

func (s *Script) install() error {
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		err := s.L.CallByParam(lua.P{Fn: s.L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name))
		if err != nil {
			return fmt.Errorf("open %s: %w", lib.name, err)
		}
	}

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		s.L.SetGlobal(name, lua.LNil)
	}

	logFn := s.L.NewFunction(s.luaLog)
	s.L.SetGlobal("print", logFn)
	s.L.SetGlobal("log", logFn)
	return nil
}

// luaLog joins its arguments with spaces.
func (s *Script) luaLog(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	s.logger.Info("%s", strings.Join(parts, " "))
	return 0
}

// withTimeout runs fn with the state bound to a fresh deadline. The caller
// holds mu.
func (s *Script) withTimeout(fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	err := fn()
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, s.timeout)
	}
	return err
}

// Call runs the global function name if the script defines it. It
// reports whether the hook exists.
func (s *Script) Call(name string, args ...lua.LValue) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}

	fn, ok := s.L.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return false, nil
	}

	s.calls.Add(1)
	err := s.withTimeout(func() error {
		return s.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
	})
	if err != nil {
		s.failed.Add(1)
		if errors.Is(err, ErrTimeout) {
			s.timedOut.Add(1)
		}
		return true, fmt.Errorf("%s: %w", name, err)
	}
	return true, nil
}

// notify calls a hook and logs failures; observers must not fail.
func (s *Script) notify(name string, args ...lua.LValue) {
	if _, err := s.Call(name, args...); err != nil && !errors.Is(err, ErrClosed) {
		s.logger.Warn("%v", err)
	}
}

// Defined lists the hook functions the script defines.
func (s *Script) Defined() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	var out []string
	for _, name := range []string{FormSubmitted, BatteryChanged, OrientationChanged, ViewportChanged} {
		if s.L.GetGlobal(name).Type() == lua.LTFunction {
			out = append(out, name)
		}
	}
	return out
}

// Path returns the script path.
func (s *Script) Path() string {
	return s.path
}

// Stats returns call counters.
func (s *Script) Stats() Stats {
	return Stats{
		Calls:    s.calls.Load(),
		Failed:   s.failed.Load(),
		TimedOut: s.timedOut.Load(),
	}
}

// Close releases the Lua state. Later notifications are dropped.
func (s *Script) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.L.Close()
	return nil
}

// FormSubmitted calls on_form_submitted(doc, page, overlay, form).
func (s *Script) FormSubmitted(docID string, page, overlay uint32, form string) {
	s.notify(FormSubmitted, lua.LString(docID), lua.LNumber(page), lua.LNumber(overlay), lua.LString(form))
}

// BatteryChanged calls on_battery(percent, charging).
func (s *Script) BatteryChanged(percent uint32, charging bool) {
	s.notify(BatteryChanged, lua.LNumber(percent), lua.LBool(charging))
}

// OrientationChanged calls on_orientation(degrees).
func (s *Script) OrientationChanged(degrees uint32) {
	s.notify(OrientationChanged, lua.LNumber(degrees))
}

// ViewportChanged calls on_viewport(page, region).
func (s *Script) ViewportChanged(page uint32, r display.Region) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	t := s.L.NewTable()
	s.mu.Unlock()

	t.RawSetString("x", lua.LNumber(r.X))
	t.RawSetString("y", lua.LNumber(r.Y))
	t.RawSetString("width", lua.LNumber(r.Width))
	t.RawSetString("height", lua.LNumber(r.Height))
	s.notify(ViewportChanged, lua.LNumber(page), t)
}
