package power

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Default sysfs locations.
const (
	DefaultStatePath    = "/sys/power/state"
	DefaultGovernorPath = "/sys/devices/system/cpu/cpu0/cpufreq/scaling_governor"
	DefaultRFKillRoot   = "/sys/class/rfkill"
)

// SysfsBackend suspends through /sys/power/state and powers off with
// reboot(2).
type SysfsBackend struct {
	// StatePath is written with SleepState to suspend.
	StatePath string

	// SleepState is the suspend mode, "mem" unless set.
	SleepState string
}

// Suspend implements Backend. Filesystems are synced first.
func (b *SysfsBackend) Suspend(kind Kind) error {
	unix.Sync()

	switch kind {
	case KindSleep:
		path := b.StatePath
		if path == "" {
			path = DefaultStatePath
		}
		state := b.SleepState
		if state == "" {
			state = "mem"
		}
		if err := os.WriteFile(path, []byte(state), 0o644); err != nil {
			return fmt.Errorf("suspend: %w", err)
		}
		return nil
	case KindHalt:
		if err := unix.Reboot(unix.LINUX_REBOOT_CMD_POWER_OFF); err != nil {
			return fmt.Errorf("power off: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown suspend kind %d", kind)
	}
}

// GovernorClock switches the cpufreq governor.
type GovernorClock struct {
	Path    string
	Full    string
	Reduced string
}

// NewGovernorClock creates a clock using the performance and powersave
// governors.
func NewGovernorClock(path string) *GovernorClock {
	if path == "" {
		path = DefaultGovernorPath
	}
	return &GovernorClock{Path: path, Full: "performance", Reduced: "powersave"}
}

// SetFull implements Clock.
func (g *GovernorClock) SetFull() error {
	return os.WriteFile(g.Path, []byte(g.Full), 0o644)
}

// SetReduced implements Clock.
func (g *GovernorClock) SetReduced() error {
	return os.WriteFile(g.Path, []byte(g.Reduced), 0o644)
}

// RFKill soft-blocks every radio under Root.
type RFKill struct {
	Root string
}

// Disable implements Radios.
func (r *RFKill) Disable() error {
	return r.write("1")
}

// Enable implements Radios.
func (r *RFKill) Enable() error {
	return r.write("0")
}

func (r *RFKill) write(v string) error {
	root := r.Root
	if root == "" {
		root = DefaultRFKillRoot
	}
	paths, err := filepath.Glob(filepath.Join(root, "rfkill*", "soft"))
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range paths {
		if err := os.WriteFile(p, []byte(v), 0o644); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
