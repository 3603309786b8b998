package config

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Hirshol/equill-core-apps-sub000/internal/logging"
	"github.com/Hirshol/equill-core-apps-sub000/internal/wire"
)

// Duration is a time.Duration that reads "10s"-style strings from TOML
// and YAML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.UnmarshalText([]byte(n.Value))
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the daemon configuration.
type Config struct {
	Log       LogConfig       `toml:"log" yaml:"log"`
	Channel   ChannelConfig   `toml:"channel" yaml:"channel"`
	Loop      LoopConfig      `toml:"loop" yaml:"loop"`
	Power     PowerConfig     `toml:"power" yaml:"power"`
	Documents DocumentsConfig `toml:"documents" yaml:"documents"`
	Hooks     HooksConfig     `toml:"hooks" yaml:"hooks"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level" yaml:"level"`
}

// ChannelConfig configures the display-server and camera-server sockets.
type ChannelConfig struct {
	CommandSocket string   `toml:"command_socket" yaml:"command_socket"`
	EventSocket   string   `toml:"event_socket" yaml:"event_socket"`
	CameraSocket  string   `toml:"camera_socket" yaml:"camera_socket"`
	ByteOrder     string   `toml:"byte_order" yaml:"byte_order"`
	TabletMagic   uint32   `toml:"tablet_magic" yaml:"tablet_magic"`
	CameraMagic   uint32   `toml:"camera_magic" yaml:"camera_magic"`
	MaxDatagram   int      `toml:"max_datagram" yaml:"max_datagram"`
	SystemRegions []uint32 `toml:"system_regions" yaml:"system_regions"`
}

// LoopConfig configures the event loop.
type LoopConfig struct {
	MaxSplitDepth int `toml:"max_split_depth" yaml:"max_split_depth"`
}

// PowerConfig configures idle timers, suspend bounds and sysfs paths.
type PowerConfig struct {
	ReadyTimeout    Duration `toml:"ready_timeout" yaml:"ready_timeout"`
	SleepTimeout    Duration `toml:"sleep_timeout" yaml:"sleep_timeout"`
	SleepAckTimeout Duration `toml:"sleep_ack_timeout" yaml:"sleep_ack_timeout"`
	NetworkTimeout  Duration `toml:"network_timeout" yaml:"network_timeout"`
	StatePath       string   `toml:"state_path" yaml:"state_path"`
	GovernorPath    string   `toml:"governor_path" yaml:"governor_path"`
	RFKillRoot      string   `toml:"rfkill_root" yaml:"rfkill_root"`
}

// DocumentsConfig configures document storage and locking.
type DocumentsConfig struct {
	Root     string   `toml:"root" yaml:"root"`
	Special  []string `toml:"special" yaml:"special"`
	LockName string   `toml:"lock_name" yaml:"lock_name"`
}

// HooksConfig configures the optional Lua hook script.
type HooksConfig struct {
	// Script is empty when no hooks run.
	Script  string   `toml:"script" yaml:"script"`
	Timeout Duration `toml:"timeout" yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Channel: ChannelConfig{
			CommandSocket: "/tmp/equill/display.cmd",
			EventSocket:   "/tmp/equill/display.evt",
			CameraSocket:  "/tmp/equill/camera.cmd",
			ByteOrder:     "big",
			TabletMagic:   wire.DefaultTabletMagic,
			CameraMagic:   wire.DefaultCameraMagic,
			MaxDatagram:   64 << 10,
			SystemRegions: []uint32{0},
		},
		Loop: LoopConfig{MaxSplitDepth: 4},
		Power: PowerConfig{
			ReadyTimeout:    Duration(30 * time.Second),
			SleepTimeout:    Duration(10 * time.Minute),
			SleepAckTimeout: Duration(10 * time.Second),
			NetworkTimeout:  Duration(30 * time.Second),
			StatePath:       "/sys/power/state",
			GovernorPath:    "/sys/devices/system/cpu/cpu0/cpufreq/scaling_governor",
			RFKillRoot:      "/sys/class/rfkill",
		},
		Documents: DocumentsConfig{
			Root:     "/data/documents",
			Special:  []string{"inbox", "settings", "login"},
			LockName: ".lock",
		},
		Hooks: HooksConfig{Timeout: Duration(250 * time.Millisecond)},
	}
}

// ByteOrderValue returns the configured wire byte order.
func (c *Config) ByteOrderValue() binary.ByteOrder {
	if strings.EqualFold(c.Channel.ByteOrder, "little") {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// LogLevel returns the parsed log level, Info if unparseable.
func (c *Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Log.Level)
}

// Validate checks the configuration for values the daemon cannot run with.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if !logging.ValidLevel(c.Log.Level) {
		errs.add("log.level", c.Log.Level, "must be debug, info, warn or error")
	}

	ch := c.Channel
	if ch.CommandSocket == "" {
		errs.add("channel.command_socket", ch.CommandSocket, "must not be empty")
	}
	if ch.EventSocket == "" {
		errs.add("channel.event_socket", ch.EventSocket, "must not be empty")
	}
	if ch.CommandSocket != "" && ch.CommandSocket == ch.EventSocket {
		errs.add("channel.event_socket", ch.EventSocket, "must differ from command_socket")
	}
	switch strings.ToLower(ch.ByteOrder) {
	case "big", "little":
	default:
		errs.add("channel.byte_order", ch.ByteOrder, `must be "big" or "little"`)
	}
	if ch.TabletMagic == 0 {
		errs.add("channel.tablet_magic", ch.TabletMagic, "must not be zero")
	}
	if ch.CameraMagic == 0 {
		errs.add("channel.camera_magic", ch.CameraMagic, "must not be zero")
	}
	if ch.TabletMagic != 0 && ch.TabletMagic == ch.CameraMagic {
		errs.add("channel.camera_magic", ch.CameraMagic, "must differ from tablet_magic")
	}
	if ch.MaxDatagram < 4 {
		errs.add("channel.max_datagram", ch.MaxDatagram, "must be at least 4")
	}

	if c.Loop.MaxSplitDepth < 1 {
		errs.add("loop.max_split_depth", c.Loop.MaxSplitDepth, "must be at least 1")
	}

	p := c.Power
	for _, d := range []struct {
		path string
		v    Duration
	}{
		{"power.ready_timeout", p.ReadyTimeout},
		{"power.sleep_timeout", p.SleepTimeout},
		{"power.sleep_ack_timeout", p.SleepAckTimeout},
		{"power.network_timeout", p.NetworkTimeout},
	} {
		if d.v <= 0 {
			errs.add(d.path, d.v.Std().String(), "must be positive")
		}
	}
	if p.ReadyTimeout > 0 && p.SleepTimeout > 0 && p.SleepTimeout <= p.ReadyTimeout {
		errs.add("power.sleep_timeout", p.SleepTimeout.Std().String(), "must be longer than ready_timeout")
	}

	if c.Documents.Root == "" {
		errs.add("documents.root", c.Documents.Root, "must not be empty")
	}

	if c.Hooks.Script != "" && c.Hooks.Timeout <= 0 {
		errs.add("hooks.timeout", c.Hooks.Timeout.Std().String(), "must be positive")
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// String renders a one-line summary for logs.
func (c *Config) String() string {
	return fmt.Sprintf("cmd=%s evt=%s order=%s split=%d ready=%s sleep=%s",
		c.Channel.CommandSocket, c.Channel.EventSocket, c.Channel.ByteOrder,
		c.Loop.MaxSplitDepth, c.Power.ReadyTimeout.Std(), c.Power.SleepTimeout.Std())
}
