package config

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hirshol/equill-core-apps-sub000/internal/logging"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, binary.BigEndian, cfg.ByteOrderValue())
	assert.Equal(t, logging.LevelInfo, cfg.LogLevel())
	assert.Equal(t, 4, cfg.Loop.MaxSplitDepth)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadWithEnv(filepath.Join(t.TempDir(), "absent.toml"), noEnv)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "equilld.toml", `
[log]
level = "debug"

[channel]
byte_order = "little"
system_regions = [0, 3]

[power]
ready_timeout = "5s"
sleep_timeout = "2m"

[documents]
root = "/mnt/docs"
special = ["inbox"]
`)
	cfg, err := LoadWithEnv(path, noEnv)
	require.NoError(t, err)

	assert.Equal(t, logging.LevelDebug, cfg.LogLevel())
	assert.Equal(t, binary.LittleEndian, cfg.ByteOrderValue())
	assert.Equal(t, []uint32{0, 3}, cfg.Channel.SystemRegions)
	assert.Equal(t, 5*time.Second, cfg.Power.ReadyTimeout.Std())
	assert.Equal(t, 2*time.Minute, cfg.Power.SleepTimeout.Std())
	assert.Equal(t, "/mnt/docs", cfg.Documents.Root)
	assert.Equal(t, []string{"inbox"}, cfg.Documents.Special)

	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Channel.CommandSocket, cfg.Channel.CommandSocket)
	assert.Equal(t, Default().Power.NetworkTimeout, cfg.Power.NetworkTimeout)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "equilld.yaml", `
channel:
  command_socket: /run/eq/cmd
  event_socket: /run/eq/evt
loop:
  max_split_depth: 2
power:
  sleep_ack_timeout: 3s
`)
	cfg, err := LoadWithEnv(path, noEnv)
	require.NoError(t, err)
	assert.Equal(t, "/run/eq/cmd", cfg.Channel.CommandSocket)
	assert.Equal(t, "/run/eq/evt", cfg.Channel.EventSocket)
	assert.Equal(t, 2, cfg.Loop.MaxSplitDepth)
	assert.Equal(t, 3*time.Second, cfg.Power.SleepAckTimeout.Std())
}

func TestLoad_EmptyYAML(t *testing.T) {
	path := writeFile(t, "empty.yml", "")
	cfg, err := LoadWithEnv(path, noEnv)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := writeFile(t, "bad.toml", "[channel]\ncomand_socket = \"/x\"\n")
	_, err := LoadWithEnv(path, noEnv)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "toml", pe.Format)
	assert.Equal(t, path, pe.Path)
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeFile(t, "bad.yaml", "power:\n  ready_timeout: soon\n")
	_, err := LoadWithEnv(path, noEnv)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "yaml", pe.Format)
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "equilld.json", "{}")
	_, err := LoadWithEnv(path, noEnv)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "equilld.toml", "[log]\nlevel = \"warn\"\n")
	cfg, err := LoadWithEnv(path, envMap(map[string]string{
		"EQUILL_LOG_LEVEL":       "error",
		"EQUILL_EVENT_SOCKET":    "/run/evt",
		"EQUILL_MAX_SPLIT_DEPTH": "7",
		"EQUILL_READY_TIMEOUT":   "1s",
	}))
	require.NoError(t, err)
	assert.Equal(t, logging.LevelError, cfg.LogLevel())
	assert.Equal(t, "/run/evt", cfg.Channel.EventSocket)
	assert.Equal(t, 7, cfg.Loop.MaxSplitDepth)
	assert.Equal(t, time.Second, cfg.Power.ReadyTimeout.Std())
}

func TestLoad_BadEnvValue(t *testing.T) {
	_, err := LoadWithEnv("", envMap(map[string]string{"EQUILL_MAX_SPLIT_DEPTH": "deep"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EQUILL_MAX_SPLIT_DEPTH")
}

func TestEnvVars(t *testing.T) {
	assert.Contains(t, EnvVars(), "EQUILL_LOG_LEVEL")
	assert.Contains(t, EnvVars(), "EQUILL_DOCUMENTS_ROOT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		paths  []string
	}{
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, []string{"log.level"}},
		{"empty sockets", func(c *Config) {
			c.Channel.CommandSocket = ""
			c.Channel.EventSocket = ""
		}, []string{"channel.command_socket", "channel.event_socket"}},
		{"same sockets", func(c *Config) { c.Channel.EventSocket = c.Channel.CommandSocket }, []string{"channel.event_socket"}},
		{"byte order", func(c *Config) { c.Channel.ByteOrder = "middle" }, []string{"channel.byte_order"}},
		{"same magic", func(c *Config) { c.Channel.CameraMagic = c.Channel.TabletMagic }, []string{"channel.camera_magic"}},
		{"tiny datagram", func(c *Config) { c.Channel.MaxDatagram = 2 }, []string{"channel.max_datagram"}},
		{"split depth", func(c *Config) { c.Loop.MaxSplitDepth = 0 }, []string{"loop.max_split_depth"}},
		{"sleep before ready", func(c *Config) {
			c.Power.SleepTimeout = c.Power.ReadyTimeout
		}, []string{"power.sleep_timeout"}},
		{"zero ack timeout", func(c *Config) { c.Power.SleepAckTimeout = 0 }, []string{"power.sleep_ack_timeout"}},
		{"no root", func(c *Config) { c.Documents.Root = "" }, []string{"documents.root"}},
		{"hook timeout", func(c *Config) {
			c.Hooks.Script = "hooks.lua"
			c.Hooks.Timeout = 0
		}, []string{"hooks.timeout"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidationFailed)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, tt.paths, verrs.Paths())
		})
	}
}

func TestString(t *testing.T) {
	s := Default().String()
	assert.Contains(t, s, "order=big")
	assert.Contains(t, s, "split=4")
}
