package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EQUILL_"

// LookupFunc looks up an environment variable.
type LookupFunc func(key string) (string, bool)

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an injectable environment.
func LoadWithEnv(path string, lookup LookupFunc) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := decode(path, data, cfg); err != nil {
				return nil, err
			}
		}
	}

	if lookup != nil {
		if err := applyEnv(cfg, lookup); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode unmarshals data over cfg using the parser chosen by extension.
func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return &ParseError{Path: path, Format: "toml", Err: err}
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return &ParseError{Path: path, Format: "yaml", Err: err}
		}
	default:
		return fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	return nil
}

// envVars maps override variables (without prefix) to setters.
var envVars = map[string]func(c *Config, v string) error{
	"LOG_LEVEL":      func(c *Config, v string) error { c.Log.Level = v; return nil },
	"COMMAND_SOCKET": func(c *Config, v string) error { c.Channel.CommandSocket = v; return nil },
	"EVENT_SOCKET":   func(c *Config, v string) error { c.Channel.EventSocket = v; return nil },
	"CAMERA_SOCKET":  func(c *Config, v string) error { c.Channel.CameraSocket = v; return nil },
	"BYTE_ORDER":     func(c *Config, v string) error { c.Channel.ByteOrder = v; return nil },
	"DOCUMENTS_ROOT": func(c *Config, v string) error { c.Documents.Root = v; return nil },
	"HOOKS_SCRIPT":   func(c *Config, v string) error { c.Hooks.Script = v; return nil },
	"MAX_SPLIT_DEPTH": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Loop.MaxSplitDepth = n
		return nil
	},
	"READY_TIMEOUT": func(c *Config, v string) error { return c.Power.ReadyTimeout.UnmarshalText([]byte(v)) },
	"SLEEP_TIMEOUT": func(c *Config, v string) error { return c.Power.SleepTimeout.UnmarshalText([]byte(v)) },
}

// EnvVars returns the names of the supported override variables.
func EnvVars() []string {
	out := make([]string, 0, len(envVars))
	for k := range envVars {
		out = append(out, EnvPrefix+k)
	}
	return out
}

func applyEnv(cfg *Config, lookup LookupFunc) error {
	for name, set := range envVars {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		if err := set(cfg, v); err != nil {
			return fmt.Errorf("%s%s=%q: %w", EnvPrefix, name, v, err)
		}
	}
	return nil
}
