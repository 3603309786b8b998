// Package config loads and watches the daemon configuration.
//
// A configuration file is optional. Its format is chosen by extension:
//
//	.toml        github.com/pelletier/go-toml/v2
//	.yaml, .yml  gopkg.in/yaml.v3
//
// Values in the file override Default(); EQUILL_* environment variables
// override the file. Unknown keys are rejected so typos do not silently
// fall back to defaults.
//
// Example:
//
//	[channel]
//	command_socket = "/run/equill/display.cmd"
//	event_socket   = "/run/equill/display.evt"
//	byte_order     = "little"
//	system_regions = [0, 1]
//
//	[power]
//	ready_timeout = "30s"
//	sleep_timeout = "10m"
//
// Watcher re-reads the file when it changes and hands the new value to
// subscribers; the daemon applies log level and power timeouts live.
// Socket paths and magic numbers take effect on restart.
package config
