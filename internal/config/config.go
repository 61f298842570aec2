// Package config handles capcon configuration using Viper.
//
// Configuration sources (in priority order):
//  1. Command line flags bound with BindFlags
//  2. Environment variables (CAPCON_*)
//  3. Config file (<user config dir>/capcon/config.yaml, see paths.ConfigFile)
//  4. Built-in defaults
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/musher-dev/capcon/internal/host"
	"github.com/musher-dev/capcon/internal/paths"
)

const (
	// DefaultInputTarget is the capsule receiving local keystrokes.
	DefaultInputTarget = 1
	// DefaultIdleInterval is the pause between worker iterations.
	DefaultIdleInterval = 2 * time.Millisecond
	// DefaultInputTimeout bounds each wait for a local keystroke.
	DefaultInputTimeout = host.DefaultInputTimeout
	// DefaultColorMode lets terminal detection decide on escape sequences.
	DefaultColorMode = ColorAuto
)

// Color modes for rendered output.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Keys.
const (
	KeyWorkers          = "console.workers"
	KeyInputTarget      = "console.input_target"
	KeyIdleInterval     = "console.idle_interval"
	KeyInputTimeout     = "console.input_timeout"
	KeyRawInput         = "console.raw_input"
	KeyColor            = "console.color"
	KeyHypervisorSource = "hypervisor.source"
	KeyCapsules         = "capsules"
	KeyMetricsAddr      = "metrics.addr"
)

// DefaultWorkers returns the default worker count.
func DefaultWorkers() int {
	return max(runtime.NumCPU(), 1)
}

// Config holds the capcon configuration.
type Config struct {
	v *viper.Viper
}

// Load reads configuration from all sources.
func Load() *Config {
	v := viper.New()

	v.SetDefault(KeyWorkers, DefaultWorkers())
	v.SetDefault(KeyInputTarget, DefaultInputTarget)
	v.SetDefault(KeyIdleInterval, DefaultIdleInterval)
	v.SetDefault(KeyInputTimeout, DefaultInputTimeout)
	v.SetDefault(KeyRawInput, true)
	v.SetDefault(KeyColor, DefaultColorMode)
	v.SetDefault(KeyHypervisorSource, "")
	v.SetDefault(KeyMetricsAddr, "")

	if file, err := paths.ConfigFile(); err == nil {
		v.SetConfigFile(file)
	}

	v.SetEnvPrefix("CAPCON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: error reading config file: %v\n", err)
		}
	}

	return &Config{v: v}
}

// BindFlags binds flags to their configuration keys. Flags left at their
// default do not override other sources.
func (c *Config) BindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for flagName, key := range keys {
		flag := flags.Lookup(flagName)
		if flag == nil {
			return fmt.Errorf("unknown flag %q for key %q", flagName, key)
		}

		if err := c.v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %q: %w", flagName, err)
		}
	}

	return nil
}

// Get returns a configuration value.
func (c *Config) Get(key string) interface{} {
	return c.v.Get(key)
}

// GetString returns a configuration value as string.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt returns a configuration value as int.
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// All returns all configuration as a map.
func (c *Config) All() map[string]interface{} {
	return c.v.AllSettings()
}

// Workers returns the number of console workers.
func (c *Config) Workers() int {
	return c.GetInt(KeyWorkers)
}

// InputTarget returns the capsule receiving local keystrokes.
func (c *Config) InputTarget() int {
	return c.GetInt(KeyInputTarget)
}

// IdleInterval returns the pause between worker iterations.
func (c *Config) IdleInterval() time.Duration {
	return c.v.GetDuration(KeyIdleInterval)
}

// InputTimeout returns how long the leader waits for a keystroke.
func (c *Config) InputTimeout() time.Duration {
	return c.v.GetDuration(KeyInputTimeout)
}

// RawInput reports whether local input switches the terminal to raw mode.
func (c *Config) RawInput() bool {
	return c.v.GetBool(KeyRawInput)
}

// ColorMode returns the configured color mode.
func (c *Config) ColorMode() string {
	return strings.ToLower(strings.TrimSpace(c.GetString(KeyColor)))
}

// HypervisorSource returns the optional file tailed into hypervisor output.
func (c *Config) HypervisorSource() string {
	return c.GetString(KeyHypervisorSource)
}

// MetricsAddr returns the metrics listen address; empty disables metrics.
func (c *Config) MetricsAddr() string {
	return c.GetString(KeyMetricsAddr)
}

// Capsules returns the configured capsule processes.
func (c *Config) Capsules() ([]host.CapsuleSpec, error) {
	var specs []host.CapsuleSpec
	if err := c.v.UnmarshalKey(KeyCapsules, &specs); err != nil {
		return nil, fmt.Errorf("decode capsules: %w", err)
	}

	return specs, nil
}

// Validate checks the settings that the console cannot run without.
func (c *Config) Validate() error {
	if c.Workers() < 1 {
		return fmt.Errorf("%s must be at least 1, got %d", KeyWorkers, c.Workers())
	}

	if c.InputTarget() < 0 {
		return fmt.Errorf("%s must be non-negative, got %d", KeyInputTarget, c.InputTarget())
	}

	if c.IdleInterval() < 0 {
		return fmt.Errorf("%s must not be negative", KeyIdleInterval)
	}

	switch c.ColorMode() {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("invalid %s %q (allowed: auto, always, never)", KeyColor, c.GetString(KeyColor))
	}

	specs, err := c.Capsules()
	if err != nil {
		return err
	}

	seen := make(map[int]bool, len(specs))
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return err
		}

		if seen[spec.ID] {
			return fmt.Errorf("capsule %d configured more than once", spec.ID)
		}

		seen[spec.ID] = true
	}

	return nil
}
