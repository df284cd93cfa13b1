// Package config loads and validates the hatchd supervisor configuration.
package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration with YAML text (un)marshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

const (
	// DefaultStartupTimeout bounds the wait for the runtime to report
	// ready and announce its app port. Zero disables the bound.
	DefaultStartupTimeout = 2 * time.Minute
	// DefaultShutdownTimeout is the wall-clock budget for reclaiming both
	// process trees before the coordinator stops waiting.
	DefaultShutdownTimeout = 5 * time.Second
)

// Keystore describes the key/credential service. The binary path arrives
// already resolved and absolute; path discovery happens upstream.
type Keystore struct {
	Binary string `yaml:"binary"`
	Dir    string `yaml:"dir"`
	Image  string `yaml:"image,omitempty"`
}

// Runtime describes the dependent runtime service. Args is an opaque,
// pre-validated argument vector passed through verbatim.
type Runtime struct {
	Binary string            `yaml:"binary"`
	Args   []string          `yaml:"args,omitempty"`
	Env    map[string]string `yaml:"env,omitempty"`
	Image  string            `yaml:"image,omitempty"`
	Ports  []string          `yaml:"ports,omitempty"`
}

// Config mirrors the hatchd.yaml document structure.
type Config struct {
	Launcher        string   `yaml:"launcher,omitempty"`
	Workdir         string   `yaml:"workdir,omitempty"`
	Keystore        Keystore `yaml:"keystore"`
	Runtime         Runtime  `yaml:"runtime"`
	StartupTimeout  Duration `yaml:"startup_timeout,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout,omitempty"`
	StatusAddr      string   `yaml:"status_addr,omitempty"`
}

// EffectiveStartupTimeout resolves the configured startup bound, applying
// the default when the field was omitted. An explicit 0 disables the bound.
func (c *Config) EffectiveStartupTimeout() time.Duration {
	if c.StartupTimeout.IsSet() {
		return c.StartupTimeout.Duration
	}
	return DefaultStartupTimeout
}

// EffectiveShutdownTimeout resolves the shutdown budget.
func (c *Config) EffectiveShutdownTimeout() time.Duration {
	if c.ShutdownTimeout.IsSet() && c.ShutdownTimeout.Duration > 0 {
		return c.ShutdownTimeout.Duration
	}
	return DefaultShutdownTimeout
}

// EffectiveLauncher resolves the launcher backend name.
func (c *Config) EffectiveLauncher() string {
	if c.Launcher == "" {
		return "process"
	}
	return c.Launcher
}
