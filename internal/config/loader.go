package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads, schema-validates, and decodes a configuration document.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := validateSchema(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}

	if cfg.Workdir != "" {
		expanded := os.ExpandEnv(cfg.Workdir)
		if !filepath.IsAbs(expanded) {
			expanded = filepath.Join(filepath.Dir(absPath), expanded)
		}
		cfg.Workdir = filepath.Clean(expanded)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return &cfg, nil
}

// Validate checks structural constraints the schema cannot express.
func (c *Config) Validate() error {
	switch c.EffectiveLauncher() {
	case "process":
		if c.Keystore.Binary == "" {
			return fmt.Errorf("keystore.binary is required")
		}
		if !filepath.IsAbs(c.Keystore.Binary) {
			return fmt.Errorf("keystore.binary must be an absolute path, got %q", c.Keystore.Binary)
		}
		if c.Runtime.Binary == "" {
			return fmt.Errorf("runtime.binary is required")
		}
		if !filepath.IsAbs(c.Runtime.Binary) {
			return fmt.Errorf("runtime.binary must be an absolute path, got %q", c.Runtime.Binary)
		}
	case "docker":
		if c.Keystore.Image == "" {
			return fmt.Errorf("keystore.image is required for the docker launcher")
		}
		if c.Runtime.Image == "" {
			return fmt.Errorf("runtime.image is required for the docker launcher")
		}
	default:
		return fmt.Errorf("unknown launcher %q", c.Launcher)
	}

	if c.Keystore.Dir == "" {
		return fmt.Errorf("keystore.dir is required")
	}
	if c.StartupTimeout.Duration < 0 {
		return fmt.Errorf("startup_timeout must not be negative")
	}
	if c.ShutdownTimeout.Duration < 0 {
		return fmt.Errorf("shutdown_timeout must not be negative")
	}
	return nil
}
