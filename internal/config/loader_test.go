package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hatchd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadResolvesDefaults(t *testing.T) {
	path := writeConfig(t, `
keystore:
  binary: /usr/local/bin/lair-keystore
  dir: /var/lib/hatchd/lair
runtime:
  binary: /usr/local/bin/conductor
  args: ["-c", "/etc/conductor/config.yml"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.EffectiveLauncher() != "process" {
		t.Fatalf("default launcher = %q", cfg.EffectiveLauncher())
	}
	if cfg.EffectiveStartupTimeout() != DefaultStartupTimeout {
		t.Fatalf("default startup timeout = %v", cfg.EffectiveStartupTimeout())
	}
	if cfg.EffectiveShutdownTimeout() != DefaultShutdownTimeout {
		t.Fatalf("default shutdown timeout = %v", cfg.EffectiveShutdownTimeout())
	}
	if len(cfg.Runtime.Args) != 2 {
		t.Fatalf("runtime args = %v", cfg.Runtime.Args)
	}
}

func TestLoadExplicitTimeouts(t *testing.T) {
	path := writeConfig(t, `
keystore:
  binary: /bin/true
  dir: /tmp/lair
runtime:
  binary: /bin/true
startup_timeout: 30s
shutdown_timeout: 2s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.EffectiveStartupTimeout() != 30*time.Second {
		t.Fatalf("startup timeout = %v", cfg.EffectiveStartupTimeout())
	}
	if cfg.EffectiveShutdownTimeout() != 2*time.Second {
		t.Fatalf("shutdown timeout = %v", cfg.EffectiveShutdownTimeout())
	}
}

func TestLoadZeroStartupTimeoutDisablesBound(t *testing.T) {
	path := writeConfig(t, `
keystore:
  binary: /bin/true
  dir: /tmp/lair
runtime:
  binary: /bin/true
startup_timeout: 0s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.EffectiveStartupTimeout() != 0 {
		t.Fatalf("explicit zero should disable the bound, got %v", cfg.EffectiveStartupTimeout())
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
keystore:
  binary: /bin/true
  dir: /tmp/lair
runtime:
  binary: /bin/true
retry_policy: aggressive
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("unknown field should fail validation")
	}
}

func TestLoadRejectsRelativeBinary(t *testing.T) {
	path := writeConfig(t, `
keystore:
  binary: lair-keystore
  dir: /tmp/lair
runtime:
  binary: /bin/true
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "absolute path") {
		t.Fatalf("expected absolute-path error, got %v", err)
	}
}

func TestLoadRejectsMissingKeystoreDir(t *testing.T) {
	path := writeConfig(t, `
keystore:
  binary: /bin/true
runtime:
  binary: /bin/true
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("missing keystore.dir should fail")
	}
}

func TestLoadDockerLauncherRequiresImages(t *testing.T) {
	path := writeConfig(t, `
launcher: docker
keystore:
  dir: /var/lib/hatchd/lair
runtime: {}
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "image") {
		t.Fatalf("expected image requirement, got %v", err)
	}

	path = writeConfig(t, `
launcher: docker
keystore:
  dir: /var/lib/hatchd/lair
  image: example/keystore:1
runtime:
  image: example/conductor:1
`)
	if _, err := Load(path); err != nil {
		t.Fatalf("docker config should load: %v", err)
	}
}

func TestLoadRejectsUnknownLauncher(t *testing.T) {
	path := writeConfig(t, `
launcher: podman
keystore:
  binary: /bin/true
  dir: /tmp/lair
runtime:
  binary: /bin/true
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("unknown launcher should fail schema validation")
	}
}

func TestDurationRoundTrip(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("150ms")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Duration != 150*time.Millisecond || !d.IsSet() {
		t.Fatalf("unexpected duration %v set=%v", d.Duration, d.IsSet())
	}
	text, err := d.MarshalText()
	if err != nil || string(text) != "150ms" {
		t.Fatalf("marshal = %q, %v", text, err)
	}
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Fatalf("invalid duration should error")
	}
}
