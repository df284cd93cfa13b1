package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeVersionScript(t *testing.T, dir, name, version string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := fmt.Sprintf("#!/bin/sh\necho %s\n", version)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestVersionsCommandProbesBinaries(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}

	dir := t.TempDir()
	keystore := writeVersionScript(t, dir, "lair-keystore", "lair-keystore 0.4.2")
	holochain := writeVersionScript(t, dir, "holochain", "holochain 0.3.1")

	doc := fmt.Sprintf(`keystore:
  binary: %s
  dir: /var/lib/hatchd/lair
runtime:
  binary: %s
`, keystore, holochain)

	root, _ := newRootCommand()
	cfgPath := writeConfig(t, doc)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"versions", "--config", cfgPath})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "keystore: lair-keystore 0.4.2") {
		t.Fatalf("missing keystore version:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "runtime: holochain 0.3.1") {
		t.Fatalf("missing runtime version:\n%s", out.String())
	}
}

func TestVersionsCommandReportsProbeFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}

	dir := t.TempDir()
	keystore := writeVersionScript(t, dir, "lair-keystore", "lair-keystore 0.4.2")
	missing := filepath.Join(dir, "does-not-exist")

	doc := fmt.Sprintf(`keystore:
  binary: %s
  dir: /var/lib/hatchd/lair
runtime:
  binary: %s
`, keystore, missing)

	root, _ := newRootCommand()
	cfgPath := writeConfig(t, doc)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"versions", "--config", cfgPath})

	if err := root.Execute(); err == nil {
		t.Fatalf("expected probe failure")
	}
}

func TestVersionsCommandPrintsImagesForDocker(t *testing.T) {
	doc := `launcher: docker
keystore:
  image: ghcr.io/example/lair-keystore:0.4
  dir: /var/lib/hatchd/lair
runtime:
  image: ghcr.io/example/holochain:0.3
`

	root, _ := newRootCommand()
	cfgPath := writeConfig(t, doc)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"versions", "--config", cfgPath})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "image ghcr.io/example/lair-keystore:0.4") {
		t.Fatalf("missing keystore image:\n%s", out.String())
	}
}
