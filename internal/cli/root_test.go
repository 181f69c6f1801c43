package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCatalogFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toolforge.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestResolveCatalogPathPrecedence(t *testing.T) {
	prev := catalogPath
	defer func() { catalogPath = prev }()

	t.Setenv("TOOLFORGE_CATALOG", "/env/toolforge.yaml")

	catalogPath = "/flag/toolforge.yaml"
	if got := resolveCatalogPath(); got != "/flag/toolforge.yaml" {
		t.Fatalf("flag should win, got %q", got)
	}

	catalogPath = ""
	if got := resolveCatalogPath(); got != "/env/toolforge.yaml" {
		t.Fatalf("env should win without the flag, got %q", got)
	}

	t.Setenv("TOOLFORGE_CATALOG", "")
	if got := resolveCatalogPath(); got != "toolforge.yaml" {
		t.Fatalf("default should be toolforge.yaml, got %q", got)
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newVersionCmd()
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command returned error: %v", err)
	}
	if got := strings.TrimSpace(stdout.String()); got != appVersion {
		t.Fatalf("got %q, want %q", got, appVersion)
	}
}

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()

	want := []string{"install", "compose", "preseed", "status", "validate", "doctor", "info", "catalog", "version"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command is missing %q", name)
		}
	}
}
