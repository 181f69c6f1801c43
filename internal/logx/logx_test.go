package logx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"toolforge/internal/paths"
)

func TestNewWritesTimestampedFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TOOLFORGE_LOG_DIR", dir)

	h, err := New(paths.Layout{LogsDir: filepath.Join(dir, "ignored")}, false)
	if err != nil {
		t.Fatal(err)
	}
	h.FileOnly() // keep test output clean
	h.Logger.Info("hello", "tool", "jq")
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}

	if filepath.Dir(h.Path) != dir {
		t.Errorf("log file %s not under TOOLFORGE_LOG_DIR %s", h.Path, dir)
	}
	if !strings.HasPrefix(filepath.Base(h.Path), "toolforge-") {
		t.Errorf("log file name %s missing prefix", filepath.Base(h.Path))
	}

	contents, err := os.ReadFile(h.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(contents), "hello") || !strings.Contains(string(contents), "tool=jq") {
		t.Errorf("log file contents = %q", contents)
	}
}

func TestDirDefaultsToLayout(t *testing.T) {
	t.Setenv("TOOLFORGE_LOG_DIR", "")
	layout := paths.Layout{LogsDir: "/var/tmp/toolforge-logs"}
	if got := Dir(layout); got != layout.LogsDir {
		t.Errorf("Dir = %q, want %q", got, layout.LogsDir)
	}
}
