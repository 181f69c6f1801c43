package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Layout captures the canonical filesystem locations for one engine run.
//
// Installed binaries land in BinDir (InstallRoot/bin) or under
// OptRoot/<tool> with a shim in BinDir. Scratch work happens in WorkDir,
// a process-scoped temp dir that must be removed on every exit path.
type Layout struct {
	InstallRoot string
	OptRoot     string
	StateDir    string
	LogsDir     string
	WorkDir     string
}

// Resolve builds the default layout: /usr/local and /opt install roots and
// a per-user state dir. TOOLFORGE_STATE_DIR overrides the state location,
// which tests use to stay inside a temp dir.
func Resolve() (Layout, error) {
	state := strings.TrimSpace(os.Getenv("TOOLFORGE_STATE_DIR"))
	if state == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Layout{}, fmt.Errorf("detect user home: %w", err)
		}
		state = filepath.Join(home, ".local", "state", "toolforge")
	}

	return Layout{
		InstallRoot: "/usr/local",
		OptRoot:     "/opt",
		StateDir:    state,
		LogsDir:     filepath.Join(state, "logs"),
	}, nil
}

// BinDir is where executables and wrappers are placed.
func (l Layout) BinDir() string {
	return filepath.Join(l.InstallRoot, "bin")
}

// ToolOptDir is the per-tool payload directory (jars, charts, bundles).
func (l Layout) ToolOptDir(tool string) string {
	return filepath.Join(l.OptRoot, tool)
}

// StampFile records the last shared-dependency pre-seed.
func (l Layout) StampFile() string {
	return filepath.Join(l.StateDir, "preseed.json")
}

// OverridesFile is the optional user-edited soname-to-package map.
func (l Layout) OverridesFile() string {
	return filepath.Join(l.StateDir, "linkage-overrides.jsonc")
}

// EnsureState creates the state and logs directories.
func (l Layout) EnsureState() error {
	for _, dir := range []string{l.StateDir, l.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// CreateWorkDir makes the process-scoped scratch directory. Callers own
// cleanup via RemoveWorkDir and must run it on every exit path, including
// failures.
func (l *Layout) CreateWorkDir() error {
	dir, err := os.MkdirTemp("", "toolforge-*")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	l.WorkDir = dir
	return nil
}

// RemoveWorkDir deletes the scratch directory. Safe to call twice.
func (l *Layout) RemoveWorkDir() {
	if l.WorkDir == "" {
		return
	}
	_ = os.RemoveAll(l.WorkDir)
	l.WorkDir = ""
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// IsExecutable reports whether path is a regular file with any execute bit.
func IsExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}
