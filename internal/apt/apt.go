// Package apt funnels every package-manager mutation through one place.
//
// Concurrent tool installs share a single Manager: a mutex serializes apt
// invocations (dpkg tolerates no concurrency) and the index refresh runs
// at most once per process no matter how many installs ask for it.
package apt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"toolforge/internal/execx"
	"toolforge/internal/platform"
)

const nonInteractive = "DEBIAN_FRONTEND=noninteractive"

// Manager wraps apt-get for the whole process.
type Manager struct {
	Runner execx.Runner
	Caps   platform.Capabilities
	Log    execx.Logger

	mu        sync.Mutex
	refreshed bool
}

// NewManager builds a Manager; a nil logger is replaced with a no-op.
func NewManager(runner execx.Runner, caps platform.Capabilities, log execx.Logger) *Manager {
	if log == nil {
		log = execx.NopLogger{}
	}
	return &Manager{Runner: runner, Caps: caps, Log: log}
}

// Available reports whether apt-get exists on this host.
func (m *Manager) Available() bool {
	return m.Caps.AptGet != ""
}

// Install refreshes the index (once per process) and installs pkgs in one
// transaction. The whole call holds the manager lock.
func (m *Manager) Install(ctx context.Context, pkgs ...string) error {
	if len(pkgs) == 0 {
		return nil
	}
	if !m.Available() {
		return fmt.Errorf("apt-get not available on this host")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.refreshLocked(ctx)
	return m.installLocked(ctx, pkgs)
}

// TryInstall installs pkgs one at a time and returns the names that
// failed. Used for optional package sets where one bad name must not sink
// the rest.
func (m *Manager) TryInstall(ctx context.Context, pkgs ...string) []string {
	if len(pkgs) == 0 {
		return nil
	}
	if !m.Available() {
		return append([]string(nil), pkgs...)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.refreshLocked(ctx)

	var failed []string
	for _, pkg := range pkgs {
		if err := m.installLocked(ctx, []string{pkg}); err != nil {
			m.Log.Printf("optional package %s failed: %v", pkg, err)
			failed = append(failed, pkg)
		}
	}
	return failed
}

// Refresh forces the once-per-process index update to happen now.
func (m *Manager) Refresh(ctx context.Context) {
	if !m.Available() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshLocked(ctx)
}

func (m *Manager) refreshLocked(ctx context.Context) {
	if m.refreshed {
		return
	}
	m.refreshed = true

	cmd, args := m.Caps.Privileged(m.Caps.AptGet, "update")
	m.Log.Printf("refreshing package index")
	if _, err := m.Runner.Run(ctx, cmd, args, execx.RunOptions{Env: []string{nonInteractive}}); err != nil {
		// A stale index is survivable; the install will say so if not.
		m.Log.Printf("package index refresh failed: %v", err)
	}
}

func (m *Manager) installLocked(ctx context.Context, pkgs []string) error {
	args := append([]string{"install", "-y"}, pkgs...)
	cmd, argv := m.Caps.Privileged(m.Caps.AptGet, args...)

	res, err := m.Runner.Run(ctx, cmd, argv, execx.RunOptions{Env: []string{nonInteractive}})
	if err != nil {
		detail := strings.TrimSpace(string(res.Stderr))
		if detail == "" {
			detail = err.Error()
		}
		return fmt.Errorf("apt-get install %s: %s", strings.Join(pkgs, " "), detail)
	}
	return nil
}
