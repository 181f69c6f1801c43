// Package probe answers "is this command on the host, and what does it
// print" without ever mutating the system.
package probe

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"toolforge/internal/execx"
)

// DefaultTimeout bounds a single probe. Version flags are expected to be
// instant; anything slower is a hung tool, not a slow one.
const DefaultTimeout = 10 * time.Second

// State reports whether the probed command exists on the host.
type State int

const (
	Absent State = iota
	Present
)

func (s State) String() string {
	if s == Present {
		return "present"
	}
	return "absent"
}

// Result is the outcome of one probe.
type Result struct {
	State     State
	Path      string // resolved absolute path when Present
	RawOutput string // combined stdout+stderr, trimmed
	ExitCode  int    // 0 unless the command exited non-zero
	TimedOut  bool
}

// Prober runs presence and version checks for external commands.
type Prober struct {
	Runner  execx.Runner
	Timeout time.Duration

	// LookPath is swappable for tests; nil means exec.LookPath.
	LookPath func(string) (string, error)
}

// New returns a Prober backed by the real toolchain.
func New(runner execx.Runner) *Prober {
	return &Prober{Runner: runner, Timeout: DefaultTimeout}
}

// Command probes one command with explicit arguments. A PATH miss is
// Absent. Everything else is Present: a non-zero exit or a timeout still
// carries whatever the command printed, because many tools write version
// banners to stderr or exit 1 from --version.
func (p *Prober) Command(ctx context.Context, command string, args ...string) Result {
	look := p.LookPath
	if look == nil {
		look = exec.LookPath
	}
	path, err := look(command)
	if err != nil {
		return Result{State: Absent}
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, runErr := p.Runner.Run(runCtx, path, args, execx.RunOptions{})
	out := Result{
		State:     Present,
		Path:      path,
		RawOutput: strings.TrimSpace(res.Combined()),
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
		} else {
			out.ExitCode = -1
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			out.TimedOut = true
		}
	}
	return out
}

// CommandLine probes a whitespace-separated command line such as
// "jq --version". An empty line is Absent.
func (p *Prober) CommandLine(ctx context.Context, line string) Result {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Result{State: Absent}
	}
	return p.Command(ctx, fields[0], fields[1:]...)
}

// FirstLine trims raw probe output down to its first non-empty line, which
// is where tools put the version banner.
func FirstLine(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
