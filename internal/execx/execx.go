// Package execx wraps external command execution behind a small interface
// so installer components can be tested with scripted fakes.
package execx

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"time"
)

// RunOptions controls how a command is executed.
type RunOptions struct {
	Dir     string
	Env     []string // appended to os.Environ()
	Stdout  io.Writer
	Stderr  io.Writer
	Timeout time.Duration // zero means no deadline beyond ctx
}

// RunResult carries the captured output of a completed command.
type RunResult struct {
	Stdout []byte
	Stderr []byte
}

// Combined returns stdout followed by stderr as one string. Version banners
// land on either stream depending on the tool, so callers that only care
// about "what did it print" use this.
func (r RunResult) Combined() string {
	if len(r.Stderr) == 0 {
		return string(r.Stdout)
	}
	if len(r.Stdout) == 0 {
		return string(r.Stderr)
	}
	return string(r.Stdout) + string(r.Stderr)
}

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, command string, args []string, opts RunOptions) (RunResult, error)
}

// CmdRunner is the production Runner backed by os/exec.
type CmdRunner struct{}

func (CmdRunner) Run(ctx context.Context, command string, args []string, opts RunOptions) (RunResult, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, command, args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	var stdoutBuf, stderrBuf bytes.Buffer

	stdoutWriter := io.Writer(&stdoutBuf)
	if opts.Stdout != nil {
		stdoutWriter = io.MultiWriter(&stdoutBuf, opts.Stdout)
	}
	stderrWriter := io.Writer(&stderrBuf)
	if opts.Stderr != nil {
		stderrWriter = io.MultiWriter(&stderrBuf, opts.Stderr)
	}

	cmd.Stdout = stdoutWriter
	cmd.Stderr = stderrWriter

	err := cmd.Run()
	return RunResult{Stdout: stdoutBuf.Bytes(), Stderr: stderrBuf.Bytes()}, err
}

var _ Runner = CmdRunner{}

// LookPath reports the absolute path of command if it is on PATH.
func LookPath(command string) (string, bool) {
	path, err := exec.LookPath(command)
	if err != nil {
		return "", false
	}
	return path, true
}

// Logger is the minimal logging seam shared by installer components.
// charmbracelet/log satisfies it, and tests can pass a recorder.
type Logger interface {
	Printf(format string, v ...any)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Printf(string, ...any) {}
