// Package logx wires the process logger: human-readable lines on stderr
// mirrored into a timestamped file under the state logs directory, so a
// failed install can always point at a full record.
package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"toolforge/internal/paths"
)

// Handle owns the process logger and the file behind it.
type Handle struct {
	Logger *log.Logger
	Path   string

	file *os.File
}

// Dir returns the effective log directory. TOOLFORGE_LOG_DIR overrides
// the layout's default.
func Dir(layout paths.Layout) string {
	if dir := os.Getenv("TOOLFORGE_LOG_DIR"); dir != "" {
		return dir
	}
	return layout.LogsDir
}

// New opens a timestamped log file and returns a logger writing to both
// stderr and the file. verbose lowers the level to debug.
func New(layout paths.Layout, verbose bool) (*Handle, error) {
	dir := Dir(layout)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure logs directory: %w", err)
	}

	name := "toolforge-" + time.Now().Format("20060102-150405") + ".log"
	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	logger := log.NewWithOptions(io.MultiWriter(os.Stderr, file), log.Options{
		ReportTimestamp: true,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	return &Handle{Logger: logger, Path: path, file: file}, nil
}

// FileOnly stops mirroring to stderr. The TUI calls this before taking
// over the terminal.
func (h *Handle) FileOnly() {
	h.Logger.SetOutput(h.file)
}

// Close flushes and closes the file side.
func (h *Handle) Close() error {
	if h.file == nil {
		return nil
	}
	return h.file.Close()
}
