package cli

import (
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"toolforge/internal/catalog"
	"toolforge/internal/installer"
	"toolforge/internal/tui"
)

var (
	composeNoProgress  bool
	composeConcurrency int
	composeForce       bool
	composeDryRun      bool
)

func newComposeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Pre-seed shared dependencies, then install the whole catalog",
		Args:  cobra.NoArgs,
		RunE:  runCompose,
	}

	cmd.Flags().BoolVar(&composeNoProgress, "no-progress", false, "Disable the interactive progress display")
	cmd.Flags().IntVar(&composeConcurrency, "concurrency", 0, "Concurrent tool installs (default: catalog setting)")
	cmd.Flags().BoolVar(&composeForce, "force", false, "Reinstall tools even when satisfied")
	cmd.Flags().BoolVar(&composeDryRun, "dry-run", false, "Report the plan without mutating the host")

	return cmd
}

func runCompose(cmd *cobra.Command, _ []string) error {
	s, err := newRunSession()
	if err != nil {
		return err
	}
	defer s.close()

	if len(s.catalog.Tools) == 0 {
		return fmt.Errorf("catalog %s has no tools", resolveCatalogPath())
	}

	ctx := cmd.Context()
	outWriter := cmd.OutOrStdout()
	mode := tui.DetectMode(outWriter, composeNoProgress, outputJSON)

	opts := installer.ComposeOptions{
		Concurrency: composeConcurrency,
		Force:       composeForce,
		DryRun:      composeDryRun,
	}

	var res installer.ComposeResult
	composeWork := func(send func(tea.Msg)) {
		if send != nil {
			opts.Reporter = tui.NewReporter(send)
		}
		res = s.engine.Compose(ctx, &s.catalog, opts)
	}

	if mode == tui.ModeTUI {
		// The table owns the terminal from here; keep engine logs in the file.
		s.logs.FileOnly()
		model := tui.NewInstallModel()
		for _, spec := range s.catalog.Tools {
			model.AddTool(spec.Name, spec.Strategy, spec.Version)
		}
		if err := tui.RunWithWork(outWriter, model, composeWork); err != nil {
			return err
		}
	} else {
		if mode == tui.ModePlain {
			opts.Reporter = &lineReporter{out: outWriter}
		}
		composeWork(nil)
	}

	if mode == tui.ModeJSON {
		if err := writeComposeJSON(cmd, res); err != nil {
			return err
		}
	} else {
		printComposeSummary(cmd, s, res, mode)
	}

	if !res.OK() {
		return composeError(res)
	}
	return nil
}

// lineReporter prints one line per finished tool when no TUI is running.
// Compose calls it from its worker pool, so writes are serialized.
type lineReporter struct {
	mu  sync.Mutex
	out io.Writer
}

func (l *lineReporter) Start(catalog.ToolSpec) {}

func (l *lineReporter) Phase(string, installer.PhaseResult) {}

func (l *lineReporter) Complete(report installer.Report) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch report.Status {
	case installer.StatusFailed:
		fmt.Fprintf(l.out, "%-14s %s: %v\n", report.Tool, report.Status, report.Err)
	default:
		fmt.Fprintf(l.out, "%-14s %s %s\n", report.Tool, report.Status, nonEmptyOrDash(report.Observed()))
	}
}

func printComposeSummary(cmd *cobra.Command, s *session, res installer.ComposeResult, mode tui.OutputMode) {
	out := cmd.OutOrStdout()

	if res.PreseedErr != nil {
		fmt.Fprintf(out, "pre-seed failed: %v\n", res.PreseedErr)
	} else if len(res.Preseed.Failed) > 0 {
		fmt.Fprintf(out, "pre-seed: %d packages, %d failed (%s)\n",
			len(res.Preseed.Packages), len(res.Preseed.Failed), joinComma(res.Preseed.Failed))
	}

	if mode == tui.ModeTUI {
		done := len(res.Reports) - res.Failed()
		fmt.Fprintf(out, "%d of %d tools in a good state\n", done, len(res.Reports))
	} else {
		printReportTable(cmd, res.Reports)
	}

	if s.logs != nil && res.Failed() > 0 {
		fmt.Fprintf(out, "full log: %s\n", s.logs.Path)
	}
}

func composeError(res installer.ComposeResult) error {
	if res.Failed() > 0 {
		return fmt.Errorf("%d of %d tools failed", res.Failed(), len(res.Reports))
	}
	return fmt.Errorf("pre-seed failed: %w", res.PreseedErr)
}

type composeJSON struct {
	Preseed preseedJSON  `json:"preseed"`
	Reports []reportJSON `json:"reports"`
	OK      bool         `json:"ok"`
}

func writeComposeJSON(cmd *cobra.Command, res installer.ComposeResult) error {
	payload := composeJSON{
		Preseed: toPreseedJSON(res.Preseed, res.PreseedErr),
		Reports: make([]reportJSON, 0, len(res.Reports)),
		OK:      res.OK(),
	}
	for _, r := range res.Reports {
		payload.Reports = append(payload.Reports, toReportJSON(r))
	}
	return writeJSON(cmd, payload)
}
