package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"toolforge/internal/installer"
	"toolforge/internal/tui"
)

var preseedDryRun bool

func newPreseedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preseed",
		Short: "Install the union of catalog prerequisites in one apt transaction",
		Args:  cobra.NoArgs,
		RunE:  runPreseed,
	}

	cmd.Flags().BoolVar(&preseedDryRun, "dry-run", false, "Report the package union without installing")

	return cmd
}

func runPreseed(cmd *cobra.Command, _ []string) error {
	s, err := newRunSession()
	if err != nil {
		return err
	}
	defer s.close()

	outWriter := cmd.OutOrStdout()
	mode := tui.DetectMode(outWriter, false, outputJSON)

	var status *tui.StatusWriter
	if mode == tui.ModeTUI && !preseedDryRun {
		status = tui.NewStatusWriter(outWriter)
		status.Update("Seeding shared dependencies...")
	}

	res, preseedErr := s.engine.Preseed(cmd.Context(), &s.catalog, preseedDryRun)

	if status != nil {
		status.Stop() // hand off to the summary
	}

	if mode == tui.ModeJSON {
		if err := writeJSON(cmd, toPreseedJSON(res, preseedErr)); err != nil {
			return err
		}
		return preseedErr
	}

	if preseedErr != nil {
		return preseedErr
	}

	if len(res.Packages) == 0 {
		fmt.Fprintln(outWriter, "no shared packages to seed")
		return nil
	}

	verb := "seeded"
	if res.DryRun {
		verb = "would seed"
	}
	fmt.Fprintf(outWriter, "%s %d packages: %s\n", verb, len(res.Packages), joinComma(res.Packages))
	if len(res.Failed) > 0 {
		fmt.Fprintf(outWriter, "failed: %s (per-tool installs will retry them)\n", joinComma(res.Failed))
	}
	if !res.DryRun {
		fmt.Fprintf(outWriter, "stamp: %s\n", res.StampPath)
	}
	return nil
}

type preseedJSON struct {
	Packages  []string `json:"packages"`
	Installed []string `json:"installed,omitempty"`
	Failed    []string `json:"failed,omitempty"`
	Stamp     string   `json:"stamp,omitempty"`
	DryRun    bool     `json:"dry_run,omitempty"`
	Error     string   `json:"error,omitempty"`
}

func toPreseedJSON(res installer.PreseedResult, err error) preseedJSON {
	out := preseedJSON{
		Packages:  res.Packages,
		Installed: res.Installed,
		Failed:    res.Failed,
		DryRun:    res.DryRun,
	}
	if !res.DryRun {
		out.Stamp = res.StampPath
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}
