package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"toolforge/internal/catalog"
	"toolforge/internal/probe"
	"toolforge/internal/version"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [tool|all]",
		Short: "Probe catalog tools without installing anything",
		Long: "Status probes each tool's validation command and relates the observed\n" +
			"version to the required one. It never mutates the host and always\n" +
			"exits zero; use validate for a pass/fail check.",
		Args: cobra.MaximumNArgs(1),
		RunE: runStatus,
	}
}

type statusRow struct {
	Tool     string `json:"tool"`
	Required string `json:"required"`
	Observed string `json:"observed,omitempty"`
	Relation string `json:"relation"`
	Path     string `json:"path,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}

	specs, err := resolveTools(s.catalog, args)
	if err != nil {
		return err
	}

	prober := s.prober()
	rows := make([]statusRow, 0, len(specs))
	for _, spec := range specs {
		rows = append(rows, probeStatus(cmd, prober, spec))
	}

	if outputJSON {
		return writeJSON(cmd, rows)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tREQUIRED\tOBSERVED\tRELATION\tPATH")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			row.Tool,
			nonEmptyOrDash(row.Required),
			nonEmptyOrDash(row.Observed),
			row.Relation,
			nonEmptyOrDash(row.Path),
		)
	}
	w.Flush()

	return nil
}

func probeStatus(cmd *cobra.Command, prober *probe.Prober, spec catalog.ToolSpec) statusRow {
	row := statusRow{Tool: spec.Name, Required: spec.Version}

	line := spec.ValidateCmd
	if line == "" {
		line = spec.Name + " --version"
	}

	res := prober.CommandLine(cmd.Context(), line)
	if res.State == probe.Absent {
		row.Relation = "absent"
		return row
	}

	row.Path = res.Path
	row.Observed = probe.FirstLine(res.RawOutput)
	if res.TimedOut {
		row.Relation = "timeout"
		return row
	}
	row.Relation = version.Compare(res.RawOutput, spec.Version).String()
	return row
}
