package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"toolforge/internal/installer"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [tool|all]",
		Short: "Run validation commands and fail on any unsatisfied tool",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runValidate,
	}
}

type validateRow struct {
	Tool     string `json:"tool"`
	Passed   bool   `json:"passed"`
	Observed string `json:"observed,omitempty"`
	Relation string `json:"relation"`
	Detail   string `json:"detail,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}

	specs, err := resolveTools(s.catalog, args)
	if err != nil {
		return err
	}

	prober := s.prober()
	rows := make([]validateRow, 0, len(specs))
	var errs []error
	for _, spec := range specs {
		res := installer.Validate(cmd.Context(), prober, spec)
		rows = append(rows, validateRow{
			Tool:     spec.Name,
			Passed:   res.Passed,
			Observed: res.Observed,
			Relation: res.Relation.String(),
			Detail:   res.Detail,
		})
		if !res.Passed {
			errs = append(errs, fmt.Errorf("%s: %s", spec.Name, res.Detail))
		}
	}

	if outputJSON {
		if err := writeJSON(cmd, rows); err != nil {
			return err
		}
	} else {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "TOOL\tPASSED\tRELATION\tDETAIL")
		for _, row := range rows {
			passed := "no"
			if row.Passed {
				passed = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.Tool, passed, row.Relation, nonEmptyOrDash(row.Detail))
		}
		w.Flush()
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
