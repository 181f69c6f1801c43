package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"toolforge/internal/installer"
)

type phaseJSON struct {
	Phase    string   `json:"phase"`
	OK       bool     `json:"ok"`
	Detail   string   `json:"detail,omitempty"`
	Observed string   `json:"observed,omitempty"`
	Fallback string   `json:"fallback,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type reportJSON struct {
	Tool        string      `json:"tool"`
	Status      string      `json:"status"`
	Observed    string      `json:"observed,omitempty"`
	DryRun      bool        `json:"dry_run,omitempty"`
	ElapsedMS   int64       `json:"elapsed_ms"`
	Phases      []phaseJSON `json:"phases"`
	FailedPhase string      `json:"failed_phase,omitempty"`
	Hint        string      `json:"hint,omitempty"`
	Error       string      `json:"error,omitempty"`
}

func toReportJSON(r installer.Report) reportJSON {
	out := reportJSON{
		Tool:        r.Tool,
		Status:      r.Status.String(),
		Observed:    r.Observed(),
		DryRun:      r.DryRun,
		ElapsedMS:   r.Elapsed.Milliseconds(),
		FailedPhase: string(r.FailedPhase),
		Hint:        r.Hint,
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	for _, p := range r.Phases {
		pj := phaseJSON{
			Phase:    string(p.Phase),
			OK:       p.OK,
			Detail:   p.Detail,
			Observed: p.Observed,
			Fallback: p.Fallback,
			Warnings: p.Warnings,
		}
		if p.Err != nil {
			pj.Error = p.Err.Error()
		}
		out.Phases = append(out.Phases, pj)
	}
	return out
}

func writeJSON(cmd *cobra.Command, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func writeReportsJSON(cmd *cobra.Command, reports []installer.Report) error {
	payload := make([]reportJSON, 0, len(reports))
	for _, r := range reports {
		payload = append(payload, toReportJSON(r))
	}
	return writeJSON(cmd, payload)
}

// printReportTable renders the final per-tool summary in tool order.
func printReportTable(cmd *cobra.Command, reports []installer.Report) {
	out := cmd.OutOrStdout()
	if len(reports) == 0 {
		fmt.Fprintln(out, "(no tools)")
		return
	}

	rows := make([]installer.Report, len(reports))
	copy(rows, reports)
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Tool < rows[j].Tool
	})

	fmt.Fprintf(out, "%-14s %-18s %-12s %s\n", "Tool", "Status", "Observed", "Detail")
	for _, r := range rows {
		detail := lastDetail(r)
		fmt.Fprintf(out, "%-14s %-18s %-12s %s\n", r.Tool, r.Status.String(), nonEmptyOrDash(r.Observed()), detail)
		if r.Status == installer.StatusFailed {
			fmt.Fprintf(out, "  phase: %s\n", r.FailedPhase)
			if r.Hint != "" {
				fmt.Fprintf(out, "  hint:  %s\n", r.Hint)
			}
		}
		for _, w := range r.Warnings() {
			fmt.Fprintf(out, "  warning: %s\n", w)
		}
	}
}

func lastDetail(r installer.Report) string {
	if r.Err != nil {
		return r.Err.Error()
	}
	for i := len(r.Phases) - 1; i >= 0; i-- {
		if r.Phases[i].Detail != "" {
			return r.Phases[i].Detail
		}
	}
	return "-"
}
