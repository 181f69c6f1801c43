package installer

import (
	"context"
	"fmt"

	"toolforge/internal/catalog"
	"toolforge/internal/probe"
	"toolforge/internal/version"
)

// ValidationResult scores one validation run.
type ValidationResult struct {
	Passed   bool
	Observed string // first banner line the command printed
	Relation version.Relation
	Detail   string
}

// Validate runs the tool's validation command and relates its output to
// the required version. Match and Newer pass; Older and Incomparable fail
// with both strings in the detail so the operator sees exactly what the
// tool said.
func Validate(ctx context.Context, prober *probe.Prober, spec catalog.ToolSpec) ValidationResult {
	cmd := spec.ValidateCmd
	if cmd == "" {
		cmd = spec.Name + " --version"
	}

	res := prober.CommandLine(ctx, cmd)
	if res.State == probe.Absent {
		return ValidationResult{
			Relation: version.Incomparable,
			Detail:   fmt.Sprintf("validation command %q not found on PATH", cmd),
		}
	}
	if res.TimedOut {
		return ValidationResult{
			Relation: version.Incomparable,
			Detail:   fmt.Sprintf("validation command %q timed out", cmd),
		}
	}

	observed := probe.FirstLine(res.RawOutput)
	rel := version.Compare(res.RawOutput, spec.Version)
	out := ValidationResult{Observed: observed, Relation: rel}

	if rel.Satisfies() {
		out.Passed = true
		out.Detail = fmt.Sprintf("%s (%s)", observed, rel)
		return out
	}

	out.Detail = fmt.Sprintf("required %q, observed %q (%s)", spec.Version, observed, rel)
	return out
}
