// Package linkage detects and heals missing shared-library dependencies of
// freshly installed binaries.
//
// Healing is a single pass: map the missing sonames to packages, install
// them, run ldconfig, re-inspect exactly once. Anything still missing is
// reported as a warning for the operator; it never fails an install on its
// own because many tools work despite an unresolvable optional library.
package linkage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"toolforge/internal/apt"
	"toolforge/internal/execx"
	"toolforge/internal/platform"
)

// Outcome classifies a heal pass.
type Outcome int

const (
	NoActionNeeded Outcome = iota
	Healed
	StillMissing
)

func (o Outcome) String() string {
	switch o {
	case Healed:
		return "healed"
	case StillMissing:
		return "still-missing"
	default:
		return "no-action-needed"
	}
}

// Report is the result of one heal pass.
type Report struct {
	Outcome   Outcome
	Missing   []string // sonames unresolved after the pass
	Installed []string // packages installed during the pass
	Unmapped  []string // sonames with no known package mapping
}

// Healer inspects dynamic linkage and performs the one-shot remediation.
type Healer struct {
	Runner    execx.Runner
	Caps      platform.Capabilities
	Apt       *apt.Manager
	Log       execx.Logger
	Overrides map[string][]string
}

// NewHealer wires a Healer; nil logger becomes a no-op.
func NewHealer(runner execx.Runner, caps platform.Capabilities, aptMgr *apt.Manager, log execx.Logger) *Healer {
	if log == nil {
		log = execx.NopLogger{}
	}
	return &Healer{Runner: runner, Caps: caps, Apt: aptMgr, Log: log}
}

// Inspect runs the dynamic loader check against binary and returns the
// sonames it reports as missing. A host without ldd, or a static binary,
// yields an empty list.
func (h *Healer) Inspect(ctx context.Context, binary string) ([]string, error) {
	if h.Caps.Ldd == "" {
		return nil, nil
	}

	res, err := h.Runner.Run(ctx, h.Caps.Ldd, []string{binary}, execx.RunOptions{})
	combined := res.Combined()
	if err != nil {
		// ldd exits non-zero for static binaries and prints a note; that
		// is a clean "nothing to heal", not a failure.
		if strings.Contains(combined, "not a dynamic executable") ||
			strings.Contains(combined, "statically linked") {
			return nil, nil
		}
		return nil, fmt.Errorf("inspect %s: %w", binary, err)
	}

	return parseMissing(combined), nil
}

// Heal runs the single remediation pass for binary.
func (h *Healer) Heal(ctx context.Context, binary string) (Report, error) {
	missing, err := h.Inspect(ctx, binary)
	if err != nil {
		return Report{}, err
	}
	if len(missing) == 0 {
		return Report{Outcome: NoActionNeeded}, nil
	}

	h.Log.Printf("missing shared libraries for %s: %s", binary, strings.Join(missing, ", "))

	pkgSet := make(map[string]bool)
	var unmapped []string
	for _, soname := range missing {
		pkgs, ok := PackagesFor(soname, h.Overrides)
		if !ok {
			unmapped = append(unmapped, soname)
			continue
		}
		for _, p := range pkgs {
			pkgSet[p] = true
		}
	}

	var installed []string
	if len(pkgSet) > 0 && h.Apt != nil && h.Apt.Available() {
		installed = sortedKeys(pkgSet)
		if err := h.Apt.Install(ctx, installed...); err != nil {
			h.Log.Printf("library package install failed: %v", err)
			installed = nil
		} else {
			h.ldconfig(ctx)
		}
	}

	// Exactly one re-inspect; no loop.
	still, err := h.Inspect(ctx, binary)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Missing:   still,
		Installed: installed,
		Unmapped:  unmapped,
	}
	if len(still) == 0 {
		report.Outcome = Healed
		return report, nil
	}
	report.Outcome = StillMissing
	return report, nil
}

func (h *Healer) ldconfig(ctx context.Context) {
	if h.Caps.Ldconfig == "" {
		return
	}
	cmd, args := h.Caps.Privileged(h.Caps.Ldconfig)
	if _, err := h.Runner.Run(ctx, cmd, args, execx.RunOptions{}); err != nil {
		h.Log.Printf("ldconfig failed: %v", err)
	}
}

// parseMissing extracts sonames from ldd output lines shaped like
// "\tlibfoo.so.1 => not found".
func parseMissing(output string) []string {
	var missing []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "=> not found") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		soname := fields[0]
		if !seen[soname] {
			seen[soname] = true
			missing = append(missing, soname)
		}
	}
	return missing
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
