package installer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"toolforge/internal/catalog"
	"toolforge/internal/paths"
	"toolforge/internal/platform"
)

// Stamp records the last shared-dependency pre-seed. It is the only
// state the engine persists about past runs, and it is advisory: installs
// re-derive everything else from the live system.
type Stamp struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Packages  []string  `json:"packages"`
	Failed    []string  `json:"failed,omitempty"`
}

// PreseedResult reports what the pre-seed did.
type PreseedResult struct {
	Packages  []string // the aggregated union, sorted
	Installed []string
	Failed    []string
	StampPath string
	DryRun    bool
}

// Preseed installs the union of every catalog prerequisite in one apt
// transaction and stamps the state dir. Compose runs it exactly once
// before its concurrent per-tool installs.
func (e *Engine) Preseed(ctx context.Context, cat *catalog.Catalog, dryRun bool) (PreseedResult, error) {
	overrides := e.overrides()
	pkgs := preseedPackages(cat, overrides)
	res := PreseedResult{Packages: pkgs, StampPath: e.Layout.StampFile(), DryRun: dryRun}

	if len(pkgs) == 0 {
		e.logger().Info("preseed: no shared prerequisites declared")
		return res, nil
	}
	if dryRun {
		return res, nil
	}
	if !e.Apt.Available() {
		return res, fmt.Errorf("preseed needs apt-get, which this host lacks")
	}

	e.logger().Info("preseeding shared prerequisites", "packages", len(pkgs))
	if err := e.Apt.Install(ctx, pkgs...); err != nil {
		// The union transaction can trip over one bad package name; fall
		// back to per-package installs so one stray entry does not sink
		// the whole seed.
		e.logger().Warn("preseed transaction failed; retrying per package", "err", err)
		res.Failed = e.Apt.TryInstall(ctx, pkgs...)
	}
	res.Installed = subtract(pkgs, res.Failed)

	stamp := Stamp{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Packages:  res.Installed,
		Failed:    res.Failed,
	}
	if err := writeStamp(e.Layout, stamp); err != nil {
		return res, fmt.Errorf("record preseed stamp: %w", err)
	}
	return res, nil
}

// preseedPackages aggregates prerequisites across the whole catalog:
// declared apt packages, runtime expansions, linkage-mapped libraries,
// and the runtimes implied by each tool's strategy.
func preseedPackages(cat *catalog.Catalog, overrides map[string][]string) []string {
	set := map[string]bool{}
	add := func(pkgs []string) {
		for _, p := range pkgs {
			set[p] = true
		}
	}

	for _, tool := range cat.Tools {
		add(prereqPackages(tool.Prereqs, overrides))
		add(strategyRuntimePackages(tool))
	}

	out := make([]string, 0, len(set))
	for pkg := range set {
		out = append(out, pkg)
	}
	sort.Strings(out)
	return out
}

// strategyRuntimePackages names the runtime a strategy itself depends on,
// so the seed covers pip/npm/gem/java hosts before any tool needs them.
func strategyRuntimePackages(spec catalog.ToolSpec) []string {
	switch spec.Kind() {
	case catalog.KindLanguage:
		manager := "pip3"
		if spec.Pip != nil && spec.Pip.Manager != "" {
			manager = spec.Pip.Manager
		}
		switch manager {
		case "npm":
			return platform.RuntimePackages("node")
		case "gem":
			return platform.RuntimePackages("ruby")
		default:
			return platform.RuntimePackages("python")
		}
	case catalog.KindJar:
		return platform.RuntimePackages("java")
	default:
		return nil
	}
}

func subtract(all, remove []string) []string {
	if len(remove) == 0 {
		return all
	}
	gone := map[string]bool{}
	for _, r := range remove {
		gone[r] = true
	}
	var kept []string
	for _, a := range all {
		if !gone[a] {
			kept = append(kept, a)
		}
	}
	return kept
}

func writeStamp(layout paths.Layout, stamp Stamp) error {
	if err := layout.EnsureState(); err != nil {
		return err
	}
	path := layout.StampFile()

	buf, err := json.MarshalIndent(stamp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal stamp: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "preseed-*.json")
	if err != nil {
		return fmt.Errorf("create temp stamp: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp stamp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp stamp: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// LoadStamp reads the pre-seed stamp; ok is false when none exists.
func LoadStamp(layout paths.Layout) (Stamp, bool, error) {
	contents, err := os.ReadFile(layout.StampFile())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Stamp{}, false, nil
		}
		return Stamp{}, false, fmt.Errorf("read preseed stamp: %w", err)
	}
	var stamp Stamp
	if err := json.Unmarshal(contents, &stamp); err != nil {
		return Stamp{}, false, fmt.Errorf("unmarshal preseed stamp: %w", err)
	}
	return stamp, true, nil
}
