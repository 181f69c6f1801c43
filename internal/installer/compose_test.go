package installer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"toolforge/internal/catalog"
)

// recordingReporter captures progress callbacks from concurrent workers.
type recordingReporter struct {
	mu        sync.Mutex
	starts    []string
	phases    map[string]int
	completes []Report
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{phases: map[string]int{}}
}

func (r *recordingReporter) Start(spec catalog.ToolSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, spec.Name)
}

func (r *recordingReporter) Phase(tool string, _ PhaseResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases[tool]++
}

func (r *recordingReporter) Complete(report Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completes = append(r.completes, report)
}

func composeCatalog(h *hostFake, tools ...string) *catalog.Catalog {
	cat := &catalog.Catalog{}
	for _, tool := range tools {
		h.appearsAfter(tool, tool, tool+" 1.0.0")
		cat.Tools = append(cat.Tools, catalog.ToolSpec{
			Name:        tool,
			Version:     "1.0.0",
			Strategy:    "apt",
			ValidateCmd: tool + " --version",
			Apt:         &catalog.AptSpec{Packages: []string{tool}},
			Prereqs: []catalog.Prereq{
				{Name: "curl", ProbeCmd: "curl --version", Apt: []string{"curl"}},
			},
		})
	}
	return cat
}

func TestComposeSeedsOnceThenInstallsEachTool(t *testing.T) {
	h := newHostFake()
	e := testEngine(t, h)
	cat := composeCatalog(h, "alpha", "beta")
	rep := newRecordingReporter()

	out := e.Compose(context.Background(), cat, ComposeOptions{Reporter: rep})
	if !out.OK() {
		t.Fatalf("Compose failed: preseed=%v reports=%+v", out.PreseedErr, out.Reports)
	}

	// The shared prerequisite is seeded exactly once, never per tool.
	if got := h.count("install -y curl"); got != 1 {
		t.Errorf("curl installed %d times, want 1", got)
	}
	for i, tool := range []string{"alpha", "beta"} {
		if out.Reports[i].Tool != tool {
			t.Errorf("Reports[%d].Tool = %q, want %q (order must follow the catalog)", i, out.Reports[i].Tool, tool)
		}
		if out.Reports[i].Status != StatusDone {
			t.Errorf("%s: Status = %v: %v", tool, out.Reports[i].Status, out.Reports[i].Err)
		}
		// Per-tool runs trust the seed: no prereq phases.
		for _, p := range out.Reports[i].Phases {
			if p.Phase == PhaseCheckPrereqs {
				t.Errorf("%s re-ran prerequisite checks after the seed", tool)
			}
		}
	}

	rep.mu.Lock()
	defer rep.mu.Unlock()
	if len(rep.starts) != 2 || len(rep.completes) != 2 {
		t.Errorf("reporter saw %d starts, %d completes", len(rep.starts), len(rep.completes))
	}
	for _, tool := range []string{"alpha", "beta"} {
		if rep.phases[tool] == 0 {
			t.Errorf("reporter saw no phases for %s", tool)
		}
	}
}

func TestComposeToolFailureIsIndependent(t *testing.T) {
	h := newHostFake()
	e := testEngine(t, h)
	cat := composeCatalog(h, "alpha", "beta")
	// alpha's package is gone; its effect must not fire.
	delete(h.effects, "install -y alpha")
	h.replies["install -y alpha"] = []canned{
		{errOut: "E: Unable to locate package alpha", err: errors.New("exit status 100")},
	}

	out := e.Compose(context.Background(), cat, ComposeOptions{})
	if out.OK() {
		t.Fatal("Compose reported OK with a failed tool")
	}
	if out.Failed() != 1 {
		t.Fatalf("Failed() = %d, want 1", out.Failed())
	}
	if out.Reports[0].Status != StatusFailed {
		t.Errorf("alpha Status = %v, want Failed", out.Reports[0].Status)
	}
	if out.Reports[1].Status != StatusDone {
		t.Errorf("beta Status = %v, want Done (failures must not cascade)", out.Reports[1].Status)
	}
}

func TestComposeBoundsConcurrency(t *testing.T) {
	h := newHostFake()
	e := testEngine(t, h)

	var tools []string
	for i := 0; i < 6; i++ {
		tools = append(tools, fmt.Sprintf("tool%d", i))
	}
	cat := composeCatalog(h, tools...)

	out := e.Compose(context.Background(), cat, ComposeOptions{Concurrency: 2})
	if !out.OK() {
		t.Fatalf("Compose failed: %v", out.PreseedErr)
	}

	h.mu.Lock()
	max := h.maxFlight
	h.mu.Unlock()
	if max > 2 {
		t.Errorf("observed %d concurrent commands, want at most 2", max)
	}
}

func TestComposeDryRunPlansWithoutMutating(t *testing.T) {
	h := newHostFake()
	e := testEngine(t, h)
	cat := composeCatalog(h, "alpha", "beta")

	out := e.Compose(context.Background(), cat, ComposeOptions{DryRun: true})
	if !out.OK() {
		t.Fatalf("Compose failed: %v", out.PreseedErr)
	}
	if h.saw("install -y") {
		t.Error("dry-run compose mutated the host")
	}
	if !out.Preseed.DryRun {
		t.Error("preseed result not marked dry-run")
	}
	for _, r := range out.Reports {
		if !r.DryRun {
			t.Errorf("%s: report not marked dry-run", r.Tool)
		}
		if r.Status != StatusDone {
			t.Errorf("%s: Status = %v: %v", r.Tool, r.Status, r.Err)
		}
	}
}
