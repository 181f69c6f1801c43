package strategy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"toolforge/internal/apt"
	"toolforge/internal/catalog"
	"toolforge/internal/execx"
	"toolforge/internal/fetch"
	"toolforge/internal/paths"
	"toolforge/internal/platform"
)

type recordedCall struct {
	command string
	args    []string
}

func (c recordedCall) line() string {
	return strings.Join(append([]string{c.command}, c.args...), " ")
}

type scriptResult struct {
	out   string
	err   error
	block bool // park until the context expires
}

// scriptRunner matches each invocation against substring keys and replays
// the scripted result; unmatched commands succeed silently.
type scriptRunner struct {
	mu      sync.Mutex
	calls   []recordedCall
	results map[string]scriptResult
}

func (r *scriptRunner) Run(ctx context.Context, command string, args []string, _ execx.RunOptions) (execx.RunResult, error) {
	r.mu.Lock()
	c := recordedCall{command: command, args: args}
	r.calls = append(r.calls, c)
	var hit *scriptResult
	for key, res := range r.results {
		if strings.Contains(c.line(), key) {
			res := res
			hit = &res
			break
		}
	}
	r.mu.Unlock()

	if hit == nil {
		return execx.RunResult{}, nil
	}
	if hit.block {
		<-ctx.Done()
		return execx.RunResult{}, ctx.Err()
	}
	return execx.RunResult{Stdout: []byte(hit.out)}, hit.err
}

func (r *scriptRunner) saw(sub string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if strings.Contains(c.line(), sub) {
			return true
		}
	}
	return false
}

func (r *scriptRunner) count(sub string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if strings.Contains(c.line(), sub) {
			n++
		}
	}
	return n
}

func allCaps() platform.Capabilities {
	return platform.Capabilities{
		AptGet:   "/usr/bin/apt-get",
		Pip:      "/usr/bin/pip3",
		Npm:      "/usr/bin/npm",
		Gem:      "/usr/bin/gem",
		Flatpak:  "/usr/bin/flatpak",
		Helm:     "/usr/local/bin/helm",
		Git:      "/usr/bin/git",
		Java:     "/usr/bin/java",
		Tar:      "/usr/bin/tar",
		Make:     "/usr/bin/make",
		Unzip:    "/usr/bin/unzip",
		Ldd:      "/usr/bin/ldd",
		Ldconfig: "/sbin/ldconfig",
	}
}

func testDeps(t *testing.T, runner execx.Runner, caps platform.Capabilities) Deps {
	t.Helper()
	root := t.TempDir()
	layout := paths.Layout{
		InstallRoot: filepath.Join(root, "usr-local"),
		OptRoot:     filepath.Join(root, "opt"),
		StateDir:    filepath.Join(root, "state"),
		WorkDir:     filepath.Join(root, "work"),
	}
	if err := os.MkdirAll(layout.WorkDir, 0o755); err != nil {
		t.Fatal(err)
	}

	client := fetch.New(5 * time.Second)
	client.RetryInterval = time.Millisecond

	return Deps{
		Runner: runner,
		Caps:   caps,
		Apt:    apt.NewManager(runner, caps, nil),
		Fetch:  client,
		Layout: layout,
	}
}

func boolPtr(b bool) *bool { return &b }

func TestForToolDispatch(t *testing.T) {
	deps := testDeps(t, &scriptRunner{}, allCaps())
	cases := []struct {
		strategy string
		want     string
	}{
		{"apt", "apt"},
		{"pip", "language-package-manager"},
		{"npm", "language-package-manager"},
		{"gem", "language-package-manager"},
		{"binary", "binary-download"},
		{"source", "source-build"},
		{"flatpak", "containerized-package"},
		{"helm", "containerized-package"},
		{"jar", "jar-with-wrapper"},
	}
	for _, tc := range cases {
		s, err := ForTool(catalog.ToolSpec{Name: "x", Strategy: tc.strategy}, deps)
		if err != nil {
			t.Fatalf("ForTool(%q): %v", tc.strategy, err)
		}
		if s.Name() != tc.want {
			t.Errorf("ForTool(%q) = %s, want %s", tc.strategy, s.Name(), tc.want)
		}
	}

	if _, err := ForTool(catalog.ToolSpec{Name: "x", Strategy: "carrier-pigeon"}, deps); err == nil {
		t.Fatal("unknown strategy accepted")
	}
}

func TestCheckCapabilitiesNamesTheGap(t *testing.T) {
	deps := testDeps(t, &scriptRunner{}, platform.Capabilities{})
	s := &AptPackage{deps: deps}

	err := CheckCapabilities(s, catalog.ToolSpec{Name: "jq", Strategy: "apt"})
	if !errors.Is(err, ErrCapabilityMissing) {
		t.Fatalf("err = %v, want ErrCapabilityMissing", err)
	}
	if !strings.Contains(err.Error(), "apt-get") {
		t.Errorf("error %q does not name the missing tool", err)
	}
}

func TestAptPackageInstall(t *testing.T) {
	runner := &scriptRunner{}
	deps := testDeps(t, runner, allCaps())
	s := &AptPackage{deps: deps}

	out := s.Install(context.Background(), catalog.ToolSpec{
		Name:     "ripgrep",
		Strategy: "apt",
		Apt:      &catalog.AptSpec{Packages: []string{"ripgrep"}},
	})
	if out.Level != Success {
		t.Fatalf("Level = %v (%s), want Success", out.Level, out.Detail)
	}
	if !runner.saw("install -y ripgrep") {
		t.Error("apt-get install never ran")
	}
}

func TestAptPackageOptionalFailureIsPartial(t *testing.T) {
	runner := &scriptRunner{results: map[string]scriptResult{
		"bash-completion": {out: "E: Unable to locate package bash-completion", err: errors.New("exit status 100")},
	}}
	deps := testDeps(t, runner, allCaps())
	s := &AptPackage{deps: deps}

	out := s.Install(context.Background(), catalog.ToolSpec{
		Name:     "git",
		Strategy: "apt",
		Apt: &catalog.AptSpec{
			Packages:         []string{"git"},
			OptionalPackages: []string{"bash-completion"},
		},
	})
	if out.Level != PartialSuccess {
		t.Fatalf("Level = %v, want PartialSuccess", out.Level)
	}
	if len(out.Warnings) == 0 || !strings.Contains(out.Warnings[0], "bash-completion") {
		t.Errorf("warnings = %v, want one naming bash-completion", out.Warnings)
	}
}

func TestAptPackageRequiredFailureIsFatal(t *testing.T) {
	runner := &scriptRunner{results: map[string]scriptResult{
		"install -y nope": {out: "E: Unable to locate package nope", err: errors.New("exit status 100")},
	}}
	deps := testDeps(t, runner, allCaps())
	s := &AptPackage{deps: deps}

	out := s.Install(context.Background(), catalog.ToolSpec{
		Name:     "nope",
		Strategy: "apt",
		Apt:      &catalog.AptSpec{Packages: []string{"nope"}},
	})
	if out.Level != Failure {
		t.Fatalf("Level = %v, want Failure", out.Level)
	}
	if out.Err == nil || !strings.Contains(out.Err.Error(), "Unable to locate") {
		t.Errorf("Err = %v, want apt's own message retained", out.Err)
	}
}

func TestLanguagePackageArgs(t *testing.T) {
	cases := []struct {
		name    string
		spec    catalog.ToolSpec
		command string
		want    string
	}{
		{
			name: "pip pinned",
			spec: catalog.ToolSpec{Name: "yt-dlp", Version: "2024.04.09", Strategy: "pip",
				Pip: &catalog.PipSpec{Manager: "pip3", Package: "yt-dlp", BreakSystemPackages: true}},
			command: "/usr/bin/pip3",
			want:    "install --break-system-packages yt-dlp==2024.04.09",
		},
		{
			name: "pip latest drops the pin",
			spec: catalog.ToolSpec{Name: "httpie", Version: "latest", Strategy: "pip",
				Pip: &catalog.PipSpec{Manager: "pip3", Package: "httpie"}},
			command: "/usr/bin/pip3",
			want:    "install httpie",
		},
		{
			name: "npm global with at-pin",
			spec: catalog.ToolSpec{Name: "serve", Version: "14.2.1", Strategy: "npm",
				Pip: &catalog.PipSpec{Manager: "npm", Package: "serve"}},
			command: "/usr/bin/npm",
			want:    "install -g serve@14.2.1",
		},
		{
			name: "gem with version flag",
			spec: catalog.ToolSpec{Name: "mdl", Version: "0.13.0", Strategy: "gem",
				Pip: &catalog.PipSpec{Manager: "gem", Package: "mdl"}},
			command: "/usr/bin/gem",
			want:    "install mdl -v 0.13.0",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &scriptRunner{}
			deps := testDeps(t, runner, allCaps())
			s := &LanguagePackage{deps: deps}

			out := s.Install(context.Background(), tc.spec)
			if out.Level != Success {
				t.Fatalf("Level = %v (%s)", out.Level, out.Detail)
			}
			if !runner.saw(tc.command + " " + tc.want) {
				t.Errorf("no call matching %q %q; calls: %v", tc.command, tc.want, runner.calls)
			}
		})
	}
}

func TestLanguagePackageFailureKeepsManagerOutput(t *testing.T) {
	runner := &scriptRunner{results: map[string]scriptResult{
		"install": {
			out: "Collecting broken\nERROR: No matching distribution found for broken==9.9.9",
			err: errors.New("exit status 1"),
		},
	}}
	deps := testDeps(t, runner, allCaps())
	s := &LanguagePackage{deps: deps}

	out := s.Install(context.Background(), catalog.ToolSpec{
		Name: "broken", Version: "9.9.9", Strategy: "pip",
		Pip: &catalog.PipSpec{Manager: "pip3", Package: "broken"},
	})
	if out.Level != Failure {
		t.Fatalf("Level = %v, want Failure", out.Level)
	}
	if !strings.Contains(out.Err.Error(), "No matching distribution") {
		t.Errorf("Err = %v, want pip's message in the detail", out.Err)
	}
}

func TestLanguagePackageMissingManager(t *testing.T) {
	deps := testDeps(t, &scriptRunner{}, platform.Capabilities{})
	s := &LanguagePackage{deps: deps}

	missing := s.Missing(catalog.ToolSpec{Name: "x", Strategy: "npm",
		Pip: &catalog.PipSpec{Manager: "npm", Package: "x"}})
	if len(missing) != 1 || missing[0] != "npm" {
		t.Fatalf("Missing = %v, want [npm]", missing)
	}
}

func TestLastLines(t *testing.T) {
	out := "Reading package lists...\nBuilding dependency tree...\n\nE: Unable to locate package zzz\n"
	got := lastLines(out, 2)
	if !strings.Contains(got, "Unable to locate package zzz") {
		t.Errorf("lastLines dropped the actionable line: %q", got)
	}
	if strings.Contains(got, "Reading package lists") {
		t.Errorf("lastLines kept the preamble: %q", got)
	}
}

func TestPinned(t *testing.T) {
	if got := pinned("rg", "13.0.0", "=="); got != "rg==13.0.0" {
		t.Errorf("pinned = %q", got)
	}
	if got := pinned("rg", "latest", "=="); got != "rg" {
		t.Errorf("pinned wildcard = %q, want bare name", got)
	}
}
