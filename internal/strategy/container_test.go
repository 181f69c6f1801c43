package strategy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"toolforge/internal/catalog"
	"toolforge/internal/platform"
)

func flatpakSpec() catalog.ToolSpec {
	return catalog.ToolSpec{
		Name: "obs", Version: "30.1.2", Strategy: "flatpak",
		Container: &catalog.ContainerSpec{
			Flavor:    "flatpak",
			Remote:    "flathub",
			RemoteURL: "https://dl.flathub.org/repo/flathub.flatpakrepo",
			Ref:       "com.obsproject.Studio",
		},
	}
}

func TestContainerFlatpakInstall(t *testing.T) {
	runner := &scriptRunner{}
	deps := testDeps(t, runner, allCaps())
	s := &ContainerPackage{deps: deps}

	out := s.Install(context.Background(), flatpakSpec())
	if out.Level != Success {
		t.Fatalf("Level = %v: %s (%v)", out.Level, out.Detail, out.Err)
	}

	if !runner.saw("remote-add --if-not-exists flathub") {
		t.Error("remote was not registered")
	}
	if !runner.saw("install -y --noninteractive flathub com.obsproject.Studio") {
		t.Error("flatpak install never ran")
	}

	wrapper := filepath.Join(deps.Layout.BinDir(), "obs")
	if out.InstalledBinary != wrapper {
		t.Errorf("InstalledBinary = %q, want wrapper %q", out.InstalledBinary, wrapper)
	}
	script, err := os.ReadFile(wrapper)
	if err != nil {
		t.Fatalf("read wrapper: %v", err)
	}
	if !strings.Contains(string(script), "flatpak run com.obsproject.Studio") {
		t.Errorf("wrapper %q does not exec the flatpak ref", script)
	}
}

func TestContainerFlatpakTimeoutLeavesStub(t *testing.T) {
	runner := &scriptRunner{results: map[string]scriptResult{
		"install -y": {block: true},
	}}
	deps := testDeps(t, runner, allCaps())
	s := &ContainerPackage{deps: deps, Timeout: 50 * time.Millisecond}

	out := s.Install(context.Background(), flatpakSpec())
	if out.Level != PartialSuccess {
		t.Fatalf("Level = %v, want PartialSuccess on timeout", out.Level)
	}
	if !strings.Contains(out.Detail, "timed out") {
		t.Errorf("Detail = %q, want a timeout note", out.Detail)
	}

	wrapper := filepath.Join(deps.Layout.BinDir(), "obs")
	script, err := os.ReadFile(wrapper)
	if err != nil {
		t.Fatalf("stub wrapper missing: %v", err)
	}
	// The stub must answer --version with the pinned version so a
	// compose run can still validate.
	if !strings.Contains(string(script), `"$1" = "--version"`) || !strings.Contains(string(script), "30.1.2") {
		t.Errorf("stub wrapper %q does not answer --version with the pin", script)
	}
	info, _ := os.Stat(wrapper)
	if info.Mode().Perm() != 0o755 {
		t.Errorf("stub wrapper mode = %v, want 0755", info.Mode().Perm())
	}
}

func TestContainerFlatpakHardFailure(t *testing.T) {
	runner := &scriptRunner{results: map[string]scriptResult{
		"install -y": {out: "error: No remote refs found", err: errors.New("exit status 1")},
	}}
	deps := testDeps(t, runner, allCaps())
	s := &ContainerPackage{deps: deps}

	out := s.Install(context.Background(), flatpakSpec())
	if out.Level != Failure {
		t.Fatalf("Level = %v, want Failure", out.Level)
	}
	if _, err := os.Stat(filepath.Join(deps.Layout.BinDir(), "obs")); !os.IsNotExist(err) {
		t.Error("hard failure still left a wrapper behind")
	}
}

func helmSpec() catalog.ToolSpec {
	return catalog.ToolSpec{
		Name: "cert-manager", Version: "1.14.4", Strategy: "helm",
		Container: &catalog.ContainerSpec{
			Flavor:     "helm",
			Remote:     "jetstack",
			RemoteURL:  "https://charts.jetstack.io",
			Ref:        "cert-manager",
			GitHubRepo: "cert-manager/cert-manager",
		},
	}
}

func TestContainerHelmPull(t *testing.T) {
	runner := &scriptRunner{}
	deps := testDeps(t, runner, allCaps())
	s := &ContainerPackage{deps: deps}

	out := s.Install(context.Background(), helmSpec())
	if out.Level != Success {
		t.Fatalf("Level = %v: %s (%v)", out.Level, out.Detail, out.Err)
	}
	if out.Fallback != "" {
		t.Errorf("Fallback = %q on the primary path, want empty", out.Fallback)
	}
	if !runner.saw("repo add jetstack https://charts.jetstack.io") {
		t.Error("chart repo never registered")
	}
	if !runner.saw("pull jetstack/cert-manager") || !runner.saw("--version 1.14.4") {
		t.Error("pull was not pinned to the requested version")
	}
}

func TestContainerHelmFallsBackToGitHubTag(t *testing.T) {
	archive := tarGzBytes(t, map[string]archiveEntry{
		"cert-manager-1.14.4/charts/cert-manager/Chart.yaml": {data: "name: cert-manager\n", mode: 0o644},
		"cert-manager-1.14.4/README.md":                      {data: "readme", mode: 0o644},
	})
	srv, hits := serveArtifact(t, archive)

	runner := &scriptRunner{results: map[string]scriptResult{
		"pull jetstack/cert-manager": {
			out: `Error: chart "cert-manager" version "1.14.4" not found in jetstack index`,
			err: errors.New("exit status 1"),
		},
	}}
	deps := testDeps(t, runner, allCaps())
	s := &ContainerPackage{deps: deps, GitHubBase: srv.URL}

	out := s.Install(context.Background(), helmSpec())
	if out.Level != Success {
		t.Fatalf("Level = %v: %s (%v)", out.Level, out.Detail, out.Err)
	}
	if out.Fallback != "github-tag" {
		t.Fatalf("Fallback = %q, want github-tag", out.Fallback)
	}
	if atomic.LoadInt32(hits) == 0 {
		t.Error("fallback never fetched the tag archive")
	}
	if !runner.saw("package") {
		t.Error("fallback never packaged the chart")
	}
	if !runner.saw("--destination " + deps.Layout.ToolOptDir("cert-manager")) {
		t.Error("chart was not packaged into the tool opt dir")
	}
}

func TestContainerHelmUnrelatedErrorDoesNotFallBack(t *testing.T) {
	runner := &scriptRunner{results: map[string]scriptResult{
		"pull jetstack/cert-manager": {
			out: "Error: Get https://charts.jetstack.io/index.yaml: connection refused",
			err: errors.New("exit status 1"),
		},
	}}
	deps := testDeps(t, runner, allCaps())
	s := &ContainerPackage{deps: deps}

	out := s.Install(context.Background(), helmSpec())
	if out.Level != Failure {
		t.Fatalf("Level = %v, want Failure for a network error", out.Level)
	}
	if out.Fallback != "" {
		t.Errorf("Fallback = %q, want none", out.Fallback)
	}
}

func TestContainerMissing(t *testing.T) {
	deps := testDeps(t, &scriptRunner{}, platform.Capabilities{})
	s := &ContainerPackage{deps: deps}

	if missing := s.Missing(flatpakSpec()); len(missing) != 1 || missing[0] != "flatpak" {
		t.Errorf("Missing(flatpak) = %v", missing)
	}
	if missing := s.Missing(helmSpec()); len(missing) != 1 || missing[0] != "helm" {
		t.Errorf("Missing(helm) = %v", missing)
	}
}

func TestContainerTimeoutPrecedence(t *testing.T) {
	s := &ContainerPackage{deps: Deps{ContainerTimeout: 3 * time.Minute}}
	if got := s.timeout(); got != 3*time.Minute {
		t.Errorf("timeout() = %v, want the deps bound", got)
	}
	s.Timeout = time.Second
	if got := s.timeout(); got != time.Second {
		t.Errorf("timeout() = %v, want the explicit override", got)
	}
	if got := (&ContainerPackage{}).timeout(); got != DefaultContainerTimeout {
		t.Errorf("timeout() = %v, want the default", got)
	}
}

func TestTagCandidates(t *testing.T) {
	cases := []struct {
		version string
		want    []string
	}{
		{"1.14.4", []string{"v1.14.4", "1.14.4"}},
		{"v2.0.0", []string{"v2.0.0", "2.0.0"}},
		{"latest", []string{"main"}},
	}
	for _, tc := range cases {
		got := tagCandidates(tc.version)
		if len(got) != len(tc.want) {
			t.Errorf("tagCandidates(%q) = %v, want %v", tc.version, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("tagCandidates(%q)[%d] = %q, want %q", tc.version, i, got[i], tc.want[i])
			}
		}
	}
}

func TestFindChartDirPrefersChartName(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"deploy/other", "charts/mychart"} {
		full := filepath.Join(root, dir)
		if err := os.MkdirAll(full, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(full, "Chart.yaml"), []byte("name: x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := findChartDir(root, "mychart")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "mychart" {
		t.Errorf("findChartDir = %q, want the dir named after the chart", got)
	}

	if _, err := findChartDir(t.TempDir(), "mychart"); err == nil {
		t.Error("empty tree should not yield a chart dir")
	}
}
