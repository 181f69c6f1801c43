package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleCatalog = `
version: 1
settings:
  install_root: /usr/local
  probe_timeout_s: 5
  concurrency: 2
tools:
  - name: jq
    version: "1.7.1"
    strategy: apt
    apt:
      packages: [jq]
  - name: shellcheck
    strategy: binary
    binary:
      url: https://example.com/shellcheck-v0.9.0.linux.x86_64.tar.xz
      checksum: "sha256:deadbeef"
  - name: bfg
    version: "1.14.0"
    strategy: jar
    jar:
      url: https://example.com/bfg-1.14.0.jar
      checksum: "sha256:cafef00d"
`

func writeCatalog(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cat, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cat.Tools) != 0 {
		t.Fatalf("default catalog has %d tools", len(cat.Tools))
	}
	if cat.Settings.InstallRoot != "/usr/local" {
		t.Fatalf("install root = %q", cat.Settings.InstallRoot)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cat, err := Load(writeCatalog(t, sampleCatalog))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cat.Tools) != 3 {
		t.Fatalf("tools = %d, want 3", len(cat.Tools))
	}

	jq, ok := cat.Tool("jq")
	if !ok {
		t.Fatal("jq not found")
	}
	if jq.ValidateCmd != "jq --version" {
		t.Fatalf("validate_cmd default = %q", jq.ValidateCmd)
	}
	if jq.Kind() != KindApt {
		t.Fatalf("jq kind = %v", jq.Kind())
	}

	sc, _ := cat.Tool("shellcheck")
	if sc.Version != "latest" {
		t.Fatalf("missing version should default to latest, got %q", sc.Version)
	}
	if sc.Binary.Archive != "tar.xz" {
		t.Fatalf("archive inferred = %q", sc.Binary.Archive)
	}
	if sc.Binary.Bin != "shellcheck" {
		t.Fatalf("bin default = %q", sc.Binary.Bin)
	}
	if sc.Binary.Target != "bin" {
		t.Fatalf("target default = %q", sc.Binary.Target)
	}
	if !sc.Binary.ChecksumRequiredValue() {
		t.Fatal("checksum_required should default to true")
	}

	if got := cat.Settings.ProbeTimeout(); got != 5*time.Second {
		t.Fatalf("probe timeout = %v", got)
	}
	if got := cat.Settings.DownloadTimeout(); got != 10*time.Minute {
		t.Fatalf("download timeout default = %v", got)
	}
	if got := cat.Settings.ConcurrencyValue(); got != 2 {
		t.Fatalf("concurrency = %d", got)
	}
}

func TestKindOfShorthands(t *testing.T) {
	cases := map[string]Kind{
		"apt":      KindApt,
		"pip":      KindLanguage,
		"npm":      KindLanguage,
		"gem":      KindLanguage,
		"binary":   KindBinary,
		"source":   KindSource,
		"flatpak":  KindContainer,
		"helm":     KindContainer,
		"jar":      KindJar,
		"mystery":  KindUnknown,
		" Binary ": KindBinary,
	}
	for s, want := range cases {
		if got := KindOf(s); got != want {
			t.Errorf("KindOf(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestManagerAndFlavorDefaults(t *testing.T) {
	cat, err := Load(writeCatalog(t, `
tools:
  - name: httpie
    strategy: pip
    pip: {package: httpie}
  - name: gitleaks-chart
    strategy: helm
    container: {ref: gitleaks, remote: charts, remote_url: "https://example.com/charts", github_repo: owner/gitleaks}
  - name: yarn
    strategy: npm
    pip: {package: yarn}
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	httpie, _ := cat.Tool("httpie")
	if httpie.Pip.Manager != "pip3" {
		t.Fatalf("pip manager default = %q", httpie.Pip.Manager)
	}
	yarn, _ := cat.Tool("yarn")
	if yarn.Pip.Manager != "npm" {
		t.Fatalf("npm shorthand manager = %q", yarn.Pip.Manager)
	}
	chart, _ := cat.Tool("gitleaks-chart")
	if chart.Container.Flavor != "helm" {
		t.Fatalf("helm shorthand flavor = %q", chart.Container.Flavor)
	}
}

func TestNames(t *testing.T) {
	cat, err := Load(writeCatalog(t, sampleCatalog))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	names := cat.Names()
	want := []string{"jq", "shellcheck", "bfg"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}
