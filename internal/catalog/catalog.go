// Package catalog loads the declarative tool specifications that drive the
// install engine.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the catalog filename looked up when --catalog is not set.
const DefaultFile = "toolforge.yaml"

// Catalog is the full declarative tool set.
type Catalog struct {
	Version  int        `yaml:"version"`
	Settings Settings   `yaml:"settings"`
	Tools    []ToolSpec `yaml:"tools"`
}

// Settings are engine-wide knobs. Durations are plain seconds so the YAML
// stays arithmetic-free.
type Settings struct {
	InstallRoot        string `yaml:"install_root"`
	OptRoot            string `yaml:"opt_root"`
	ProbeTimeoutSec    int    `yaml:"probe_timeout_s"`
	DownloadTimeoutSec int    `yaml:"download_timeout_s"`
	Concurrency        int    `yaml:"concurrency"`
	RespectSharedDeps  *bool  `yaml:"respect_shared_deps,omitempty"`
}

// ProbeTimeout returns the effective probe timeout.
func (s Settings) ProbeTimeout() time.Duration {
	if s.ProbeTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.ProbeTimeoutSec) * time.Second
}

// DownloadTimeout returns the effective per-download timeout.
func (s Settings) DownloadTimeout() time.Duration {
	if s.DownloadTimeoutSec <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(s.DownloadTimeoutSec) * time.Second
}

// ConcurrencyValue returns the effective compose worker count.
func (s Settings) ConcurrencyValue() int {
	if s.Concurrency <= 0 {
		return 4
	}
	return s.Concurrency
}

// RespectSharedDepsValue reports whether installs should trust the shared
// pre-seed and skip per-tool prerequisite phases.
func (s Settings) RespectSharedDepsValue() bool {
	if s.RespectSharedDeps == nil {
		return false
	}
	return *s.RespectSharedDeps
}

// ToolSpec declares one tool: what version is required, which strategy
// installs it, and how a finished install is validated.
type ToolSpec struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Strategy    string   `yaml:"strategy"`
	ValidateCmd string   `yaml:"validate_cmd,omitempty"`
	Prereqs     []Prereq `yaml:"prereqs,omitempty"`
	Notes       string   `yaml:"notes,omitempty"`

	Apt       *AptSpec       `yaml:"apt,omitempty"`
	Pip       *PipSpec       `yaml:"pip,omitempty"`
	Binary    *BinarySpec    `yaml:"binary,omitempty"`
	Source    *SourceSpec    `yaml:"source,omitempty"`
	Container *ContainerSpec `yaml:"container,omitempty"`
	Jar       *JarSpec       `yaml:"jar,omitempty"`
}

// Prereq is a prerequisite the tool needs before its own install can run.
type Prereq struct {
	Name       string   `yaml:"name"`
	MinVersion string   `yaml:"min_version,omitempty"`
	ProbeCmd   string   `yaml:"probe_cmd,omitempty"`
	Apt        []string `yaml:"apt,omitempty"`
	Runtime    string   `yaml:"runtime,omitempty"`
	Libs       []string `yaml:"libs,omitempty"`
}

// AptSpec drives the system package manager strategy.
type AptSpec struct {
	Packages         []string `yaml:"packages"`
	OptionalPackages []string `yaml:"optional_packages,omitempty"`
}

// PipSpec drives the language package manager strategy.
type PipSpec struct {
	Manager             string   `yaml:"manager,omitempty"` // pip3 (default), npm, gem
	Package             string   `yaml:"package"`
	BreakSystemPackages bool     `yaml:"break_system_packages,omitempty"`
	ExtraArgs           []string `yaml:"extra_args,omitempty"`
}

// BinarySpec drives the prebuilt artifact download strategy.
type BinarySpec struct {
	URL              string `yaml:"url"`
	Checksum         string `yaml:"checksum,omitempty"` // "sha256:<hex>"
	ChecksumRequired *bool  `yaml:"checksum_required,omitempty"`
	Archive          string `yaml:"archive,omitempty"` // tar.gz, tar.xz, zip, raw
	Bin              string `yaml:"bin,omitempty"`
	Target           string `yaml:"target,omitempty"` // bin (default) or opt
}

// ChecksumRequiredValue reports whether a verifiable digest is mandatory.
func (b BinarySpec) ChecksumRequiredValue() bool {
	if b.ChecksumRequired == nil {
		return true
	}
	return *b.ChecksumRequired
}

// SourceSpec drives the build-from-source strategy.
type SourceSpec struct {
	Repo           string   `yaml:"repo,omitempty"`
	Ref            string   `yaml:"ref,omitempty"`
	Tarball        string   `yaml:"tarball,omitempty"`
	ConfigureFlags []string `yaml:"configure_flags,omitempty"`
	MakeTargets    []string `yaml:"make_targets,omitempty"`
	InstallTarget  string   `yaml:"install_target,omitempty"`
	SelfTest       bool     `yaml:"self_test,omitempty"`
}

// ContainerSpec drives the containerized package strategy.
type ContainerSpec struct {
	Flavor     string `yaml:"flavor,omitempty"` // flatpak | helm
	Remote     string `yaml:"remote,omitempty"`
	RemoteURL  string `yaml:"remote_url,omitempty"`
	Ref        string `yaml:"ref,omitempty"`
	GitHubRepo string `yaml:"github_repo,omitempty"` // owner/name for the tag fallback
}

// JarSpec drives the jar-with-wrapper strategy.
type JarSpec struct {
	URL      string   `yaml:"url"`
	Checksum string   `yaml:"checksum,omitempty"`
	JavaMin  string   `yaml:"java_min,omitempty"`
	JavaOpts []string `yaml:"java_opts,omitempty"`
}

// Kind is the normalized strategy discriminator.
type Kind int

const (
	KindUnknown Kind = iota
	KindApt
	KindLanguage
	KindBinary
	KindSource
	KindContainer
	KindJar
)

func (k Kind) String() string {
	switch k {
	case KindApt:
		return "apt"
	case KindLanguage:
		return "language-package-manager"
	case KindBinary:
		return "binary-download"
	case KindSource:
		return "source-build"
	case KindContainer:
		return "containerized-package"
	case KindJar:
		return "jar-with-wrapper"
	default:
		return "unknown"
	}
}

// KindOf maps the catalog strategy string to its normalized kind. Shorthand
// strings double as hints: "npm" selects the language strategy with npm as
// the manager, "flatpak"/"helm" select the container strategy flavor.
func KindOf(strategy string) Kind {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "apt":
		return KindApt
	case "pip", "pip3", "npm", "gem", "language":
		return KindLanguage
	case "binary", "download":
		return KindBinary
	case "source", "build":
		return KindSource
	case "container", "flatpak", "helm":
		return KindContainer
	case "jar":
		return KindJar
	default:
		return KindUnknown
	}
}

// Kind returns the tool's normalized strategy kind.
func (t ToolSpec) Kind() Kind {
	return KindOf(t.Strategy)
}

// Default returns the baseline catalog: engine defaults, no tools.
func Default() Catalog {
	return Catalog{
		Version: 1,
		Settings: Settings{
			InstallRoot:       "/usr/local",
			OptRoot:           "/opt",
			RespectSharedDeps: boolPtr(false),
		},
	}
}

// Load reads the YAML catalog from disk if it exists, otherwise returns the
// default (empty) catalog.
func Load(path string) (Catalog, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cat := Default()
			cat.ApplyDefaults()
			return cat, nil
		}
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}

	cat := Default()
	if err := yaml.Unmarshal(contents, &cat); err != nil {
		return Catalog{}, fmt.Errorf("unmarshal catalog: %w", err)
	}
	cat.ApplyDefaults()
	return cat, nil
}

// ApplyDefaults fills per-tool gaps the YAML may omit.
func (c *Catalog) ApplyDefaults() {
	defaults := Default()
	if strings.TrimSpace(c.Settings.InstallRoot) == "" {
		c.Settings.InstallRoot = defaults.Settings.InstallRoot
	}
	if strings.TrimSpace(c.Settings.OptRoot) == "" {
		c.Settings.OptRoot = defaults.Settings.OptRoot
	}
	if c.Settings.RespectSharedDeps == nil {
		c.Settings.RespectSharedDeps = boolPtr(false)
	}

	for i := range c.Tools {
		t := &c.Tools[i]
		if strings.TrimSpace(t.Version) == "" {
			t.Version = "latest"
		}
		if strings.TrimSpace(t.ValidateCmd) == "" && t.Name != "" {
			t.ValidateCmd = t.Name + " --version"
		}
		if t.Pip != nil && strings.TrimSpace(t.Pip.Manager) == "" {
			t.Pip.Manager = managerForStrategy(t.Strategy)
		}
		if t.Container != nil && strings.TrimSpace(t.Container.Flavor) == "" {
			t.Container.Flavor = flavorForStrategy(t.Strategy)
		}
		if t.Binary != nil {
			if strings.TrimSpace(t.Binary.Bin) == "" {
				t.Binary.Bin = t.Name
			}
			if strings.TrimSpace(t.Binary.Archive) == "" {
				t.Binary.Archive = inferArchive(t.Binary.URL)
			}
			if strings.TrimSpace(t.Binary.Target) == "" {
				t.Binary.Target = "bin"
			}
		}
		if t.Source != nil && strings.TrimSpace(t.Source.InstallTarget) == "" {
			t.Source.InstallTarget = "install"
		}
	}
}

func managerForStrategy(strategy string) string {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "npm":
		return "npm"
	case "gem":
		return "gem"
	default:
		return "pip3"
	}
}

func flavorForStrategy(strategy string) string {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "helm":
		return "helm"
	default:
		return "flatpak"
	}
}

func inferArchive(url string) string {
	switch {
	case strings.HasSuffix(url, ".tar.gz"), strings.HasSuffix(url, ".tgz"):
		return "tar.gz"
	case strings.HasSuffix(url, ".tar.xz"), strings.HasSuffix(url, ".txz"):
		return "tar.xz"
	case strings.HasSuffix(url, ".zip"):
		return "zip"
	default:
		return "raw"
	}
}

// Tool looks a tool up by name.
func (c Catalog) Tool(name string) (ToolSpec, bool) {
	for _, t := range c.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolSpec{}, false
}

// Names lists all catalog tool names in declaration order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c.Tools))
	for _, t := range c.Tools {
		names = append(names, t.Name)
	}
	return names
}

func boolPtr(v bool) *bool {
	return &v
}
