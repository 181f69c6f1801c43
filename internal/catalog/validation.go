package catalog

import (
	"fmt"
	"strings"

	"toolforge/internal/version"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

var knownRuntimes = map[string]bool{
	"python": true,
	"node":   true,
	"ruby":   true,
	"java":   true,
}

// ValidateStrict runs all catalog validations and returns structured
// results. An empty slice means the catalog is clean.
func (c Catalog) ValidateStrict() []ValidationResult {
	var results []ValidationResult
	results = append(results, c.validateToolNames()...)
	for _, t := range c.Tools {
		results = append(results, t.validate()...)
	}
	return results
}

func (c Catalog) validateToolNames() []ValidationResult {
	var results []ValidationResult
	seen := make(map[string]bool, len(c.Tools))
	for _, t := range c.Tools {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: "tool with empty name",
			})
			continue
		}
		if seen[name] {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("tool %q declared more than once", name),
			})
		}
		seen[name] = true
	}
	return results
}

func (t ToolSpec) validate() []ValidationResult {
	var results []ValidationResult
	errf := func(format string, v ...any) {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("tool %q: ", t.Name) + fmt.Sprintf(format, v...),
		})
	}
	warnf := func(format string, v ...any) {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: fmt.Sprintf("tool %q: ", t.Name) + fmt.Sprintf(format, v...),
		})
	}

	if !version.Wildcard(t.Version) && version.Extract(t.Version) == "" {
		errf("version %q is neither a wildcard nor numeric", t.Version)
	}

	switch t.Kind() {
	case KindApt:
		if t.Apt == nil || len(t.Apt.Packages) == 0 {
			errf("apt strategy needs at least one package")
		}
	case KindLanguage:
		if t.Pip == nil || strings.TrimSpace(t.Pip.Package) == "" {
			errf("language strategy needs a package name")
		}
	case KindBinary:
		if t.Binary == nil || strings.TrimSpace(t.Binary.URL) == "" {
			errf("binary strategy needs a url")
			break
		}
		if t.Binary.ChecksumRequiredValue() && strings.TrimSpace(t.Binary.Checksum) == "" {
			errf("binary strategy requires a checksum (or checksum_required: false)")
		}
		if tgt := t.Binary.Target; tgt != "" && tgt != "bin" && tgt != "opt" {
			errf("binary target must be \"bin\" or \"opt\", got %q", tgt)
		}
	case KindSource:
		if t.Source == nil || (strings.TrimSpace(t.Source.Repo) == "" && strings.TrimSpace(t.Source.Tarball) == "") {
			errf("source strategy needs a repo or a tarball url")
		} else if t.Source.Repo != "" && strings.TrimSpace(t.Source.Ref) == "" {
			errf("source strategy with a repo needs a pinned ref")
		}
	case KindContainer:
		if t.Container == nil || strings.TrimSpace(t.Container.Ref) == "" {
			errf("container strategy needs a ref")
		} else {
			switch t.Container.Flavor {
			case "flatpak", "helm":
			default:
				errf("container flavor must be \"flatpak\" or \"helm\", got %q", t.Container.Flavor)
			}
			if t.Container.Flavor == "helm" && strings.TrimSpace(t.Container.GitHubRepo) == "" {
				warnf("helm flavor without github_repo loses the tag fallback")
			}
		}
	case KindJar:
		if t.Jar == nil || strings.TrimSpace(t.Jar.URL) == "" {
			errf("jar strategy needs a url")
		} else if strings.TrimSpace(t.Jar.Checksum) == "" {
			warnf("jar without checksum relies on weak size checks only")
		}
	default:
		errf("unknown strategy %q", t.Strategy)
	}

	for _, p := range t.Prereqs {
		if strings.TrimSpace(p.Name) == "" {
			errf("prerequisite with empty name")
			continue
		}
		if p.Runtime != "" && !knownRuntimes[strings.ToLower(p.Runtime)] {
			errf("prerequisite %q: unknown runtime %q", p.Name, p.Runtime)
		}
		if p.MinVersion != "" && strings.TrimSpace(p.ProbeCmd) == "" {
			warnf("prerequisite %q pins min_version but has no probe_cmd to check it", p.Name)
		}
		if len(p.Apt) == 0 && p.Runtime == "" && len(p.Libs) == 0 {
			warnf("prerequisite %q has no install action; it can only be checked", p.Name)
		}
	}

	return results
}
