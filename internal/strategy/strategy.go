// Package strategy implements the install mechanisms a ToolSpec can select.
//
// Every strategy turns "this tool, this version" into filesystem state and
// reports an Outcome. Strategies never probe for their own host tools at
// install time; the capability snapshot is taken once at startup and a
// strategy whose requirements are unmet is rejected before any mutation.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"toolforge/internal/apt"
	"toolforge/internal/catalog"
	"toolforge/internal/execx"
	"toolforge/internal/fetch"
	"toolforge/internal/paths"
	"toolforge/internal/platform"
	"toolforge/internal/version"
)

// ErrCapabilityMissing marks a strategy that cannot run on this host.
var ErrCapabilityMissing = errors.New("missing host capability")

// Level grades an install attempt.
type Level int

const (
	Success Level = iota
	PartialSuccess
	Failure
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case PartialSuccess:
		return "partial-success"
	default:
		return "failure"
	}
}

// Outcome is what a strategy reports back to the orchestrator.
type Outcome struct {
	Level    Level
	Detail   string
	Warnings []string
	// Fallback names the designed alternate branch that produced the
	// install, e.g. "github-tag". Empty for the primary path.
	Fallback string
	// InstalledBinary is the primary executable the strategy placed, when
	// it knows one; the linkage heal pass runs against it.
	InstalledBinary string
	Err             error
}

func success(detail string) Outcome {
	return Outcome{Level: Success, Detail: detail}
}

func partial(detail string, warnings ...string) Outcome {
	return Outcome{Level: PartialSuccess, Detail: detail, Warnings: warnings}
}

func failure(err error) Outcome {
	return Outcome{Level: Failure, Err: err, Detail: err.Error()}
}

// Deps is the shared machinery handed to every strategy.
type Deps struct {
	Runner execx.Runner
	Caps   platform.Capabilities
	Apt    *apt.Manager
	Fetch  *fetch.Client
	Log    execx.Logger
	Layout paths.Layout

	// ContainerTimeout bounds containerized installs when the catalog pins
	// a download timeout; zero keeps DefaultContainerTimeout.
	ContainerTimeout time.Duration
}

func (d Deps) logger() execx.Logger {
	if d.Log == nil {
		return execx.NopLogger{}
	}
	return d.Log
}

// Strategy installs one tool.
type Strategy interface {
	Name() string
	// Missing lists host capabilities the spec needs but the host lacks.
	Missing(spec catalog.ToolSpec) []string
	Install(ctx context.Context, spec catalog.ToolSpec) Outcome
}

// ForTool selects the strategy for a spec.
func ForTool(spec catalog.ToolSpec, deps Deps) (Strategy, error) {
	switch spec.Kind() {
	case catalog.KindApt:
		return &AptPackage{deps: deps}, nil
	case catalog.KindLanguage:
		return &LanguagePackage{deps: deps}, nil
	case catalog.KindBinary:
		return &BinaryDownload{deps: deps}, nil
	case catalog.KindSource:
		return &SourceBuild{deps: deps}, nil
	case catalog.KindContainer:
		return &ContainerPackage{deps: deps}, nil
	case catalog.KindJar:
		return &JarWithWrapper{deps: deps}, nil
	default:
		return nil, fmt.Errorf("tool %q: unknown strategy %q", spec.Name, spec.Strategy)
	}
}

// CheckCapabilities returns an ErrCapabilityMissing error naming what the
// host lacks for this strategy, or nil.
func CheckCapabilities(s Strategy, spec catalog.ToolSpec) error {
	missing := s.Missing(spec)
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s strategy needs %s", ErrCapabilityMissing, s.Name(), strings.Join(missing, ", "))
}

// lastLines trims command output to its final n non-empty lines, which is
// where package managers put the actionable message.
func lastLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	var kept []string
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, strings.TrimSpace(line))
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, "; ")
}

// pinned renders "name==version"-style arguments, dropping the pin for
// wildcard requirements.
func pinned(name, required, sep string) string {
	if version.Wildcard(required) {
		return name
	}
	return name + sep + required
}
