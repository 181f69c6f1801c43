package strategy

import (
	"context"
	"fmt"
	"strings"

	"toolforge/internal/catalog"
)

// AptPackage installs tools straight from the system package manager.
type AptPackage struct {
	deps Deps
}

func (s *AptPackage) Name() string { return "apt" }

func (s *AptPackage) Missing(catalog.ToolSpec) []string {
	if s.deps.Caps.AptGet == "" {
		return []string{"apt-get"}
	}
	return nil
}

func (s *AptPackage) Install(ctx context.Context, spec catalog.ToolSpec) Outcome {
	if spec.Apt == nil || len(spec.Apt.Packages) == 0 {
		return failure(fmt.Errorf("tool %q: apt strategy without packages", spec.Name))
	}

	if err := s.deps.Apt.Install(ctx, spec.Apt.Packages...); err != nil {
		return failure(fmt.Errorf("install %s: %w", strings.Join(spec.Apt.Packages, " "), err))
	}
	detail := fmt.Sprintf("installed %s", strings.Join(spec.Apt.Packages, ", "))

	// Optional packages degrade, never fail: a missing completion script
	// must not sink the tool itself.
	if failed := s.deps.Apt.TryInstall(ctx, spec.Apt.OptionalPackages...); len(failed) > 0 {
		warning := fmt.Sprintf("optional packages failed: %s", strings.Join(failed, ", "))
		return partial(detail, warning)
	}
	return success(detail)
}
