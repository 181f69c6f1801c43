package strategy

import (
	"context"
	"fmt"

	"toolforge/internal/catalog"
	"toolforge/internal/execx"
)

// LanguagePackage installs tools through a language ecosystem manager
// (pip3, npm, gem).
type LanguagePackage struct {
	deps Deps
}

func (s *LanguagePackage) Name() string { return "language-package-manager" }

func (s *LanguagePackage) Missing(spec catalog.ToolSpec) []string {
	manager := ""
	if spec.Pip != nil {
		manager = spec.Pip.Manager
	}
	if s.deps.Caps.Manager(manager) == "" {
		if manager == "" {
			manager = "pip3"
		}
		return []string{manager}
	}
	return nil
}

func (s *LanguagePackage) Install(ctx context.Context, spec catalog.ToolSpec) Outcome {
	if spec.Pip == nil || spec.Pip.Package == "" {
		return failure(fmt.Errorf("tool %q: language strategy without a package", spec.Name))
	}

	managerPath := s.deps.Caps.Manager(spec.Pip.Manager)
	if managerPath == "" {
		return failure(fmt.Errorf("%w: %s", ErrCapabilityMissing, spec.Pip.Manager))
	}

	args := s.installArgs(spec)
	res, err := s.deps.Runner.Run(ctx, managerPath, args, execx.RunOptions{})
	if err != nil {
		detail := lastLines(res.Combined(), 3)
		if detail == "" {
			detail = err.Error()
		}
		return failure(fmt.Errorf("%s install %s: %s", spec.Pip.Manager, spec.Pip.Package, detail))
	}

	return success(fmt.Sprintf("%s installed %s", spec.Pip.Manager, pinnedFor(spec)))
}

func (s *LanguagePackage) installArgs(spec catalog.ToolSpec) []string {
	pkg := pinnedFor(spec)
	switch spec.Pip.Manager {
	case "npm":
		return append([]string{"install", "-g"}, append(spec.Pip.ExtraArgs, pkg)...)
	case "gem":
		args := []string{"install", spec.Pip.Package}
		if pkg != spec.Pip.Package {
			args = append(args, "-v", spec.Version)
		}
		return append(args, spec.Pip.ExtraArgs...)
	default: // pip3
		args := []string{"install"}
		if spec.Pip.BreakSystemPackages {
			// PEP 668 hosts refuse system-wide pip installs without this.
			args = append(args, "--break-system-packages")
		}
		args = append(args, spec.Pip.ExtraArgs...)
		return append(args, pkg)
	}
}

func pinnedFor(spec catalog.ToolSpec) string {
	switch spec.Pip.Manager {
	case "npm":
		return pinned(spec.Pip.Package, spec.Version, "@")
	case "gem":
		return spec.Pip.Package
	default:
		return pinned(spec.Pip.Package, spec.Version, "==")
	}
}
