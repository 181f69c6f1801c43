package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"toolforge/internal/catalog"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <tool>",
		Short: "Show how a catalog tool is installed and validated",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Load(resolveCatalogPath())
	if err != nil {
		return err
	}

	spec, ok := cat.Tool(args[0])
	if !ok {
		return fmt.Errorf("unknown tool %q (catalog has: %s)", args[0], joinComma(cat.Names()))
	}

	if outputJSON {
		return writeJSON(cmd, spec)
	}

	doc := toolMarkdown(spec)
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		// Plain markdown still reads fine.
		fmt.Fprint(cmd.OutOrStdout(), doc)
		return nil
	}

	rendered, err := renderer.Render(doc)
	if err != nil {
		fmt.Fprint(cmd.OutOrStdout(), doc)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}

func toolMarkdown(spec catalog.ToolSpec) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", spec.Name)
	fmt.Fprintf(&b, "- **Required version:** %s\n", nonEmptyOrDash(spec.Version))
	fmt.Fprintf(&b, "- **Strategy:** %s\n", spec.Kind())
	fmt.Fprintf(&b, "- **Validation:** `%s`\n", spec.ValidateCmd)

	if len(spec.Prereqs) > 0 {
		b.WriteString("\n## Prerequisites\n\n")
		for _, p := range spec.Prereqs {
			fmt.Fprintf(&b, "- %s%s\n", p.Name, prereqDetail(p))
		}
	}

	if section := strategyMarkdown(spec); section != "" {
		b.WriteString("\n## Install\n\n")
		b.WriteString(section)
	}

	if spec.Notes != "" {
		b.WriteString("\n## Notes\n\n")
		b.WriteString(spec.Notes)
		b.WriteString("\n")
	}

	return b.String()
}

func prereqDetail(p catalog.Prereq) string {
	var parts []string
	if p.MinVersion != "" {
		parts = append(parts, ">= "+p.MinVersion)
	}
	if p.Runtime != "" {
		parts = append(parts, p.Runtime+" runtime")
	}
	if len(p.Apt) > 0 {
		parts = append(parts, "apt: "+joinComma(p.Apt))
	}
	if len(p.Libs) > 0 {
		parts = append(parts, "libs: "+joinComma(p.Libs))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + joinComma(parts) + ")"
}

func strategyMarkdown(spec catalog.ToolSpec) string {
	var b strings.Builder
	switch spec.Kind() {
	case catalog.KindApt:
		if spec.Apt == nil {
			return ""
		}
		fmt.Fprintf(&b, "One apt transaction installs: %s\n", joinComma(spec.Apt.Packages))
		if len(spec.Apt.OptionalPackages) > 0 {
			fmt.Fprintf(&b, "\nOptional (failures tolerated): %s\n", joinComma(spec.Apt.OptionalPackages))
		}
	case catalog.KindLanguage:
		if spec.Pip == nil {
			return ""
		}
		fmt.Fprintf(&b, "`%s install %s`, pinned to the required version.\n", spec.Pip.Manager, spec.Pip.Package)
	case catalog.KindBinary:
		if spec.Binary == nil {
			return ""
		}
		fmt.Fprintf(&b, "Download %s\n", spec.Binary.URL)
		if spec.Binary.Checksum != "" {
			fmt.Fprintf(&b, "\nChecksum: `%s`\n", spec.Binary.Checksum)
		} else if spec.Binary.ChecksumRequiredValue() {
			b.WriteString("\nChecksum: required but not pinned; the download records the observed digest.\n")
		}
	case catalog.KindSource:
		if spec.Source == nil {
			return ""
		}
		if spec.Source.Repo != "" {
			fmt.Fprintf(&b, "Clone %s at `%s`, then configure, make, and install.\n", spec.Source.Repo, nonEmptyOrDash(spec.Source.Ref))
		} else {
			fmt.Fprintf(&b, "Unpack %s, then configure, make, and install.\n", spec.Source.Tarball)
		}
	case catalog.KindContainer:
		if spec.Container == nil {
			return ""
		}
		if spec.Container.Flavor == "helm" {
			fmt.Fprintf(&b, "Pull chart `%s` from the %s repo", spec.Container.Ref, nonEmptyOrDash(spec.Container.Remote))
			if spec.Container.GitHubRepo != "" {
				fmt.Fprintf(&b, ", falling back to packaging the chart from a %s release tag", spec.Container.GitHubRepo)
			}
			b.WriteString(".\n")
		} else {
			fmt.Fprintf(&b, "Install `%s` from the %s flatpak remote.\n", spec.Container.Ref, nonEmptyOrDash(spec.Container.Remote))
		}
	case catalog.KindJar:
		if spec.Jar == nil {
			return ""
		}
		fmt.Fprintf(&b, "Download %s into the opt dir and generate a wrapper that answers `--version` from the jar manifest.\n", spec.Jar.URL)
	}
	return b.String()
}
