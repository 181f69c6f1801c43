package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"toolforge/internal/catalog"
	"toolforge/internal/installer"
	"toolforge/internal/logx"
	"toolforge/internal/paths"
	"toolforge/internal/platform"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check host capabilities and catalog health",
		RunE:  runDoctor,
	}
}

type healthCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Summary string `json:"summary"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	layout, err := paths.Resolve()
	if err != nil {
		return err
	}
	caps := platform.Detect()

	var checks []healthCheck
	checks = append(checks, checkApt(caps))
	checks = append(checks, checkManagers(caps))

	cat, catErr := catalog.Load(resolveCatalogPath())
	checks = append(checks, checkCatalog(cat, catErr))
	if catErr == nil {
		layout = applySettings(layout, cat.Settings)
		checks = append(checks, checkStrategies(cat, caps))
	}

	checks = append(checks, checkStateDir(layout))
	checks = append(checks, checkPreseedStamp(layout))

	return writeDoctorResult(cmd, checks)
}

func checkApt(caps platform.Capabilities) healthCheck {
	if caps.AptGet == "" {
		return healthCheck{
			Name:    "Apt",
			Status:  "error",
			Summary: "apt-get not found; package strategies and pre-seeding cannot run",
		}
	}
	if os.Geteuid() != 0 && caps.Sudo == "" {
		return healthCheck{
			Name:    "Apt",
			Status:  "warning",
			Summary: fmt.Sprintf("%s found, but not root and no sudo", caps.AptGet),
		}
	}
	return healthCheck{Name: "Apt", Status: "ok", Summary: caps.AptGet}
}

func checkManagers(caps platform.Capabilities) healthCheck {
	found := []string{}
	missing := []string{}
	record := func(name, path string) {
		if path == "" {
			missing = append(missing, name)
		} else {
			found = append(found, name)
		}
	}
	record("pip3", caps.Pip)
	record("npm", caps.Npm)
	record("gem", caps.Gem)
	record("flatpak", caps.Flatpak)
	record("helm", caps.Helm)
	record("git", caps.Git)
	record("java", caps.Java)

	if len(missing) == 0 {
		return healthCheck{Name: "Managers", Status: "ok", Summary: joinComma(found)}
	}
	// Missing managers are only a problem for strategies that need them;
	// the pre-seed installs most of them on demand.
	return healthCheck{
		Name:    "Managers",
		Status:  "ok",
		Summary: fmt.Sprintf("%d of 7 present; missing: %s", len(found), joinComma(missing)),
	}
}

func checkCatalog(cat catalog.Catalog, catErr error) healthCheck {
	if catErr != nil {
		return healthCheck{Name: "Catalog", Status: "error", Summary: catErr.Error()}
	}

	results := cat.ValidateStrict()
	var warnings, errors int
	for _, r := range results {
		switch r.Level {
		case "warning":
			warnings++
		case "error":
			errors++
		}
	}

	summary := fmt.Sprintf("%d tools", len(cat.Tools))
	if errors > 0 {
		return healthCheck{Name: "Catalog", Status: "error", Summary: fmt.Sprintf("%s; %d errors", summary, errors)}
	}
	if warnings > 0 {
		return healthCheck{Name: "Catalog", Status: "warning", Summary: fmt.Sprintf("%s; %d warnings", summary, warnings)}
	}
	return healthCheck{Name: "Catalog", Status: "ok", Summary: summary}
}

// checkStrategies verifies each catalog tool's strategy can run with the
// detected capabilities.
func checkStrategies(cat catalog.Catalog, caps platform.Capabilities) healthCheck {
	var blocked []string
	for _, spec := range cat.Tools {
		if reason := strategyBlocked(spec, caps); reason != "" {
			blocked = append(blocked, fmt.Sprintf("%s (%s)", spec.Name, reason))
		}
	}
	if len(blocked) == 0 {
		return healthCheck{Name: "Strategies", Status: "ok", Summary: fmt.Sprintf("all %d runnable", len(cat.Tools))}
	}
	return healthCheck{Name: "Strategies", Status: "warning", Summary: "blocked: " + joinComma(blocked)}
}

func strategyBlocked(spec catalog.ToolSpec, caps platform.Capabilities) string {
	switch spec.Kind() {
	case catalog.KindApt:
		if caps.AptGet == "" {
			return "needs apt-get"
		}
	case catalog.KindLanguage:
		manager := ""
		if spec.Pip != nil {
			manager = spec.Pip.Manager
		}
		if caps.Manager(manager) == "" {
			if manager == "" {
				manager = "pip3"
			}
			return "needs " + manager
		}
	case catalog.KindSource:
		if spec.Source != nil && spec.Source.Repo != "" && caps.Git == "" {
			return "needs git"
		}
		if caps.Make == "" {
			return "needs make"
		}
	case catalog.KindContainer:
		flavor := "flatpak"
		if spec.Container != nil && spec.Container.Flavor != "" {
			flavor = spec.Container.Flavor
		}
		if flavor == "helm" && caps.Helm == "" {
			return "needs helm"
		}
		if flavor == "flatpak" && caps.Flatpak == "" {
			return "needs flatpak"
		}
	case catalog.KindJar:
		if caps.Java == "" {
			return "needs java"
		}
	}
	return ""
}

func checkStateDir(layout paths.Layout) healthCheck {
	if err := layout.EnsureState(); err != nil {
		return healthCheck{Name: "State", Status: "error", Summary: err.Error()}
	}

	probe, err := os.CreateTemp(layout.StateDir, "doctor-*")
	if err != nil {
		return healthCheck{Name: "State", Status: "error", Summary: fmt.Sprintf("state dir not writable: %v", err)}
	}
	probe.Close()
	os.Remove(probe.Name())

	return healthCheck{Name: "State", Status: "ok", Summary: layout.StateDir + " (logs: " + logx.Dir(layout) + ")"}
}

func checkPreseedStamp(layout paths.Layout) healthCheck {
	stamp, ok, err := installer.LoadStamp(layout)
	if err != nil {
		return healthCheck{Name: "Preseed", Status: "warning", Summary: fmt.Sprintf("stamp unreadable: %v", err)}
	}
	if !ok {
		return healthCheck{Name: "Preseed", Status: "warning", Summary: "never run; compose will seed on first use"}
	}
	summary := fmt.Sprintf("%d packages at %s", len(stamp.Packages), stamp.CreatedAt.Format("2006-01-02 15:04"))
	if len(stamp.Failed) > 0 {
		return healthCheck{Name: "Preseed", Status: "warning", Summary: fmt.Sprintf("%s; %d failed", summary, len(stamp.Failed))}
	}
	return healthCheck{Name: "Preseed", Status: "ok", Summary: summary}
}

func writeDoctorResult(cmd *cobra.Command, checks []healthCheck) error {
	if outputJSON {
		return writeJSON(cmd, checks)
	}

	bold := lipgloss.NewStyle().Bold(true).Inline(true)
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Inline(true)
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Inline(true)
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Inline(true)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, bold.Render("HOST HEALTH"))

	for _, c := range checks {
		var statusStr string
		switch c.Status {
		case "ok":
			statusStr = green.Render("OK")
		case "warning":
			statusStr = yellow.Render("WARN")
		case "error":
			statusStr = red.Render("ERROR")
		}
		fmt.Fprintf(out, "  %-12s %s    %s\n", c.Name+":", statusStr, c.Summary)
	}

	return nil
}
