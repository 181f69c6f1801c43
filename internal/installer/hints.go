package installer

import (
	"errors"
	"fmt"

	"toolforge/internal/catalog"
	"toolforge/internal/checksum"
	"toolforge/internal/fetch"
	"toolforge/internal/strategy"
)

// remediationHint names the most likely fix for a failed phase. Every
// Failed terminal carries one of these next to the phase name.
func remediationHint(phase Phase, spec catalog.ToolSpec, err error) string {
	switch {
	case errors.Is(err, checksum.ErrMismatch):
		return "artifact digest changed; confirm the release is legitimate, then update the checksum in the catalog (mismatches are never retried)"
	case errors.Is(err, strategy.ErrCapabilityMissing):
		return capabilityHint(spec)
	case errors.Is(err, fetch.ErrUnretryable):
		return "the download URL is wrong or gone; check the url in the catalog against the upstream release page"
	case errors.Is(err, ErrPrereqUnsatisfied):
		return "run 'toolforge preseed' to install shared prerequisites, or fix the prereq probe_cmd/min_version in the catalog"
	case errors.Is(err, ErrValidationFailed):
		return "the tool runs but reports the wrong version; check for an older copy shadowing it on PATH, or correct the version pin"
	}

	switch phase {
	case PhaseInstall:
		return strategyHint(spec)
	case PhaseCheckPrereqs, PhaseInstallPrereqs, PhaseVerifyPrereqs:
		return "run 'toolforge preseed' or install the missing prerequisites by hand, then re-run"
	default:
		return "re-run with --skip-prereqs=false and check the log file for the full command output"
	}
}

func strategyHint(spec catalog.ToolSpec) string {
	switch spec.Kind() {
	case catalog.KindApt:
		return "run 'apt-get update' by hand and check /etc/apt/sources.list; the package name may differ on this distribution"
	case catalog.KindLanguage:
		manager := "pip3"
		if spec.Pip != nil && spec.Pip.Manager != "" {
			manager = spec.Pip.Manager
		}
		return fmt.Sprintf("check that %s works by hand; on PEP 668 systems pip needs break_system_packages: true in the catalog", manager)
	case catalog.KindBinary:
		return "check the url, archive format, and bin name in the catalog against the upstream release assets"
	case catalog.KindSource:
		return "install the build toolchain (apt-get install build-essential) and check the configure/make output in the log"
	case catalog.KindContainer:
		return "check that the remote/repo is reachable; slow hosts can raise download_timeout_s in the catalog"
	case catalog.KindJar:
		return "check the jar url and that a JRE is installed (apt-get install default-jre)"
	default:
		return "check the tool's catalog entry"
	}
}

// capabilityHint maps a missing host capability to its install command.
func capabilityHint(spec catalog.ToolSpec) string {
	switch spec.Kind() {
	case catalog.KindApt:
		return "this host has no apt-get; the apt strategy only works on Debian-family systems"
	case catalog.KindLanguage:
		manager := "pip3"
		if spec.Pip != nil && spec.Pip.Manager != "" {
			manager = spec.Pip.Manager
		}
		switch manager {
		case "npm":
			return "install node first: apt-get install nodejs npm"
		case "gem":
			return "install ruby first: apt-get install ruby-full"
		default:
			return "install python tooling first: apt-get install python3 python3-pip"
		}
	case catalog.KindSource:
		return "install the build tools first: apt-get install build-essential git"
	case catalog.KindContainer:
		if spec.Container != nil && spec.Container.Flavor == "helm" {
			return "install helm first (https://helm.sh/docs/intro/install/)"
		}
		return "install flatpak first: apt-get install flatpak"
	case catalog.KindJar:
		return "install a JRE first: apt-get install default-jre"
	default:
		return "install the missing host tool named in the error, then re-run"
	}
}
