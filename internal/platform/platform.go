// Package platform snapshots host capabilities once at startup so the rest
// of the engine never re-probes for the same binaries.
package platform

import (
	"os"
	"sort"
	"strings"

	"toolforge/internal/execx"
)

// Capabilities records which host tools are available and where. Zero
// value fields mean "not present". The snapshot is taken once and passed
// down; strategies must not go behind it.
type Capabilities struct {
	AptGet   string
	Sudo     string
	NeedSudo bool

	Pip      string
	Npm      string
	Gem      string
	Flatpak  string
	Helm     string
	Git      string
	Java     string
	Ldd      string
	Ldconfig string
	Tar      string
	Make     string
	Unzip    string
}

var euid = os.Geteuid

// Detect resolves the capability snapshot from PATH.
func Detect() Capabilities {
	return DetectWith(execx.LookPath)
}

// DetectWith resolves the snapshot through an injectable lookup, which
// tests use to fake hosts.
func DetectWith(look func(string) (string, bool)) Capabilities {
	find := func(names ...string) string {
		for _, n := range names {
			if p, ok := look(n); ok {
				return p
			}
		}
		return ""
	}

	c := Capabilities{
		AptGet:   find("apt-get"),
		Sudo:     find("sudo"),
		Pip:      find("pip3", "pip"),
		Npm:      find("npm"),
		Gem:      find("gem"),
		Flatpak:  find("flatpak"),
		Helm:     find("helm"),
		Git:      find("git"),
		Java:     find("java"),
		Ldd:      find("ldd"),
		Ldconfig: find("ldconfig", "/sbin/ldconfig"),
		Tar:      find("tar"),
		Make:     find("make"),
		Unzip:    find("unzip"),
	}
	c.NeedSudo = euid() != 0 && c.Sudo != ""
	return c
}

// Privileged prefixes a command with sudo when the process is not root and
// sudo is available. Root (the common case in provisioning containers)
// runs the command directly.
func (c Capabilities) Privileged(command string, args ...string) (string, []string) {
	if c.NeedSudo {
		return c.Sudo, append([]string{command}, args...)
	}
	return command, args
}

// Manager returns the path for a named language package manager.
func (c Capabilities) Manager(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pip", "pip3", "":
		return c.Pip
	case "npm":
		return c.Npm
	case "gem":
		return c.Gem
	default:
		return ""
	}
}

// runtimePackages maps a language runtime to the Debian packages that
// provision it.
var runtimePackages = map[string][]string{
	"python": {"python3", "python3-pip", "python3-venv"},
	"node":   {"nodejs", "npm"},
	"ruby":   {"ruby-full"},
	"java":   {"default-jre"},
}

// RuntimePackages returns the apt packages backing a runtime name, or nil
// for an unknown runtime.
func RuntimePackages(runtime string) []string {
	pkgs, ok := runtimePackages[strings.ToLower(strings.TrimSpace(runtime))]
	if !ok {
		return nil
	}
	out := make([]string, len(pkgs))
	copy(out, pkgs)
	return out
}

// KnownRuntimes lists the runtime names RuntimePackages understands.
func KnownRuntimes() []string {
	names := make([]string, 0, len(runtimePackages))
	for name := range runtimePackages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
