package platform

import (
	"testing"
)

func lookupFrom(available map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		p, ok := available[name]
		return p, ok
	}
}

func TestDetectWith(t *testing.T) {
	caps := DetectWith(lookupFrom(map[string]string{
		"apt-get": "/usr/bin/apt-get",
		"pip3":    "/usr/bin/pip3",
		"git":     "/usr/bin/git",
		"ldd":     "/usr/bin/ldd",
		"tar":     "/bin/tar",
	}))

	if caps.AptGet != "/usr/bin/apt-get" {
		t.Fatalf("AptGet = %q", caps.AptGet)
	}
	if caps.Pip != "/usr/bin/pip3" {
		t.Fatalf("Pip = %q", caps.Pip)
	}
	if caps.Flatpak != "" || caps.Helm != "" {
		t.Fatal("absent tools should resolve empty")
	}
}

func TestDetectPipFallback(t *testing.T) {
	caps := DetectWith(lookupFrom(map[string]string{"pip": "/usr/bin/pip"}))
	if caps.Pip != "/usr/bin/pip" {
		t.Fatalf("Pip fallback = %q", caps.Pip)
	}
}

func TestPrivileged(t *testing.T) {
	caps := Capabilities{AptGet: "/usr/bin/apt-get"}

	cmd, args := caps.Privileged("apt-get", "install", "-y", "jq")
	if cmd != "apt-get" || len(args) != 3 {
		t.Fatalf("root path: %s %v", cmd, args)
	}

	caps.Sudo = "/usr/bin/sudo"
	caps.NeedSudo = true
	cmd, args = caps.Privileged("apt-get", "install", "-y", "jq")
	if cmd != "/usr/bin/sudo" {
		t.Fatalf("sudo path cmd = %s", cmd)
	}
	if len(args) != 4 || args[0] != "apt-get" {
		t.Fatalf("sudo path args = %v", args)
	}
}

func TestManager(t *testing.T) {
	caps := Capabilities{Pip: "/usr/bin/pip3", Npm: "/usr/bin/npm"}
	if caps.Manager("pip3") != "/usr/bin/pip3" {
		t.Fatal("pip3 lookup failed")
	}
	if caps.Manager("") != "/usr/bin/pip3" {
		t.Fatal("empty manager should default to pip")
	}
	if caps.Manager("npm") != "/usr/bin/npm" {
		t.Fatal("npm lookup failed")
	}
	if caps.Manager("cargo") != "" {
		t.Fatal("unknown manager should be empty")
	}
}

func TestRuntimePackages(t *testing.T) {
	pkgs := RuntimePackages("python")
	if len(pkgs) != 3 || pkgs[0] != "python3" {
		t.Fatalf("python runtime packages = %v", pkgs)
	}
	// Returned slice must be a copy.
	pkgs[0] = "mutated"
	if RuntimePackages("python")[0] != "python3" {
		t.Fatal("RuntimePackages returned shared backing array")
	}
	if RuntimePackages("cobol") != nil {
		t.Fatal("unknown runtime should be nil")
	}
}
