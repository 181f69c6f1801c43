package strategy

import (
	"archive/zip"
	"bufio"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"toolforge/internal/catalog"
	"toolforge/internal/checksum"
	"toolforge/internal/execx"
	"toolforge/internal/version"
)

// JarWithWrapper installs a runnable jar under /opt/<tool> and fronts it
// with a shell wrapper on the PATH. The wrapper answers --version from
// the jar's own manifest so a version check never has to boot the JVM.
type JarWithWrapper struct {
	deps Deps
}

func (s *JarWithWrapper) Name() string { return "jar-with-wrapper" }

func (s *JarWithWrapper) Missing(spec catalog.ToolSpec) []string {
	if s.deps.Caps.Java == "" {
		return []string{"java"}
	}
	return nil
}

func (s *JarWithWrapper) Install(ctx context.Context, spec catalog.ToolSpec) Outcome {
	j := spec.Jar
	if j == nil || j.URL == "" {
		return failure(fmt.Errorf("tool %q: jar strategy without a url", spec.Name))
	}

	stage := filepath.Join(s.deps.Layout.WorkDir, "jar-"+spec.Name)
	artifact, err := s.deps.Fetch.Download(ctx, j.URL, stage)
	if err != nil {
		return failure(fmt.Errorf("download %s: %w", j.URL, err))
	}

	var warnings []string
	if j.Checksum != "" {
		if err := checksum.Expect(artifact, j.Checksum); err != nil {
			return failure(err)
		}
	} else {
		sum, hashErr := checksum.File(artifact)
		if hashErr == nil {
			s.deps.logger().Printf("no digest declared for %s; observed sha256=%s", spec.Name, sum)
		}
		warnings = append(warnings, "artifact has no declared digest")
	}

	// A jar that the zip reader cannot open would fail at first launch
	// anyway; catch it before it reaches /opt.
	manifestVersion, err := ReadManifestVersion(artifact)
	if err != nil {
		return failure(fmt.Errorf("tool %q: downloaded jar unreadable: %w", spec.Name, err))
	}
	if manifestVersion == "" {
		warnings = append(warnings, "jar manifest carries no Implementation-Version")
	} else if !version.Wildcard(spec.Version) {
		if !version.Compare(manifestVersion, spec.Version).Satisfies() {
			warnings = append(warnings, fmt.Sprintf("manifest reports %s, wanted %s", manifestVersion, spec.Version))
		}
	}

	if j.JavaMin != "" {
		if w := s.checkJavaVersion(ctx, j.JavaMin); w != "" {
			warnings = append(warnings, w)
		}
	}

	jarPath := filepath.Join(s.deps.Layout.ToolOptDir(spec.Name), spec.Name+".jar")
	if err := installFile(artifact, jarPath, 0o644); err != nil {
		return failure(fmt.Errorf("install %s: %w", jarPath, err))
	}

	wrapper := filepath.Join(s.deps.Layout.BinDir(), spec.Name)
	if err := writeScript(wrapper, s.wrapperScript(spec, jarPath, manifestVersion)); err != nil {
		return failure(fmt.Errorf("write wrapper %s: %w", wrapper, err))
	}

	var out Outcome
	if len(warnings) > 0 {
		out = partial(fmt.Sprintf("jar installed at %s; wrapper at %s", jarPath, wrapper), warnings...)
	} else {
		out = success(fmt.Sprintf("jar installed at %s; wrapper at %s", jarPath, wrapper))
	}
	out.InstalledBinary = wrapper
	return out
}

// checkJavaVersion compares the host JVM against the declared minimum.
// An old JVM is a warning here; the wrapper still gets written and the
// validator decides whether the tool actually works.
func (s *JarWithWrapper) checkJavaVersion(ctx context.Context, min string) string {
	// java prints its banner on stderr.
	res, err := s.deps.Runner.Run(ctx, s.deps.Caps.Java, []string{"-version"}, execx.RunOptions{})
	if err != nil {
		return fmt.Sprintf("could not probe java version: %v", err)
	}
	observed := version.Extract(res.Combined())
	if observed == "" {
		return "could not parse java version banner"
	}
	if rel := version.Compare(observed, min); rel == version.Older {
		return fmt.Sprintf("java %s observed, %s or newer wanted", observed, min)
	}
	return ""
}

func (s *JarWithWrapper) wrapperScript(spec catalog.ToolSpec, jarPath, manifestVersion string) string {
	opts := strings.Join(spec.Jar.JavaOpts, " ")
	if opts != "" {
		opts += " "
	}

	var versionBranch string
	switch {
	case s.deps.Caps.Unzip != "":
		// Read the manifest live so the wrapper stays correct when the
		// jar is swapped in place.
		versionBranch = fmt.Sprintf(`    v=$(unzip -p "$JAR" META-INF/MANIFEST.MF 2>/dev/null | tr -d '\r' | sed -n 's/^Implementation-Version:[[:space:]]*//p' | head -n 1)
    if [ -n "$v" ]; then
        echo "%s $v"
        exit 0
    fi`, spec.Name)
	case manifestVersion != "":
		versionBranch = fmt.Sprintf(`    echo "%s %s"
    exit 0`, spec.Name, manifestVersion)
	default:
		// No unzip and no manifest field; --version has to boot the JVM.
		versionBranch = "    :"
	}

	return fmt.Sprintf(`#!/bin/sh
JAR="%s"
if [ "$1" = "--version" ]; then
%s
fi
exec java ${JAVA_OPTS:-} %s-jar "$JAR" "$@"
`, jarPath, versionBranch, opts)
}

// ReadManifestVersion pulls Implementation-Version out of a jar's
// META-INF/MANIFEST.MF. Returns "" without error when the manifest or
// the field is absent; errors mean the archive itself is unreadable.
func ReadManifestVersion(jarPath string) (string, error) {
	r, err := zip.OpenReader(jarPath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != "META-INF/MANIFEST.MF" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()

		sc := bufio.NewScanner(rc)
		for sc.Scan() {
			line := strings.TrimRight(sc.Text(), "\r")
			if v, ok := strings.CutPrefix(line, "Implementation-Version:"); ok {
				return strings.TrimSpace(v), nil
			}
		}
		return "", sc.Err()
	}
	return "", nil
}
