package strategy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"toolforge/internal/catalog"
	"toolforge/internal/execx"
	"toolforge/internal/paths"
)

// SourceBuild compiles a tool from source at a pinned ref: fetch,
// configure, make, optional self-test, install. The build tree lives in
// the work dir and is removed whether or not the build succeeds.
type SourceBuild struct {
	deps Deps
}

func (s *SourceBuild) Name() string { return "source-build" }

func (s *SourceBuild) Missing(spec catalog.ToolSpec) []string {
	var missing []string
	if s.deps.Caps.Make == "" {
		missing = append(missing, "make")
	}
	if spec.Source != nil {
		if spec.Source.Repo != "" && s.deps.Caps.Git == "" {
			missing = append(missing, "git")
		}
		if strings.HasSuffix(spec.Source.Tarball, ".tar.xz") && s.deps.Caps.Tar == "" {
			missing = append(missing, "tar")
		}
	}
	return missing
}

func (s *SourceBuild) Install(ctx context.Context, spec catalog.ToolSpec) Outcome {
	if spec.Source == nil || (spec.Source.Repo == "" && spec.Source.Tarball == "") {
		return failure(fmt.Errorf("tool %q: source strategy without a repo or tarball", spec.Name))
	}
	src := spec.Source

	buildRoot := filepath.Join(s.deps.Layout.WorkDir, "build-"+spec.Name)
	defer os.RemoveAll(buildRoot)

	srcDir, err := s.obtain(ctx, spec, buildRoot)
	if err != nil {
		return failure(err)
	}

	if err := s.configure(ctx, srcDir, src.ConfigureFlags); err != nil {
		return failure(err)
	}

	if err := s.build(ctx, srcDir, src.MakeTargets); err != nil {
		return failure(err)
	}

	var warnings []string
	if src.SelfTest {
		if err := s.runMake(ctx, srcDir, []string{"check"}, false); err != nil {
			// Upstream test suites are advisory here; the validator has
			// the final word on whether the install works.
			warnings = append(warnings, fmt.Sprintf("self-test failed: %v", err))
		}
	}

	if err := s.runMake(ctx, srcDir, []string{src.InstallTarget}, true); err != nil {
		return failure(fmt.Errorf("install: %w", err))
	}

	out := success(fmt.Sprintf("built %s from source", describeSource(src)))
	out.Warnings = warnings
	if len(warnings) > 0 {
		out.Level = PartialSuccess
	}
	if bin := filepath.Join(s.deps.Layout.BinDir(), spec.Name); paths.IsExecutable(bin) {
		out.InstalledBinary = bin
	}
	return out
}

// obtain materializes the pinned source tree under buildRoot and returns
// the directory holding the build system.
func (s *SourceBuild) obtain(ctx context.Context, spec catalog.ToolSpec, buildRoot string) (string, error) {
	src := spec.Source
	if src.Repo != "" {
		dir := filepath.Join(buildRoot, "src")
		args := []string{"clone", "--depth", "1"}
		if src.Ref != "" {
			args = append(args, "--branch", src.Ref)
		}
		args = append(args, src.Repo, dir)
		res, err := s.deps.Runner.Run(ctx, s.deps.Caps.Git, args, execx.RunOptions{
			// Never hang on a credential prompt for a bad URL.
			Env: []string{"GIT_TERMINAL_PROMPT=0"},
		})
		if err != nil {
			return "", fmt.Errorf("clone %s@%s: %s", src.Repo, src.Ref, lastLines(res.Combined(), 2))
		}
		return dir, nil
	}

	artifact, err := s.deps.Fetch.Download(ctx, src.Tarball, buildRoot)
	if err != nil {
		return "", fmt.Errorf("download source: %w", err)
	}
	extractDir := filepath.Join(buildRoot, "src")
	format := archiveFormatOf(artifact)
	if err := s.deps.extractArchive(ctx, format, artifact, extractDir); err != nil {
		return "", fmt.Errorf("unpack source: %w", err)
	}
	return soleSubdir(extractDir), nil
}

func (s *SourceBuild) configure(ctx context.Context, srcDir string, flags []string) error {
	script := filepath.Join(srcDir, "configure")
	if ok, _ := paths.FileExists(script); !ok {
		if len(flags) > 0 {
			return fmt.Errorf("configure flags given but %s has no configure script", srcDir)
		}
		return nil
	}
	res, err := s.deps.Runner.Run(ctx, script, flags, execx.RunOptions{Dir: srcDir})
	if err != nil {
		return fmt.Errorf("configure: %s", lastLines(res.Combined(), 3))
	}
	return nil
}

func (s *SourceBuild) build(ctx context.Context, srcDir string, targets []string) error {
	args := []string{"-j" + strconv.Itoa(buildJobs())}
	args = append(args, targets...)
	res, err := s.deps.Runner.Run(ctx, s.deps.Caps.Make, args, execx.RunOptions{Dir: srcDir})
	if err != nil {
		return fmt.Errorf("make: %s", lastLines(res.Combined(), 3))
	}
	return nil
}

func (s *SourceBuild) runMake(ctx context.Context, srcDir string, targets []string, privileged bool) error {
	cmd := s.deps.Caps.Make
	args := targets
	if privileged {
		cmd, args = s.deps.Caps.Privileged(cmd, targets...)
	}
	res, err := s.deps.Runner.Run(ctx, cmd, args, execx.RunOptions{Dir: srcDir})
	if err != nil {
		return fmt.Errorf("make %s: %s", strings.Join(targets, " "), lastLines(res.Combined(), 3))
	}
	return nil
}

// buildJobs caps parallelism; -j$(nproc) on a big host just thrashes the
// container it runs in.
func buildJobs() int {
	n := runtime.NumCPU()
	if n > 8 {
		return 8
	}
	if n < 1 {
		return 1
	}
	return n
}

func archiveFormatOf(artifact string) string {
	switch {
	case strings.HasSuffix(artifact, ".tar.gz"), strings.HasSuffix(artifact, ".tgz"):
		return "tar.gz"
	case strings.HasSuffix(artifact, ".tar.xz"), strings.HasSuffix(artifact, ".txz"):
		return "tar.xz"
	case strings.HasSuffix(artifact, ".zip"):
		return "zip"
	default:
		return "tar.gz"
	}
}

// soleSubdir descends into the single top-level directory release
// tarballs conventionally carry.
func soleSubdir(root string) string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return root
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) == 1 && len(entries) == 1 {
		return filepath.Join(root, dirs[0])
	}
	return root
}

func describeSource(src *catalog.SourceSpec) string {
	if src.Repo != "" {
		return fmt.Sprintf("%s@%s", src.Repo, src.Ref)
	}
	return src.Tarball
}
