package strategy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"toolforge/internal/catalog"
	"toolforge/internal/execx"
	"toolforge/internal/version"
)

// DefaultContainerTimeout bounds one containerized install. Generous on
// purpose: flatpak under emulation is slow, not broken.
const DefaultContainerTimeout = 10 * time.Minute

// ContainerPackage installs container-distributed tools. Two flavors:
// flatpak refs installed from a remote, and helm charts pulled from a
// chart repository with a designed fallback to packaging the chart
// straight from its GitHub tag when the index lacks the pinned version.
type ContainerPackage struct {
	deps Deps

	// Timeout overrides DefaultContainerTimeout; tests shrink it.
	Timeout time.Duration
	// GitHubBase overrides the tag-archive host; tests point it at a
	// local server.
	GitHubBase string
}

func (s *ContainerPackage) Name() string { return "containerized-package" }

func (s *ContainerPackage) Missing(spec catalog.ToolSpec) []string {
	flavor := "flatpak"
	if spec.Container != nil && spec.Container.Flavor != "" {
		flavor = spec.Container.Flavor
	}
	switch flavor {
	case "helm":
		if s.deps.Caps.Helm == "" {
			return []string{"helm"}
		}
	default:
		if s.deps.Caps.Flatpak == "" {
			return []string{"flatpak"}
		}
	}
	return nil
}

func (s *ContainerPackage) Install(ctx context.Context, spec catalog.ToolSpec) Outcome {
	if spec.Container == nil || spec.Container.Ref == "" {
		return failure(fmt.Errorf("tool %q: container strategy without a ref", spec.Name))
	}
	if spec.Container.Flavor == "helm" {
		return s.installHelm(ctx, spec)
	}
	return s.installFlatpak(ctx, spec)
}

func (s *ContainerPackage) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	if s.deps.ContainerTimeout > 0 {
		return s.deps.ContainerTimeout
	}
	return DefaultContainerTimeout
}

func (s *ContainerPackage) installFlatpak(ctx context.Context, spec catalog.ToolSpec) Outcome {
	c := spec.Container

	if c.Remote != "" && c.RemoteURL != "" {
		args := []string{"remote-add", "--if-not-exists", c.Remote, c.RemoteURL}
		if res, err := s.deps.Runner.Run(ctx, s.deps.Caps.Flatpak, args, execx.RunOptions{}); err != nil {
			return failure(fmt.Errorf("flatpak remote-add %s: %s", c.Remote, lastLines(res.Combined(), 2)))
		}
	}

	args := []string{"install", "-y", "--noninteractive"}
	if c.Remote != "" {
		args = append(args, c.Remote)
	}
	args = append(args, c.Ref)

	runCtx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	res, err := s.deps.Runner.Run(runCtx, s.deps.Caps.Flatpak, args, execx.RunOptions{})
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			// Slow mirrors and emulated hosts blow past any reasonable
			// deadline. Leave a stub wrapper so validation can proceed
			// and the operator knows to re-run.
			wrapper := filepath.Join(s.deps.Layout.BinDir(), spec.Name)
			if werr := writeScript(wrapper, stubWrapper(spec)); werr != nil {
				return failure(fmt.Errorf("flatpak install timed out and stub wrapper failed: %w", werr))
			}
			out := partial(
				fmt.Sprintf("flatpak install of %s timed out; stub wrapper at %s", c.Ref, wrapper),
				"container install timed out; re-run to finish",
			)
			out.InstalledBinary = wrapper
			return out
		}
		return failure(fmt.Errorf("flatpak install %s: %s", c.Ref, lastLines(res.Combined(), 3)))
	}

	wrapper := filepath.Join(s.deps.Layout.BinDir(), spec.Name)
	if err := writeScript(wrapper, flatpakWrapper(spec)); err != nil {
		return failure(fmt.Errorf("write wrapper %s: %w", wrapper, err))
	}
	out := success(fmt.Sprintf("flatpak %s installed; wrapper at %s", c.Ref, wrapper))
	out.InstalledBinary = wrapper
	return out
}

func (s *ContainerPackage) installHelm(ctx context.Context, spec catalog.ToolSpec) Outcome {
	c := spec.Container
	destDir := s.deps.Layout.ToolOptDir(spec.Name)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return failure(fmt.Errorf("prepare %s: %w", destDir, err))
	}

	if c.Remote != "" && c.RemoteURL != "" {
		args := []string{"repo", "add", c.Remote, c.RemoteURL, "--force-update"}
		if res, err := s.deps.Runner.Run(ctx, s.deps.Caps.Helm, args, execx.RunOptions{}); err != nil {
			return failure(fmt.Errorf("helm repo add %s: %s", c.Remote, lastLines(res.Combined(), 2)))
		}
	}

	chart := c.Ref
	if c.Remote != "" {
		chart = c.Remote + "/" + c.Ref
	}
	args := []string{"pull", chart, "--destination", destDir}
	if !version.Wildcard(spec.Version) {
		args = append(args, "--version", spec.Version)
	}

	res, err := s.deps.Runner.Run(ctx, s.deps.Caps.Helm, args, execx.RunOptions{})
	if err == nil {
		return success(fmt.Sprintf("chart %s pulled to %s", chart, destDir))
	}

	combined := res.Combined()
	if !chartVersionAbsent(combined) || c.GitHubRepo == "" {
		return failure(fmt.Errorf("helm pull %s: %s", chart, lastLines(combined, 3)))
	}

	// Designed fallback: the index does not carry this version, but the
	// source tag does.
	s.deps.logger().Printf("chart %s@%s absent from index; packaging from github tag", c.Ref, spec.Version)
	out := s.packageFromTag(ctx, spec, destDir)
	if out.Level != Failure {
		out.Fallback = "github-tag"
	}
	return out
}

// chartVersionAbsent recognizes helm's "that version is not in the index"
// family of errors, which is the only trigger for the tag fallback.
func chartVersionAbsent(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "not found") ||
		strings.Contains(lower, "no chart version found") ||
		strings.Contains(lower, "no repo") ||
		strings.Contains(lower, "unable to locate")
}

func (s *ContainerPackage) packageFromTag(ctx context.Context, spec catalog.ToolSpec, destDir string) Outcome {
	c := spec.Container
	stage := filepath.Join(s.deps.Layout.WorkDir, "tag-"+spec.Name)

	base := s.GitHubBase
	if base == "" {
		base = "https://github.com"
	}

	var artifact string
	var err error
	for _, tag := range tagCandidates(spec.Version) {
		url := fmt.Sprintf("%s/%s/archive/refs/tags/%s.tar.gz", base, c.GitHubRepo, tag)
		artifact, err = s.deps.Fetch.Download(ctx, url, stage)
		if err == nil {
			break
		}
	}
	if err != nil {
		return failure(fmt.Errorf("fetch source tag for %s: %w", c.Ref, err))
	}

	extractDir := filepath.Join(stage, "unpacked")
	if err := s.deps.extractArchive(ctx, "tar.gz", artifact, extractDir); err != nil {
		return failure(fmt.Errorf("unpack source tag: %w", err))
	}

	chartDir, err := findChartDir(extractDir, c.Ref)
	if err != nil {
		return failure(fmt.Errorf("locate chart in source tag: %w", err))
	}

	args := []string{"package", chartDir, "--destination", destDir}
	if res, err := s.deps.Runner.Run(ctx, s.deps.Caps.Helm, args, execx.RunOptions{}); err != nil {
		return failure(fmt.Errorf("helm package: %s", lastLines(res.Combined(), 3)))
	}
	return success(fmt.Sprintf("chart %s packaged from github tag into %s", c.Ref, destDir))
}

func tagCandidates(required string) []string {
	v := strings.TrimSpace(required)
	if version.Wildcard(v) {
		return []string{"main"}
	}
	if strings.HasPrefix(v, "v") {
		return []string{v, strings.TrimPrefix(v, "v")}
	}
	return []string{"v" + v, v}
}

// findChartDir locates the directory holding Chart.yaml, preferring one
// named after the chart itself.
func findChartDir(root, chartName string) (string, error) {
	var fallback string
	var preferred string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "Chart.yaml" {
			return nil
		}
		dir := filepath.Dir(path)
		if filepath.Base(dir) == chartName {
			preferred = dir
			return io.EOF
		}
		if fallback == "" {
			fallback = dir
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if preferred != "" {
		return preferred, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("no Chart.yaml under %s", root)
}

func flatpakWrapper(spec catalog.ToolSpec) string {
	return fmt.Sprintf(`#!/bin/sh
exec flatpak run %s "$@"
`, spec.Container.Ref)
}

// stubWrapper answers --version with the pinned version so a compose run
// can finish validating while the real install completes later.
func stubWrapper(spec catalog.ToolSpec) string {
	v := spec.Version
	if version.Wildcard(v) {
		v = "pending"
	}
	return fmt.Sprintf(`#!/bin/sh
if [ "$1" = "--version" ]; then
    echo "%s %s (container install pending)"
    exit 0
fi
echo "%s: container install still in progress; re-run the installer" >&2
exit 1
`, spec.Name, v, spec.Name)
}
