package strategy

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"toolforge/internal/catalog"
	"toolforge/internal/checksum"
)

// BinaryDownload fetches a prebuilt artifact, verifies it, and promotes
// the executable into the install root. Nothing touches the install root
// until the artifact has been verified and unpacked in the work dir.
type BinaryDownload struct {
	deps Deps
}

func (s *BinaryDownload) Name() string { return "binary-download" }

func (s *BinaryDownload) Missing(spec catalog.ToolSpec) []string {
	if spec.Binary != nil && spec.Binary.Archive == "tar.xz" && s.deps.Caps.Tar == "" {
		return []string{"tar"}
	}
	return nil
}

func (s *BinaryDownload) Install(ctx context.Context, spec catalog.ToolSpec) Outcome {
	if spec.Binary == nil || spec.Binary.URL == "" {
		return failure(fmt.Errorf("tool %q: binary strategy without a url", spec.Name))
	}
	b := spec.Binary

	stage := filepath.Join(s.deps.Layout.WorkDir, "binary-"+spec.Name)
	artifact, err := s.deps.Fetch.Download(ctx, b.URL, stage)
	if err != nil {
		return failure(fmt.Errorf("download %s: %w", b.URL, err))
	}

	var warnings []string
	switch {
	case b.Checksum != "":
		if err := checksum.Expect(artifact, b.Checksum); err != nil {
			if errors.Is(err, checksum.ErrUnavailable) && !b.ChecksumRequiredValue() {
				warnings = append(warnings, fmt.Sprintf("digest not verified: %v", err))
				break
			}
			return failure(err)
		}
	case b.ChecksumRequiredValue():
		return failure(fmt.Errorf("tool %q: no checksum declared for %s", spec.Name, b.URL))
	default:
		sum, hashErr := checksum.File(artifact)
		if hashErr == nil {
			s.deps.logger().Printf("no digest declared for %s; observed sha256=%s", spec.Name, sum)
		}
		warnings = append(warnings, "artifact has no declared digest")
	}

	extractDir := filepath.Join(stage, "unpacked")
	if err := s.deps.extractArchive(ctx, b.Archive, artifact, extractDir); err != nil {
		return failure(fmt.Errorf("unpack %s: %w", filepath.Base(artifact), err))
	}

	src := artifact
	if b.Archive != "raw" && b.Archive != "" {
		found, err := findExecutable(extractDir, b.Bin)
		if err != nil {
			return failure(fmt.Errorf("search %s in archive: %w", b.Bin, err))
		}
		if found == "" {
			return failure(fmt.Errorf("archive for %q does not contain %q", spec.Name, b.Bin))
		}
		src = found
	}

	dest, shim, err := s.place(spec, src)
	if err != nil {
		return failure(err)
	}

	detail := fmt.Sprintf("installed %s", dest)
	if shim != "" {
		detail = fmt.Sprintf("installed %s (shim %s)", dest, shim)
	}
	out := success(detail)
	out.Warnings = warnings
	if len(warnings) > 0 {
		out.Level = PartialSuccess
	}
	out.InstalledBinary = dest
	return out
}

// place promotes the executable to its target. Target "bin" is a direct
// install into <install_root>/bin; "opt" keeps the payload under
// /opt/<tool> and drops an exec shim into the bin dir. The installed name
// is the bin's base name, so path-style bins stay flat.
func (s *BinaryDownload) place(spec catalog.ToolSpec, src string) (dest, shim string, err error) {
	name := filepath.Base(spec.Binary.Bin)
	if spec.Binary.Target == "opt" {
		dest = filepath.Join(s.deps.Layout.ToolOptDir(spec.Name), name)
		if err := installFile(src, dest, 0o755); err != nil {
			return "", "", fmt.Errorf("install %s: %w", dest, err)
		}
		shim = filepath.Join(s.deps.Layout.BinDir(), name)
		script := fmt.Sprintf("#!/bin/sh\nexec %q \"$@\"\n", dest)
		if err := writeScript(shim, script); err != nil {
			return "", "", fmt.Errorf("write shim %s: %w", shim, err)
		}
		return dest, shim, nil
	}

	dest = filepath.Join(s.deps.Layout.BinDir(), name)
	if err := installFile(src, dest, 0o755); err != nil {
		return "", "", fmt.Errorf("install %s: %w", dest, err)
	}
	return dest, "", nil
}
