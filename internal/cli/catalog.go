package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"toolforge/internal/catalog"
	"toolforge/internal/paths"
)

const starterCatalogYAML = `version: 1

settings:
  install_root: /usr/local
  opt_root: /opt
  concurrency: 4

tools:
  - name: jq
    version: "1.7"
    strategy: apt
    apt:
      packages: [jq]

  # - name: yt-dlp
  #   version: latest
  #   strategy: pip
  #   pip:
  #     package: yt-dlp
  #     break_system_packages: true

  # - name: shellcheck
  #   version: "0.10.0"
  #   strategy: binary
  #   binary:
  #     url: https://github.com/koalaman/shellcheck/releases/download/v0.10.0/shellcheck-v0.10.0.linux.x86_64.tar.xz
  #     checksum: "sha256:6c881ab0698e4e6ea235245f22832860544f17ba386442fe7e9d629f8cbedf87"
  #     bin: shellcheck-v0.10.0/shellcheck
`

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and scaffold the tool catalog",
	}

	cmd.AddCommand(newCatalogValidateCmd())
	cmd.AddCommand(newCatalogInitCmd())

	return cmd
}

func newCatalogValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Lint the catalog and fail on errors",
		Args:  cobra.NoArgs,
		RunE:  runCatalogValidate,
	}
}

func runCatalogValidate(cmd *cobra.Command, _ []string) error {
	path := resolveCatalogPath()
	cat, err := catalog.Load(path)
	if err != nil {
		return err
	}

	results := cat.ValidateStrict()

	if outputJSON {
		if results == nil {
			results = []catalog.ValidationResult{}
		}
		if err := writeJSON(cmd, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", r.Level, r.Message)
		}
	}

	var errorCount int
	for _, r := range results {
		if r.Level == "error" {
			errorCount++
		}
	}
	if errorCount > 0 {
		return fmt.Errorf("catalog %s has %d errors", path, errorCount)
	}

	if !outputJSON {
		fmt.Fprintf(cmd.OutOrStdout(), "catalog %s is valid (%d tools)\n", path, len(cat.Tools))
	}
	return nil
}

func newCatalogInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter catalog file",
		Args:  cobra.NoArgs,
		RunE:  runCatalogInit,
	}
}

func runCatalogInit(cmd *cobra.Command, _ []string) error {
	path := resolveCatalogPath()

	exists, err := paths.FileExists(path)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("catalog already exists: %s", path)
	}

	if err := os.WriteFile(path, []byte(starterCatalogYAML), 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}
