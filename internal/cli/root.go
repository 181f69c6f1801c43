// Package cli wires the toolforge commands. Mutating commands build a
// full engine session; read-only commands probe without touching the
// host.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"toolforge/internal/catalog"
)

var (
	catalogPath string
	outputJSON  bool
	verbose     bool
)

// Execute runs the root cobra command. Interrupts cancel the shared
// context so in-flight installs stop and scratch dirs still get removed.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toolforge",
		Short: "Declarative installer for external tools",
	}

	cmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Path to the tool catalog (default: $TOOLFORGE_CATALOG, then toolforge.yaml)")
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log debug detail")

	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newComposeCmd())
	cmd.AddCommand(newPreseedCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newInfoCmd())
	cmd.AddCommand(newCatalogCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func resolveCatalogPath() string {
	if catalogPath != "" {
		return catalogPath
	}
	if env := os.Getenv("TOOLFORGE_CATALOG"); env != "" {
		return env
	}
	return catalog.DefaultFile
}
