package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"toolforge/internal/catalog"
	"toolforge/internal/installer"
)

var (
	installSkipPrereqs bool
	installForce       bool
	installDryRun      bool
	installConcurrency int
)

func newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install [tool|all]",
		Short: "Install catalog tools and verify them",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInstall,
	}

	cmd.Flags().BoolVar(&installSkipPrereqs, "skip-prereqs", false, "Trust the shared pre-seed and skip prerequisite phases")
	cmd.Flags().BoolVar(&installForce, "force", false, "Reinstall even when the existing install is satisfied")
	cmd.Flags().BoolVar(&installDryRun, "dry-run", false, "Report the plan without mutating the host")
	cmd.Flags().IntVar(&installConcurrency, "concurrency", 1, "Concurrent installs when running the whole catalog")

	return cmd
}

func runInstall(cmd *cobra.Command, args []string) error {
	s, err := newRunSession()
	if err != nil {
		return err
	}
	defer s.close()

	specs, err := resolveTools(s.catalog, args)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return fmt.Errorf("catalog %s has no tools", resolveCatalogPath())
	}

	opts := installer.Options{
		SkipPrereqs: installSkipPrereqs,
		Force:       installForce,
		DryRun:      installDryRun,
	}

	reports := runInstalls(cmd.Context(), s.engine, specs, opts, installConcurrency)

	var errs []error
	for _, report := range reports {
		if report.Status == installer.StatusFailed {
			errs = append(errs, fmt.Errorf("%s: %w", report.Tool, report.Err))
		}
	}

	if outputJSON {
		if err := writeReportsJSON(cmd, reports); err != nil {
			return err
		}
	} else {
		printReportTable(cmd, reports)
		if s.logs != nil && len(errs) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "full log: %s\n", s.logs.Path)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// runInstalls drives each spec through the engine, fanning out over a
// bounded pool when concurrency allows. Apt work stays serialized inside
// the engine either way. Reports keep catalog order.
func runInstalls(ctx context.Context, engine *installer.Engine, specs []catalog.ToolSpec, opts installer.Options, concurrency int) []installer.Report {
	reports := make([]installer.Report, len(specs))

	if concurrency <= 1 || len(specs) == 1 {
		for i, spec := range specs {
			reports[i] = engine.Install(ctx, spec, opts)
		}
		return reports
	}

	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, concurrency)
	)
	for i, spec := range specs {
		i, spec := i, spec
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			reports[i] = engine.Install(ctx, spec, opts)
		}()
	}
	wg.Wait()

	return reports
}
