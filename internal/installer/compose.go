package installer

import (
	"context"
	"sync"

	"toolforge/internal/catalog"
)

// ProgressReporter receives notifications as tools move through their
// installs. Compose feeds one from its worker pool; the TUI adapts it to
// row updates.
type ProgressReporter interface {
	Start(spec catalog.ToolSpec)
	Phase(tool string, pr PhaseResult)
	Complete(report Report)
}

// ComposeOptions tune a whole-catalog run.
type ComposeOptions struct {
	Concurrency int
	Force       bool
	DryRun      bool
	Reporter    ProgressReporter
}

// ComposeResult aggregates one compose run.
type ComposeResult struct {
	Preseed    PreseedResult
	PreseedErr error
	Reports    []Report
}

// Failed counts failed tool runs.
func (c ComposeResult) Failed() int {
	n := 0
	for _, r := range c.Reports {
		if r.Status == StatusFailed {
			n++
		}
	}
	return n
}

// OK reports whether every tool reached a good terminal state.
func (c ComposeResult) OK() bool {
	return c.PreseedErr == nil && c.Failed() == 0
}

// Compose pre-seeds shared dependencies exactly once, then runs every
// catalog tool through its own orchestrator concurrently. Per-tool runs
// are independent: one failure never cancels a sibling.
func (e *Engine) Compose(ctx context.Context, cat *catalog.Catalog, opts ComposeOptions) ComposeResult {
	var out ComposeResult
	out.Preseed, out.PreseedErr = e.Preseed(ctx, cat, opts.DryRun)
	if out.PreseedErr != nil {
		// Tools whose strategy needs no apt can still succeed; keep going.
		e.logger().Warn("preseed did not complete", "err", out.PreseedErr)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = e.Settings.ConcurrencyValue()
	}

	runOpts := Options{
		// The seed just ran; per-tool prereq phases would only repeat it.
		SkipPrereqs: true,
		Force:       opts.Force,
		DryRun:      opts.DryRun,
	}
	if opts.Reporter != nil {
		runOpts.OnPhase = opts.Reporter.Phase
	}

	out.Reports = make([]Report, len(cat.Tools))

	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, concurrency)
	)
	for i, spec := range cat.Tools {
		i, spec := i, spec
		if opts.Reporter != nil {
			opts.Reporter.Start(spec)
		}
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			report := e.Install(ctx, spec, runOpts)
			out.Reports[i] = report
			if opts.Reporter != nil {
				opts.Reporter.Complete(report)
			}
		}()
	}
	wg.Wait()

	return out
}
