// Package installer drives one tool from not-installed to
// installed-and-verified.
//
// The run is a state machine: Start, CheckPrereqs, InstallPrereqs,
// VerifyPrereqs, CheckExisting, Install, Validate. Transitions only move
// forward, with two designed exceptions: VerifyPrereqs may re-enter
// InstallPrereqs once per prerequisite, and a strategy may finish through
// its named fallback branch. A system that is already correct is left
// untouched.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"toolforge/internal/apt"
	"toolforge/internal/catalog"
	"toolforge/internal/execx"
	"toolforge/internal/fetch"
	"toolforge/internal/linkage"
	"toolforge/internal/paths"
	"toolforge/internal/platform"
	"toolforge/internal/probe"
	"toolforge/internal/strategy"
	"toolforge/internal/version"
)

// Phase names one step of the install state machine.
type Phase string

const (
	PhaseStart          Phase = "start"
	PhaseCheckPrereqs   Phase = "check-prereqs"
	PhaseInstallPrereqs Phase = "install-prereqs"
	PhaseVerifyPrereqs  Phase = "verify-prereqs"
	PhaseCheckExisting  Phase = "check-existing"
	PhaseInstall        Phase = "install"
	PhaseValidate       Phase = "validate"
)

// Status is the terminal state of a run.
type Status int

const (
	StatusDone Status = iota
	StatusAlreadySatisfied
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusAlreadySatisfied:
		return "already-satisfied"
	case StatusFailed:
		return "failed"
	default:
		return "done"
	}
}

// ErrPrereqUnsatisfied marks prerequisites that stayed unsatisfied after
// the single designed retry.
var ErrPrereqUnsatisfied = errors.New("prerequisite unsatisfied")

// ErrValidationFailed marks a finished install whose validation command
// did not produce an acceptable version.
var ErrValidationFailed = errors.New("validation failed")

// PhaseResult records one executed phase.
type PhaseResult struct {
	Phase    Phase
	OK       bool
	Detail   string
	Observed string // version string seen during probe/validate phases
	Fallback string // named alternate branch, when one produced the result
	Warnings []string
	Duration time.Duration
	Err      error
}

// Report is the full record of one tool run.
type Report struct {
	RunID   string
	Tool    string
	Status  Status
	Phases  []PhaseResult
	DryRun  bool
	Started time.Time
	Elapsed time.Duration

	// Set when Status is StatusFailed.
	FailedPhase Phase
	Hint        string
	Err         error
}

// Warnings collects every phase warning in order.
func (r Report) Warnings() []string {
	var all []string
	for _, p := range r.Phases {
		all = append(all, p.Warnings...)
	}
	return all
}

// Observed returns the last version string any phase saw.
func (r Report) Observed() string {
	for i := len(r.Phases) - 1; i >= 0; i-- {
		if r.Phases[i].Observed != "" {
			return r.Phases[i].Observed
		}
	}
	return ""
}

// Options tune one run.
type Options struct {
	// SkipPrereqs trusts the shared pre-seed and jumps straight to
	// CheckExisting. RESPECT_SHARED_DEPS=1 forces it on.
	SkipPrereqs bool
	// Force reinstalls even when the existing install is satisfied.
	Force bool
	// DryRun reports the plan without mutating the host.
	DryRun bool
	// OnPhase observes each completed phase; compose feeds its UI with it.
	OnPhase func(tool string, pr PhaseResult)
}

// Engine bundles the machinery shared by every run in the process: one
// capability snapshot, one apt frontend, one work dir.
type Engine struct {
	Caps     platform.Capabilities
	Runner   execx.Runner
	Apt      *apt.Manager
	Fetch    *fetch.Client
	Layout   paths.Layout
	Settings catalog.Settings
	Log      *log.Logger

	// LookPath is swappable for tests; nil means the real PATH.
	LookPath func(string) (string, error)
}

// New wires an Engine from a capability snapshot and catalog settings.
func New(caps platform.Capabilities, layout paths.Layout, settings catalog.Settings, logger *log.Logger) *Engine {
	runner := execx.CmdRunner{}
	printf := printfLogger{logger}
	return &Engine{
		Caps:     caps,
		Runner:   runner,
		Apt:      apt.NewManager(runner, caps, printf),
		Fetch:    fetchClient(settings, printf),
		Layout:   layout,
		Settings: settings,
		Log:      logger,
	}
}

func fetchClient(settings catalog.Settings, logger execx.Logger) *fetch.Client {
	c := fetch.New(settings.DownloadTimeout())
	c.Log = logger
	return c
}

// printfLogger adapts a charm logger to the Printf seam; nil logger
// discards.
type printfLogger struct {
	l *log.Logger
}

func (p printfLogger) Printf(format string, v ...any) {
	if p.l != nil {
		p.l.Debug(fmt.Sprintf(format, v...))
	}
}

func (e *Engine) logger() *log.Logger {
	if e.Log != nil {
		return e.Log
	}
	return log.New(io.Discard)
}

func (e *Engine) prober() *probe.Prober {
	p := probe.New(e.Runner)
	p.Timeout = e.Settings.ProbeTimeout()
	if e.LookPath != nil {
		p.LookPath = e.LookPath
	}
	return p
}

func (e *Engine) strategyDeps() strategy.Deps {
	deps := strategy.Deps{
		Runner: e.Runner,
		Caps:   e.Caps,
		Apt:    e.Apt,
		Fetch:  e.Fetch,
		Log:    printfLogger{e.Log},
		Layout: e.Layout,
	}
	// A catalog that pins download_timeout_s gets double that bound for
	// containerized installs; flatpak pulls dwarf plain downloads.
	if e.Settings.DownloadTimeoutSec > 0 {
		deps.ContainerTimeout = 2 * e.Settings.DownloadTimeout()
	}
	return deps
}

// respectSharedDeps folds the env override into the effective skip
// decision: flag, env, and catalog setting are equivalent.
func (e *Engine) respectSharedDeps(opts Options) bool {
	if opts.SkipPrereqs {
		return true
	}
	if os.Getenv("RESPECT_SHARED_DEPS") == "1" {
		return true
	}
	return e.Settings.RespectSharedDepsValue()
}

// run carries the per-run state.
type run struct {
	engine *Engine
	spec   catalog.ToolSpec
	opts   Options
	log    *log.Logger
	report Report
}

// Install drives one tool through the state machine and returns its
// report. The report is always complete; callers decide process exit from
// report.Status.
func (e *Engine) Install(ctx context.Context, spec catalog.ToolSpec, opts Options) Report {
	r := &run{
		engine: e,
		spec:   spec,
		opts:   opts,
		report: Report{
			RunID:   uuid.NewString(),
			Tool:    spec.Name,
			Started: time.Now(),
			DryRun:  opts.DryRun,
		},
	}
	r.log = e.logger().With("run", r.report.RunID, "tool", spec.Name)

	r.execute(ctx)
	r.report.Elapsed = time.Since(r.report.Started)
	return r.report
}

func (r *run) execute(ctx context.Context) {
	strat, err := strategy.ForTool(r.spec, r.engine.strategyDeps())
	if err != nil {
		r.record(PhaseStart, PhaseResult{Detail: err.Error(), Err: err})
		r.fail(PhaseStart, err)
		return
	}
	r.record(PhaseStart, PhaseResult{OK: true, Detail: fmt.Sprintf("strategy %s, version %s", r.spec.Strategy, r.spec.Version)})

	if r.engine.respectSharedDeps(r.opts) {
		r.log.Debug("prerequisite phases skipped", "reason", "respect-shared-deps")
	} else if !r.prereqPhases(ctx, strat) {
		return
	}

	proceed, satisfied := r.checkExisting(ctx)
	if satisfied {
		return
	}
	if !proceed {
		return
	}

	if r.opts.DryRun {
		r.record(PhaseInstall, PhaseResult{
			OK:     true,
			Detail: fmt.Sprintf("dry-run: would install via %s", strat.Name()),
		})
		r.report.Status = StatusDone
		return
	}

	if !r.install(ctx, strat) {
		return
	}
	r.validate(ctx, false)
}

// record appends a phase result, logs it, and notifies the observer.
func (r *run) record(phase Phase, pr PhaseResult) {
	pr.Phase = phase
	r.report.Phases = append(r.report.Phases, pr)

	kv := []any{"phase", phase, "ok", pr.OK}
	if pr.Detail != "" {
		kv = append(kv, "detail", pr.Detail)
	}
	if pr.Fallback != "" {
		kv = append(kv, "fallback", pr.Fallback)
	}
	r.log.Debug("phase complete", kv...)
	for _, w := range pr.Warnings {
		r.log.Warn(w, "phase", phase)
	}

	if r.opts.OnPhase != nil {
		r.opts.OnPhase(r.spec.Name, pr)
	}
}

// fail marks the run failed and logs the single line naming the phase and
// its remediation.
func (r *run) fail(phase Phase, err error) {
	hint := remediationHint(phase, r.spec, err)
	r.report.Status = StatusFailed
	r.report.FailedPhase = phase
	r.report.Hint = hint
	r.report.Err = err
	r.log.Error("install failed", "phase", phase, "err", err, "hint", hint)
}

// prereqPhases runs CheckPrereqs and, when needed, the
// InstallPrereqs/VerifyPrereqs loop with its single designed retry.
// Returns false when the run is over (failed).
func (r *run) prereqPhases(ctx context.Context, strat strategy.Strategy) bool {
	start := time.Now()

	// Host capabilities are non-installable from here: fail fast before
	// any mutation.
	if err := strategy.CheckCapabilities(strat, r.spec); err != nil {
		r.record(PhaseCheckPrereqs, PhaseResult{Detail: err.Error(), Duration: time.Since(start), Err: err})
		r.fail(PhaseCheckPrereqs, err)
		return false
	}

	unsatisfied := r.checkPrereqs(ctx)
	r.record(PhaseCheckPrereqs, PhaseResult{
		OK:       true,
		Detail:   prereqSummary(r.spec.Prereqs, unsatisfied),
		Duration: time.Since(start),
	})
	if len(unsatisfied) == 0 {
		return true
	}

	if r.opts.DryRun {
		r.record(PhaseInstallPrereqs, PhaseResult{
			OK:     true,
			Detail: fmt.Sprintf("dry-run: would install prerequisites %s", strings.Join(prereqNames(unsatisfied), ", ")),
		})
		return true
	}

	// One install pass plus at most one retry per prerequisite.
	for attempt := 1; attempt <= 2; attempt++ {
		r.installPrereqs(ctx, unsatisfied, attempt)

		verifyStart := time.Now()
		unsatisfied = r.verifyPrereqs(ctx, unsatisfied)
		pr := PhaseResult{
			OK:       len(unsatisfied) == 0,
			Duration: time.Since(verifyStart),
		}
		if len(unsatisfied) == 0 {
			pr.Detail = "all prerequisites satisfied"
			r.record(PhaseVerifyPrereqs, pr)
			return true
		}
		pr.Detail = fmt.Sprintf("still unsatisfied: %s", strings.Join(prereqNames(unsatisfied), ", "))
		if attempt == 1 {
			pr.OK = true // retry still available
			pr.Detail += " (retrying once)"
		}
		r.record(PhaseVerifyPrereqs, pr)
	}

	err := fmt.Errorf("%w: %s", ErrPrereqUnsatisfied, strings.Join(prereqNames(unsatisfied), ", "))
	r.fail(PhaseVerifyPrereqs, err)
	return false
}

// checkPrereqs probes each declared prerequisite and returns the ones that
// need installing.
func (r *run) checkPrereqs(ctx context.Context) []catalog.Prereq {
	prober := r.engine.prober()
	var unsatisfied []catalog.Prereq
	for _, p := range r.spec.Prereqs {
		if prereqSatisfied(ctx, prober, p) {
			continue
		}
		unsatisfied = append(unsatisfied, p)
	}
	return unsatisfied
}

func prereqSatisfied(ctx context.Context, prober *probe.Prober, p catalog.Prereq) bool {
	if p.ProbeCmd == "" {
		// Library-only prerequisites have nothing to probe; the pre-seed
		// and the linkage healer own them.
		return true
	}
	res := prober.CommandLine(ctx, p.ProbeCmd)
	if res.State == probe.Absent {
		return false
	}
	if p.MinVersion == "" {
		return true
	}
	return version.Compare(res.RawOutput, p.MinVersion).Satisfies()
}

// installPrereqs installs the apt expansion of every unsatisfied
// prerequisite in one transaction.
func (r *run) installPrereqs(ctx context.Context, prereqs []catalog.Prereq, attempt int) {
	start := time.Now()
	pkgs := prereqPackages(prereqs, r.engine.overrides())

	pr := PhaseResult{OK: true}
	if len(pkgs) == 0 {
		pr.Detail = "no installable packages mapped; relying on re-probe"
	} else if !r.engine.Apt.Available() {
		pr.OK = false
		pr.Detail = "apt-get unavailable; cannot install prerequisites"
	} else if err := r.engine.Apt.Install(ctx, pkgs...); err != nil {
		pr.OK = false
		pr.Detail = err.Error()
		pr.Err = err
	} else {
		pr.Detail = fmt.Sprintf("installed %s", strings.Join(pkgs, ", "))
	}
	if attempt > 1 {
		pr.Detail = "retry: " + pr.Detail
	}
	pr.Duration = time.Since(start)
	r.record(PhaseInstallPrereqs, pr)
}

// verifyPrereqs re-probes and returns what is still unsatisfied.
func (r *run) verifyPrereqs(ctx context.Context, prereqs []catalog.Prereq) []catalog.Prereq {
	prober := r.engine.prober()
	var still []catalog.Prereq
	for _, p := range prereqs {
		if prereqSatisfied(ctx, prober, p) {
			continue
		}
		still = append(still, p)
	}
	return still
}

// checkExisting probes the live system. Returns proceed=false when the run
// reached a terminal state; satisfied=true for AlreadySatisfied.
func (r *run) checkExisting(ctx context.Context) (proceed, satisfied bool) {
	start := time.Now()
	res := r.engine.prober().CommandLine(ctx, r.spec.ValidateCmd)

	pr := PhaseResult{OK: true, Duration: time.Since(start)}
	switch {
	case r.opts.Force:
		pr.Detail = "forced reinstall requested"
	case res.State == probe.Absent:
		pr.Detail = "not installed"
	default:
		pr.Observed = probe.FirstLine(res.RawOutput)
		rel := version.Compare(res.RawOutput, r.spec.Version)
		pr.Detail = fmt.Sprintf("present (%s)", rel)
		if rel.Satisfies() {
			r.record(PhaseCheckExisting, pr)
			// Still validate: a matching banner alone is not trusted.
			if r.validate(ctx, true) {
				r.report.Status = StatusAlreadySatisfied
				return false, true
			}
			// Corrupted-but-present: fall through to a reinstall.
			r.log.Warn("existing install failed validation; reinstalling")
			return true, false
		}
	}
	r.record(PhaseCheckExisting, pr)
	return true, false
}

// install executes the strategy and the post-install linkage heal.
func (r *run) install(ctx context.Context, strat strategy.Strategy) bool {
	start := time.Now()
	out := strat.Install(ctx, r.spec)

	pr := PhaseResult{
		OK:       out.Level != strategy.Failure,
		Detail:   out.Detail,
		Fallback: out.Fallback,
		Warnings: out.Warnings,
		Duration: time.Since(start),
		Err:      out.Err,
	}

	if out.Level == strategy.Failure {
		r.record(PhaseInstall, pr)
		r.fail(PhaseInstall, out.Err)
		return false
	}

	if out.InstalledBinary != "" {
		pr.Warnings = append(pr.Warnings, r.healLinkage(ctx, out.InstalledBinary)...)
	}
	r.record(PhaseInstall, pr)
	return true
}

// healLinkage runs the one-shot shared-library remediation; anything still
// missing is a warning on the install phase, never a failure.
func (r *run) healLinkage(ctx context.Context, binary string) []string {
	healer := linkage.NewHealer(r.engine.Runner, r.engine.Caps, r.engine.Apt, printfLogger{r.engine.Log})
	healer.Overrides = r.engine.overrides()

	rep, err := healer.Heal(ctx, binary)
	if err != nil {
		return []string{fmt.Sprintf("linkage inspection failed: %v", err)}
	}
	switch rep.Outcome {
	case linkage.Healed:
		r.log.Info("healed missing libraries", "installed", strings.Join(rep.Installed, ","))
		return nil
	case linkage.StillMissing:
		return []string{fmt.Sprintf("libraries still missing after remediation: %s", strings.Join(rep.Missing, ", "))}
	default:
		return nil
	}
}

// overrides loads the user's soname override file; absence is fine.
func (e *Engine) overrides() map[string][]string {
	m, err := linkage.LoadOverrides(e.Layout.OverridesFile())
	if err != nil {
		e.logger().Warn("ignoring unreadable linkage overrides", "path", e.Layout.OverridesFile(), "err", err)
		return nil
	}
	return m
}

// validate runs the validation command and scores the result. final
// records the phase and terminal status; existing=true is the
// AlreadySatisfied pre-check which records but does not fail the run.
func (r *run) validate(ctx context.Context, existing bool) bool {
	start := time.Now()
	res := Validate(ctx, r.engine.prober(), r.spec)

	pr := PhaseResult{
		OK:       res.Passed,
		Detail:   res.Detail,
		Observed: res.Observed,
		Duration: time.Since(start),
	}
	r.record(PhaseValidate, pr)

	if res.Passed {
		if !existing {
			r.report.Status = StatusDone
		}
		return true
	}
	if !existing {
		r.fail(PhaseValidate, fmt.Errorf("%w: %s", ErrValidationFailed, res.Detail))
	}
	return false
}

func prereqNames(prereqs []catalog.Prereq) []string {
	names := make([]string, 0, len(prereqs))
	for _, p := range prereqs {
		names = append(names, p.Name)
	}
	return names
}

func prereqSummary(all, unsatisfied []catalog.Prereq) string {
	if len(all) == 0 {
		return "no prerequisites declared"
	}
	if len(unsatisfied) == 0 {
		return fmt.Sprintf("%d prerequisites satisfied", len(all))
	}
	return fmt.Sprintf("%d of %d prerequisites need installing: %s",
		len(unsatisfied), len(all), strings.Join(prereqNames(unsatisfied), ", "))
}

// prereqPackages expands prerequisites into the apt package set: declared
// packages, runtime expansions, and library names mapped through the
// linkage table.
func prereqPackages(prereqs []catalog.Prereq, overrides map[string][]string) []string {
	set := map[string]bool{}
	for _, p := range prereqs {
		for _, pkg := range p.Apt {
			set[pkg] = true
		}
		for _, pkg := range platform.RuntimePackages(p.Runtime) {
			set[pkg] = true
		}
		for _, lib := range p.Libs {
			if pkgs, ok := linkage.PackagesFor(lib, overrides); ok {
				for _, pkg := range pkgs {
					set[pkg] = true
				}
			}
		}
	}
	out := make([]string, 0, len(set))
	for pkg := range set {
		out = append(out, pkg)
	}
	sort.Strings(out)
	return out
}
