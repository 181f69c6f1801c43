package cli

import (
	"fmt"
	"strings"

	"toolforge/internal/catalog"
	"toolforge/internal/execx"
	"toolforge/internal/installer"
	"toolforge/internal/logx"
	"toolforge/internal/paths"
	"toolforge/internal/platform"
	"toolforge/internal/probe"
)

// session bundles what a command needs: the loaded catalog, the resolved
// layout, and for mutating commands an engine plus its log file.
type session struct {
	layout  paths.Layout
	catalog catalog.Catalog
	engine  *installer.Engine
	logs    *logx.Handle
}

// newSession wires a read-only session: no engine, no scratch dir, no
// log file. Status and validate probe the host but never mutate it.
func newSession() (*session, error) {
	layout, err := paths.Resolve()
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Load(resolveCatalogPath())
	if err != nil {
		return nil, err
	}
	layout = applySettings(layout, cat.Settings)

	return &session{layout: layout, catalog: cat}, nil
}

// newRunSession adds the pieces mutating commands need: the state dir,
// a process log file, and the scratch work dir. Callers must defer
// s.close() so the work dir is removed on every exit path.
func newRunSession() (*session, error) {
	layout, err := paths.Resolve()
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Load(resolveCatalogPath())
	if err != nil {
		return nil, err
	}
	layout = applySettings(layout, cat.Settings)

	if err := layout.EnsureState(); err != nil {
		return nil, err
	}
	logs, err := logx.New(layout, verbose)
	if err != nil {
		return nil, err
	}

	// The engine copies the layout, so the work dir has to exist first.
	if err := layout.CreateWorkDir(); err != nil {
		logs.Close()
		return nil, err
	}

	engine := installer.New(platform.Detect(), layout, cat.Settings, logs.Logger)

	return &session{
		layout:  layout,
		catalog: cat,
		engine:  engine,
		logs:    logs,
	}, nil
}

func (s *session) close() {
	s.layout.RemoveWorkDir()
	if s.logs != nil {
		s.logs.Close()
	}
}

// prober returns a standalone prober for read-only commands.
func (s *session) prober() *probe.Prober {
	p := probe.New(execx.CmdRunner{})
	p.Timeout = s.catalog.Settings.ProbeTimeout()
	return p
}

func applySettings(layout paths.Layout, settings catalog.Settings) paths.Layout {
	if settings.InstallRoot != "" {
		layout.InstallRoot = settings.InstallRoot
	}
	if settings.OptRoot != "" {
		layout.OptRoot = settings.OptRoot
	}
	return layout
}

// resolveTools expands a command's positional argument into catalog
// specs: a tool name selects one, "all" or no argument selects the whole
// catalog in declaration order.
func resolveTools(cat catalog.Catalog, args []string) ([]catalog.ToolSpec, error) {
	if len(args) == 0 || args[0] == "all" {
		return cat.Tools, nil
	}

	spec, ok := cat.Tool(args[0])
	if !ok {
		return nil, fmt.Errorf("unknown tool %q (catalog has: %s)", args[0], strings.Join(cat.Names(), ", "))
	}
	return []catalog.ToolSpec{spec}, nil
}
