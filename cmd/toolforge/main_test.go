package main

import (
	"path/filepath"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"toolforge/internal/cli"
)

func TestMain(m *testing.M) {
	testscript.Main(m, map[string]func(){
		"toolforge": cli.Execute,
	})
}

func TestScript(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir:                 filepath.Join("testdata", "script"),
		RequireExplicitExec: true,
		Setup: func(e *testscript.Env) error {
			// Keep all state inside the script's temp dir.
			e.Vars = append(e.Vars, "TOOLFORGE_STATE_DIR="+filepath.Join(e.WorkDir, "state"))
			return nil
		},
	})
}
