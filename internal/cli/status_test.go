package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// absentCatalogYAML declares one tool whose command cannot exist on any
// PATH, so probes resolve deterministically without running anything.
const absentCatalogYAML = `version: 1
tools:
  - name: toolforge-testtool
    version: "1.2.3"
    strategy: apt
    validate_cmd: toolforge-testtool-e5a1 --version
    apt:
      packages: [toolforge-testtool]
`

func TestStatusCommandTableOutput(t *testing.T) {
	prevCatalog := catalogPath
	prevJSON := outputJSON
	defer func() {
		catalogPath = prevCatalog
		outputJSON = prevJSON
	}()

	t.Setenv("TOOLFORGE_STATE_DIR", t.TempDir())
	catalogPath = writeCatalogFile(t, absentCatalogYAML)
	outputJSON = false

	cmd := newStatusCmd()
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("status must not fail on an absent tool: %v", err)
	}

	got := stdout.String()
	if !strings.Contains(got, "TOOL") || !strings.Contains(got, "RELATION") {
		t.Fatalf("expected table headers, got %q", got)
	}
	if !strings.Contains(got, "toolforge-testtool") {
		t.Fatalf("expected tool row, got %q", got)
	}
	if !strings.Contains(got, "absent") {
		t.Fatalf("expected absent relation, got %q", got)
	}
}

func TestStatusCommandJSONOutput(t *testing.T) {
	prevCatalog := catalogPath
	prevJSON := outputJSON
	defer func() {
		catalogPath = prevCatalog
		outputJSON = prevJSON
	}()

	t.Setenv("TOOLFORGE_STATE_DIR", t.TempDir())
	catalogPath = writeCatalogFile(t, absentCatalogYAML)
	outputJSON = true

	cmd := newStatusCmd()
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("status command returned error: %v", err)
	}

	var rows []statusRow
	if err := json.Unmarshal(stdout.Bytes(), &rows); err != nil {
		t.Fatalf("unmarshal status json: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Tool != "toolforge-testtool" || rows[0].Relation != "absent" {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
	if rows[0].Required != "1.2.3" {
		t.Fatalf("expected required version in row, got %+v", rows[0])
	}
}

func TestStatusCommandUnknownTool(t *testing.T) {
	prevCatalog := catalogPath
	defer func() { catalogPath = prevCatalog }()

	t.Setenv("TOOLFORGE_STATE_DIR", t.TempDir())
	catalogPath = writeCatalogFile(t, absentCatalogYAML)

	cmd := newStatusCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"nope"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected an error for an unknown tool")
	}
	if !strings.Contains(err.Error(), "unknown tool") {
		t.Fatalf("expected unknown tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "toolforge-testtool") {
		t.Fatalf("error should name catalog tools, got %v", err)
	}
}
