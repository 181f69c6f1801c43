package catalog

import (
	"strings"
	"testing"
)

func findResult(results []ValidationResult, level, fragment string) bool {
	for _, r := range results {
		if r.Level == level && strings.Contains(r.Message, fragment) {
			return true
		}
	}
	return false
}

func TestValidateCleanCatalog(t *testing.T) {
	cat, err := Load(writeCatalog(t, sampleCatalog))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	results := cat.ValidateStrict()
	for _, r := range results {
		if r.Level == "error" {
			t.Fatalf("unexpected error: %s", r.Message)
		}
	}
}

func TestValidateDuplicateNames(t *testing.T) {
	cat := Catalog{Tools: []ToolSpec{
		{Name: "jq", Strategy: "apt", Apt: &AptSpec{Packages: []string{"jq"}}},
		{Name: "jq", Strategy: "apt", Apt: &AptSpec{Packages: []string{"jq"}}},
	}}
	cat.ApplyDefaults()
	if !findResult(cat.ValidateStrict(), "error", "declared more than once") {
		t.Fatal("duplicate name not flagged")
	}
}

func TestValidateUnknownStrategy(t *testing.T) {
	cat := Catalog{Tools: []ToolSpec{{Name: "x", Strategy: "teleport"}}}
	cat.ApplyDefaults()
	if !findResult(cat.ValidateStrict(), "error", `unknown strategy "teleport"`) {
		t.Fatal("unknown strategy not flagged")
	}
}

func TestValidateBinaryChecksum(t *testing.T) {
	cat := Catalog{Tools: []ToolSpec{{
		Name:     "sc",
		Strategy: "binary",
		Binary:   &BinarySpec{URL: "https://example.com/sc.tar.gz"},
	}}}
	cat.ApplyDefaults()
	if !findResult(cat.ValidateStrict(), "error", "requires a checksum") {
		t.Fatal("missing checksum not flagged")
	}

	// Explicit opt-out silences it.
	optOut := false
	cat.Tools[0].Binary.ChecksumRequired = &optOut
	if findResult(cat.ValidateStrict(), "error", "requires a checksum") {
		t.Fatal("opt-out still flagged")
	}
}

func TestValidateSourceNeedsPin(t *testing.T) {
	cat := Catalog{Tools: []ToolSpec{{
		Name:     "htop",
		Strategy: "source",
		Source:   &SourceSpec{Repo: "https://github.com/htop-dev/htop"},
	}}}
	cat.ApplyDefaults()
	if !findResult(cat.ValidateStrict(), "error", "pinned ref") {
		t.Fatal("unpinned source not flagged")
	}
}

func TestValidateBadVersionString(t *testing.T) {
	cat := Catalog{Tools: []ToolSpec{{
		Name:     "x",
		Version:  "not-a-version",
		Strategy: "apt",
		Apt:      &AptSpec{Packages: []string{"x"}},
	}}}
	cat.ApplyDefaults()
	if !findResult(cat.ValidateStrict(), "error", "neither a wildcard nor numeric") {
		t.Fatal("bad version string not flagged")
	}
}

func TestValidatePrereqWarnings(t *testing.T) {
	cat := Catalog{Tools: []ToolSpec{{
		Name:     "x",
		Strategy: "apt",
		Apt:      &AptSpec{Packages: []string{"x"}},
		Prereqs: []Prereq{
			{Name: "curl"},
			{Name: "py", Runtime: "cobol"},
			{Name: "ssl", MinVersion: "3.0", Apt: []string{"libssl-dev"}},
		},
	}}}
	cat.ApplyDefaults()
	results := cat.ValidateStrict()
	if !findResult(results, "warning", "no install action") {
		t.Fatal("actionless prereq not warned")
	}
	if !findResult(results, "error", `unknown runtime "cobol"`) {
		t.Fatal("unknown runtime not flagged")
	}
	if !findResult(results, "warning", "no probe_cmd to check it") {
		t.Fatal("unverifiable min_version not warned")
	}
}

func TestValidateJarChecksumWarning(t *testing.T) {
	cat := Catalog{Tools: []ToolSpec{{
		Name:     "bfg",
		Strategy: "jar",
		Jar:      &JarSpec{URL: "https://example.com/bfg.jar"},
	}}}
	cat.ApplyDefaults()
	if !findResult(cat.ValidateStrict(), "warning", "weak size checks") {
		t.Fatal("jar without checksum not warned")
	}
}
