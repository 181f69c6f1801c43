// Package version relates observed tool versions to required ones.
//
// Observed strings are usually whole banner lines ("R version 4.4.2
// (2024-10-31)", "jq-1.7.1"); requirements are catalog strings which may be
// exact ("1.7.1"), partial ("1.7"), or the wildcards "latest"/"any".
package version

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Relation describes how an observed version relates to a requirement.
type Relation int

const (
	Match Relation = iota
	Newer
	Older
	Incomparable
)

func (r Relation) String() string {
	switch r {
	case Match:
		return "match"
	case Newer:
		return "newer"
	case Older:
		return "older"
	default:
		return "incomparable"
	}
}

// Satisfies reports whether the relation is acceptable when deciding if an
// install can be skipped or has succeeded: the exact version or anything
// newer counts.
func (r Relation) Satisfies() bool {
	return r == Match || r == Newer
}

// Wildcard reports whether required accepts any installed version.
func Wildcard(required string) bool {
	switch strings.ToLower(strings.TrimSpace(required)) {
	case "", "latest", "any":
		return true
	}
	return false
}

var (
	dottedToken = regexp.MustCompile(`\d+(?:\.\d+)+(?:-[0-9A-Za-z][0-9A-Za-z.]*)?`)
	bareNumber  = regexp.MustCompile(`\d+`)
)

// Extract pulls the most version-looking token out of a banner line.
// Dotted tokens win over bare numbers so "v2 engine 1.4.0" yields "1.4.0",
// not "2". Returns "" when nothing numeric is present.
func Extract(banner string) string {
	if tok := dottedToken.FindString(banner); tok != "" {
		return tok
	}
	return bareNumber.FindString(banner)
}

// Compare relates an observed version string to a required one.
//
// Wildcard requirements match any non-empty observation. Otherwise both
// sides are reduced to numeric tokens and compared component by component
// with missing components treated as zero, so "3.8" equals "3.8.0". When
// either side has no numeric token the comparison falls back to substring
// containment of the requirement in the observation.
func Compare(observed, required string) Relation {
	observed = strings.TrimSpace(observed)
	required = strings.TrimSpace(required)

	if Wildcard(required) {
		if observed == "" {
			return Incomparable
		}
		return Match
	}
	if observed == "" {
		return Incomparable
	}

	obsTok := Extract(observed)
	reqTok := Extract(required)
	if obsTok != "" && reqTok != "" {
		if rel, ok := compareTokens(obsTok, reqTok); ok {
			return rel
		}
	}

	if strings.Contains(observed, required) {
		return Match
	}
	return Incomparable
}

// compareTokens compares two numeric tokens, preferring semver semantics
// (prerelease ordering, partial versions) and falling back to plain
// component comparison for shapes semver rejects, e.g. "1.2.3.4".
func compareTokens(observed, required string) (Relation, bool) {
	ov, oerr := semver.NewVersion(observed)
	rv, rerr := semver.NewVersion(required)
	if oerr == nil && rerr == nil {
		switch ov.Compare(rv) {
		case 0:
			return Match, true
		case 1:
			return Newer, true
		default:
			return Older, true
		}
	}
	return compareComponents(observed, required)
}

func compareComponents(observed, required string) (Relation, bool) {
	obs, ok := numericComponents(observed)
	if !ok {
		return Incomparable, false
	}
	req, ok := numericComponents(required)
	if !ok {
		return Incomparable, false
	}

	n := len(obs)
	if len(req) > n {
		n = len(req)
	}
	for i := 0; i < n; i++ {
		var o, r int
		if i < len(obs) {
			o = obs[i]
		}
		if i < len(req) {
			r = req[i]
		}
		if o > r {
			return Newer, true
		}
		if o < r {
			return Older, true
		}
	}
	return Match, true
}

func numericComponents(token string) ([]int, bool) {
	// Drop any prerelease suffix; plain component compare has no ordering
	// rules for it.
	if i := strings.IndexByte(token, '-'); i >= 0 {
		token = token[:i]
	}
	parts := strings.Split(token, ".")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		out = append(out, n)
	}
	return out, len(out) > 0
}
