package linkage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tailscale/hujson"
)

// defaultPackages maps soname bases (and the human-readable library names
// catalogs use) to the Debian packages that provide them. The heal pass
// and the pre-seed aggregation both normalize through this table.
var defaultPackages = map[string][]string{
	"libssl":        {"libssl-dev"},
	"libcrypto":     {"libssl-dev"},
	"libcurl":       {"libcurl4", "libcurl4-openssl-dev"},
	"libpq":         {"libpq-dev"},
	"libz":          {"zlib1g-dev"},
	"zlib":          {"zlib1g-dev"},
	"libxml2":       {"libxml2-dev"},
	"libxslt":       {"libxslt1-dev"},
	"libffi":        {"libffi-dev"},
	"libpng":        {"libpng-dev"},
	"libpng16":      {"libpng-dev"},
	"libjpeg":       {"libjpeg-dev"},
	"libtiff":       {"libtiff5-dev"},
	"libfreetype":   {"libfreetype6-dev"},
	"libfontconfig": {"libfontconfig1-dev"},
	"libharfbuzz":   {"libharfbuzz-dev"},
	"libfribidi":    {"libfribidi-dev"},
	"libkrb5":       {"libkrb5-dev"},
	"libsasl2":      {"libsasl2-dev"},
	"libgdal":       {"gdal-bin", "libgdal-dev"},
	"libnetcdf":     {"libnetcdf-dev"},
}

// SonameBase strips the ".so" suffix chain: "libssl.so.3" -> "libssl".
func SonameBase(soname string) string {
	if i := strings.Index(soname, ".so"); i >= 0 {
		return soname[:i]
	}
	return soname
}

// PackagesFor resolves a missing soname (or a bare library name) to apt
// packages. overrides win over the built-in table. The libboost family is
// matched by prefix because its sonames carry component names.
func PackagesFor(soname string, overrides map[string][]string) ([]string, bool) {
	base := strings.ToLower(SonameBase(strings.TrimSpace(soname)))
	if base == "" {
		return nil, false
	}
	if pkgs, ok := overrides[base]; ok {
		return append([]string(nil), pkgs...), len(pkgs) > 0
	}
	if pkgs, ok := defaultPackages[base]; ok {
		return append([]string(nil), pkgs...), true
	}
	if strings.HasPrefix(base, "libboost") {
		return []string{"libboost-all-dev"}, true
	}
	return nil, false
}

// LoadOverrides reads the optional user-edited soname map. The file is
// JSONC (comments and trailing commas allowed) shaped as
// {"libfoo": ["libfoo-dev"]}. A missing file is not an error.
func LoadOverrides(path string) (map[string][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read overrides: %w", err)
	}

	std, err := hujson.Standardize(raw)
	if err != nil {
		return nil, fmt.Errorf("parse overrides %s: %w", path, err)
	}

	var overrides map[string][]string
	if err := json.Unmarshal(std, &overrides); err != nil {
		return nil, fmt.Errorf("decode overrides %s: %w", path, err)
	}

	normalized := make(map[string][]string, len(overrides))
	for name, pkgs := range overrides {
		normalized[strings.ToLower(SonameBase(name))] = pkgs
	}
	return normalized, nil
}
