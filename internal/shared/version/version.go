// Package version carries the build version reported by the health endpoint.
package version

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Current is set at build time with -ldflags "-X .../version.Current=v1.2.3".
var Current = "dev"

// Normalize ensures version string has "v" prefix for semver compatibility.
// Examples: "1.2.3" -> "v1.2.3", "v1.2.3" -> "v1.2.3"
func Normalize(version string) string {
	if version == "" {
		return ""
	}
	version = strings.TrimSpace(version)
	if !strings.HasPrefix(version, "v") {
		return "v" + version
	}
	return version
}

// String returns the canonical form of Current, or Current unchanged when it
// is not a semantic version (e.g. "dev").
func String() string {
	v := Normalize(Current)
	if !semver.IsValid(v) {
		return Current
	}
	return semver.Canonical(v)
}
