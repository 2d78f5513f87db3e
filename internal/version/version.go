// Package version exposes the build version of switchboard.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the current version, with whitespace trimmed
func Get() string {
	return strings.TrimSpace(versionContent)
}

// UserAgent is sent on outgoing calls to specialists.
func UserAgent() string {
	return "switchboard/" + Get()
}
