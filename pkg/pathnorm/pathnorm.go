// Package pathnorm provides the two path representations the planner and
// applier work with: a canonical comparable key for rule matching, and an
// opaque filesystem-call form that absorbs platform path-length quirks.
package pathnorm

import (
	"path/filepath"
	"strings"
)

// Key converts a relative path into the canonical, case-insensitive key used
// for all exclusion and prefix comparisons: forward slashes, lowercase.
func Key(rel string) string {
	return strings.ToLower(filepath.ToSlash(rel))
}

// FSPath converts an absolute path into the representation handed to the
// underlying filesystem calls. On Windows this applies the `\\?\` long-path
// prefix; elsewhere it is the identity. It is injected as a capability so
// the core stays testable on any platform.
type FSPath func(abs string) string

// Identity returns the path unchanged. It is the substitute used in tests.
func Identity(abs string) string { return abs }

// Native returns the FSPath implementation for the current platform.
func Native() FSPath { return nativeFSPath }
