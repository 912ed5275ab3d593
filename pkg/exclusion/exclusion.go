// Package exclusion implements the filter rules that decide which parts of
// the source tree are withheld from a mirror run. The four filter layers are
// independent and additive: a path is excluded when any layer matches.
package exclusion

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"pathworks.io/netmirror/pkg/plog"
)

// Rules is the immutable set of exclusion filters for one mirror job.
// All matching is case-insensitive.
type Rules struct {
	// rootOnlyNames excludes a directory name only when it appears as an
	// immediate child of the source root.
	rootOnlyNames map[string]struct{}
	// recursiveNames excludes a directory name at any depth.
	recursiveNames map[string]struct{}
	// pathPrefixes excludes a specific root-relative directory and its
	// entire subtree. Stored in canonical key form (forward slashes,
	// lowercase).
	pathPrefixes []string
	// filePatterns excludes files whose bare name matches a glob pattern.
	filePatterns []string
}

// NewRules normalizes the raw filter lists into a Rules value. Path prefixes
// accept either separator on input and are stored in canonical key form.
func NewRules(rootOnlyNames, recursiveNames, pathPrefixes, filePatterns []string) Rules {
	r := Rules{
		rootOnlyNames:  make(map[string]struct{}, len(rootOnlyNames)),
		recursiveNames: make(map[string]struct{}, len(recursiveNames)),
		pathPrefixes:   make([]string, 0, len(pathPrefixes)),
		filePatterns:   make([]string, 0, len(filePatterns)),
	}
	for _, n := range rootOnlyNames {
		r.rootOnlyNames[strings.ToLower(n)] = struct{}{}
	}
	for _, n := range recursiveNames {
		r.recursiveNames[strings.ToLower(n)] = struct{}{}
	}
	for _, p := range pathPrefixes {
		if key := normalizePrefix(p); key != "" {
			r.pathPrefixes = append(r.pathPrefixes, key)
		}
	}
	for _, p := range filePatterns {
		r.filePatterns = append(r.filePatterns, strings.ToLower(p))
	}
	return r
}

// IsRootOnlyName reports whether the directory name is excluded by the
// root-only filter. Callers must only consult this for immediate children of
// the source root.
func (r Rules) IsRootOnlyName(name string) bool {
	_, ok := r.rootOnlyNames[strings.ToLower(name)]
	return ok
}

// IsRecursiveName reports whether the directory name is excluded at any depth.
func (r Rules) IsRecursiveName(name string) bool {
	_, ok := r.recursiveNames[strings.ToLower(name)]
	return ok
}

// IsPrefixExcluded reports whether the root-relative directory key (canonical
// form, as produced by pathnorm.Key) equals one of the configured path
// prefixes or is nested under one. The match respects segment boundaries:
// prefix "scripts/output" matches "scripts/output/logs" but never
// "scripts/output2".
func (r Rules) IsPrefixExcluded(relDirKey string) bool {
	for _, prefix := range r.pathPrefixes {
		if relDirKey == prefix || strings.HasPrefix(relDirKey, prefix+"/") {
			return true
		}
	}
	return false
}

// IsFileExcluded reports whether any file pattern matches the bare filename.
func (r Rules) IsFileExcluded(name string) bool {
	lowered := strings.ToLower(name)
	for _, pattern := range r.filePatterns {
		match, err := doublestar.Match(pattern, lowered)
		if err != nil {
			// Log the error for the invalid pattern but continue checking others.
			plog.Warn("Invalid exclusion pattern", "pattern", pattern, "error", err)
			continue
		}
		if match {
			return true
		}
	}
	return false
}

// ValidatePatterns reports the first invalid glob in a pattern list.
// It is used by configuration validation to fail fast instead of silently
// skipping bad patterns at match time.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return &InvalidPatternError{Pattern: p}
		}
	}
	return nil
}

// InvalidPatternError marks a glob pattern that cannot be compiled.
type InvalidPatternError struct {
	Pattern string
}

func (e *InvalidPatternError) Error() string {
	return "invalid glob pattern: " + e.Pattern
}

// normalizePrefix converts a configured path prefix into canonical key form.
// Both separators are accepted on input; trailing separators are dropped.
func normalizePrefix(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.Trim(p, "/")
	return strings.ToLower(p)
}
