//go:build !windows

package pathnorm

// nativeFSPath is the identity on platforms without path-length limits.
func nativeFSPath(abs string) string { return abs }

// Display returns the path unchanged on platforms without long-path prefixes.
func Display(p string) string { return p }
