//go:build windows

package pathnorm

import "strings"

// nativeFSPath applies the `\\?\` long-path prefix so filesystem calls are
// not subject to MAX_PATH. UNC paths use the `\\?\UNC\server\share` form.
func nativeFSPath(abs string) string {
	if strings.HasPrefix(abs, `\\?\`) {
		return abs
	}
	if strings.HasPrefix(abs, `\\`) {
		return `\\?\UNC` + abs[1:]
	}
	return `\\?\` + abs
}

// Display strips the long-path prefix again for user-facing output.
func Display(p string) string {
	if strings.HasPrefix(p, `\\?\UNC\`) {
		return `\` + p[7:]
	}
	if strings.HasPrefix(p, `\\?\`) {
		return p[4:]
	}
	return p
}
