// Package preflight validates a mirror job before any planning or copying
// happens. Failing here is cheap; failing mid-run is not.
package preflight

import (
	"fmt"
	"os"
	"strings"

	"pathworks.io/netmirror/pkg/pathnorm"
	"pathworks.io/netmirror/pkg/util"
)

// CheckNotNested rejects jobs whose roots overlap. Mirroring a tree into
// itself or into one of its own subdirectories would feed the run its own
// output.
func CheckNotNested(srcRoot, dstRoot string) error {
	src := pathnorm.Key(srcRoot)
	dst := pathnorm.Key(dstRoot)

	if src == dst {
		return fmt.Errorf("source and destination are the same directory: %s", srcRoot)
	}
	if strings.HasPrefix(dst, src+"/") {
		return fmt.Errorf("destination %s is inside source %s", dstRoot, srcRoot)
	}
	if strings.HasPrefix(src, dst+"/") {
		return fmt.Errorf("source %s is inside destination %s", srcRoot, dstRoot)
	}
	return nil
}

// CheckDestWritable ensures the destination root exists and can be written
// to. The platform-specific check is in canWrite.
func CheckDestWritable(dstRoot string, fsPath pathnorm.FSPath) error {
	if err := os.MkdirAll(fsPath(dstRoot), util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("could not create destination root %s: %w", dstRoot, err)
	}

	info, err := os.Stat(fsPath(dstRoot))
	if err != nil {
		return fmt.Errorf("could not stat destination root %s: %w", dstRoot, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("destination root %s is not a directory", dstRoot)
	}

	if err := canWrite(fsPath(dstRoot)); err != nil {
		return fmt.Errorf("destination root %s is not writable: %w", dstRoot, err)
	}
	return nil
}
