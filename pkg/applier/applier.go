// Package applier executes a plan: it copies every ADD and UPDATE item into
// the destination tree. Copies go through a temp file and a rename, so a
// destination file is only ever absent, its old content, or its new content.
package applier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"pathworks.io/netmirror/pkg/metrics"
	"pathworks.io/netmirror/pkg/pathnorm"
	"pathworks.io/netmirror/pkg/planner"
	"pathworks.io/netmirror/pkg/plog"
	"pathworks.io/netmirror/pkg/pool"
	"pathworks.io/netmirror/pkg/util"
)

// TempSuffix is appended to the destination path while a copy is in flight.
const TempSuffix = ".part"

// CopyError reports the first item that failed to copy. The run aborts at
// that point; items after it are untouched.
type CopyError struct {
	Path string
	Err  error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copy %s: %v", e.Path, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// Permission reports whether the failure was a permission problem, which the
// CLI maps to its own exit code.
func (e *CopyError) Permission() bool {
	return errors.Is(e.Err, fs.ErrPermission)
}

// Applier copies plan items into the destination tree.
type Applier struct {
	fsPath        pathnorm.FSPath
	preserveMtime bool
	bufPool       *pool.FixedBufferPool
	metrics       metrics.Metrics
}

// New creates an Applier. bufferSizeKB sets the copy buffer size; m receives
// per-item counters and must not be nil (use metrics.NoopMetrics).
func New(fsPath pathnorm.FSPath, preserveMtime bool, bufferSizeKB int, m metrics.Metrics) *Applier {
	return &Applier{
		fsPath:        fsPath,
		preserveMtime: preserveMtime,
		bufPool:       pool.NewFixedBufferPool(bufferSizeKB * 1024),
		metrics:       m,
	}
}

// Apply copies every ADD and UPDATE item in plan order. It stops at the
// first failure and returns it as *CopyError; a cancelled context stops
// between items.
func (a *Applier) Apply(ctx context.Context, items []planner.Item) error {
	for _, item := range items {
		switch item.Action {
		case planner.ActionSkip:
			a.metrics.AddFilesSkipped(1)
			continue
		case planner.ActionExclude:
			a.metrics.AddFilesExcluded(1)
			continue
		case planner.ActionAdd, planner.ActionUpdate:
		default:
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		written, err := a.copyItem(item)
		if err != nil {
			return &CopyError{Path: item.SourcePath, Err: err}
		}

		a.metrics.AddBytesWritten(written)
		if item.Action == planner.ActionAdd {
			a.metrics.AddFilesAdded(1)
		} else {
			a.metrics.AddFilesUpdated(1)
		}
		plog.Debug("Copied", "action", item.Action, "path", item.Rel, "bytes", written)
	}
	return nil
}

// copyItem copies one file via temp file and rename. On any failure the temp
// file is removed, leaving the destination as it was.
func (a *Applier) copyItem(item planner.Item) (int64, error) {
	dstDir := filepath.Dir(item.DestPath)
	if err := os.MkdirAll(a.fsPath(dstDir), util.UserWritableDirPerms); err != nil {
		return 0, fmt.Errorf("could not create destination directory: %w", err)
	}

	src, err := os.Open(a.fsPath(item.SourcePath))
	if err != nil {
		return 0, fmt.Errorf("could not open source: %w", err)
	}
	defer src.Close()

	srcInfo, err := src.Stat()
	if err != nil {
		return 0, fmt.Errorf("could not stat source: %w", err)
	}

	tmpPath := a.fsPath(item.DestPath + TempSuffix)
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, util.UserWritableFilePerms)
	if err != nil {
		return 0, fmt.Errorf("could not create temp file: %w", err)
	}

	buf := a.bufPool.Get()
	written, err := io.CopyBuffer(tmp, src, *buf)
	a.bufPool.Put(buf)
	if err != nil {
		tmp.Close()
		a.removeTemp(tmpPath)
		return 0, fmt.Errorf("could not copy data: %w", err)
	}

	if err := tmp.Close(); err != nil {
		a.removeTemp(tmpPath)
		return 0, fmt.Errorf("could not close temp file: %w", err)
	}

	if a.preserveMtime {
		mtime := srcInfo.ModTime()
		if err := os.Chtimes(tmpPath, mtime, mtime); err != nil {
			a.removeTemp(tmpPath)
			return 0, fmt.Errorf("could not preserve modification time: %w", err)
		}
	}

	if err := os.Rename(tmpPath, a.fsPath(item.DestPath)); err != nil {
		a.removeTemp(tmpPath)
		return 0, fmt.Errorf("could not move temp file into place: %w", err)
	}

	return written, nil
}

// removeTemp is best effort; a leftover temp file is harmless but noisy.
func (a *Applier) removeTemp(tmpPath string) {
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		plog.Warn("Failed to remove temp file", "path", tmpPath, "error", err)
	}
}
