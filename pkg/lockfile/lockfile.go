// Package lockfile guards a destination tree against concurrent apply runs.
// The applier assumes it is the only writer for the duration of a run; the
// lock file turns that assumption into an enforced invariant.
package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pathworks.io/netmirror/pkg/plog"
	"pathworks.io/netmirror/pkg/util"
)

// LockFileName is the name of the lock file created in the destination root.
// The '~' prefix marks it as temporary.
const LockFileName = ".~netmirror.lock"

// LockContent defines the structure of the data written to the lock file.
type LockContent struct {
	PID        int64     `json:"pid"`
	Hostname   string    `json:"hostname"`
	LastUpdate time.Time `json:"lastUpdate"`
	AppID      string    `json:"appID"`
}

// ErrLockActive is a structured error returned when a lock is already held by
// another process. The CLI maps it to the same exit class as permission
// failures, since both mean "the destination is not ours to write".
type ErrLockActive struct {
	PID       int64
	Hostname  string
	AppID     string
	TimeSince time.Duration
}

// Error implements the error interface for ErrLockActive.
func (e *ErrLockActive) Error() string {
	// Truncate for cleaner output, e.g., "3m2s" instead of "3m2.123456789s".
	return fmt.Sprintf("destination is locked, held by PID %d on host '%s' (App: %s), last updated %s ago",
		e.PID, e.Hostname, e.AppID, e.TimeSince.Truncate(time.Second))
}

// Lock manages the state of the acquired lock file.
type Lock struct {
	path    string
	content LockContent
	// The context and cancel function are used to stop the background heartbeat goroutine.
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	// We keep track if we actually hold the lock to prevent double release
	held bool
}

// These are vars to allow modification during testing.
var (
	heartbeatInterval = 1 * time.Minute
	// staleTimeout is defined in relation to the heartbeat to ensure a safe margin.
	staleTimeout = 3 * heartbeatInterval
)

// Acquire attempts to acquire the apply-phase lock inside dirPath.
// It returns a non-nil Lock on success.
// It returns (nil, *ErrLockActive) if the lock is already held.
// It returns (nil, error) for any other failure.
func Acquire(ctx context.Context, dirPath string, appID string) (*Lock, error) {
	absLockFilePath := filepath.Join(dirPath, LockFileName)
	// We will attempt to acquire multiple times in case of race conditions during cleanup
	maxAttempts := 3

	for i := 0; i < maxAttempts; i++ {
		// Check context cancellation
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// --- 1. Attempt Atomic Acquisition ---
		lock, err := tryAcquire(absLockFilePath, appID)
		if err == nil {
			go lock.heartbeat()
			return lock, nil
		}

		// If error is NOT "file exists", it's a real filesystem error (permissions, disk full, etc)
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to access lock file: %w", err)
		}

		// --- 2. Lock is Held, Check for Staleness ---
		content, readErr := readLockContentSafely(absLockFilePath)
		if readErr != nil {
			// The file might be mid-write; wait a moment and retry the loop.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		elapsed := time.Since(content.LastUpdate)
		if elapsed < staleTimeout {
			return nil, &ErrLockActive{
				PID:       content.PID,
				Hostname:  content.Hostname,
				AppID:     content.AppID,
				TimeSince: elapsed,
			}
		}

		// --- 3. Lock is Stale, Attempt Cleanup ---
		plog.Warn("Found stale lock, removing", "pid", content.PID, "age", elapsed)
		if removeErr := os.Remove(absLockFilePath); removeErr != nil {
			if !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("failed to remove stale lock: %w", removeErr)
			}
		}
		// Loop continues to tryAcquire again.
	}

	return nil, fmt.Errorf("failed to acquire lock after %d attempts (contention)", maxAttempts)
}

// tryAcquire attempts atomic creation using O_EXCL to guarantee "I created this file first".
func tryAcquire(absLockFilePath string, appID string) (*Lock, error) {
	// O_CREATE|O_EXCL guarantees we only succeed if file doesn't exist
	f, err := os.OpenFile(absLockFilePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, util.UserWritableFilePerms)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	hostname, err := os.Hostname()
	if err != nil {
		return nil, err
	}

	content := LockContent{
		PID:        int64(os.Getpid()),
		Hostname:   hostname,
		LastUpdate: time.Now().UTC(),
		AppID:      appID,
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Lock{
		path:    absLockFilePath,
		content: content,
		ctx:     ctx,
		cancel:  cancel,
		held:    true,
	}

	// Write initial data immediately.
	// If this fails, we must clean up the empty file we just created.
	if err := writeLockContent(f, content); err != nil {
		l.cleanup()
		return nil, err
	}

	return l, nil
}

// Release stops heartbeat and removes file.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return
	}

	l.cancel() // Stop heartbeat
	l.cleanup()
	l.held = false
}

func (l *Lock) cleanup() {
	if err := os.Remove(l.path); err != nil {
		// If file is already gone, that's fine.
		if !os.IsNotExist(err) {
			plog.Warn("Failed to remove lock file", "path", l.path, "error", err)
		}
	} else {
		plog.Debug("Lock released", "path", l.path)
	}
}

func (l *Lock) heartbeat() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			l.content.LastUpdate = time.Now().UTC()
			if err := updateLockFileAtomic(l.path, l.content); err != nil {
				plog.Warn("Heartbeat failed to update lock file", "error", err)
				// Note: We do not exit the loop. We try again next tick.
			}
		}
	}
}

// updateLockFileAtomic writes the content to a temporary file and then renames
// it over the target path. This ensures the file at 'path' is never
// empty or corrupt.
func updateLockFileAtomic(absLockFilePath string, content LockContent) error {
	dir := filepath.Dir(absLockFilePath)

	tmpF, err := os.CreateTemp(dir, filepath.Base(absLockFilePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp lock file: %w", err)
	}

	// Clean up the temp file if we error out before the rename. A successful
	// rename makes this a no-op.
	defer func() {
		if err := os.Remove(tmpF.Name()); err != nil && !os.IsNotExist(err) {
			plog.Warn("Failed to remove temporary lock file", "path", tmpF.Name(), "error", err)
		}
	}()

	if err := writeLockContent(tmpF, content); err != nil {
		tmpF.Close()
		return err
	}

	if err := tmpF.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpF.Name(), absLockFilePath); err != nil {
		return fmt.Errorf("failed to rename temp file to lock file: %w", err)
	}

	return nil
}

// writeLockContent marshals the LockContent and writes it to the provided io.Writer.
func writeLockContent(w io.Writer, content LockContent) error {
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lock content: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write lock content: %w", err)
	}
	return nil
}

// readLockContentSafely attempts to read the lock file, handling the race
// condition where the file exists but is currently being written (empty or
// partial content).
func readLockContentSafely(absLockFilePath string) (LockContent, error) {
	var lastErr error

	for i := 0; i < 3; i++ {
		data, err := os.ReadFile(absLockFilePath)
		if err != nil {
			return LockContent{}, err
		}

		if len(data) == 0 {
			lastErr = errors.New("lock file is empty")
			time.Sleep(50 * time.Millisecond)
			continue
		}

		var content LockContent
		if err := json.Unmarshal(data, &content); err != nil {
			lastErr = err
			time.Sleep(50 * time.Millisecond)
			continue
		}

		return content, nil
	}

	return LockContent{}, fmt.Errorf("failed to read valid lock content: %w", lastErr)
}
