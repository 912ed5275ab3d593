// Package metrics counts what a mirror run did. The planner and applier
// report through the Metrics interface so runs can be silent (Noop) or
// observable (Sync) without either caring which.
package metrics

import (
	"context"
	"sync/atomic"
	"time"

	"pathworks.io/netmirror/pkg/plog"
	"pathworks.io/netmirror/pkg/util"
)

// Metrics receives counters from the planning and apply phases.
type Metrics interface {
	AddFilesAdded(n int64)
	AddFilesUpdated(n int64)
	AddFilesSkipped(n int64)
	AddFilesExcluded(n int64)
	AddBytesWritten(n int64)

	// StartProgress begins periodic progress logging until the context is
	// cancelled or StopProgress is called.
	StartProgress(ctx context.Context)
	StopProgress()

	// LogSummary emits the final counters.
	LogSummary()
}

// Statically assert that both implementations satisfy the interface.
var _ Metrics = (*SyncMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)

// SyncMetrics is a concurrency-safe Metrics implementation backed by atomics.
type SyncMetrics struct {
	filesAdded    atomic.Int64
	filesUpdated  atomic.Int64
	filesSkipped  atomic.Int64
	filesExcluded atomic.Int64
	bytesWritten  atomic.Int64

	startTime    time.Time
	stopProgress context.CancelFunc
}

// NewSyncMetrics creates a SyncMetrics with the clock started.
func NewSyncMetrics() *SyncMetrics {
	return &SyncMetrics{startTime: time.Now()}
}

func (m *SyncMetrics) AddFilesAdded(n int64)    { m.filesAdded.Add(n) }
func (m *SyncMetrics) AddFilesUpdated(n int64)  { m.filesUpdated.Add(n) }
func (m *SyncMetrics) AddFilesSkipped(n int64)  { m.filesSkipped.Add(n) }
func (m *SyncMetrics) AddFilesExcluded(n int64) { m.filesExcluded.Add(n) }
func (m *SyncMetrics) AddBytesWritten(n int64)  { m.bytesWritten.Add(n) }

// FilesAdded returns the current added counter.
func (m *SyncMetrics) FilesAdded() int64 { return m.filesAdded.Load() }

// FilesUpdated returns the current updated counter.
func (m *SyncMetrics) FilesUpdated() int64 { return m.filesUpdated.Load() }

// FilesSkipped returns the current skipped counter.
func (m *SyncMetrics) FilesSkipped() int64 { return m.filesSkipped.Load() }

// FilesExcluded returns the current excluded counter.
func (m *SyncMetrics) FilesExcluded() int64 { return m.filesExcluded.Load() }

// BytesWritten returns the current byte counter.
func (m *SyncMetrics) BytesWritten() int64 { return m.bytesWritten.Load() }

// StartProgress logs the running counters every 30 seconds. Long runs over
// slow shares would otherwise look hung.
func (m *SyncMetrics) StartProgress(ctx context.Context) {
	progressCtx, cancel := context.WithCancel(ctx)
	m.stopProgress = cancel

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-progressCtx.Done():
				return
			case <-ticker.C:
				plog.Info("Progress",
					"added", m.filesAdded.Load(),
					"updated", m.filesUpdated.Load(),
					"skipped", m.filesSkipped.Load(),
					"written", util.ByteCountIEC(m.bytesWritten.Load()),
					"elapsed", time.Since(m.startTime).Truncate(time.Second),
				)
			}
		}
	}()
}

// StopProgress stops the progress logger if it is running.
func (m *SyncMetrics) StopProgress() {
	if m.stopProgress != nil {
		m.stopProgress()
		m.stopProgress = nil
	}
}

// LogSummary emits the final run counters.
func (m *SyncMetrics) LogSummary() {
	plog.Info("SUM",
		"added", m.filesAdded.Load(),
		"updated", m.filesUpdated.Load(),
		"skipped", m.filesSkipped.Load(),
		"excluded", m.filesExcluded.Load(),
		"written", util.ByteCountIEC(m.bytesWritten.Load()),
		"duration", time.Since(m.startTime).Truncate(time.Millisecond),
	)
}

// NoopMetrics is an implementation of the Metrics interface that performs no
// operations. It disables metrics collection without changing the callers.
type NoopMetrics struct{}

func (m *NoopMetrics) AddFilesAdded(n int64)           {}
func (m *NoopMetrics) AddFilesUpdated(n int64)         {}
func (m *NoopMetrics) AddFilesSkipped(n int64)         {}
func (m *NoopMetrics) AddFilesExcluded(n int64)        {}
func (m *NoopMetrics) AddBytesWritten(n int64)         {}
func (m *NoopMetrics) StartProgress(ctx context.Context) {}
func (m *NoopMetrics) StopProgress()                   {}
func (m *NoopMetrics) LogSummary()                     {}
