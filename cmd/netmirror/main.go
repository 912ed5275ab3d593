package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"pathworks.io/netmirror/pkg/applier"
	"pathworks.io/netmirror/pkg/buildinfo"
	"pathworks.io/netmirror/pkg/config"
	"pathworks.io/netmirror/pkg/flagparse"
	"pathworks.io/netmirror/pkg/lockfile"
	"pathworks.io/netmirror/pkg/metrics"
	"pathworks.io/netmirror/pkg/pathnorm"
	"pathworks.io/netmirror/pkg/planner"
	"pathworks.io/netmirror/pkg/plog"
	"pathworks.io/netmirror/pkg/preflight"
	"pathworks.io/netmirror/pkg/report"
	"pathworks.io/netmirror/pkg/runmeta"
)

// Exit codes. Scripts branch on these, so they are part of the interface.
const (
	exitOK         = 0
	exitFailure    = 1 // planning or copying failed mid-run
	exitConfig     = 2 // bad usage or configuration
	exitPermission = 3 // permission denied or destination locked
)

func main() {
	// Cancel the run context on interrupt so a Ctrl+C stops between items
	// instead of mid-copy.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		cancel()
	}()

	os.Exit(run(ctx, os.Args[1:]))
}

// run dispatches the parsed command and maps its outcome to an exit code.
func run(ctx context.Context, args []string) int {
	cmd, opts, err := flagparse.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flagparse.Usage(os.Stderr)
		return exitConfig
	}

	switch cmd {
	case flagparse.CommandVersion:
		fmt.Printf("%s version %s\n", buildinfo.Name, buildinfo.Version)
		return exitOK
	case flagparse.CommandInit:
		return exitCode(config.Generate(opts.Path, opts.Force))
	case flagparse.CommandPlan:
		return exitCode(runPlan(ctx, opts))
	case flagparse.CommandApply:
		return exitCode(runApply(ctx, opts))
	default:
		fmt.Fprintf(os.Stderr, "Error: internal error: unhandled command %v\n", cmd)
		return exitFailure
	}
}

// exitCode classifies an error into the exit code contract above.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	plog.Error(buildinfo.Name+" exited with error", "error", err)

	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return exitConfig
	}
	var lockErr *lockfile.ErrLockActive
	if errors.As(err, &lockErr) {
		return exitPermission
	}
	var copyErr *applier.CopyError
	if errors.As(err, &copyErr) && copyErr.Permission() {
		return exitPermission
	}
	return exitFailure
}

// loadAndPlan is the shared front half of plan and apply: load config, run
// the preflight checks, walk the source.
func loadAndPlan(ctx context.Context, opts flagparse.Options) (*config.Config, []planner.Item, error) {
	plog.SetLevel(plog.LevelFromString(opts.LogLevel))

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.LogSummary()

	if err := preflight.CheckNotNested(cfg.SourceDir, cfg.DestDir); err != nil {
		return nil, nil, &config.Error{Err: err}
	}

	p := planner.New(cfg.SourceDir, cfg.DestDir, cfg.Rules(), pathnorm.Native(), cfg.ModTimeWindow())
	items, err := p.Plan(ctx)
	if err != nil {
		return nil, nil, err
	}
	return cfg, items, nil
}

// emitPlan prints the plan and optionally exports it.
func emitPlan(cfg *config.Config, items []planner.Item, opts flagparse.Options) error {
	fmt.Print(report.FormatPlan(items, cfg.SourceDir, cfg.DestDir, opts.Compact))
	if opts.Out == "" {
		return nil
	}
	if err := report.WritePlanFile(opts.Out, cfg.SourceDir, cfg.DestDir, items); err != nil {
		return err
	}
	plog.Info("Plan exported", "path", opts.Out)
	return nil
}

func runPlan(ctx context.Context, opts flagparse.Options) error {
	cfg, items, err := loadAndPlan(ctx, opts)
	if err != nil {
		return err
	}
	return emitPlan(cfg, items, opts)
}

func runApply(ctx context.Context, opts flagparse.Options) error {
	cfg, items, err := loadAndPlan(ctx, opts)
	if err != nil {
		return err
	}
	if err := emitPlan(cfg, items, opts); err != nil {
		return err
	}

	if err := preflight.CheckDestWritable(cfg.DestDir, pathnorm.Native()); err != nil {
		return err
	}

	lock, err := lockfile.Acquire(ctx, cfg.DestDir, buildinfo.Name)
	if err != nil {
		return err
	}
	defer lock.Release()

	var m metrics.Metrics = &metrics.NoopMetrics{}
	var syncMetrics *metrics.SyncMetrics
	if opts.Metrics {
		syncMetrics = metrics.NewSyncMetrics()
		m = syncMetrics
	}

	m.StartProgress(ctx)
	a := applier.New(pathnorm.Native(), cfg.PreserveMtime, cfg.BufferSizeKB, m)
	applyErr := a.Apply(ctx, items)
	m.StopProgress()
	if applyErr != nil {
		return applyErr
	}
	m.LogSummary()

	summary := report.Summarize(items)
	meta := &runmeta.Content{
		Version:      buildinfo.Version,
		TimestampUTC: time.Now().UTC(),
		Source:       cfg.SourceDir,
		FilesAdded:   int64(summary.Add),
		FilesUpdated: int64(summary.Update),
		FilesSkipped: int64(summary.Skip),
	}
	if syncMetrics != nil {
		meta.BytesWritten = syncMetrics.BytesWritten()
	}
	// Metadata is a convenience record; a failure here must not fail a run
	// that already copied everything.
	if err := runmeta.Write(cfg.DestDir, meta); err != nil {
		plog.Warn("Failed to write run metadata", "error", err)
	}

	plog.Info(buildinfo.Name+" finished successfully.",
		"added", summary.Add, "updated", summary.Update, "skipped", summary.Skip)
	return nil
}
