// Package planner walks the source tree and classifies every entry into the
// action the mirror run would take. Planning never writes anything; the
// resulting item list is a complete, deterministic description of the run.
package planner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"pathworks.io/netmirror/pkg/exclusion"
	"pathworks.io/netmirror/pkg/pathnorm"
)

// Action is the classification of a single plan item.
type Action int

const (
	// ActionAdd copies a file that does not exist in the destination.
	ActionAdd Action = iota
	// ActionUpdate overwrites a destination file that differs from the source.
	ActionUpdate
	// ActionSkip leaves a destination file alone because it already matches.
	ActionSkip
	// ActionExclude withholds an entry because a filter matched or it could
	// not be examined.
	ActionExclude
)

var actionToString = map[Action]string{
	ActionAdd:     "ADD",
	ActionUpdate:  "UPDATE",
	ActionSkip:    "SKIP",
	ActionExclude: "EXCLUDE",
}

// String returns the plan output name of the action.
func (a Action) String() string {
	if s, ok := actionToString[a]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", int(a))
}

// Item is one classified entry of the plan.
type Item struct {
	Action Action
	// Rel is the source-root-relative path in forward-slash form, as shown
	// in plan output. Directories appear only as EXCLUDE items.
	Rel string
	// SourcePath and DestPath are the absolute paths. For an excluded
	// directory they denote the directory itself, never its descendants.
	SourcePath string
	DestPath   string
	// Reason explains the classification in the plan output.
	Reason string
}

// SourceNotFoundError is returned when the source root is missing, unreadable
// or not a directory. It is fatal: without a source there is no plan.
type SourceNotFoundError struct {
	Path string
	Err  error
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("source root %s: %v", e.Path, e.Err)
}

func (e *SourceNotFoundError) Unwrap() error {
	return e.Err
}

// Planner computes mirror plans for one source/destination pair.
type Planner struct {
	srcRoot       string
	dstRoot       string
	rules         exclusion.Rules
	fsPath        pathnorm.FSPath
	modTimeWindow time.Duration
}

// New creates a Planner. The roots must be absolute, cleaned paths; fsPath is
// applied to every path handed to the filesystem.
func New(srcRoot, dstRoot string, rules exclusion.Rules, fsPath pathnorm.FSPath, modTimeWindow time.Duration) *Planner {
	return &Planner{
		srcRoot:       srcRoot,
		dstRoot:       dstRoot,
		rules:         rules,
		fsPath:        fsPath,
		modTimeWindow: modTimeWindow,
	}
}

// Plan walks the source tree and returns the classified items in a
// deterministic order (lexicographic per directory, depth first).
func (p *Planner) Plan(ctx context.Context) ([]Item, error) {
	info, err := os.Stat(p.fsPath(p.srcRoot))
	if err != nil {
		return nil, &SourceNotFoundError{Path: p.srcRoot, Err: err}
	}
	if !info.IsDir() {
		return nil, &SourceNotFoundError{Path: p.srcRoot, Err: fmt.Errorf("not a directory")}
	}

	var items []Item
	if err := p.walk(ctx, ".", 0, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// walk processes one source directory. relDir is "." for the root.
func (p *Planner) walk(ctx context.Context, relDir string, depth int, items *[]Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	absDir := filepath.Join(p.srcRoot, relDir)
	entries, err := os.ReadDir(p.fsPath(absDir))
	if err != nil {
		if depth == 0 {
			// An unreadable root means there is nothing to plan against.
			return &SourceNotFoundError{Path: p.srcRoot, Err: err}
		}
		*items = append(*items, Item{
			Action:     ActionExclude,
			Rel:        filepath.ToSlash(relDir),
			SourcePath: absDir,
			DestPath:   filepath.Join(p.dstRoot, relDir),
			Reason:     fmt.Sprintf("unreadable: %v", err),
		})
		return nil
	}

	// os.ReadDir returns entries sorted by name, which makes the whole plan
	// deterministic without extra bookkeeping.
	var subdirs []string
	for _, entry := range entries {
		name := entry.Name()
		rel := name
		if relDir != "." {
			rel = filepath.Join(relDir, name)
		}

		if p.isDir(entry, rel) {
			switch {
			case depth == 0 && p.rules.IsRootOnlyName(name):
				*items = append(*items, p.excludeItem(rel, "root_dir"))
			case p.rules.IsRecursiveName(name):
				*items = append(*items, p.excludeItem(rel, "recursive_dir"))
			case p.rules.IsPrefixExcluded(pathnorm.Key(rel)):
				*items = append(*items, p.excludeItem(rel, "specific_path"))
			default:
				subdirs = append(subdirs, rel)
			}
			continue
		}

		if p.rules.IsFileExcluded(name) {
			*items = append(*items, p.excludeItem(rel, "pattern"))
			continue
		}

		*items = append(*items, p.classifyFile(rel))
	}

	for _, sub := range subdirs {
		if err := p.walk(ctx, sub, depth+1, items); err != nil {
			return err
		}
	}
	return nil
}

// isDir reports whether the entry should be walked as a directory. Symlinks
// are followed, so a link to a directory descends like the directory itself.
func (p *Planner) isDir(entry fs.DirEntry, rel string) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(p.fsPath(filepath.Join(p.srcRoot, rel)))
	return err == nil && info.IsDir()
}

func (p *Planner) excludeItem(rel, reason string) Item {
	return Item{
		Action:     ActionExclude,
		Rel:        filepath.ToSlash(rel),
		SourcePath: filepath.Join(p.srcRoot, rel),
		DestPath:   filepath.Join(p.dstRoot, rel),
		Reason:     reason,
	}
}

// classifyFile decides the action for a single non-excluded source file.
func (p *Planner) classifyFile(rel string) Item {
	item := Item{
		Rel:        filepath.ToSlash(rel),
		SourcePath: filepath.Join(p.srcRoot, rel),
		DestPath:   filepath.Join(p.dstRoot, rel),
	}

	srcInfo, err := os.Stat(p.fsPath(item.SourcePath))
	if err != nil {
		item.Action = ActionExclude
		item.Reason = fmt.Sprintf("unreadable: %v", err)
		return item
	}

	dstInfo, err := os.Stat(p.fsPath(item.DestPath))
	if err != nil {
		if os.IsNotExist(err) {
			item.Action = ActionAdd
			item.Reason = "missing"
			return item
		}
		// The destination entry exists but cannot be examined. Overwriting
		// it is the best effort at convergence.
		item.Action = ActionUpdate
		item.Reason = fmt.Sprintf("dst unreadable: %v", err)
		return item
	}

	sizeSame := srcInfo.Size() == dstInfo.Size()
	diff := srcInfo.ModTime().Sub(dstInfo.ModTime())
	if diff < 0 {
		diff = -diff
	}
	// The window is inclusive: a drift of exactly the window still counts
	// as unchanged. Network filesystems round mtimes.
	mtimeSame := diff <= p.modTimeWindow

	if sizeSame && mtimeSame {
		item.Action = ActionSkip
		item.Reason = "same size+mtime"
		return item
	}

	item.Action = ActionUpdate
	item.Reason = fmt.Sprintf("size %s, mtime %s", eqSign(sizeSame), eqSign(mtimeSame))
	return item
}

func eqSign(same bool) string {
	if same {
		return "="
	}
	return "≠"
}
