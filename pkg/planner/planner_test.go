package planner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"pathworks.io/netmirror/pkg/exclusion"
	"pathworks.io/netmirror/pkg/pathnorm"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directories for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
	return path
}

func findItem(t *testing.T, items []Item, rel string) Item {
	t.Helper()
	for _, it := range items {
		if it.Rel == rel {
			return it
		}
	}
	t.Fatalf("no plan item for %q in %v", rel, items)
	return Item{}
}

func plan(t *testing.T, src, dst string, rules exclusion.Rules, window time.Duration) []Item {
	t.Helper()
	items, err := New(src, dst, rules, pathnorm.Identity, window).Plan(context.Background())
	if err != nil {
		t.Fatalf("planning failed: %v", err)
	}
	return items
}

func TestPlanClassifications(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()

	writeFile(t, src, "new.txt", "fresh")
	writeFile(t, src, "changed.txt", "new content")
	changedDst := writeFile(t, dst, "changed.txt", "old")
	samePath := writeFile(t, src, "same.txt", "stable")
	sameDst := writeFile(t, dst, "same.txt", "stable")
	writeFile(t, src, "junk.tmp", "scratch")
	writeFile(t, src, "temp/inner.txt", "pruned")
	writeFile(t, src, ".git/config", "pruned")
	writeFile(t, src, "scripts/output/run.log", "pruned")
	writeFile(t, src, "docs/readme.md", "docs")

	// Align mtimes so "same.txt" is genuinely unchanged, and age the stale
	// copy of "changed.txt" past the comparison window.
	now := time.Now()
	for _, p := range []string{samePath, sameDst} {
		if err := os.Chtimes(p, now, now); err != nil {
			t.Fatal(err)
		}
	}
	stale := now.Add(-1 * time.Hour)
	if err := os.Chtimes(changedDst, stale, stale); err != nil {
		t.Fatal(err)
	}

	rules := exclusion.NewRules(
		[]string{"temp"},
		[]string{".git"},
		[]string{"scripts/output"},
		[]string{"*.tmp"},
	)
	items := plan(t, src, dst, rules, 2*time.Second)

	expect := map[string]struct {
		action Action
		reason string
	}{
		"new.txt":        {ActionAdd, "missing"},
		"changed.txt":    {ActionUpdate, "size ≠, mtime ≠"},
		"same.txt":       {ActionSkip, "same size+mtime"},
		"junk.tmp":       {ActionExclude, "pattern"},
		"temp":           {ActionExclude, "root_dir"},
		".git":           {ActionExclude, "recursive_dir"},
		"scripts/output": {ActionExclude, "specific_path"},
		"docs/readme.md": {ActionAdd, "missing"},
	}
	for rel, want := range expect {
		it := findItem(t, items, rel)
		if it.Action != want.action {
			t.Errorf("%s: action = %v; want %v", rel, it.Action, want.action)
		}
		if it.Reason != want.reason {
			t.Errorf("%s: reason = %q; want %q", rel, it.Reason, want.reason)
		}
	}

	// Excluded directories denote themselves in both trees.
	tempItem := findItem(t, items, "temp")
	if tempItem.SourcePath != filepath.Join(src, "temp") {
		t.Errorf("excluded dir source path = %q; want %q", tempItem.SourcePath, filepath.Join(src, "temp"))
	}
	if tempItem.DestPath != filepath.Join(dst, "temp") {
		t.Errorf("excluded dir dest path = %q; want %q", tempItem.DestPath, filepath.Join(dst, "temp"))
	}

	// Pruned subtrees must not surface their contents.
	for _, it := range items {
		for _, pruned := range []string{"temp/", ".git/", "scripts/output/"} {
			if strings.HasPrefix(it.Rel, pruned) {
				t.Errorf("pruned entry leaked into plan: %+v", it)
			}
		}
	}
	if len(items) != len(expect) {
		t.Errorf("expected %d plan items, got %d: %v", len(expect), len(items), items)
	}
}

func TestRootOnlyDoesNotPruneNested(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "temp/top.txt", "pruned")
	writeFile(t, src, "src/temp/kept.txt", "kept")

	rules := exclusion.NewRules([]string{"temp"}, nil, nil, nil)
	items := plan(t, src, dst, rules, 2*time.Second)

	top := findItem(t, items, "temp")
	if top.Action != ActionExclude || top.Reason != "root_dir" {
		t.Errorf("expected root-level temp to be excluded, got %+v", top)
	}

	kept := findItem(t, items, "src/temp/kept.txt")
	if kept.Action != ActionAdd {
		t.Errorf("nested temp directory must not be pruned, got %+v", kept)
	}
}

func TestModTimeWindow(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	srcPath := writeFile(t, src, "file.txt", "same size")
	dstPath := writeFile(t, dst, "file.txt", "same size")

	base := time.Now().Add(-1 * time.Hour)
	if err := os.Chtimes(srcPath, base, base); err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name  string
		drift time.Duration
		want  Action
	}{
		{"Exact Match", 0, ActionSkip},
		{"Within Window", 1 * time.Second, ActionSkip},
		{"At Window Boundary", 2 * time.Second, ActionSkip},
		{"Beyond Window", 3 * time.Second, ActionUpdate},
		{"Behind Beyond Window", -3 * time.Second, ActionUpdate},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			drifted := base.Add(tc.drift)
			if err := os.Chtimes(dstPath, drifted, drifted); err != nil {
				t.Fatal(err)
			}

			items := plan(t, src, dst, exclusion.NewRules(nil, nil, nil, nil), 2*time.Second)
			it := findItem(t, items, "file.txt")
			if it.Action != tc.want {
				t.Errorf("drift %v: action = %v; want %v", tc.drift, it.Action, tc.want)
			}
		})
	}
}

func TestSizeDiffersMtimeSame(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	srcPath := writeFile(t, src, "file.txt", "longer content")
	dstPath := writeFile(t, dst, "file.txt", "short")

	now := time.Now()
	for _, p := range []string{srcPath, dstPath} {
		if err := os.Chtimes(p, now, now); err != nil {
			t.Fatal(err)
		}
	}

	items := plan(t, src, dst, exclusion.NewRules(nil, nil, nil, nil), 2*time.Second)
	it := findItem(t, items, "file.txt")
	if it.Action != ActionUpdate {
		t.Fatalf("expected UPDATE, got %v", it.Action)
	}
	if it.Reason != "size ≠, mtime =" {
		t.Errorf("unexpected reason: %q", it.Reason)
	}
}

func TestUnreadableEntriesAbsorbedIntoPlan(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits do not restrict access on windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("permission checks are bypassed for root")
	}

	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "sub/file.txt", "data")
	writeFile(t, src, "closed/file.txt", "data")
	writeFile(t, src, "locked/file.txt", "data")
	writeFile(t, dst, "locked/file.txt", "stale")
	writeFile(t, src, "ok.txt", "data")

	chmod := func(path string, mode os.FileMode) {
		t.Helper()
		if err := os.Chmod(path, mode); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { os.Chmod(path, 0755) })
	}
	// Readable but not searchable: listing works, stat of children fails.
	chmod(filepath.Join(src, "sub"), 0644)
	chmod(filepath.Join(dst, "locked"), 0644)
	// Not readable at all: listing fails.
	chmod(filepath.Join(src, "closed"), 0300)

	items := plan(t, src, dst, exclusion.NewRules(nil, nil, nil, nil), 2*time.Second)

	srcFile := findItem(t, items, "sub/file.txt")
	if srcFile.Action != ActionExclude || !strings.HasPrefix(srcFile.Reason, "unreadable: ") {
		t.Errorf("unreadable source file: got %v (%q); want EXCLUDE with unreadable reason", srcFile.Action, srcFile.Reason)
	}

	closed := findItem(t, items, "closed")
	if closed.Action != ActionExclude || !strings.HasPrefix(closed.Reason, "unreadable: ") {
		t.Errorf("unreadable directory: got %v (%q); want EXCLUDE with unreadable reason", closed.Action, closed.Reason)
	}
	for _, it := range items {
		if strings.HasPrefix(it.Rel, "closed/") {
			t.Errorf("unreadable directory must not surface contents: %+v", it)
		}
	}

	locked := findItem(t, items, "locked/file.txt")
	if locked.Action != ActionUpdate || !strings.HasPrefix(locked.Reason, "dst unreadable: ") {
		t.Errorf("unstatable destination: got %v (%q); want UPDATE with dst unreadable reason", locked.Action, locked.Reason)
	}

	// Per-entry failures never abort the walk.
	if ok := findItem(t, items, "ok.txt"); ok.Action != ActionAdd {
		t.Errorf("healthy sibling: got %v; want ADD", ok.Action)
	}
}

func TestMissingSourceRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	_, err := New(missing, t.TempDir(), exclusion.NewRules(nil, nil, nil, nil), pathnorm.Identity, 0).Plan(context.Background())
	var notFound *SourceNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected *SourceNotFoundError, got %T: %v", err, err)
	}
	if notFound.Path != missing {
		t.Errorf("expected error to carry the root path, got %q", notFound.Path)
	}
}

func TestSourceRootIsFile(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "plain.txt", "not a dir")

	_, err := New(file, t.TempDir(), exclusion.NewRules(nil, nil, nil, nil), pathnorm.Identity, 0).Plan(context.Background())
	var notFound *SourceNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected *SourceNotFoundError, got %T: %v", err, err)
	}
}

func TestPlanIsDeterministic(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	for _, rel := range []string{"b.txt", "a.txt", "c/nested.txt", "a/nested.txt"} {
		writeFile(t, src, rel, rel)
	}

	first := plan(t, src, dst, exclusion.NewRules(nil, nil, nil, nil), 2*time.Second)
	second := plan(t, src, dst, exclusion.NewRules(nil, nil, nil, nil), 2*time.Second)

	if len(first) != len(second) {
		t.Fatalf("plan lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("plan order differs at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestPlanCancelledContext(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "file.txt", "data")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(src, t.TempDir(), exclusion.NewRules(nil, nil, nil, nil), pathnorm.Identity, 0).Plan(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSymlinkToDirectoryIsWalked(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "real/file.txt", "data")
	if err := os.Symlink(filepath.Join(src, "real"), filepath.Join(src, "linked")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	items := plan(t, src, dst, exclusion.NewRules(nil, nil, nil, nil), 2*time.Second)
	it := findItem(t, items, "linked/file.txt")
	if it.Action != ActionAdd {
		t.Errorf("expected file behind directory symlink to be planned, got %+v", it)
	}
}
