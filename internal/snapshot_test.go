package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTree is an in-memory WorkTree for exercising the snapshot store
// without a real repository.
type fakeTree struct {
	diff     string
	files    []string
	branches map[string]bool

	applyErr    error
	appliedOnce bool
	created     []string
	deleted     []string
}

func newFakeTree(diff string, files ...string) *fakeTree {
	return &fakeTree{diff: diff, files: files, branches: map[string]bool{}}
}

func (f *fakeTree) Diff(context.Context) (string, error)           { return f.diff, nil }
func (f *fakeTree) ChangedFiles(context.Context) ([]string, error) { return f.files, nil }
func (f *fakeTree) BranchExists(name string) bool                  { return f.branches[name] }

func (f *fakeTree) Apply(_ context.Context, patch string, checkOnly bool) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	if !checkOnly {
		f.appliedOnce = true
	}
	return nil
}

func (f *fakeTree) CreateBranch(_ context.Context, name string) error {
	f.branches[name] = true
	f.created = append(f.created, name)
	return nil
}

func (f *fakeTree) DeleteBranch(_ context.Context, name string) error {
	delete(f.branches, name)
	f.deleted = append(f.deleted, name)
	return nil
}

func TestCaptureWritesBundle(t *testing.T) {
	dir := t.TempDir()
	tree := newFakeTree("diff --git a/main.go b/main.go\n+fmt.Println()\n", "main.go", "util.go")
	store := NewSnapshotStore(dir, tree)

	result, err := store.Capture(context.Background(), "", "sess1")
	require.NoError(t, err)
	assert.False(t, result.NoChanges)
	assert.Equal(t, 2, result.FileCount)
	assert.Equal(t, "main.go, util.go", result.Summary)
	require.NotEmpty(t, result.ID)

	for _, suffix := range []string{".json", ".diff", ".files"} {
		_, err := os.Stat(filepath.Join(dir, result.ID+suffix))
		assert.NoError(t, err, "artifact %s%s", result.ID, suffix)
	}

	latest, ok := store.Latest()
	require.True(t, ok)
	assert.Equal(t, result.ID, latest)
}

func TestCaptureCleanTreeNoOp(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(dir, newFakeTree(""))

	result, err := store.Capture(context.Background(), "", "sess1")
	require.NoError(t, err)
	assert.True(t, result.NoChanges)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "clean capture must not create artifacts")
}

func TestCaptureWithoutGit(t *testing.T) {
	store := NewSnapshotStore(t.TempDir(), nil)
	_, err := store.Capture(context.Background(), "", "sess1")
	assert.ErrorIs(t, err, ErrNoGit)
}

func TestCaptureSummaryTruncation(t *testing.T) {
	store := NewSnapshotStore(t.TempDir(), newFakeTree("x", "a.go", "b.go", "c.go", "d.go", "e.go"))

	result, err := store.Capture(context.Background(), "", "s")
	require.NoError(t, err)
	assert.Equal(t, "a.go, b.go, c.go +2 more", result.Summary)
}

func TestListOrderedByTime(t *testing.T) {
	dir := t.TempDir()
	writeSnapshotBundle(t, dir, "bbb-second", "2026-02-01T00:00:00Z")
	writeSnapshotBundle(t, dir, "aaa-first", "2026-01-01T00:00:00Z")
	store := NewSnapshotStore(dir, nil)

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "aaa-first", list[0].ID)
	assert.Equal(t, "bbb-second", list[1].ID)
}

func TestShowLatestMatchesShowByID(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(dir, newFakeTree("some diff\n", "main.go"))

	result, err := store.Capture(context.Background(), "", "s1")
	require.NoError(t, err)

	byLatest, metaLatest, err := store.Show("latest")
	require.NoError(t, err)
	byID, metaID, err := store.Show(result.ID)
	require.NoError(t, err)

	assert.Equal(t, byID, byLatest)
	assert.Equal(t, metaID, metaLatest)
}

func TestResolveUnknown(t *testing.T) {
	store := NewSnapshotStore(t.TempDir(), nil)
	_, err := store.Resolve("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveDanglingLatestPointer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "latest"), []byte("gone\n"), 0644))
	store := NewSnapshotStore(dir, nil)

	_, err := store.Resolve("latest")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiffStreamsArtifact(t *testing.T) {
	dir := t.TempDir()
	tree := newFakeTree("the captured diff\n", "main.go")
	store := NewSnapshotStore(dir, tree)

	result, err := store.Capture(context.Background(), "", "s1")
	require.NoError(t, err)

	text, err := store.diffText(result.ID)
	require.NoError(t, err)
	assert.Equal(t, "the captured diff\n", text)
}

func TestRestoreChecksBeforeApplying(t *testing.T) {
	dir := t.TempDir()
	tree := newFakeTree("patch\n", "main.go")
	store := NewSnapshotStore(dir, tree)

	result, err := store.Capture(context.Background(), "", "s1")
	require.NoError(t, err)

	id, err := store.Restore(context.Background(), "latest")
	require.NoError(t, err)
	assert.Equal(t, result.ID, id)
	assert.True(t, tree.appliedOnce)
}

func TestRestoreConflictLeavesTreeUntouched(t *testing.T) {
	dir := t.TempDir()
	tree := newFakeTree("patch\n", "main.go")
	store := NewSnapshotStore(dir, tree)

	_, err := store.Capture(context.Background(), "", "s1")
	require.NoError(t, err)

	tree.applyErr = fmt.Errorf("%w: hunk failed", ErrApplyConflict)
	_, err = store.Restore(context.Background(), "latest")
	assert.ErrorIs(t, err, ErrApplyConflict)
	assert.False(t, tree.appliedOnce)
}

func TestBranchAppliesSnapshot(t *testing.T) {
	dir := t.TempDir()
	tree := newFakeTree("patch\n", "main.go")
	store := NewSnapshotStore(dir, tree)

	result, err := store.Capture(context.Background(), "", "s1")
	require.NoError(t, err)

	require.NoError(t, store.Branch(context.Background(), result.ID, "feature/x"))
	assert.True(t, tree.branches["feature/x"])
	assert.True(t, tree.appliedOnce)
}

func TestBranchExistsRejected(t *testing.T) {
	tree := newFakeTree("patch\n", "main.go")
	tree.branches["taken"] = true
	store := NewSnapshotStore(t.TempDir(), tree)

	err := store.Branch(context.Background(), "latest", "taken")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestBranchConflictKeepsBranch(t *testing.T) {
	dir := t.TempDir()
	tree := newFakeTree("patch\n", "main.go")
	store := NewSnapshotStore(dir, tree)

	result, err := store.Capture(context.Background(), "", "s1")
	require.NoError(t, err)

	tree.applyErr = fmt.Errorf("%w: hunk failed", ErrApplyConflict)
	err = store.Branch(context.Background(), result.ID, "feature/x")
	assert.ErrorIs(t, err, ErrApplyConflict)
	assert.True(t, tree.branches["feature/x"], "conflicted branch stays for manual resolution")
	assert.Empty(t, tree.deleted)
}

func TestBranchOtherFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	tree := newFakeTree("patch\n", "main.go")
	store := NewSnapshotStore(dir, tree)

	result, err := store.Capture(context.Background(), "", "s1")
	require.NoError(t, err)

	tree.applyErr = errors.New("disk full")
	err = store.Branch(context.Background(), result.ID, "feature/x")
	require.Error(t, err)
	assert.False(t, tree.branches["feature/x"])
	assert.Equal(t, []string{"feature/x"}, tree.deleted)
}

func TestSearchAcrossArtifacts(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(dir, nil)
	writeSnapshotBundle(t, dir, "snap-a", "2026-01-01T00:00:00Z")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "snap-a.diff"),
		[]byte("diff --git a/auth.go b/auth.go\n+func ValidateToken() {}\n"), 0644))

	matches, err := store.Search("validatetoken")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "snap-a", matches[0].ID)
	assert.Equal(t, "diff", matches[0].Source)
	require.NotEmpty(t, matches[0].Context)
	assert.Contains(t, strings.Join(matches[0].Context, "\n"), "ValidateToken")
}

func TestSearchMetaBeforeDiff(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(dir, nil)
	writeSnapshotBundle(t, dir, "snap-a", "2026-01-01T00:00:00Z")

	matches, err := store.Search("MAIN.GO")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "meta", matches[0].Source)
}

func TestSearchNoMatch(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(dir, nil)
	writeSnapshotBundle(t, dir, "snap-a", "2026-01-01T00:00:00Z")

	matches, err := store.Search("nonexistent-keyword")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestCompareShowsDrift(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(dir, nil)
	writeSnapshotBundle(t, dir, "snap-a", "2026-01-01T00:00:00Z")
	writeSnapshotBundle(t, dir, "snap-b", "2026-01-02T00:00:00Z")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "snap-a.diff"),
		[]byte("shared line\nremoved line\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snap-b.diff"),
		[]byte("shared line\nadded line\n"), 0644))

	out, err := store.Compare("snap-a", "snap-b")
	require.NoError(t, err)
	assert.Contains(t, out, "- removed line")
	assert.Contains(t, out, "+ added line")
	assert.NotContains(t, out, "shared line")
}

func TestUndoRepointsLatest(t *testing.T) {
	dir := t.TempDir()
	tree := newFakeTree("first diff\n", "a.go")
	store := NewSnapshotStore(dir, tree)

	first, err := store.Capture(context.Background(), NewSnapshotID(time.Now().Add(-time.Minute)), "s1")
	require.NoError(t, err)
	second, err := store.Capture(context.Background(), "", "s1")
	require.NoError(t, err)

	removed, newLatest, err := store.Undo()
	require.NoError(t, err)
	assert.Equal(t, second.ID, removed)
	assert.Equal(t, first.ID, newLatest)

	latest, ok := store.Latest()
	require.True(t, ok)
	assert.Equal(t, first.ID, latest)
}

func TestUndoSameSecondBreaksTieOnID(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(dir, nil)
	stamp := "2026-01-01T00:00:00Z"
	writeSnapshotBundle(t, dir, "20260101-000000-aaaa", stamp)
	writeSnapshotBundle(t, dir, "20260101-000000-bbbb", stamp)
	writeSnapshotBundle(t, dir, "20260101-000000-cccc", stamp)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "latest"), []byte("20260101-000000-cccc\n"), 0644))

	removed, newLatest, err := store.Undo()
	require.NoError(t, err)
	assert.Equal(t, "20260101-000000-cccc", removed)
	assert.Equal(t, "20260101-000000-bbbb", newLatest)
}

func TestUndoLastSnapshotClearsPointer(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(dir, newFakeTree("diff\n", "a.go"))

	result, err := store.Capture(context.Background(), "", "s1")
	require.NoError(t, err)

	removed, newLatest, err := store.Undo()
	require.NoError(t, err)
	assert.Equal(t, result.ID, removed)
	assert.Empty(t, newLatest)

	_, ok := store.Latest()
	assert.False(t, ok)
}

func TestUndoNothingToUndo(t *testing.T) {
	store := NewSnapshotStore(t.TempDir(), nil)
	_, _, err := store.Undo()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClearSweepsOldSnapshots(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(dir, nil)
	writeSnapshotBundle(t, dir, "ancient", "2020-01-01T00:00:00Z")
	writeSnapshotBundle(t, dir, "recent", NowStamp())

	stats, err := store.Clear(7)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SnapshotsRemoved)

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "recent", list[0].ID)
}

func TestNewSnapshotIDSortable(t *testing.T) {
	early := NewSnapshotID(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	late := NewSnapshotID(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.Less(t, early, late)
	assert.Len(t, strings.Split(early, "-"), 3)
}
