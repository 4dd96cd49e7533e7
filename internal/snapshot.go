package internal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const latestPointerFile = "latest"

// SnapshotStore captures and manages bundles describing uncommitted
// working-tree state: a metadata record, the raw diff, and the changed-file
// list, plus a plain-file "latest" pointer. Artifacts are written atomically;
// the pointer is only trusted after re-checking that its target still exists.
type SnapshotStore struct {
	dir  string
	tree WorkTree
}

func NewSnapshotStore(dir string, tree WorkTree) *SnapshotStore {
	return &SnapshotStore{dir: dir, tree: tree}
}

type CaptureResult struct {
	NoChanges bool
	ID        string
	FileCount int
	Summary   string
}

type SnapshotSummary struct {
	ID        string
	Timestamp string
	FileCount int
	Summary   string
}

type SearchMatch struct {
	ID      string
	Source  string // meta | diff | files
	Summary string
	Context []string
}

// NewSnapshotID builds a sortable id: capture time plus a short random tail.
func NewSnapshotID(now time.Time) string {
	return now.UTC().Format("20060102-150405") + "-" + uuid.NewString()[:8]
}

// Capture records the current uncommitted state. A clean tree is a no-op
// result, not an error, and creates no artifacts. The metadata record is
// written last so a crash mid-capture never leaves a listed-but-incomplete
// snapshot, and the latest pointer moves only after all three artifacts are
// on disk.
func (s *SnapshotStore) Capture(ctx context.Context, id, sessionID string) (*CaptureResult, error) {
	if s.tree == nil {
		return nil, ErrNoGit
	}

	diff, err := s.tree.Diff(ctx)
	if err != nil {
		return nil, fmt.Errorf("read working tree diff: %w", err)
	}
	files, err := s.tree.ChangedFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("read changed files: %w", err)
	}

	if len(files) == 0 {
		return &CaptureResult{NoChanges: true}, nil
	}

	if id == "" {
		id = NewSnapshotID(time.Now())
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("create snapshots dir: %w", err)
	}

	meta := SnapshotMeta{
		Timestamp:        NowStamp(),
		SessionID:        sessionID,
		UncommittedFiles: len(files),
		Summary:          summarizeFiles(files),
		DiffFile:         id + ".diff",
		FilesFile:        id + ".files",
	}

	if err := atomicWrite(filepath.Join(s.dir, meta.DiffFile), []byte(diff)); err != nil {
		return nil, err
	}
	if err := atomicWrite(filepath.Join(s.dir, meta.FilesFile), []byte(strings.Join(files, "\n")+"\n")); err != nil {
		return nil, err
	}

	metaData, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	if err := atomicWrite(s.metaPath(id), metaData); err != nil {
		return nil, err
	}

	if err := s.setLatest(id); err != nil {
		return nil, err
	}

	return &CaptureResult{
		ID:        id,
		FileCount: len(files),
		Summary:   meta.Summary,
	}, nil
}

func summarizeFiles(files []string) string {
	const shown = 3
	if len(files) <= shown {
		return strings.Join(files, ", ")
	}
	return fmt.Sprintf("%s +%d more", strings.Join(files[:shown], ", "), len(files)-shown)
}

// List returns snapshot summaries ordered by capture time, oldest first.
// The pointer artifact is not a snapshot and is excluded.
func (s *SnapshotStore) List() ([]SnapshotSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshots dir: %w", err)
	}

	var out []SnapshotSummary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		meta, err := s.readMeta(id)
		if err != nil {
			continue
		}
		out = append(out, SnapshotSummary{
			ID:        id,
			Timestamp: meta.Timestamp,
			FileCount: meta.UncommittedFiles,
			Summary:   meta.Summary,
		})
	}

	// Stamps have second resolution; ids are time-prefixed, so breaking
	// ties on id keeps captures from the same second in capture order.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Resolve maps "latest" through the pointer, re-checking existence: a stale
// pointer is absent, never an error about the pointer itself.
func (s *SnapshotStore) Resolve(idOrLatest string) (string, error) {
	id := idOrLatest
	if idOrLatest == "latest" {
		latest, ok := s.Latest()
		if !ok {
			return "", fmt.Errorf("latest: %w", ErrNotFound)
		}
		id = latest
	}

	if _, err := os.Stat(s.metaPath(id)); err != nil {
		return "", fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}
	return id, nil
}

func (s *SnapshotStore) Show(idOrLatest string) (string, *SnapshotMeta, error) {
	id, err := s.Resolve(idOrLatest)
	if err != nil {
		return "", nil, err
	}
	meta, err := s.readMeta(id)
	if err != nil {
		return "", nil, err
	}
	return id, meta, nil
}

// Diff streams the raw diff artifact.
func (s *SnapshotStore) Diff(idOrLatest string) (io.ReadCloser, error) {
	id, meta, err := s.Show(idOrLatest)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.dir, meta.DiffFile))
	if err != nil {
		return nil, fmt.Errorf("snapshot %s diff: %w", id, ErrNotFound)
	}
	return f, nil
}

func (s *SnapshotStore) diffText(id string) (string, error) {
	rc, err := s.Diff(id)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read diff artifact: %w", err)
	}
	return string(data), nil
}

// Restore applies the stored diff against the working tree. The patch is
// verified first; a conflict aborts with no partial application.
func (s *SnapshotStore) Restore(ctx context.Context, idOrLatest string) (string, error) {
	if s.tree == nil {
		return "", ErrNoGit
	}

	id, err := s.Resolve(idOrLatest)
	if err != nil {
		return "", err
	}
	patch, err := s.diffText(id)
	if err != nil {
		return "", err
	}

	if err := s.tree.Apply(ctx, patch, true); err != nil {
		return "", err
	}
	if err := s.tree.Apply(ctx, patch, false); err != nil {
		return "", err
	}
	return id, nil
}

// Branch creates a new branch and applies the snapshot onto it. Prerequisite
// failures before the apply roll the branch back; an apply conflict keeps
// the user on the new branch with the conflict reported rather than silently
// discarding their branch.
func (s *SnapshotStore) Branch(ctx context.Context, id, name string) error {
	if s.tree == nil {
		return ErrNoGit
	}
	if s.tree.BranchExists(name) {
		return fmt.Errorf("branch %s: %w", name, ErrAlreadyExists)
	}

	resolved, err := s.Resolve(id)
	if err != nil {
		return err
	}
	patch, err := s.diffText(resolved)
	if err != nil {
		return err
	}

	if err := s.tree.CreateBranch(ctx, name); err != nil {
		return err
	}

	if err := s.tree.Apply(ctx, patch, false); err != nil {
		if errors.Is(err, ErrApplyConflict) {
			return fmt.Errorf("branch %s created, apply failed: %w", name, err)
		}
		// Not a patch conflict: the branch serves no purpose, undo it.
		_ = s.tree.DeleteBranch(ctx, name)
		return err
	}
	return nil
}

// Search scans metadata, diff, and file-list artifacts case-insensitively,
// returning matches with a few lines of context from the match location.
func (s *SnapshotStore) Search(keyword string) ([]SearchMatch, error) {
	summaries, err := s.List()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(keyword)
	var matches []SearchMatch
	for _, sum := range summaries {
		meta, err := s.readMeta(sum.ID)
		if err != nil {
			continue
		}

		if strings.Contains(strings.ToLower(meta.Summary+" "+meta.SessionID), needle) {
			matches = append(matches, SearchMatch{
				ID: sum.ID, Source: "meta", Summary: meta.Summary,
				Context: []string{meta.Summary},
			})
			continue
		}

		for _, artifact := range []struct{ source, file string }{
			{"diff", meta.DiffFile},
			{"files", meta.FilesFile},
		} {
			ctxLines, ok := grepFile(filepath.Join(s.dir, artifact.file), needle)
			if ok {
				matches = append(matches, SearchMatch{
					ID: sum.ID, Source: artifact.source, Summary: meta.Summary,
					Context: ctxLines,
				})
				break
			}
		}
	}
	return matches, nil
}

func grepFile(path, lowerNeedle string) ([]string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var (
		window []string
		hit    = -1
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		window = append(window, line)
		if hit >= 0 && len(window) >= hit+2 {
			break
		}
		if hit < 0 && strings.Contains(strings.ToLower(line), lowerNeedle) {
			hit = len(window) - 1
		}
	}
	if hit < 0 {
		return nil, false
	}

	start := hit - 1
	if start < 0 {
		start = 0
	}
	end := hit + 2
	if end > len(window) {
		end = len(window)
	}
	return window[start:end], true
}

// Compare renders a line-level diff between the captured diffs of two
// snapshots, showing how uncommitted work drifted between captures.
func (s *SnapshotStore) Compare(idA, idB string) (string, error) {
	a, err := s.Resolve(idA)
	if err != nil {
		return "", err
	}
	b, err := s.Resolve(idB)
	if err != nil {
		return "", err
	}

	textA, err := s.diffText(a)
	if err != nil {
		return "", err
	}
	textB, err := s.diffText(b)
	if err != nil {
		return "", err
	}

	dmp := diffmatchpatch.New()
	chars1, chars2, lines := dmp.DiffLinesToChars(textA, textB)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(chars1, chars2, false), lines)

	var buf strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		default:
			continue
		}
		for _, line := range strings.Split(strings.TrimRight(d.Text, "\n"), "\n") {
			buf.WriteString(prefix)
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
	}
	return buf.String(), nil
}

// Undo deletes the snapshot the latest pointer references, then repoints it
// to the next most recent remaining snapshot, or clears it if none remain.
func (s *SnapshotStore) Undo() (removed, newLatest string, err error) {
	latest, ok := s.Latest()
	if !ok {
		return "", "", fmt.Errorf("latest: %w", ErrNotFound)
	}

	meta, err := s.readMeta(latest)
	if err != nil {
		return "", "", err
	}
	removeSnapshotArtifacts(s.dir, latest, *meta)

	remaining, err := s.List()
	if err != nil {
		return latest, "", err
	}
	if len(remaining) == 0 {
		_ = os.Remove(s.pointerPath())
		return latest, "", nil
	}

	next := remaining[len(remaining)-1].ID
	if err := s.setLatest(next); err != nil {
		return latest, "", err
	}
	return latest, next, nil
}

// Clear is a user-invoked retention sweep, independent of the daemon's
// scheduled compaction.
func (s *SnapshotStore) Clear(olderThanDays int) (CompactStats, error) {
	cutoff := Stamp(time.Now().AddDate(0, 0, -olderThanDays))
	return CompactSnapshots(s.dir, cutoff)
}

// Latest resolves the pointer, re-checking that the target still exists.
// Dangling resolves to absent.
func (s *SnapshotStore) Latest() (string, bool) {
	data, err := os.ReadFile(s.pointerPath())
	if err != nil {
		return "", false
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", false
	}
	if _, err := os.Stat(s.metaPath(id)); err != nil {
		return "", false
	}
	return id, true
}

func (s *SnapshotStore) setLatest(id string) error {
	return atomicWrite(s.pointerPath(), []byte(id+"\n"))
}

func (s *SnapshotStore) pointerPath() string {
	return filepath.Join(s.dir, latestPointerFile)
}

func (s *SnapshotStore) metaPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *SnapshotStore) readMeta(id string) (*SnapshotMeta, error) {
	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}
	var meta SnapshotMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("snapshot %s metadata: %w", id, err)
	}
	return &meta, nil
}
