package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// DetachedMarker is reported as the branch name when HEAD is not on a branch.
const DetachedMarker = "(detached)"

// WorkTree is what the snapshot store needs from version control. Reads come
// from go-git; Apply and CreateBranch are the only operations permitted to
// mutate the working tree and go through the git binary.
type WorkTree interface {
	Diff(ctx context.Context) (string, error)
	ChangedFiles(ctx context.Context) ([]string, error)
	Apply(ctx context.Context, patch string, checkOnly bool) error
	CreateBranch(ctx context.Context, name string) error
	DeleteBranch(ctx context.Context, name string) error
	BranchExists(name string) bool
}

// GitCollaborator is additionally what the context synthesizer reads.
type GitCollaborator interface {
	Branch() string
	UncommittedCount() int
	LastCommit() string
	RecentCommits(since time.Time, limit int) []CommitSummary
}

type CommitSummary struct {
	Hash    string
	Message string
	When    time.Time
}

// Repo wraps one project's git repository.
type Repo struct {
	root string
	repo *git.Repository
}

// OpenRepo opens the repository at root. ErrNoGit when root is not a git
// working tree; callers degrade the dependent operation instead of failing.
func OpenRepo(root string) (*Repo, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoGit, root)
	}
	return &Repo{root: root, repo: repo}, nil
}

// GitBinaryAvailable reports whether the git CLI is on PATH. Without it the
// tree-mutating operations become no-ops with a clean error.
func GitBinaryAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

func (r *Repo) Branch() string {
	head, err := r.repo.Head()
	if err != nil {
		return ""
	}
	if !head.Name().IsBranch() {
		return DetachedMarker
	}
	return head.Name().Short()
}

func (r *Repo) LastCommit() string {
	head, err := r.repo.Head()
	if err != nil {
		return ""
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return ""
	}

	msg := firstLine(commit.Message)
	age := time.Since(commit.Author.When).Round(time.Minute)
	return fmt.Sprintf("%s %s (%s ago)", head.Hash().String()[:8], msg, age)
}

func (r *Repo) UncommittedCount() int {
	files, err := r.porcelainFiles(context.Background())
	if err != nil {
		return r.statusCountGoGit()
	}
	return len(files)
}

func (r *Repo) statusCountGoGit() int {
	wt, err := r.repo.Worktree()
	if err != nil {
		return 0
	}
	status, err := wt.Status()
	if err != nil {
		return 0
	}
	count := 0
	for _, s := range status {
		if s.Worktree != git.Unmodified || s.Staging != git.Unmodified {
			count++
		}
	}
	return count
}

func (r *Repo) RecentCommits(since time.Time, limit int) []CommitSummary {
	iter, err := r.repo.Log(&git.LogOptions{})
	if err != nil {
		return nil
	}
	defer iter.Close()

	var out []CommitSummary
	_ = iter.ForEach(func(c *object.Commit) error {
		if !since.IsZero() && c.Author.When.Before(since) {
			return storer.ErrStop
		}
		out = append(out, CommitSummary{
			Hash:    c.Hash.String()[:8],
			Message: firstLine(c.Message),
			When:    c.Author.When,
		})
		if limit > 0 && len(out) >= limit {
			return storer.ErrStop
		}
		return nil
	})

	sort.Slice(out, func(i, j int) bool { return out[i].When.After(out[j].When) })
	return out
}

// WorkTree implementation

// Diff covers the whole dirty state: tracked changes against HEAD plus a
// new-file hunk for every untracked file, so the artifact restores files
// that have never been added.
func (r *Repo) Diff(ctx context.Context) (string, error) {
	out, err := r.gitOutput(ctx, "diff", "HEAD")
	if err != nil {
		// Repository without commits: fall back to the index diff.
		out, err = r.gitOutput(ctx, "diff")
		if err != nil {
			return "", err
		}
	}

	_, untracked, err := r.porcelainStatus(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(out)
	for _, path := range untracked {
		hunk, err := r.untrackedDiff(ctx, path)
		if err != nil {
			return "", err
		}
		b.WriteString(hunk)
	}
	return b.String(), nil
}

// untrackedDiff renders one untracked file as a new-file patch. git diff
// --no-index exits 1 whenever the inputs differ, which is the expected
// outcome here, not a failure.
func (r *Repo) untrackedDiff(ctx context.Context, path string) (string, error) {
	if !GitBinaryAvailable() {
		return "", ErrNoGit
	}
	cmd := exec.CommandContext(ctx, "git", "diff", "--no-index", "--", "/dev/null", path)
	cmd.Dir = r.root
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
			return "", fmt.Errorf("git diff --no-index %s: %w", path, err)
		}
	}
	return string(out), nil
}

func (r *Repo) ChangedFiles(ctx context.Context) ([]string, error) {
	out, err := r.porcelainFiles(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) porcelainFiles(ctx context.Context) ([]string, error) {
	files, _, err := r.porcelainStatus(ctx)
	return files, err
}

// porcelainStatus lists dirty paths. -u all expands untracked directories
// into their individual files so every untracked path can be diffed.
func (r *Repo) porcelainStatus(ctx context.Context) (files, untracked []string, err error) {
	out, err := r.gitOutput(ctx, "status", "--porcelain", "-uall")
	if err != nil {
		return nil, nil, err
	}

	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		// Rename entries read "old -> new"; only the new path exists.
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+len(" -> "):]
		}
		files = append(files, path)
		if strings.HasPrefix(line, "??") {
			untracked = append(untracked, path)
		}
	}
	return files, untracked, nil
}

// Apply runs the stored patch against the working tree. With checkOnly the
// tree is left untouched; a patch that does not apply cleanly surfaces as
// ErrApplyConflict either way, with no partial application.
func (r *Repo) Apply(ctx context.Context, patch string, checkOnly bool) error {
	if !GitBinaryAvailable() {
		return ErrNoGit
	}

	args := []string{"apply", "--whitespace=nowarn"}
	if checkOnly {
		args = append(args, "--check")
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.root
	cmd.Stdin = strings.NewReader(patch)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", ErrApplyConflict, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (r *Repo) BranchExists(name string) bool {
	_, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), false)
	return err == nil
}

func (r *Repo) CreateBranch(ctx context.Context, name string) error {
	if r.BranchExists(name) {
		return fmt.Errorf("branch %s: %w", name, ErrAlreadyExists)
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("get worktree: %w", err)
	}

	if err := wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
		Keep:   true,
	}); err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	return nil
}

func (r *Repo) DeleteBranch(ctx context.Context, name string) error {
	if err := r.repo.Storer.RemoveReference(plumbing.NewBranchReferenceName(name)); err != nil {
		return fmt.Errorf("delete branch %s: %w", name, err)
	}
	return nil
}

func (r *Repo) gitOutput(ctx context.Context, args ...string) (string, error) {
	if !GitBinaryAvailable() {
		return "", ErrNoGit
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.root
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return string(out), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
