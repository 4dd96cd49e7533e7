package internal

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const HookMarker = "# cortex: managed post-commit hook"

const commitMessageMax = 120

// HookScript returns the shell shim installed as the git post-commit hook.
// The shim must never block or fail a commit; the real work happens in
// `cortex hook run`, which swallows its own errors.
func HookScript() string {
	return fmt.Sprintf("#!/bin/sh\n%s\ncortex hook run post-commit >/dev/null 2>&1 || true\n", HookMarker)
}

// IsManagedHook checks whether the given script content was written by us.
func IsManagedHook(content string) bool {
	return strings.Contains(content, HookMarker)
}

// FindGitDir walks up from dir looking for a .git directory.
func FindGitDir(dir string) (string, error) {
	for {
		gitDir := filepath.Join(dir, ".git")
		info, err := os.Stat(gitDir)
		if err == nil && info.IsDir() {
			return gitDir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a git repository (no .git found)")
		}
		dir = parent
	}
}

// InstallHook writes the managed post-commit shim. An existing unmanaged
// hook is preserved as .bak when force is set, refused otherwise.
func InstallHook(gitDir string, force bool) error {
	hooksDir := filepath.Join(gitDir, "hooks")
	if err := os.MkdirAll(hooksDir, 0755); err != nil {
		return fmt.Errorf("create hooks directory: %w", err)
	}

	hookPath := filepath.Join(hooksDir, "post-commit")
	existing, err := os.ReadFile(hookPath)
	if err == nil && !IsManagedHook(string(existing)) {
		if !force {
			return fmt.Errorf("hook already exists at %s (use --force to back it up and replace)", hookPath)
		}
		if err := os.WriteFile(hookPath+".bak", existing, 0755); err != nil {
			return fmt.Errorf("back up existing hook: %w", err)
		}
	}

	if err := os.WriteFile(hookPath, []byte(HookScript()), 0755); err != nil {
		return fmt.Errorf("write hook: %w", err)
	}
	return nil
}

// UninstallHook removes the managed shim and restores a .bak if present.
// Removing an unmanaged hook is refused.
func UninstallHook(gitDir string) error {
	hookPath := filepath.Join(gitDir, "hooks", "post-commit")

	content, err := os.ReadFile(hookPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read hook: %w", err)
	}
	if !IsManagedHook(string(content)) {
		return fmt.Errorf("hook at %s is not managed by cortex", hookPath)
	}

	if backup, err := os.ReadFile(hookPath + ".bak"); err == nil {
		if err := os.WriteFile(hookPath, backup, 0755); err != nil {
			return fmt.Errorf("restore backup hook: %w", err)
		}
		_ = os.Remove(hookPath + ".bak")
		return nil
	}

	if err := os.Remove(hookPath); err != nil {
		return fmt.Errorf("remove hook: %w", err)
	}
	return nil
}

// GatherCommitRecord builds the wire record for HEAD from the git CLI.
func GatherCommitRecord(ctx context.Context, root string) (*CommitRecord, error) {
	if !GitBinaryAvailable() {
		return nil, ErrNoGit
	}

	hash, err := gitIn(ctx, root, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("get commit hash: %w", err)
	}

	message, err := gitIn(ctx, root, "log", "-1", "--format=%s")
	if err != nil {
		return nil, fmt.Errorf("get commit message: %w", err)
	}
	if len(message) > commitMessageMax {
		message = message[:commitMessageMax]
	}

	branch, err := gitIn(ctx, root, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil || branch == "HEAD" {
		branch = DetachedMarker
	}

	files, insertions, deletions := commitNumstat(ctx, root)
	parents := commitParentCount(ctx, root)

	return &CommitRecord{
		Hash:       hash,
		Message:    message,
		Files:      strings.Join(files, ","),
		Insertions: insertions,
		Deletions:  deletions,
		Branch:     branch,
		Parents:    parents,
		Timestamp:  NowStamp(),
	}, nil
}

func commitNumstat(ctx context.Context, root string) (files []string, insertions, deletions int) {
	out, err := gitIn(ctx, root, "show", "--numstat", "--format=")
	if err != nil {
		return nil, 0, 0
	}

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		// Binary files report "-" for both counts.
		insertions += atoiSafe(fields[0])
		deletions += atoiSafe(fields[1])
		files = append(files, fields[2])
	}
	return files, insertions, deletions
}

func commitParentCount(ctx context.Context, root string) int {
	out, err := gitIn(ctx, root, "rev-list", "--parents", "-n1", "HEAD")
	if err != nil {
		return 0
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return 0
	}
	return len(fields) - 1
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func gitIn(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// RecordCommit appends the HEAD commit record to the commit log. Callers on
// the hook path treat the returned error as log-only; it must never block a
// commit.
func RecordCommit(ctx context.Context, ws Workspace) (*CommitRecord, error) {
	record, err := GatherCommitRecord(ctx, ws.Root)
	if err != nil {
		return nil, err
	}
	if _, err := AppendRecord(ws.CommitsLog(), record); err != nil {
		return nil, err
	}
	return record, nil
}
