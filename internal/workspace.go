package internal

import (
	"fmt"
	"os"
	"path/filepath"
)

const CortexDirName = ".cortex"

// Workspace locates every on-disk artifact for one project's memory store.
// All persistent state lives under Dir; nothing is shared across projects.
type Workspace struct {
	Root string // project root
	Dir  string // .cortex directory
}

func NewWorkspace(root string) Workspace {
	return Workspace{Root: root, Dir: filepath.Join(root, CortexDirName)}
}

func (w Workspace) CommitsLog() string    { return filepath.Join(w.Dir, "commits.jsonl") }
func (w Workspace) SessionsLog() string   { return filepath.Join(w.Dir, "sessions.jsonl") }
func (w Workspace) SnapshotsDir() string  { return filepath.Join(w.Dir, "snapshots") }
func (w Workspace) ContextPath() string   { return filepath.Join(w.Dir, "SESSION_CONTEXT.md") }
func (w Workspace) NotesPath() string     { return filepath.Join(w.Dir, "notes.md") }
func (w Workspace) EnrichmentsDir() string { return filepath.Join(w.Dir, "enrichments") }
func (w Workspace) DaemonPIDPath() string { return filepath.Join(w.Dir, "daemon.pid") }
func (w Workspace) DaemonLogPath() string { return filepath.Join(w.Dir, "daemon.log") }

func (w Workspace) Project() string {
	return filepath.Base(w.Root)
}

// Exists reports whether the store has been initialized.
func (w Workspace) Exists() bool {
	info, err := os.Stat(w.Dir)
	return err == nil && info.IsDir()
}

// Init creates the directory skeleton. Safe to call repeatedly.
func (w Workspace) Init() error {
	for _, dir := range []string{w.Dir, w.SnapshotsDir(), w.EnrichmentsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// EnvVars is the environment handed to external cortex-* commands.
func (w Workspace) EnvVars(version string) map[string]string {
	bin, _ := os.Executable()
	return map[string]string{
		"CORTEX_ROOT":    w.Root,
		"CORTEX_DIR":     w.Dir,
		"CORTEX_PROJECT": w.Project(),
		"CORTEX_VERSION": version,
		"CORTEX_BIN":     bin,
	}
}

// ResolveWorkspace walks up from dir looking for an existing .cortex
// directory, then for a .git directory. When neither is found the starting
// directory itself becomes the root, so read-only commands still work in a
// plain directory.
func ResolveWorkspace(dir string) (Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Workspace{}, fmt.Errorf("resolve %s: %w", dir, err)
	}

	if root, ok := findMarker(abs, CortexDirName); ok {
		return NewWorkspace(root), nil
	}
	if root, ok := findMarker(abs, ".git"); ok {
		return NewWorkspace(root), nil
	}
	return NewWorkspace(abs), nil
}

// CurrentWorkspace resolves from the process working directory.
func CurrentWorkspace() (Workspace, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Workspace{}, fmt.Errorf("get working directory: %w", err)
	}
	return ResolveWorkspace(cwd)
}

func findMarker(dir, marker string) (string, bool) {
	for {
		info, err := os.Stat(filepath.Join(dir, marker))
		if err == nil && info.IsDir() {
			return dir, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
