package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/cortexhq/cortex/internal"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	ctx := context.Background()

	if tryExternalCommand(ctx) {
		return
	}

	cfg, err := internal.LoadConfig(internal.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "cortex: %v\n", err)
		os.Exit(1)
	}

	rootCmd := NewRootCmd(version, newApp(cfg))
	if err := fang.Execute(ctx, rootCmd); err != nil {
		os.Exit(1)
	}
}

func tryExternalCommand(ctx context.Context) bool {
	if len(os.Args) < 2 {
		return false
	}

	cmd := os.Args[1]
	if cmd == "" || cmd[0] == '-' || isBuiltin(cmd) {
		return false
	}

	if _, err := findExternal(cmd); err != nil {
		return false
	}

	if err := executeExternal(ctx, cmd, os.Args[2:], version); err != nil {
		fmt.Fprintf(os.Stderr, "cortex %s: %v\n", cmd, err)
		os.Exit(1)
	}

	return true
}

// app wires components lazily: the workspace depends on the invocation
// directory, so resolution happens inside each command run, not at startup.
// The config is the one explicit process-wide value, loaded once in main.
type app struct {
	cfg *internal.Config
}

func newApp(cfg *internal.Config) *app {
	return &app{cfg: cfg}
}

func (a *app) workspace() (internal.Workspace, error) {
	return internal.CurrentWorkspace()
}

// open resolves the workspace and its git repository. The repo is nil when
// the project is not a git repository; callers degrade per operation.
func (a *app) open() (internal.Workspace, *internal.Repo, error) {
	ws, err := a.workspace()
	if err != nil {
		return internal.Workspace{}, nil, err
	}
	repo, err := internal.OpenRepo(ws.Root)
	if err != nil {
		return ws, nil, nil
	}
	return ws, repo, nil
}

func (a *app) snapshots() (*internal.SnapshotStore, internal.Workspace, error) {
	ws, repo, err := a.open()
	if err != nil {
		return nil, internal.Workspace{}, err
	}

	var tree internal.WorkTree
	if repo != nil {
		tree = repo
	}
	return internal.NewSnapshotStore(ws.SnapshotsDir(), tree), ws, nil
}

func (a *app) sessions() (*internal.SessionTracker, internal.Workspace, error) {
	ws, err := a.workspace()
	if err != nil {
		return nil, internal.Workspace{}, err
	}
	return internal.NewSessionTracker(ws.SessionsLog(), ws.Project()), ws, nil
}

func (a *app) synthesizer() (*internal.Synthesizer, internal.Workspace, error) {
	ws, repo, err := a.open()
	if err != nil {
		return nil, internal.Workspace{}, err
	}

	var tree internal.WorkTree
	var git internal.GitCollaborator
	if repo != nil {
		tree = repo
		git = repo
	}

	snapshots := internal.NewSnapshotStore(ws.SnapshotsDir(), tree)
	sessions := internal.NewSessionTracker(ws.SessionsLog(), ws.Project())
	return internal.NewSynthesizer(ws, a.cfg, git, snapshots, sessions), ws, nil
}

func (a *app) daemon() (*internal.Daemon, error) {
	ws, err := a.workspace()
	if err != nil {
		return nil, err
	}
	return internal.NewDaemon(ws, a.cfg), nil
}
