package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cortexhq/cortex/internal"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func NewWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the working tree and auto-capture snapshots",
		Long:  `Watch the project for file changes and capture a snapshot after each quiet period. Runs a session around the watch.`,
		RunE:  makeWatchRunner(a),
	}

	cmd.Flags().Duration("debounce", 2*time.Second, "Quiet period before capturing")
	return cmd
}

func makeWatchRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		debounce, _ := cmd.Flags().GetDuration("debounce")

		store, ws, err := a.snapshots()
		if err != nil {
			return err
		}
		if !ws.Exists() {
			return fmt.Errorf("not initialized: run `cortex init` in %s", ws.Root)
		}

		tracker := internal.NewSessionTracker(ws.SessionsLog(), ws.Project())
		sid := internal.NewSessionID()
		if err := tracker.Start(sid); err != nil {
			return err
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}

		// The session end must be recorded however the watch exits,
		// including Ctrl-C; the guard runs exactly once.
		guard := internal.NewCleanupGuard(func() {
			_ = watcher.Close()
			_ = tracker.End(sid)
		})
		defer guard.Release()

		ignore, err := internal.NewIgnoreMatcher(ws.Root)
		if err != nil {
			return fmt.Errorf("read %s: %w", internal.IgnoreFilename, err)
		}

		if err := addWatchDirs(watcher, ws.Root, ignore); err != nil {
			return fmt.Errorf("add watch dirs: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (session %s)...\n", ws.Root, sid)

		timer := time.NewTimer(0)
		if !timer.Stop() {
			<-timer.C
		}
		pending := false

		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if shouldIgnoreEvent(event, ws.Dir, ignore) {
					continue
				}
				if event.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !ignore.MatchDir(event.Name) {
						_ = watcher.Add(event.Name)
					}
				}
				if !pending {
					timer.Reset(debounce)
					pending = true
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
			case <-timer.C:
				pending = false
				result, captureErr := store.Capture(cmd.Context(), "", sid)
				if captureErr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "capture failed: %v\n", captureErr)
					continue
				}
				if result.NoChanges {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %d files: %s\n",
					result.ID, result.FileCount, result.Summary)
			}
		}
	}
}

func addWatchDirs(watcher *fsnotify.Watcher, root string, ignore *internal.IgnoreMatcher) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		if info.IsDir() {
			base := filepath.Base(path)
			if strings.HasPrefix(base, ".") && path != root {
				return filepath.SkipDir
			}
			if ignore.MatchDir(path) {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}

func shouldIgnoreEvent(event fsnotify.Event, cortexDir string, ignore *internal.IgnoreMatcher) bool {
	if strings.HasPrefix(event.Name, cortexDir) {
		return true
	}
	if ignore.Match(event.Name) {
		return true
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return true
	}

	return false
}
