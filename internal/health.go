package internal

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// HealthChecker is invoked by the daemon purely for logging: it reports the
// size and corruption state of the stores so drift shows up in daemon.log
// before it becomes a problem.
type HealthChecker struct {
	ws     Workspace
	logger *slog.Logger
}

func NewHealthChecker(ws Workspace, logger *slog.Logger) *HealthChecker {
	return &HealthChecker{ws: ws, logger: logger}
}

func (h *HealthChecker) Check(ctx context.Context) {
	commits, commitStats, _ := ReadRecords[CommitRecord](h.ws.CommitsLog())
	sessions, sessionStats, _ := ReadRecords[SessionEvent](h.ws.SessionsLog())

	snapshotCount := 0
	if entries, err := os.ReadDir(h.ws.SnapshotsDir()); err == nil {
		for _, e := range entries {
			if !e.IsDir() && len(e.Name()) > 5 && e.Name()[len(e.Name())-5:] == ".json" {
				snapshotCount++
			}
		}
	}

	contextAge := time.Duration(0)
	if info, err := os.Stat(h.ws.ContextPath()); err == nil {
		contextAge = time.Since(info.ModTime()).Round(time.Second)
	}

	h.logger.Info("health check",
		"commit_entries", len(commits),
		"commit_corrupted", commitStats.Corrupted,
		"session_entries", len(sessions),
		"session_corrupted", sessionStats.Corrupted,
		"snapshots", snapshotCount,
		"context_age", contextAge,
		"store_bytes", h.storeBytes())

	if commitStats.Corrupted > 0 || sessionStats.Corrupted > 0 {
		h.logger.Warn("corrupted log lines detected, repair recommended",
			"commits", commitStats.Corrupted,
			"sessions", sessionStats.Corrupted)
	}
}

func (h *HealthChecker) storeBytes() int64 {
	var total int64
	for _, path := range []string{h.ws.CommitsLog(), h.ws.SessionsLog()} {
		if info, err := os.Stat(path); err == nil {
			total += info.Size()
		}
	}
	if entries, err := os.ReadDir(h.ws.SnapshotsDir()); err == nil {
		for _, e := range entries {
			if info, err := e.Info(); err == nil && !e.IsDir() {
				total += info.Size()
			}
		}
	}
	return total
}
