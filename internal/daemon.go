package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	daemonStartConfirm = 500 * time.Millisecond
	daemonStopTimeout  = 5 * time.Second
	daemonStopPoll     = 100 * time.Millisecond
)

// Daemon is the background maintenance process: a detached single-threaded
// worker that periodically compacts the stores and runs the health check.
// Singleton enforcement is PID-file based; a recorded PID whose process is
// dead is stale and cleared transparently.
type Daemon struct {
	ws  Workspace
	cfg *Config
}

func NewDaemon(ws Workspace, cfg *Config) *Daemon {
	return &Daemon{ws: ws, cfg: cfg}
}

// Status returns the recorded PID and whether that process is alive.
func (d *Daemon) Status() (int, bool) {
	data, err := os.ReadFile(d.ws.DaemonPIDPath())
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return pid, ProcessAlive(pid)
}

// Start spawns the detached worker by re-execing this binary with the hidden
// `daemon run` command, records its PID, and waits briefly to confirm it
// stayed alive.
func (d *Daemon) Start(ctx context.Context) (int, error) {
	if pid, alive := d.Status(); alive {
		return pid, fmt.Errorf("pid %d: %w", pid, ErrAlreadyRunning)
	}
	// Stale PID file from a dead worker.
	_ = os.Remove(d.ws.DaemonPIDPath())

	if err := d.ws.Init(); err != nil {
		return 0, err
	}

	self, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("locate own binary: %w", err)
	}

	cmd := exec.Command(self, "daemon", "run")
	cmd.Dir = d.ws.Root
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn daemon: %w", err)
	}
	pid := cmd.Process.Pid

	if err := atomicWrite(d.ws.DaemonPIDPath(), []byte(strconv.Itoa(pid)+"\n")); err != nil {
		_ = cmd.Process.Kill()
		return 0, err
	}
	_ = cmd.Process.Release()

	time.Sleep(daemonStartConfirm)
	if !ProcessAlive(pid) {
		_ = os.Remove(d.ws.DaemonPIDPath())
		return 0, fmt.Errorf("daemon exited immediately, see %s", d.ws.DaemonLogPath())
	}
	return pid, nil
}

// Stop asks the worker to terminate, polls for exit, and escalates to a
// forceful kill after the timeout. The PID file is removed on every path.
func (d *Daemon) Stop(ctx context.Context) error {
	defer os.Remove(d.ws.DaemonPIDPath())

	pid, alive := d.Status()
	if pid == 0 {
		return ErrNotRunning
	}
	if !alive {
		return nil
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return nil
	}

	deadline := time.Now().Add(daemonStopTimeout)
	for time.Now().Before(deadline) {
		if !ProcessAlive(pid) {
			return nil
		}
		time.Sleep(daemonStopPoll)
	}

	_ = proc.Kill()
	return nil
}

// Run is the worker main loop: single-threaded and cooperative. Each tick it
// checks the two independently tracked last-run stamps against the clock and
// fires whichever task is due, rotating its own log first when it has grown
// past the size threshold. The stamps live only in memory, so a restarted
// daemon treats both tasks as immediately due.
func (d *Daemon) Run(ctx context.Context) error {
	if pid, alive := d.Status(); alive && pid != os.Getpid() {
		return fmt.Errorf("pid %d: %w", pid, ErrAlreadyRunning)
	}
	if err := d.ws.Init(); err != nil {
		return err
	}
	if err := atomicWrite(d.ws.DaemonPIDPath(), []byte(strconv.Itoa(os.Getpid())+"\n")); err != nil {
		return err
	}

	guard := NewCleanupGuard(func() {
		_ = os.Remove(d.ws.DaemonPIDPath())
	})
	defer guard.Release()

	log, err := newDaemonLog(d.ws.DaemonLogPath())
	if err != nil {
		return err
	}
	defer log.Close()

	health := NewHealthChecker(d.ws, log.Logger)

	log.Logger.Info("daemon started",
		"pid", os.Getpid(),
		"tick", d.cfg.Daemon.Tick(),
		"compaction_interval", d.cfg.Daemon.CompactionInterval(),
		"health_interval", d.cfg.Daemon.HealthInterval())

	var lastCompaction, lastHealth time.Time

	ticker := time.NewTicker(d.cfg.Daemon.Tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Logger.Info("daemon stopping")
			return nil
		case <-ticker.C:
		}

		log.RotateIfOver(d.cfg.Daemon.LogMaxBytes)

		now := time.Now()
		if now.Sub(lastCompaction) >= d.cfg.Daemon.CompactionInterval() {
			d.runCompaction(log.Logger, now)
			lastCompaction = now
		}
		if now.Sub(lastHealth) >= d.cfg.Daemon.HealthInterval() {
			health.Check(ctx)
			lastHealth = now
		}
	}
}

func (d *Daemon) runCompaction(logger *slog.Logger, now time.Time) {
	var total CompactStats

	stats, err := CompactLog(d.ws.CommitsLog(), d.cfg.RetentionCutoff(now))
	if err != nil {
		logger.Warn("commit log compaction failed", "error", err)
	}
	total = total.Add(stats)

	stats, err = CapLog(d.ws.SessionsLog(), d.cfg.SessionLogMaxLines)
	if err != nil {
		logger.Warn("session log cap failed", "error", err)
	}
	total = total.Add(stats)

	stats, err = CompactSnapshots(d.ws.SnapshotsDir(), d.cfg.SnapshotCutoff(now))
	if err != nil {
		logger.Warn("snapshot compaction failed", "error", err)
	}
	total = total.Add(stats)

	logger.Info("compaction complete",
		"entries_removed", total.EntriesRemoved,
		"malformed_dropped", total.MalformedDropped,
		"snapshots_removed", total.SnapshotsRemoved)
}

// daemonLog is the worker's size-rotated log file. Rotation is rename plus
// a fresh file; the previous generation is kept as <log>.1.
type daemonLog struct {
	path   string
	file   *os.File
	Logger *slog.Logger
}

func newDaemonLog(path string) (*daemonLog, error) {
	l := &daemonLog{path: path}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *daemonLog) open() error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open daemon log: %w", err)
	}
	l.file = f
	l.Logger = slog.New(slog.NewTextHandler(f, nil))
	return nil
}

func (l *daemonLog) RotateIfOver(maxBytes int64) {
	info, err := l.file.Stat()
	if err != nil || info.Size() < maxBytes {
		return
	}

	_ = l.file.Close()
	if err := os.Rename(l.path, l.path+".1"); err != nil {
		// Keep logging into the old handle's inode if the rename failed.
		_ = l.open()
		return
	}
	if err := l.open(); err == nil {
		l.Logger.Info("rotated daemon log", "max_bytes", maxBytes)
	}
}

func (l *daemonLog) Close() {
	if l.file != nil {
		_ = l.file.Close()
	}
}
