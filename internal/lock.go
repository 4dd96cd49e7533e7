package internal

import (
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	lockRetries = 3
	lockBackoff = 100 * time.Millisecond
)

// FileLock is a cross-process advisory lock backed by exclusive creation of
// a sibling file containing the holder's PID. Presence means held; a holder
// whose process is no longer alive is treated as stale and cleared rather
// than trusted.
type FileLock struct {
	path string
}

// AcquireLock tries to take the lock for target, retrying with a bounded
// backoff. On exhaustion it returns (nil, false): callers on the append path
// proceed unlocked rather than dropping data.
func AcquireLock(target string) (*FileLock, bool) {
	path := target + ".lock"

	for attempt := 0; attempt <= lockRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(lockBackoff)
		}

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
			_ = f.Close()
			return &FileLock{path: path}, true
		}
		if !os.IsExist(err) {
			continue
		}

		if holderDead(path) {
			_ = os.Remove(path)
		}
	}
	return nil, false
}

func (l *FileLock) Release() {
	if l != nil {
		_ = os.Remove(l.path)
	}
}

func holderDead(lockPath string) bool {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		// Unreadable holder: old enough lock files are assumed abandoned.
		info, statErr := os.Stat(lockPath)
		return statErr == nil && time.Since(info.ModTime()) > time.Minute
	}
	return !ProcessAlive(pid)
}

// ProcessAlive reports whether a process with the given PID exists.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}
