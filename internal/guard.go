package internal

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// CleanupGuard runs a release callback exactly once, whether the process
// completes normally, returns early, or is interrupted. The signal path
// re-raises the signal after cleanup so exit status is preserved.
type CleanupGuard struct {
	once    sync.Once
	release func()
	sigCh   chan os.Signal
}

func NewCleanupGuard(release func()) *CleanupGuard {
	g := &CleanupGuard{
		release: release,
		sigCh:   make(chan os.Signal, 1),
	}
	signal.Notify(g.sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig, ok := <-g.sigCh
		if !ok {
			return
		}
		g.Release()
		signal.Reset(sig)
		p, _ := os.FindProcess(os.Getpid())
		_ = p.Signal(sig)
	}()

	return g
}

// Release runs the callback. Subsequent calls are no-ops.
func (g *CleanupGuard) Release() {
	g.once.Do(func() {
		signal.Stop(g.sigCh)
		if g.release != nil {
			g.release()
		}
	})
}
