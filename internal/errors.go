package internal

import "errors"

var (
	ErrNotFound       = errors.New("snapshot not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrApplyConflict  = errors.New("patch does not apply cleanly")
	ErrAlreadyRunning = errors.New("daemon already running")
	ErrNotRunning     = errors.New("daemon not running")
	ErrNoGit          = errors.New("git not available")
	ErrNotConfirmed   = errors.New("operation not confirmed")
)
