//go:build unix

package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// ErrScopeBusy is returned when another process already holds a scope lock
var ErrScopeBusy = errors.New("scope is already being processed by another run")

// ScopeLock is an advisory lock preventing two runs against the same scope
type ScopeLock struct {
	file *os.File
}

// LockScope takes an exclusive non-blocking flock on dir/name.lock
func LockScope(dir, name string) (*ScopeLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	path := filepath.Join(dir, SanitizeFilename(name)+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrScopeBusy, name)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if err := f.Truncate(0); err == nil {
		fmt.Fprintf(f, "%d\n", os.Getpid())
	}
	return &ScopeLock{file: f}, nil
}

// Unlock releases the lock
func (l *ScopeLock) Unlock() error {
	if l == nil || l.file == nil {
		return nil
	}
	defer func() { l.file = nil }()
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}
