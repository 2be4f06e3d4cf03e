// Package runlock keeps two overlapping runs from appending to the same history.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another run holds the lock.
var ErrLocked = errors.New("another run holds the lock")

// Lock is an advisory file lock next to the history file.
type Lock struct {
	lock *flock.Flock
}

// PathFor returns the lock file path guarding target.
func PathFor(target string) string {
	return target + ".lock"
}

// Acquire takes the lock for target without waiting.
func Acquire(target string) (*Lock, error) {
	path := PathFor(target)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	l := flock.New(path)
	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}
	return &Lock{lock: l}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.lock.Path()
}

// Release unlocks. The lock file is left in place; flock ignores stale files.
func (l *Lock) Release() error {
	return l.lock.Unlock()
}
