package lock

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// FileLock is a pid-file lock for deployments without Postgres. Creation with
// O_EXCL is the atomicity guarantee; a leftover file from a crashed process
// must be removed by the operator.
type FileLock struct {
	path string
	held bool
}

// NewFileLock creates a file lock at path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// TryAcquire creates the pid file, failing if it already exists.
func (l *FileLock) TryAcquire(_ context.Context) (bool, error) {
	if l.held {
		return true, nil
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("creating lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		os.Remove(l.path)
		return false, fmt.Errorf("writing lock file: %w", err)
	}

	l.held = true
	return true, nil
}

// Release removes the pid file.
func (l *FileLock) Release(_ context.Context) error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}

var _ Locker = (*FileLock)(nil)
