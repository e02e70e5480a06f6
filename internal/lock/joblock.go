// Package lock provides per-job run locks so two cleanup runs for the same
// job never overlap on one host, even across processes.
package lock

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"syscall"
)

// ErrHeld is returned when another run already holds the lock.
var ErrHeld = errors.New("lock is held by another run")

// JobLock is an exclusive flock(2) on a per-job lock file. The lock lives as
// long as the file descriptor stays open.
type JobLock struct {
	path string
	f    *os.File
}

// PathFor returns the lock file for job under dir. Job names may contain
// folder separators, so they are escaped into a single file name.
func PathFor(dir, job string) string {
	return filepath.Join(dir, url.PathEscape(job)+".lock")
}

// AcquireJob takes the lock for job under dir without blocking.
func AcquireJob(dir, job string) (*JobLock, error) {
	if job == "" {
		return nil, fmt.Errorf("job name is empty")
	}
	return Acquire(PathFor(dir, job))
}

// Acquire takes an exclusive non-blocking lock at lockPath and records the
// holder's PID in it.
func Acquire(lockPath string) (*JobLock, error) {
	if lockPath == "" {
		return nil, fmt.Errorf("lock path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrHeld, lockPath)
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	l := &JobLock{path: lockPath, f: f}
	if err := l.writePID(); err != nil {
		_ = l.Release()
		return nil, err
	}
	return l, nil
}

func (l *JobLock) writePID() error {
	if err := l.f.Truncate(0); err != nil {
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := l.f.Seek(0, 0); err != nil {
		return fmt.Errorf("seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(l.f, "%d\n", os.Getpid()); err != nil {
		return fmt.Errorf("write pid: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync lock file: %w", err)
	}
	return nil
}

func (l *JobLock) Path() string { return l.path }

// Release drops the lock. It is safe to call more than once.
func (l *JobLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}

// InDir returns a lock function for job locks under dir. The returned func
// releases the lock.
func InDir(dir string) func(job string) (func() error, error) {
	return func(job string) (func() error, error) {
		l, err := AcquireJob(dir, job)
		if err != nil {
			return nil, err
		}
		return l.Release, nil
	}
}
