// Package filelock provides cross-process advisory locks for
// coordinating job-table mutation and pipeline execution across multiple
// genforge processes sharing one data directory. Grounded on
// file_lock.py's FileLock/JobLock/PipelineLock, backed by
// github.com/gofrs/flock (the real OS-level lock the Python version
// reaches for via portalocker) instead of a hand-rolled syscall wrapper.
package filelock

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
)

const defaultCheckInterval = 100 * time.Millisecond

// Lock wraps a named flock.Flock the way FileLock wraps portalocker: it
// records the holder PID into the lock file itself and exposes a timeout-bound
// acquire, rather than a bare indefinite-block primitive.
type Lock struct {
	name string
	path string
	fl   *flock.Flock
}

// ErrTimeout is returned when the lock could not be acquired before the
// configured timeout, mirroring LockAcquisitionError.
type ErrTimeout struct {
	Name    string
	Timeout time.Duration
}

func (e *ErrTimeout) Error() string {
	return "filelock: could not acquire lock " + e.Name + " within " + e.Timeout.String()
}

// Named constructs a lock for an arbitrary name under lockDir.
func Named(name, lockDir string) *Lock {
	path := filepath.Join(lockDir, name+".lock")
	return &Lock{name: name, path: path, fl: flock.New(path)}
}

// Job mirrors JobLock (name="jobs").
func Job(lockDir string) *Lock { return Named("jobs", lockDir) }

// Pipeline mirrors PipelineLock(pipeline_id) (name=f"pipeline_{id}").
func Pipeline(pipelineID, lockDir string) *Lock {
	return Named("pipeline_"+pipelineID, lockDir)
}

// Acquire blocks, polling every checkInterval, until the lock is held or
// timeout elapses, mirroring FileLock's __enter__ polling loop.
func (l *Lock) Acquire(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(defaultCheckInterval)
	defer ticker.Stop()

	for {
		ok, err := l.fl.TryLock()
		if err != nil {
			return err
		}
		if ok {
			holder := []byte(strconv.Itoa(os.Getpid()))
			_ = os.WriteFile(l.path, holder, 0o644)
			return nil
		}
		if timeout > 0 && time.Now().After(deadline) {
			return &ErrTimeout{Name: l.name, Timeout: timeout}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Release unlocks the file, mirroring FileLock's __exit__.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}

// With runs fn while holding the lock, releasing it unconditionally
// afterwards — the context-manager idiom FileLock gives Python, expressed
// as a higher-order function in Go.
func (l *Lock) With(ctx context.Context, timeout time.Duration, fn func() error) error {
	if err := l.Acquire(ctx, timeout); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}
