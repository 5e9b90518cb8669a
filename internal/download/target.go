package download

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"
)

// ErrTargetBusy is returned when another writer holds the target's lock.
var ErrTargetBusy = errors.New("download target is busy")

// Target is a download destination owned by a single writer.
// Bytes go to a hidden pending file next to the destination; the final path
// only appears, complete, when Commit succeeds.
type Target struct {
	path    string
	lock    *flock.Flock
	pending *renameio.PendingFile
	written int64
	closed  bool
}

// OpenTarget takes the advisory lock <path>.lock and creates the pending file.
func OpenTarget(path string) (*Target, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create target directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock for %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetBusy, path)
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithTempDir(dir), renameio.WithPermissions(0o644))
	if err != nil {
		releaseLock(lock)
		return nil, fmt.Errorf("create pending file for %s: %w", path, err)
	}

	return &Target{path: path, lock: lock, pending: pending}, nil
}

// Path returns the final path of the target.
func (t *Target) Path() string {
	return t.path
}

// Written returns the number of bytes currently held by the pending file.
func (t *Target) Written() int64 {
	return t.written
}

// Write appends p to the pending file.
func (t *Target) Write(p []byte) (int, error) {
	if t.closed {
		return 0, os.ErrClosed
	}
	n, err := t.pending.Write(p)
	t.written += int64(n)
	return n, err
}

// Truncate drops everything written so far so a transfer can restart at byte 0.
func (t *Target) Truncate() error {
	if t.closed {
		return os.ErrClosed
	}
	if err := t.pending.Truncate(0); err != nil {
		return err
	}
	if _, err := t.pending.Seek(0, io.SeekStart); err != nil {
		return err
	}
	t.written = 0
	return nil
}

// Commit syncs the pending file and renames it onto the final path.
// On failure the pending file is discarded.
func (t *Target) Commit() error {
	if t.closed {
		return os.ErrClosed
	}
	t.closed = true
	defer releaseLock(t.lock)

	if err := t.pending.CloseAtomicallyReplace(); err != nil {
		_ = t.pending.Cleanup()
		return fmt.Errorf("commit %s: %w", t.path, err)
	}
	return nil
}

// Discard removes the pending file. A file that already existed at the
// final path is left as it was. Calling Discard after Commit is a no-op.
func (t *Target) Discard() error {
	if t.closed {
		return nil
	}
	t.closed = true
	defer releaseLock(t.lock)
	return t.pending.Cleanup()
}

func releaseLock(lock *flock.Flock) {
	if err := lock.Unlock(); err == nil {
		_ = os.Remove(lock.Path())
	}
}
