// Package doclock provides the advisory lock that marks a document as
// loaded by this process.
//
// Locks are shared flock(2) locks taken without blocking. Writers such as
// sync or import tools take the exclusive lock, so a shared acquire fails
// with ErrBusy exactly while such a writer holds the document.
package doclock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultLockName is the lock file created inside each document directory.
const DefaultLockName = ".lock"

// ErrBusy is returned when another process holds a conflicting lock.
var ErrBusy = errors.New("document is locked by another process")

// Lock is a held advisory lock.
type Lock interface {
	// Release drops the lock. Calls after the first return nil.
	Release() error
}

// Locker acquires document locks.
type Locker interface {
	Acquire(docID string) (Lock, error)
}

// FileLocker locks <root>/<docID>/<name>.
type FileLocker struct {
	root string
	name string
}

// NewFileLocker creates a locker for documents stored under root.
func NewFileLocker(root, name string) *FileLocker {
	if name == "" {
		name = DefaultLockName
	}
	return &FileLocker{root: root, name: name}
}

// Path returns the lock file path for docID.
func (l *FileLocker) Path(docID string) string {
	return filepath.Join(l.root, docID, l.name)
}

// Acquire takes a shared lock on docID without blocking.
func (l *FileLocker) Acquire(docID string) (Lock, error) {
	path := l.Path(docID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH|unix.LOCK_NB); err != nil {
		f.Close() //nolint:errcheck
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%s: %w", docID, ErrBusy)
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return &fileLock{f: f}, nil
}

type fileLock struct {
	mu sync.Mutex
	f  *os.File
}

func (l *fileLock) Release() error {
	l.mu.Lock()
	f := l.f
	l.f = nil
	l.mu.Unlock()
	if f == nil {
		return nil
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return f.Close()
}
