//go:build windows

package grevling

import (
	"fmt"
	"os"
	"time"

	"github.com/TheBB/Grevling/pkg/gerr"
)

// storageLock emulates the Unix flock-based storage lock on Windows via
// exclusive file creation: the lock is held for as long as the file
// exists, and Unlock removes it. This is advisory, like its Unix
// counterpart — it only protects cooperating grevling processes.
type storageLock struct {
	path string
	file *os.File
}

func acquireLock(path string, wait time.Duration) (*storageLock, error) {
	deadline := time.Now().Add(wait)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
		if err == nil {
			_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
			return &storageLock{path: path, file: f}, nil
		}
		if !os.IsExist(err) {
			return nil, gerr.Wrap("grevling.acquireLock", path, err)
		}
		if time.Now().After(deadline) {
			return nil, gerr.Wrap("grevling.acquireLock", path, fmt.Errorf("%w: timed out after %s", gerr.ErrLocked, wait))
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (l *storageLock) Unlock() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := l.file.Close(); err != nil {
		return gerr.Wrap("grevling.storageLock.Unlock", l.path, err)
	}
	if err := os.Remove(l.path); err != nil {
		return gerr.Wrap("grevling.storageLock.Unlock", l.path, err)
	}
	return nil
}
