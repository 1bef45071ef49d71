//go:build !windows

package grevling

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/TheBB/Grevling/pkg/gerr"
)

// storageLock is an OS advisory lock on a single file at the storage
// root, serialising Run/Collect/Capture across processes. Held for the
// duration of the operation; released by Unlock.
type storageLock struct {
	file *os.File
}

// acquireLock opens (creating if needed) path and blocks, retrying with
// a short backoff, until it wins an exclusive non-blocking flock or wait
// is exceeded.
func acquireLock(path string, wait time.Duration) (*storageLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, gerr.Wrap("grevling.acquireLock", path, err)
	}

	deadline := time.Now().Add(wait)
	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			break
		}
		if err != syscall.EWOULDBLOCK {
			_ = f.Close()
			return nil, gerr.Wrap("grevling.acquireLock", path, err)
		}
		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, gerr.Wrap("grevling.acquireLock", path, fmt.Errorf("%w: timed out after %s", gerr.ErrLocked, wait))
		}
		time.Sleep(50 * time.Millisecond)
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.Seek(0, 0)
		_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	}

	return &storageLock{file: f}, nil
}

func (l *storageLock) Unlock() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	if err != nil {
		return gerr.Wrap("grevling.storageLock.Unlock", l.file.Name(), err)
	}
	if closeErr != nil {
		return gerr.Wrap("grevling.storageLock.Unlock", l.file.Name(), closeErr)
	}
	return nil
}
