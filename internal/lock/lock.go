// Package lock guarantees a single running agent per device.
//
// The guard is an exclusive, non-blocking advisory lock (flock) on a file.
// The kernel drops it when the process exits, so a crashed agent never
// leaves a stale lock behind.
package lock

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atlas-iot/aurora/internal/errors"
)

// Lock is a held instance guard. Keep it referenced for the lifetime of the
// process; the lock lives as long as the underlying file stays open.
type Lock struct {
	Path string    // Lock file path
	Info *LockInfo // Info about the lock holder (us)
	file *os.File
}

// Acquire takes the instance lock at path without blocking.
// Parent directories are created as needed. If another process holds the
// lock the returned error has code ErrLock and wraps ErrLocked.
func Acquire(path, command string) (*Lock, error) {
	if path == "" {
		return nil, errors.New(errors.ErrLock,
			"Cannot acquire lock: no lock path",
			"Set lock.path or AURORA_LOCK_PATH")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrLock,
			fmt.Sprintf("Failed to create lock directory: %s", filepath.Dir(path)),
			"Check permissions on the parent directory")
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrLock,
			fmt.Sprintf("Failed to open lock file: %s", path),
			"Check permissions on the lock file")
	}

	if err := tryLock(f); err != nil {
		f.Close()
		if stderrors.Is(err, ErrLocked) {
			return nil, errors.WrapWithCode(ErrLocked, errors.ErrLock,
				"Another aurora instance is already running",
				fmt.Sprintf("Lock held by: %s. Stop it first, or point lock.path elsewhere.", Holder(path)))
		}
		return nil, errors.WrapWithCode(err, errors.ErrLock,
			fmt.Sprintf("Failed to lock %s", path),
			"The filesystem may not support advisory locks")
	}

	info := NewLockInfo(command)
	if err := writeInfo(f, info); err != nil {
		unlock(f)
		f.Close()
		return nil, errors.WrapWithCode(err, errors.ErrLock,
			"Failed to write lock info",
			"Check disk space and permissions")
	}

	return &Lock{Path: path, Info: info, file: f}, nil
}

// Release drops the lock. Safe to call on a nil or already released lock.
// The lock file is left in place so the path stays stable.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil

	if err := unlock(f); err != nil {
		f.Close()
		return errors.WrapWithCode(err, errors.ErrLock,
			fmt.Sprintf("Failed to release lock: %s", l.Path),
			"The lock is released when the process exits")
	}
	return f.Close()
}

// Holder describes who holds the lock at path, as recorded in the lock file.
func Holder(path string) string {
	data, err := os.ReadFile(path)
	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		return "unknown"
	}

	info, err := ParseLockInfo(data)
	if err != nil {
		return strings.TrimSpace(string(data))
	}
	return info.String()
}

func writeInfo(f *os.File, info *LockInfo) error {
	data, err := info.Marshal()
	if err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}
