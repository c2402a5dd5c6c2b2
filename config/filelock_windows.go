//go:build windows

package config

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

func (l *FileLock) Lock() error {
	return l.acquire(os.O_CREATE|os.O_RDWR, windows.LOCKFILE_EXCLUSIVE_LOCK)
}

func (l *FileLock) RLock() error {
	return l.acquire(os.O_CREATE|os.O_RDONLY, 0)
}

func (l *FileLock) acquire(flag int, lockFlags uint32) error {
	if l.file != nil {
		return fmt.Errorf("lock already held")
	}
	f, err := os.OpenFile(l.path, flag, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	ol := new(windows.Overlapped)
	if err := windows.LockFileEx(windows.Handle(f.Fd()), lockFlags, 0, 1, 0, ol); err != nil {
		f.Close()
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.file = f
	return nil
}

func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	ol := new(windows.Overlapped)
	if err := windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, ol); err != nil {
		f.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return f.Close()
}
