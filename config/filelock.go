package config

import "os"

// FileLock is an advisory cross-process lock held on "<path>.lock", next to
// the file it protects, so the data file itself can be replaced by rename.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock returns an unlocked lock guarding path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path + ".lock"}
}

// Path is the lock file location.
func (l *FileLock) Path() string {
	return l.path
}

// WithLock runs fn while holding the exclusive lock.
func (l *FileLock) WithLock(fn func() error) error {
	if err := l.Lock(); err != nil {
		return err
	}
	defer l.Unlock()
	return fn()
}

// WithRLock runs fn while holding the shared lock.
func (l *FileLock) WithRLock(fn func() error) error {
	if err := l.RLock(); err != nil {
		return err
	}
	defer l.Unlock()
	return fn()
}
