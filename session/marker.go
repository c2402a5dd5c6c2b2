package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"claude-ptyhost/config"
	"claude-ptyhost/log"
)

// DefaultMarkerMaxAge is how recent a marker must be to be trusted.
const DefaultMarkerMaxAge = 30 * time.Second

// SessionUpdate records a resume retry: the conversation OldSessionID was
// missing and the child was restarted as NewSessionID. Timestamp is in
// milliseconds since the epoch.
type SessionUpdate struct {
	OldSessionID string `json:"oldSessionId"`
	NewSessionID string `json:"newSessionId"`
	Cwd          string `json:"cwd"`
	Timestamp    int64  `json:"timestamp"`
}

func (u SessionUpdate) Time() time.Time {
	return time.UnixMilli(u.Timestamp)
}

// WriteMarker atomically replaces the marker at path with u. Readers see
// either the previous marker or the complete new one.
func WriteMarker(path string, u SessionUpdate) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal marker: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create marker directory: %w", err)
	}

	return config.NewFileLock(path).WithLock(func() error {
		tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
		if err != nil {
			return fmt.Errorf("failed to create temp marker: %w", err)
		}
		defer os.Remove(tmp.Name())

		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write marker: %w", err)
		}
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to sync marker: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("failed to close marker: %w", err)
		}
		return os.Rename(tmp.Name(), path)
	})
}

// FileMarker adapts WriteMarker for Options.WriteMarker.
func FileMarker(path string) func(SessionUpdate) error {
	return func(u SessionUpdate) error {
		return WriteMarker(path, u)
	}
}

// ReadMarker returns the marker at path without consuming it. A missing
// marker is (nil, nil).
func ReadMarker(path string) (*SessionUpdate, error) {
	if !markerExists(path) {
		return nil, nil
	}
	var u *SessionUpdate
	err := config.NewFileLock(path).WithRLock(func() error {
		var err error
		u, err = readMarker(path)
		return err
	})
	return u, err
}

func markerExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}

func readMarker(path string) (*SessionUpdate, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var u SessionUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to parse marker %s: %w", path, err)
	}
	return &u, nil
}

// ConsumeMarker returns the marker if it is for expectedOld and no older than
// maxAge, deleting it. A missing, unreadable or stale marker means no retry
// happened and yields (nil, nil); stale markers are removed, markers for other
// sessions are left alone.
func ConsumeMarker(path, expectedOld string, maxAge time.Duration, now time.Time) (*SessionUpdate, error) {
	if maxAge <= 0 {
		maxAge = DefaultMarkerMaxAge
	}
	if !markerExists(path) {
		return nil, nil
	}
	var consumed *SessionUpdate
	err := config.NewFileLock(path).WithLock(func() error {
		u, err := readMarker(path)
		if err != nil {
			log.WarningLog.Printf("ignoring marker: %v", err)
			return nil
		}
		if u == nil {
			return nil
		}
		age := now.Sub(u.Time())
		if age > maxAge || age < -maxAge {
			log.InfoLog.Printf("removing stale marker for session %s (age %v)", u.OldSessionID, age)
			return removeMarker(path)
		}
		if u.OldSessionID != expectedOld {
			return nil
		}
		consumed = u
		return removeMarker(path)
	})
	return consumed, err
}

func removeMarker(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove marker: %w", err)
	}
	return nil
}

// WatchMarker calls fn for each marker consumed for expectedOld until ctx is
// done. fn runs on the watcher goroutine.
func WatchMarker(ctx context.Context, path, expectedOld string, maxAge time.Duration, fn func(SessionUpdate)) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create marker directory: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	check := func() {
		u, err := ConsumeMarker(path, expectedOld, maxAge, time.Now())
		if err != nil {
			log.WarningLog.Printf("marker watch: %v", err)
			return
		}
		if u != nil {
			fn(*u)
		}
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == filepath.Clean(path) && ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				check()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WarningLog.Printf("marker watch: %v", err)
		}
	}
}
