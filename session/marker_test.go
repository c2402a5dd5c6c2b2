package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markerPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "state", "session-update.json")
}

func TestMarkerWireFormat(t *testing.T) {
	data, err := json.Marshal(SessionUpdate{OldSessionID: "a", NewSessionID: "b", Cwd: "/w", Timestamp: 42})
	require.NoError(t, err)
	assert.JSONEq(t, `{"oldSessionId":"a","newSessionId":"b","cwd":"/w","timestamp":42}`, string(data))
}

func TestWriteAndReadMarker(t *testing.T) {
	path := markerPath(t)

	u, err := ReadMarker(path)
	require.NoError(t, err)
	assert.Nil(t, u)

	want := SessionUpdate{OldSessionID: "old", NewSessionID: "new", Cwd: "/w", Timestamp: 1000}
	require.NoError(t, WriteMarker(path, want))
	require.NoError(t, WriteMarker(path, SessionUpdate{OldSessionID: "old2", NewSessionID: "new2", Timestamp: 2000}))

	u, err = ReadMarker(path)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "old2", u.OldSessionID)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temp files are cleaned up")
	}
}

func TestConsumeMarker(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	fresh := SessionUpdate{OldSessionID: "old", NewSessionID: "new", Cwd: "/w", Timestamp: now.Add(-time.Second).UnixMilli()}

	tests := []struct {
		name        string
		marker      *SessionUpdate
		raw         string
		expectedOld string
		want        *SessionUpdate
		wantRemoved bool
	}{
		{name: "missing", expectedOld: "old"},
		{name: "match", marker: &fresh, expectedOld: "old", want: &fresh, wantRemoved: true},
		{name: "other session", marker: &fresh, expectedOld: "someone-else"},
		{
			name:        "stale",
			marker:      &SessionUpdate{OldSessionID: "old", NewSessionID: "new", Timestamp: now.Add(-time.Minute).UnixMilli()},
			expectedOld: "old",
			wantRemoved: true,
		},
		{
			name:        "from the future",
			marker:      &SessionUpdate{OldSessionID: "old", NewSessionID: "new", Timestamp: now.Add(time.Minute).UnixMilli()},
			expectedOld: "old",
			wantRemoved: true,
		},
		{name: "corrupt", raw: "{not json", expectedOld: "old"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := markerPath(t)
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
			if tt.marker != nil {
				require.NoError(t, WriteMarker(path, *tt.marker))
			}
			if tt.raw != "" {
				require.NoError(t, os.WriteFile(path, []byte(tt.raw), 0644))
			}

			got, err := ConsumeMarker(path, tt.expectedOld, 30*time.Second, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			_, statErr := os.Stat(path)
			existed := tt.marker != nil || tt.raw != ""
			if tt.wantRemoved || !existed {
				assert.True(t, os.IsNotExist(statErr))
			} else {
				assert.NoError(t, statErr)
			}
		})
	}
}

func TestConsumeMarkerOnlyOnce(t *testing.T) {
	path := markerPath(t)
	now := time.Now()
	require.NoError(t, WriteMarker(path, SessionUpdate{OldSessionID: "old", NewSessionID: "new", Timestamp: now.UnixMilli()}))

	first, err := ConsumeMarker(path, "old", 0, now)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := ConsumeMarker(path, "old", 0, now)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestWatchMarker(t *testing.T) {
	path := markerPath(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan SessionUpdate, 1)
	done := make(chan error, 1)
	go func() {
		done <- WatchMarker(ctx, path, "old", time.Minute, func(u SessionUpdate) {
			got <- u
		})
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Dir(path))
		return err == nil
	}, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, WriteMarker(path, SessionUpdate{OldSessionID: "other", NewSessionID: "x", Timestamp: time.Now().UnixMilli()}))
	require.NoError(t, WriteMarker(path, SessionUpdate{OldSessionID: "old", NewSessionID: "new", Timestamp: time.Now().UnixMilli()}))

	select {
	case u := <-got:
		assert.Equal(t, "new", u.NewSessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("marker was not observed")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestFileMarkerFeedsSupervisor(t *testing.T) {
	path := markerPath(t)
	sp := &fakeSpawner{scripts: []func(*fakeProcess){
		failResume,
		func(p *fakeProcess) { p.exit(ExitStatus{}) },
	}}
	opts := testOptions(sp)
	opts.WriteMarker = FileMarker(path)
	sess := testSession(t)
	sess.SessionID = "old-id"

	h, err := NewSupervisor(opts).Start(sess, Callbacks{})
	require.NoError(t, err)
	waitDone(t, h)

	u, err := ConsumeMarker(path, "old-id", time.Minute, time.Now())
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "new-id", u.NewSessionID)
	assert.Equal(t, sess.WorkingDirectory, u.Cwd)
}
