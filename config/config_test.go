package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := LoadConfig()
	assert.Equal(t, "--resume", cfg.ResumeFlag)
	assert.Equal(t, 2*time.Second, cfg.ResumeDetectWindow())
	assert.Equal(t, 16*time.Millisecond, cfg.RenderDebounce())
	assert.Equal(t, 30*time.Second, cfg.MarkerMaxAge())
	assert.NotEmpty(t, cfg.DefaultProgram)

	_, err := os.Stat(filepath.Join(home, ".claude-ptyhost", ConfigFileName))
	assert.NoError(t, err)
}

func TestLoadConfigBacksUpCorruptFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".claude-ptyhost")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("{not json"), 0644))

	cfg := LoadConfig()
	assert.Equal(t, "vt10x", cfg.Emulator)

	matches, err := filepath.Glob(filepath.Join(dir, ConfigFileName+".corrupt.*"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestLoadConfigReadsFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".claude-ptyhost")
	require.NoError(t, os.MkdirAll(dir, 0755))
	data := `{"default_program":"/bin/cat","emulator":"vt100","resume_detect_window_ms":500,"marker_path":"/tmp/m.json"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(data), 0644))

	cfg := LoadConfig()
	assert.Equal(t, "/bin/cat", cfg.DefaultProgram)
	assert.Equal(t, "vt100", cfg.GetEmulator())
	assert.Equal(t, 500*time.Millisecond, cfg.ResumeDetectWindow())
	assert.Equal(t, 3*time.Second, cfg.StopGracePeriod(), "zero falls back to default")
	assert.Equal(t, "--session-id", cfg.GetSessionIDFlag())
	assert.Equal(t, "127.0.0.1:7681", cfg.GetListenAddr())

	path, err := cfg.GetMarkerPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/m.json", path)
}

func TestDefaultMarkerPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := (&Config{}).GetMarkerPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".claude-ptyhost", MarkerFileName), path)
}

func TestFileLock(t *testing.T) {
	target := filepath.Join(t.TempDir(), "data.json")
	l := NewFileLock(target)
	assert.Equal(t, target+".lock", l.Path())

	require.NoError(t, l.Lock())
	assert.Error(t, l.Lock(), "lock is not reentrant")
	require.NoError(t, l.Unlock())
	require.NoError(t, l.Unlock())

	ran := false
	require.NoError(t, l.WithRLock(func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)

	wantErr := os.ErrClosed
	assert.ErrorIs(t, l.WithLock(func() error { return wantErr }), wantErr)
	assert.Nil(t, l.file)
}
