// Package snapshot compares rendered text against golden files under
// testdata/golden. Set UPDATE_GOLDEN=1 to rewrite them.
package snapshot

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/muesli/reflow/ansi"
)

const GoldenDir = "testdata/golden"

var (
	csiRegex = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)
	oscRegex = regexp.MustCompile(`\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`)
)

type Snap struct {
	t         *testing.T
	goldenDir string
	update    bool
}

func New(t *testing.T) *Snap {
	return &Snap{
		t:         t,
		goldenDir: GoldenDir,
		update:    os.Getenv("UPDATE_GOLDEN") == "1",
	}
}

// WithDir overrides the golden directory.
func (s *Snap) WithDir(dir string) *Snap {
	s.goldenDir = dir
	return s
}

// Assert compares actual with <dir>/<name>.golden after Normalize.
func (s *Snap) Assert(name, actual string) {
	s.t.Helper()

	path := filepath.Join(s.goldenDir, name+".golden")
	got := Normalize(actual)

	if s.update {
		if err := os.MkdirAll(s.goldenDir, 0755); err != nil {
			s.t.Fatalf("create golden dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(got), 0644); err != nil {
			s.t.Fatalf("write golden file: %v", err)
		}
		s.t.Logf("updated %s", path)
		return
	}

	want, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.t.Fatalf("golden file %s not found; run with UPDATE_GOLDEN=1\nactual:\n%s", path, got)
		}
		s.t.Fatalf("read golden file: %v", err)
	}
	if string(want) != got {
		s.t.Errorf("snapshot %s mismatch\n--- want\n%s\n--- got\n%s", name, want, got)
	}
}

// Normalize strips escape sequences, CRLF and trailing blanks on each line.
func Normalize(s string) string {
	s = StripANSI(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

// StripANSI removes CSI and OSC sequences.
func StripANSI(s string) string {
	s = oscRegex.ReplaceAllString(s, "")
	return csiRegex.ReplaceAllString(s, "")
}

// Lines counts the lines of rendered output.
func Lines(s string) int {
	return len(strings.Split(s, "\n"))
}

// Width is the widest printable line, in cells.
func Width(s string) int {
	w := 0
	for _, line := range strings.Split(s, "\n") {
		w = max(w, ansi.PrintableRuneWidth(line))
	}
	return w
}
