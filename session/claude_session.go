package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ErrClaudeProjectNotFound means Claude has never run in the directory.
var ErrClaudeProjectNotFound = errors.New("claude project directory not found")

// ErrNoSessionFiles means the project directory holds no conversations.
var ErrNoSessionFiles = errors.New("no session files found")

var projectDirRegex = regexp.MustCompile(`[^a-zA-Z0-9]`)

// ExtractClaudeSessionID returns the id of the most recently written Claude
// conversation for cwd, read from ~/.claude/projects/<mangled cwd>/*.jsonl.
func ExtractClaudeSessionID(cwd string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	projectDir := filepath.Join(homeDir, ".claude", "projects", claudeProjectDir(cwd))

	entries, err := os.ReadDir(projectDir)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrClaudeProjectNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read project directory: %w", err)
	}

	type candidate struct {
		name    string
		modTime time.Time
	}
	var files []candidate
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".jsonl") || strings.HasPrefix(name, "agent-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{name, info.ModTime()})
	}
	if len(files) == 0 {
		return "", ErrNoSessionFiles
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})
	return sessionIDFromJSONL(filepath.Join(projectDir, files[0].name))
}

// claudeProjectDir mangles a path the way Claude names its project
// directories: every character other than a letter or digit becomes '-'.
func claudeProjectDir(path string) string {
	return projectDirRegex.ReplaceAllString(path, "-")
}

func sessionIDFromJSONL(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open session file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line struct {
			SessionID string `json:"sessionId"`
		}
		if json.Unmarshal(scanner.Bytes(), &line) != nil {
			continue
		}
		if line.SessionID != "" {
			return line.SessionID, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("error reading session file: %w", err)
	}
	return "", fmt.Errorf("no session ID found in file: %s", path)
}
