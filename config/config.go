package config

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"claude-ptyhost/log"
)

const (
	ConfigFileName = "config.json"
	MarkerFileName = "session-update.json"

	defaultProgram       = "claude"
	defaultResumeFlag    = "--resume"
	defaultSessionIDFlag = "--session-id"
	defaultEmulator      = "vt10x"
	defaultListenAddr    = "127.0.0.1:7681"

	defaultResumeDetectWindowMs = 2000
	defaultStopGracePeriodMs    = 3000
	defaultRenderDebounceMs     = 16
	defaultMarkerMaxAgeMs       = 30000
)

// GetConfigDir returns the per-user configuration directory.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config home directory: %w", err)
	}
	return filepath.Join(homeDir, ".claude-ptyhost"), nil
}

// Config represents the application configuration
type Config struct {
	// DefaultProgram is the command started in new sessions.
	DefaultProgram string `json:"default_program"`
	// DefaultArgs are passed before any resume or session id flags.
	DefaultArgs []string `json:"default_args,omitempty"`
	// ResumeFlag and SessionIDFlag are the wrapped CLI's flags for resuming a
	// conversation and for starting one with a caller supplied id.
	ResumeFlag    string `json:"resume_flag"`
	SessionIDFlag string `json:"session_id_flag"`
	// ResumeDetectWindowMs is how long output of a resumed session is held back
	// while waiting for a "session not found" failure.
	ResumeDetectWindowMs int `json:"resume_detect_window_ms"`
	// StopGracePeriodMs is the wait between SIGTERM and SIGKILL.
	StopGracePeriodMs int `json:"stop_grace_period_ms"`
	RenderDebounceMs  int `json:"render_debounce_ms"`
	// MarkerPath overrides the session-update marker location.
	MarkerPath     string `json:"marker_path,omitempty"`
	MarkerMaxAgeMs int    `json:"marker_max_age_ms"`
	// Emulator selects the terminal core: "vt10x" or "vt100".
	Emulator   string `json:"emulator"`
	ListenAddr string `json:"listen_addr"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	program, err := GetClaudeCommand()
	if err != nil {
		log.ErrorLog.Printf("failed to get claude command: %v", err)
		program = defaultProgram
	}

	return &Config{
		DefaultProgram:       program,
		ResumeFlag:           defaultResumeFlag,
		SessionIDFlag:        defaultSessionIDFlag,
		ResumeDetectWindowMs: defaultResumeDetectWindowMs,
		StopGracePeriodMs:    defaultStopGracePeriodMs,
		RenderDebounceMs:     defaultRenderDebounceMs,
		MarkerMaxAgeMs:       defaultMarkerMaxAgeMs,
		Emulator:             defaultEmulator,
		ListenAddr:           defaultListenAddr,
	}
}

func msOr(ms, def int) time.Duration {
	if ms <= 0 {
		ms = def
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *Config) ResumeDetectWindow() time.Duration {
	return msOr(c.ResumeDetectWindowMs, defaultResumeDetectWindowMs)
}

func (c *Config) StopGracePeriod() time.Duration {
	return msOr(c.StopGracePeriodMs, defaultStopGracePeriodMs)
}

func (c *Config) RenderDebounce() time.Duration {
	return msOr(c.RenderDebounceMs, defaultRenderDebounceMs)
}

func (c *Config) MarkerMaxAge() time.Duration {
	return msOr(c.MarkerMaxAgeMs, defaultMarkerMaxAgeMs)
}

func (c *Config) GetResumeFlag() string {
	if c.ResumeFlag == "" {
		return defaultResumeFlag
	}
	return c.ResumeFlag
}

func (c *Config) GetSessionIDFlag() string {
	if c.SessionIDFlag == "" {
		return defaultSessionIDFlag
	}
	return c.SessionIDFlag
}

func (c *Config) GetEmulator() string {
	if c.Emulator == "" {
		return defaultEmulator
	}
	return c.Emulator
}

func (c *Config) GetListenAddr() string {
	if c.ListenAddr == "" {
		return defaultListenAddr
	}
	return c.ListenAddr
}

// GetMarkerPath returns the session-update marker location.
func (c *Config) GetMarkerPath() (string, error) {
	if c.MarkerPath != "" {
		return c.MarkerPath, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, MarkerFileName), nil
}

var aliasRegex = regexp.MustCompile(`(?:aliased to|->|=)\s*([^\s]+)`)

// GetClaudeCommand finds the "claude" command through the user's shell, which
// sees aliases, and then through PATH.
func GetClaudeCommand() (string, error) {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}

	var shellCmd string
	switch {
	case strings.Contains(shell, "zsh"):
		shellCmd = "source ~/.zshrc &>/dev/null || true; which claude"
	case strings.Contains(shell, "bash"):
		shellCmd = "source ~/.bashrc &>/dev/null || true; which claude"
	default:
		shellCmd = "which claude"
	}

	output, err := exec.Command(shell, "-c", shellCmd).Output()
	if err == nil {
		if path := strings.TrimSpace(string(output)); path != "" {
			if m := aliasRegex.FindStringSubmatch(path); len(m) > 1 {
				path = m[1]
			}
			return path, nil
		}
	}

	if claudePath, err := exec.LookPath("claude"); err == nil {
		return claudePath, nil
	}
	return "", fmt.Errorf("claude command not found in aliases or PATH")
}

// LoadConfig reads the config file, creating it with defaults when missing.
// A file that does not parse is backed up and replaced by defaults in memory.
func LoadConfig() *Config {
	configDir, err := GetConfigDir()
	if err != nil {
		log.ErrorLog.Printf("failed to get config directory: %v", err)
		return DefaultConfig()
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			defaultCfg := DefaultConfig()
			if saveErr := SaveConfig(defaultCfg); saveErr != nil {
				log.WarningLog.Printf("failed to save default config: %v", saveErr)
			}
			return defaultCfg
		}
		log.WarningLog.Printf("failed to get config file: %v", err)
		return DefaultConfig()
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		log.ErrorLog.Printf("failed to parse config file at %s: %v", configPath, err)
		backupPath := configPath + ".corrupt." + time.Now().Format("20060102-150405")
		if backupErr := os.WriteFile(backupPath, data, 0644); backupErr == nil {
			log.InfoLog.Printf("backed up corrupted config to: %s", backupPath)
		}
		return DefaultConfig()
	}
	return &config
}

// SaveConfig writes the configuration under the config directory.
func SaveConfig(config *Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(configDir, ConfigFileName), data, 0644)
}
