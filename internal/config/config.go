// Package config loads termcore settings from a YAML file, the environment
// and built-in defaults.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/user/termcore/internal/pty"
	"github.com/user/termcore/internal/terminal"
)

const envPrefix = "TERMCORE_"

type Config struct {
	Shell      ShellConfig      `yaml:"shell"`
	Session    SessionConfig    `yaml:"session"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Transcript TranscriptConfig `yaml:"transcript"`
}

type ShellConfig struct {
	// Command is a shell command line; empty selects pty.DefaultCommand.
	Command string `yaml:"command"`
	Term    string `yaml:"term"`
	Dir     string `yaml:"dir"`
}

type SessionConfig struct {
	QueueDepth  int    `yaml:"queue_depth"`
	BatchBuffer int    `yaml:"batch_buffer"`
	Cols        uint16 `yaml:"cols"`
	Rows        uint16 `yaml:"rows"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type ServerConfig struct {
	// Addr enables the websocket and metrics listener when set.
	Addr  string `yaml:"addr"`
	Token string `yaml:"token"`
}

type TranscriptConfig struct {
	// Path of the SQLite archive; empty disables recording.
	Path string `yaml:"path"`
}

func Default() *Config {
	return &Config{
		Shell: ShellConfig{
			Term: pty.DefaultTerm,
		},
		Session: SessionConfig{
			QueueDepth:  pty.DefaultQueueDepth,
			BatchBuffer: terminal.DefaultBatchBuffer,
			Cols:        pty.DefaultCols,
			Rows:        pty.DefaultRows,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath is ~/.config/termcore/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "termcore", "config.yaml"), nil
}

// Load reads path on top of the defaults, then applies TERMCORE_*
// environment overrides and validates the result. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("invalid yaml in %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(envPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s value %q: %w", envPrefix, key, v, err)
		}
		*dst = n
		return nil
	}
	dimension := func(key string, dst *uint16) error {
		v, ok := lookup(envPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 16)
		if err != nil {
			return fmt.Errorf("invalid %s%s value %q: %w", envPrefix, key, v, err)
		}
		*dst = uint16(n)
		return nil
	}

	str("SHELL_COMMAND", &c.Shell.Command)
	str("SHELL_TERM", &c.Shell.Term)
	str("SHELL_DIR", &c.Shell.Dir)
	str("LOG_LEVEL", &c.Log.Level)
	str("SERVER_ADDR", &c.Server.Addr)
	str("SERVER_TOKEN", &c.Server.Token)
	str("TRANSCRIPT_PATH", &c.Transcript.Path)

	if err := integer("SESSION_QUEUE_DEPTH", &c.Session.QueueDepth); err != nil {
		return err
	}
	if err := integer("SESSION_BATCH_BUFFER", &c.Session.BatchBuffer); err != nil {
		return err
	}
	if err := dimension("SESSION_COLS", &c.Session.Cols); err != nil {
		return err
	}
	return dimension("SESSION_ROWS", &c.Session.Rows)
}

func (c *Config) Validate() error {
	if c.Session.QueueDepth < 1 {
		return fmt.Errorf("invalid session.queue_depth %d: must be positive", c.Session.QueueDepth)
	}
	if c.Session.BatchBuffer < 0 {
		return fmt.Errorf("invalid session.batch_buffer %d: must not be negative", c.Session.BatchBuffer)
	}
	if c.Session.Cols == 0 || c.Session.Rows == 0 {
		return fmt.Errorf("invalid window size %dx%d", c.Session.Cols, c.Session.Rows)
	}
	if _, err := c.Argv(); err != nil {
		return err
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Argv returns the child's argv for the configured command line.
func (c *Config) Argv() ([]string, error) {
	argv, err := pty.ParseCommand(c.Shell.Command)
	if err != nil {
		return nil, fmt.Errorf("invalid shell.command: %w", err)
	}
	if len(argv) == 0 {
		return pty.DefaultCommand(), nil
	}
	return argv, nil
}

// EnsureToken generates a server token when the listener is enabled
// without one.
func (c *Config) EnsureToken() error {
	if c.Server.Addr == "" || c.Server.Token != "" {
		return nil
	}
	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}
	c.Server.Token = token
	return nil
}

func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return l, fmt.Errorf("invalid log.level %q: %w", level, err)
	}
	return l, nil
}

func generateToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
