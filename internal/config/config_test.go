package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/user/termcore/configs"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file error = %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
shell:
  command: "bash --norc"
  dir: /tmp
session:
  queue_depth: 8
  cols: 80
  rows: 24
log:
  level: debug
server:
  addr: 127.0.0.1:8765
transcript:
  path: /tmp/termcore.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Session.QueueDepth != 8 || cfg.Session.Cols != 80 || cfg.Session.Rows != 24 {
		t.Fatalf("session = %+v", cfg.Session)
	}
	if cfg.Session.BatchBuffer != 64 {
		t.Fatalf("BatchBuffer = %d, want default 64", cfg.Session.BatchBuffer)
	}
	if cfg.Shell.Term != "xterm-256color" {
		t.Fatalf("Term = %q, want default", cfg.Shell.Term)
	}
	if cfg.Server.Addr != "127.0.0.1:8765" || cfg.Transcript.Path != "/tmp/termcore.db" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	argv, err := cfg.Argv()
	if err != nil {
		t.Fatalf("Argv() error = %v", err)
	}
	if !reflect.DeepEqual(argv, []string{"bash", "--norc"}) {
		t.Fatalf("Argv() = %v", argv)
	}
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := writeConfig(t, "session: [unterminated\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() succeeded on invalid yaml")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero queue", func(c *Config) { c.Session.QueueDepth = 0 }},
		{"negative batch buffer", func(c *Config) { c.Session.BatchBuffer = -1 }},
		{"zero cols", func(c *Config) { c.Session.Cols = 0 }},
		{"bad quoting", func(c *Config) { c.Shell.Command = `bash "unterminated` }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("Validate() succeeded")
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"TERMCORE_SHELL_COMMAND":       "cat",
		"TERMCORE_SESSION_QUEUE_DEPTH": "3",
		"TERMCORE_SESSION_ROWS":        "50",
		"TERMCORE_LOG_LEVEL":           "warn",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatalf("applyEnv() error = %v", err)
	}
	if cfg.Shell.Command != "cat" || cfg.Session.QueueDepth != 3 || cfg.Session.Rows != 50 || cfg.Log.Level != "warn" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	env["TERMCORE_SESSION_COLS"] = "wide"
	if err := Default().applyEnv(lookup); err == nil {
		t.Fatal("applyEnv() accepted a non-numeric size")
	}
}

func TestLoadAppliesEnv(t *testing.T) {
	t.Setenv("TERMCORE_SERVER_TOKEN", "from-env")
	path := writeConfig(t, "server:\n  token: from-file\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Token != "from-env" {
		t.Fatalf("Token = %q, want from-env", cfg.Server.Token)
	}
}

func TestEnsureToken(t *testing.T) {
	cfg := Default()
	if err := cfg.EnsureToken(); err != nil {
		t.Fatalf("EnsureToken() error = %v", err)
	}
	if cfg.Server.Token != "" {
		t.Fatal("token generated without a server address")
	}

	cfg.Server.Addr = ":0"
	if err := cfg.EnsureToken(); err != nil {
		t.Fatalf("EnsureToken() error = %v", err)
	}
	if len(cfg.Server.Token) != 32 {
		t.Fatalf("token = %q, want 32 hex chars", cfg.Server.Token)
	}
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("DEBUG")
	if err != nil {
		t.Fatalf("ParseLevel() error = %v", err)
	}
	if l != slog.LevelDebug {
		t.Fatalf("ParseLevel() = %v", l)
	}
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	path := writeConfig(t, string(configs.Example))
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(example) error = %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("example config = %+v, want defaults %+v", cfg, Default())
	}
}
