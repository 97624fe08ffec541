package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/termcore/internal/config"
	"github.com/user/termcore/internal/db"
	"github.com/user/termcore/internal/parser"
	"github.com/user/termcore/internal/pty"
	"github.com/user/termcore/internal/terminal"
)

type idleSource struct{ done chan struct{} }

func (s *idleSource) SetOutputCallback(pty.OutputFunc) {}
func (s *idleSource) Done() <-chan struct{}            { return s.done }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForOutput(t *testing.T, out *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("output %q does not contain %q", out.String(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: warn\ntranscript:\n  path: /tmp/a.db\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := &cobra.Command{}
	var flags rootFlags
	flags.bind(cmd)
	if err := cmd.ParseFlags([]string{"--config", path, "--serve", "127.0.0.1:0", "--log-level", "debug"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Server.Addr != "127.0.0.1:0" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.Transcript.Path != "/tmp/a.db" {
		t.Fatalf("file value lost: %q", cfg.Transcript.Path)
	}
	if cfg.Server.Token == "" {
		t.Fatal("no token generated for the server")
	}
}

func TestLoadConfigRejectsBadLevel(t *testing.T) {
	cmd := &cobra.Command{}
	var flags rootFlags
	flags.bind(cmd)
	if err := cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "--log-level", "chatty"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if _, err := loadConfig(cmd, flags); err == nil {
		t.Fatal("loadConfig accepted an unknown level")
	}
}

func TestNewLoggerUsesJSONOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "info")
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("shown", "k", "v")
	if out := buf.String(); !strings.HasPrefix(out, "{") || !strings.Contains(out, `"msg":"shown"`) || strings.Contains(out, "hidden") {
		t.Fatalf("unexpected log output %q", out)
	}
}

func TestPrintUpdates(t *testing.T) {
	term := terminal.New(&idleSource{done: make(chan struct{})}, nil)
	out := &syncBuffer{}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- printUpdates(ctx, term, out) }()

	term.Apply(parser.Tokenize([]byte("one\r\n")))
	waitForOutput(t, out, "one\n")
	term.Apply(parser.Tokenize([]byte("\x1b[1mtwo")))
	waitForOutput(t, out, "one\ntwo")
	term.Apply(parser.Tokenize([]byte("\x1b[2Jthree")))
	waitForOutput(t, out, "one\ntwo\nthree")

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("printUpdates: %v", err)
	}
}

func TestRunEchoesAndRecords(t *testing.T) {
	cfg := config.Default()
	cfg.Shell.Command = "echo hello-run"
	cfg.Transcript.Path = filepath.Join(t.TempDir(), "termcore.db")

	out := &syncBuffer{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, cfg, strings.NewReader(""), out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "hello-run") {
		t.Fatalf("output %q does not contain hello-run", out.String())
	}

	archive, err := db.Open(context.Background(), cfg.Transcript.Path)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	defer archive.Close()

	sessions, err := db.NewSessionRepo(archive).List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Status != db.SessionEnded || sessions[0].Command != "echo hello-run" {
		t.Fatalf("sessions = %+v", sessions)
	}
	replay, err := db.NewTranscriptRepo(archive).Replay(context.Background(), sessions[0].ID)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if !strings.Contains(replay.String(), "hello-run") {
		t.Fatalf("replay = %q", replay.String())
	}
}

func TestConfigCommandPrintsExample(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "queue_depth: 64") {
		t.Fatalf("unexpected output %q", out.String())
	}
}
