package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/user/termcore/internal/api"
	"github.com/user/termcore/internal/config"
	"github.com/user/termcore/internal/db"
	"github.com/user/termcore/internal/hub"
	"github.com/user/termcore/internal/metrics"
	"github.com/user/termcore/internal/parser"
	"github.com/user/termcore/internal/pty"
	"github.com/user/termcore/internal/scrollback"
	"github.com/user/termcore/internal/server"
	"github.com/user/termcore/internal/terminal"
)

func run(parent context.Context, cfg *config.Config, stdin io.Reader, stdout io.Writer) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mets := metrics.New(reg)

	argv, err := cfg.Argv()
	if err != nil {
		return err
	}
	sess, err := pty.Open(pty.Options{
		Command:    argv,
		Dir:        cfg.Shell.Dir,
		Term:       cfg.Shell.Term,
		Cols:       cfg.Session.Cols,
		Rows:       cfg.Session.Rows,
		QueueDepth: cfg.Session.QueueDepth,
		Logger:     slog.Default(),
		Metrics:    mets,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Shutdown(); err != nil {
			slog.Warn("session shutdown", "error", err)
		}
	}()

	log := scrollback.New()
	termOpts := []terminal.Option{
		terminal.WithBatchBuffer(cfg.Session.BatchBuffer),
		terminal.WithMetrics(mets),
		terminal.WithLogger(slog.Default()),
	}

	var archive *db.DB
	if cfg.Transcript.Path != "" {
		archive, err = db.Open(ctx, cfg.Transcript.Path)
		if err != nil {
			return err
		}
		defer archive.Close()
		termOpts = append(termOpts, terminal.WithObserver(
			db.NewRecorder(context.WithoutCancel(ctx), db.NewTranscriptRepo(archive), sess.ID(), slog.Default()),
		))
	}

	var wsHub *hub.Hub
	if cfg.Server.Addr != "" {
		wsHub = hub.New(cfg.Server.Token, sess,
			hub.WithSnapshot(func() parser.Batch { return log.Tokens() }),
			hub.WithLogger(slog.Default()),
		)
		termOpts = append(termOpts, terminal.WithObserver(wsHub))
	}

	term := terminal.New(sess, log, termOpts...)

	if err := sess.Spawn(); err != nil {
		return err
	}
	if archive != nil {
		recordStart(ctx, archive, sess, argv)
		defer recordEnd(archive, sess.ID())
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// The shell exiting ends the whole run.
		defer cancel()
		if err := term.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return printUpdates(gctx, term, stdout)
	})

	if wsHub != nil {
		g.Go(func() error {
			wsHub.Run(gctx)
			return nil
		})
		srv := server.New(cfg.Server.Addr, http.HandlerFunc(wsHub.HandleWebSocket), api.NewRouter(sess, log, archive, cfg.Server.Token), reg, slog.Default())
		g.Go(func() error {
			return srv.Start(gctx)
		})
		printBanner(stdout, cfg)
	}

	// Reads from stdin cannot be interrupted, so this goroutine is left
	// outside the group.
	go forwardInput(stdin, sess)

	return g.Wait()
}

// forwardInput sends every stdin line to the shell and ends the shell's
// input with ^D at EOF.
func forwardInput(r io.Reader, sess *pty.Session) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := sess.Send([]byte(scanner.Text() + "\n")); err != nil {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("reading stdin", "error", err)
	}
	_ = sess.Send([]byte(pty.KeyBytes("C-d")))
}

// printUpdates writes newly appended scrollback text to w after each
// update, starting over when the scrollback was cleared.
func printUpdates(ctx context.Context, term *terminal.Terminal, w io.Writer) error {
	log := term.Log()
	var printed int
	var clears uint64
	flush := func() error {
		text := log.Text()
		if c := log.Clears(); c != clears || len(text) < printed {
			clears = c
			printed = 0
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if len(text) > printed {
			if _, err := io.WriteString(w, text[printed:]); err != nil {
				return err
			}
			printed = len(text)
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return flush()
		case <-term.Updates():
			if err := flush(); err != nil {
				return err
			}
		}
	}
}

func recordStart(ctx context.Context, archive *db.DB, sess *pty.Session, argv []string) {
	err := db.NewSessionRepo(archive).Create(ctx, &db.Session{
		ID:        sess.ID(),
		Command:   strings.Join(argv, " "),
		SlavePath: sess.SlavePath(),
		Pid:       sess.Pid(),
	})
	if err != nil {
		slog.Error("recording session start failed", "error", err)
	}
}

func recordEnd(archive *db.DB, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.NewSessionRepo(archive).MarkEnded(ctx, id); err != nil {
		slog.Error("recording session end failed", "error", err)
	}
}
