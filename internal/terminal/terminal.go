// Package terminal consumes the token stream of a PTY session: it moves
// batches off the reader goroutine, applies control signals and keeps the
// scrollback that renderers draw from.
package terminal

import (
	"context"
	"log/slog"
	"sync"

	"github.com/user/termcore/internal/metrics"
	"github.com/user/termcore/internal/parser"
	"github.com/user/termcore/internal/pty"
	"github.com/user/termcore/internal/scrollback"
)

// DefaultBatchBuffer is the reader-to-Run channel capacity without WithBatchBuffer.
const DefaultBatchBuffer = 64

// Source is the producing side of a terminal, normally a *pty.Session.
type Source interface {
	SetOutputCallback(fn pty.OutputFunc)
	Done() <-chan struct{}
}

// Observer is told about everything the terminal applies to its
// scrollback, in order. Calls happen on the goroutine running Run.
type Observer interface {
	// Batch receives the tokens appended to the scrollback. The slice is
	// not modified after the call and may be retained.
	Batch(b parser.Batch)
	// Clear is called after the scrollback was cleared.
	Clear()
}

type Option func(*Terminal)

// WithBatchBuffer sets the capacity of the channel between the session's
// reader and Run. The reader blocks while it is full.
func WithBatchBuffer(n int) Option {
	return func(t *Terminal) {
		if n > 0 {
			t.batches = make(chan parser.Batch, n)
		}
	}
}

func WithObserver(o Observer) Option {
	return func(t *Terminal) { t.observers = append(t.observers, o) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Terminal) { t.mets = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Terminal) { t.logger = l }
}

// Terminal owns a scrollback log fed from a Source.
type Terminal struct {
	src       Source
	log       *scrollback.Log
	batches   chan parser.Batch
	updates   chan struct{}
	observers []Observer
	mets      *metrics.Metrics
	logger    *slog.Logger

	stopped  chan struct{}
	stopOnce sync.Once
}

// New registers the terminal as src's output callback. Batches queue up
// until Run is started.
func New(src Source, log *scrollback.Log, opts ...Option) *Terminal {
	if log == nil {
		log = scrollback.New()
	}
	t := &Terminal{
		src:     src,
		log:     log,
		batches: make(chan parser.Batch, DefaultBatchBuffer),
		updates: make(chan struct{}, 1),
		stopped: make(chan struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "terminal")
	src.SetOutputCallback(t.deliver)
	return t
}

// Log returns the scrollback the terminal writes to.
func (t *Terminal) Log() *scrollback.Log { return t.log }

// Updates delivers a notification after every applied batch. Notifications
// coalesce: a slow reader sees one pending signal, not one per batch.
func (t *Terminal) Updates() <-chan struct{} { return t.updates }

// deliver runs on the session's reader goroutine.
func (t *Terminal) deliver(b parser.Batch) {
	select {
	case t.batches <- b:
	case <-t.stopped:
	}
}

// Run applies batches until ctx is cancelled or the source is done. When the
// source finishes first, batches already queued are applied before Run
// returns nil.
func (t *Terminal) Run(ctx context.Context) error {
	defer t.stop()
	t.logger.Debug("consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b := <-t.batches:
			t.Apply(b)
		case <-t.src.Done():
			t.drain()
			t.logger.Debug("source finished")
			return nil
		}
	}
}

func (t *Terminal) drain() {
	for {
		select {
		case b := <-t.batches:
			t.Apply(b)
		default:
			return
		}
	}
}

func (t *Terminal) stop() {
	t.stopOnce.Do(func() {
		close(t.stopped)
		t.src.SetOutputCallback(nil)
	})
}

// Apply processes one batch in order. Control tokens go through the
// dispatcher with the scrollback as signal target; a token that raises a
// signal is consumed, every other token is appended. Text preceding a clear
// in the same batch is appended first so observers see it.
func (t *Terminal) Apply(b parser.Batch) {
	var seg parser.Batch
	for _, tok := range b {
		if tok.Kind == parser.KindControl {
			raised := false
			parser.Dispatch(tok, func(sig parser.Signal) {
				t.flush(seg)
				seg = nil
				t.signal(sig)
				raised = true
			})
			if raised {
				continue
			}
		}
		seg = append(seg, tok)
	}
	t.flush(seg)

	select {
	case t.updates <- struct{}{}:
	default:
	}
}

func (t *Terminal) flush(seg parser.Batch) {
	if len(seg) == 0 {
		return
	}
	t.log.Append(seg)
	for _, tok := range seg {
		t.mets.ObserveToken(tok.Kind.String())
	}
	for _, o := range t.observers {
		o.Batch(seg)
	}
}

func (t *Terminal) signal(sig parser.Signal) {
	t.log.HandleSignal(sig)
	if sig != parser.ClearScreen {
		return
	}
	t.mets.ObserveClear()
	t.logger.Debug("screen cleared")
	for _, o := range t.observers {
		o.Clear()
	}
}
