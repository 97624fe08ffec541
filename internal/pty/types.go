package pty

import (
	"log/slog"
	"time"

	"github.com/user/termcore/internal/metrics"
	"github.com/user/termcore/internal/parser"
)

const (
	// ChunkSize is the read buffer capacity. One byte is reserved, so a
	// single read delivers at most ChunkSize-1 bytes.
	ChunkSize = 256

	DefaultQueueDepth = 64
	DefaultCols       = 120
	DefaultRows       = 30
	DefaultTerm       = "xterm-256color"
	DefaultKillGrace  = 2 * time.Second
)

// OutputFunc receives the batch tokenized from one read. It runs on the
// reader goroutine; a slow OutputFunc delays the next read.
type OutputFunc func(batch parser.Batch)

// Options configures a Session. Zero values fall back to defaults.
type Options struct {
	// Command is the argv of the child. Empty means DefaultCommand().
	Command []string
	Dir     string
	// Env is appended to the parent's environment.
	Env  []string
	Term string

	Cols uint16
	Rows uint16

	// QueueDepth bounds the outbound queue; Send blocks while it is full.
	QueueDepth int

	// KillGrace is how long Shutdown waits for the child to exit after
	// SIGHUP before it kills the child's process group.
	KillGrace time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if len(o.Command) == 0 {
		o.Command = DefaultCommand()
	}
	if o.Term == "" {
		o.Term = DefaultTerm
	}
	if o.Cols == 0 {
		o.Cols = DefaultCols
	}
	if o.Rows == 0 {
		o.Rows = DefaultRows
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = DefaultQueueDepth
	}
	if o.KillGrace <= 0 {
		o.KillGrace = DefaultKillGrace
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
