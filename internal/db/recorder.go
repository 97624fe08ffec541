package db

import (
	"context"
	"log/slog"

	"github.com/user/termcore/internal/parser"
)

// Recorder archives what a terminal delivers. It satisfies the terminal
// observer interface; storage errors are logged and never reach the caller.
type Recorder struct {
	ctx       context.Context
	repo      *TranscriptRepo
	sessionID string
	log       *slog.Logger
}

func NewRecorder(ctx context.Context, repo *TranscriptRepo, sessionID string, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		ctx:       ctx,
		repo:      repo,
		sessionID: sessionID,
		log:       log.With("component", "transcript", "session", sessionID),
	}
}

func (r *Recorder) Batch(batch parser.Batch) {
	if err := r.repo.AppendBatch(r.ctx, r.sessionID, batch); err != nil {
		r.log.Error("recording batch failed", "tokens", len(batch), "error", err)
	}
}

func (r *Recorder) Clear() {
	if err := r.repo.AppendClear(r.ctx, r.sessionID); err != nil {
		r.log.Error("recording clear failed", "error", err)
	}
}
