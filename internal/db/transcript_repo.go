package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/user/termcore/internal/parser"
)

type TranscriptRepo struct {
	db   *sql.DB
	read *sql.DB
}

func NewTranscriptRepo(d *DB) *TranscriptRepo {
	return &TranscriptRepo{db: d.SQL(), read: d.ReadSQL()}
}

// AppendBatch stores every token of batch in order after the session's last
// event. An empty batch is a no-op.
func (r *TranscriptRepo) AppendBatch(ctx context.Context, sessionID string, batch parser.Batch) error {
	if len(batch) == 0 {
		return nil
	}
	events := make([]TranscriptEvent, 0, len(batch))
	for _, tok := range batch {
		events = append(events, TranscriptEvent{Kind: tok.Kind.String(), Content: tok.Content})
	}
	return r.append(ctx, sessionID, events)
}

func (r *TranscriptRepo) AppendClear(ctx context.Context, sessionID string) error {
	return r.append(ctx, sessionID, []TranscriptEvent{{Kind: EventClear}})
}

func (r *TranscriptRepo) append(ctx context.Context, sessionID string, events []TranscriptEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transcript transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var last int64
	if err := tx.QueryRowContext(ctx, `
SELECT COALESCE(MAX(seq), 0) FROM transcript_events WHERE session_id = ?
`, sessionID).Scan(&last); err != nil {
		return fmt.Errorf("failed to read transcript position: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO transcript_events (session_id, seq, kind, content, created_at)
VALUES (?, ?, ?, ?, ?)
`)
	if err != nil {
		return fmt.Errorf("failed to prepare transcript insert: %w", err)
	}
	defer stmt.Close()

	createdAt := formatTimestamp(nowUTC())
	for i, ev := range events {
		if _, err := stmt.ExecContext(ctx, sessionID, last+int64(i)+1, ev.Kind, ev.Content, createdAt); err != nil {
			return fmt.Errorf("failed to append transcript event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transcript events: %w", err)
	}
	return nil
}

func (r *TranscriptRepo) List(ctx context.Context, sessionID string) ([]TranscriptEvent, error) {
	rows, err := r.read.QueryContext(ctx, `
SELECT session_id, seq, kind, content, created_at
FROM transcript_events
WHERE session_id = ?
ORDER BY seq ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcript: %w", err)
	}
	defer rows.Close()

	var out []TranscriptEvent
	for rows.Next() {
		var ev TranscriptEvent
		var createdAtRaw string
		if err := rows.Scan(&ev.SessionID, &ev.Seq, &ev.Kind, &ev.Content, &createdAtRaw); err != nil {
			return nil, fmt.Errorf("failed to scan transcript event: %w", err)
		}
		if ev.CreatedAt, err = parseTimestamp(createdAtRaw); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transcript: %w", err)
	}
	return out, nil
}

// Replay rebuilds the tokens a scrollback would hold at the end of the
// recorded session: everything after the last clear.
func (r *TranscriptRepo) Replay(ctx context.Context, sessionID string) (parser.Batch, error) {
	events, err := r.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var out parser.Batch
	for _, ev := range events {
		if ev.Kind == EventClear {
			out = nil
			continue
		}
		kind, err := parser.ParseKind(ev.Kind)
		if err != nil {
			return nil, fmt.Errorf("transcript event %d: %w", ev.Seq, err)
		}
		out = append(out, parser.Token{Kind: kind, Content: ev.Content})
	}
	return out, nil
}
