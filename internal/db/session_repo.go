package db

import (
	"context"
	"database/sql"
	"fmt"
)

type SessionRepo struct {
	db   *sql.DB
	read *sql.DB
}

func NewSessionRepo(d *DB) *SessionRepo {
	return &SessionRepo{db: d.SQL(), read: d.ReadSQL()}
}

func (r *SessionRepo) Create(ctx context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = nowUTC()
	}
	if session.Status == "" {
		session.Status = SessionRunning
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (id, command, slave_path, pid, status, started_at, ended_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, session.ID, session.Command, session.SlavePath, session.Pid, session.Status, formatTimestamp(session.StartedAt), formatTimestampOrEmpty(session.EndedAt))
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*Session, error) {
	var s Session
	var startedAtRaw, endedAtRaw string

	err := r.read.QueryRowContext(ctx, `
SELECT id, command, slave_path, pid, status, started_at, ended_at
FROM sessions
WHERE id = ?
`, id).Scan(&s.ID, &s.Command, &s.SlavePath, &s.Pid, &s.Status, &startedAtRaw, &endedAtRaw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session %q: %w", id, err)
	}

	s.StartedAt, err = parseTimestamp(startedAtRaw)
	if err != nil {
		return nil, err
	}
	s.EndedAt, err = parseOptionalTimestamp(endedAtRaw)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// MarkEnded records the end of a session. Ending an unknown session is an
// error.
func (r *SessionRepo) MarkEnded(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE sessions SET status = ?, ended_at = ? WHERE id = ?
`, SessionEnded, formatTimestamp(nowUTC()), id)
	if err != nil {
		return fmt.Errorf("failed to end session %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to end session %q: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("session %q not found", id)
	}
	return nil
}

func (r *SessionRepo) List(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.read.QueryContext(ctx, `
SELECT id, command, slave_path, pid, status, started_at, ended_at
FROM sessions
ORDER BY started_at DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		var s Session
		var startedAtRaw, endedAtRaw string
		if err := rows.Scan(&s.ID, &s.Command, &s.SlavePath, &s.Pid, &s.Status, &startedAtRaw, &endedAtRaw); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if s.StartedAt, err = parseTimestamp(startedAtRaw); err != nil {
			return nil, err
		}
		if s.EndedAt, err = parseOptionalTimestamp(endedAtRaw); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return out, nil
}
