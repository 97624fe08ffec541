// Package db stores session records and output transcripts in SQLite.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	busyTimeout  = 5 * time.Second
	readPoolSize = 4
)

// DB holds two pools on one SQLite file. Transcript appends run on the
// single-connection writer; API reads use the reader pool, which WAL mode
// lets proceed while a write is in progress.
type DB struct {
	write *sql.DB
	read  *sql.DB
}

func Open(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %q: %w", dir, err)
	}

	write, err := openPool(ctx, path, false, 1)
	if err != nil {
		return nil, err
	}
	var mode string
	if err := write.QueryRowContext(ctx, `PRAGMA journal_mode = WAL`).Scan(&mode); err != nil {
		_ = write.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := RunMigrations(ctx, write); err != nil {
		_ = write.Close()
		return nil, err
	}

	read, err := openPool(ctx, path, true, readPoolSize)
	if err != nil {
		_ = write.Close()
		return nil, err
	}

	return &DB{write: write, read: read}, nil
}

// openPool applies the per-connection pragmas through the DSN so every
// connection the pool creates gets them, not only the first.
func openPool(ctx context.Context, path string, readOnly bool, size int) (*sql.DB, error) {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	if readOnly {
		q.Add("_pragma", "query_only(1)")
	}
	dsn := path + "?" + q.Encode()

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %q: %w", path, err)
	}
	conn.SetMaxOpenConns(size)
	conn.SetMaxIdleConns(size)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// SQL returns the writer pool.
func (d *DB) SQL() *sql.DB {
	return d.write
}

// ReadSQL returns the read-only pool.
func (d *DB) ReadSQL() *sql.DB {
	return d.read
}

func (d *DB) Close() error {
	if d == nil {
		return nil
	}
	var firstErr error
	for _, conn := range []*sql.DB{d.read, d.write} {
		if conn == nil {
			continue
		}
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
