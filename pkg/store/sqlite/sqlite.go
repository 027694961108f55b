// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlite implements store.TakeStore on an embedded SQLite database
// (modernc.org/sqlite, a CGo-free driver), for a single checkout's Take
// history. Given a file path DSN it is durable; an empty DSN opens an
// in-memory database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mkatychev/darkroom/pkg/store"

	_ "modernc.org/sqlite"
)

func init() {
	store.Providers.Register("sqlite", func(_ context.Context, params map[string]string) (store.TakeStore, error) {
		dsn := params["dsn"]
		if dsn == "" {
			dsn = ":memory:"
		}
		return New(dsn)
	})
}

var _ store.TakeStore = (*Store)(nil)

// Store is a SQLite-backed TakeStore.
type Store struct {
	db *sql.DB
}

// New opens dsn (a file path, or ":memory:") and ensures the takes table
// exists.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createTables() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS takes (
		id TEXT PRIMARY KEY,
		reel TEXT NOT NULL,
		frame TEXT NOT NULL,
		ordering TEXT NOT NULL,
		protocol TEXT NOT NULL,
		request TEXT NOT NULL DEFAULT 'null',
		response TEXT NOT NULL DEFAULT 'null',
		status INTEGER NOT NULL DEFAULT 0,
		passed INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 1,
		timestamp DATETIME NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("sqlite create tables: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_takes_reel_ts ON takes(reel, timestamp DESC)`)
	if err != nil {
		return fmt.Errorf("sqlite create index: %w", err)
	}
	return nil
}

// SaveTake inserts t, or replaces an existing row with the same ID.
func (s *Store) SaveTake(ctx context.Context, t *store.Take) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO takes (id, reel, frame, ordering, protocol, request, response, status, passed, error, attempts, timestamp)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   response=excluded.response, status=excluded.status,
		   passed=excluded.passed, error=excluded.error, attempts=excluded.attempts`,
		t.ID, t.Reel, t.Frame, t.Ordering, t.Protocol,
		string(t.Request), string(t.Response), t.Status, t.Passed, t.Error, t.Attempts, t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert take: %w", err)
	}
	return nil
}

// ListTakes returns Takes for reel, most recent first, up to limit (0 means
// unbounded).
func (s *Store) ListTakes(ctx context.Context, reel string, limit int) ([]*store.Take, error) {
	query := `SELECT id, reel, frame, ordering, protocol, request, response, status, passed, error, attempts, timestamp
		FROM takes WHERE reel = ? ORDER BY timestamp DESC`
	args := []any{reel}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list takes: %w", err)
	}
	defer rows.Close()

	var out []*store.Take
	for rows.Next() {
		var t store.Take
		var req, resp string
		var passed int
		if err := rows.Scan(&t.ID, &t.Reel, &t.Frame, &t.Ordering, &t.Protocol,
			&req, &resp, &t.Status, &passed, &t.Error, &t.Attempts, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan take: %w", err)
		}
		t.Request = []byte(req)
		t.Response = []byte(resp)
		t.Passed = passed != 0
		out = append(out, &t)
	}
	return out, rows.Err()
}

// Close closes the underlying database connection.
func (s *Store) Close(_ context.Context) error { return s.db.Close() }
