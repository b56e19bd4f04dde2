// Package sqlite implements store.Store over database/sql using the
// pure-Go modernc.org/sqlite driver (no cgo, no system SQLite needed) —
// suited to local development and single-binary deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/procrastinator/procrastinator/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	queue          TEXT NOT NULL,
	data           TEXT NOT NULL DEFAULT '',
	run_at         DATETIME,
	initial_run_at DATETIME,
	expire_at      DATETIME,
	last_fail_at   DATETIME,
	last_error     TEXT,
	attempts       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_tasks_queue_run_at ON tasks (queue, run_at);
`

// Store implements store.Store over a *sql.DB opened with the "sqlite"
// driver.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// applies the schema. path may be ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying *sql.DB.
func (s *Store) Close() error { return s.db.Close() }

// Read returns up to limit rows for queueName with run_at <= now, ordered
// by run_at ascending then id ascending.
func (s *Store) Read(ctx context.Context, queueName string, limit int) ([]store.Row, error) {
	const query = `
		SELECT id, queue, data, run_at, initial_run_at, expire_at, last_fail_at, last_error, attempts
		FROM tasks
		WHERE queue = ? AND run_at IS NOT NULL AND run_at <= CURRENT_TIMESTAMP
		ORDER BY run_at ASC, id ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, queueName, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: read: %w", err)
	}
	defer rows.Close()

	var result []store.Row
	for rows.Next() {
		var id int64
		row := store.Row{}
		if err := rows.Scan(&id, &row.Queue, &row.Data, &row.RunAt, &row.InitialRunAt, &row.ExpireAt, &row.LastFailAt, &row.LastError, &row.Attempts); err != nil {
			return nil, fmt.Errorf("sqlite store: read: scan: %w", err)
		}
		row.ID = fmt.Sprintf("%d", id)
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: read: %w", err)
	}
	return result, nil
}

// Create inserts row and returns it with its assigned id.
func (s *Store) Create(ctx context.Context, row store.Row) (store.Row, error) {
	const query = `
		INSERT INTO tasks (queue, data, run_at, initial_run_at, expire_at, last_fail_at, last_error, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		row.Queue, row.Data, row.RunAt, row.InitialRunAt, row.ExpireAt, row.LastFailAt, row.LastError, row.Attempts,
	)
	if err != nil {
		return store.Row{}, fmt.Errorf("sqlite store: create: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return store.Row{}, fmt.Errorf("sqlite store: create: %w", err)
	}

	row.ID = fmt.Sprintf("%d", id)
	return row, nil
}

// Update overwrites every mutable column of the row matching row.ID.
func (s *Store) Update(ctx context.Context, row store.Row) error {
	const query = `
		UPDATE tasks
		SET data = ?, run_at = ?, initial_run_at = ?, expire_at = ?,
		    last_fail_at = ?, last_error = ?, attempts = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		row.Data, row.RunAt, row.InitialRunAt, row.ExpireAt, row.LastFailAt, row.LastError, row.Attempts, row.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite store: update: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite store: update: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete removes the row with id. Deleting a non-existent id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM tasks WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("sqlite store: delete: %w", err)
	}
	return nil
}
