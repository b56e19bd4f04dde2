// Package postgres implements store.Store over PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procrastinator/procrastinator/internal/store"
)

// Store implements store.Store using a pgxpool.Pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an already-connected pool. Migrations are the caller's
// responsibility (run golang-migrate against Migrations before handing
// the pool to NewStore), mirroring the teacher's migrate-then-serve
// sequence in cmd/server.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// GetPool returns the underlying connection pool, for tests.
func (s *Store) GetPool() *pgxpool.Pool {
	return s.pool
}

// Read returns up to limit rows for queueName with run_at <= now(),
// ordered by run_at ascending then id ascending.
func (s *Store) Read(ctx context.Context, queueName string, limit int) ([]store.Row, error) {
	const query = `
		SELECT id, queue, data, run_at, initial_run_at, expire_at, last_fail_at, last_error, attempts
		FROM tasks
		WHERE queue = $1 AND run_at IS NOT NULL AND run_at <= NOW()
		ORDER BY run_at ASC, id ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, queueName, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: read: %w", err)
	}
	defer rows.Close()

	var result []store.Row
	for rows.Next() {
		var id int64
		row := store.Row{}
		if err := rows.Scan(&id, &row.Queue, &row.Data, &row.RunAt, &row.InitialRunAt, &row.ExpireAt, &row.LastFailAt, &row.LastError, &row.Attempts); err != nil {
			return nil, fmt.Errorf("postgres store: read: scan: %w", err)
		}
		row.ID = fmt.Sprintf("%d", id)
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: read: %w", err)
	}
	return result, nil
}

// Create inserts row and returns it with its assigned id.
func (s *Store) Create(ctx context.Context, row store.Row) (store.Row, error) {
	const query = `
		INSERT INTO tasks (queue, data, run_at, initial_run_at, expire_at, last_fail_at, last_error, attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		row.Queue, row.Data, row.RunAt, row.InitialRunAt, row.ExpireAt, row.LastFailAt, row.LastError, row.Attempts,
	).Scan(&id)
	if err != nil {
		return store.Row{}, fmt.Errorf("postgres store: create: %w", err)
	}

	row.ID = fmt.Sprintf("%d", id)
	s.insertHistory(ctx, row.ID, row.Queue, "queued", nil)
	return row, nil
}

// Update overwrites every mutable column of the row matching row.ID.
func (s *Store) Update(ctx context.Context, row store.Row) error {
	const query = `
		UPDATE tasks
		SET data = $1, run_at = $2, initial_run_at = $3, expire_at = $4,
		    last_fail_at = $5, last_error = $6, attempts = $7
		WHERE id = $8
	`

	result, err := s.pool.Exec(ctx, query,
		row.Data, row.RunAt, row.InitialRunAt, row.ExpireAt, row.LastFailAt, row.LastError, row.Attempts, row.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres store: update: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	// Every Update in this codebase follows a failed attempt (success
	// deletes the row instead); the outcome is recoverable from the row
	// itself. A row that still has a run_at was rescheduled for retry,
	// so it logs both the failure and the retry; a row with no run_at
	// left is terminal.
	if row.RunAt == nil {
		s.insertHistory(ctx, row.ID, row.Queue, "final_failed", row.LastError)
	} else {
		s.insertHistory(ctx, row.ID, row.Queue, "failed", row.LastError)
		s.insertHistory(ctx, row.ID, row.Queue, "retry_scheduled", nil)
	}
	return nil
}

// Delete removes the row with id. Deleting a non-existent id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	queueName := s.queueNameFor(ctx, id)

	const query = `DELETE FROM tasks WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("postgres store: delete: %w", err)
	}

	if queueName != "" {
		s.insertHistory(ctx, id, queueName, "succeeded", nil)
	}
	return nil
}

// queueNameFor looks up id's queue before it's deleted, purely so the
// history row Delete writes can be tagged with it. A lookup failure is
// swallowed (logged) rather than blocking the delete — task_history is
// observability, not part of the state machine.
func (s *Store) queueNameFor(ctx context.Context, id string) string {
	var queueName string
	err := s.pool.QueryRow(ctx, `SELECT queue FROM tasks WHERE id = $1`, id).Scan(&queueName)
	if err != nil {
		slog.Debug("postgres store: could not resolve queue for history on delete", "task_id", id, "error", err)
		return ""
	}
	return queueName
}

// insertHistory records one task_history row. Best-effort: a failure here
// is logged and never returned to the caller, since it must never fail
// the task transition it accompanies.
func (s *Store) insertHistory(ctx context.Context, taskID, queueName, transition string, detail *string) {
	const query = `INSERT INTO task_history (task_id, queue, transition, detail) VALUES ($1, $2, $3, $4)`
	if _, err := s.pool.Exec(ctx, query, taskID, queueName, transition, detail); err != nil {
		slog.Warn("postgres store: failed to record task history",
			"task_id", taskID, "queue", queueName, "transition", transition, "error", err)
	}
}
