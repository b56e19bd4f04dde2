// Package store defines the pluggable persistence boundary the core
// consumes: four operations (read/create/update/delete) over an opaque
// task row. Backends live in subpackages (postgres, sqlite, redisstore,
// memstore); none of them is assumed by the core.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Update when the row no longer exists.
var ErrNotFound = errors.New("store: task not found")

// Row is the persisted representation of a TaskMetaData. It intentionally
// holds only primitive/standard-library types (no *queue.Queue, no
// handler reference) so that every backend can marshal it without
// depending on the rest of the core; task.FromRow/ToRow bridge it to the
// in-memory TaskMetaData.
type Row struct {
	ID            string
	Queue         string
	Data          string
	RunAt         *time.Time
	InitialRunAt  *time.Time
	ExpireAt      *time.Time
	LastFailAt    *time.Time
	LastError     *string
	Attempts      int
}

// Store is the persistence boundary the worker and manager consume. No
// transactional guarantees are required beyond per-call atomicity; the
// core's safety is attempt-idempotent (at-least-once execution). Multiple
// workers may issue calls against the same backend concurrently —
// implementations choose their own locking, if any.
type Store interface {
	// Read returns candidate rows for queueName, capped at limit. The
	// store MAY pre-filter on run_at <= now and queue; the worker
	// tolerates a broader result set and filters again itself.
	Read(ctx context.Context, queueName string, limit int) ([]Row, error)

	// Create persists a new row and returns it with ID assigned.
	Create(ctx context.Context, row Row) (Row, error)

	// Update overwrites every mutable field of an existing row.
	Update(ctx context.Context, row Row) error

	// Delete removes a row by ID. Deleting a non-existent ID is not an
	// error (idempotent under at-least-once retry of the delete itself).
	Delete(ctx context.Context, id string) error
}
