// Package memstore is an in-memory store.Store, sufficient for tests and
// single-process experimentation. It holds no data across process restarts.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/procrastinator/procrastinator/internal/store"
)

// Store is a mutex-guarded map keyed by row ID. IDs are assigned as an
// incrementing counter scoped to the store instance.
type Store struct {
	mu     sync.Mutex
	rows   map[string]store.Row
	nextID int64
}

// New constructs an empty Store.
func New() *Store {
	return &Store{rows: make(map[string]store.Row)}
}

// Read returns every row for queueName with a non-nil run_at not after
// now, ordered by run_at ascending, capped at limit.
func (s *Store) Read(ctx context.Context, queueName string, limit int) ([]store.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var matched []store.Row
	for _, row := range s.rows {
		if row.Queue != queueName {
			continue
		}
		if row.RunAt == nil || row.RunAt.After(now) {
			continue
		}
		matched = append(matched, row)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].RunAt.Before(*matched[j].RunAt)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Create assigns row an ID (if it doesn't already have one) and stores it.
func (s *Store) Create(ctx context.Context, row store.Row) (store.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row.ID == "" {
		s.nextID++
		row.ID = fmt.Sprintf("%d", s.nextID)
	}
	s.rows[row.ID] = row
	return row, nil
}

// Update overwrites the row with a matching ID.
func (s *Store) Update(ctx context.Context, row store.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[row.ID]; !ok {
		return store.ErrNotFound
	}
	s.rows[row.ID] = row
	return nil
}

// Delete removes the row with id, if present.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rows, id)
	return nil
}

// Len reports the number of rows currently held, for test assertions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
