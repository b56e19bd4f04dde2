// Package queue defines the immutable per-queue configuration record.
package queue

import (
	"fmt"
	"strings"
	"time"
)

// HandlerFactory constructs a fresh handler instance for one task attempt.
// Each attempt gets a new instance; no state leaks between attempts.
type HandlerFactory func() any

const (
	defaultTimeout      = 1 * time.Hour
	defaultMaxAttempts  = 20
	defaultUpdatePeriod = 10 * time.Second
	defaultMaxTasks     = 10
)

// Queue is a validated, immutable configuration record. Once constructed
// with New it never changes; QueueWorker and TaskMetaData only ever hold a
// read-only reference to it.
type Queue struct {
	name         string
	handlerNew   HandlerFactory
	timeout      time.Duration
	maxAttempts  *int // nil means unbounded
	updatePeriod time.Duration
	maxTasks     int
}

// Option configures a Queue at construction time.
type Option func(*Queue)

// WithTimeout overrides the per-attempt wall-clock budget (default 1h).
func WithTimeout(d time.Duration) Option {
	return func(q *Queue) { q.timeout = d }
}

// WithMaxAttempts bounds the number of attempts before final_fail (default
// 20 when omitted). Use WithUnboundedAttempts for an unbounded queue.
func WithMaxAttempts(n int) Option {
	return func(q *Queue) { m := n; q.maxAttempts = &m }
}

// WithUnboundedAttempts marks the queue as never final_failing due to
// attempt count (expiry can still terminate it).
func WithUnboundedAttempts() Option {
	return func(q *Queue) { q.maxAttempts = nil }
}

// WithUpdatePeriod overrides the inter-tick poll interval (default 10s).
func WithUpdatePeriod(d time.Duration) Option {
	return func(q *Queue) { q.updatePeriod = d }
}

// WithMaxTasks overrides the per-tick concurrency cap (default 10).
func WithMaxTasks(n int) Option {
	return func(q *Queue) { q.maxTasks = n }
}

// New validates and constructs a Queue. name is normalized: leading and
// trailing whitespace is dropped and every inner run of whitespace is
// collapsed to a single underscore. handlerNew must be non-nil and must
// itself be non-nil-returning (the latter is not checked here: a nil
// instance is rejected by handler.New as a MalformedTaskError when the
// worker builds a task from it).
func New(name string, handlerNew HandlerFactory, opts ...Option) (*Queue, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("queue: name must not be empty")
	}
	if handlerNew == nil {
		return nil, fmt.Errorf("queue %q: task_class (handler factory) must not be nil", name)
	}

	q := &Queue{
		name:         normalizeName(name),
		handlerNew:   handlerNew,
		timeout:      defaultTimeout,
		maxAttempts:  intPtr(defaultMaxAttempts),
		updatePeriod: defaultUpdatePeriod,
		maxTasks:     defaultMaxTasks,
	}
	for _, opt := range opts {
		opt(q)
	}

	if q.timeout < 0 {
		return nil, fmt.Errorf("queue %q: timeout must be >= 0, got %s", q.name, q.timeout)
	}
	if q.maxAttempts != nil && *q.maxAttempts <= 0 {
		return nil, fmt.Errorf("queue %q: max_attempts must be positive or unbounded, got %d", q.name, *q.maxAttempts)
	}
	if q.maxTasks <= 0 {
		return nil, fmt.Errorf("queue %q: max_tasks must be positive, got %d", q.name, q.maxTasks)
	}

	return q, nil
}

// normalizeName drops leading and trailing whitespace and collapses any
// inner run of whitespace to a single underscore. "queue name" and "queue  name" both normalize to "queue_name" — callers
// that need distinct queues must supply distinct normalized names.
func normalizeName(name string) string {
	fields := strings.Fields(name)
	return strings.Join(fields, "_")
}

func intPtr(n int) *int { return &n }

// Name returns the normalized queue name.
func (q *Queue) Name() string { return q.name }

// NewHandler constructs a fresh handler instance for one attempt.
func (q *Queue) NewHandler() any { return q.handlerNew() }

// Timeout returns the per-attempt wall-clock budget.
func (q *Queue) Timeout() time.Duration { return q.timeout }

// MaxAttempts returns the bounded attempt limit, or nil if unbounded.
func (q *Queue) MaxAttempts() *int { return q.maxAttempts }

// UpdatePeriod returns the inter-tick poll interval.
func (q *Queue) UpdatePeriod() time.Duration { return q.updatePeriod }

// MaxTasks returns the per-tick concurrency cap.
func (q *Queue) MaxTasks() int { return q.maxTasks }
