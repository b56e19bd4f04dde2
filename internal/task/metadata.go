package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/procrastinator/procrastinator/internal/queue"
	"github.com/procrastinator/procrastinator/internal/store"
)

// Outcome is the tag returned by Failure, naming which lifecycle hook the
// caller must now drive.
type Outcome string

const (
	// OutcomeNone means the task did not fail this tick (it ran
	// successfully, or was skipped/not runnable, or already terminal).
	OutcomeNone      Outcome = ""
	OutcomeFail      Outcome = "fail"
	OutcomeFinalFail Outcome = "final_fail"
)

// ToTimer is the "to_time" capability: any value exposing it is accepted
// wherever a time is expected, per the time coercion rule.
type ToTimer interface {
	ToTime() time.Time
}

// MetaData is the central entity: one in-memory record per persisted task
// row, and the single place that decides whether a task is runnable,
// retryable, expired, or terminal.
type MetaData struct {
	ID           string
	Queue        *queue.Queue
	Data         string
	RunAt        *time.Time
	InitialRunAt *time.Time
	ExpireAt     *time.Time
	LastFailAt   *time.Time
	LastError    *string
	Attempts     int
}

// New constructs a MetaData for a freshly submitted task. runAt and
// expireAt accept any of: nil, time.Time, an integer epoch in seconds, a
// textual ISO-8601 timestamp with offset, or a ToTimer. Any other shape
// fails construction with a descriptive error naming the offending type.
func New(id string, q *queue.Queue, data string, runAt, expireAt any) (*MetaData, error) {
	runAtT, err := coerceTime(runAt)
	if err != nil {
		return nil, fmt.Errorf("task: invalid run_at: %w", err)
	}
	expireAtT, err := coerceTime(expireAt)
	if err != nil {
		return nil, fmt.Errorf("task: invalid expire_at: %w", err)
	}
	if runAtT != nil && expireAtT != nil && runAtT.After(*expireAtT) {
		return nil, fmt.Errorf("task: run_at (%s) is later than expire_at (%s)", runAtT.Format(time.RFC3339), expireAtT.Format(time.RFC3339))
	}

	m := &MetaData{
		ID:       id,
		Queue:    q,
		Data:     data,
		RunAt:    runAtT,
		ExpireAt: expireAtT,
	}
	if runAtT != nil {
		initial := *runAtT
		m.InitialRunAt = &initial
	}
	return m, nil
}

// FromRow rebuilds a MetaData from a persisted Row, resolving the row's
// textual queue name against the caller's own queue config (a QueueWorker
// always knows its own queue, so no global name->Queue lookup is needed).
func FromRow(row store.Row, q *queue.Queue) *MetaData {
	return &MetaData{
		ID:           row.ID,
		Queue:        q,
		Data:         row.Data,
		RunAt:        row.RunAt,
		InitialRunAt: row.InitialRunAt,
		ExpireAt:     row.ExpireAt,
		LastFailAt:   row.LastFailAt,
		LastError:    row.LastError,
		Attempts:     row.Attempts,
	}
}

// ToRow serializes m to its persisted representation. Queue is rendered
// as its textual name (not a symbol/pointer) so naive persistence layers
// round-trip it without needing to know about *queue.Queue.
func (m *MetaData) ToRow() store.Row {
	return store.Row{
		ID:           m.ID,
		Queue:        m.Queue.Name(),
		Data:         m.Data,
		RunAt:        m.RunAt,
		InitialRunAt: m.InitialRunAt,
		ExpireAt:     m.ExpireAt,
		LastFailAt:   m.LastFailAt,
		LastError:    m.LastError,
		Attempts:     m.Attempts,
	}
}

// Runnable reports whether the task is due: run_at is set and not after now.
func (m *MetaData) Runnable(now time.Time) bool {
	return m.RunAt != nil && !m.RunAt.After(now)
}

// Expired reports whether the task is past its expiry deadline.
func (m *MetaData) Expired(now time.Time) bool {
	return m.ExpireAt != nil && !m.ExpireAt.After(now)
}

// AttemptsLeft reports whether another attempt is permitted under the
// queue's max_attempts (unbounded queues always return true).
func (m *MetaData) AttemptsLeft() bool {
	max := m.Queue.MaxAttempts()
	return max == nil || m.Attempts < *max
}

// Retryable reports whether a failed task should be rescheduled rather
// than finally failed: not expired, and attempts remain.
func (m *MetaData) Retryable(now time.Time) bool {
	return !m.Expired(now) && m.AttemptsLeft()
}

// Successful reports whether the most recently completed attempt
// succeeded. It requires at least one attempt to have been made, unless
// the task has since expired (in which case it is simply not successful).
func (m *MetaData) Successful(now time.Time) (bool, error) {
	if m.Attempts < 1 {
		if m.Expired(now) {
			return false, nil
		}
		return false, errors.New("cannot check for success before running")
	}
	if m.Expired(now) {
		return false, nil
	}
	return m.LastFailAt == nil, nil
}

// AddAttempt increments the attempt count, refusing to exceed a bounded
// queue's max_attempts.
func (m *MetaData) AddAttempt() error {
	max := m.Queue.MaxAttempts()
	if max != nil && m.Attempts+1 > *max {
		return &AttemptsExhaustedError{Attempts: m.Attempts, MaxAttempts: *max}
	}
	m.Attempts++
	return nil
}

// Failure records a failed attempt and returns the lifecycle tag the
// caller must now drive (fail or final_fail). now is the failure time.
func (m *MetaData) Failure(cause error, now time.Time) Outcome {
	failAt := now
	m.LastFailAt = &failAt

	if m.Retryable(now) {
		msg := "Task failed: " + errorTrace(cause)
		m.LastError = &msg
		_ = m.Reschedule() // backoff path; run_at is non-nil since the task just ran
		return OutcomeFail
	}

	var msg string
	if m.Expired(now) {
		msg = "Task expired: " + errorTrace(cause)
	} else {
		msg = "Task failed too many times: " + errorTrace(cause)
	}
	m.LastError = &msg
	m.RunAt = nil
	return OutcomeFinalFail
}

// errorTrace renders an error's message together with its unwrap chain,
// newline-joined, standing in for a backtrace where Go has none.
func errorTrace(err error) string {
	msg := err.Error()
	trace := msg
	for wrapped := errors.Unwrap(err); wrapped != nil; wrapped = errors.Unwrap(wrapped) {
		trace += "\n" + wrapped.Error()
	}
	return trace
}

// RescheduleOption configures a Reschedule call.
type RescheduleOption func(*rescheduleOpts)

type rescheduleOpts struct {
	runAt      *time.Time
	runAtSet   bool
	expireAt   *time.Time
	expireAtSet bool
}

// WithRunAt supplies an explicit new run_at (the "user reschedule" path).
func WithRunAt(t time.Time) RescheduleOption {
	return func(o *rescheduleOpts) { o.runAt = &t; o.runAtSet = true }
}

// WithExpireAt supplies an explicit new expire_at.
func WithExpireAt(t time.Time) RescheduleOption {
	return func(o *rescheduleOpts) { o.expireAt = &t; o.expireAtSet = true }
}

// Reschedule moves the task's run_at forward. With no options, it
// computes the exponential retry delay from the existing run_at:
// new_run_at = run_at + 30 + attempts^4 seconds, leaving attempts and
// failure fields untouched. With WithRunAt, it performs a user
// reschedule: validates the new run_at against the effective expire_at,
// then resets attempts/last_error/last_fail_at and rewrites
// initial_run_at. With only WithExpireAt, it updates expire_at alone.
func (m *MetaData) Reschedule(opts ...RescheduleOption) error {
	var o rescheduleOpts
	for _, opt := range opts {
		opt(&o)
	}

	switch {
	case !o.runAtSet && !o.expireAtSet:
		return m.rescheduleBackoff()
	case o.runAtSet:
		return m.rescheduleUser(o)
	default:
		m.ExpireAt = o.expireAt
		return nil
	}
}

func (m *MetaData) rescheduleBackoff() error {
	if m.RunAt == nil {
		return fmt.Errorf("task: cannot compute retry backoff with a nil run_at")
	}
	delaySeconds := 30 + pow4(m.Attempts)
	newRunAt := m.RunAt.Add(time.Duration(delaySeconds) * time.Second)
	m.RunAt = &newRunAt
	return nil
}

func (m *MetaData) rescheduleUser(o rescheduleOpts) error {
	effectiveExpire := m.ExpireAt
	if o.expireAtSet {
		effectiveExpire = o.expireAt
	}
	if effectiveExpire != nil && o.runAt.After(*effectiveExpire) {
		return fmt.Errorf("task: new run_at (%s) is later than existing expire_at (%s)",
			o.runAt.Format(time.RFC3339), effectiveExpire.Format(time.RFC3339))
	}

	runAt := *o.runAt
	m.RunAt = &runAt
	initial := *o.runAt
	m.InitialRunAt = &initial
	if o.expireAtSet {
		m.ExpireAt = o.expireAt
	}
	m.Attempts = 0
	m.LastError = nil
	m.LastFailAt = nil
	return nil
}

func pow4(n int) int {
	return n * n * n * n
}

// coerceTime implements the time coercion rule: an absolute timestamp, an
// integer epoch in seconds, a textual ISO-8601 timestamp with offset, or
// any value exposing ToTimer, is normalized to an absolute timestamp. nil
// is preserved.
func coerceTime(v any) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		tt := t
		return &tt, nil
	case *time.Time:
		return t, nil
	case int:
		tt := time.Unix(int64(t), 0).UTC()
		return &tt, nil
	case int64:
		tt := time.Unix(t, 0).UTC()
		return &tt, nil
	case string:
		tt, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %q (string) to a time: %w", t, err)
		}
		return &tt, nil
	case ToTimer:
		tt := t.ToTime()
		return &tt, nil
	default:
		return nil, fmt.Errorf("cannot coerce value of type %T (%v) to a time", v, v)
	}
}
