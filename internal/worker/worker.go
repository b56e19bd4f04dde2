package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/procrastinator/procrastinator/internal/handler"
	"github.com/procrastinator/procrastinator/internal/metrics"
	"github.com/procrastinator/procrastinator/internal/queue"
	"github.com/procrastinator/procrastinator/internal/store"
	"github.com/procrastinator/procrastinator/internal/task"
)

// QueueWorker polls a single queue's store rows and drives each due task
// through its handler hooks. It is internally sequential: tasks within one
// tick run one after another, in the order the store returns them.
type QueueWorker struct {
	// WorkerID identifies this QueueWorker instance in log fields, so
	// operators can tell two workers bound to the same queue name (e.g.
	// across a restart) apart.
	WorkerID string

	Queue     *queue.Queue
	Store     store.Store
	Logger    *slog.Logger
	Container any
	Scheduler handler.Scheduler
	Metrics   *metrics.Registry

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWorker constructs a QueueWorker. logger must not be nil: every attempt
// is driven through a LoggedTask, which rejects a nil logger itself.
func NewWorker(q *queue.Queue, st store.Store, logger *slog.Logger, container any, scheduler handler.Scheduler, m *metrics.Registry) *QueueWorker {
	return &QueueWorker{
		WorkerID:  uuid.NewString(),
		Queue:     q,
		Store:     st,
		Logger:    logger,
		Container: container,
		Scheduler: scheduler,
		Metrics:   m,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Work is the blocking, long-running poll loop: sleep update_period, then
// Act. It exits when Stop is called or ctx is cancelled, or when Act
// reports a fatal store error (in which case that error is returned).
func (w *QueueWorker) Work(ctx context.Context) error {
	defer close(w.doneCh)

	slog.Info("queue worker started", "worker_id", w.WorkerID, "queue", w.Queue.Name(), "update_period", w.Queue.UpdatePeriod())

	ticker := time.NewTicker(w.Queue.UpdatePeriod())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			if err := w.Act(ctx); err != nil {
				w.Logger.Error("queue worker stopping after store error",
					"worker_id", w.WorkerID, "queue", w.Queue.Name(), "error", err)
				return err
			}
		}
	}
}

// Stop requests the worker loop to exit before its next tick. It does not
// wait for an in-flight tick to finish; callers needing that should wait on
// the error Work returns (QueueManager does, via its wait group).
func (w *QueueWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// Act runs one poll tick: fetch up to max_tasks candidate rows for this
// queue, process each, and persist the outcome. A store read error is
// fatal to the tick and is returned (Work treats it as fatal to the
// worker's loop).
func (w *QueueWorker) Act(ctx context.Context) error {
	start := time.Now()
	defer func() { w.Metrics.ObserveTick(w.Queue.Name(), time.Since(start)) }()

	rows, err := w.Store.Read(ctx, w.Queue.Name(), w.Queue.MaxTasks())
	if err != nil {
		return fmt.Errorf("queue %q: read: %w", w.Queue.Name(), err)
	}

	w.Metrics.SetQueueDepth(w.Queue.Name(), len(rows))

	if len(rows) > w.Queue.MaxTasks() {
		w.Logger.Debug("store returned more rows than max_tasks; truncating",
			"worker_id", w.WorkerID, "queue", w.Queue.Name(), "returned", len(rows), "max_tasks", w.Queue.MaxTasks())
		rows = rows[:w.Queue.MaxTasks()]
	}

	for _, row := range rows {
		w.processRow(ctx, row)
	}
	return nil
}

// processRow materialises one row and drives it through exactly one of:
// skip, final_fail-on-expiry, final_fail-on-attempts-exhausted, or a full
// run/fail cycle.
func (w *QueueWorker) processRow(ctx context.Context, row store.Row) {
	meta := task.FromRow(row, w.Queue)
	now := time.Now()

	lt := w.newLoggedTask(meta)
	if lt == nil {
		return
	}

	if meta.Expired(now) {
		cause := &task.ExpiredError{ExpireAt: meta.ExpireAt.Format(time.RFC3339)}
		w.finalize(ctx, meta, lt.Fail(cause))
		return
	}

	if !meta.Runnable(now) {
		w.Metrics.IncProcessed(w.Queue.Name(), metrics.OutcomeSkipped)
		return
	}

	if err := meta.AddAttempt(); err != nil {
		// AttemptsExhaustedError is an internal signal, never
		// user-visible: feed it through the same Fail path an expired
		// task takes. Failure() already knows this state is terminal
		// (AttemptsLeft is now false), so no further branching is
		// needed here.
		w.finalize(ctx, meta, lt.Fail(err))
		return
	}

	_, runErr := lt.Run(ctx)
	if runErr == nil {
		w.finalizeSuccess(ctx, meta)
		return
	}
	w.finalize(ctx, meta, lt.Fail(runErr))
}

func (w *QueueWorker) newLoggedTask(meta *task.MetaData) *handler.LoggedTask {
	h := meta.Queue.NewHandler()
	t, err := handler.New(meta, h, w.Container, w.Logger, w.Scheduler)
	if err != nil {
		// MalformedTask: fatal to this row only. There is no handler to
		// drive hooks through, so log and leave the row untouched — it
		// will be retried (and re-logged) on every subsequent tick
		// until the handler registration itself is fixed.
		w.Logger.Error("malformed task, skipping", "worker_id", w.WorkerID, "queue", w.Queue.Name(), "task_id", meta.ID, "error", err)
		return nil
	}
	lt, err := handler.NewLogged(t, w.Logger)
	if err != nil {
		w.Logger.Error("failed to construct logged task", "worker_id", w.WorkerID, "queue", w.Queue.Name(), "task_id", meta.ID, "error", err)
		return nil
	}
	return lt
}

func (w *QueueWorker) finalizeSuccess(ctx context.Context, meta *task.MetaData) {
	if err := w.Store.Delete(ctx, meta.ID); err != nil {
		w.Logger.Error("failed to delete completed task", "worker_id", w.WorkerID, "queue", w.Queue.Name(), "task_id", meta.ID, "error", err)
	}
	w.Metrics.IncProcessed(w.Queue.Name(), metrics.OutcomeSuccess)
}

func (w *QueueWorker) finalize(ctx context.Context, meta *task.MetaData, outcome task.Outcome) {
	if err := w.Store.Update(ctx, meta.ToRow()); err != nil {
		w.Logger.Error("failed to persist task outcome", "worker_id", w.WorkerID, "queue", w.Queue.Name(), "task_id", meta.ID, "outcome", outcome, "error", err)
	}

	switch outcome {
	case task.OutcomeFail:
		w.Metrics.IncProcessed(w.Queue.Name(), metrics.OutcomeFail)
	case task.OutcomeFinalFail:
		w.Metrics.IncProcessed(w.Queue.Name(), metrics.OutcomeFinalFail)
	}
}
