package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/errwrap"
	"github.com/hashicorp/go-multierror"

	"github.com/procrastinator/procrastinator/internal/handler"
	"github.com/procrastinator/procrastinator/internal/metrics"
	"github.com/procrastinator/procrastinator/internal/queue"
	"github.com/procrastinator/procrastinator/internal/store"
)

// QueueManager owns one QueueWorker per configured queue and supervises
// their lifetimes as a unit: every worker is started together, and
// shutdown waits for every worker to exit before returning.
type QueueManager struct {
	// InstanceID identifies this manager (and the process it runs in)
	// across restarts, so log lines from a given daemon run can be
	// correlated without relying on the OS pid.
	InstanceID string

	workers map[string]*QueueWorker

	mu       sync.Mutex
	wg       sync.WaitGroup
	running  bool
	workErrs []error
}

// NewManager constructs a QueueManager with one QueueWorker per queue in
// queues. All workers share the same store, container, scheduler, logger
// and metrics registry; queues may still differ in timeout, max_attempts,
// update_period and max_tasks.
func NewManager(queues []*queue.Queue, st store.Store, logger *slog.Logger, container any, scheduler handler.Scheduler, m *metrics.Registry) *QueueManager {
	instanceID := uuid.NewString()
	workers := make(map[string]*QueueWorker, len(queues))
	for _, q := range queues {
		workers[q.Name()] = NewWorker(q, st, logger, container, scheduler, m)
	}
	return &QueueManager{InstanceID: instanceID, workers: workers}
}

// Start spawns every worker's Work loop in its own goroutine and returns
// immediately. Worker crashes (a non-nil error from Work) are logged and
// recorded, but never taken down as a group — a dead worker's queue simply
// stops being polled until Shutdown is observed.
func (mgr *QueueManager) Start(ctx context.Context, logger *slog.Logger) {
	mgr.mu.Lock()
	mgr.running = true
	mgr.mu.Unlock()

	logger.Info("queue manager starting", "instance_id", mgr.InstanceID, "queues", len(mgr.workers))

	for name, w := range mgr.workers {
		mgr.wg.Add(1)
		go func(name string, w *QueueWorker) {
			defer mgr.wg.Done()
			if err := w.Work(ctx); err != nil {
				logger.Error("worker exited with error", "instance_id", mgr.InstanceID, "worker_id", w.WorkerID, "queue", name, "error", err)
				mgr.mu.Lock()
				mgr.workErrs = append(mgr.workErrs, errwrap.Wrapf(fmt.Sprintf("queue %q: {{err}}", name), err))
				mgr.mu.Unlock()
			}
		}(name, w)
	}
}

// Act forwards one immediate tick to the named queues' workers (all
// workers when queueNames is empty), bypassing their update_period
// tickers. It is meant for tests and administrative "run now" triggers,
// not for the normal poll loop.
func (mgr *QueueManager) Act(ctx context.Context, queueNames ...string) error {
	targets := queueNames
	if len(targets) == 0 {
		mgr.mu.Lock()
		for name := range mgr.workers {
			targets = append(targets, name)
		}
		mgr.mu.Unlock()
	}

	var result *multierror.Error
	for _, name := range targets {
		w, ok := mgr.workers[name]
		if !ok {
			result = multierror.Append(result, fmt.Errorf("queue manager: unknown queue %q", name))
			continue
		}
		if err := w.Act(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Shutdown signals every worker to stop, waits for all of them to exit,
// and aggregates any errors the workers reported while running.
func (mgr *QueueManager) Shutdown() error {
	for _, w := range mgr.workers {
		w.Stop()
	}
	mgr.wg.Wait()

	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	mgr.running = false

	var result *multierror.Error
	for _, err := range mgr.workErrs {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Worker returns the QueueWorker for name, for callers (tests, the admin
// API) that need direct access to one queue's state.
func (mgr *QueueManager) Worker(name string) (*QueueWorker, bool) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	w, ok := mgr.workers[name]
	return w, ok
}
