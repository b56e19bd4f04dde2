package config

import (
	"fmt"
	"log/slog"

	"github.com/procrastinator/procrastinator/internal/handler"
	"github.com/procrastinator/procrastinator/internal/queue"
	"github.com/procrastinator/procrastinator/internal/store"
)

// Registry is the process-wide binding point: the store, the opaque
// container and scheduler handles injected into every handler, the
// logger, and the set of registered queues. QueueManager is built from a
// fully-populated Registry.
type Registry struct {
	Store     store.Store
	Logger    *slog.Logger
	Container any
	Scheduler handler.Scheduler

	queues     []*queue.Queue
	queueNames map[string]bool
}

// NewRegistry constructs an empty Registry bound to st and logger (both
// required — a Registry with no store cannot run, and every task runs
// through a LoggedTask).
func NewRegistry(st store.Store, logger *slog.Logger) *Registry {
	return &Registry{
		Store:      st,
		Logger:     logger,
		queueNames: make(map[string]bool),
	}
}

// WithContainer sets the opaque dependency-injection container passed to
// ContainerCapable handlers, and returns the Registry for chaining.
func (r *Registry) WithContainer(container any) *Registry {
	r.Container = container
	return r
}

// WithScheduler sets the opaque scheduler handle passed to
// SchedulerCapable handlers, and returns the Registry for chaining.
func (r *Registry) WithScheduler(s handler.Scheduler) *Registry {
	r.Scheduler = s
	return r
}

// RegisterQueue validates and registers a queue. A duplicate name (after
// queue.New's normalization) is rejected — two queues sharing a name
// would make QueueManager.Worker ambiguous.
func (r *Registry) RegisterQueue(name string, handlerNew queue.HandlerFactory, opts ...queue.Option) (*queue.Queue, error) {
	q, err := queue.New(name, handlerNew, opts...)
	if err != nil {
		return nil, err
	}
	if r.queueNames[q.Name()] {
		return nil, fmt.Errorf("config: queue %q already registered", q.Name())
	}
	r.queueNames[q.Name()] = true
	r.queues = append(r.queues, q)
	return q, nil
}

// Queues returns every registered queue, in registration order.
func (r *Registry) Queues() []*queue.Queue {
	return r.queues
}
