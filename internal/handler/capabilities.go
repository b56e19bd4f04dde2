// Package handler mediates between a persisted task's metadata and a
// user-supplied handler instance: it injects opt-in capabilities, drives
// the run/success/fail/final_fail hooks under a timeout, and decorates
// the result with structured lifecycle logging.
package handler

import (
	"context"
	"log/slog"
)

// Runner is the one mandatory capability: every handler must expose Run.
// A handler lacking it fails Task construction with a MalformedTaskError.
type Runner interface {
	Run(ctx context.Context) (any, error)
}

// SuccessHook is invoked with the handler's own return value after a
// successful Run. Its error is caught and reported, never propagated.
type SuccessHook interface {
	Success(result any) error
}

// FailHook is invoked when a run is retryable after failing. Its error is
// caught and reported, never propagated.
type FailHook interface {
	Fail(cause error) error
}

// FinalFailHook is invoked when a run exhausts its retries or has
// expired. Its error is caught and reported, never propagated.
type FinalFailHook interface {
	FinalFail(cause error) error
}

// Scheduler is the opaque handle passed through to handlers that request
// it. Its concrete shape is owned by the submission-side scheduler, which
// is outside this module's scope; the core only ever passes it through.
type Scheduler any

// DataCapable handlers receive the task's deserialized payload.
type DataCapable interface {
	SetData(data string)
}

// ContainerCapable handlers receive the opaque dependency-injection
// container configured for the queue.
type ContainerCapable interface {
	SetContainer(container any)
}

// SchedulerCapable handlers receive the scheduler handle.
type SchedulerCapable interface {
	SetScheduler(s Scheduler)
}

// LoggerCapable handlers receive the queue's configured logger.
type LoggerCapable interface {
	SetLogger(logger *slog.Logger)
}
