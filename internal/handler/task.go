package handler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/procrastinator/procrastinator/internal/task"
)

// Task mediates between a task's metadata and a freshly-constructed
// handler instance, for the duration of one execution attempt.
type Task struct {
	Meta    *task.MetaData
	handler Runner
}

// New binds meta to handlerInstance, verifying it implements Runner and
// injecting any capabilities it opts into (data, container, logger,
// scheduler). A fresh handler instance must be supplied per attempt; no
// state is expected to leak between attempts.
func New(meta *task.MetaData, handlerInstance any, container any, logger *slog.Logger, scheduler Scheduler) (*Task, error) {
	runner, ok := handlerInstance.(Runner)
	if !ok {
		return nil, &MalformedTaskError{HandlerType: fmt.Sprintf("%T", handlerInstance)}
	}

	if dc, ok := handlerInstance.(DataCapable); ok {
		dc.SetData(meta.Data)
	}
	if cc, ok := handlerInstance.(ContainerCapable); ok {
		cc.SetContainer(container)
	}
	if lc, ok := handlerInstance.(LoggerCapable); ok {
		lc.SetLogger(logger)
	}
	if sc, ok := handlerInstance.(SchedulerCapable); ok {
		sc.SetScheduler(scheduler)
	}

	return &Task{Meta: meta, handler: runner}, nil
}

// Run executes the handler under the queue's timeout. It refuses (as a
// no-op) to run an already-expired task — the caller is expected to have
// routed expired rows through Fail with an ExpiredError instead. On
// success it invokes the optional Success hook and returns (result, nil).
// On failure — handler error or timeout — it returns (nil, err); the
// caller is expected to feed err into Fail.
func (t *Task) Run(ctx context.Context) (any, error) {
	now := time.Now()
	if t.Meta.Expired(now) {
		return nil, nil
	}

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		result, err := t.handler.Run(runCtx)
		done <- outcome{result, err}
	}()

	timeout := t.Meta.Queue.Timeout()
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		t.invokeSuccess(res.result)
		return res.result, nil
	case <-timeoutCh:
		// Ask a context-aware handler to stop; a handler that ignores
		// ctx keeps running out-of-band — the attempt is already
		// recorded, so this tick's outcome does not wait on it.
		cancel()
		return nil, &task.TimeoutError{Timeout: timeout.String()}
	}
}

func (t *Task) invokeSuccess(result any) {
	sh, ok := t.handler.(SuccessHook)
	if !ok {
		return
	}
	if err := sh.Success(result); err != nil {
		fmt.Fprintf(os.Stderr, "Success hook error: %s\n", err)
	}
}

// Fail delegates to the metadata's failure transition, then invokes the
// handler's fail or final_fail hook depending on the resulting outcome.
// Hook errors are caught and reported to stderr, never propagated.
func (t *Task) Fail(cause error) task.Outcome {
	outcome := t.Meta.Failure(cause, time.Now())

	switch outcome {
	case task.OutcomeFail:
		if fh, ok := t.handler.(FailHook); ok {
			if err := fh.Fail(cause); err != nil {
				fmt.Fprintf(os.Stderr, "Fail hook error: %s\n", err)
			}
		}
	case task.OutcomeFinalFail:
		if ffh, ok := t.handler.(FinalFailHook); ok {
			if err := ffh.FinalFail(cause); err != nil {
				fmt.Fprintf(os.Stderr, "Final_fail hook error: %s\n", err)
			}
		}
	}

	return outcome
}
