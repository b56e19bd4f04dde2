package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/procrastinator/procrastinator/internal/task"
)

// LoggedTask decorates Task with structured lifecycle logging, matching
// the exact log line formats callers assert on. Logging failures are
// caught and reported to stderr; the wrapped Task's own errors are not
// caught here and propagate to the caller untouched.
type LoggedTask struct {
	*Task
	logger *slog.Logger
}

// NewLogged wraps t with logger. A nil logger is rejected.
func NewLogged(t *Task, logger *slog.Logger) (*LoggedTask, error) {
	if logger == nil {
		return nil, errors.New("handler: logged task requires a non-nil logger")
	}
	return &LoggedTask{Task: t, logger: logger}, nil
}

func (lt *LoggedTask) line() string {
	return fmt.Sprintf("%s#%s [%s]", lt.Meta.Queue.Name(), lt.Meta.ID, lt.Meta.Data)
}

// Run delegates to Task.Run; on a successful return it logs an info-level
// completion event.
func (lt *LoggedTask) Run(ctx context.Context) (any, error) {
	result, err := lt.Task.Run(ctx)
	if err == nil {
		lt.log(slog.LevelInfo, "Task completed: "+lt.line())
	}
	return result, err
}

// Fail logs at error level BEFORE delegating to Task.Fail, since the
// wording (retryable "failed" vs terminal "final_failed") depends on
// state that Task.Fail is about to mutate.
func (lt *LoggedTask) Fail(cause error) task.Outcome {
	if lt.Meta.Retryable(time.Now()) {
		lt.log(slog.LevelError, "Task failed: "+lt.line())
	} else {
		lt.log(slog.LevelError, "Task final_failed: "+lt.line())
	}
	return lt.Task.Fail(cause)
}

// log emits one structured line through the handler's Handle method
// directly (rather than slog.Logger.Log, which would silently discard a
// handler error) so that a misbehaving logger's error is caught here and
// reported to stderr instead of being lost or crashing the worker.
func (lt *LoggedTask) log(level slog.Level, msg string) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Task logging error: %v\n", r)
		}
	}()

	record := slog.NewRecord(time.Now(), level, msg, 0)
	record.AddAttrs(
		slog.String("queue", lt.Meta.Queue.Name()),
		slog.String("task_id", lt.Meta.ID),
	)
	if err := lt.logger.Handler().Handle(context.Background(), record); err != nil {
		fmt.Fprintf(os.Stderr, "Task logging error: %s\n", err)
	}
}
