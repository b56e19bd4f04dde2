package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procrastinator/procrastinator/internal/handler"
	"github.com/procrastinator/procrastinator/internal/queue"
	"github.com/procrastinator/procrastinator/internal/task"
)

func TestNewLoggedRejectsNilLogger(t *testing.T) {
	q := testQueue(t)
	m, err := task.New("1", q, "", time.Now(), nil)
	require.NoError(t, err)

	fh := &fakeHandler{runFn: func(ctx context.Context) (any, error) { return nil, nil }}
	tsk, err := handler.New(m, fh, nil, slog.Default(), nil)
	require.NoError(t, err)

	_, err = handler.NewLogged(tsk, nil)
	require.Error(t, err)
}

func TestLoggedTaskCompletionLine(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	q := testQueue(t)
	m, err := task.New("task-1", q, "the-data", time.Now(), nil)
	require.NoError(t, err)

	fh := &fakeHandler{runFn: func(ctx context.Context) (any, error) { return "ok", nil }}
	tsk, err := handler.New(m, fh, nil, logger, nil)
	require.NoError(t, err)

	lt, err := handler.NewLogged(tsk, logger)
	require.NoError(t, err)

	_, err = lt.Run(context.Background())
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Task completed: q#task-1 [the-data]", entry["msg"])
}

func TestLoggedTaskFinalFailLine(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	q := testQueue(t, queue.WithMaxAttempts(1))
	m, err := task.New("task-2", q, "payload", time.Now(), nil)
	require.NoError(t, err)
	require.NoError(t, m.AddAttempt())

	fh := &fakeHandler{runFn: func(ctx context.Context) (any, error) { return nil, errors.New("boom") }}
	tsk, err := handler.New(m, fh, nil, logger, nil)
	require.NoError(t, err)
	lt, err := handler.NewLogged(tsk, logger)
	require.NoError(t, err)

	_, runErr := lt.Run(context.Background())
	require.Error(t, runErr)
	outcome := lt.Fail(runErr)
	assert.Equal(t, task.OutcomeFinalFail, outcome)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Task final_failed: q#task-2 [payload]", entry["msg"])
}

type raisingHandler struct{ slog.Handler }

func (h raisingHandler) Handle(ctx context.Context, r slog.Record) error {
	return errors.New("blorp")
}

func TestLoggingFailureDoesNotPreventCompletion(t *testing.T) {
	logger := slog.New(raisingHandler{Handler: slog.NewTextHandler(os.Stdout, nil)})

	q := testQueue(t)
	m, err := task.New("1", q, "", time.Now(), nil)
	require.NoError(t, err)

	fh := &fakeHandler{runFn: func(ctx context.Context) (any, error) { return "fine", nil }}
	tsk, err := handler.New(m, fh, nil, logger, nil)
	require.NoError(t, err)
	lt, err := handler.NewLogged(tsk, logger)
	require.NoError(t, err)

	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	result, runErr := lt.Run(context.Background())

	w.Close()
	os.Stderr = oldStderr
	var captured bytes.Buffer
	captured.ReadFrom(r)

	require.NoError(t, runErr)
	assert.Equal(t, "fine", result)
	assert.Equal(t, "Task logging error: blorp\n", captured.String())
}
