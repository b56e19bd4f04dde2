package handler_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procrastinator/procrastinator/internal/handler"
	"github.com/procrastinator/procrastinator/internal/queue"
	"github.com/procrastinator/procrastinator/internal/task"
)

type fakeHandler struct {
	runFn        func(ctx context.Context) (any, error)
	data         string
	container    any
	logger       *slog.Logger
	scheduler    handler.Scheduler
	successCalls []any
	successErr   error
	failCalls    []error
	failErr      error
	finalCalls   []error
	finalErr     error
	mu           sync.Mutex
}

func (h *fakeHandler) Run(ctx context.Context) (any, error) { return h.runFn(ctx) }
func (h *fakeHandler) SetData(data string)                  { h.data = data }
func (h *fakeHandler) SetContainer(c any)                   { h.container = c }
func (h *fakeHandler) SetLogger(l *slog.Logger)              { h.logger = l }
func (h *fakeHandler) SetScheduler(s handler.Scheduler)      { h.scheduler = s }
func (h *fakeHandler) Success(result any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.successCalls = append(h.successCalls, result)
	return h.successErr
}
func (h *fakeHandler) Fail(cause error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failCalls = append(h.failCalls, cause)
	return h.failErr
}
func (h *fakeHandler) FinalFail(cause error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finalCalls = append(h.finalCalls, cause)
	return h.finalErr
}

type runOnlyHandler struct {
	runFn func(ctx context.Context) (any, error)
}

func (h *runOnlyHandler) Run(ctx context.Context) (any, error) { return h.runFn(ctx) }

type notAHandler struct{}

func testQueue(t *testing.T, opts ...queue.Option) *queue.Queue {
	t.Helper()
	q, err := queue.New("q", func() any { return nil }, opts...)
	require.NoError(t, err)
	return q
}

func TestMalformedTask(t *testing.T) {
	q := testQueue(t)
	m, err := task.New("1", q, "", time.Now(), nil)
	require.NoError(t, err)

	_, err = handler.New(m, &notAHandler{}, nil, slog.Default(), nil)
	require.Error(t, err)
	var malformed *handler.MalformedTaskError
	assert.ErrorAs(t, err, &malformed)
}

func TestCapabilityInjectionIsOptIn(t *testing.T) {
	q := testQueue(t)
	m, err := task.New("1", q, "payload-data", time.Now(), nil)
	require.NoError(t, err)

	fh := &fakeHandler{runFn: func(ctx context.Context) (any, error) { return "ok", nil }}
	container := struct{ X int }{X: 7}
	logger := slog.Default()

	_, err = handler.New(m, fh, container, logger, "scheduler-handle")
	require.NoError(t, err)

	assert.Equal(t, "payload-data", fh.data)
	assert.Equal(t, container, fh.container)
	assert.Equal(t, logger, fh.logger)
	assert.Equal(t, handler.Scheduler("scheduler-handle"), fh.scheduler)

	// run-only handler opts into nothing and must not panic on construction
	ro := &runOnlyHandler{runFn: func(ctx context.Context) (any, error) { return nil, nil }}
	_, err = handler.New(m, ro, container, logger, nil)
	require.NoError(t, err)
}

func TestRunSuccessInvokesSuccessHook(t *testing.T) {
	q := testQueue(t)
	m, err := task.New("1", q, "", time.Now(), nil)
	require.NoError(t, err)

	fh := &fakeHandler{runFn: func(ctx context.Context) (any, error) { return 42, nil }}
	tsk, err := handler.New(m, fh, nil, slog.Default(), nil)
	require.NoError(t, err)

	result, err := tsk.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	require.Len(t, fh.successCalls, 1)
	assert.Equal(t, 42, fh.successCalls[0])
}

func TestRunFailureFeedsIntoFail(t *testing.T) {
	q := testQueue(t, queue.WithMaxAttempts(5))
	m, err := task.New("1", q, "", time.Now(), nil)
	require.NoError(t, err)
	require.NoError(t, m.AddAttempt())

	boom := errors.New("boom")
	fh := &fakeHandler{runFn: func(ctx context.Context) (any, error) { return nil, boom }}
	tsk, err := handler.New(m, fh, nil, slog.Default(), nil)
	require.NoError(t, err)

	_, runErr := tsk.Run(context.Background())
	require.Error(t, runErr)

	outcome := tsk.Fail(runErr)
	assert.Equal(t, task.OutcomeFail, outcome)
	require.Len(t, fh.failCalls, 1)
	assert.Equal(t, boom, fh.failCalls[0])
	assert.Empty(t, fh.finalCalls)
}

func TestRunTimeoutSurfacesTimeoutError(t *testing.T) {
	q := testQueue(t, queue.WithTimeout(20*time.Millisecond), queue.WithMaxAttempts(5))
	m, err := task.New("1", q, "", time.Now(), nil)
	require.NoError(t, err)
	require.NoError(t, m.AddAttempt())

	fh := &fakeHandler{runFn: func(ctx context.Context) (any, error) {
		select {
		case <-time.After(2 * time.Second):
			return "too late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
	tsk, err := handler.New(m, fh, nil, slog.Default(), nil)
	require.NoError(t, err)

	start := time.Now()
	_, runErr := tsk.Run(context.Background())
	elapsed := time.Since(start)

	require.Error(t, runErr)
	var timeoutErr *task.TimeoutError
	assert.ErrorAs(t, runErr, &timeoutErr)
	assert.Less(t, elapsed, 1*time.Second, "Run must return promptly at the timeout, not wait for the handler")

	outcome := tsk.Fail(runErr)
	assert.Equal(t, task.OutcomeFail, outcome)
}

func TestHookErrorsAreSwallowed(t *testing.T) {
	q := testQueue(t, queue.WithMaxAttempts(1))
	m, err := task.New("1", q, "", time.Now(), nil)
	require.NoError(t, err)
	require.NoError(t, m.AddAttempt())

	fh := &fakeHandler{
		runFn:    func(ctx context.Context) (any, error) { return nil, errors.New("boom") },
		finalErr: errors.New("final hook blew up"),
	}
	tsk, err := handler.New(m, fh, nil, slog.Default(), nil)
	require.NoError(t, err)

	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	_, runErr := tsk.Run(context.Background())
	outcome := tsk.Fail(runErr)

	w.Close()
	os.Stderr = oldStderr
	var buf bytes.Buffer
	buf.ReadFrom(r)

	assert.Equal(t, task.OutcomeFinalFail, outcome)
	assert.Contains(t, buf.String(), "Final_fail hook error: final hook blew up")
}
