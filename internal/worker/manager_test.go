package worker_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procrastinator/procrastinator/internal/queue"
	"github.com/procrastinator/procrastinator/internal/store"
	"github.com/procrastinator/procrastinator/internal/store/memstore"
	"github.com/procrastinator/procrastinator/internal/worker"
)

func TestManagerActForwardsTickToNamedQueue(t *testing.T) {
	var ran []string
	factory := func(name string) func() any {
		return func() any {
			return &recordingHandler{runFn: func(ctx context.Context) (any, error) {
				ran = append(ran, name)
				return "ok", nil
			}}
		}
	}

	qA, err := queue.New("alpha", factory("alpha"))
	require.NoError(t, err)
	qB, err := queue.New("beta", factory("beta"))
	require.NoError(t, err)

	st := memstore.New()
	ctx := context.Background()
	past := time.Now().Add(-time.Minute)
	_, err = st.Create(ctx, store.Row{Queue: "alpha", RunAt: &past})
	require.NoError(t, err)
	_, err = st.Create(ctx, store.Row{Queue: "beta", RunAt: &past})
	require.NoError(t, err)

	mgr := worker.NewManager([]*queue.Queue{qA, qB}, st, slog.Default(), nil, nil, nil)

	require.NoError(t, mgr.Act(ctx, "alpha"))
	assert.Equal(t, []string{"alpha"}, ran)
}

func TestManagerActWithNoNamesRunsEveryQueue(t *testing.T) {
	var ran []string
	factory := func(name string) func() any {
		return func() any {
			return &recordingHandler{runFn: func(ctx context.Context) (any, error) {
				ran = append(ran, name)
				return "ok", nil
			}}
		}
	}

	qA, err := queue.New("alpha", factory("alpha"))
	require.NoError(t, err)
	qB, err := queue.New("beta", factory("beta"))
	require.NoError(t, err)

	st := memstore.New()
	ctx := context.Background()
	past := time.Now().Add(-time.Minute)
	_, err = st.Create(ctx, store.Row{Queue: "alpha", RunAt: &past})
	require.NoError(t, err)
	_, err = st.Create(ctx, store.Row{Queue: "beta", RunAt: &past})
	require.NoError(t, err)

	mgr := worker.NewManager([]*queue.Queue{qA, qB}, st, slog.Default(), nil, nil, nil)

	require.NoError(t, mgr.Act(ctx))
	assert.ElementsMatch(t, []string{"alpha", "beta"}, ran)
}

func TestManagerActUnknownQueueIsAnError(t *testing.T) {
	q, err := queue.New("alpha", func() any { return &recordingHandler{runFn: func(ctx context.Context) (any, error) { return nil, nil }} })
	require.NoError(t, err)

	mgr := worker.NewManager([]*queue.Queue{q}, memstore.New(), slog.Default(), nil, nil, nil)

	err = mgr.Act(context.Background(), "does-not-exist")
	assert.Error(t, err)
}

func TestManagerStartAndShutdown(t *testing.T) {
	q, err := queue.New("alpha",
		func() any { return &recordingHandler{runFn: func(ctx context.Context) (any, error) { return "ok", nil }} },
		queue.WithUpdatePeriod(5*time.Millisecond))
	require.NoError(t, err)

	mgr := worker.NewManager([]*queue.Queue{q}, memstore.New(), slog.Default(), nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr.Start(ctx, slog.Default())
	time.Sleep(20 * time.Millisecond)

	shutdownDone := make(chan error, 1)
	go func() { shutdownDone <- mgr.Shutdown() }()

	select {
	case err := <-shutdownDone:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not return within timeout")
	}
}

func TestManagerWorkerLookup(t *testing.T) {
	q, err := queue.New("alpha", func() any { return &recordingHandler{runFn: func(ctx context.Context) (any, error) { return nil, nil }} })
	require.NoError(t, err)

	mgr := worker.NewManager([]*queue.Queue{q}, memstore.New(), slog.Default(), nil, nil, nil)

	w, ok := mgr.Worker("alpha")
	assert.True(t, ok)
	assert.NotNil(t, w)

	_, ok = mgr.Worker("missing")
	assert.False(t, ok)
}
