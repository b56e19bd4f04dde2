package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procrastinator/procrastinator/internal/store/memstore"
)

func TestRegisterQueueRejectsDuplicateNames(t *testing.T) {
	r := NewRegistry(memstore.New(), slog.Default())

	_, err := r.RegisterQueue("jobs", func() any { return nil })
	require.NoError(t, err)

	_, err = r.RegisterQueue("jobs", func() any { return nil })
	assert.Error(t, err)
}

func TestRegisterQueueNormalizesNameForDuplicateCheck(t *testing.T) {
	r := NewRegistry(memstore.New(), slog.Default())

	_, err := r.RegisterQueue("jobs", func() any { return nil })
	require.NoError(t, err)

	_, err = r.RegisterQueue("  jobs  ", func() any { return nil })
	assert.Error(t, err)
}

func TestQueuesReturnsRegistrationOrder(t *testing.T) {
	r := NewRegistry(memstore.New(), slog.Default())

	_, err := r.RegisterQueue("first", func() any { return nil })
	require.NoError(t, err)
	_, err = r.RegisterQueue("second", func() any { return nil })
	require.NoError(t, err)

	names := []string{}
	for _, q := range r.Queues() {
		names = append(names, q.Name())
	}
	assert.Equal(t, []string{"first", "second"}, names)
}

func TestWithContainerAndSchedulerChain(t *testing.T) {
	r := NewRegistry(memstore.New(), slog.Default())
	container := struct{ X int }{X: 1}

	result := r.WithContainer(container).WithScheduler("sched")
	assert.Same(t, r, result)
	assert.Equal(t, container, r.Container)
	assert.Equal(t, "sched", r.Scheduler)
}
