package redisstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procrastinator/procrastinator/internal/store"
)

func TestWireRoundTripPreservesFields(t *testing.T) {
	runAt := time.Unix(1700000000, 0).UTC()
	errMsg := "boom"
	row := store.Row{
		ID:        "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		Queue:     "q",
		Data:      "payload",
		RunAt:     &runAt,
		LastError: &errMsg,
		Attempts:  2,
	}

	roundTripped := toWire(row).toRow()
	assert.Equal(t, row.ID, roundTripped.ID)
	assert.Equal(t, row.Queue, roundTripped.Queue)
	assert.Equal(t, row.Data, roundTripped.Data)
	require.NotNil(t, roundTripped.RunAt)
	assert.True(t, row.RunAt.Equal(*roundTripped.RunAt))
	require.NotNil(t, roundTripped.LastError)
	assert.Equal(t, *row.LastError, *roundTripped.LastError)
	assert.Equal(t, row.Attempts, roundTripped.Attempts)
}

func TestWireRoundTripPreservesNilTimes(t *testing.T) {
	row := store.Row{ID: "1", Queue: "q"}
	roundTripped := toWire(row).toRow()
	assert.Nil(t, roundTripped.RunAt)
	assert.Nil(t, roundTripped.ExpireAt)
	assert.Nil(t, roundTripped.LastFailAt)
}
