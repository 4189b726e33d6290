package corebank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEventStoreAppendAndInRange checks InRange against
// JournalEvent.TransactionTime, the real wall-clock append instant —
// not ValidTime (the business date the event pertains to) — since
// that is the key AppendEvent indexes on.
func TestEventStoreAppendAndInRange(t *testing.T) {
	tl := newTestLedger(t)
	tl.Clock.Set(mustDate(t, "2024-01-15"), "setup")

	before := time.Now()
	ev, err := tl.Events.Append(EventCreateTransaction, TransactionCreatedPayload{
		Base: "T20240115000001000", Legs: []string{"T20240115000001000-1", "T20240115000001000-2"}, Narr: "test",
	}, mustDate(t, "2024-01-15"), "tester")
	require.NoError(t, err)
	after := time.Now()
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, EventCreateTransaction, ev.EventType)
	assert.True(t, ev.ValidTime.Equal(mustDate(t, "2024-01-15")))

	events, err := tl.Events.InRange(before, after)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ev.ID, events[0].ID)

	empty, err := tl.Events.InRange(before.Add(-time.Hour), before.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, empty)
}
