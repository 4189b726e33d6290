package corebank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemClockNotConfiguredUntilSet(t *testing.T) {
	c := NewSystemClock()
	_, err := c.Now()
	require.Error(t, err)
	le, ok := AsLedgerError(err)
	require.True(t, ok)
	assert.Equal(t, KindConfiguration, le.Kind)
	assert.Equal(t, CodeNotConfigured, le.Code)
}

func TestSystemClockSetAndAdvance(t *testing.T) {
	c := NewSystemClock()
	date := time.Date(2024, 1, 15, 13, 30, 0, 0, time.UTC)
	c.Set(date, "op1")

	got, err := c.Now()
	require.NoError(t, err)
	// Dates are calendar dates; time-of-day is truncated.
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), got)

	next, err := c.Advance("eod")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), next)
}

func TestSystemClockAdvanceRequiresConfiguration(t *testing.T) {
	c := NewSystemClock()
	_, err := c.Advance("eod")
	require.Error(t, err)
	le, ok := AsLedgerError(err)
	require.True(t, ok)
	assert.Equal(t, CodeNotConfigured, le.Code)
}
