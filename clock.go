package corebank

import (
	"sync"
	"time"
)

// SystemClock is C1: the single source of the ledger's current business
// date. Unlike wall-clock time, the business date only changes when an
// operator explicitly sets it (Set) or EOD Job 8 (C9) rolls it forward
// (Advance); the BOD processor (C11) reads it but never changes it. Grounded on the teacher's Period/valid-time split in
// accounting.go, generalized from "accounting period" to "the one
// business day that is open right now".
type SystemClock struct {
	mu sync.RWMutex
	current time.Time
	setBy string
	isSet bool
}

// NewSystemClock returns a clock with no business date configured; every
// ledger operation that reads Now() before an operator calls Set fails
// with CodeNotConfigured.
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// Now returns the current business date at midnight (dates in this
// ledger never carry a time-of-day component; "Dates are calendar
// dates, not timestamps").
func (c *SystemClock) Now() (time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.isSet {
		return time.Time{}, Configurationf(CodeNotConfigured, "system business date has not been set")
	}
	return c.current, nil
}

// MustNow panics if the clock hasn't been configured. Reserved for
// paths that have already validated configuration upstream (e.g. EOD
// job bodies running inside a pipeline that refuses to start without a
// date).
func (c *SystemClock) MustNow() time.Time {
	t, err := c.Now()
	if err != nil {
		panic(err)
	}
	return t
}

// Set establishes or advances the business date. userID is recorded for
// the audit/event log; it is not otherwise interpreted here.
func (c *SystemClock) Set(date time.Time, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = truncateToDate(date)
	c.setBy = userID
	c.isSet = true
}

// Advance moves the business date forward by exactly one day, the only
// transition EOD (Job 8) is allowed to perform.
func (c *SystemClock) Advance(userID string) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isSet {
		return time.Time{}, Configurationf(CodeNotConfigured, "system business date has not been set")
	}
	c.current = c.current.AddDate(0, 0, 1)
	c.setBy = userID
	return c.current, nil
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
