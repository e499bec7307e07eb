package testutil

import (
	"sync"
	"time"
)

// DeterministicClock provides a thread-safe, monotonically advancing wall
// clock for tests that persist timestamps.
//
// Every call to Now returns the previous instant plus Step, so the same test
// produces identical timestamps on every run.
type DeterministicClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewDeterministicClock creates a clock starting at start. The first call to
// Now() returns start.
func NewDeterministicClock(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{now: start.Add(-step), step: step}
}

// Now advances the clock by one step and returns the new instant.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// Current returns the last instant handed out without advancing.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
