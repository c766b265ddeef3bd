package testing

import (
	"sync"
	"time"
)

// ManualClock is a TimeProvider whose waits only complete when the test calls Fire.
//
// Each call to After registers one pending wait. AwaitWaits lets a test block
// until the code under test has reached its n-th wait, which for the jitter
// buffer means the n-th delivery cycle has finished.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	waits   []time.Duration
	pending chan time.Time
	pendDur time.Duration
}

// NewManualClock creates a clock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After registers a pending wait of d and returns its channel.
func (c *ManualClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)

	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.pending = ch
	c.pendDur = d
	c.mu.Unlock()

	return ch
}

// Fire advances the clock by the pending wait's duration and releases it.
// It reports false when nothing is waiting.
func (c *ManualClock) Fire() bool {
	c.mu.Lock()
	ch := c.pending
	if ch == nil {
		c.mu.Unlock()
		return false
	}
	c.pending = nil
	c.now = c.now.Add(c.pendDur)
	now := c.now
	c.mu.Unlock()

	ch <- now
	return true
}

// Waits returns the durations of every wait requested so far.
func (c *ManualClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]time.Duration, len(c.waits))
	copy(out, c.waits)
	return out
}

// AwaitWaits polls until at least n waits were requested or timeout elapses.
func (c *ManualClock) AwaitWaits(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		c.mu.Lock()
		got := len(c.waits)
		c.mu.Unlock()

		if got >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}
