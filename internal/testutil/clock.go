package testutil

import (
	"sync"
	"time"

	"github.com/roach88/lagprobe/internal/latency"
)

// FakeClock is a virtual monotonic clock for tests.
//
// Sleep advances virtual time instead of blocking, so polling loops and
// pacing waits run instantly and deterministically.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu    sync.Mutex
	now   latency.Timestamp
	slept time.Duration
	calls int
}

// NewFakeClock creates a clock positioned at start.
func NewFakeClock(start latency.Timestamp) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current virtual instant.
func (c *FakeClock) Now() latency.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances virtual time by d. Non-positive durations are ignored.
func (c *FakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if d <= 0 {
		return
	}
	c.now = c.now.Add(d)
	c.slept += d
}

// Advance moves virtual time forward by d without counting as a sleep.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Slept returns the total virtual time spent in Sleep.
func (c *FakeClock) Slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}

// SleepCalls returns how many times Sleep was called.
func (c *FakeClock) SleepCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
