package latency

import "time"

// Clock supplies monotonic timestamps and the cooperative sleep used between
// poll ticks.
//
// Collaborators and the control loop must read the same Clock; timestamps
// from different clocks are not comparable.
type Clock interface {
	// Now returns the current instant on the monotonic clock.
	Now() Timestamp

	// Sleep yields the scheduler for d.
	Sleep(d time.Duration)
}

// MonotonicClock reads Go's monotonic clock relative to a fixed origin.
//
// time.Since uses the monotonic reading embedded in time.Time, so wall-clock
// adjustments during a session never skew a sample.
type MonotonicClock struct {
	origin time.Time
}

// NewMonotonicClock creates a clock whose zero is the moment of creation.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{origin: time.Now()}
}

// Now returns nanoseconds elapsed since the clock's origin.
func (c *MonotonicClock) Now() Timestamp {
	return Timestamp(time.Since(c.origin))
}

// Sleep blocks the calling goroutine for d.
func (c *MonotonicClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	time.Sleep(d)
}
