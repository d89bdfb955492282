package core

import (
	"sync/atomic"
	"time"
)

// Timer frequencies for common MCUs
const (
	TimerFreq = 1000000 // 1MHz hardware timer (RP2040 TIMERAWL/TIMERAWH)
)

// Clock supplies the monotonic time base used by the motion loop.
// Implementations must be cheap to call; the motion loop reads the
// clock on every iteration.
type Clock interface {
	// Now returns the time elapsed since an arbitrary fixed origin
	Now() time.Duration
}

// MonotonicClock reads the Go runtime's monotonic clock
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock creates a clock whose origin is the moment of creation
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

// Now returns the time elapsed since the clock was created
func (c *MonotonicClock) Now() time.Duration {
	return time.Since(c.start)
}

// ManualClock only moves when told to. Used by the simulator and tests.
// Safe for use from several goroutines.
type ManualClock struct {
	now atomic.Int64
}

// NewManualClock creates a manual clock starting at zero
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// Now returns the current manual time
func (c *ManualClock) Now() time.Duration {
	return time.Duration(c.now.Load())
}

// Advance moves the clock forward by d and returns the new time
func (c *ManualClock) Advance(d time.Duration) time.Duration {
	return time.Duration(c.now.Add(int64(d)))
}

// Set jumps the clock to an absolute time
func (c *ManualClock) Set(t time.Duration) {
	c.now.Store(int64(t))
}

// TicksToDuration converts a 64-bit hardware tick count to a duration
func TicksToDuration(ticks uint64) time.Duration {
	return time.Duration(ticks) * (time.Second / TimerFreq)
}
