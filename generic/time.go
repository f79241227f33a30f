package generic

import (
	"sync"
	"time"
)

// =============================================================================
// CLOCK - Timestamp source supplied by the host
// =============================================================================

// Clock returns the current time. Appointment expiry is evaluated against it
// on every call; there are no background timers.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ManualClock only moves when told to. Used by tests and demo scenarios.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start.UTC()}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// =============================================================================
// DATE KEYS
// =============================================================================

// DateKeyLayout is the layout DateKey produces.
const DateKeyLayout = "2006-01-02"

// DateKey derives the calendar-day key used to group bookings by day.
func DateKey(t time.Time) string { return t.UTC().Format(DateKeyLayout) }
