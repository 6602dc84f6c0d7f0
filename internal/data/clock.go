package data

import "time"

// Clock abstracts the repositories' notion of now so tests can pin row
// timestamps.
type Clock interface {
	Now() time.Time
}

// systemClock is the production Clock.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// FixedClock is a Clock that only moves when told to.
type FixedClock struct {
	now time.Time
}

// NewFixedClock pins the clock at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t}
}

// Now returns the pinned time.
func (c *FixedClock) Now() time.Time { return c.now }

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) { c.now = t }

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
