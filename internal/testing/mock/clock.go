package mock

import (
	"sync"
	"time"

	"github.com/giantswarm/tokenresolver/internal/clock"
)

var _ clock.Clock = (*Clock)(nil)

// Clock implements clock.Clock with a controllable time value.
// This enables testing discovery TTLs and token expiry without waiting
// for real time to pass.
type Clock struct {
	mu      sync.RWMutex
	current time.Time
}

// NewClock creates a new mock clock initialized to the given time.
// If t is zero, the clock is initialized to the current time.
func NewClock(t time.Time) *Clock {
	if t.IsZero() {
		t = time.Now()
	}
	return &Clock{current: t}
}

// Now returns the current time according to this mock clock.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Advance moves the clock forward by the given duration.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set sets the clock to a specific time.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}
