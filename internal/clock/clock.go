// Package clock provides the time source used for every expiry comparison.
package clock

import "time"

// Clock provides an interface for time operations so that cache and token
// expiry can be tested without waiting for real time to pass.
type Clock interface {
	// Now returns the current time according to this clock
	Now() time.Time
}

// Real implements Clock using the actual system time.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now()
}

// OrReal returns c, or Real when c is nil.
func OrReal(c Clock) Clock {
	if c == nil {
		return Real{}
	}
	return c
}
