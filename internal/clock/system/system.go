// Package system provides a real clock implementation.
package system

import "time"

// Clock implements probe.Clock using time.Now.
type Clock struct {
	precision time.Duration
}

// New creates a Clock with millisecond precision, which is what run
// timestamps in notifications carry.
func New() *Clock {
	return &Clock{precision: time.Millisecond}
}

// NewWithPrecision creates a Clock that truncates to p. Zero keeps full precision.
func NewWithPrecision(p time.Duration) *Clock {
	return &Clock{precision: p}
}

// Now returns the current UTC time, truncated to the clock's precision.
// The monotonic reading is dropped whenever truncation applies.
func (c Clock) Now() time.Time {
	now := time.Now().UTC()
	if c.precision > 0 {
		now = now.Truncate(c.precision)
	}
	return now
}
