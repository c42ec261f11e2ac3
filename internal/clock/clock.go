// Package clock provides the time source used by the signal filters.
//
// Filters only need milliseconds since a fixed epoch that never move
// backwards in practice. System reads the wall clock; Manual is driven by
// the caller and is what tests and simulations use.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System is a Clock backed by time.Now.
type System struct{}

// Now returns the current wall-clock time.
func (System) Now() time.Time {
	return time.Now()
}

// Millis returns c.Now() as milliseconds since the Unix epoch.
func Millis(c Clock) int64 {
	return c.Now().UnixMilli()
}

// Manual is a Clock whose value only changes when told to.
// It is safe for concurrent use.
type Manual struct {
	ms atomic.Int64
}

// NewManual returns a Manual clock reading startMs milliseconds since the epoch.
func NewManual(startMs int64) *Manual {
	m := &Manual{}
	m.ms.Store(startMs)
	return m
}

// Now returns the clock's current value.
func (m *Manual) Now() time.Time {
	return time.UnixMilli(m.ms.Load())
}

// Set moves the clock to ms.
func (m *Manual) Set(ms int64) {
	m.ms.Store(ms)
}

// Advance moves the clock forward by d, truncated to whole milliseconds.
func (m *Manual) Advance(d time.Duration) {
	m.ms.Add(d.Milliseconds())
}
