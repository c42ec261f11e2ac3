// Package ratelimit decides whether a signal may pass under a sliding-window
// limit of N signals per window.
//
// Two designs implement the same Filter contract:
//
//   - BoundedQueueFilter keeps admitted timestamps in a bounded FIFO and
//     drains expired entries opportunistically under a try-lock.
//   - SlotArrayFilter keeps one timestamp per admission slot in a ring and
//     serialises the admission decision with a compare-and-swap on a packed
//     version/flags word.
//
// Both are safe for concurrent use and never block.
package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/GuilhermeSoares009/signal-filter/internal/clock"
)

var (
	ErrInvalidLimit     = errors.New("limit must be greater than 0")
	ErrInvalidWindow    = errors.New("window must be at least 1ms")
	ErrUnknownAlgorithm = errors.New("unknown filter algorithm")
)

// Filter admits at most Limit() signals within any trailing Window().
type Filter interface {
	IsSignalAllowed() bool
	Limit() int
	Window() time.Duration
}

// Algorithm names a Filter implementation.
type Algorithm string

const (
	AlgorithmBoundedQueue Algorithm = "bounded_queue"
	AlgorithmSlotArray    Algorithm = "slot_array"
)

// ParseAlgorithm maps a configuration value to an Algorithm.
func ParseAlgorithm(raw string) (Algorithm, error) {
	switch alg := Algorithm(strings.ToLower(strings.TrimSpace(raw))); alg {
	case AlgorithmBoundedQueue, AlgorithmSlotArray:
		return alg, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, raw)
	}
}

// New builds the Filter selected by alg.
func New(alg Algorithm, limit int, window time.Duration, opts ...Option) (Filter, error) {
	switch alg {
	case AlgorithmBoundedQueue:
		return NewBoundedQueueFilter(limit, window, opts...)
	case AlgorithmSlotArray:
		return NewSlotArrayFilter(limit, window, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(alg))
	}
}

// WindowOf converts a window given as a length and a unit, e.g. WindowOf(100, time.Second).
// It fails with ErrInvalidWindow when either is not positive or the product
// does not fit in a time.Duration.
func WindowOf(length int, unit time.Duration) (time.Duration, error) {
	if length <= 0 || unit <= 0 {
		return 0, fmt.Errorf("%w: got %d x %s", ErrInvalidWindow, length, unit)
	}
	if int64(length) > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("%w: %d x %s overflows", ErrInvalidWindow, length, unit)
	}
	return time.Duration(length) * unit, nil
}

type options struct {
	clock clock.Clock
}

// Option configures a Filter at construction.
type Option func(*options)

// WithClock replaces the system clock, mostly for tests and simulations.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: clock.System{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// validate checks the construction parameters and returns the window in milliseconds.
func validate(limit int, window time.Duration) (int64, error) {
	if limit <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}
	windowMs := window.Milliseconds()
	if windowMs <= 0 {
		return 0, fmt.Errorf("%w: got %s", ErrInvalidWindow, window)
	}
	return windowMs, nil
}
