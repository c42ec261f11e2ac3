package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/GuilhermeSoares009/signal-filter/internal/clock"
)

// ErrOwnershipViolated is the panic value (wrapped) raised when the state word
// changes while a caller holds the admission section.
var ErrOwnershipViolated = errors.New("slot array state changed while locked")

const (
	// failFlag is set when the last completed admission section rejected.
	failFlag = 0b01
	// lockedFlag is set while a caller owns the admission section.
	lockedFlag = 0b10
	// flagBase separates version from flags: state = version*flagBase + flags.
	flagBase = 10
	// versionModulus keeps version*flagBase+flags inside int64.
	versionModulus = 100_000_000_000_000_000

	// emptySlot marks a slot that has never held an admission. It sits far
	// enough in the past that emptySlot+window+1 cannot overflow.
	emptySlot = math.MinInt64 / 2
)

// SlotArrayFilter keeps the timestamps of the last limit admissions in a
// ring. A signal is admitted when the slot it would overwrite has left the
// window, i.e. now >= slot + window + 1.
//
// The ring and nextIndex are only touched by the caller that moved
// versionAndFlags into the locked state. Every state change bumps the
// version, so a compare-and-swap from an observed value succeeds for at most
// one caller. nextFreeSlot is a hint read without ownership to reject early
// while the window is full; it never admits on its own.
type SlotArrayFilter struct {
	limit    int
	windowMs int64
	clock    clock.Clock

	timestamps []int64
	nextIndex  int

	nextFreeSlot    atomic.Int64
	versionAndFlags atomic.Int64
}

// NewSlotArrayFilter creates a filter admitting limit signals per window.
func NewSlotArrayFilter(limit int, window time.Duration, opts ...Option) (*SlotArrayFilter, error) {
	windowMs, err := validate(limit, window)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	f := &SlotArrayFilter{
		limit:      limit,
		windowMs:   windowMs,
		clock:      o.clock,
		timestamps: make([]int64, limit),
	}
	for i := range f.timestamps {
		f.timestamps[i] = emptySlot
	}
	f.nextFreeSlot.Store(emptySlot)
	return f, nil
}

// NewSlotArrayFilterPerMinute creates a filter admitting limit signals per minute.
func NewSlotArrayFilterPerMinute(limit int, opts ...Option) (*SlotArrayFilter, error) {
	return NewSlotArrayFilter(limit, time.Minute, opts...)
}

func (f *SlotArrayFilter) Limit() int { return f.limit }

func (f *SlotArrayFilter) Window() time.Duration {
	return time.Duration(f.windowMs) * time.Millisecond
}

// IsSignalAllowed reports whether a signal arriving now may pass, recording it if so.
//
// It panics with an error wrapping ErrOwnershipViolated if the state word is
// modified by someone else while this caller owns the admission section.
func (f *SlotArrayFilter) IsSignalAllowed() bool {
	now := clock.Millis(f.clock)
	if now < f.nextFreeSlot.Load() {
		return false
	}

	return f.contend(now, f.versionAndFlags.Load())
}

// contend competes for the admission section, having observed the state word
// as initial on arrival.
func (f *SlotArrayFilter) contend(now, initial int64) bool {
	current := initial
	for {
		// Someone completed a section since we arrived and it rejected:
		// trust that outcome instead of repeating the check.
		if current != initial && isFail(current) {
			return false
		}

		if !isLocked(current) {
			locked := lockedState(current)
			if f.versionAndFlags.CompareAndSwap(current, locked) {
				allowed := f.admitLocked(now)
				f.release(locked, allowed)
				return allowed
			}
		} else {
			runtime.Gosched()
		}
		current = f.versionAndFlags.Load()
	}
}

// admitLocked runs the admission decision. Caller must own the section.
func (f *SlotArrayFilter) admitLocked(now int64) bool {
	leaveAt := f.timestamps[f.nextIndex] + f.windowMs + 1
	if now < leaveAt {
		f.nextFreeSlot.Store(leaveAt)
		return false
	}

	f.timestamps[f.nextIndex] = now
	f.nextIndex = (f.nextIndex + 1) % f.limit
	f.nextFreeSlot.Store(f.timestamps[f.nextIndex])
	return true
}

// release leaves the admission section entered with state locked.
func (f *SlotArrayFilter) release(locked int64, allowed bool) {
	if !f.versionAndFlags.CompareAndSwap(locked, unlockedState(locked, allowed)) {
		panic(fmt.Errorf("%w: expected state %d, found %d",
			ErrOwnershipViolated, locked, f.versionAndFlags.Load()))
	}
}

// lockedState bumps the version, sets lockedFlag and keeps failFlag.
func lockedState(state int64) int64 {
	return nextVersion(state) + lockedFlag + state%flagBase&failFlag
}

// unlockedState bumps the version, clears lockedFlag and records the outcome in failFlag.
func unlockedState(state int64, allowed bool) int64 {
	next := nextVersion(state)
	if !allowed {
		next += failFlag
	}
	return next
}

func nextVersion(state int64) int64 {
	return (state/flagBase + 1) % versionModulus * flagBase
}

func isLocked(state int64) bool {
	return state%flagBase&lockedFlag != 0
}

func isFail(state int64) bool {
	return state%flagBase&failFlag != 0
}
