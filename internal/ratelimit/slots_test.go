package ratelimit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuilhermeSoares009/signal-filter/internal/clock"
)

func TestStateWordTransitions(t *testing.T) {
	state := int64(0)

	locked := lockedState(state)
	assert.Equal(t, int64(12), locked)
	assert.True(t, isLocked(locked))
	assert.False(t, isFail(locked))

	rejected := unlockedState(locked, false)
	assert.Equal(t, int64(21), rejected)
	assert.False(t, isLocked(rejected))
	assert.True(t, isFail(rejected))

	// Locking keeps the previous outcome.
	relocked := lockedState(rejected)
	assert.Equal(t, int64(33), relocked)
	assert.True(t, isLocked(relocked))
	assert.True(t, isFail(relocked))

	admitted := unlockedState(relocked, true)
	assert.Equal(t, int64(40), admitted)
	assert.False(t, isLocked(admitted))
	assert.False(t, isFail(admitted))
}

func TestStateWordVersionWraps(t *testing.T) {
	last := int64(versionModulus-1)*flagBase + failFlag

	locked := lockedState(last)
	assert.Equal(t, int64(lockedFlag+failFlag), locked)
	assert.Equal(t, int64(flagBase), unlockedState(locked, true))
}

func TestSlotArrayFastPathSkipsStateWord(t *testing.T) {
	c := clock.NewManual(0)
	f, err := NewSlotArrayFilter(1, time.Second, WithClock(c))
	require.NoError(t, err)

	require.True(t, f.IsSignalAllowed())
	require.False(t, f.IsSignalAllowed())
	require.Equal(t, int64(1001), f.nextFreeSlot.Load())

	before := f.versionAndFlags.Load()
	c.Set(999)
	require.False(t, f.IsSignalAllowed())
	require.Equal(t, before, f.versionAndFlags.Load(), "fast-path rejection must not take the section")
}

func TestSlotArrayTrustsRejectionCompletedWhileWaiting(t *testing.T) {
	f, err := NewSlotArrayFilter(1, time.Second, WithClock(clock.NewManual(0)))
	require.NoError(t, err)

	// The caller arrives while another owner holds the section, and that
	// owner then releases with a rejection.
	locked := lockedState(f.versionAndFlags.Load())
	rejected := unlockedState(locked, false)
	f.versionAndFlags.Store(rejected)

	require.False(t, f.contend(0, locked), "an empty slot must not be admitted after a rejection")
	require.Equal(t, []int64{emptySlot}, f.timestamps)
	require.Equal(t, 0, f.nextIndex)
	require.Equal(t, rejected, f.versionAndFlags.Load(), "the section must not be entered")
}

func TestSlotArrayChecksWhenRejectionPredatesArrival(t *testing.T) {
	f, err := NewSlotArrayFilter(1, time.Second, WithClock(clock.NewManual(0)))
	require.NoError(t, err)

	rejected := unlockedState(lockedState(f.versionAndFlags.Load()), false)
	f.versionAndFlags.Store(rejected)

	require.True(t, f.IsSignalAllowed())
	require.Equal(t, []int64{0}, f.timestamps)
	state := f.versionAndFlags.Load()
	require.False(t, isLocked(state))
	require.False(t, isFail(state))
}

func TestSlotArrayRotatesThroughSlots(t *testing.T) {
	c := clock.NewManual(0)
	f, err := NewSlotArrayFilter(3, 100*time.Millisecond, WithClock(c))
	require.NoError(t, err)

	for _, ts := range []int64{0, 20, 40} {
		c.Set(ts)
		require.True(t, f.IsSignalAllowed())
	}
	require.Equal(t, []int64{0, 20, 40}, f.timestamps)
	require.Equal(t, 0, f.nextIndex)

	c.Set(101)
	require.True(t, f.IsSignalAllowed())
	require.Equal(t, []int64{101, 20, 40}, f.timestamps)
	require.Equal(t, 1, f.nextIndex)
	require.Equal(t, int64(20), f.nextFreeSlot.Load())
}

func TestSlotArrayReleasePanicsWhenOwnershipIsViolated(t *testing.T) {
	f, err := NewSlotArrayFilter(1, time.Second, WithClock(clock.NewManual(0)))
	require.NoError(t, err)

	locked := lockedState(f.versionAndFlags.Load())
	// Another actor overwrites the word while the section is held.
	f.versionAndFlags.Store(locked + flagBase)

	defer func() {
		r := recover()
		require.NotNil(t, r, "release must panic")
		err, ok := r.(error)
		require.True(t, ok)
		require.True(t, errors.Is(err, ErrOwnershipViolated))
	}()
	f.release(locked, true)
}
