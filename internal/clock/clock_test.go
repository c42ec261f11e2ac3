package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManualSetAndAdvance(t *testing.T) {
	c := NewManual(0)
	require.Equal(t, int64(0), Millis(c))

	c.Advance(1500 * time.Millisecond)
	require.Equal(t, int64(1500), Millis(c))

	c.Set(42)
	require.Equal(t, int64(42), Millis(c))

	// Sub-millisecond advances are dropped.
	c.Advance(999 * time.Microsecond)
	require.Equal(t, int64(42), Millis(c))
}

func TestSystemClockIsCloseToWallClock(t *testing.T) {
	before := time.Now().UnixMilli()
	got := Millis(System{})
	after := time.Now().UnixMilli()

	require.GreaterOrEqual(t, got, before)
	require.LessOrEqual(t, got, after)
}
