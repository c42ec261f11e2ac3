package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GuilhermeSoares009/signal-filter/internal/clock"
)

func TestBoundedQueueRejectsWhileCleanupIsHeld(t *testing.T) {
	c := clock.NewManual(0)
	f, err := NewBoundedQueueFilter(2, 100*time.Millisecond, WithClock(c))
	require.NoError(t, err)

	require.True(t, f.IsSignalAllowed())
	require.True(t, f.IsSignalAllowed())

	// Both entries are expired, but another caller owns the cleanup.
	c.Set(500)
	f.cleanupMu.Lock()
	done := make(chan bool)
	go func() { done <- f.IsSignalAllowed() }()
	select {
	case allowed := <-done:
		require.False(t, allowed)
	case <-time.After(time.Second):
		t.Fatal("caller blocked on a held cleanup lock")
	}
	require.Equal(t, 2, f.timestamps.size(), "a rejected caller must not drain the queue")
	f.cleanupMu.Unlock()

	require.True(t, f.IsSignalAllowed())
	require.Equal(t, 1, f.timestamps.size())
}

func TestBoundedQueueCleanupStopsAtFirstLiveEntry(t *testing.T) {
	c := clock.NewManual(0)
	f, err := NewBoundedQueueFilter(4, time.Second, WithClock(c))
	require.NoError(t, err)

	for _, ts := range []int64{0, 10, 600, 700} {
		c.Set(ts)
		require.True(t, f.IsSignalAllowed())
	}

	c.Set(1011)
	require.True(t, f.tryCleanup(1011))
	require.Equal(t, 2, f.timestamps.size())

	oldest, ok := f.timestamps.peek()
	require.True(t, ok)
	require.Equal(t, int64(600), oldest)

	require.False(t, f.tryCleanup(1011), "nothing else has expired")
}

func TestBoundedQueueCleanupOfEmptyQueueReportsFreeSpace(t *testing.T) {
	f, err := NewBoundedQueueFilter(1, time.Second, WithClock(clock.NewManual(0)))
	require.NoError(t, err)

	require.True(t, f.tryCleanup(0))
}

func TestTimestampQueueRefusesOfferWhenFull(t *testing.T) {
	q := newTimestampQueue(2)
	require.True(t, q.offer(1))
	require.True(t, q.offer(2))
	require.False(t, q.offer(3))

	v, ok := q.poll()
	require.True(t, ok)
	require.Equal(t, int64(1), v)
	require.True(t, q.offer(3))

	for _, want := range []int64{2, 3} {
		v, ok = q.poll()
		require.True(t, ok)
		require.Equal(t, want, v)
	}
	_, ok = q.peek()
	require.False(t, ok)
	_, ok = q.poll()
	require.False(t, ok)
}
