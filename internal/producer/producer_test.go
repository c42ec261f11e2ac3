package producer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuilhermeSoares009/signal-filter/internal/clock"
	"github.com/GuilhermeSoares009/signal-filter/internal/ratelimit"
)

func TestRunCountsEverySignal(t *testing.T) {
	filter, err := ratelimit.NewBoundedQueueFilter(25, time.Minute, ratelimit.WithClock(clock.NewManual(0)))
	require.NoError(t, err)

	report, err := Run(context.Background(), filter, Config{Producers: 4, Signals: 30}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(120), report.Total)
	assert.Equal(t, int64(25), report.Passed)
	require.Len(t, report.Producers, 4)

	var passed int64
	for _, p := range report.Producers {
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, int64(30), p.Total)
		passed += p.Passed
	}
	assert.Equal(t, report.Passed, passed)
}

func TestRunWithPausesStaysWithinLimit(t *testing.T) {
	filter, err := ratelimit.NewSlotArrayFilter(10, time.Minute)
	require.NoError(t, err)

	report, err := Run(context.Background(), filter, Config{
		Producers: 3,
		Signals:   10,
		MaxPause:  2 * time.Millisecond,
		Seed:      1,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(30), report.Total)
	assert.Equal(t, int64(10), report.Passed)
}

func TestRunStopsOnCancel(t *testing.T) {
	filter, err := ratelimit.NewSlotArrayFilter(1, time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Run(ctx, filter, Config{Producers: 2, Signals: 1000, MaxPause: time.Second}, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Total)
}

func TestRunRequiresProducers(t *testing.T) {
	filter, err := ratelimit.NewSlotArrayFilter(1, time.Minute)
	require.NoError(t, err)

	_, err = Run(context.Background(), filter, Config{}, nil)
	require.ErrorIs(t, err, ErrNoProducers)
}
