package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GuilhermeSoares009/signal-filter/internal/clock"
)

func TestInstrumentCountsDecisions(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	core, logs := observer.New(zap.DebugLevel)
	inner, err := NewSlotArrayFilter(2, time.Second, WithClock(clock.NewManual(0)))
	require.NoError(t, err)
	f := Instrument(inner, "slot_array", zap.New(core))

	require.Equal(t, 2, f.Limit())
	require.Equal(t, time.Second, f.Window())

	for i := 0; i < 5; i++ {
		f.IsSignalAllowed()
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[bool]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "signalfilter.decisions" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				allowed, ok := dp.Attributes.Value("allowed")
				require.True(t, ok)
				counts[allowed.AsBool()] += dp.Value
			}
		}
	}
	require.Equal(t, int64(2), counts[true])
	require.Equal(t, int64(3), counts[false])

	rejected := logs.FilterMessage("signal rejected")
	require.Equal(t, 3, rejected.Len())
	require.Equal(t, "slot_array", rejected.All()[0].ContextMap()["filter"])
}
