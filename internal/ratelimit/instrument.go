package ratelimit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/GuilhermeSoares009/signal-filter/internal/ratelimit"

type instrumentedFilter struct {
	next      Filter
	logger    *zap.Logger
	decisions metric.Int64Counter
	allowed   metric.MeasurementOption
	rejected  metric.MeasurementOption
}

// Instrument wraps f so every decision is counted on the global meter
// provider and rejections are logged at debug level. A nil logger disables
// logging.
func Instrument(f Filter, name string, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := otel.Meter(instrumentationName)
	decisions, err := meter.Int64Counter("signalfilter.decisions",
		metric.WithDescription("Signal filter decisions by outcome"),
		metric.WithUnit("{signal}"),
	)
	if err != nil {
		logger.Warn("signal filter counter unavailable", zap.Error(err))
		decisions = noop.Int64Counter{}
	}

	return &instrumentedFilter{
		next:      f,
		logger:    logger.With(zap.String("filter", name)),
		decisions: decisions,
		allowed: metric.WithAttributeSet(attribute.NewSet(
			attribute.String("filter", name),
			attribute.Bool("allowed", true),
		)),
		rejected: metric.WithAttributeSet(attribute.NewSet(
			attribute.String("filter", name),
			attribute.Bool("allowed", false),
		)),
	}
}

func (f *instrumentedFilter) IsSignalAllowed() bool {
	allowed := f.next.IsSignalAllowed()
	if allowed {
		f.decisions.Add(context.Background(), 1, f.allowed)
		return true
	}

	f.decisions.Add(context.Background(), 1, f.rejected)
	if ce := f.logger.Check(zap.DebugLevel, "signal rejected"); ce != nil {
		ce.Write(zap.Int("limit", f.next.Limit()), zap.Duration("window", f.next.Window()))
	}
	return false
}

func (f *instrumentedFilter) Limit() int { return f.next.Limit() }

func (f *instrumentedFilter) Window() time.Duration { return f.next.Window() }
