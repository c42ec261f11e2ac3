package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const ServiceName = "signal-filter"

// Exporters accepted by Init.
const (
	ExporterStdout     = "stdout"
	ExporterPrometheus = "prometheus"
	ExporterNone       = "none"
)

type Options struct {
	// Exporter selects where metrics go: stdout, prometheus or none.
	Exporter string
	// Interval is the stdout export period.
	Interval time.Duration
	// Writer receives stdout traces and metrics. Defaults to io.Discard for
	// traces so request spans do not flood the terminal.
	Writer io.Writer
}

// Telemetry holds the installed providers.
type Telemetry struct {
	tracerProvider *trace.TracerProvider
	meterProvider  *metric.MeterProvider
	metricsHandler http.Handler
}

// ErrUnknownExporter is returned by Init for an unsupported Options.Exporter.
var ErrUnknownExporter = errors.New("unknown metrics exporter")

// Init installs global tracer and meter providers and the W3C trace context
// propagator.
func Init(ctx context.Context, opts Options) (*Telemetry, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	// Nothing is started before the exporter is known to be valid.
	reader, metricsHandler, err := newMetricReader(opts)
	if err != nil {
		return nil, err
	}

	traceWriter := io.Discard
	if opts.Writer != nil {
		traceWriter = opts.Writer
	}
	traceExporter, err := stdouttrace.New(
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithWriter(traceWriter),
	)
	if err != nil {
		if reader != nil {
			_ = reader.Shutdown(ctx)
		}
		return nil, err
	}

	tracerProvider := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter),
		trace.WithResource(res),
	)

	meterOpts := []metric.Option{metric.WithResource(res)}
	if reader != nil {
		meterOpts = append(meterOpts, metric.WithReader(reader))
	}
	meterProvider := metric.NewMeterProvider(meterOpts...)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &Telemetry{
		tracerProvider: tracerProvider,
		meterProvider:  meterProvider,
		metricsHandler: metricsHandler,
	}, nil
}

// newMetricReader builds the reader for opts.Exporter. The reader is nil for
// ExporterNone, and the handler is only set for ExporterPrometheus.
func newMetricReader(opts Options) (metric.Reader, http.Handler, error) {
	switch opts.Exporter {
	case ExporterStdout, "":
		exporterOpts := []stdoutmetric.Option{}
		if opts.Writer != nil {
			exporterOpts = append(exporterOpts, stdoutmetric.WithWriter(opts.Writer))
		}
		metricExporter, err := stdoutmetric.New(exporterOpts...)
		if err != nil {
			return nil, nil, err
		}
		interval := opts.Interval
		if interval <= 0 {
			interval = 15 * time.Second
		}
		return metric.NewPeriodicReader(metricExporter, metric.WithInterval(interval)), nil, nil
	case ExporterPrometheus:
		registry := prometheus.NewRegistry()
		exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(registry))
		if err != nil {
			return nil, nil, err
		}
		return exporter, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
	case ExporterNone:
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w %q", ErrUnknownExporter, opts.Exporter)
	}
}

// MetricsHandler serves the Prometheus scrape endpoint, or is nil when the
// prometheus exporter is not selected.
func (t *Telemetry) MetricsHandler() http.Handler {
	return t.metricsHandler
}

// Shutdown flushes and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.meterProvider.Shutdown(ctx),
		t.tracerProvider.Shutdown(ctx),
	)
}
