package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/GuilhermeSoares009/signal-filter/internal/audit"
)

const (
	maxBodySize      = 1 << 20
	serviceTraceName = "httpapi"
)

var (
	durationOnce      sync.Once
	durationHistogram metric.Int64Histogram
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Filter:   s.filterName,
		Limit:    s.filter.Limit(),
		WindowMs: s.filter.Window().Milliseconds(),
	})
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := startSpan(r.Context(), r)
	defer span.End()
	traceID := span.SpanContext().TraceID().String()

	var payload signalRequest
	if err := readJSON(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		s.logRequest(ctx, "invalid request", r, http.StatusBadRequest, zap.Error(err))
		return
	}
	if err := payload.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		s.logRequest(ctx, "validation failed", r, http.StatusBadRequest, zap.Error(err))
		return
	}

	signalID := payload.SignalID
	if signalID == "" {
		signalID = uuid.NewString()
	}
	source := strings.TrimSpace(payload.Source)
	if source == "" {
		source = clientHost(r)
	}

	allowed := s.filter.IsSignalAllowed()

	span.SetAttributes(
		attribute.String("signal.id", signalID),
		attribute.String("signal.filter", s.filterName),
		attribute.Bool("signal.allowed", allowed),
	)

	status := http.StatusAccepted
	if !allowed {
		status = http.StatusTooManyRequests
		w.Header().Set("Retry-After", retryAfterSeconds(s.filter.Window()))
	}
	writeJSON(w, status, signalResponse{
		SignalID: signalID,
		Allowed:  allowed,
		TraceID:  traceID,
	})

	durationMs := time.Since(start).Milliseconds()
	recordMetrics(ctx, r.URL.Path, durationMs, allowed)

	s.auditStore.Add(audit.Entry{
		Timestamp: time.Now().UTC(),
		SignalID:  signalID,
		Source:    source,
		Filter:    s.filterName,
		Allowed:   allowed,
		TraceID:   traceID,
	})

	message := "signal accepted"
	if !allowed {
		message = "signal rejected"
	}
	s.logRequest(ctx, message, r, status,
		zap.String("signal_id", signalID),
		zap.String("source", source),
		zap.Int64("duration_ms", durationMs),
	)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), 50)
	allowed, rejected := s.auditStore.Totals()
	writeJSON(w, http.StatusOK, auditResponse{
		Allowed:  allowed,
		Rejected: rejected,
		Entries:  s.auditStore.List(limit),
	})
}

// readJSON decodes a single JSON object. An empty body leaves dst untouched.
func readJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("unexpected data after json body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// clientHost returns the caller's host. RealIP has already applied
// X-Forwarded-For and X-Real-IP to RemoteAddr.
func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// retryAfterSeconds rounds the window up to whole seconds, the worst case
// wait for a slot.
func retryAfterSeconds(window time.Duration) string {
	seconds := int64((window + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return strconv.FormatInt(seconds, 10)
}

func startSpan(ctx context.Context, r *http.Request) (context.Context, trace.Span) {
	propagator := otel.GetTextMapPropagator()
	ctx = propagator.Extract(ctx, propagation.HeaderCarrier(r.Header))
	tracer := otel.Tracer(serviceTraceName)
	ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path)
	span.SetAttributes(
		attribute.String("http.method", r.Method),
		attribute.String("http.route", r.URL.Path),
	)
	return ctx, span
}

func (s *Server) logRequest(ctx context.Context, message string, r *http.Request, status int, fields ...zap.Field) {
	span := trace.SpanFromContext(ctx)
	fields = append(fields,
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
	)
	s.logger.Info(message, fields...)
}

func recordMetrics(ctx context.Context, path string, durationMs int64, allowed bool) {
	duration := getDurationHistogram()
	duration.Record(ctx, durationMs,
		metric.WithAttributes(
			attribute.String("http.route", path),
			attribute.Bool("signal.allowed", allowed),
		),
	)
}

func getDurationHistogram() metric.Int64Histogram {
	durationOnce.Do(func() {
		meter := otel.Meter(serviceTraceName)
		histogram, _ := meter.Int64Histogram("http.server.duration", metric.WithUnit("ms"))
		durationHistogram = histogram
	})
	return durationHistogram
}
