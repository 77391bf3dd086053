// Package chotel provides OpenTelemetry instrumentation for chnative
// sessions. It implements the chnative.QueryHook interface to add
// distributed tracing and metrics to query and insert dispatch.
//
// Usage:
//
//	hook := chotel.NewHook(chotel.DefaultConfig())
//	cfg := chnative.Config{..., Hook: hook}
package chotel

import (
	"context"
	"fmt"
	"time"

	"github.com/queryfarm/chnative/chnative"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "chnative"

// Config configures OpenTelemetry instrumentation for a chnative session.
type Config struct {
	// TracerProvider supplies the tracer. Defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// MeterProvider supplies the meter. Defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// EnableTracing enables span creation. Default true.
	EnableTracing bool
	// EnableMetrics enables counter and histogram recording. Default true.
	EnableMetrics bool
	// RecordExceptions calls RecordError on the span for failed queries.
	// Default true.
	RecordExceptions bool
	// DatabaseName is the db.name attribute value.
	DatabaseName string
	// CustomAttributes are added to every span.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig returns a Config with sensible defaults. TracerProvider and
// MeterProvider are resolved from the global OTel SDK at NewHook time.
func DefaultConfig() Config {
	return Config{
		EnableTracing:    true,
		EnableMetrics:    true,
		RecordExceptions: true,
	}
}

// NewHook builds a chnative.QueryHook that records spans and metrics for
// every query/insert issued on a session.
func NewHook(cfg Config) chnative.QueryHook {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}

	h := &otelHook{
		cfg:    cfg,
		tracer: cfg.TracerProvider.Tracer(instrumentationName),
	}

	if cfg.EnableMetrics {
		meter := cfg.MeterProvider.Meter(instrumentationName)
		h.queryCounter, _ = meter.Int64Counter("chnative.client.queries",
			metric.WithUnit("{query}"),
			metric.WithDescription("Number of queries and inserts issued"),
		)
		h.durationHistogram, _ = meter.Float64Histogram("chnative.client.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Duration of queries and inserts"),
		)
	}

	return h
}

// otelHook implements chnative.QueryHook with OpenTelemetry tracing and
// metrics.
type otelHook struct {
	cfg               Config
	tracer            trace.Tracer
	queryCounter      metric.Int64Counter
	durationHistogram metric.Float64Histogram
}

// spanToken is the HookToken returned by OnQueryStart.
type spanToken struct {
	span      trace.Span
	startTime time.Time
}

func (h *otelHook) OnQueryStart(ctx context.Context, info chnative.QueryInfo) chnative.HookToken {
	if !h.cfg.EnableTracing {
		return &spanToken{startTime: info.StartTime}
	}

	op := "db.query"
	if info.IsInsert {
		op = "db.insert"
	}

	attrs := []attribute.KeyValue{
		attribute.String("db.system", "clickhouse"),
		attribute.String("db.operation", op),
		attribute.String("chnative.request_id", info.RequestID),
	}
	if h.cfg.DatabaseName != "" {
		attrs = append(attrs, attribute.String("db.name", h.cfg.DatabaseName))
	}
	attrs = append(attrs, h.cfg.CustomAttributes...)

	_, span := h.tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return &spanToken{span: span, startTime: info.StartTime}
}

func (h *otelHook) OnQueryEnd(ctx context.Context, token chnative.HookToken, stats chnative.QueryStatistics, err error) {
	st, ok := token.(*spanToken)
	if !ok || st == nil {
		return
	}

	duration := time.Since(st.startTime)
	status := "ok"
	if err != nil {
		status = "error"
	}

	if h.cfg.EnableMetrics {
		metricAttrs := metric.WithAttributes(
			attribute.String("db.system", "clickhouse"),
			attribute.String("status", status),
		)
		if h.queryCounter != nil {
			h.queryCounter.Add(ctx, 1, metricAttrs)
		}
		if h.durationHistogram != nil {
			h.durationHistogram.Record(ctx, duration.Seconds(), metricAttrs)
		}
	}

	if st.span != nil && st.span.IsRecording() {
		st.span.SetAttributes(
			attribute.Int64("chnative.rows_read", stats.RowsRead),
			attribute.Int64("chnative.rows_written", stats.RowsWritten),
			attribute.Int64("chnative.bytes_read", stats.BytesRead),
			attribute.Int64("chnative.bytes_written", stats.BytesWritten),
			attribute.Int64("chnative.batches_read", stats.BatchesRead),
			attribute.Int64("chnative.batches_written", stats.BatchesWritten),
		)
		if err != nil {
			st.span.SetStatus(codes.Error, err.Error())
			if h.cfg.RecordExceptions {
				st.span.RecordError(err)
			}
			errType := fmt.Sprintf("%T", err)
			st.span.SetAttributes(attribute.String("chnative.error_type", errType))
		} else {
			st.span.SetStatus(codes.Ok, "")
		}
		st.span.End()
	}
}
