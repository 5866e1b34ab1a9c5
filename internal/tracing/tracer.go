package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerProvider manages the lifecycle of the OpenTelemetry tracer
type TracerProvider struct {
	tp *sdktrace.TracerProvider
}

// ConversionTracer emits spans for conversions, batches and their collaborators.
type ConversionTracer struct {
	tracer trace.Tracer
}

// NewTracerProvider creates an OTLP/gRPC tracer provider and installs it globally.
func NewTracerProvider(ctx context.Context, serviceName, serviceVersion, otlpEndpoint string, sampleRatio float64) (*TracerProvider, error) {
	exporter, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(otlpEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
			semconv.ServiceNamespaceKey.String("dashbridge"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
	)

	otel.SetTracerProvider(tp)

	return &TracerProvider{tp: tp}, nil
}

// Shutdown flushes pending spans and shuts down the provider
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	return tp.tp.Shutdown(ctx)
}

// NewConversionTracer uses the global provider, which is a no-op until
// NewTracerProvider installs a real one.
func NewConversionTracer(serviceName string) *ConversionTracer {
	return &ConversionTracer{tracer: otel.Tracer(serviceName)}
}

// NewConversionTracerWithProvider is for callers (tests) that bring their own provider.
func NewConversionTracerWithProvider(tp trace.TracerProvider, serviceName string) *ConversionTracer {
	return &ConversionTracer{tracer: tp.Tracer(serviceName)}
}

// StartConversionSpan starts a span for a single dashboard conversion
func (ct *ConversionTracer) StartConversionSpan(ctx context.Context, conversionID, title string, panelCount int) (context.Context, trace.Span) {
	return ct.tracer.Start(ctx, "dashboard_conversion",
		trace.WithAttributes(
			attribute.String("conversion.id", conversionID),
			attribute.String("dashboard.title", title),
			attribute.Int("dashboard.panel_count", panelCount),
			attribute.String("component", "converter"),
		),
	)
}

// StartBatchSpan starts a span covering a whole batch
func (ct *ConversionTracer) StartBatchSpan(ctx context.Context, batchID string, size int) (context.Context, trace.Span) {
	return ct.tracer.Start(ctx, "batch_conversion",
		trace.WithAttributes(
			attribute.String("batch.id", batchID),
			attribute.Int("batch.size", size),
			attribute.String("component", "batch"),
		),
	)
}

// StartEnrichmentSpan starts a span for one language model call
func (ct *ConversionTracer) StartEnrichmentSpan(ctx context.Context, provider, operation string) (context.Context, trace.Span) {
	return ct.tracer.Start(ctx, "enrichment_call",
		trace.WithAttributes(
			attribute.String("enrichment.provider", provider),
			attribute.String("enrichment.operation", operation),
			attribute.String("component", "enrichment"),
		),
	)
}

// StartStoreSpan starts a span for record persistence
func (ct *ConversionTracer) StartStoreSpan(ctx context.Context, operation, recordID string) (context.Context, trace.Span) {
	return ct.tracer.Start(ctx, "store_operation",
		trace.WithAttributes(
			attribute.String("store.operation", operation),
			attribute.String("store.record_id", recordID),
			attribute.String("component", "store"),
		),
	)
}

// RecordConversionMetrics records outcome attributes on a conversion span
func (ct *ConversionTracer) RecordConversionMetrics(span trace.Span, duration time.Duration, panels int, success bool) {
	span.SetAttributes(
		attribute.Int64("conversion.duration_ms", duration.Milliseconds()),
		attribute.Int("conversion.kibana_panels", panels),
		attribute.Bool("conversion.success", success),
	)

	if !success {
		span.SetStatus(codes.Error, "conversion failed")
	}
}

// RecordError records an error on a span
func (ct *ConversionTracer) RecordError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attrs...)
	span.RecordError(err)
}
