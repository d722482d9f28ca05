package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry TracerProvider with the debug exporter
// hook the web UI reads spans from.
type Tracer struct {
	provider      *sdktrace.TracerProvider
	tracer        trace.Tracer
	debugExporter *DebugExporter
}

// TracerOption configures NewTracer.
type TracerOption func(*tracerOptions)

type tracerOptions struct {
	debugExporter   *DebugExporter
	capturePayloads bool
}

// WithDebugExporter attaches an in-memory span exporter alongside the
// primary OTLP exporter, so the debug endpoint can serve recent spans
// without a full tracing backend.
func WithDebugExporter(e *DebugExporter) TracerOption {
	return func(o *tracerOptions) { o.debugExporter = e }
}

// WithCapturePayloads is currently informational only: callers that want
// full request/response bodies on spans set this and add the attributes
// themselves before calling span.SetAttributes.
func WithCapturePayloads(capture bool) TracerOption {
	return func(o *tracerOptions) { o.capturePayloads = capture }
}

// NewTracer builds a Tracer from cfg. Spans are always exported over OTLP
// gRPC to cfg.Endpoint; the "jaeger", "zipkin" and "stdout" Exporter
// values pass TracingConfig.Validate but do not select another exporter.
func NewTracer(ctx context.Context, cfg *TracingConfig, opts ...TracerOption) (*Tracer, error) {
	var to tracerOptions
	for _, opt := range opts {
		opt(&to)
	}

	grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.IsInsecure() {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	if cfg.Timeout > 0 {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithTimeout(cfg.Timeout))
	}

	exporter, err := otlptracegrpc.New(ctx, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("observability: create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	}
	if to.debugExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(to.debugExporter))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)

	return &Tracer{
		provider:      tp,
		tracer:        tp.Tracer(cfg.ServiceName),
		debugExporter: to.debugExporter,
	}, nil
}

// Start begins a span, delegating to the underlying otel Tracer.
func (t *Tracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return trace.SpanFromContext(ctx).TracerProvider().Tracer("noop").Start(ctx, spanName, opts...)
	}
	return t.tracer.Start(ctx, spanName, opts...)
}

// DebugExporter returns the in-memory span exporter, or nil if none was configured.
func (t *Tracer) DebugExporter() *DebugExporter {
	if t == nil {
		return nil
	}
	return t.debugExporter
}

// Shutdown flushes and stops the underlying TracerProvider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// GetTracer returns a named tracer from the global provider, for call
// sites without direct access to a Tracer instance.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
