// Package observability wires zap logging and OpenTelemetry tracing for
// the executor. Spans are exported over OTLP/gRPC; WrapHandler offers
// otelhttp instrumentation for an HTTP handler.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// NewLogger builds the process logger: development config for the
// development environment, production config otherwise.
func NewLogger(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// InitTracing initializes the global OpenTelemetry tracer provider and
// returns a shutdown function that flushes pending spans.
func InitTracing(serviceName, serviceVersion, otlpEndpoint string) (func(context.Context) error, error) {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
			semconv.ServiceNamespace("dagflow"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(otlpEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	bsp := trace.NewBatchSpanProcessor(traceExporter)
	tracerProvider := trace.NewTracerProvider(
		trace.WithSampler(trace.AlwaysSample()),
		trace.WithResource(res),
		trace.WithSpanProcessor(bsp),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tracerProvider.Shutdown, nil
}

// GetTracer returns a tracer for the given name.
func GetTracer(name string) oteltrace.Tracer {
	return otel.Tracer(name)
}

// ExecutorTracer adapts GetTracer's span-start call to the minimal
// executor.Tracer interface, so the executor package never imports
// OpenTelemetry directly.
type ExecutorTracer struct {
	tracer oteltrace.Tracer
}

// NewExecutorTracer wraps the named tracer for use as an executor.Tracer.
func NewExecutorTracer(name string) ExecutorTracer {
	return ExecutorTracer{tracer: GetTracer(name)}
}

func (t ExecutorTracer) StartSpan(ctx context.Context, name string) (context.Context, func()) {
	spanCtx, span := t.tracer.Start(ctx, name)
	return spanCtx, func() { span.End() }
}

// WrapHandler instruments an HTTP handler with otelhttp. No handler in
// this module is wrapped with it; workflowctl serves no HTTP endpoints.
func WrapHandler(operation string, handler http.Handler) http.Handler {
	return otelhttp.NewHandler(handler, operation)
}

// ShutdownTimeout bounds how long InitTracing's shutdown func is given to
// flush pending spans on process exit.
const ShutdownTimeout = 5 * time.Second
