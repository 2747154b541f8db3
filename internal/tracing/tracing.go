// Package tracing wires OpenTelemetry spans around the hot paths of the
// runtime: agent runs, individual steps, model calls, and tool
// invocations. When no exporter is configured Init is a no-op and the
// otel API falls back to its zero-cost noop tracer.
package tracing

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/arium/arium"

// Init installs an OTLP trace exporter if OTEL_EXPORTER_OTLP_ENDPOINT
// is set, choosing grpc or http by OTEL_EXPORTER_OTLP_PROTOCOL
// (default grpc). Returns a shutdown func; callers should defer it.
func Init(ctx context.Context) (func(context.Context) error, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	var exp *otlptrace.Exporter
	var err error
	switch os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL") {
	case "http/protobuf", "http":
		exp, err = otlptracehttp.New(ctx)
	default:
		exp, err = otlptracegrpc.New(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("tracing: create exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the shared tracer for this module.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartRun opens a span covering one whole agent run.
func StartRun(ctx context.Context, agentID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "agent.run",
		trace.WithAttributes(attribute.String("agent.id", agentID)))
}

// StartStep opens a span for one loop iteration.
func StartStep(ctx context.Context, agentID string, step int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "agent.step",
		trace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.Int("agent.step", step)))
}

// StartModelCall opens a span for one provider Generate call.
func StartModelCall(ctx context.Context, provider string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "model.generate",
		trace.WithAttributes(attribute.String("model.provider", provider)))
}

// StartToolCall opens a span for one tool invocation.
func StartToolCall(ctx context.Context, toolID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "tool.invoke",
		trace.WithAttributes(attribute.String("tool.id", toolID)))
}
