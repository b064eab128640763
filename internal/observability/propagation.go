package observability

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Environment variables an external scheduler can set so a one-shot
// command joins the caller's trace.
const (
	EnvTraceParent = "TRACEPARENT"
	EnvTraceState  = "TRACESTATE"
)

// ContextFromEnv returns ctx carrying the remote span context found in
// TRACEPARENT/TRACESTATE, or ctx unchanged when none is set.
func ContextFromEnv(ctx context.Context) context.Context {
	tp := os.Getenv(EnvTraceParent)
	if tp == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{
		"traceparent": tp,
		"tracestate":  os.Getenv(EnvTraceState),
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// TraceID returns the trace id carried by ctx, or "".
func TraceID(ctx context.Context) string {
	sc := SpanFromContext(ctx).SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
