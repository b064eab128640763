package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan creates an internal span with the given attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// SetSpanError marks the span as errored.
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Attribute keys shared by cache and reconcile spans.
var (
	AttrCache       = attribute.Key("contentcache.cache")
	AttrKey         = attribute.Key("contentcache.key")
	AttrID          = attribute.Key("contentcache.id")
	AttrCount       = attribute.Key("contentcache.count")
	AttrCounter     = attribute.Key("contentcache.counter")
	AttrRunID       = attribute.Key("contentcache.reconcile.run_id")
	AttrNotFound    = attribute.Key("contentcache.not_found")
	AttrStoreOrigin = attribute.Key("contentcache.store.query")
	AttrTier        = attribute.Key("contentcache.tier")
)

func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}
