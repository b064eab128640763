// Package observability wires OpenTelemetry tracing for cache population and
// counter reconciliation.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config holds tracing configuration.
type Config struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"` // otlp-http | discard
	Endpoint    string  `yaml:"endpoint"` // host:port of the OTLP/HTTP collector
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

const defaultServiceName = "contentcache"

type provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

var current = noopProvider()

func noopProvider() *provider {
	return &provider{tracer: noop.NewTracerProvider().Tracer(defaultServiceName)}
}

// Init installs the process tracer. With tracing disabled StartSpan still
// works and records nothing.
func Init(ctx context.Context, cfg Config) error {
	if !cfg.Enabled {
		current = noopProvider()
		return nil
	}
	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return err
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(name),
		AttrTier.String("cache"),
	))
	if err != nil {
		return fmt.Errorf("tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	current = &provider{tp: tp, tracer: tp.Tracer(name)}
	return nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", "otlp", "otlp-http":
		opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		return exp, nil
	case "discard":
		return discardExporter{}, nil
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}
}

// sampler samples everything for rates outside [0, 1).
func sampler(rate float64) sdktrace.Sampler {
	if rate >= 0 && rate < 1 {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
	return sdktrace.AlwaysSample()
}

// Shutdown flushes buffered spans, waiting at most five seconds.
func Shutdown(ctx context.Context) error {
	if current.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return current.tp.Shutdown(ctx)
}

func Tracer() trace.Tracer { return current.tracer }

type discardExporter struct{}

func (discardExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (discardExporter) Shutdown(context.Context) error                             { return nil }
