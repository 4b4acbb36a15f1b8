// Package telemetry traces promotions with OpenTelemetry.
// A promotion is one root span with a child span per deployed environment.
package telemetry

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	otrace "go.opentelemetry.io/otel/trace"

	"github.com/nais/promote/pkg/version"
)

const (
	// How long between each time spans are sent to the collector.
	batchTimeout = 5 * time.Second

	instrumentationName = "github.com/nais/promote"
	traceparentHeader   = "traceparent"

	AttributeSession     = attribute.Key("promote.session")
	AttributeVersion     = attribute.Key("promote.version")
	AttributeRollback    = attribute.Key("promote.rollback")
	AttributeEnvironment = attribute.Key("promote.environment")
	AttributePlatform    = attribute.Key("promote.platform")
	AttributeEndpoint    = attribute.Key("promote.endpoint")
)

// New installs a global tracer provider. Spans are exported only when a collector endpoint is given.
//
// You MUST call `Shutdown()` on the tracer provider before exiting,
// lest traces are not sent to the collector.
func New(ctx context.Context, serviceName string, collectorEndpointURL string) (*trace.TracerProvider, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	options := []trace.TracerProviderOption{
		trace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version.Version()),
			semconv.OSName(runtime.GOOS),
		)),
	}

	if len(collectorEndpointURL) > 0 {
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(collectorEndpointURL))
		if err != nil {
			return nil, err
		}
		options = append(options, trace.WithBatcher(exporter, trace.WithBatchTimeout(batchTimeout)))
	}

	provider := trace.NewTracerProvider(options...)
	otel.SetTracerProvider(provider)

	return provider, nil
}

// Tracer returns the tracer of the global provider. Spans are dropped until New has been called.
func Tracer() otrace.Tracer {
	return otel.Tracer(instrumentationName)
}

// WithTraceParent continues a trace started elsewhere, typically by the CI pipeline running the promotion.
// The value is a W3C Trace Context traceparent header; anything invalid is ignored.
func WithTraceParent(ctx context.Context, traceparent string) context.Context {
	if len(traceparent) == 0 {
		return ctx
	}
	return propagation.TraceContext{}.Extract(ctx, propagation.MapCarrier{
		traceparentHeader: traceparent,
	})
}

// TraceID returns the trace of the span in ctx, or an empty string outside of a recorded trace.
func TraceID(ctx context.Context) string {
	sc := otrace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

func SessionAttributes(session, version string, rollback bool) otrace.SpanStartEventOption {
	return otrace.WithAttributes(
		AttributeSession.String(session),
		AttributeVersion.String(version),
		AttributeRollback.Bool(rollback),
	)
}

func StageAttributes(environment, platform string) otrace.SpanStartEventOption {
	return otrace.WithAttributes(
		AttributeEnvironment.String(environment),
		AttributePlatform.String(platform),
	)
}

// Fail records err on span and marks it as failed.
func Fail(span otrace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
