// Package telemetry wires up tracing for the redaction sidecar. One span is
// opened around each session-scoped HTTP handler; the scanner and vault
// calls a handler makes do not get spans of their own.
//
// The default exporter writes spans to stderr via stdouttrace — the
// sidecar has no opinion about where traces ultimately land, so operators
// point an OTLP collector at it by swapping the exporter in NewProvider.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "pii-redactor"

// Provider owns the process-wide tracer provider and must be shut down on
// exit to flush any buffered spans.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewProvider builds a tracer provider. When out is nil, spans are
// discarded (io.Discard) rather than printed — useful for tests, where a
// trace dump would just be noise.
func NewProvider(serviceVersion string, out io.Writer) (*Provider, error) {
	if out == nil {
		out = io.Discard
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(instrumentationName),
		semconv.ServiceVersion(serviceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp, tracer: tp.Tracer(instrumentationName)}, nil
}

// Tracer returns the tracer spans should be started from.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Shutdown flushes buffered spans and releases exporter resources.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}

// StartRequestSpan opens a span for one inbound API call, tagged with the
// session it operates on (spec.md §6 endpoints are all session-scoped).
func (p *Provider) StartRequestSpan(ctx context.Context, operation, session string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, operation, trace.WithAttributes(
		attribute.String("pii_redactor.session_id", session),
	))
}
