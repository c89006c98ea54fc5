package telemetry

import (
	"context"
	"io"

	"github.com/kdice/kdice/internal/errors"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type Tracer struct {
	trace.Tracer
	provider *sdktrace.TracerProvider
}

// NewTracer creates the trace collection, nil when the exporter is none.
func NewTracer(_ context.Context, appName string, writer io.Writer, res *resource.Resource, exporter string) (*Tracer, error) {
	switch exporter {
	case "", ExporterNone:
		return nil, nil
	case ExporterConsole:
	default:
		return nil, errors.Errorf("unsupported trace exporter %q", exporter)
	}

	spanExporter, err := stdouttrace.New(stdouttrace.WithWriter(writer))
	if err != nil {
		return nil, errors.New(err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)

	return &Tracer{Tracer: provider.Tracer(appName), provider: provider}, nil
}

// Trace runs fn inside a span named name.
func (tracer *Tracer) Trace(ctx context.Context, name string, attrs map[string]any, fn func(childCtx context.Context) error) error {
	if tracer == nil || tracer.provider == nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(mapToAttributes(attrs)...))
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return err
	}

	return nil
}
