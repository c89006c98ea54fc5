// Package telemetry provides a way to collect telemetry from function execution - metrics and traces.
package telemetry

import (
	"context"
	"io"

	"github.com/kdice/kdice/internal/errors"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	// ExporterNone disables collection.
	ExporterNone = "none"
	// ExporterConsole writes spans and metrics as JSON to the telemetry writer.
	ExporterConsole = "console"
)

// Options selects the exporters.
type Options struct {
	TraceExporter  string
	MetricExporter string
}

type Telemeter struct {
	*Tracer
	*Meter
}

// NewTelemeter initializes the telemetry collector. With both exporters set to none the
// returned Telemeter is a no-op.
func NewTelemeter(ctx context.Context, appName, appVersion string, writer io.Writer, opts *Options) (*Telemeter, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(appName),
			semconv.ServiceVersion(appVersion),
		),
	)
	if err != nil {
		return nil, errors.New(err)
	}

	tracer, err := NewTracer(ctx, appName, writer, res, opts.TraceExporter)
	if err != nil {
		return nil, err
	}

	meter, err := NewMeter(appName, writer, res, opts.MetricExporter)
	if err != nil {
		return nil, err
	}

	return &Telemeter{Tracer: tracer, Meter: meter}, nil
}

// Shutdown flushes and stops the providers.
func (tlm *Telemeter) Shutdown(ctx context.Context) error {
	if tlm == nil {
		return nil
	}

	var errs *errors.MultiError

	if tlm.Tracer != nil && tlm.Tracer.provider != nil {
		errs = errs.Append(tlm.Tracer.provider.Shutdown(ctx))
		tlm.Tracer.provider = nil
	}

	if tlm.Meter != nil && tlm.Meter.provider != nil {
		errs = errs.Append(tlm.Meter.provider.Shutdown(ctx))
		tlm.Meter.provider = nil
	}

	return errs.ErrorOrNil()
}

// Collect collects telemetry from function execution metrics and traces.
func (tlm *Telemeter) Collect(ctx context.Context, name string, attrs map[string]any, fn func(childCtx context.Context) error) error {
	if tlm == nil {
		return fn(ctx)
	}

	return tlm.Trace(ctx, name, attrs, func(ctx context.Context) error {
		return tlm.Time(ctx, name, attrs, fn)
	})
}
