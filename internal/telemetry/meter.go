package telemetry

import (
	"context"
	"io"
	"time"

	"github.com/kdice/kdice/internal/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const (
	durationSuffix = "_duration"
	countSuffix    = "_count"
)

type Meter struct {
	metric.Meter
	provider   *sdkmetric.MeterProvider
	histograms *xsync.MapOf[string, metric.Float64Histogram]
	counters   *xsync.MapOf[string, metric.Int64Counter]
}

// NewMeter creates the metric collection, nil when the exporter is none.
func NewMeter(appName string, writer io.Writer, res *resource.Resource, exporter string) (*Meter, error) {
	switch exporter {
	case "", ExporterNone:
		return nil, nil
	case ExporterConsole:
	default:
		return nil, errors.Errorf("unsupported metric exporter %q", exporter)
	}

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(writer))
	if err != nil {
		return nil, errors.New(err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(time.Minute))),
	)

	return &Meter{
		Meter:      provider.Meter(appName),
		provider:   provider,
		histograms: xsync.NewMapOf[string, metric.Float64Histogram](),
		counters:   xsync.NewMapOf[string, metric.Int64Counter](),
	}, nil
}

// Time records the duration of fn in milliseconds under `<name>_duration`.
func (meter *Meter) Time(ctx context.Context, name string, attrs map[string]any, fn func(childCtx context.Context) error) error {
	if meter == nil || meter.provider == nil {
		return fn(ctx)
	}

	started := time.Now()
	err := fn(ctx)

	histogram, _ := meter.histograms.LoadOrCompute(name, func() metric.Float64Histogram {
		histogram, _ := meter.Float64Histogram(CleanMetricName(name+durationSuffix), metric.WithUnit("ms"))
		return histogram
	})

	if histogram != nil {
		histogram.Record(ctx, float64(time.Since(started).Milliseconds()), metric.WithAttributes(mapToAttributes(attrs)...))
	}

	return err
}

// Count adds value to the counter `<name>_count`.
func (meter *Meter) Count(ctx context.Context, name string, value int64, attrs map[string]any) {
	if meter == nil || meter.provider == nil {
		return
	}

	counter, _ := meter.counters.LoadOrCompute(name, func() metric.Int64Counter {
		counter, _ := meter.Int64Counter(CleanMetricName(name + countSuffix))
		return counter
	})

	if counter != nil {
		counter.Add(ctx, value, metric.WithAttributes(mapToAttributes(attrs)...))
	}
}
