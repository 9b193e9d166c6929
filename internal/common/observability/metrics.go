package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability bundles the OpenTelemetry meter and tracer used by the search
// pipeline. A zero value is safe to use and records nothing.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	stageDuration  otelmetric.Float64Histogram
	resultCounter  otelmetric.Int64Counter
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

// New registers an OpenTelemetry Prometheus exporter and an in-process
// tracer provider for serviceName.
func New(serviceName string, log Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		if log != nil {
			log.Warn("failed to create prometheus exporter", map[string]interface{}{"error": err.Error()})
		}
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	tracerProvider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tracerProvider)

	return newWith(provider, tracerProvider, serviceName)
}

func newWith(mp *metric.MeterProvider, tp *sdktrace.TracerProvider, serviceName string) *Observability {
	meter := mp.Meter(serviceName)

	stageDuration, _ := meter.Float64Histogram(
		"search.stage.duration",
		otelmetric.WithDescription("Duration of a search pipeline stage"),
		otelmetric.WithUnit("ms"),
	)

	resultCounter, _ := meter.Int64Counter(
		"search.results",
		otelmetric.WithDescription("Results returned to callers"),
	)

	return &Observability{
		meterProvider:  mp,
		tracerProvider: tp,
		meter:          meter,
		tracer:         tp.Tracer(serviceName),
		stageDuration:  stageDuration,
		resultCounter:  resultCounter,
	}
}

// StartSpan opens a span named name. The returned function ends it.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func()) {
	if o == nil || o.tracer == nil {
		return ctx, func() {}
	}
	ctx, span := o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func() { span.End() }
}

// RecordStage records how long a pipeline stage took.
func (o *Observability) RecordStage(ctx context.Context, stage string, duration time.Duration) {
	if o == nil || o.stageDuration == nil {
		return
	}
	o.stageDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("stage", stage),
	))
}

// RecordResults counts results handed back for a region.
func (o *Observability) RecordResults(ctx context.Context, region string, n int) {
	if o == nil || o.resultCounter == nil {
		return
	}
	o.resultCounter.Add(ctx, int64(n), otelmetric.WithAttributes(
		attribute.String("region", region),
	))
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
