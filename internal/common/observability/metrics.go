package observability

import (
	"context"
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/otlptranslator"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"diagnosis-workers/internal/common/config"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer

	jobCounter        otelmetric.Int64Counter
	jobDuration       otelmetric.Float64Histogram
	diagnosisCounter  otelmetric.Int64Counter
	diagnosisDuration otelmetric.Float64Histogram
}

type options struct {
	registerer     promclient.Registerer
	tracing        config.TracingConfig
	spanProcessors []sdktrace.SpanProcessor
	global         bool
}

type Option func(*options)

// WithRegisterer sends the prometheus exporter's collectors to r instead of
// the default registry.
func WithRegisterer(r promclient.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithTracing enables the tracer provider, exporting to Jaeger when an
// endpoint is configured.
func WithTracing(cfg config.TracingConfig) Option {
	return func(o *options) { o.tracing = cfg }
}

// WithSpanProcessor attaches an extra span processor and implies tracing.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) {
		o.spanProcessors = append(o.spanProcessors, sp)
		o.tracing.Enabled = true
	}
}

// WithoutGlobal keeps the providers out of the otel globals.
func WithoutGlobal() Option {
	return func(o *options) { o.global = false }
}

func New(serviceName string, opts ...Option) (*Observability, error) {
	o := options{global: true, tracing: config.TracingConfig{SampleRatio: 1}}
	for _, opt := range opts {
		opt(&o)
	}

	// dotted instrument names become jobs_processed_total and so on
	exporterOpts := []prometheus.Option{
		prometheus.WithTranslationStrategy(otlptranslator.UnderscoreEscapingWithSuffixes),
	}
	if o.registerer != nil {
		exporterOpts = append(exporterOpts, prometheus.WithRegisterer(o.registerer))
	}
	exporter, err := prometheus.New(exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	provider := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	meter := provider.Meter(serviceName)

	obs := &Observability{
		meterProvider: provider,
		meter:         meter,
		tracer:        noop.NewTracerProvider().Tracer(serviceName),
	}

	if o.tracing.Enabled {
		tp, err := newTracerProvider(res, o)
		if err != nil {
			_ = provider.Shutdown(context.Background())
			return nil, err
		}
		obs.tracerProvider = tp
		obs.tracer = tp.Tracer(serviceName)
	}

	if o.global {
		otel.SetMeterProvider(provider)
		if obs.tracerProvider != nil {
			otel.SetTracerProvider(obs.tracerProvider)
		}
	}

	obs.jobCounter, _ = meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)
	obs.jobDuration, _ = meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)
	obs.diagnosisCounter, _ = meter.Int64Counter(
		"diagnoses.produced",
		otelmetric.WithDescription("Diagnoses produced by confidence reason"),
	)
	obs.diagnosisDuration, _ = meter.Float64Histogram(
		"diagnoses.duration",
		otelmetric.WithDescription("Diagnosis pipeline duration"),
		otelmetric.WithUnit("ms"),
	)

	return obs, nil
}

func newTracerProvider(res *resource.Resource, o options) (*sdktrace.TracerProvider, error) {
	ratio := o.tracing.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}
	if o.tracing.JaegerEndpoint != "" {
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(o.tracing.JaegerEndpoint)))
		if err != nil {
			return nil, fmt.Errorf("create jaeger exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}
	for _, sp := range o.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}
	return sdktrace.NewTracerProvider(tpOpts...), nil
}

// StartSpan opens a span on the service tracer. With tracing disabled the
// span is a no-op.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordJobProcessed(ctx context.Context, status string) {
	if o != nil && o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, duration time.Duration, status string) {
	if o != nil && o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordDiagnosis(ctx context.Context, reason string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("reason", reason))
	if o.diagnosisCounter != nil {
		o.diagnosisCounter.Add(ctx, 1, attrs)
	}
	if o.diagnosisDuration != nil {
		o.diagnosisDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
