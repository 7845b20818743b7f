// Package telemetry wires OpenTelemetry tracing and metrics for analyses.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/straja-ai/emotion/internal/config"
)

const instrumentationName = "github.com/straja-ai/emotion"

// Provider holds the tracer, the meter and the analysis instruments. A nil
// *Provider is valid and records nothing.
type Provider struct {
	Enabled bool
	tracer  trace.Tracer
	meter   metric.Meter

	analyses           metric.Int64Counter
	classifierDuration metric.Float64Histogram
	analysisDuration   metric.Float64Histogram

	shutdown []func(context.Context) error
}

// NewProvider configures OTLP exporters over grpc or http. When telemetry is
// disabled it returns no-op providers.
func NewProvider(ctx context.Context, cfg config.TelemetryConfig, version string) (*Provider, error) {
	if !cfg.Enabled {
		return Noop(), nil
	}

	service := cfg.Service
	if service == "" {
		service = "emotion"
	}
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", service),
			attribute.String("service.version", version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	var (
		spanExp   sdktrace.SpanExporter
		metricExp sdkmetric.Exporter
	)
	switch strings.ToLower(cfg.Protocol) {
	case "", "grpc":
		if spanExp, err = otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure()); err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		if metricExp, err = otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(cfg.Endpoint), otlpmetricgrpc.WithInsecure()); err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
	case "http":
		if spanExp, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure()); err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		if metricExp, err = otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithInsecure()); err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported telemetry protocol %q", cfg.Protocol)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExp),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	log.Info().
		Str("protocol", strings.ToLower(cfg.Protocol)).
		Str("endpoint", cfg.Endpoint).
		Msg("telemetry enabled; upload warnings are expected when no collector is listening")

	return newProvider(tp.Tracer(instrumentationName), mp.Meter(instrumentationName), tp.Shutdown, mp.Shutdown), nil
}

// Noop returns a provider backed by no-op tracer and meter.
func Noop() *Provider {
	p := newProvider(tracenoop.NewTracerProvider().Tracer(""), metricnoop.NewMeterProvider().Meter(""))
	p.Enabled = false
	return p
}

func newProvider(tracer trace.Tracer, meter metric.Meter, shutdown ...func(context.Context) error) *Provider {
	p := &Provider{
		Enabled:  true,
		tracer:   tracer,
		meter:    meter,
		shutdown: shutdown,
	}
	// Instruments are best-effort; a nil-safe no-op is used when creation fails.
	var err error
	if p.analyses, err = meter.Int64Counter("emotion_analyses_total",
		metric.WithDescription("Analyses by backend, category and outcome")); err != nil {
		p.analyses, _ = metricnoop.NewMeterProvider().Meter("").Int64Counter("")
	}
	if p.classifierDuration, err = meter.Float64Histogram("emotion_classifier_duration_ms",
		metric.WithUnit("ms")); err != nil {
		p.classifierDuration, _ = metricnoop.NewMeterProvider().Meter("").Float64Histogram("")
	}
	if p.analysisDuration, err = meter.Float64Histogram("emotion_analysis_duration_ms",
		metric.WithUnit("ms")); err != nil {
		p.analysisDuration, _ = metricnoop.NewMeterProvider().Meter("").Float64Histogram("")
	}
	return p
}

func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return tracenoop.NewTracerProvider().Tracer("")
	}
	return p.tracer
}

// Shutdown flushes exporters.
func (p *Provider) Shutdown(ctx context.Context) {
	if p == nil {
		return
	}
	for _, fn := range p.shutdown {
		if err := fn(ctx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown")
		}
	}
}

// StartClassify opens a span around one classifier call.
func (p *Provider) StartClassify(ctx context.Context, backend, model string) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, "classifier.classify",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(SafeAttributes(map[string]any{
			"emotion.backend": backend,
			"emotion.model":   model,
		})...),
	)
}

// EndClassify records the outcome on the span and ends it.
func EndClassify(span trace.Span, label string, score float64, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.String("emotion.label", label),
			attribute.Float64("emotion.score", score),
		)
	}
	span.End()
}

// RecordAnalysis counts one analysis. label is empty when it failed.
func (p *Provider) RecordAnalysis(ctx context.Context, backend, label, outcome string, classifierMs, totalMs float64) {
	if p == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("emotion.backend", backend),
		attribute.String("emotion.label", label),
		attribute.String("emotion.outcome", outcome),
	)
	p.analyses.Add(ctx, 1, attrs)
	p.analysisDuration.Record(ctx, totalMs, attrs)
	if classifierMs > 0 {
		p.classifierDuration.Record(ctx, classifierMs, metric.WithAttributes(attribute.String("emotion.backend", backend)))
	}
}
