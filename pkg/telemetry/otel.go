package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vzahanych/weather-alert-bot/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	serviceName    = "weather-alert-bot"
	serviceVersion = "1.0.0"
)

type Telemetry struct {
	enabled  bool
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	conn     *grpc.ClientConn
}

func New(ctx context.Context, cfg config.TelemetryConfig) (*Telemetry, error) {
	t := &Telemetry{
		enabled: cfg.Enabled,
	}

	if !cfg.Enabled {
		return t, nil
	}

	if err := t.initTracer(ctx, cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	return t, nil
}

// NewWithProvider wraps an existing tracer provider, e.g. one backed by an
// in-memory exporter in tests.
func NewWithProvider(provider *sdktrace.TracerProvider) *Telemetry {
	return &Telemetry{
		enabled:  true,
		provider: provider,
		tracer:   provider.Tracer(serviceName),
	}
}

func (t *Telemetry) initTracer(ctx context.Context, endpoint string) error {
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create resource: %w", err)
	}

	t.conn = conn
	t.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(t.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.tracer = otel.Tracer(serviceName)

	return nil
}

func (t *Telemetry) IsEnabled() bool {
	if t == nil {
		return false
	}
	return t.enabled
}

func (t *Telemetry) GetTracer() trace.Tracer {
	if t == nil || !t.enabled || t.tracer == nil {
		return noop.NewTracerProvider().Tracer("noop")
	}
	return t.tracer
}

// RecordError marks the span in ctx as failed and attaches contextData as
// string attributes.
func (t *Telemetry) RecordError(ctx context.Context, err error, contextData map[string]any) {
	if !t.IsEnabled() || err == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	for k, v := range contextData {
		span.SetAttributes(attribute.String(k, fmt.Sprintf("%v", v)))
	}
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	if !t.IsEnabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	if t.provider != nil {
		if err := t.provider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
	}
	if t.conn != nil {
		if err := t.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close exporter connection: %w", err))
		}
	}

	return errors.Join(errs...)
}
