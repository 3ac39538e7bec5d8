// Package otel sets up the OpenTelemetry pipeline driver spans are
// exported through.
package otel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "k6-acceptance"

// ErrUnsupportedProto is returned for an exporter protocol other than
// "http" or "grpc".
var ErrUnsupportedProto = errors.New("unsupported protocol")

// Config selects where driver spans go. An empty Endpoint disables
// exporting.
type Config struct {
	Proto    string
	Endpoint string
	Insecure bool
}

// exporterClients builds an OTLP client per supported protocol.
var exporterClients = map[string]func(Config) otlptrace.Client{ //nolint:gochecknoglobals
	"http": func(c Config) otlptrace.Client {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(c.Endpoint)}
		if c.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.NewClient(opts...)
	},
	"grpc": func(c Config) otlptrace.Client {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(c.Endpoint)}
		if c.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.NewClient(opts...)
	},
}

// Provider is the process wide tracer provider. It must be shut down to
// flush buffered spans.
type Provider struct {
	trace.TracerProvider

	shutdown func(context.Context) error
}

// NewProvider returns a Provider exporting over OTLP as cfg describes, or
// a noop Provider when cfg has no endpoint. It becomes the global provider.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Endpoint == "" {
		return NoopProvider(), nil
	}

	newClient, ok := exporterClients[strings.ToLower(cfg.Proto)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProto, cfg.Proto)
	}
	exporter, err := otlptrace.New(ctx, newClient(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating %s exporter for %s: %w", cfg.Proto, cfg.Endpoint, err)
	}

	sdkProv := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	)
	otel.SetTracerProvider(sdkProv)

	return &Provider{TracerProvider: sdkProv, shutdown: sdkProv.Shutdown}, nil
}

// NoopProvider returns a Provider that records nothing.
func NoopProvider() *Provider {
	p := trace.NewNoopTracerProvider()
	otel.SetTracerProvider(p)

	return &Provider{TracerProvider: p}
}

// Shutdown flushes and stops the exporter. It is a no-op for a noop
// Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}
