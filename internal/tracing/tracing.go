// File: internal/tracing/tracing.go
// Brief: OpenTelemetry tracer provider setup.

// Package tracing configures the tracer used for run and task spans. When
// disabled it hands out a no-op tracer so callers never branch on it.
package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/example/monopipe"

type Options struct {
	Enabled bool
	// Out receives spans as JSON when Enabled is true.
	Out    io.Writer
	Pretty bool
}

// Provider owns the tracer and its shutdown hook.
type Provider struct {
	tracer   trace.Tracer
	shutdown func(context.Context) error
}

func New(opts Options) (*Provider, error) {
	if !opts.Enabled {
		return &Provider{
			tracer:   noop.NewTracerProvider().Tracer(instrumentationName),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}
	if opts.Out == nil {
		return nil, fmt.Errorf("tracing enabled without an output writer")
	}
	exOpts := []stdouttrace.Option{stdouttrace.WithWriter(opts.Out)}
	if opts.Pretty {
		exOpts = append(exOpts, stdouttrace.WithPrettyPrint())
	}
	exp, err := stdouttrace.New(exOpts...)
	if err != nil {
		return nil, fmt.Errorf("stdout trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	return &Provider{
		tracer:   tp.Tracer(instrumentationName),
		shutdown: tp.Shutdown,
	}, nil
}

func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}
