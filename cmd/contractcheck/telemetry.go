// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const serviceName = "contractcheck"

type tracingOptions struct {
	// stdout prints spans to writer.
	stdout bool
	writer io.Writer

	// otlpEndpoint exports spans over OTLP/gRPC when set.
	otlpEndpoint string
	insecure     bool
}

// setupTracing installs a tracer provider for the configured exporters and
// returns its shutdown function. With no exporter the global no-op
// provider is left in place.
func setupTracing(ctx context.Context, opts tracingOptions) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	var exporters []sdktrace.SpanExporter
	if opts.stdout {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(opts.writer), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("stdout exporter: %w", err)
		}
		exporters = append(exporters, exp)
	}
	if opts.otlpEndpoint != "" {
		clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.otlpEndpoint)}
		if opts.insecure {
			clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		exporters = append(exporters, exp)
	}
	if len(exporters) == 0 {
		return func(context.Context) error { return nil }, nil
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(newResource()),
	}
	for _, exp := range exporters {
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exp))
	}
	tp := sdktrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(tp.ForceFlush(ctx), tp.Shutdown(ctx))
	}, nil
}

func newResource() *resource.Resource {
	return resource.NewSchemaless(attribute.String("service.name", serviceName))
}

type metricsOptions struct {
	// stdout periodically prints metrics to writer.
	stdout bool
	writer io.Writer

	// registerer receives the Prometheus bridge of the OpenTelemetry
	// instruments, so they are served by promhttp next to the native
	// collectors.
	registerer prometheus.Registerer
}

// setupMetrics installs a MeterProvider that exports through Prometheus
// and, when requested, to stdout. It returns the provider's shutdown
// function.
func setupMetrics(opts metricsOptions) (func(context.Context) error, error) {
	promExp, err := otelprom.New(otelprom.WithRegisterer(opts.registerer))
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	providerOpts := []sdkmetric.Option{
		sdkmetric.WithResource(newResource()),
		sdkmetric.WithReader(promExp),
	}
	if opts.stdout {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(opts.writer), stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("stdout metric exporter: %w", err)
		}
		providerOpts = append(providerOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}
	mp := sdkmetric.NewMeterProvider(providerOpts...)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}
