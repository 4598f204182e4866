// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

var (
	// ErrNilContext is returned by Init when ctx is nil.
	ErrNilContext = errors.New("context must not be nil")

	// ErrUnknownExporter is returned for an unsupported exporter name.
	ErrUnknownExporter = errors.New("unknown exporter")
)

// Version is reported as service.version. Release builds set it with
// -ldflags "-X .../telemetry.Version=...".
var Version = "dev"

// Exporter names a telemetry backend.
type Exporter string

const (
	ExporterNone       Exporter = "none"
	ExporterOTLP       Exporter = "otlp"
	ExporterStdout     Exporter = "stdout"
	ExporterPrometheus Exporter = "prometheus"
)

var (
	traceExporters  = []Exporter{ExporterOTLP, ExporterStdout, ExporterNone}
	metricExporters = []Exporter{ExporterPrometheus, ExporterStdout, ExporterNone}
)

// Config selects where one crosstab invocation sends its traces and metrics.
type Config struct {
	Service     string
	Environment string

	Traces  Exporter
	Metrics Exporter

	// OTLPEndpoint is the gRPC receiver used by ExporterOTLP.
	OTLPEndpoint string
	OTLPInsecure bool

	// Output receives stdout exporter data. Nil means stderr, which keeps
	// result tables on stdout clean.
	Output io.Writer
}

// FromFlags builds the Config for one command-line invocation.
//
// Description:
//
//	Each exporter comes from its flag value when non-empty, then from the
//	standard OTEL_TRACES_EXPORTER / OTEL_METRICS_EXPORTER variables, then
//	from the defaults (no traces, Prometheus metrics). Names are checked
//	here so a bad flag fails before any provider is created.
//
// Environment:
//
//	OTEL_TRACES_EXPORTER, OTEL_METRICS_EXPORTER - exporter fallbacks
//	OTEL_EXPORTER_OTLP_ENDPOINT - OTLP receiver (default localhost:4317)
//	CROSSTAB_ENV - deployment.environment (default development)
//
// Outputs:
//
//	Config - Ready for Init.
//	error - ErrUnknownExporter naming the rejected value.
func FromFlags(traces, metrics string) (Config, error) {
	cfg := Config{
		Service:      "crosstab",
		Environment:  envOr("CROSSTAB_ENV", "development"),
		OTLPEndpoint: envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTLPInsecure: true,
	}

	var err error
	if cfg.Traces, err = pick("trace", traces, "OTEL_TRACES_EXPORTER", ExporterNone, traceExporters); err != nil {
		return Config{}, err
	}
	if cfg.Metrics, err = pick("metric", metrics, "OTEL_METRICS_EXPORTER", ExporterPrometheus, metricExporters); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func pick(signal, flag, env string, fallback Exporter, allowed []Exporter) (Exporter, error) {
	name := flag
	if name == "" {
		name = envOr(env, string(fallback))
	}
	e := Exporter(name)
	if !slices.Contains(allowed, e) {
		return "", fmt.Errorf("%w: %s exporter %q (want one of %v)", ErrUnknownExporter, signal, name, allowed)
	}
	return e, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c Config) output() io.Writer {
	if c.Output == nil {
		return os.Stderr
	}
	return c.Output
}

// Init installs global tracer and meter providers for cfg.
//
// Description:
//
//	Signals set to ExporterNone keep the global no-op provider, so
//	instrumented packages cost nothing when telemetry is off.
//
// Outputs:
//
//	shutdown - Flushes and stops the installed providers in reverse order.
//	           Call it before the process exits.
//	error - ErrNilContext, ErrUnknownExporter or an exporter failure.
//	        Providers created before the failure are already shut down.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	res := resource.NewWithAttributes("",
		attribute.String("service.name", cfg.Service),
		attribute.String("service.version", Version),
		attribute.String("deployment.environment", cfg.Environment),
	)

	var p providers
	if cfg.Traces != ExporterNone {
		exp, err := newSpanExporter(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		tp := trace.NewTracerProvider(trace.WithBatcher(exp), trace.WithResource(res))
		otel.SetTracerProvider(tp)
		p = append(p, tp.Shutdown)
	}

	if cfg.Metrics != ExporterNone {
		reader, err := newMetricReader(cfg)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("init meter: %w", err), p.shutdown(ctx))
		}
		mp := metric.NewMeterProvider(metric.WithResource(res), metric.WithReader(reader))
		otel.SetMeterProvider(mp)
		p = append(p, mp.Shutdown)
	}

	return p.shutdown, nil
}

// providers holds the shutdown functions of installed providers.
type providers []func(context.Context) error

func (p providers) shutdown(ctx context.Context) error {
	var errs []error
	for i := len(p) - 1; i >= 0; i-- {
		if err := p[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("telemetry shutdown: %w", err)
	}
	return nil
}

func newSpanExporter(ctx context.Context, cfg Config) (trace.SpanExporter, error) {
	switch cfg.Traces {
	case ExporterOTLP:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(cfg.output()))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Traces)
	}
}

// metricsHandler holds the promhttp handler once the Prometheus exporter
// is installed.
var metricsHandler atomic.Value

// MetricsHandler returns the /metrics handler installed by Init with the
// Prometheus exporter, or nil.
func MetricsHandler() http.Handler {
	h, _ := metricsHandler.Load().(http.Handler)
	return h
}

func newMetricReader(cfg Config) (metric.Reader, error) {
	switch cfg.Metrics {
	case ExporterPrometheus:
		// Registers with the default registry, next to the promauto
		// counters of the calc package.
		exp, err := promexporter.New()
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		metricsHandler.Store(promhttp.Handler())
		return exp, nil
	case ExporterStdout:
		exp, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint(), stdoutmetric.WithWriter(cfg.output()))
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		return metric.NewPeriodicReader(exp), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Metrics)
	}
}
