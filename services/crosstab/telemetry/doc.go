// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires OpenTelemetry tracing and metrics for the crosstab
// tools.
//
// Packages instrument themselves with otel.Tracer and otel.Meter directly;
// Init only decides where the data goes. A run that never calls Init uses
// the global no-op providers.
//
// # Exporters
//
// Traces: "otlp" (gRPC), "stdout" or "none". Metrics: "prometheus",
// "stdout" or "none". With the Prometheus exporter, OTel instruments and the
// promauto counters of the calc package share the default registry and are
// served together by MetricsRouter.
//
// # Usage
//
//	cfg, err := telemetry.FromFlags(traceFlag, metricFlag)
//	if err != nil {
//	    return err
//	}
//	shutdown, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
// # Environment Variables
//
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: prometheus)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//   - CROSSTAB_ENV: environment name (default: development)
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init returns.
package telemetry
