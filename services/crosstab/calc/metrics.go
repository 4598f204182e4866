// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package calc

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/breaks"
)

// ==============================================================================
// Prometheus Metrics
// ==============================================================================

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crosstab_calc_runs_total",
		Help: "Calculation runs by result",
	}, []string{"result"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crosstab_calc_run_duration_seconds",
		Help:    "Wall time of a calculation run",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
	})

	respondentsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crosstab_calc_respondents_total",
		Help: "Respondents evaluated across all runs",
	})

	breakLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crosstab_break_lookups_total",
		Help: "Break index lookups by cache outcome",
	}, []string{"outcome"})

	unmappedValues = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crosstab_break_unmapped_values_total",
		Help: "Answer values dropped because no instance matched",
	})
)

// recordRun publishes the outcome of one run.
func recordRun(result string, d time.Duration, respondents int, stats breaks.Stats) {
	runsTotal.WithLabelValues(result).Inc()
	runDuration.Observe(d.Seconds())
	respondentsProcessed.Add(float64(respondents))
	breakLookups.WithLabelValues("hit").Add(float64(stats.Hits))
	breakLookups.WithLabelValues("miss").Add(float64(stats.Misses))
	breakLookups.WithLabelValues("error").Add(float64(stats.Errors))
	unmappedValues.Add(float64(stats.UnmappedValues))
}

// ==============================================================================
// OTel Instruments
// ==============================================================================

// Package-level tracer and meter for calculation runs.
var (
	tracer = otel.Tracer("crosstab.calc")
	meter  = otel.Meter("crosstab.calc")
)

var (
	partitionDuration metric.Float64Histogram
	partitionSize     metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the OTel instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		partitionDuration, err = meter.Float64Histogram(
			"crosstab_partition_duration_seconds",
			metric.WithDescription("Duration of one worker partition"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		partitionSize, err = meter.Int64Histogram(
			"crosstab_partition_respondents",
			metric.WithDescription("Respondents per worker partition"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordPartition records the duration and size of a finished partition.
func recordPartition(ctx context.Context, worker int, d time.Duration, size int) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Int("worker", worker))
	partitionDuration.Record(ctx, d.Seconds(), attrs)
	partitionSize.Record(ctx, int64(size), attrs)
}
