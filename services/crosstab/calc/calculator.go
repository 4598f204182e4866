// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package calc runs a break hierarchy over a respondent repository and
// accumulates per-bucket counts.
//
// Work is split by respondent partition. Every worker deep-clones the
// hierarchy before it starts, so break caches and scratch pools are never
// shared between goroutines.
package calc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/breaks"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/respondent"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/telemetry"
)

// ==============================================================================
// Sentinel Errors
// ==============================================================================

var (
	// ErrNilHierarchy is returned by New without a hierarchy.
	ErrNilHierarchy = errors.New("break hierarchy must not be nil")

	// ErrNilRepository is returned by Run without a repository.
	ErrNilRepository = errors.New("respondent repository must not be nil")
)

// ==============================================================================
// Calculator
// ==============================================================================

// Options configures a Calculator.
type Options struct {
	// Workers bounds concurrent partitions. Zero uses GOMAXPROCS.
	Workers int

	// Weighted computes shares from respondent weights instead of counts.
	Weighted bool

	// ProgressEvery throttles progress logs. Zero disables them.
	ProgressEvery time.Duration

	// Logger receives run logs. Nil uses slog.Default.
	Logger *slog.Logger
}

// Calculator evaluates a break hierarchy over respondents.
//
// Thread Safety:
//
//	Safe for concurrent use. Run never calls the template hierarchy's breaks
//	directly; every worker operates on its own clone.
type Calculator struct {
	template *breaks.Hierarchy
	opts     Options
	logger   *slog.Logger
}

// New creates a Calculator for h.
func New(h *breaks.Hierarchy, opts Options) (*Calculator, error) {
	if h == nil {
		return nil, ErrNilHierarchy
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{template: h, opts: opts, logger: logger}, nil
}

// Run evaluates every respondent in repo against every break.
//
// Description:
//
//	The repository is split into at most Workers contiguous partitions.
//	Each partition runs on its own goroutine with a deep clone of the
//	hierarchy and a private accumulator; accumulators are merged after all
//	workers finish. The context is checked between respondents.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	repo - The respondents. Must not be nil.
//
// Outputs:
//
//	*Result - Merged counts, labelled per break.
//	error - ErrNilRepository, the context error, or the first worker error
//	        (wrapping breaks.ErrVariableEvaluation for a bad variable).
func (c *Calculator) Run(ctx context.Context, repo *respondent.Repository) (*Result, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}

	runID := uuid.NewString()
	start := time.Now()
	ctx, span := tracer.Start(ctx, "Calculator.Run",
		trace.WithAttributes(
			attribute.String("calc.run_id", runID),
			attribute.Int("calc.respondents", repo.Len()),
			attribute.Int("calc.breaks", c.template.Len()),
			attribute.Int("calc.workers", c.opts.Workers),
		),
	)
	defer span.End()
	logger := telemetry.LoggerWithTrace(ctx, c.logger.With(slog.String("run_id", runID)))

	slots := c.template.ResultSize()
	nodes := c.template.Len()
	parts := repo.Partition(c.opts.Workers)
	partials := make([]*partial, len(parts))

	var processed atomic.Int64
	progress := &rate.Sometimes{Interval: c.opts.ProgressEvery}
	total := repo.Len()

	logger.Debug("calculation started",
		slog.Int("respondents", total),
		slog.Int("breaks", nodes),
		slog.Int("slots", slots),
		slog.Int("partitions", len(parts)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)

	for i, part := range parts {
		g.Go(func() error {
			partStart := time.Now()
			local := c.template.Clone()
			p := newPartial(slots, nodes)

			for _, r := range part {
				if err := gctx.Err(); err != nil {
					return fmt.Errorf("partition %d cancelled: %w", i, err)
				}
				if err := accumulate(local, r, p); err != nil {
					return fmt.Errorf("partition %d: %w", i, err)
				}

				n := processed.Add(1)
				if c.opts.ProgressEvery > 0 {
					progress.Do(func() {
						logger.Info("calculation progress",
							slog.Int64("processed", n),
							slog.Int("total", total),
						)
					})
				}
			}

			p.stats = local.Stats()
			partials[i] = p
			recordPartition(gctx, i, time.Since(partStart), len(part))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "calculation failed")
		recordRun(runResult(err), time.Since(start), int(processed.Load()), breaks.Stats{})
		logger.Error("calculation failed",
			slog.String("error", err.Error()),
			slog.Int64("processed", processed.Load()),
		)
		return nil, err
	}

	merged := newPartial(slots, nodes)
	for _, p := range partials {
		merged.merge(p)
	}

	res := &Result{
		RunID:       runID,
		TraceID:     telemetry.TraceID(ctx),
		Respondents: merged.respondents,
		TotalWeight: merged.totalWeight,
		Counts:      merged.counts,
		Weights:     merged.weights,
		Breaks:      assemble(c.template, merged, c.opts.Weighted),
		Stats:       merged.stats,
		Duration:    time.Since(start),
	}

	span.SetAttributes(
		attribute.Int64("calc.cache_hits", res.Stats.Hits),
		attribute.Int64("calc.cache_misses", res.Stats.Misses),
		attribute.Int64("calc.unmapped_values", res.Stats.UnmappedValues),
	)
	recordRun("ok", res.Duration, res.Respondents, res.Stats)
	logger.Info("calculation complete",
		slog.Int("respondents", res.Respondents),
		slog.Float64("total_weight", res.TotalWeight),
		slog.Duration("duration", res.Duration),
		slog.Int64("unmapped_values", res.Stats.UnmappedValues),
	)
	return res, nil
}

// accumulate adds one respondent to p across every node of h.
func accumulate(h *breaks.Hierarchy, r *respondent.Respondent, p *partial) error {
	w := r.EffectiveWeight()
	for i, n := range h.Nodes() {
		idxs, err := n.Break.InstanceIndexes(r)
		if err != nil {
			return err
		}
		if len(idxs) == 0 {
			continue
		}
		p.base[i]++
		p.baseWeight[i] += w
		for _, idx := range idxs {
			p.counts[idx]++
			p.weights[idx] += w
		}
	}
	p.respondents++
	p.totalWeight += w
	return nil
}

func runResult(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, breaks.ErrVariableEvaluation):
		return "variable_error"
	default:
		return "error"
	}
}
