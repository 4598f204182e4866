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
	"time"

	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/breaks"
)

// Result is the outcome of one calculation run.
type Result struct {
	// RunID uniquely identifies the run in logs and traces.
	RunID string `json:"run_id"`

	// TraceID is the otel trace the run was recorded under, empty when
	// tracing is off.
	TraceID string `json:"trace_id,omitempty"`

	// Respondents is the number of respondents evaluated.
	Respondents int `json:"respondents"`

	// TotalWeight is the sum of effective respondent weights.
	TotalWeight float64 `json:"total_weight"`

	// Counts and Weights are indexed by result-space slot.
	Counts  []int64   `json:"counts"`
	Weights []float64 `json:"weights"`

	// Breaks lists every break in depth-first order with its buckets.
	Breaks []BreakResult `json:"breaks"`

	// Stats aggregates lookup counters over every worker clone.
	Stats breaks.Stats `json:"stats"`

	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration_ns"`
}

// BreakResult is the slice of a Result owned by one break.
type BreakResult struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Depth int    `json:"depth"`

	// Base counts respondents that landed in at least one bucket.
	Base       int64   `json:"base"`
	BaseWeight float64 `json:"base_weight"`

	Buckets []Bucket `json:"buckets"`
}

// Bucket is one instance of a break.
type Bucket struct {
	Label    string  `json:"label"`
	Instance int     `json:"instance"`
	Slot     int     `json:"slot"`
	Count    int64   `json:"count"`
	Weight   float64 `json:"weight"`

	// Share is Weight/BaseWeight for weighted runs and Count/Base otherwise.
	// Zero when the base is empty.
	Share float64 `json:"share"`
}

// Bucket returns the bucket of the named break with the given instance id.
func (r *Result) Bucket(breakName string, instance int) (Bucket, bool) {
	for _, br := range r.Breaks {
		if br.Name != breakName {
			continue
		}
		for _, b := range br.Buckets {
			if b.Instance == instance {
				return b, true
			}
		}
	}
	return Bucket{}, false
}

// partial is one worker's accumulation.
type partial struct {
	counts      []int64
	weights     []float64
	base        []int64
	baseWeight  []float64
	respondents int
	totalWeight float64
	stats       breaks.Stats
}

func newPartial(slots, nodes int) *partial {
	return &partial{
		counts:     make([]int64, slots),
		weights:    make([]float64, slots),
		base:       make([]int64, nodes),
		baseWeight: make([]float64, nodes),
	}
}

func (p *partial) merge(o *partial) {
	for i := range o.counts {
		p.counts[i] += o.counts[i]
		p.weights[i] += o.weights[i]
	}
	for i := range o.base {
		p.base[i] += o.base[i]
		p.baseWeight[i] += o.baseWeight[i]
	}
	p.respondents += o.respondents
	p.totalWeight += o.totalWeight
	p.stats.Add(o.stats)
}

// assemble labels the merged totals using the hierarchy layout.
func assemble(h *breaks.Hierarchy, p *partial, weighted bool) []BreakResult {
	out := make([]BreakResult, 0, h.Len())
	for i, n := range h.Nodes() {
		b := n.Break
		br := BreakResult{
			Name:       b.Name(),
			Path:       h.Path(i, " / "),
			Depth:      n.Depth,
			Base:       p.base[i],
			BaseWeight: p.baseWeight[i],
			Buckets:    make([]Bucket, b.Width()),
		}
		for pos, inst := range b.Instances() {
			slot := b.ResultStartIndex() + pos
			bk := Bucket{
				Label:    b.Label(pos),
				Instance: inst,
				Slot:     slot,
				Count:    p.counts[slot],
				Weight:   p.weights[slot],
			}
			switch {
			case weighted && br.BaseWeight > 0:
				bk.Share = bk.Weight / br.BaseWeight
			case !weighted && br.Base > 0:
				bk.Share = float64(bk.Count) / float64(br.Base)
			}
			br.Buckets[pos] = bk
		}
		out = append(out, br)
	}
	return out
}
