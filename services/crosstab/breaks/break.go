// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package breaks

import (
	"fmt"
	"slices"

	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/pool"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/respondent"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/variable"
)

// =============================================================================
// Construction
// =============================================================================

// Config holds the definitional inputs of a Break.
//
// Everything in Config is treated as immutable once passed to New and is
// shared by every clone of the resulting Break.
type Config struct {
	// Name identifies the break in logs and result labels.
	Name string

	// Variable supplies the raw answers mapped to instances.
	Variable variable.Variable

	// Base restricts which answers count. Nil admits every respondent.
	Base variable.Variable

	// Instances are the distinct output bucket ids, in slot order.
	Instances []int

	// InstanceLabels optionally names each instance. When shorter than
	// Instances the missing labels fall back to the instance id.
	InstanceLabels []string

	// BaseInstances is the instance catalog of the base filter's entity.
	// It is carried for reporting and never consulted during lookup.
	BaseInstances []int

	// ResultStartIndex is the first result-space slot owned by this break.
	ResultStartIndex int

	// Children are nested breaks for drill-down tabulation.
	Children []*Break

	// PoolSizeHint sizes the first scratch chunk. Zero uses the pool default.
	PoolSizeHint int
}

// definition is the read-only state shared between a Break and its clones.
type definition struct {
	name          string
	variable      variable.Variable
	base          variable.Variable
	instances     []int
	labels        []string
	baseInstances []int
	start         int
	strategy      BaseFilterStrategy
	lookup        *instanceLookup
	poolHint      int
}

// Break maps respondents to the result-space slots they contribute to.
//
// Description:
//
//	A Break combines a main variable, a base filter, and an instance catalog.
//	For each respondent it returns the global result indexes of the
//	instances the respondent answered, restricted by the base filter. Results
//	are memoized per respondent ID for the lifetime of the Break.
//
//	The base-filter strategy is fixed at construction: a base variable with
//	entity dimensions is intersected value-by-value with the main answers,
//	an entity-less base variable gates the whole respondent.
//
// Thread Safety:
//
//	NOT safe for concurrent use. The cache and scratch pool are mutated on
//	every miss. Give each goroutine its own copy via DeepClone.
type Break struct {
	def      *definition
	children []*Break

	cache map[int][]int
	pool  *pool.Pool
	stats Stats
}

// New constructs a Break from cfg.
//
// Description:
//
//	Builds the instance lookup and selects the base-filter strategy. Inputs
//	are not validated here; the definition loader is responsible for
//	rejecting malformed catalogs before calling New.
//
// Inputs:
//
//	cfg - Definitional inputs. cfg.Variable must be non-nil.
//
// Outputs:
//
//	*Break - A ready Break with an empty cache.
func New(cfg Config) *Break {
	base := cfg.Base
	if base == nil {
		base = variable.Always()
	}

	def := &definition{
		name:          cfg.Name,
		variable:      cfg.Variable,
		base:          base,
		instances:     slices.Clone(cfg.Instances),
		labels:        slices.Clone(cfg.InstanceLabels),
		baseInstances: slices.Clone(cfg.BaseInstances),
		start:         cfg.ResultStartIndex,
		strategy:      strategyFor(base),
		poolHint:      cfg.PoolSizeHint,
	}
	def.lookup = newInstanceLookup(def.instances, def.start)

	return &Break{
		def:      def,
		children: slices.Clone(cfg.Children),
		cache:    make(map[int][]int),
		pool:     pool.New(def.poolHint),
	}
}

// DeepClone returns an independent Break for use on another goroutine.
//
// The clone shares the definitional state (variables, catalogs, lookup,
// result start) and recursively clones every child. It starts with an empty
// cache, a fresh scratch pool and zeroed stats.
func (b *Break) DeepClone() *Break {
	children := make([]*Break, len(b.children))
	for i, c := range b.children {
		children[i] = c.DeepClone()
	}
	return &Break{
		def:      b.def,
		children: children,
		cache:    make(map[int][]int),
		pool:     pool.New(b.def.poolHint),
	}
}

// =============================================================================
// Lookup
// =============================================================================

// InstanceIndexes returns the result-space indexes r contributes to.
//
// Description:
//
//	On a cache hit the stored slice is returned without evaluating any
//	variable. On a miss the scratch pool is reclaimed, the working value set
//	is built with the break's strategy, each value is mapped through the
//	instance lookup, and an owned copy of the mapped indexes is cached.
//
//	Values without an instance are dropped silently. Repeated raw values are
//	not deduplicated, so the same index may appear more than once.
//
// Inputs:
//
//	r - The respondent. Its ID is the cache key.
//
// Outputs:
//
//	[]int - Result-space indexes. Empty (non-nil) for ineligible respondents.
//	        The slice is shared with the cache and must not be modified.
//	error - ErrNilRespondent, or ErrVariableEvaluation wrapping a variable
//	        failure. Nothing is cached when an error is returned.
func (b *Break) InstanceIndexes(r *respondent.Respondent) ([]int, error) {
	if r == nil {
		return nil, ErrNilRespondent
	}
	if cached, ok := b.cache[r.ID]; ok {
		b.stats.Hits++
		return cached, nil
	}
	b.stats.Misses++

	b.pool.FreeAll()

	working, err := b.workingValues(r)
	if err != nil {
		b.stats.Errors++
		return nil, err
	}

	mapped := b.pool.Rent(len(working))
	n := 0
	for _, v := range working {
		idx, ok := b.def.lookup.index(v)
		if !ok {
			b.stats.UnmappedValues++
			continue
		}
		mapped[n] = idx
		n++
	}
	if n == 0 {
		b.stats.Empty++
	}

	owned := make([]int, n)
	copy(owned, mapped.Take(n))
	b.cache[r.ID] = owned
	return owned, nil
}

// workingValues applies the base-filter strategy. The result lives in the
// scratch pool.
func (b *Break) workingValues(r *respondent.Respondent) ([]int, error) {
	switch b.def.strategy {
	case StrategyEntityScoped:
		main, err := b.def.variable.ExtractValues(r, variable.AnyValue, b.pool)
		if err != nil {
			return nil, b.evalError("main", r, err)
		}
		base, err := b.def.base.ExtractValues(r, variable.AnyValue, b.pool)
		if err != nil {
			return nil, b.evalError("base", r, err)
		}
		slices.Sort(main)
		slices.Sort(base)
		out := b.pool.Rent(min(len(main), len(base)))
		return out.Take(intersectSorted(main, base, out)), nil

	default:
		eligible, err := b.def.base.EvaluateGlobal(r)
		if err != nil {
			return nil, b.evalError("base", r, err)
		}
		if !eligible {
			return nil, nil
		}
		main, err := b.def.variable.ExtractValues(r, variable.AnyValue, b.pool)
		if err != nil {
			return nil, b.evalError("main", r, err)
		}
		return main, nil
	}
}

func (b *Break) evalError(which string, r *respondent.Respondent, err error) error {
	return fmt.Errorf("%w: break %q %s variable, respondent %d: %w",
		ErrVariableEvaluation, b.def.name, which, r.ID, err)
}

// =============================================================================
// Accessors
// =============================================================================

// Name returns the break name.
func (b *Break) Name() string { return b.def.name }

// Strategy returns the base-filter strategy chosen at construction.
func (b *Break) Strategy() BaseFilterStrategy { return b.def.strategy }

// ResultStartIndex returns the first result-space slot of this break.
func (b *Break) ResultStartIndex() int { return b.def.start }

// Instances returns the instance catalog. The slice must not be modified.
func (b *Break) Instances() []int { return b.def.instances }

// BaseInstances returns the base filter's instance catalog.
func (b *Break) BaseInstances() []int { return b.def.baseInstances }

// Width returns the number of result slots owned by this break.
func (b *Break) Width() int { return len(b.def.instances) }

// Label returns the display label of the instance at position pos.
func (b *Break) Label(pos int) string {
	if pos < len(b.def.labels) && b.def.labels[pos] != "" {
		return b.def.labels[pos]
	}
	return fmt.Sprint(b.def.instances[pos])
}

// Children returns the nested breaks.
func (b *Break) Children() []*Break { return b.children }

// CacheLen returns the number of memoized respondents.
func (b *Break) CacheLen() int { return len(b.cache) }

// Stats returns a snapshot of the lookup counters and scratch pool usage.
func (b *Break) Stats() Stats {
	s := b.stats
	s.CachedRespondents = len(b.cache)
	s.PoolCapacity = b.pool.Capacity()
	s.PoolPeak = b.pool.Peak()
	return s
}

// =============================================================================
// Stats
// =============================================================================

// Stats counts lookup activity on one Break instance.
type Stats struct {
	// Hits is the number of calls answered from the cache.
	Hits int64 `json:"hits"`

	// Misses is the number of calls that evaluated variables.
	Misses int64 `json:"misses"`

	// Errors is the number of misses that failed in a variable.
	Errors int64 `json:"errors"`

	// Empty is the number of successful misses that produced no index.
	Empty int64 `json:"empty"`

	// UnmappedValues counts working values with no matching instance.
	UnmappedValues int64 `json:"unmapped_values"`

	// CachedRespondents is the cache size at snapshot time.
	CachedRespondents int `json:"cached_respondents"`

	// PoolCapacity and PoolPeak describe the scratch pool.
	PoolCapacity int `json:"pool_capacity"`
	PoolPeak     int `json:"pool_peak"`
}

// Add accumulates o into s. Pool figures keep the maximum.
func (s *Stats) Add(o Stats) {
	s.Hits += o.Hits
	s.Misses += o.Misses
	s.Errors += o.Errors
	s.Empty += o.Empty
	s.UnmappedValues += o.UnmappedValues
	s.CachedRespondents += o.CachedRespondents
	s.PoolCapacity = max(s.PoolCapacity, o.PoolCapacity)
	s.PoolPeak = max(s.PoolPeak, o.PoolPeak)
}
