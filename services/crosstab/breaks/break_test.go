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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/pool"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/respondent"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/variable"
)

// =============================================================================
// Test helpers
// =============================================================================

// countingVariable is a scripted Variable that records how often it is asked.
type countingVariable struct {
	entities []string
	values   map[int][]int
	global   map[int]bool
	err      error

	extractCalls int
	globalCalls  int
}

func (v *countingVariable) EntityDimensions() []string { return v.entities }

func (v *countingVariable) ExtractValues(r *respondent.Respondent, match variable.ValueMatcher, scratch *pool.Pool) ([]int, error) {
	v.extractCalls++
	if v.err != nil {
		return nil, v.err
	}
	src := v.values[r.ID]
	buf := scratch.Rent(len(src))
	n := 0
	for _, x := range src {
		if match == nil || match(x) {
			buf[n] = x
			n++
		}
	}
	return buf.Take(n), nil
}

func (v *countingVariable) EvaluateGlobal(r *respondent.Respondent) (bool, error) {
	v.globalCalls++
	if v.err != nil {
		return false, v.err
	}
	return v.global[r.ID], nil
}

func mainVar(values map[int][]int) *countingVariable {
	return &countingVariable{entities: []string{"brand"}, values: values}
}

func gate(eligible map[int]bool) *countingVariable {
	return &countingVariable{global: eligible}
}

// =============================================================================
// Strategy selection
// =============================================================================

func TestNew_StrategySelection(t *testing.T) {
	t.Run("entity-less base is global", func(t *testing.T) {
		b := New(Config{Variable: mainVar(nil), Base: gate(nil), Instances: []int{1}})
		assert.Equal(t, StrategyGlobal, b.Strategy())
	})

	t.Run("entity-scoped base intersects", func(t *testing.T) {
		b := New(Config{Variable: mainVar(nil), Base: mainVar(nil), Instances: []int{1}})
		assert.Equal(t, StrategyEntityScoped, b.Strategy())
	})

	t.Run("nil base admits everyone", func(t *testing.T) {
		b := New(Config{Variable: mainVar(map[int][]int{1: {1}}), Instances: []int{1}})
		assert.Equal(t, StrategyGlobal, b.Strategy())

		got, err := b.InstanceIndexes(respondent.New(1))
		require.NoError(t, err)
		assert.Equal(t, []int{0}, got)
	})

	assert.Equal(t, "global", StrategyGlobal.String())
	assert.Equal(t, "entity_scoped", StrategyEntityScoped.String())
	assert.Equal(t, "unknown", BaseFilterStrategy(9).String())
}

// =============================================================================
// Lookup behaviour
// =============================================================================

func TestInstanceIndexes_EndToEnd(t *testing.T) {
	b := New(Config{
		Name:             "brand",
		Variable:         mainVar(map[int][]int{1: {20}}),
		Base:             variable.Always(),
		Instances:        []int{10, 20, 30},
		ResultStartIndex: 100,
	})

	got, err := b.InstanceIndexes(respondent.New(1))
	require.NoError(t, err)
	assert.Equal(t, []int{101}, got)
}

func TestInstanceIndexes_MappedAndUnmapped(t *testing.T) {
	b := New(Config{
		Variable:         mainVar(map[int][]int{1: {30, 99, 10}}),
		Instances:        []int{10, 20, 30},
		ResultStartIndex: 5,
	})

	got, err := b.InstanceIndexes(respondent.New(1))
	require.NoError(t, err)
	assert.Equal(t, []int{7, 5}, got, "answer order is kept and 99 is dropped")
	assert.Equal(t, int64(1), b.Stats().UnmappedValues)
}

func TestInstanceIndexes_IneligibleEvaluatedOnce(t *testing.T) {
	main := mainVar(map[int][]int{1: {10, 20}})
	base := gate(map[int]bool{1: false})
	b := New(Config{Variable: main, Base: base, Instances: []int{10, 20}})

	r := respondent.New(1)
	for i := 0; i < 3; i++ {
		got, err := b.InstanceIndexes(r)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}

	assert.Equal(t, 1, base.globalCalls)
	assert.Equal(t, 0, main.extractCalls, "main variable is skipped for ineligible respondents")

	stats := b.Stats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Empty)
}

func TestInstanceIndexes_GlobalIgnoresBaseValues(t *testing.T) {
	values := map[int][]int{1: {10, 20, 30}}

	withValues := gate(map[int]bool{1: true})
	withValues.values = map[int][]int{1: {10}}
	withoutValues := gate(map[int]bool{1: true})

	a := New(Config{Variable: mainVar(values), Base: withValues, Instances: []int{10, 20, 30}})
	b := New(Config{Variable: mainVar(values), Base: withoutValues, Instances: []int{10, 20, 30}})

	gotA, err := a.InstanceIndexes(respondent.New(1))
	require.NoError(t, err)
	gotB, err := b.InstanceIndexes(respondent.New(1))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, gotA)
	assert.Equal(t, gotA, gotB)
	assert.Equal(t, 0, withValues.extractCalls)
}

func TestInstanceIndexes_EntityScopedIntersects(t *testing.T) {
	main := mainVar(map[int][]int{1: {5, 2, 2, 9}})
	base := mainVar(map[int][]int{1: {2, 9, 9}})
	b := New(Config{Variable: main, Base: base, Instances: []int{2, 5, 9}})

	got, err := b.InstanceIndexes(respondent.New(1))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, got)

	t.Run("changing base values changes output", func(t *testing.T) {
		base2 := mainVar(map[int][]int{1: {5}})
		b2 := New(Config{Variable: main, Base: base2, Instances: []int{2, 5, 9}})

		got, err := b2.InstanceIndexes(respondent.New(1))
		require.NoError(t, err)
		assert.Equal(t, []int{1}, got)
	})

	t.Run("disjoint values yield nothing", func(t *testing.T) {
		base3 := mainVar(map[int][]int{1: {7}})
		b3 := New(Config{Variable: main, Base: base3, Instances: []int{2, 5, 7, 9}})

		got, err := b3.InstanceIndexes(respondent.New(1))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

// Duplicate raw answers are not collapsed. This pins the current behaviour.
func TestInstanceIndexes_DuplicateValuesNotDeduplicated(t *testing.T) {
	b := New(Config{
		Variable:  mainVar(map[int][]int{1: {20, 20, 10}}),
		Base:      variable.Always(),
		Instances: []int{10, 20},
	})

	got, err := b.InstanceIndexes(respondent.New(1))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 0}, got)
}

func TestInstanceIndexes_Idempotent(t *testing.T) {
	main := mainVar(map[int][]int{1: {30, 10}, 2: {20}})
	b := New(Config{Variable: main, Instances: []int{10, 20, 30}})

	r1, r2 := respondent.New(1), respondent.New(2)
	first, err := b.InstanceIndexes(r1)
	require.NoError(t, err)
	_, err = b.InstanceIndexes(r2)
	require.NoError(t, err)
	second, err := b.InstanceIndexes(r1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []int{2, 0}, second, "later pool reuse must not corrupt cached results")
	assert.Equal(t, 2, main.extractCalls)
	assert.Equal(t, 2, b.CacheLen())
}

func TestInstanceIndexes_ErrorsPropagateUncached(t *testing.T) {
	boom := errors.New("bad expression")

	t.Run("global base failure", func(t *testing.T) {
		base := gate(nil)
		base.err = boom
		b := New(Config{Name: "aware", Variable: mainVar(nil), Base: base, Instances: []int{1}})

		_, err := b.InstanceIndexes(respondent.New(1))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrVariableEvaluation)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), `"aware"`)
		assert.Equal(t, 0, b.CacheLen())

		_, err = b.InstanceIndexes(respondent.New(1))
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 2, base.globalCalls, "failed respondents are re-evaluated, not cached")
		assert.Equal(t, int64(2), b.Stats().Errors)
	})

	t.Run("main failure", func(t *testing.T) {
		main := mainVar(nil)
		main.err = boom
		b := New(Config{Variable: main, Base: mainVar(nil), Instances: []int{1}})

		_, err := b.InstanceIndexes(respondent.New(1))
		assert.ErrorIs(t, err, ErrVariableEvaluation)
		assert.Equal(t, 0, b.CacheLen())
	})

	t.Run("entity base failure", func(t *testing.T) {
		base := mainVar(nil)
		base.err = boom
		b := New(Config{Variable: mainVar(nil), Base: base, Instances: []int{1}})

		_, err := b.InstanceIndexes(respondent.New(1))
		assert.ErrorIs(t, err, ErrVariableEvaluation)
	})

	t.Run("nil respondent", func(t *testing.T) {
		b := New(Config{Variable: mainVar(nil), Instances: []int{1}})
		_, err := b.InstanceIndexes(nil)
		assert.ErrorIs(t, err, ErrNilRespondent)
	})
}

func TestInstanceIndexes_RealVariables(t *testing.T) {
	aware, err := variable.NewField("brand_aware", "brand")
	require.NoError(t, err)
	rated, err := variable.NewField("brand_rated", "brand")
	require.NoError(t, err)
	category, err := variable.NewCondition("category_user", variable.OpAny, 1)
	require.NoError(t, err)

	r := respondent.New(1).
		With("brand_aware", 30, 10, 20).
		With("brand_rated", 20, 30).
		With("category_user", 1)

	scoped := New(Config{Variable: aware, Base: rated, Instances: []int{10, 20, 30}})
	got, err := scoped.InstanceIndexes(r)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, []int{30, 10, 20}, r.Values("brand_aware"), "sorting must not touch respondent data")

	gated := New(Config{Variable: aware, Base: category, Instances: []int{10, 20, 30}, ResultStartIndex: 3})
	got, err = gated.InstanceIndexes(r)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 3, 4}, got)
}

// =============================================================================
// Cloning
// =============================================================================

func TestDeepClone_Isolation(t *testing.T) {
	child := New(Config{Name: "child", Variable: mainVar(nil), Instances: []int{1}, ResultStartIndex: 3})
	orig := New(Config{
		Name:             "parent",
		Variable:         mainVar(map[int][]int{1: {10, 20}, 2: {30}}),
		Instances:        []int{10, 20, 30},
		BaseInstances:    []int{7, 8},
		ResultStartIndex: 0,
		Children:         []*Break{child},
	})

	a := orig.DeepClone()
	b := orig.DeepClone()

	r := respondent.New(1)
	gotA, err := a.InstanceIndexes(r)
	require.NoError(t, err)

	assert.Equal(t, 1, a.CacheLen())
	assert.Equal(t, 0, b.CacheLen(), "clone caches are independent")
	assert.Equal(t, 0, orig.CacheLen())
	assert.Equal(t, 0, b.Stats().PoolPeak, "clone pools are independent")
	assert.Positive(t, a.Stats().PoolPeak)

	gotB, err := b.InstanceIndexes(r)
	require.NoError(t, err)
	assert.Equal(t, gotA, gotB)

	// Definitional state is shared.
	assert.Equal(t, orig.Name(), a.Name())
	assert.Equal(t, orig.Instances(), a.Instances())
	assert.Equal(t, []int{7, 8}, a.BaseInstances())
	assert.Equal(t, orig.ResultStartIndex(), a.ResultStartIndex())
	assert.Same(t, orig.def, a.def)

	// Children are cloned, not shared.
	require.Len(t, a.Children(), 1)
	assert.NotSame(t, child, a.Children()[0])
	assert.NotSame(t, b.Children()[0], a.Children()[0])
	assert.Equal(t, "child", a.Children()[0].Name())
}

func TestDeepClone_DoesNotCopyCache(t *testing.T) {
	main := mainVar(map[int][]int{1: {10}})
	orig := New(Config{Variable: main, Instances: []int{10}})

	_, err := orig.InstanceIndexes(respondent.New(1))
	require.NoError(t, err)

	clone := orig.DeepClone()
	assert.Equal(t, 0, clone.CacheLen())
	stats := clone.Stats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Zero(t, stats.PoolPeak)

	_, err = clone.InstanceIndexes(respondent.New(1))
	require.NoError(t, err)
	assert.Equal(t, 2, main.extractCalls)
}

func TestLabel(t *testing.T) {
	b := New(Config{Variable: mainVar(nil), Instances: []int{10, 20, 30}, InstanceLabels: []string{"Acme", ""}})
	assert.Equal(t, "Acme", b.Label(0))
	assert.Equal(t, "20", b.Label(1))
	assert.Equal(t, "30", b.Label(2))
	assert.Equal(t, 3, b.Width())
}

func TestStats_Add(t *testing.T) {
	s := Stats{Hits: 1, Misses: 2, PoolPeak: 5, PoolCapacity: 10}
	s.Add(Stats{Hits: 3, Misses: 1, UnmappedValues: 4, PoolPeak: 8, PoolCapacity: 2, CachedRespondents: 1})

	assert.Equal(t, int64(4), s.Hits)
	assert.Equal(t, int64(3), s.Misses)
	assert.Equal(t, int64(4), s.UnmappedValues)
	assert.Equal(t, 8, s.PoolPeak)
	assert.Equal(t, 10, s.PoolCapacity)
	assert.Equal(t, 1, s.CachedRespondents)
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkInstanceIndexes_EntityScoped(b *testing.B) {
	main, _ := variable.NewField("aware", "brand")
	base, _ := variable.NewField("rated", "brand")

	instances := make([]int, 50)
	for i := range instances {
		instances[i] = i + 1
	}
	respondents := make([]*respondent.Respondent, 1000)
	for i := range respondents {
		respondents[i] = respondent.New(i).
			With("aware", 3, 17, 42, 8, 25, 1).
			With("rated", 42, 1, 8, 50)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		brk := New(Config{Variable: main, Base: base, Instances: instances})
		for _, r := range respondents {
			if _, err := brk.InstanceIndexes(r); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkInstanceIndexes_CacheHit(b *testing.B) {
	main, _ := variable.NewField("aware", "brand")
	brk := New(Config{Variable: main, Instances: []int{1, 2, 3}})
	r := respondent.New(1).With("aware", 1, 3)
	_, _ = brk.InstanceIndexes(r)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = brk.InstanceIndexes(r)
	}
}
