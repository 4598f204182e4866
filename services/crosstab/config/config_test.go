// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/breaks"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/respondent"
)

const sampleDefs = `
settings:
  workers: 3
  progress_every: 500ms
breaks:
  - name: brand_awareness
    variable: {field: brand_aware, entities: [brand]}
    base: {field: brand_rated, entities: [brand]}
    instances: [10, 20, 30]
    labels: [Acme, Globex, Initech]
    children:
      - name: age_band
        variable: {field: age_band}
        base: {condition: {field: category_user, operator: any, values: [1]}}
        instances: [1, 2]
  - name: region
    variable: {field: region}
    base: {always: true}
    instances: [7, 8]
`

func TestParse_Valid(t *testing.T) {
	f, err := Parse([]byte(sampleDefs))
	require.NoError(t, err)

	assert.Equal(t, 3, f.Settings.Workers)
	assert.Equal(t, 500*time.Millisecond, f.Settings.ProgressEvery)
	assert.Equal(t, 256, f.Settings.PoolSizeHint, "omitted settings keep defaults")
	assert.True(t, f.Settings.Weighted)

	require.Len(t, f.Breaks, 2)
	assert.Equal(t, 5, f.Breaks[0].Width())
	assert.Equal(t, []string{"brand"}, f.Breaks[0].Variable.Entities)
	require.NotNil(t, f.Breaks[0].Children[0].Base.Condition)
	assert.Equal(t, "any", f.Breaks[0].Children[0].Base.Condition.Operator)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
		wantTag string
	}{
		{
			name:    "no breaks",
			doc:     "settings: {workers: 1}\n",
			wantErr: ErrInvalidDefinition,
			wantTag: "required",
		},
		{
			name:    "duplicate instances",
			doc:     "breaks:\n  - {name: a, variable: {field: q}, instances: [1, 1]}\n",
			wantErr: ErrInvalidDefinition,
			wantTag: "unique",
		},
		{
			name:    "two variable shapes",
			doc:     "breaks:\n  - {name: a, variable: {field: q, always: true}, instances: [1]}\n",
			wantErr: ErrInvalidDefinition,
			wantTag: "one_shape",
		},
		{
			name:    "no variable shape",
			doc:     "breaks:\n  - {name: a, variable: {}, instances: [1]}\n",
			wantErr: ErrInvalidDefinition,
			wantTag: "one_shape",
		},
		{
			name:    "entities without field",
			doc:     "breaks:\n  - {name: a, variable: {always: true, entities: [brand]}, instances: [1]}\n",
			wantErr: ErrInvalidDefinition,
			wantTag: "entities_need_field",
		},
		{
			name:    "bad operator",
			doc:     "breaks:\n  - {name: a, variable: {field: q}, base: {condition: {field: c, operator: xor, values: [1]}}, instances: [1]}\n",
			wantErr: ErrInvalidDefinition,
			wantTag: "oneof",
		},
		{
			name:    "bad identifier",
			doc:     "breaks:\n  - {name: 'has space', variable: {field: q}, instances: [1]}\n",
			wantErr: ErrInvalidDefinition,
			wantTag: "identifier",
		},
		{
			name:    "too many labels",
			doc:     "breaks:\n  - {name: a, variable: {field: q}, instances: [1], labels: [x, y]}\n",
			wantErr: ErrInvalidDefinition,
			wantTag: "max_labels",
		},
		{
			name:    "zero workers",
			doc:     "settings: {workers: 0}\nbreaks:\n  - {name: a, variable: {field: q}, instances: [1]}\n",
			wantErr: ErrInvalidDefinition,
			wantTag: "gte",
		},
		{
			name:    "duplicate names across levels",
			doc:     "breaks:\n  - name: a\n    variable: {field: q}\n    instances: [1]\n    children:\n      - {name: a, variable: {field: r}, instances: [2]}\n",
			wantErr: ErrDuplicateBreak,
		},
		{
			name:    "empty document",
			doc:     "",
			wantErr: ErrInvalidDefinition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			if tt.wantTag != "" {
				var verrs validator.ValidationErrors
				require.True(t, errors.As(err, &verrs), "validator errors stay in the chain")
				tags := make([]string, 0, len(verrs))
				for _, fe := range verrs {
					tags = append(tags, fe.Tag())
				}
				assert.Contains(t, tags, tt.wantTag)
			}
		})
	}

	t.Run("unknown key", func(t *testing.T) {
		_, err := Parse([]byte("breaks:\n  - {name: a, variabel: {field: q}, instances: [1]}\n"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidDefinition)
	})
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "breaks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDefs), 0644))

	f, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, f.Breaks, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	f, err := Parse([]byte(sampleDefs))
	require.NoError(t, err)

	h, err := Build(f)
	require.NoError(t, err)
	require.Equal(t, 3, h.Len())

	brand := h.Node(0).Break
	age := h.Node(1).Break
	region := h.Node(2).Break

	assert.Equal(t, "brand_awareness", brand.Name())
	assert.Equal(t, 0, brand.ResultStartIndex())
	assert.Equal(t, breaks.StrategyEntityScoped, brand.Strategy())
	assert.Equal(t, "Globex", brand.Label(1))

	assert.Equal(t, "age_band", age.Name())
	assert.Equal(t, 3, age.ResultStartIndex(), "children follow their parent's slots")
	assert.Equal(t, breaks.StrategyGlobal, age.Strategy())
	assert.Equal(t, 0, h.Node(1).Parent)

	assert.Equal(t, 5, region.ResultStartIndex())
	assert.Equal(t, 7, h.ResultSize())

	r := respondent.New(1).
		With("brand_aware", 10, 30).
		With("brand_rated", 30).
		With("age_band", 2).
		With("category_user", 1).
		With("region", 8)

	got, err := brand.InstanceIndexes(r)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, got)

	got, err = age.InstanceIndexes(r)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, got)

	got, err = region.InstanceIndexes(r)
	require.NoError(t, err)
	assert.Equal(t, []int{6}, got)
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(nil)
	assert.ErrorIs(t, err, ErrNoDefinitions)

	_, err = Build(&File{Settings: DefaultSettings()})
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestVariableDef_Build(t *testing.T) {
	never := false
	v, err := VariableDef{Always: &never}.Build()
	require.NoError(t, err)
	ok, err := v.EvaluateGlobal(respondent.New(1))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VariableDef{}.Build()
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestSettings_Validate(t *testing.T) {
	assert.NoError(t, DefaultSettings().Validate())

	s := DefaultSettings()
	s.ProgressEvery = -time.Second
	assert.ErrorIs(t, s.Validate(), ErrInvalidDefinition)
}
