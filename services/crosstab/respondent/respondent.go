// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package respondent holds survey responses and the repositories that serve
// them to the calculation pipeline.
//
// # Ownership Model
//
// A Respondent is immutable once added to a Repository. Field slices returned
// by Values alias internal storage and MUST NOT be modified; variables copy
// them into scratch memory before sorting.
package respondent

import (
	"sort"
)

// DefaultWeight is the weight given to respondents that carry none.
const DefaultWeight = 1.0

// Respondent is one completed survey response.
type Respondent struct {
	// ID is the stable identity used as a cache key by breaks.
	ID int `yaml:"id"`

	// Weight is the respondent's weighting factor. Zero means DefaultWeight.
	Weight float64 `yaml:"weight,omitempty"`

	// Fields maps a question identifier to its raw integer answers.
	// Multi-select questions carry several values.
	Fields map[string][]int `yaml:"fields"`
}

// New creates a respondent with the default weight and no answers.
func New(id int) *Respondent {
	return &Respondent{
		ID:     id,
		Weight: DefaultWeight,
		Fields: make(map[string][]int),
	}
}

// With sets the raw answers for a field and returns the respondent.
//
// Intended for building fixtures; not for use after the respondent has been
// added to a repository.
func (r *Respondent) With(field string, values ...int) *Respondent {
	if r.Fields == nil {
		r.Fields = make(map[string][]int)
	}
	r.Fields[field] = values
	return r
}

// Values returns the raw answers for a field, or nil if unanswered.
//
// The returned slice aliases internal storage and must not be modified.
func (r *Respondent) Values(field string) []int {
	return r.Fields[field]
}

// EffectiveWeight returns Weight, substituting DefaultWeight for zero.
func (r *Respondent) EffectiveWeight() float64 {
	if r.Weight == 0 {
		return DefaultWeight
	}
	return r.Weight
}

// FieldNames returns the answered field identifiers in sorted order.
func (r *Respondent) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
