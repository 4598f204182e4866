// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package variable defines the answer-source contract consumed by breaks and
// the closed set of variable kinds the definition loader can build.
//
// # Contract
//
// A Variable either extracts raw integer answers for a respondent
// (entity-scoped use) or evaluates a respondent-level boolean (entity-less
// use). EntityDimensions tells the caller which of the two applies: a
// variable declaring no dimensions is entity-less.
//
// # Thread Safety
//
// All variables in this package are stateless after construction and safe
// for concurrent use. Scratch memory is supplied by the caller.
package variable

import (
	"errors"

	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/pool"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/respondent"
)

// Sentinel errors for variable evaluation.
var (
	// ErrUnknownOperator is returned by a condition with an unsupported operator.
	ErrUnknownOperator = errors.New("unknown condition operator")

	// ErrEmptyField is returned when a variable is built without a field name.
	ErrEmptyField = errors.New("field name is required")
)

// ValueMatcher filters raw answer values during extraction.
type ValueMatcher func(value int) bool

// AnyValue accepts every value.
func AnyValue(int) bool { return true }

// Variable is a per-respondent answer source.
type Variable interface {
	// EntityDimensions lists the entity types the variable is defined over.
	// An empty result means the variable is entity-less.
	EntityDimensions() []string

	// ExtractValues returns the raw answers accepted by match.
	//
	// The returned slice is rented from scratch and owned by the caller until
	// the next scratch.FreeAll; the caller may reorder it in place. A nil
	// match accepts every value.
	ExtractValues(r *respondent.Respondent, match ValueMatcher, scratch *pool.Pool) ([]int, error)

	// EvaluateGlobal evaluates the variable as an entity-less predicate.
	EvaluateGlobal(r *respondent.Respondent) (bool, error)
}

// IsEntityScoped reports whether v declares at least one entity dimension.
func IsEntityScoped(v Variable) bool {
	return len(v.EntityDimensions()) > 0
}

// copyMatching rents a buffer from scratch and copies the accepted values.
func copyMatching(values []int, match ValueMatcher, keep func(int) bool, scratch *pool.Pool) []int {
	buf := scratch.Rent(len(values))
	n := 0
	for _, v := range values {
		if keep != nil && !keep(v) {
			continue
		}
		if match != nil && !match(v) {
			continue
		}
		buf[n] = v
		n++
	}
	return buf.Take(n)
}
