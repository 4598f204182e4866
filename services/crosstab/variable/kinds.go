// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package variable

import (
	"fmt"

	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/pool"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/respondent"
)

// =============================================================================
// Field
// =============================================================================

// Field reads the raw answers of one question.
//
// As a predicate it is true when the respondent gave any answer.
type Field struct {
	name     string
	entities []string
}

// NewField creates a field variable, optionally scoped to entity types.
func NewField(name string, entities ...string) (*Field, error) {
	if name == "" {
		return nil, ErrEmptyField
	}
	return &Field{
		name:     name,
		entities: append([]string(nil), entities...),
	}, nil
}

// Name returns the question identifier.
func (f *Field) Name() string { return f.name }

// EntityDimensions implements Variable.
func (f *Field) EntityDimensions() []string { return f.entities }

// ExtractValues implements Variable.
func (f *Field) ExtractValues(r *respondent.Respondent, match ValueMatcher, scratch *pool.Pool) ([]int, error) {
	return copyMatching(r.Values(f.name), match, nil, scratch), nil
}

// EvaluateGlobal implements Variable.
func (f *Field) EvaluateGlobal(r *respondent.Respondent) (bool, error) {
	return len(r.Values(f.name)) > 0, nil
}

// =============================================================================
// Condition
// =============================================================================

// Operator selects how a Condition compares answers with its value set.
type Operator string

const (
	// OpAny holds when at least one answer is in the value set.
	OpAny Operator = "any"

	// OpAll holds when every value in the set was answered.
	OpAll Operator = "all"

	// OpNone holds when no answer is in the value set.
	OpNone Operator = "none"
)

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	switch op {
	case OpAny, OpAll, OpNone:
		return true
	}
	return false
}

// Condition is an entity-less predicate over one question's answers.
//
// Extraction yields the answers that fall inside the value set.
type Condition struct {
	field  string
	op     Operator
	values map[int]struct{}
}

// NewCondition creates a condition variable.
//
// Outputs:
//   - error: ErrEmptyField or ErrUnknownOperator.
func NewCondition(field string, op Operator, values ...int) (*Condition, error) {
	if field == "" {
		return nil, ErrEmptyField
	}
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}
	set := make(map[int]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return &Condition{field: field, op: op, values: set}, nil
}

// EntityDimensions implements Variable. Conditions are always entity-less.
func (c *Condition) EntityDimensions() []string { return nil }

func (c *Condition) contains(v int) bool {
	_, ok := c.values[v]
	return ok
}

// ExtractValues implements Variable.
func (c *Condition) ExtractValues(r *respondent.Respondent, match ValueMatcher, scratch *pool.Pool) ([]int, error) {
	return copyMatching(r.Values(c.field), match, c.contains, scratch), nil
}

// EvaluateGlobal implements Variable.
func (c *Condition) EvaluateGlobal(r *respondent.Respondent) (bool, error) {
	answers := r.Values(c.field)
	switch c.op {
	case OpAny:
		for _, v := range answers {
			if c.contains(v) {
				return true, nil
			}
		}
		return false, nil
	case OpNone:
		for _, v := range answers {
			if c.contains(v) {
				return false, nil
			}
		}
		return true, nil
	case OpAll:
		found := 0
		seen := make(map[int]struct{}, len(c.values))
		for _, v := range answers {
			if _, dup := seen[v]; !dup && c.contains(v) {
				seen[v] = struct{}{}
				found++
			}
		}
		return found == len(c.values), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, c.op)
	}
}

// =============================================================================
// Constant
// =============================================================================

// Constant is an entity-less predicate with a fixed outcome.
type Constant struct {
	value bool
}

// Always returns a predicate that admits every respondent.
func Always() *Constant { return &Constant{value: true} }

// Never returns a predicate that admits no respondent.
func Never() *Constant { return &Constant{value: false} }

// EntityDimensions implements Variable.
func (c *Constant) EntityDimensions() []string { return nil }

// ExtractValues implements Variable. A constant carries no answers.
func (c *Constant) ExtractValues(_ *respondent.Respondent, _ ValueMatcher, scratch *pool.Pool) ([]int, error) {
	return scratch.Rent(0), nil
}

// EvaluateGlobal implements Variable.
func (c *Constant) EvaluateGlobal(_ *respondent.Respondent) (bool, error) {
	return c.value, nil
}
