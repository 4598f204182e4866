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
	"fmt"

	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/breaks"
	"github.com/AleutianAI/AleutianCrosstab/services/crosstab/variable"
)

// Build validates f and constructs its break forest.
//
// Description:
//
//	Result slots are handed out in depth-first pre-order: a break takes the
//	next len(Instances) slots, then each child in turn takes its own. The
//	returned hierarchy is verified to have a disjoint layout.
//
// Inputs:
//
//	f - The definitions. Must not be nil.
//
// Outputs:
//
//	*breaks.Hierarchy - The flattened forest, ready for cloning per worker.
//	error - ErrNoDefinitions, ErrInvalidDefinition or ErrDuplicateBreak.
func Build(f *File) (*breaks.Hierarchy, error) {
	if f == nil {
		return nil, ErrNoDefinitions
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	next := 0
	roots := make([]*breaks.Break, 0, len(f.Breaks))
	for i := range f.Breaks {
		b, err := buildBreak(&f.Breaks[i], &next, f.Settings.PoolSizeHint)
		if err != nil {
			return nil, err
		}
		roots = append(roots, b)
	}

	h := breaks.Flatten(roots)
	if err := h.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	return h, nil
}

func buildBreak(d *BreakDef, next *int, poolHint int) (*breaks.Break, error) {
	start := *next
	*next += len(d.Instances)

	main, err := d.Variable.Build()
	if err != nil {
		return nil, fmt.Errorf("break %q variable: %w", d.Name, err)
	}

	var base variable.Variable
	if d.Base != nil {
		if base, err = d.Base.Build(); err != nil {
			return nil, fmt.Errorf("break %q base: %w", d.Name, err)
		}
	}

	children := make([]*breaks.Break, 0, len(d.Children))
	for i := range d.Children {
		c, err := buildBreak(&d.Children[i], next, poolHint)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}

	return breaks.New(breaks.Config{
		Name:             d.Name,
		Variable:         main,
		Base:             base,
		Instances:        d.Instances,
		InstanceLabels:   d.Labels,
		BaseInstances:    d.BaseInstances,
		ResultStartIndex: start,
		Children:         children,
		PoolSizeHint:     poolHint,
	}), nil
}

// Build constructs the variable described by v.
func (v VariableDef) Build() (variable.Variable, error) {
	switch {
	case v.Field != "":
		f, err := variable.NewField(v.Field, v.Entities...)
		if err != nil {
			return nil, err
		}
		return f, nil
	case v.Condition != nil:
		c, err := variable.NewCondition(v.Condition.Field, variable.Operator(v.Condition.Operator), v.Condition.Values...)
		if err != nil {
			return nil, err
		}
		return c, nil
	case v.Always != nil:
		if *v.Always {
			return variable.Always(), nil
		}
		return variable.Never(), nil
	default:
		return nil, fmt.Errorf("%w: variable has no shape", ErrInvalidDefinition)
	}
}
