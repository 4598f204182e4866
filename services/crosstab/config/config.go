// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates break definition files and turns them
// into a ready-to-run break hierarchy.
//
// A definitions file is YAML:
//
//	settings:
//	  workers: 4
//	  progress_every: 2s
//	breaks:
//	  - name: brand_awareness
//	    variable: {field: brand_aware, entities: [brand]}
//	    base: {field: brand_rated, entities: [brand]}
//	    instances: [10, 20, 30]
//	    labels: [Acme, Globex, Initech]
//	    children:
//	      - name: age_band
//	        variable: {field: age_band}
//	        base: {condition: {field: category_user, operator: any, values: [1]}}
//	        instances: [1, 2, 3]
//
// Result slots are assigned in depth-first order, so every break and child
// owns a disjoint, contiguous range of the result vector.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Types
// =============================================================================

// File is the root of a definitions document.
type File struct {
	Settings Settings   `yaml:"settings"`
	Breaks   []BreakDef `yaml:"breaks" validate:"required,min=1,dive"`
}

// Settings tunes a calculation run.
type Settings struct {
	// Workers bounds the number of concurrent partitions.
	Workers int `yaml:"workers" validate:"gte=1,lte=1024"`

	// PoolSizeHint sizes the first scratch chunk of each break.
	PoolSizeHint int `yaml:"pool_size_hint" validate:"gte=0"`

	// ProgressEvery throttles progress logging. Zero disables it.
	ProgressEvery time.Duration `yaml:"progress_every" validate:"gte=0"`

	// Weighted accumulates respondent weights in addition to counts.
	Weighted bool `yaml:"weighted"`
}

// DefaultSettings returns the settings used for keys a file omits.
func DefaultSettings() Settings {
	return Settings{
		Workers:       runtime.NumCPU(),
		PoolSizeHint:  256,
		ProgressEvery: 2 * time.Second,
		Weighted:      true,
	}
}

// BreakDef defines one break and its children.
type BreakDef struct {
	Name          string       `yaml:"name" validate:"required,identifier"`
	Variable      VariableDef  `yaml:"variable"`
	Base          *VariableDef `yaml:"base,omitempty"`
	Instances     []int        `yaml:"instances" validate:"required,min=1,unique"`
	Labels        []string     `yaml:"labels,omitempty"`
	BaseInstances []int        `yaml:"base_instances,omitempty" validate:"omitempty,unique"`
	Children      []BreakDef   `yaml:"children,omitempty" validate:"omitempty,dive"`
}

// VariableDef selects exactly one variable shape.
//
//   - field (with optional entities): raw answers of a question
//   - condition: entity-less predicate over a question
//   - always: constant predicate
type VariableDef struct {
	Field     string        `yaml:"field,omitempty" validate:"omitempty,identifier"`
	Entities  []string      `yaml:"entities,omitempty" validate:"omitempty,dive,identifier"`
	Condition *ConditionDef `yaml:"condition,omitempty"`
	Always    *bool         `yaml:"always,omitempty"`
}

// ConditionDef is the condition shape of a VariableDef.
type ConditionDef struct {
	Field    string `yaml:"field" validate:"required,identifier"`
	Operator string `yaml:"operator" validate:"required,oneof=any all none"`
	Values   []int  `yaml:"values" validate:"required,min=1"`
}

// Width returns the number of result slots the break and all its
// descendants need.
func (d BreakDef) Width() int {
	w := len(d.Instances)
	for _, c := range d.Children {
		w += c.Width()
	}
	return w
}

// =============================================================================
// Loading
// =============================================================================

// LoadFile reads and validates a definitions file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a definitions document.
//
// Description:
//
//	Unknown keys are rejected so typos in variable shapes surface early.
//	Settings keys the document omits keep their DefaultSettings value.
//
// Outputs:
//
//	*File - The validated definitions.
//	error - A decode error, or ErrInvalidDefinition wrapping the validation
//	        failures.
func Parse(data []byte) (*File, error) {
	f := &File{Settings: DefaultSettings()}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDefinition)
		}
		return nil, fmt.Errorf("failed to parse definitions: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}
