// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package respondent

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianCrosstab/pkg/validation"
)

// Sentinel errors for respondent operations.
var (
	// ErrDuplicateRespondent is returned when adding an ID already present.
	ErrDuplicateRespondent = errors.New("duplicate respondent ID")

	// ErrRespondentNotFound is returned when a lookup by ID misses.
	ErrRespondentNotFound = errors.New("respondent not found")

	// ErrInvalidRespondent is returned for nil respondents, negative weights
	// or malformed field names.
	ErrInvalidRespondent = errors.New("invalid respondent")
)

// Repository is an ordered, in-memory collection of respondents.
//
// # Thread Safety
//
// Repository is NOT safe for concurrent mutation. After loading completes it
// may be read from any number of goroutines.
type Repository struct {
	respondents []*Respondent
	byID        map[int]int
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		byID: make(map[int]int),
	}
}

// Add appends a respondent.
//
// Outputs:
//   - error: ErrInvalidRespondent for nil or negatively weighted respondents
//     and for field names that are not identifiers,
//     ErrDuplicateRespondent if the ID is already present.
func (r *Repository) Add(resp *Respondent) error {
	if resp == nil {
		return fmt.Errorf("%w: nil respondent", ErrInvalidRespondent)
	}
	if resp.Weight < 0 {
		return fmt.Errorf("%w: respondent %d has negative weight %v", ErrInvalidRespondent, resp.ID, resp.Weight)
	}
	if err := validation.ValidateIdentifiers(resp.FieldNames()); err != nil {
		return fmt.Errorf("%w: respondent %d: %w", ErrInvalidRespondent, resp.ID, err)
	}
	if _, exists := r.byID[resp.ID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateRespondent, resp.ID)
	}
	r.byID[resp.ID] = len(r.respondents)
	r.respondents = append(r.respondents, resp)
	return nil
}

// Get returns the respondent with the given ID.
func (r *Repository) Get(id int) (*Respondent, error) {
	idx, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrRespondentNotFound, id)
	}
	return r.respondents[idx], nil
}

// Len returns the number of respondents.
func (r *Repository) Len() int {
	return len(r.respondents)
}

// All returns respondents in insertion order. The slice must not be modified.
func (r *Repository) All() []*Respondent {
	return r.respondents
}

// Partition splits the repository into at most n contiguous, non-empty parts.
//
// Description:
//
//	Parts differ in size by at most one respondent and preserve insertion
//	order. Used by the calculator to hand each worker a disjoint slice.
//
// Inputs:
//   - n: Desired number of parts. Values < 1 are treated as 1.
//
// Outputs:
//   - [][]*Respondent: min(n, Len()) parts; nil for an empty repository.
func (r *Repository) Partition(n int) [][]*Respondent {
	total := len(r.respondents)
	if total == 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	if n > total {
		n = total
	}

	parts := make([][]*Respondent, 0, n)
	size, extra := total/n, total%n
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < extra {
			end++
		}
		parts = append(parts, r.respondents[start:end:end])
		start = end
	}
	return parts
}

// respondentFile is the YAML layout of a respondent data file.
type respondentFile struct {
	Respondents []*Respondent `yaml:"respondents"`
}

// LoadFile reads respondents from a YAML file.
//
// Example file:
//
//	respondents:
//	  - id: 1
//	    weight: 1.2
//	    fields:
//	      brand_aware: [10, 20]
//	      category_user: [1]
func LoadFile(path string) (*Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read respondent file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes respondents from YAML bytes.
func Parse(data []byte) (*Repository, error) {
	var file respondentFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse respondents: %w", err)
	}

	repo := NewRepository()
	for _, resp := range file.Respondents {
		if err := repo.Add(resp); err != nil {
			return nil, err
		}
	}
	return repo, nil
}
