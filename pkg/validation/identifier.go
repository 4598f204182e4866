// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for user-provided
// names.
//
// Break, field and entity names from definition files end up in log
// attributes, metric labels and store keys, so they are restricted to a
// conservative identifier alphabet.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxIdentifierLength bounds identifier length.
const MaxIdentifierLength = 128

var (
	// ErrEmptyIdentifier is returned for an empty name.
	ErrEmptyIdentifier = errors.New("identifier cannot be empty")

	// ErrInvalidIdentifier is returned for a name outside the identifier
	// alphabet or longer than MaxIdentifierLength.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// identifierPattern matches names such as "brand_aware", "q12.a" or "age-band".
// Allows: letters, digits, underscore, dot, hyphen; must not start with a
// digit, dot or hyphen.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)

// ValidateIdentifier validates a break, field or entity name.
//
// Valid identifiers:
//   - 1-128 characters
//   - Letters, digits, underscore, dot, hyphen
//   - Start with a letter or underscore
//
// Example:
//
//	if err := validation.ValidateIdentifier(name); err != nil {
//	    return fmt.Errorf("break name: %w", err)
//	}
func ValidateIdentifier(name string) error {
	if name == "" {
		return ErrEmptyIdentifier
	}
	if len(name) > MaxIdentifierLength {
		return fmt.Errorf("%w: %d characters exceeds %d", ErrInvalidIdentifier, len(name), MaxIdentifierLength)
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q (letters, digits, '_', '.', '-'; must start with a letter or '_')", ErrInvalidIdentifier, name)
	}
	return nil
}

// IsIdentifier reports whether ValidateIdentifier accepts name.
func IsIdentifier(name string) bool {
	return ValidateIdentifier(name) == nil
}

// ValidateIdentifiers validates multiple names.
// Returns an error listing all invalid names if any fail validation.
func ValidateIdentifiers(names []string) error {
	var invalid []string
	for _, n := range names {
		if err := ValidateIdentifier(n); err != nil {
			invalid = append(invalid, fmt.Sprintf("%q", n))
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidIdentifier, strings.Join(invalid, ", "))
	}
	return nil
}
