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

import "errors"

var (
	// ErrInvalidDefinition wraps every validation failure of a definitions
	// file. The underlying validator.ValidationErrors is kept in the chain.
	ErrInvalidDefinition = errors.New("invalid break definition")

	// ErrDuplicateBreak is returned when two breaks share a name.
	ErrDuplicateBreak = errors.New("duplicate break name")

	// ErrNoDefinitions is returned by Build when given nil.
	ErrNoDefinitions = errors.New("no definitions")
)
