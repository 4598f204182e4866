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

import "errors"

// Sentinel errors for break evaluation.
var (
	// ErrVariableEvaluation wraps a failure raised by the main or base
	// variable while computing a respondent's indexes. Nothing is cached for
	// the respondent when it is returned.
	ErrVariableEvaluation = errors.New("variable evaluation failed")

	// ErrNilRespondent is returned when InstanceIndexes is called with nil.
	ErrNilRespondent = errors.New("respondent must not be nil")

	// ErrInvalidLayout is returned when two breaks claim the same
	// result-space slot or a break starts before slot zero.
	ErrInvalidLayout = errors.New("invalid result layout")
)
