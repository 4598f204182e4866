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

import "github.com/AleutianAI/AleutianCrosstab/services/crosstab/variable"

// BaseFilterStrategy selects how the base variable restricts the main
// variable's answers. It is fixed when the break is constructed.
type BaseFilterStrategy int

const (
	// StrategyGlobal gates the whole respondent on a single boolean.
	StrategyGlobal BaseFilterStrategy = iota

	// StrategyEntityScoped intersects main and base answer values.
	StrategyEntityScoped
)

// String returns the strategy name used in logs and metric labels.
func (s BaseFilterStrategy) String() string {
	switch s {
	case StrategyGlobal:
		return "global"
	case StrategyEntityScoped:
		return "entity_scoped"
	default:
		return "unknown"
	}
}

// strategyFor derives the strategy from the base variable's dimensions.
func strategyFor(base variable.Variable) BaseFilterStrategy {
	if variable.IsEntityScoped(base) {
		return StrategyEntityScoped
	}
	return StrategyGlobal
}
