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

// intersectSorted writes the merge intersection of a and b into out and
// returns the number of values written.
//
// Both inputs must be sorted ascending. On equal heads the value is emitted
// once and both cursors advance, so a value repeated in both inputs appears
// as many times as the shorter run. out must have len >= min(len(a), len(b)).
//
// Complexity: O(len(a) + len(b)).
func intersectSorted(a, b, out []int) int {
	i, j, n := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out[n] = a[i]
			n++
			i++
			j++
		}
	}
	return n
}
