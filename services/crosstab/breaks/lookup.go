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

// denseSpanFactor bounds how sparse an instance catalog may be before the
// lookup falls back to a map. A catalog of n ids spanning at most
// n*denseSpanFactor values uses a slice.
const denseSpanFactor = 4

// instanceLookup maps a raw answer value to its result-space index.
//
// Built once at construction and read-only afterwards, so clones share it.
type instanceLookup struct {
	start int

	// dense path: slots[v-min] holds position+1, zero meaning unmapped.
	min   int
	slots []int

	// sparse path.
	byValue map[int]int
}

// newInstanceLookup builds a lookup of value -> start + position.
//
// Duplicate ids keep their first position; the definition loader rejects
// duplicates before a break is built.
func newInstanceLookup(instances []int, start int) *instanceLookup {
	l := &instanceLookup{start: start}
	if len(instances) == 0 {
		return l
	}

	lo, hi := instances[0], instances[0]
	for _, v := range instances[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	span := hi - lo + 1
	if span > 0 && span <= len(instances)*denseSpanFactor {
		l.min = lo
		l.slots = make([]int, span)
		for pos, v := range instances {
			if l.slots[v-lo] == 0 {
				l.slots[v-lo] = pos + 1
			}
		}
		return l
	}

	l.byValue = make(map[int]int, len(instances))
	for pos, v := range instances {
		if _, ok := l.byValue[v]; !ok {
			l.byValue[v] = start + pos
		}
	}
	return l
}

// index returns the result-space index for v.
func (l *instanceLookup) index(v int) (int, bool) {
	if l.slots != nil {
		off := v - l.min
		if off < 0 || off >= len(l.slots) {
			return 0, false
		}
		if pos := l.slots[off]; pos != 0 {
			return l.start + pos - 1, true
		}
		return 0, false
	}
	idx, ok := l.byValue[v]
	return idx, ok
}

// dense reports whether the slice representation is in use.
func (l *instanceLookup) dense() bool {
	return l.slots != nil
}
