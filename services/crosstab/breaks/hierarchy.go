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

import (
	"fmt"
	"sort"
	"strings"
)

// NoParent marks a root node in a Hierarchy.
const NoParent = -1

// Node is one break in a flattened hierarchy.
type Node struct {
	// Break is the evaluated break.
	Break *Break

	// Parent is the index of the parent node, or NoParent for a root.
	Parent int

	// Children are the indexes of the child nodes, in definition order.
	Children []int

	// Depth is 0 for roots.
	Depth int
}

// Hierarchy is an index-linked arena over a forest of breaks.
//
// Description:
//
//	Nodes are stored in depth-first pre-order. Parent and child links are
//	indexes into the arena, so a Hierarchy can be walked, cloned and laid out
//	without following pointers back up the tree.
//
// Thread Safety:
//
//	The arena itself is read-only after Flatten. The Breaks it references
//	carry their own thread-safety rules; use Clone for per-worker copies.
type Hierarchy struct {
	nodes []Node
	roots []int
}

// Flatten builds a Hierarchy over roots and all their descendants.
func Flatten(roots []*Break) *Hierarchy {
	h := &Hierarchy{}
	for _, r := range roots {
		h.roots = append(h.roots, h.add(r, NoParent, 0))
	}
	return h
}

func (h *Hierarchy) add(b *Break, parent, depth int) int {
	idx := len(h.nodes)
	h.nodes = append(h.nodes, Node{Break: b, Parent: parent, Depth: depth})
	for _, c := range b.children {
		child := h.add(c, idx, depth+1)
		h.nodes[idx].Children = append(h.nodes[idx].Children, child)
	}
	return idx
}

// Clone deep-clones every root and flattens the copies.
//
// The clone has the same node order as h, so index i in both arenas refers
// to the same logical break.
func (h *Hierarchy) Clone() *Hierarchy {
	roots := make([]*Break, len(h.roots))
	for i, r := range h.roots {
		roots[i] = h.nodes[r].Break.DeepClone()
	}
	return Flatten(roots)
}

// Len returns the number of nodes.
func (h *Hierarchy) Len() int { return len(h.nodes) }

// Node returns the node at index i.
func (h *Hierarchy) Node(i int) Node { return h.nodes[i] }

// Nodes returns all nodes in depth-first pre-order. Do not modify.
func (h *Hierarchy) Nodes() []Node { return h.nodes }

// Roots returns the indexes of the root nodes.
func (h *Hierarchy) Roots() []int { return h.roots }

// Path returns the node's break names from its root down, joined by sep.
func (h *Hierarchy) Path(i int, sep string) string {
	var parts []string
	for n := i; n != NoParent; n = h.nodes[n].Parent {
		parts = append(parts, h.nodes[n].Break.Name())
	}
	for l, r := 0, len(parts)-1; l < r; l, r = l+1, r-1 {
		parts[l], parts[r] = parts[r], parts[l]
	}
	return strings.Join(parts, sep)
}

// ResultSize returns the length of the result vector needed to hold every
// node's slots.
func (h *Hierarchy) ResultSize() int {
	size := 0
	for _, n := range h.nodes {
		size = max(size, n.Break.ResultStartIndex()+n.Break.Width())
	}
	return size
}

// Stats sums the lookup stats of every node.
func (h *Hierarchy) Stats() Stats {
	var s Stats
	for _, n := range h.nodes {
		s.Add(n.Break.Stats())
	}
	return s
}

// ValidateLayout checks that no two nodes claim the same result slot and
// that no start index is negative.
func (h *Hierarchy) ValidateLayout() error {
	type span struct {
		start, end, node int
	}
	spans := make([]span, 0, len(h.nodes))
	for i, n := range h.nodes {
		start := n.Break.ResultStartIndex()
		if start < 0 {
			return fmt.Errorf("%w: break %q starts at %d", ErrInvalidLayout, n.Break.Name(), start)
		}
		if n.Break.Width() == 0 {
			continue
		}
		spans = append(spans, span{start: start, end: start + n.Break.Width(), node: i})
	}
	sort.Slice(spans, func(a, b int) bool { return spans[a].start < spans[b].start })
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			return fmt.Errorf("%w: %q [%d,%d) and %q [%d,%d)", ErrInvalidLayout,
				h.nodes[spans[i-1].node].Break.Name(), spans[i-1].start, spans[i-1].end,
				h.nodes[spans[i].node].Break.Name(), spans[i].start, spans[i].end)
		}
	}
	return nil
}
