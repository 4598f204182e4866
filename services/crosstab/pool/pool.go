// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pool provides a bump-allocated integer scratch arena used on the
// per-respondent hot path.
//
// # Ownership Model
//
// Buffers handed out by Rent belong to the pool, not the caller. They stay
// valid until the next FreeAll, after which the same memory is handed out
// again. Callers that need a value to outlive FreeAll must copy it.
//
// # Thread Safety
//
// Pool is NOT safe for concurrent use. Each owner (one Break, one clone of a
// Break) holds its own Pool.
package pool

// defaultChunkSize is the capacity of the first chunk allocated by a pool.
// Survey answer cardinalities are small, so a few hundred ints covers most
// respondents without growing.
const defaultChunkSize = 256

// Buffer is a writable region rented from a Pool.
//
// The capacity of a Buffer is clipped to its length so that append on a
// Buffer can never write into a neighbouring rental.
type Buffer []int

// Take returns the first k elements of the buffer.
//
// Inputs:
//   - k: Number of elements to keep. Must be in [0, len(b)].
//
// Outputs:
//   - []int: View over the same memory. Valid until the owning pool is freed.
func (b Buffer) Take(k int) []int {
	return b[:k:k]
}

// Pool is a chunked arena of ints with bulk reclamation.
//
// Description:
//
//	Rent carves buffers out of the current chunk. When a chunk is exhausted a
//	new, larger chunk is allocated; earlier chunks are kept so outstanding
//	buffers remain valid. FreeAll rewinds to the start and keeps only the
//	largest chunk, so after warm-up a pool serves every respondent from a
//	single allocation.
//
// Performance:
//
//	| Operation | Complexity        |
//	|-----------|-------------------|
//	| Rent      | O(1) amortised    |
//	| FreeAll   | O(chunks)         |
type Pool struct {
	chunks  [][]int
	current int
	offset  int

	rented int
	peak   int
}

// New creates an empty pool.
//
// Inputs:
//   - sizeHint: Expected number of ints rented between two FreeAll calls.
//     Values <= 0 select the default chunk size.
//
// Outputs:
//   - *Pool: Ready pool. Never nil.
func New(sizeHint int) *Pool {
	if sizeHint <= 0 {
		sizeHint = defaultChunkSize
	}
	return &Pool{
		chunks: [][]int{make([]int, sizeHint)},
	}
}

// Rent returns a buffer of exactly n writable ints.
//
// Description:
//
//	The returned buffer contents are unspecified; callers overwrite before
//	reading. A request for zero ints returns an empty, non-nil buffer.
//
// Inputs:
//   - n: Required length. Negative values are treated as zero.
//
// Outputs:
//   - Buffer: Region of length n, valid until the next FreeAll.
func (p *Pool) Rent(n int) Buffer {
	if n <= 0 {
		return Buffer{}
	}

	chunk := p.chunks[p.current]
	if p.offset+n > len(chunk) {
		chunk = p.nextChunk(n)
	}

	buf := chunk[p.offset : p.offset+n : p.offset+n]
	p.offset += n
	p.rented += n
	if p.rented > p.peak {
		p.peak = p.rented
	}
	return Buffer(buf)
}

// nextChunk advances to a chunk that can hold n ints, allocating if needed.
func (p *Pool) nextChunk(n int) []int {
	for p.current+1 < len(p.chunks) {
		p.current++
		p.offset = 0
		if len(p.chunks[p.current]) >= n {
			return p.chunks[p.current]
		}
	}

	size := 2 * len(p.chunks[p.current])
	if size < n {
		size = n
	}
	p.chunks = append(p.chunks, make([]int, size))
	p.current = len(p.chunks) - 1
	p.offset = 0
	return p.chunks[p.current]
}

// FreeAll invalidates every buffer rented since the previous FreeAll.
//
// Description:
//
//	Keeps only the largest chunk so the next cycle is served from one
//	contiguous allocation. Memory of released chunks is left to the GC.
func (p *Pool) FreeAll() {
	if len(p.chunks) > 1 {
		largest := p.chunks[0]
		for _, c := range p.chunks[1:] {
			if len(c) > len(largest) {
				largest = c
			}
		}
		p.chunks = p.chunks[:1]
		p.chunks[0] = largest
	}
	p.current = 0
	p.offset = 0
	p.rented = 0
}

// Rented returns the number of ints rented since the last FreeAll.
func (p *Pool) Rented() int {
	return p.rented
}

// Capacity returns the total number of ints currently held by the pool.
func (p *Pool) Capacity() int {
	total := 0
	for _, c := range p.chunks {
		total += len(c)
	}
	return total
}

// Peak returns the largest number of ints rented in a single cycle.
func (p *Pool) Peak() int {
	return p.peak
}
