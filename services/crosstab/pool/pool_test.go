// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Rent(t *testing.T) {
	t.Run("returns exact length", func(t *testing.T) {
		p := New(16)
		buf := p.Rent(5)
		assert.Len(t, buf, 5)
		assert.Equal(t, 5, cap(buf))
		assert.Equal(t, 5, p.Rented())
	})

	t.Run("zero and negative sizes", func(t *testing.T) {
		p := New(16)
		assert.NotNil(t, p.Rent(0))
		assert.Len(t, p.Rent(-3), 0)
		assert.Equal(t, 0, p.Rented())
	})

	t.Run("rentals do not overlap", func(t *testing.T) {
		p := New(8)
		a := p.Rent(4)
		b := p.Rent(4)
		for i := range a {
			a[i] = 1
		}
		for i := range b {
			b[i] = 2
		}
		assert.Equal(t, Buffer{1, 1, 1, 1}, a)
		assert.Equal(t, Buffer{2, 2, 2, 2}, b)
	})

	t.Run("append cannot clobber neighbour", func(t *testing.T) {
		p := New(8)
		a := p.Rent(2)
		b := p.Rent(2)
		b[0], b[1] = 7, 7
		_ = append(a, 99)
		assert.Equal(t, Buffer{7, 7}, b)
	})

	t.Run("grows beyond first chunk and keeps old buffers valid", func(t *testing.T) {
		p := New(4)
		a := p.Rent(3)
		a[0], a[1], a[2] = 1, 2, 3
		b := p.Rent(10)
		require.Len(t, b, 10)
		assert.Equal(t, Buffer{1, 2, 3}, a)
		assert.GreaterOrEqual(t, p.Capacity(), 14)
	})
}

func TestPool_FreeAll(t *testing.T) {
	t.Run("reuses memory after free", func(t *testing.T) {
		p := New(8)
		a := p.Rent(4)
		a[0] = 42
		p.FreeAll()
		assert.Equal(t, 0, p.Rented())

		b := p.Rent(4)
		// Same backing memory is handed out again.
		assert.Equal(t, 42, b[0])
	})

	t.Run("keeps largest chunk", func(t *testing.T) {
		p := New(4)
		p.Rent(4)
		p.Rent(50)
		p.FreeAll()

		capBefore := p.Capacity()
		assert.GreaterOrEqual(t, capBefore, 50)
		p.Rent(50)
		assert.Equal(t, capBefore, p.Capacity(), "warm pool should not allocate")
	})

	t.Run("tracks peak across cycles", func(t *testing.T) {
		p := New(4)
		p.Rent(3)
		p.Rent(3)
		p.FreeAll()
		p.Rent(1)
		assert.Equal(t, 6, p.Peak())
	})
}

func TestBuffer_Take(t *testing.T) {
	p := New(8)
	buf := p.Rent(5)
	copy(buf, []int{9, 8, 7, 6, 5})

	view := buf.Take(3)
	assert.Equal(t, []int{9, 8, 7}, view)
	assert.Equal(t, 3, cap(view))
	assert.Empty(t, buf.Take(0))
}

func BenchmarkPool_RentFreeCycle(b *testing.B) {
	p := New(0)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		p.FreeAll()
		p.Rent(8)
		p.Rent(8)
		p.Rent(4)
	}
}
