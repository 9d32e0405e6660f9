// SPDX-License-Identifier: MIT
/*
Package ring implements a fixed-capacity FIFO ring buffer used for sample
history, block assembly and producer/consumer hand-off.

Layout:
- The backing array has capacity+1 slots. The slot at head is always free,
  which keeps "empty" (head == tail) distinct from "full".
- head is the next write slot and moves backwards on every Enqueue.
- tail is the oldest element and also moves backwards when it is consumed.
- When full, Enqueue overwrites the oldest element. There is no growth.

The buffer is not safe for concurrent use. Callers that share one between a
producer and a consumer must guard it themselves.
*/
package ring

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
)

// ErrInvalidCapacity is returned when a buffer is created with capacity < 1.
var ErrInvalidCapacity = errors.New("ring: capacity must be positive")

// Buffer is a fixed-capacity ring of values of type T.
type Buffer[T any] struct {
	data []T // capacity+1 slots
	head int // next write position
	tail int // oldest occupied position
	size int // number of valid elements
}

// New creates a buffer holding at most capacity elements.
func New[T any](capacity int) (*Buffer[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &Buffer[T]{data: make([]T, capacity+1)}, nil
}

// MustNew is like New but panics on an invalid capacity. It is meant for
// package-level tables and tests where the capacity is a constant.
func MustNew[T any](capacity int) *Buffer[T] {
	b, err := New[T](capacity)
	if err != nil {
		panic(err)
	}
	return b
}

// Enqueue inserts v as the newest element. If the buffer is full the oldest
// element is discarded.
func (b *Buffer[T]) Enqueue(v T) {
	b.data[b.head] = v
	b.head = b.dec(b.head)
	if b.head == b.tail {
		b.tail = b.dec(b.tail)
	}
	if b.size < b.Cap() {
		b.size++
	}
}

// EnqueueKeep inserts v only if the buffer is not full and reports whether
// it did. Existing elements are never discarded.
func (b *Buffer[T]) EnqueueKeep(v T) bool {
	if b.Full() {
		return false
	}
	b.Enqueue(v)
	return true
}

// Dequeue removes and returns the oldest element. On an empty buffer it
// returns whatever value is stored at the tail slot and false, leaving the
// buffer untouched.
func (b *Buffer[T]) Dequeue() (T, bool) {
	v := b.data[b.tail]
	if b.size == 0 {
		return v, false
	}
	b.tail = b.dec(b.tail)
	b.size--
	return v, true
}

// Front returns the newest element.
func (b *Buffer[T]) Front() T {
	return b.data[b.inc(b.head)]
}

// Back returns the oldest element.
func (b *Buffer[T]) Back() T {
	return b.data[b.tail]
}

// AtFront returns the element offset positions older than the newest one,
// i.e. the value enqueued offset calls ago. Offsets wrap around the backing
// array, so callers are expected to stay below Cap.
func (b *Buffer[T]) AtFront(offset int) T {
	return b.data[b.indexFront(offset)]
}

// AtBack returns the element offset positions newer than the oldest one.
func (b *Buffer[T]) AtBack(offset int) T {
	return b.data[b.indexBack(offset)]
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.data) - 1 }

// Len returns the number of valid elements.
func (b *Buffer[T]) Len() int { return b.size }

// Empty reports whether the buffer holds no elements.
func (b *Buffer[T]) Empty() bool { return b.size == 0 }

// Full reports whether the next Enqueue will discard an element.
func (b *Buffer[T]) Full() bool { return b.size == b.Cap() }

// Reset drops all elements and zeroes the backing storage so that history
// reads after a reset see zero values.
func (b *Buffer[T]) Reset() {
	clear(b.data)
	b.head, b.tail, b.size = 0, 0, 0
}

// All yields the elements from oldest to newest.
func (b *Buffer[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := range b.size {
			if !yield(b.AtBack(i)) {
				return
			}
		}
	}
}

// Backward yields the elements from newest to oldest.
func (b *Buffer[T]) Backward() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := range b.size {
			if !yield(b.AtFront(i)) {
				return
			}
		}
	}
}

// CopyTo copies the elements oldest first into dst and returns the number
// copied, which is min(len(dst), Len()).
func (b *Buffer[T]) CopyTo(dst []T) int {
	n := min(len(dst), b.size)
	for i := range n {
		dst[i] = b.AtBack(i)
	}
	return n
}

func (b *Buffer[T]) indexFront(offset int) int {
	return b.wrap(b.head + 1 + offset)
}

func (b *Buffer[T]) indexBack(offset int) int {
	return b.wrap(b.tail - offset)
}

func (b *Buffer[T]) wrap(i int) int {
	n := len(b.data)
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func (b *Buffer[T]) inc(i int) int { return (i + 1) % len(b.data) }

func (b *Buffer[T]) dec(i int) int { return (i + len(b.data) - 1) % len(b.data) }

// MinMax scans the buffer and returns its smallest and largest element.
// ok is false for an empty buffer.
func MinMax[T cmp.Ordered](b *Buffer[T]) (lo, hi T, ok bool) {
	if b.Empty() {
		return lo, hi, false
	}
	lo, hi = b.Back(), b.Back()
	for v := range b.All() {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi, true
}
