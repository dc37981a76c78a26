// Package heap provides the fixed-capacity binary heap used as the A* open set.
//
// Unlike container/heap, items record their own slot, so Contains is O(1) and an
// item whose priority changed can be repositioned without a linear search.
package heap

import (
	"errors"
	"fmt"
)

// InvalidIndex is the slot reported by items that are not in any heap.
const InvalidIndex = -1

var (
	// ErrEmpty is returned by RemoveFirst on an empty heap.
	ErrEmpty = errors.New("heap is empty")
	// ErrFull is returned by Add when the heap is at capacity.
	ErrFull = errors.New("heap is full")
)

// Item is an element that can live in a Heap.
type Item[T any] interface {
	// Compare returns a positive number if the receiver must leave the heap before
	// other, a negative number if after, and zero if both are equivalent.
	Compare(other T) int
	HeapIndex() int
	SetHeapIndex(i int)
}

// Elem constrains heap elements to comparable Items, typically pointers.
type Elem[T any] interface {
	comparable
	Item[T]
}

// Heap is an array-backed binary heap. The root is always the item with the
// highest priority according to Item.Compare.
type Heap[T Elem[T]] struct {
	items []T
	count int
}

// New creates a heap that holds at most capacity items.
func New[T Elem[T]](capacity int) *Heap[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Heap[T]{items: make([]T, capacity)}
}

// Count returns the number of items in the heap.
func (h *Heap[T]) Count() int {
	return h.count
}

// Cap returns the fixed capacity.
func (h *Heap[T]) Cap() int {
	return len(h.items)
}

// Add inserts item. A full heap is left untouched and ErrFull is returned.
func (h *Heap[T]) Add(item T) error {
	if h.count == len(h.items) {
		return fmt.Errorf("add item at count %d: %w", h.count, ErrFull)
	}
	item.SetHeapIndex(h.count)
	h.items[h.count] = item
	h.count++
	h.sortUp(item)
	return nil
}

// RemoveFirst pops the highest priority item.
func (h *Heap[T]) RemoveFirst() (T, error) {
	var zero T
	if h.count == 0 {
		return zero, ErrEmpty
	}

	first := h.items[0]
	h.count--
	last := h.items[h.count]
	h.items[h.count] = zero
	first.SetHeapIndex(InvalidIndex)

	if h.count > 0 {
		h.items[0] = last
		last.SetHeapIndex(0)
		h.sortDown(last)
	}
	return first, nil
}

// UpdateItem restores heap order after item's priority improved while enqueued.
// Priorities only ever improve in the open set, so only upward correction is done.
func (h *Heap[T]) UpdateItem(item T) {
	if !h.Contains(item) {
		return
	}
	h.sortUp(item)
}

// Contains reports whether item currently occupies a slot in this heap.
func (h *Heap[T]) Contains(item T) bool {
	i := item.HeapIndex()
	if i < 0 || i >= h.count {
		return false
	}
	return h.items[i] == item
}

// Clear empties the heap and invalidates the slot of every remaining item.
func (h *Heap[T]) Clear() {
	var zero T
	for i := 0; i < h.count; i++ {
		h.items[i].SetHeapIndex(InvalidIndex)
		h.items[i] = zero
	}
	h.count = 0
}

// At returns the item stored at slot i. Intended for heap-order checks in tests.
func (h *Heap[T]) At(i int) T {
	return h.items[i]
}

func (h *Heap[T]) sortUp(item T) {
	for {
		i := item.HeapIndex()
		if i == 0 {
			return
		}
		parent := h.items[(i-1)/2]
		if item.Compare(parent) <= 0 {
			return
		}
		h.swap(item, parent)
	}
}

func (h *Heap[T]) sortDown(item T) {
	for {
		i := item.HeapIndex()
		left := 2*i + 1
		right := left + 1
		if left >= h.count {
			return
		}

		swapIndex := left
		if right < h.count && h.items[left].Compare(h.items[right]) < 0 {
			swapIndex = right
		}

		child := h.items[swapIndex]
		if item.Compare(child) >= 0 {
			return
		}
		h.swap(item, child)
	}
}

func (h *Heap[T]) swap(a, b T) {
	ia, ib := a.HeapIndex(), b.HeapIndex()
	h.items[ia], h.items[ib] = b, a
	a.SetHeapIndex(ib)
	b.SetHeapIndex(ia)
}
