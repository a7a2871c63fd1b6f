package sequence

import (
	"cmp"
	"iter"
	"slices"
)

// Iterator is a lazy, chainable view over a sequence of T. Each stage wraps
// the previous one; nothing runs until Collect or Count.
type Iterator[T any] struct {
	seq iter.Seq[T]
}

// From iterates data in order.
func From[T any](data []T) *Iterator[T] {
	return &Iterator[T]{seq: slices.Values(data)}
}

// Filter keeps the elements for which keep returns true.
func (i *Iterator[T]) Filter(keep func(T) bool) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			for v := range i.seq {
				if keep(v) && !yield(v) {
					return
				}
			}
		},
	}
}

// SortBy materializes the sequence and orders it stably by compare.
func (i *Iterator[T]) SortBy(compare func(a, b T) int) *Iterator[T] {
	data := i.Collect()
	slices.SortStableFunc(data, compare)
	return From(data)
}

// Collect drains the iterator. An empty sequence yields a nil slice.
func (i *Iterator[T]) Collect() []T {
	return slices.Collect(i.seq)
}

func (i *Iterator[T]) Count() int {
	n := 0
	for range i.seq {
		n++
	}
	return n
}

// Map converts each element with fn.
func Map[T, S any](it *Iterator[T], fn func(T) S) *Iterator[S] {
	return &Iterator[S]{
		seq: func(yield func(S) bool) {
			for v := range it.seq {
				if !yield(fn(v)) {
					return
				}
			}
		},
	}
}

// Distinct drops repeated elements, keeping first occurrences in order.
func Distinct[T comparable](it *Iterator[T]) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			seen := make(map[T]struct{})
			for v := range it.seq {
				if _, dup := seen[v]; dup {
					continue
				}
				seen[v] = struct{}{}
				if !yield(v) {
					return
				}
			}
		},
	}
}

// SortedKeys returns the keys of m in ascending order. The result is never nil.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
