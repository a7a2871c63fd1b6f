package sequence

// Ring is a bounded FIFO buffer. Once full, each Push evicts the oldest
// element. It is not safe for concurrent use.
type Ring[T any] struct {
	items []T
	start int
	size  int
}

// NewRing allocates a ring holding at most capacity elements. A capacity
// below one is raised to one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends v and reports whether an older element was dropped.
func (r *Ring[T]) Push(v T) bool {
	if r.size < len(r.items) {
		r.items[(r.start+r.size)%len(r.items)] = v
		r.size++
		return false
	}
	r.items[r.start] = v
	r.start = (r.start + 1) % len(r.items)
	return true
}

func (r *Ring[T]) Len() int {
	return r.size
}

func (r *Ring[T]) Cap() int {
	return len(r.items)
}

// Items returns the buffered elements oldest first as a fresh slice.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.start+i)%len(r.items)]
	}
	return out
}

// Iter walks the buffer oldest first without copying. The ring must not be
// pushed to while the iterator is in use.
func (r *Ring[T]) Iter() *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			for i := 0; i < r.size; i++ {
				if !yield(r.items[(r.start+i)%len(r.items)]) {
					return
				}
			}
		},
	}
}

// Reset drops every element and keeps the capacity.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.start = 0
	r.size = 0
}
