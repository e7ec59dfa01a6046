package buffer

import "sync"

// Ring is a fixed-capacity history buffer. Adding past capacity drops
// the oldest entry. It is safe for concurrent use.
type Ring[T any] struct {
	mu    sync.Mutex
	items []T
	start int
	count int
}

// RingN creates a Ring holding at most n entries.
func RingN[T any](n int) *Ring[T] {
	if n < 1 {
		n = 1
	}
	return &Ring[T]{items: make([]T, n)}
}

// Add appends one entry, evicting the oldest when full.
func (r *Ring[T]) Add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count < len(r.items) {
		r.items[(r.start+r.count)%len(r.items)] = v
		r.count++
		return
	}
	r.items[r.start] = v
	r.start = (r.start + 1) % len(r.items)
}

// Items returns the buffered entries, oldest first.
func (r *Ring[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.items[(r.start+i)%len(r.items)]
	}
	return out
}

// Len returns the number of buffered entries.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Clear drops all entries.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = 0
	r.count = 0
}
