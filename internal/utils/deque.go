package utils

import "sync"

// Deque is a bounded FIFO. Pushing past the limit drops the oldest entries.
type Deque[T any] struct {
	mu      sync.Mutex
	limit   int
	entries []T
}

func NewDeque[T any](limit int) *Deque[T] {
	if limit <= 0 {
		limit = 1
	}
	return &Deque[T]{limit: limit}
}

// Push appends value and returns how many old entries were evicted.
func (d *Deque[T]) Push(value T) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries = append(d.entries, value)
	idx := 0
	if len(d.entries) > d.limit {
		idx = len(d.entries) - d.limit
	}
	d.entries = d.entries[idx:]
	return idx
}

func (d *Deque[T]) Last() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var zero T
	if len(d.entries) == 0 {
		return zero, false
	}
	return d.entries[len(d.entries)-1], true
}

// Find returns the newest entry matching fn.
func (d *Deque[T]) Find(fn func(T) bool) (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := len(d.entries) - 1; i >= 0; i-- {
		if fn(d.entries[i]) {
			return d.entries[i], true
		}
	}
	var zero T
	return zero, false
}

func (d *Deque[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Items returns a copy, oldest first.
func (d *Deque[T]) Items() []T {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]T, len(d.entries))
	copy(out, d.entries)
	return out
}
