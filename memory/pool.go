// Package memory provides the free-list pool backing the order arena.
// The book churns through short-lived orders at tick rate; recycling
// them keeps the allocator out of the matching path.
package memory

// Resettable is implemented by pooled objects that must be wiped
// before reuse.
type Resettable interface {
	Reset()
}

// Pool is a bounded free list of *T. Get falls back to allocation when
// the list is empty, so callers never block on pool capacity; Put
// drops the object when the list is full.
type Pool[T any] struct {
	free []*T
	news func() *T
}

// NewPool creates a pool that keeps at most capacity recycled objects.
func NewPool[T any](capacity int) *Pool[T] {
	return &Pool[T]{
		free: make([]*T, 0, capacity),
		news: func() *T { return new(T) },
	}
}

// Get returns a recycled object, or a fresh one if none are available.
func (p *Pool[T]) Get() *T {
	if n := len(p.free); n > 0 {
		v := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		return v
	}
	return p.news()
}

// Put recycles an object. Objects implementing Resettable are wiped
// first so no stale state leaks into the next Get.
func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	if r, ok := any(v).(Resettable); ok {
		r.Reset()
	}
	if len(p.free) < cap(p.free) {
		p.free = append(p.free, v)
	}
}

// Len reports how many recycled objects are currently held.
func (p *Pool[T]) Len() int { return len(p.free) }
