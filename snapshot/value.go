// Package snapshot publishes immutable values between goroutines without locks.
//
// A Value holds a pointer to the currently visible copy of T. Readers load the
// pointer and get a consistent copy; writers derive a new copy from the current
// one and install it with compare-and-swap, retrying when another writer won.
// Every mutable piece of shared session state (quote tops, trades, orders,
// positions, P&L) is kept in one of these.
package snapshot

import "sync/atomic"

type Value[T any] struct {
	p atomic.Pointer[T]
}

// New returns a Value whose initial snapshot is v.
func New[T any](v T) *Value[T] {
	s := &Value[T]{}
	s.Store(v)
	return s
}

// Load returns a copy of the visible snapshot. A Value that was never stored
// returns the zero T.
func (s *Value[T]) Load() T {
	if p := s.p.Load(); p != nil {
		return *p
	}
	var zero T
	return zero
}

// Loaded reports whether a snapshot has ever been published.
func (s *Value[T]) Loaded() bool {
	return s.p.Load() != nil
}

// Store publishes v unconditionally.
func (s *Value[T]) Store(v T) {
	s.p.Store(&v)
}

// Update derives the next snapshot from the current one and publishes it with
// compare-and-swap, retrying on conflict. fn may run several times and must
// have no side effects outside its return values. Returning false from fn
// abandons the update; Update then returns the snapshot fn was given.
func (s *Value[T]) Update(fn func(cur T) (T, bool)) (T, bool) {
	for {
		old := s.p.Load()
		var cur T
		if old != nil {
			cur = *old
		}
		next, ok := fn(cur)
		if !ok {
			return cur, false
		}
		if s.p.CompareAndSwap(old, &next) {
			return next, true
		}
	}
}
