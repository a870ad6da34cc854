package spsc

import "sync/atomic"

// node is one link in a LIFO's backing stack.
type node[T any] struct {
	value T
	next  *node[T]
}

// LIFO is a Treiber stack: an unbounded, lock-free last-in-first-out list
// built from a single atomic.Pointer and compare-and-swap retries, the same
// CAS-loop shape Queue uses for its ring cursors. mutex/semaphore/cond use
// it to hold the goroutines parked waiting to be woken, since those lists
// have no natural upper bound the way a ready-queue does.
type LIFO[T any] struct {
	top atomic.Pointer[node[T]]
}

// Push adds value to the top of the stack.
func (s *LIFO[T]) Push(value T) {
	n := &node[T]{value: value}
	for {
		old := s.top.Load()
		n.next = old
		if s.top.CompareAndSwap(old, n) {
			return
		}
	}
}

// Pop removes and returns the most recently pushed value; ok is false if
// the stack is empty.
func (s *LIFO[T]) Pop() (value T, ok bool) {
	for {
		old := s.top.Load()
		if old == nil {
			var zero T
			return zero, false
		}
		if s.top.CompareAndSwap(old, old.next) {
			return old.value, true
		}
	}
}

// DrainAll atomically empties the stack and returns its contents, most
// recently pushed first. Used by NotifyAll to wake every waiter in one
// uncontended swap instead of popping one at a time.
func (s *LIFO[T]) DrainAll() []T {
	old := s.top.Swap(nil)
	var out []T
	for n := old; n != nil; n = n.next {
		out = append(out, n.value)
	}
	return out
}

// Empty reports whether the stack currently has no elements. Racy against
// concurrent Push; intended for TryLock-style fast paths only.
func (s *LIFO[T]) Empty() bool {
	return s.top.Load() == nil
}
