// Package corosync provides goroutine-level synchronization primitives
// that park on a channel instead of blocking an OS thread: Mutex,
// Semaphore, Cond, and Channel[T]. Grounded on a
// lock-free-stack-of-waiters design, using internal/spsc's Treiber LIFO
// and the spin-wait backoff shape momentics-hioload-ws's
// internal/concurrency/eventloop.go uses for its own adaptive spin loop.
package corosync

import (
	"context"
	"sync/atomic"

	"github.com/corofd/iouco/worker"
)

// mutexWaiter is one goroutine queued for Mutex, linked through the state
// word itself (a Treiber stack threaded through the waiter nodes) so that
// pushing a new waiter and discovering "the lock just became free" are
// the same compare-and-swap. A two-word split (a locked bool plus a
// separate waiter list) would leave a window between a failing TryLock and
// a concurrent Unlock seeing an empty list; threading next through the
// state word itself closes it.
type mutexWaiter struct {
	w         *worker.Worker
	done      chan struct{}
	next      *mutexWaiter
	cancelled atomic.Bool
}

// lockedNoWaiters is the sentinel state value meaning "held, nobody queued".
var lockedNoWaiters = &mutexWaiter{}

// Mutex is a goroutine-level mutual exclusion lock.
type Mutex struct {
	state    atomic.Pointer[mutexWaiter] // nil = unlocked
	toResume []*mutexWaiter              // private FIFO, touched only by the current holder's Unlock
}

// TryLock attempts to acquire m without blocking.
func (m *Mutex) TryLock() bool {
	return m.state.CompareAndSwap(nil, lockedNoWaiters)
}

// pushWaiter links wt into the state word, the same CAS that TryLock uses
// when the mutex turns out to be free. Returns true if wt was granted the
// lock immediately (state was nil) and false if it was queued onto the
// waiter stack instead. Shared by Lock and Cond's notify path, which needs
// to attempt re-acquiring a Mutex on a woken waiter's behalf without
// blocking: if the acquire succeeds synchronously the handle is scheduled
// immediately, otherwise it is queued onto mtx's own waiter chain.
func (m *Mutex) pushWaiter(wt *mutexWaiter) bool {
	for {
		old := m.state.Load()
		if old == nil {
			if m.state.CompareAndSwap(nil, lockedNoWaiters) {
				return true
			}
			continue
		}
		if old == lockedNoWaiters {
			wt.next = nil
		} else {
			wt.next = old
		}
		if m.state.CompareAndSwap(old, wt) {
			return false
		}
	}
}

// Lock blocks until m is acquired or ctx is done, returning an unlock func
// on success — since only the goroutine that locked may unlock, callers
// get back the only handle capable of releasing their specific
// acquisition rather than a bare method on m.
func (m *Mutex) Lock(ctx context.Context) (func(), error) {
	wt := &mutexWaiter{w: worker.Current(), done: make(chan struct{})}
	if m.pushWaiter(wt) {
		return m.Unlock, nil
	}

	select {
	case <-wt.done:
		return m.Unlock, nil
	case <-ctx.Done():
		// wt stays linked into the stack; a future Unlock that pops it
		// sees cancelled and moves on to the next waiter instead of
		// handing ownership to a goroutine that already gave up, so the
		// lock is never stranded on an abandoned waiter.
		wt.cancelled.Store(true)
		return nil, ctx.Err()
	}
}

// Unlock releases m. Exactly the goroutine that successfully locked must
// call this.
func (m *Mutex) Unlock() {
	for {
		if len(m.toResume) > 0 {
			wt := m.toResume[0]
			m.toResume = m.toResume[1:]
			if m.resume(wt) {
				return
			}
			continue
		}

		old := m.state.Load()
		if old == lockedNoWaiters {
			if m.state.CompareAndSwap(lockedNoWaiters, nil) {
				return
			}
			continue
		}

		// Waiters are queued: atomically swap the LIFO pointer out for
		// draining.
		drained := m.state.Swap(lockedNoWaiters)
		var list []*mutexWaiter
		for n := drained; n != nil; n = n.next {
			list = append(list, n)
		}
		for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
			list[i], list[j] = list[j], list[i]
		}
		m.toResume = list
	}
}

// resume hands ownership to wt unless it was abandoned by a cancelled
// Lock, in which case it reports false so Unlock moves on to the next
// queued waiter instead of leaving the mutex held by nobody.
func (m *Mutex) resume(wt *mutexWaiter) bool {
	if wt.cancelled.Load() {
		return false
	}
	if wt.w != nil {
		wt.w.SpawnAuto(func() { close(wt.done) })
	} else {
		close(wt.done)
	}
	return true
}

// Guard is Lock, named for `defer` call sites — the direct analogue of the
// source's lock_guard.
func (m *Mutex) Guard(ctx context.Context) (func(), error) {
	return m.Lock(ctx)
}
