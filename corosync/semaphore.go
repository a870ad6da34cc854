package corosync

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/corofd/iouco/internal/spsc"
	"github.com/corofd/iouco/worker"
)

type semWaiter struct {
	w    *worker.Worker
	done chan struct{}
}

// Semaphore is a counting semaphore: a signed counter where a negative
// value records how many acquirers are currently queued.
type Semaphore struct {
	counter atomic.Int64
	waiters spsc.LIFO[*semWaiter]

	spin     atomic.Bool // grounded on momentics-hioload-ws's adaptive spin-wait backoff
	toResume []*semWaiter
}

// NewSemaphore returns a semaphore with the given initial permit count.
func NewSemaphore(desired int64) *Semaphore {
	s := &Semaphore{}
	s.counter.Store(desired)
	return s
}

// TryAcquire takes one permit without blocking if one is immediately
// available.
func (s *Semaphore) TryAcquire() bool {
	for {
		cur := s.counter.Load()
		if cur <= 0 {
			return false
		}
		if s.counter.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

// Acquire blocks until a permit is available or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	prior := s.counter.Add(-1) + 1
	if prior > 0 {
		return nil
	}

	wt := &semWaiter{w: worker.Current(), done: make(chan struct{})}
	s.waiters.Push(wt)

	select {
	case <-wt.done:
		return nil
	case <-ctx.Done():
		// The permit this Acquire committed to taking (via the fetch-sub
		// above) is still owed to someone: hand it back so Release's
		// bookkeeping stays correct, same as a cancelled Mutex.Lock never
		// stranding the lock.
		s.counter.Add(1)
		return ctx.Err()
	}
}

func (s *Semaphore) lockSpin() {
	for !s.spin.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (s *Semaphore) unlockSpin() {
	s.spin.Store(false)
}

// Release returns n permits, waking up to min(n, waiters) queued
// acquirers.
func (s *Semaphore) Release(n int64) {
	if n <= 0 {
		return
	}
	prior := s.counter.Add(n) - n
	if prior >= 0 {
		return
	}

	toWake := -prior
	if toWake > n {
		toWake = n
	}

	s.lockSpin()
	defer s.unlockSpin()
	for i := int64(0); i < toWake; i++ {
		wt := s.popToResume()
		if wt.w != nil {
			wt.w.SpawnAuto(func() { close(wt.done) })
		} else {
			close(wt.done)
		}
	}
}

// popToResume returns the next waiter to wake, refilling the private FIFO
// from the lock-free LIFO when it runs dry. The backing Push from Acquire
// can lag the counter update that decided a wakeup is owed, so this spins
// briefly rather than ever returning a nil waiter.
func (s *Semaphore) popToResume() *semWaiter {
	for {
		if len(s.toResume) > 0 {
			wt := s.toResume[0]
			s.toResume = s.toResume[1:]
			return wt
		}
		drained := s.waiters.DrainAll()
		if len(drained) == 0 {
			runtime.Gosched()
			continue
		}
		for i, j := 0, len(drained)-1; i < j; i, j = i+1, j-1 {
			drained[i], drained[j] = drained[j], drained[i]
		}
		s.toResume = drained
	}
}
