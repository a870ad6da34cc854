package corosync

import (
	"context"
	"sync/atomic"

	"github.com/corofd/iouco/internal/spsc"
	"github.com/corofd/iouco/worker"
)

type condWaiter struct {
	w         *worker.Worker
	done      chan struct{}
	cancelled atomic.Bool
}

// Cond is a condition variable layered over Mutex.
type Cond struct {
	waiters spsc.LIFO[*condWaiter]
}

// Wait atomically unlocks mtx and suspends the caller until a Notify call
// hands it back. By the time Wait returns nil, the notifier has already
// re-acquired mtx on the caller's behalf (see handoff) — the caller does
// not need to, and must not, call mtx.Lock again.
func (c *Cond) Wait(ctx context.Context, mtx *Mutex) error {
	wt := &condWaiter{w: worker.Current(), done: make(chan struct{})}
	c.waiters.Push(wt)
	mtx.Unlock()

	select {
	case <-wt.done:
		return nil
	case <-ctx.Done():
		// wt stays linked in the LIFO; handoff checks cancelled before
		// attempting to acquire mtx on its behalf, so a future Notify
		// never strands the lock on an abandoned waiter.
		wt.cancelled.Store(true)
		return ctx.Err()
	}
}

// WaitPred loops Wait until pred reports true, the direct port of the
// source's `while (!pred()) co_await wait(mtx);`. mtx must already be held
// by the caller on entry, and is held again on return.
func (c *Cond) WaitPred(ctx context.Context, mtx *Mutex, pred func() bool) error {
	for !pred() {
		if err := c.Wait(ctx, mtx); err != nil {
			return err
		}
	}
	return nil
}

// NotifyOne wakes one waiter, attempting to re-acquire mtx on its behalf;
// if the mutex is busy the waiter is queued directly onto mtx's own waiter
// chain to be resumed by a future Unlock.
func (c *Cond) NotifyOne(mtx *Mutex) {
	wt, ok := c.waiters.Pop()
	if !ok {
		return
	}
	c.handoff(mtx, wt)
}

// NotifyAll wakes every waiter currently queued, performing the same
// re-acquire-or-queue step on each.
func (c *Cond) NotifyAll(mtx *Mutex) {
	for _, wt := range c.waiters.DrainAll() {
		c.handoff(mtx, wt)
	}
}

func (c *Cond) handoff(mtx *Mutex, wt *condWaiter) {
	if wt.cancelled.Load() {
		return
	}
	mw := &mutexWaiter{w: wt.w, done: wt.done}
	if mtx.pushWaiter(mw) {
		if wt.w != nil {
			wt.w.SpawnAuto(func() { close(wt.done) })
		} else {
			close(wt.done)
		}
	}
	// If pushWaiter queued mw instead, mtx's own Unlock will close
	// wt.done (== mw.done) when it eventually pops mw.
}
