// Package task provides three coroutine-task shapes re-expressed as
// goroutines: Lazy[T] (doesn't start until awaited), Eager[T] (Spawn: starts
// immediately, fire-and-forget if never awaited), and Shared[T]
// (multi-consumer, four-state machine). Each Await blocks on a channel that
// the task closes once its result is stored, so it always resumes on the
// goroutine that called it. Lazy and Eager close that channel from the
// task's own goroutine; Shared wakes each waiter through its worker's
// ready-queue when the waiter has one.
package task

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/corofd/iouco/internal/rlog"
	"github.com/corofd/iouco/worker"
)

// runRecovered invokes f and converts a panic into an error, the same
// recover-and-log shape cloudwego-gopkg's gopool.GoPool.runTask uses for
// its background tasks, adapted to report the panic as the task's result
// instead of only logging it, since an async task body has no caller left
// to propagate a panic to.
func runRecovered[T any](ctx context.Context, f func(context.Context) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			rlog.Errorf("task: panic recovered", "panic", r, "stack", string(debug.Stack()))
			err = &PanicError{Value: r}
		}
	}()
	return f(ctx)
}

// PanicError wraps a value recovered from a panicking task body.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return "task: panicked"
}

// Lazy is a single-consumer task whose goroutine does not start until
// Await is first called, grounded on the "don't start until awaited" shape
// of a sync.Once-guarded lazily started goroutine — the closest Go
// analogue to a coroutine that has not yet had its first resume.
type Lazy[T any] struct {
	once   sync.Once
	f      func(context.Context) (T, error)
	done   chan struct{}
	result T
	err    error
}

// NewLazy wraps f as a Lazy task. f does not run until Await is called.
func NewLazy[T any](f func(context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{f: f, done: make(chan struct{})}
}

// Await starts t's goroutine on first call and blocks until it finishes or
// ctx is done. Subsequent calls (from the single intended consumer) observe
// the same result without re-running f.
func (t *Lazy[T]) Await(ctx context.Context) (T, error) {
	t.once.Do(func() {
		go func() {
			t.result, t.err = runRecovered(context.Background(), t.f)
			close(t.done)
		}()
	})
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Eager is the handle Spawn returns: a task whose start is already queued
// on its worker by the time the constructor returns.
type Eager[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Spawn queues a thunk on w via worker.SpawnAuto that starts f on its own
// goroutine, and returns a handle for its eventual result. Grounded on cloudwego-gopkg's
// gopool.GoPool.CtxGo fire-and-forget pattern: a caller that never calls
// Await simply lets the result channel be garbage collected along with the
// Eager value, same as CtxGo's task being dropped once run.
func Spawn[T any](w *worker.Worker, ctx context.Context, f func(context.Context) (T, error)) *Eager[T] {
	e := &Eager[T]{done: make(chan struct{})}
	w.SpawnAuto(func() {
		go func() {
			e.result, e.err = runRecovered(ctx, f)
			close(e.done)
		}()
	})
	return e
}

// Await blocks until e's goroutine finishes or ctx is done.
func (e *Eager[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-e.done:
		return e.result, e.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// sharedState is the payload behind task.Shared's single atomic.Pointer
// word once the task has produced a value: the "value ready" state.
type sharedState[T any] struct {
	result T
	err    error
}

// sharedWaiter is one queued consumer: the worker its goroutine should
// resume on (so Shared's completion can schedule it back onto the right
// ready-queue, cross-worker-safe) and the channel Await is blocked on.
type sharedWaiter struct {
	w    *worker.Worker
	done chan struct{}
}

// Shared has four logical states, conceptually encoded in one word:
// notStarted, startedNoWaiters are plain int32 states; once a second Await
// arrives the state holds a *sharedWaiterList pointer instead of an int,
// so Shared keeps both an atomic.Int32 phase and a separate waiter list
// rather than literally unioning an int and a pointer in one word (Go has
// no tagged-union atomic primitive); the externally observable states and
// transitions are identical.
const (
	sharedNotStarted int32 = iota
	sharedStarted
	sharedReady
)

// Shared is a multi-consumer task: many goroutines may Await the same
// Shared[T], all observing the one result the underlying f produces exactly
// once. It keeps no count of its consumers; its state and stored result
// live as long as any reference to the Shared value does.
type Shared[T any] struct {
	phase atomic.Int32
	f     func(context.Context) (T, error)

	mu      sync.Mutex // guards waiters during the startedNoWaiters/waiters transition
	waiters []sharedWaiter

	state atomic.Pointer[sharedState[T]]
}

// NewShared wraps f as a Shared task.
func NewShared[T any](f func(context.Context) (T, error)) *Shared[T] {
	return &Shared[T]{f: f}
}

// Await registers the caller as a waiter (starting t's goroutine if this is
// the first Await) and blocks until a result is ready or ctx is done. w is
// the worker the caller should be resumed on; pass nil if the caller is not
// itself running inside a worker's loop and can simply block on the Go
// channel directly.
func (t *Shared[T]) Await(ctx context.Context, w *worker.Worker) (T, error) {
	if st := t.state.Load(); st != nil {
		return st.result, st.err
	}

	t.mu.Lock()
	if st := t.state.Load(); st != nil {
		t.mu.Unlock()
		return st.result, st.err
	}
	waiter := sharedWaiter{w: w, done: make(chan struct{})}
	t.waiters = append(t.waiters, waiter)
	first := t.phase.CompareAndSwap(sharedNotStarted, sharedStarted)
	t.mu.Unlock()

	if first {
		go t.run()
	}

	select {
	case <-waiter.done:
		st := t.state.Load()
		return st.result, st.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// run executes f exactly once (only the first Await's CompareAndSwap wins
// the race to call it) and fans the result out to every waiter queued by
// the time it finishes, handing each one back to its originating worker's
// ready-queue.
func (t *Shared[T]) run() {
	result, err := runRecovered(context.Background(), t.f)

	t.mu.Lock()
	t.state.Store(&sharedState[T]{result: result, err: err})
	t.phase.Store(sharedReady)
	waiters := t.waiters
	t.waiters = nil
	t.mu.Unlock()

	for _, wt := range waiters {
		wt := wt
		if wt.w != nil {
			wt.w.SpawnAuto(func() { close(wt.done) })
		} else {
			close(wt.done)
		}
	}
}
