// Package combinator provides All/Any/Some fan-out combinators: run
// several awaitables concurrently and resume the caller once enough of
// them have finished. Each sub-awaitable runs as its own task.Spawn; a
// shared, pre-sized result slice plus a sync/atomic countdown (or "first
// winner" flag) decides when the one non-blocking send on the parent's
// single buffered done channel is made.
package combinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/corofd/iouco/task"
	"github.com/corofd/iouco/worker"
)

// Awaiter is the minimal shape combinators operate over. task.Lazy[T] and
// task.Eager[T] both satisfy it directly (task.Shared[T] does not, since
// its Await additionally takes a *worker.Worker — combinators don't
// support awaiting a Shared task as one of their inputs).
type Awaiter[T any] interface {
	Await(ctx context.Context) (T, error)
}

// erased adapts a concrete Awaiter[T] to Awaiter[any], boxing its result.
type erased[T any] struct {
	inner Awaiter[T]
}

func (e erased[T]) Await(ctx context.Context) (any, error) {
	return e.inner.Await(ctx)
}

// Erase boxes aw's result as any, so awaitables of different result types
// can be passed to the same All/Any/Some call instantiated with T = any —
// e.g. all(timeout(d), timeout(d2).returning a string, timeout(d3)). Each
// caller-known slot's Result.Value is type-asserted back after the call
// returns.
func Erase[T any](aw Awaiter[T]) Awaiter[any] {
	return erased[T]{inner: aw}
}

// Result is one sub-awaitable's outcome.
type Result[T any] struct {
	Value T
	Err   error
}

// IndexedResult additionally records which input produced Result, for Some.
type IndexedResult[T any] struct {
	Index int
	Result[T]
}

var (
	ErrNoAwaiters = errors.New("combinator: no awaiters given")
	ErrInvalidMin = errors.New("combinator: min must be between 1 and len(aws)")
)

// All waits for every one of aws to finish and returns their results
// positionally. A failing sub-awaitable does not cancel its siblings; its
// error is simply recorded in that slot's Result.
func All[T any](ctx context.Context, w *worker.Worker, aws ...Awaiter[T]) ([]Result[T], error) {
	results := make([]Result[T], len(aws))
	if len(aws) == 0 {
		return results, nil
	}

	var remaining atomic.Int64
	remaining.Store(int64(len(aws)))
	done := make(chan struct{}, 1)

	for i, aw := range aws {
		i, aw := i, aw
		task.Spawn(w, ctx, func(ctx context.Context) (struct{}, error) {
			v, err := aw.Await(ctx)
			results[i] = Result[T]{Value: v, Err: err}
			if remaining.Add(-1) == 0 {
				select {
				case done <- struct{}{}:
				default:
				}
			}
			return struct{}{}, nil
		})
	}

	select {
	case <-done:
		return results, nil
	case <-ctx.Done():
		return results, ctx.Err()
	}
}

// Any waits for the first of aws to finish and returns its index and
// result. The remaining awaitables are not cancelled — they run to
// completion and their results are discarded.
func Any[T any](ctx context.Context, w *worker.Worker, aws ...Awaiter[T]) (int, Result[T], error) {
	if len(aws) == 0 {
		return -1, Result[T]{}, ErrNoAwaiters
	}

	var finished atomic.Bool
	var mu sync.Mutex
	var result Result[T]
	resultIdx := -1
	done := make(chan struct{}, 1)

	for i, aw := range aws {
		i, aw := i, aw
		task.Spawn(w, ctx, func(ctx context.Context) (struct{}, error) {
			v, err := aw.Await(ctx)
			if finished.CompareAndSwap(false, true) {
				mu.Lock()
				result = Result[T]{Value: v, Err: err}
				resultIdx = i
				mu.Unlock()
				select {
				case done <- struct{}{}:
				default:
				}
			}
			return struct{}{}, nil
		})
	}

	select {
	case <-done:
		mu.Lock()
		defer mu.Unlock()
		return resultIdx, result, result.Err
	case <-ctx.Done():
		return -1, Result[T]{}, ctx.Err()
	}
}

// Some waits for the first min of aws to finish and returns their results
// tagged with their original index, order of arrival. Remaining awaitables
// run to completion undisturbed, same as Any.
func Some[T any](ctx context.Context, w *worker.Worker, min int, aws ...Awaiter[T]) ([]IndexedResult[T], error) {
	if min <= 0 || min > len(aws) {
		return nil, ErrInvalidMin
	}

	var mu sync.Mutex
	var collected []IndexedResult[T]
	var closed atomic.Bool
	done := make(chan struct{}, 1)

	for i, aw := range aws {
		i, aw := i, aw
		task.Spawn(w, ctx, func(ctx context.Context) (struct{}, error) {
			v, err := aw.Await(ctx)
			mu.Lock()
			if len(collected) < min {
				collected = append(collected, IndexedResult[T]{Index: i, Result: Result[T]{Value: v, Err: err}})
				if len(collected) == min && closed.CompareAndSwap(false, true) {
					select {
					case done <- struct{}{}:
					default:
					}
				}
			}
			mu.Unlock()
			return struct{}{}, nil
		})
	}

	select {
	case <-done:
		mu.Lock()
		defer mu.Unlock()
		out := make([]IndexedResult[T], len(collected))
		copy(out, collected)
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
