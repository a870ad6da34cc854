package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLazyDoesNotRunUntilAwaited(t *testing.T) {
	var started atomic.Bool
	lt := NewLazy(func(context.Context) (int, error) {
		started.Store(true)
		return 42, nil
	})

	time.Sleep(10 * time.Millisecond)
	if started.Load() {
		t.Fatal("Lazy task ran before Await was called")
	}

	got, err := lt.Await(context.Background())
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if got != 42 {
		t.Errorf("Await() = %d, want 42", got)
	}
	if !started.Load() {
		t.Error("Lazy task never ran")
	}
}

func TestLazyRunsOnlyOnce(t *testing.T) {
	var runs atomic.Int32
	lt := NewLazy(func(context.Context) (int, error) {
		runs.Add(1)
		return int(runs.Load()), nil
	})

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, _ := lt.Await(context.Background())
			results[idx] = v
		}(i)
	}
	wg.Wait()

	if runs.Load() != 1 {
		t.Errorf("task ran %d times, want 1", runs.Load())
	}
	for _, r := range results {
		if r != 1 {
			t.Errorf("Await() = %d, want 1 for every consumer", r)
		}
	}
}

func TestLazyAwaitRespectsContextCancellation(t *testing.T) {
	block := make(chan struct{})
	lt := NewLazy(func(context.Context) (int, error) {
		<-block
		return 0, nil
	})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := lt.Await(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("Await() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestEagerStartsImmediately(t *testing.T) {
	w := newTestWorkerForTask(t)

	var started atomic.Bool
	ready := make(chan struct{})
	e := Spawn(w, context.Background(), func(context.Context) (string, error) {
		started.Store(true)
		close(ready)
		return "done", nil
	})

	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("Spawn'd task never ran")
	}

	got, err := e.Await(context.Background())
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if got != "done" {
		t.Errorf("Await() = %q, want %q", got, "done")
	}
}

func TestEagerRecoversPanic(t *testing.T) {
	w := newTestWorkerForTask(t)

	e := Spawn(w, context.Background(), func(context.Context) (int, error) {
		panic("boom")
	})

	_, err := e.Await(context.Background())
	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("Await() error = %v, want *PanicError", err)
	}
}

func TestSharedFansOutToAllConsumers(t *testing.T) {
	var runs atomic.Int32
	st := NewShared(func(context.Context) (int, error) {
		runs.Add(1)
		time.Sleep(10 * time.Millisecond)
		return 7, nil
	})

	const consumers = 5
	var wg sync.WaitGroup
	results := make([]int, consumers)
	for i := 0; i < consumers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err := st.Await(context.Background(), nil)
			if err != nil {
				t.Errorf("consumer %d: Await() error = %v", idx, err)
			}
			results[idx] = v
		}(i)
	}
	wg.Wait()

	if runs.Load() != 1 {
		t.Errorf("underlying task ran %d times, want 1", runs.Load())
	}
	for i, r := range results {
		if r != 7 {
			t.Errorf("consumer %d got %d, want 7", i, r)
		}
	}
}

func TestSharedLateAwaitSeesCachedResult(t *testing.T) {
	st := NewShared(func(context.Context) (int, error) {
		return 99, nil
	})

	v1, err := st.Await(context.Background(), nil)
	if err != nil {
		t.Fatalf("first Await() error = %v", err)
	}
	v2, err := st.Await(context.Background(), nil)
	if err != nil {
		t.Fatalf("second Await() error = %v", err)
	}
	if v1 != v2 || v1 != 99 {
		t.Errorf("Await() = (%d, %d), want both 99", v1, v2)
	}
}
