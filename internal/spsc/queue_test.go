package spsc

import (
	"sync"
	"testing"
)

func TestQueuePushPop(t *testing.T) {
	q := NewQueue[int](4)

	if _, ok := q.Pop(); ok {
		t.Fatal("Pop on empty queue returned ok=true")
	}

	for i := 0; i < 4; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) = false, want true", i)
		}
	}
	if q.Push(4) {
		t.Fatal("Push on full queue returned true, want false")
	}

	for i := 0; i < 4; i++ {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() ok = false at i=%d", i)
		}
		if got != i {
			t.Errorf("Pop() = %d, want %d", got, i)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop on drained queue returned ok=true")
	}
}

func TestQueueRoundsCapacityToPowerOfTwo(t *testing.T) {
	q := NewQueue[int](3)
	if len(q.cells) != 4 {
		t.Errorf("cells = %d, want 4", len(q.cells))
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 1000
	q := NewQueue[int](producers * perProducer)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for !q.Push(base + i) {
				}
			}
		}(p * perProducer)
	}
	wg.Wait()

	count := 0
	for {
		if _, ok := q.Pop(); !ok {
			break
		}
		count++
	}
	if count != producers*perProducer {
		t.Errorf("drained %d items, want %d", count, producers*perProducer)
	}
}

func TestQueueLen(t *testing.T) {
	q := NewQueue[int](8)
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
	q.Push(1)
	q.Push(2)
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
	q.Pop()
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
}
