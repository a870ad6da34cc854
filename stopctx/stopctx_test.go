package stopctx

import (
	"testing"
	"time"
)

func TestTokenRequestedReflectsSource(t *testing.T) {
	s := NewSource()
	tok := s.Token()
	if tok.Requested() {
		t.Fatal("Requested() = true before RequestStop")
	}
	s.RequestStop()
	if !tok.Requested() {
		t.Fatal("Requested() = false after RequestStop")
	}
}

func TestTokenDoneClosesOnRequestStop(t *testing.T) {
	s := NewSource()
	tok := s.Token()

	select {
	case <-tok.Done():
		t.Fatal("Done() closed before RequestStop")
	default:
	}

	s.RequestStop()

	select {
	case <-tok.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() never closed after RequestStop")
	}
}

func TestRequestStopIsIdempotent(t *testing.T) {
	s := NewSource()
	calls := 0
	s.RegisterCallback(func() { calls++ })

	s.RequestStop()
	s.RequestStop()
	s.RequestStop()

	if calls != 1 {
		t.Errorf("callback fired %d times, want 1", calls)
	}
}

func TestCallbackFiresSynchronouslyInRegistrationOrder(t *testing.T) {
	s := NewSource()
	var order []int
	s.RegisterCallback(func() { order = append(order, 1) })
	s.RegisterCallback(func() { order = append(order, 2) })
	s.RegisterCallback(func() { order = append(order, 3) })

	s.RequestStop()

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %d, want %d", i, order[i], want[i])
		}
	}
}

func TestCallbackFiresImmediatelyIfAlreadyStopped(t *testing.T) {
	s := NewSource()
	s.RequestStop()

	fired := false
	s.RegisterCallback(func() { fired = true })
	if !fired {
		t.Error("callback registered after RequestStop did not fire immediately")
	}
}

func TestCallbackRemoveSuppressesFire(t *testing.T) {
	s := NewSource()
	fired := false
	cb := s.RegisterCallback(func() { fired = true })
	cb.Remove()
	s.RequestStop()
	if fired {
		t.Error("removed callback fired")
	}
}
