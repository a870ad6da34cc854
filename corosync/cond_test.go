package corosync

import (
	"context"
	"testing"
	"time"
)

func TestCondWaitPredUnblocksOnNotify(t *testing.T) {
	var mtx Mutex
	var cond Cond
	ready := false

	done := make(chan struct{})
	go func() {
		unlock, err := mtx.Lock(context.Background())
		if err != nil {
			t.Errorf("Lock() error = %v", err)
			return
		}
		if err := cond.WaitPred(context.Background(), &mtx, func() bool { return ready }); err != nil {
			t.Errorf("WaitPred() error = %v", err)
		}
		unlock()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)

	unlock, err := mtx.Lock(context.Background())
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	ready = true
	cond.NotifyOne(&mtx)
	unlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitPred() never returned after NotifyOne")
	}
}

func TestCondNotifyAllWakesEveryWaiter(t *testing.T) {
	var mtx Mutex
	var cond Cond
	ready := false
	const waiters = 4
	finished := make(chan struct{}, waiters)

	for i := 0; i < waiters; i++ {
		go func() {
			unlock, err := mtx.Lock(context.Background())
			if err != nil {
				t.Errorf("Lock() error = %v", err)
				return
			}
			if err := cond.WaitPred(context.Background(), &mtx, func() bool { return ready }); err != nil {
				t.Errorf("WaitPred() error = %v", err)
			}
			unlock()
			finished <- struct{}{}
		}()
	}
	time.Sleep(20 * time.Millisecond)

	unlock, err := mtx.Lock(context.Background())
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	ready = true
	cond.NotifyAll(&mtx)
	unlock()

	for i := 0; i < waiters; i++ {
		select {
		case <-finished:
		case <-time.After(time.Second):
			t.Fatalf("only %d/%d waiters finished", i, waiters)
		}
	}
}
