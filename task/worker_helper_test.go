//go:build linux

package task

import (
	"syscall"
	"testing"

	"github.com/corofd/iouco/worker"
)

func newTestWorkerForTask(t *testing.T) *worker.Worker {
	t.Helper()
	w, err := worker.New(0, 64, nil)
	if err != nil {
		if err == syscall.ENOSYS || err == syscall.EPERM {
			t.Skipf("io_uring not available on this kernel: %v", err)
		}
		t.Fatalf("worker.New() error = %v", err)
	}
	go w.Run()
	t.Cleanup(func() {
		w.Stop()
		w.Close()
	})
	return w
}
