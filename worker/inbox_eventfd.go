//go:build linux && !msgring

package worker

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/corofd/iouco/internal/rlog"
	"github.com/corofd/iouco/internal/userdata"
)

// eventfdInbox is the default cross-worker co-spawn mode: a persistent
// READ SQE against an eventfd, re-armed on every
// delivery, with a mutex-protected FIFO carrying the actual handles.
// Grounded on momentics-hioload-ws's mutex-guarded queue shape; the
// eventfd itself comes from golang.org/x/sys/unix, which is not part of
// stdlib syscall.
type eventfdInbox struct {
	fd int

	mu    sync.Mutex
	fifo  []Handle
	local []Handle // scratch buffer reused by onWake, avoids a fresh slice per wake
}

func (w *Worker) setupInbox() error {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return err
	}
	box := &eventfdInbox{fd: fd}
	w.inbox = box
	return box.arm(w)
}

// arm (re-)registers the eventfd read. Each successful read consumes
// exactly one 8-byte counter value and must be followed by a fresh arm
// call before the next wakeup can be observed.
func (box *eventfdInbox) arm(w *Worker) error {
	buf := make([]byte, 8)
	w.requestsToReap.Add(1)
	w.requestsToSubmit.Add(1)
	if err := w.Ring.PrepRead(box.fd, buf, 0, userdata.SentinelEventfdWake); err != nil {
		w.requestsToReap.Add(-1)
		w.requestsToSubmit.Add(-1)
		return err
	}
	return nil
}

func (box *eventfdInbox) deliver(target *Worker, h Handle) {
	eb := target.inbox.(*eventfdInbox)
	eb.mu.Lock()
	eb.fifo = append(eb.fifo, h)
	eb.mu.Unlock()

	one := make([]byte, 8)
	one[0] = 1
	if _, err := unix.Write(eb.fd, one); err != nil {
		rlog.Errorf("worker: eventfd write failed", "worker", target.id, "err", err)
	}
}

func (box *eventfdInbox) onWake(w *Worker) {
	box.mu.Lock()
	box.local, box.fifo = box.fifo, box.local[:0]
	box.mu.Unlock()

	for _, h := range box.local {
		w.SpawnUnsafe(h)
	}

	if err := box.arm(w); err != nil {
		rlog.Fatalf("worker: failed to re-arm eventfd inbox", "worker", w.id, "err", err)
	}
}

func (box *eventfdInbox) close() error {
	return unix.Close(box.fd)
}
