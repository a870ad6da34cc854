//go:build linux && msgring

package worker

import (
	"fmt"
	"unsafe"

	"github.com/corofd/iouco/internal/rlog"
	"github.com/corofd/iouco/internal/sys"
	"github.com/corofd/iouco/internal/userdata"
)

// msgRingInbox is the alternative cross-worker co-spawn mode: delivery
// happens entirely in-kernel via IORING_OP_MSG_RING, with no userspace
// FIFO or mutex at all. Selected at compile time with the msgring build
// tag; setupInbox probes the kernel once at worker construction and
// refuses to build the worker if IORING_OP_MSG_RING isn't supported,
// since there is no userspace fallback path in this build mode.
type msgRingInbox struct{}

func (w *Worker) setupInbox() error {
	probe, err := w.Ring.Probe()
	if err != nil {
		return fmt.Errorf("worker: probing for msg_ring support: %w", err)
	}
	if !probe.SupportsOp(sys.IORING_OP_MSG_RING) {
		return fmt.Errorf("worker: kernel does not support IORING_OP_MSG_RING, required by the msgring build")
	}
	w.inbox = msgRingInbox{}
	return nil
}

func (msgRingInbox) deliver(target *Worker, h Handle) {
	// The target worker must count this as one extra in-flight reap: the
	// CQE that the kernel posts on target's ring did not come from
	// target's own get_free_sqe call, so target's own bookkeeping would
	// otherwise never see it accounted for.
	target.requestsToReap.Add(1)

	src := Current()
	if src == nil {
		rlog.Errorf("worker: msg_ring dispatch from non-worker goroutine")
		return
	}

	hp := new(Handle)
	*hp = h
	ud := userdata.PackHandle(unsafe.Pointer(hp), userdata.TagMsgRing)

	src.requestsToSubmit.Add(1)
	if err := src.Ring.PrepMsgRing(target.Ring.Fd(), ud, true, 0); err != nil {
		src.requestsToSubmit.Add(-1)
		target.requestsToReap.Add(-1)
		rlog.Errorf("worker: msg_ring dispatch failed", "from", src.id, "to", target.id, "err", err)
	}
}

func (msgRingInbox) onWake(w *Worker) {
	// No local-wake CQE exists in this mode: every delivered handle
	// arrives as its own ordinary TagMsgRing completion, handled directly
	// in handleCQE. onWake is therefore never invoked in msgring mode.
}

func (msgRingInbox) close() error { return nil }
