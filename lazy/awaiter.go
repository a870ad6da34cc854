// Package lazy provides one constructor per io_uring opcode, each
// returning an Op that has already been submitted against a worker's ring
// and can be awaited later. This is a lazy I/O awaiter expressed in Go: a
// coroutine's "store the resuming handle" suspension step becomes a
// blocking channel receive inside Await, since a parked goroutine already
// is the suspended frame a coroutine runtime would otherwise keep alive by
// hand.
package lazy

import (
	"context"

	"github.com/corofd/iouco/internal/sys"
	"github.com/corofd/iouco/internal/userdata"
	"github.com/corofd/iouco/ring"
	"github.com/corofd/iouco/worker"
)

// Op is the awaiter value every lazy constructor returns.
type Op struct {
	info *userdata.Info
	err  error

	// w and sqe are set only for Ops backed by a real submitted SQE (not
	// the empty Op returned for a zero-length buffer). Chain/WithTimeout
	// use them to mutate flags/user_data on the still-unpublished SQE and
	// to append a trailing LINK_TIMEOUT SQE, exactly like ring.SetSQEFlags
	// mutates "the most recently prepared SQE" in its own single-goroutine
	// helpers. The same precondition applies here: Chain and
	// WithTimeout must run before the worker's loop publishes the SQE and
	// before any other goroutine prepares an SQE against the same worker,
	// or the kernel will link the wrong neighbor.
	w   *worker.Worker
	sqe *sys.SQE
}

// Option modifies an Op's SQE before it is published. Exposed as
// constructor options rather than post-construction calls (a set-async /
// detach pair called after the fact) because once PrepOp returns, the
// worker's own loop may flush the SQE to the kernel at any moment; there is
// no safe window left in which a second goroutine could still mutate it.
type Option func(sqe *sys.SQE)

// Async marks the operation with the IOSQE_ASYNC hint, forcing it onto
// the kernel's async worker pool instead of trying inline first.
func Async() Option {
	return func(sqe *sys.SQE) { sqe.Flags |= sys.IOSQE_ASYNC }
}

// Detach marks the operation so a successful completion produces no CQE:
// the caller does not intend to Await it. Callers must not call Await on
// an Op constructed with Detach.
//
// IOSQE_CQE_SKIP_SUCCESS itself requires kernel 5.17 (IORING_FEAT_CQE_SKIP);
// submit checks this per-ring and falls back to rewriting the SQE's
// user_data to the reserved nop sentinel on older kernels, so the flag set
// here is only ever applied when the kernel actually honors it.
func Detach() Option {
	return func(sqe *sys.SQE) { sqe.Flags |= sys.IOSQE_CQE_SKIP_SUCCESS }
}

// Await blocks until the operation completes or ctx is done, returning the
// kernel's signed result and CQE flags, and a non-nil error when the result
// is negative (decoded through ring.ResultError). ctx.Done() is this
// port's equivalent of polling a stop token at a suspension point: if ctx
// is cancelled first, Await returns ctx.Err() and the operation's eventual
// completion (it is not itself cancelled in the kernel) is silently
// discarded by Info.Complete's non-blocking send.
func (op *Op) Await(ctx context.Context) (int32, uint32, error) {
	if op.err != nil {
		return 0, 0, op.err
	}
	select {
	case <-op.info.Done:
		return op.info.Result, op.info.Flags, ring.ResultError(op.info.Result)
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	}
}

// Result is Await(context.Background()) without CQE flags, for the common
// case callers only need the return code or byte count and never intend to
// cancel the wait itself.
func (op *Op) Result() (int32, error) {
	res, _, err := op.Await(context.Background())
	return res, err
}

// noopOp returns an already-completed Op with result 0, for opcode
// constructors whose input is trivially empty (e.g. a zero-length buffer):
// the ring's own Prep* helpers silently skip these (see ring/sqe.go), and
// lazy mirrors that by never touching the ring rather than by returning a
// nil Info an Await would panic on.
func noopOp() *Op {
	info := userdata.NewInfo()
	info.Complete(0, 0)
	return &Op{info: info}
}

func apply(sqe *sys.SQE, opts []Option) {
	for _, opt := range opts {
		opt(sqe)
	}
}

// submit is the single entry point every opcode constructor in this
// package funnels through: fill populates the operation-specific fields,
// apply layers on any Option flags, and the SQE's user_data is packed last
// so every opcode file only has to know its own fields.
func submit(w *worker.Worker, fill func(sqe *sys.SQE), opts ...Option) *Op {
	info := userdata.NewInfo()
	detached := false
	for _, opt := range opts {
		var probe sys.SQE
		opt(&probe)
		if probe.Flags&sys.IOSQE_CQE_SKIP_SUCCESS != 0 {
			detached = true
		}
	}

	// IOSQE_CQE_SKIP_SUCCESS needs IORING_FEAT_CQE_SKIP (kernel 5.17+). On
	// an older kernel the flag would be silently ignored or rejected, so
	// instead of relying on it this rewrites the SQE's user_data to the
	// reserved nop sentinel: the completion still arrives but carries no
	// Info, and handleCQE drops it without scheduling anything.
	skipHonored := detached && w.Ring.HasCQESkip()
	fallbackDetach := detached && !skipHonored

	op := &Op{info: info, w: w}
	err := w.PrepOp(func(sqe *sys.SQE) {
		fill(sqe)
		apply(sqe, opts)
		if fallbackDetach {
			sqe.Flags &^= sys.IOSQE_CQE_SKIP_SUCCESS
			sqe.UserData = userdata.SentinelNop
		} else {
			sqe.UserData = userdata.Pack(info, userdata.TagInfoPtr)
		}
		op.sqe = sqe
	})
	if err != nil {
		return &Op{err: err}
	}
	if skipHonored {
		// A successful completion will never arrive; compensate the
		// counter PrepOp just bumped so the worker's "anything
		// outstanding" check doesn't wait on a CQE that isn't coming.
		// Under fallbackDetach a real (sentinel) completion does arrive
		// and handleCQE's own decrement already balances the books, so
		// compensating here too would double-count.
		w.CompensateDetachedReap()
	}
	return op
}
