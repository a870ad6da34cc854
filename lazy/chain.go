package lazy

import (
	"time"

	"github.com/corofd/iouco/internal/sys"
	"github.com/corofd/iouco/internal/userdata"
)

// Chain links a's SQE to b's via IOSQE_IO_LINK and rewrites a's tag to
// TagInfoPtrLinkSQE: a's completion writes its Result/Flags but does not
// resume anything (nothing ever signals a's Info, so an Await on a itself
// only returns once its ctx is done); b keeps TagInfoPtr and resumes
// normally once it completes, carrying the whole chain's outcome. Chain is
// associative: Chain(Chain(a, b), c) links three SQEs in submission order
// and only c's Await ever unblocks on its own — Chain returns c (by
// returning its second argument), so Await-ing the chain's result means
// awaiting whatever Chain last returned.
//
// Chain must run immediately after both a and b are constructed, with no
// other awaiter constructed against the same worker from another goroutine
// in between: linking only has effect between SQEs the kernel sees as
// consecutive in the submission queue, the same precondition
// ring.SetSQELink already carries for single-goroutine callers (see
// DESIGN.md).
func Chain(a, b *Op) *Op {
	if a.err != nil {
		return a
	}
	if b.err != nil {
		return b
	}
	a.sqe.Flags |= sys.IOSQE_IO_LINK
	a.sqe.UserData = userdata.Pack(a.info, userdata.TagInfoPtrLinkSQE)
	return b
}

// LinkResult returns the non-terminal link's own result, available only
// after the chain's terminal awaiter has been awaited (a non-terminal
// link's Info.Result is written by handleCQE but nothing ever signals its
// Done channel).
func (op *Op) LinkResult() (int32, uint32) {
	return op.info.Result, op.info.Flags
}

// WithTimeout appends a LINK_TIMEOUT SQE immediately after aw's SQE: if aw
// has not completed within d, the kernel cancels it and its Await returns
// -ECANCELED; otherwise the timer's own completion carries the nop
// sentinel user_data so the worker loop discards it silently. WithTimeout
// returns aw unchanged so it can still be awaited directly; it carries the
// same adjacency precondition as Chain.
func WithTimeout(aw *Op, d time.Duration) *Op {
	if aw.err != nil {
		return aw
	}
	aw.sqe.Flags |= sys.IOSQE_IO_LINK
	ts := durationTimespec(d)
	err := aw.w.PrepOp(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_LINK_TIMEOUT)
		sqe.Fd = -1
		sqe.Addr = timespecAddr(ts)
		sqe.Len = 1
		sqe.UserData = userdata.SentinelNop
	})
	if err != nil {
		aw.err = err
	}
	return aw
}
