package lazy

import (
	"github.com/corofd/iouco/internal/sys"
	"github.com/corofd/iouco/worker"
)

// Cancel requests cancellation of the in-flight operation identified by
// targetUserData (its Op's packed user_data). flags may include
// IORING_ASYNC_CANCEL_ALL to cancel every matching request instead of just
// the first.
func Cancel(w *worker.Worker, targetUserData uint64, flags uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_ASYNC_CANCEL)
		sqe.Fd = -1
		sqe.Addr = targetUserData
		sqe.OpFlags = flags
	}, opts...)
}

// CancelFd cancels every in-flight operation on fd.
func CancelFd(w *worker.Worker, fd int, flags uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_ASYNC_CANCEL)
		sqe.Fd = int32(fd)
		sqe.OpFlags = flags | sys.IORING_ASYNC_CANCEL_FD
	}, opts...)
}
