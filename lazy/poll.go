package lazy

import (
	"unsafe"

	"github.com/corofd/iouco/internal/sys"
	"github.com/corofd/iouco/worker"
)

// PollAdd submits a single-shot poll for pollMask (POLLIN, POLLOUT, ...) on
// fd; the resulting Op completes once the mask is satisfied.
func PollAdd(w *worker.Worker, fd int, pollMask uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_POLL_ADD)
		sqe.Fd = int32(fd)
		sqe.OpFlags = pollMask
	}, opts...)
}

// PollAddMultishot submits a poll that keeps generating a CQE every time
// pollMask is satisfied, until removed with PollRemove. Like
// AcceptMultishot, Op.Await only ever surfaces the first completion.
func PollAddMultishot(w *worker.Worker, fd int, pollMask uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_POLL_ADD)
		sqe.Fd = int32(fd)
		sqe.OpFlags = pollMask
		sqe.Len = uint32(sys.IORING_POLL_ADD_MULTI)
	}, opts...)
}

// PollRemove cancels the poll request identified by targetUserData (the
// user_data packed into the Op returned by PollAdd/PollAddMultishot).
func PollRemove(w *worker.Worker, targetUserData uint64, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_POLL_REMOVE)
		sqe.Fd = -1
		sqe.Addr = targetUserData
	}, opts...)
}

// PollUpdate rewrites the mask and/or user_data of an in-flight poll request
// without a remove/re-add round trip.
func PollUpdate(w *worker.Worker, targetUserData, newUserData uint64, newMask uint32, flags uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_POLL_REMOVE)
		sqe.Fd = -1
		sqe.Addr = targetUserData
		sqe.Addr3 = newUserData
		sqe.OpFlags = flags | sys.IORING_POLL_UPDATE_EVENTS | sys.IORING_POLL_UPDATE_USER_DATA
		sqe.Len = newMask
	}, opts...)
}

// EpollCtl submits an epoll_ctl(2) through the ring.
func EpollCtl(w *worker.Worker, epfd, fd, op int, event unsafe.Pointer, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_EPOLL_CTL)
		sqe.Fd = int32(epfd)
		sqe.Off = uint64(fd)
		sqe.Len = uint32(op)
		sqe.Addr = uint64(uintptr(event))
	}, opts...)
}
