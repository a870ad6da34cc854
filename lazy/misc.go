package lazy

import (
	"unsafe"

	"github.com/corofd/iouco/internal/sys"
	"github.com/corofd/iouco/worker"
)

// Nop submits a no-op, useful for testing the loop or waking a worker
// blocked in submit_and_wait.
func Nop(w *worker.Worker, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_NOP)
	}, opts...)
}

// MakeSocket is Socket under its POSIX-adjacent name.
func MakeSocket(w *worker.Worker, domain, typ, protocol int, opts ...Option) *Op {
	return Socket(w, domain, typ, protocol, opts...)
}

// MakeSocketDirect is SocketDirect under its POSIX-adjacent name.
func MakeSocketDirect(w *worker.Worker, domain, typ, protocol int, fileIndex uint32, opts ...Option) *Op {
	return SocketDirect(w, domain, typ, protocol, fileIndex, opts...)
}

// MakeSocketDirectAlloc is SocketDirectAlloc under its POSIX-adjacent
// name.
func MakeSocketDirectAlloc(w *worker.Worker, domain, typ, protocol int, opts ...Option) *Op {
	return SocketDirectAlloc(w, domain, typ, protocol, opts...)
}

// ProvideBuffers registers numBufs buffers of bufLen bytes each, backed by
// the memory at addr, into buffer group groupID starting at bufIDStart, for
// consumption by IOSQE_BUFFER_SELECT / multishot recv.
func ProvideBuffers(w *worker.Worker, addr unsafe.Pointer, bufLen, numBufs int, groupID, bufIDStart uint16, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_PROVIDE_BUFFERS)
		sqe.Fd = int32(numBufs)
		sqe.Addr = uint64(uintptr(addr))
		sqe.Len = uint32(bufLen)
		sqe.Off = uint64(bufIDStart)
		sqe.SetBufGroup(groupID)
	}, opts...)
}

// RemoveBuffers releases numBufs buffers from groupID.
func RemoveBuffers(w *worker.Worker, numBufs int, groupID uint16, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_REMOVE_BUFFERS)
		sqe.Fd = int32(numBufs)
		sqe.SetBufGroup(groupID)
	}, opts...)
}

// FilesUpdate updates a range of the ring's registered-files table.
func FilesUpdate(w *worker.Worker, fds []int32, offset int, opts ...Option) *Op {
	if len(fds) == 0 {
		return noopOp()
	}
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_FILES_UPDATE)
		sqe.Fd = -1
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&fds[0])))
		sqe.Len = uint32(len(fds))
		sqe.Off = uint64(offset)
	}, opts...)
}

// MsgRing posts a plain data value onto target's completion queue without
// performing I/O. worker/inbox_msgring.go's cross-worker co-spawn path does
// not go through this function; it prepares its MSG_RING SQE with
// Ring.PrepMsgRing directly.
func MsgRing(w *worker.Worker, target *worker.Worker, data uint64, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_MSG_RING)
		sqe.Fd = int32(target.Ring.Fd())
		sqe.Len = uint32(data)
		sqe.Off = data
		sqe.OpFlags = sys.IORING_MSG_DATA
	}, opts...)
}

// MsgRingCQEFlags is MsgRing but also sets the delivered CQE's flags field
// on the target ring.
func MsgRingCQEFlags(w *worker.Worker, target *worker.Worker, data uint64, cqeFlags uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_MSG_RING)
		sqe.Fd = int32(target.Ring.Fd())
		sqe.Len = uint32(data)
		sqe.Off = data
		sqe.OpFlags = sys.IORING_MSG_DATA | sys.IORING_MSG_RING_FLAGS_PASS
		sqe.Addr3 = uint64(cqeFlags)
	}, opts...)
}

// MsgRingFd passes an open file descriptor to another ring's registered
// file table.
func MsgRingFd(w *worker.Worker, target *worker.Worker, srcFd int, dstFileIndex uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_MSG_RING)
		sqe.Fd = int32(target.Ring.Fd())
		sqe.Addr = uint64(srcFd)
		sqe.SetFileIndex(int32(dstFileIndex))
		sqe.OpFlags = sys.IORING_MSG_SEND_FD
	}, opts...)
}
