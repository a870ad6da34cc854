package lazy

import (
	"syscall"
	"unsafe"

	"github.com/corofd/iouco/internal/sys"
	"github.com/corofd/iouco/worker"
)

// Read submits a read of len(buf) bytes from fd at offset. offset of ^uint64(0)
// (i.e. -1 as a signed value) uses and advances the file's current position,
// matching pread2's offset=-1 convention.
func Read(w *worker.Worker, fd int, buf []byte, offset uint64) *Op {
	if len(buf) == 0 {
		return noopOp()
	}
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_READ)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
		sqe.Len = uint32(len(buf))
		sqe.Off = offset
	})
}

// Write submits a write of buf to fd at offset.
func Write(w *worker.Worker, fd int, buf []byte, offset uint64, opts ...Option) *Op {
	if len(buf) == 0 {
		return noopOp()
	}
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_WRITE)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
		sqe.Len = uint32(len(buf))
		sqe.Off = offset
	}, opts...)
}

// ReadV submits a vectored read. iovecs must stay alive until Await returns.
func ReadV(w *worker.Worker, fd int, iovecs []syscall.Iovec, offset uint64, opts ...Option) *Op {
	if len(iovecs) == 0 {
		return noopOp()
	}
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_READV)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&iovecs[0])))
		sqe.Len = uint32(len(iovecs))
		sqe.Off = offset
	}, opts...)
}

// WriteV submits a vectored write. iovecs must stay alive until Await returns.
func WriteV(w *worker.Worker, fd int, iovecs []syscall.Iovec, offset uint64, opts ...Option) *Op {
	if len(iovecs) == 0 {
		return noopOp()
	}
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_WRITEV)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&iovecs[0])))
		sqe.Len = uint32(len(iovecs))
		sqe.Off = offset
	}, opts...)
}

// ReadFixed reads into a pre-registered buffer at bufIndex.
func ReadFixed(w *worker.Worker, fd int, buf []byte, offset uint64, bufIndex uint16, opts ...Option) *Op {
	if len(buf) == 0 {
		return noopOp()
	}
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_READ_FIXED)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
		sqe.Len = uint32(len(buf))
		sqe.Off = offset
		sqe.BufIndex = bufIndex
	}, opts...)
}

// WriteFixed writes from a pre-registered buffer at bufIndex.
func WriteFixed(w *worker.Worker, fd int, buf []byte, offset uint64, bufIndex uint16, opts ...Option) *Op {
	if len(buf) == 0 {
		return noopOp()
	}
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_WRITE_FIXED)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
		sqe.Len = uint32(len(buf))
		sqe.Off = offset
		sqe.BufIndex = bufIndex
	}, opts...)
}

// Fsync submits an fsync/fdatasync. flags is 0 or IORING_FSYNC_DATASYNC.
func Fsync(w *worker.Worker, fd int, flags uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_FSYNC)
		sqe.Fd = int32(fd)
		sqe.OpFlags = flags
	}, opts...)
}
