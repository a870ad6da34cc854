package lazy

import (
	"syscall"
	"unsafe"

	"github.com/corofd/iouco/internal/sys"
	"github.com/corofd/iouco/worker"
)

// Accept submits an accept4 on the listening socket fd. addr/addrLen may be
// nil when the peer address isn't needed.
func Accept(w *worker.Worker, fd int, addr unsafe.Pointer, addrLen *uint32, flags uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_ACCEPT)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(addr))
		sqe.Off = uint64(uintptr(unsafe.Pointer(addrLen)))
		sqe.OpFlags = flags
	}, opts...)
}

// AcceptDirect is Accept but installs the new connection into a fixed
// file-table slot instead of returning a plain fd.
func AcceptDirect(w *worker.Worker, fd int, addr unsafe.Pointer, addrLen *uint32, flags uint32, fileIndex uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_ACCEPT)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(addr))
		sqe.Off = uint64(uintptr(unsafe.Pointer(addrLen)))
		sqe.OpFlags = flags
		sqe.SetFileIndex(int32(fileIndex))
	}, opts...)
}

// AcceptMultishot submits a multishot accept: the kernel keeps producing one
// CQE per incoming connection until the request is cancelled. Op.Await only
// ever surfaces the first completion; callers that want the full stream
// should drive ring.PrepAcceptMultishot directly against the owning worker.
func AcceptMultishot(w *worker.Worker, fd int, addr unsafe.Pointer, addrLen *uint32, flags uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_ACCEPT)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(addr))
		sqe.Off = uint64(uintptr(unsafe.Pointer(addrLen)))
		sqe.OpFlags = flags
		sqe.Ioprio = uint16(sys.IORING_ACCEPT_MULTISHOT)
	}, opts...)
}

// AcceptMultishotDirect combines AcceptMultishot with fixed file-table
// installation; each accepted connection lands in a kernel-chosen slot.
func AcceptMultishotDirect(w *worker.Worker, fd int, addr unsafe.Pointer, addrLen *uint32, flags uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_ACCEPT)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(addr))
		sqe.Off = uint64(uintptr(unsafe.Pointer(addrLen)))
		sqe.OpFlags = flags
		sqe.Ioprio = uint16(sys.IORING_ACCEPT_MULTISHOT)
		fileIndexAlloc := sys.IORING_FILE_INDEX_ALLOC
		sqe.SetFileIndex(int32(fileIndexAlloc))
	}, opts...)
}

// Connect submits a connect on fd.
func Connect(w *worker.Worker, fd int, addr unsafe.Pointer, addrLen uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_CONNECT)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(addr))
		sqe.Off = uint64(addrLen)
	}, opts...)
}

// Send submits a send on fd.
func Send(w *worker.Worker, fd int, buf []byte, flags int, opts ...Option) *Op {
	if len(buf) == 0 {
		return noopOp()
	}
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SEND)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
		sqe.Len = uint32(len(buf))
		sqe.OpFlags = uint32(flags)
	}, opts...)
}

// SendZC submits a zero-copy send. The kernel emits two completions for a
// zero-copy send (the usual one plus a notification once buf is safe to
// reuse); Await only observes the first. Callers that need the notification
// should use the raw ring.PrepSendZC path directly.
func SendZC(w *worker.Worker, fd int, buf []byte, flags int, zcFlags uint16, opts ...Option) *Op {
	if len(buf) == 0 {
		return noopOp()
	}
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SEND_ZC)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
		sqe.Len = uint32(len(buf))
		sqe.OpFlags = uint32(flags)
		sqe.Ioprio = zcFlags
	}, opts...)
}

// Recv submits a recv on fd.
func Recv(w *worker.Worker, fd int, buf []byte, flags int, opts ...Option) *Op {
	if len(buf) == 0 {
		return noopOp()
	}
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_RECV)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
		sqe.Len = uint32(len(buf))
		sqe.OpFlags = uint32(flags)
	}, opts...)
}

// Sendmsg submits a sendmsg. msg must stay alive until Await returns.
func Sendmsg(w *worker.Worker, fd int, msg *syscall.Msghdr, flags int, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SENDMSG)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(msg)))
		sqe.Len = 1
		sqe.OpFlags = uint32(flags)
	}, opts...)
}

// SendmsgZC is the zero-copy variant of Sendmsg.
func SendmsgZC(w *worker.Worker, fd int, msg *syscall.Msghdr, flags int, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SENDMSG_ZC)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(msg)))
		sqe.Len = 1
		sqe.OpFlags = uint32(flags)
	}, opts...)
}

// Recvmsg submits a recvmsg. msg must stay alive until Await returns.
func Recvmsg(w *worker.Worker, fd int, msg *syscall.Msghdr, flags int, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_RECVMSG)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(msg)))
		sqe.Len = 1
		sqe.OpFlags = uint32(flags)
	}, opts...)
}

// Shutdown submits a shutdown(2) on fd. how is SHUT_RD/SHUT_WR/SHUT_RDWR.
func Shutdown(w *worker.Worker, fd int, how int, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SHUTDOWN)
		sqe.Fd = int32(fd)
		sqe.Len = uint32(how)
	}, opts...)
}

// Socket submits an asynchronous socket(2). The new fd is the CQE result.
func Socket(w *worker.Worker, domain, typ, protocol int, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SOCKET)
		sqe.Fd = int32(domain)
		sqe.Off = uint64(typ)
		sqe.Len = uint32(protocol)
	}, opts...)
}

// SocketDirect installs the new socket into a fixed file-table slot instead
// of returning a plain fd.
func SocketDirect(w *worker.Worker, domain, typ, protocol int, fileIndex uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SOCKET)
		sqe.Fd = int32(domain)
		sqe.Off = uint64(typ)
		sqe.Len = uint32(protocol)
		sqe.SetFileIndex(int32(fileIndex))
	}, opts...)
}

// SocketDirectAlloc is SocketDirect with a kernel-chosen fixed-table slot.
func SocketDirectAlloc(w *worker.Worker, domain, typ, protocol int, opts ...Option) *Op {
	return SocketDirect(w, domain, typ, protocol, sys.IORING_FILE_INDEX_ALLOC, opts...)
}

// Close submits a close(2) on fd.
func Close(w *worker.Worker, fd int, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_CLOSE)
		sqe.Fd = int32(fd)
	}, opts...)
}

// CloseDirect closes a fixed file-table slot instead of a plain fd.
func CloseDirect(w *worker.Worker, fileIndex uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_CLOSE)
		sqe.Fd = -1
		sqe.SetFileIndex(int32(fileIndex))
	}, opts...)
}
