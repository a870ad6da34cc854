//go:build linux

package ring

import (
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/corofd/iouco/internal/sys"
)

// getSQE returns the next available SQE, or nil if the queue is full.
// The returned SQE is zeroed and ready for use.
// NOT thread-safe; caller must hold sqLock.
func (r *Ring) getSQE() *sys.SQE {
	head := atomic.LoadUint32(r.sq.head)
	tail := atomic.LoadUint32(r.sq.tail) + r.sqPending

	// Check if queue is full
	if tail-head >= r.sq.entries {
		return nil
	}

	idx := tail & r.sq.mask
	sqe := &r.sq.sqes[idx]
	sqe.Reset()

	// Update the SQ array to point to this SQE
	r.sq.array[idx] = uint32(idx)
	r.sqPending++

	return sqe
}

// GetSQE returns the next available SQE, or nil if the queue is full.
// Thread-safe.
func (r *Ring) GetSQE() *sys.SQE {
	r.sqLock.Lock()
	sqe := r.getSQE()
	r.sqLock.Unlock()
	return sqe
}

// PrepNop prepares a NOP operation, for testing and waking SQPOLL.
func (r *Ring) PrepNop(userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_NOP)
		sqe.UserData = userData
	})
}

// PrepRead prepares a read of up to len(buf) bytes from fd at offset into buf.
func (r *Ring) PrepRead(fd int, buf []byte, offset uint64, userData uint64) error {
	if len(buf) == 0 {
		return nil
	}
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_READ)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
		sqe.Len = uint32(len(buf))
		sqe.Off = offset
		sqe.UserData = userData
	})
}

// PrepWrite prepares a write of len(buf) bytes from buf to fd at offset.
func (r *Ring) PrepWrite(fd int, buf []byte, offset uint64, userData uint64) error {
	if len(buf) == 0 {
		return nil
	}
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_WRITE)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
		sqe.Len = uint32(len(buf))
		sqe.Off = offset
		sqe.UserData = userData
	})
}

// PrepReadFixed prepares a read using a pre-registered buffer. bufIndex is
// the index into the registered buffer array.
func (r *Ring) PrepReadFixed(fd int, buf []byte, offset uint64, bufIndex uint16, userData uint64) error {
	if len(buf) == 0 {
		return nil
	}
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_READ_FIXED)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
		sqe.Len = uint32(len(buf))
		sqe.Off = offset
		sqe.BufIndex = bufIndex
		sqe.UserData = userData
	})
}

// PrepWriteFixed prepares a write using a pre-registered buffer. bufIndex is
// the index into the registered buffer array.
func (r *Ring) PrepWriteFixed(fd int, buf []byte, offset uint64, bufIndex uint16, userData uint64) error {
	if len(buf) == 0 {
		return nil
	}
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_WRITE_FIXED)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
		sqe.Len = uint32(len(buf))
		sqe.Off = offset
		sqe.BufIndex = bufIndex
		sqe.UserData = userData
	})
}

// PrepReadv prepares a vectored read. iovecs must remain valid until the
// operation completes.
func (r *Ring) PrepReadv(fd int, iovecs []syscall.Iovec, offset uint64, userData uint64) error {
	if len(iovecs) == 0 {
		return nil
	}
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_READV)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&iovecs[0])))
		sqe.Len = uint32(len(iovecs))
		sqe.Off = offset
		sqe.UserData = userData
	})
}

// PrepWritev prepares a vectored write. iovecs must remain valid until the
// operation completes.
func (r *Ring) PrepWritev(fd int, iovecs []syscall.Iovec, offset uint64, userData uint64) error {
	if len(iovecs) == 0 {
		return nil
	}
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_WRITEV)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&iovecs[0])))
		sqe.Len = uint32(len(iovecs))
		sqe.Off = offset
		sqe.UserData = userData
	})
}

// PrepFsync prepares an fsync. flags can be 0 or IORING_FSYNC_DATASYNC.
func (r *Ring) PrepFsync(fd int, flags uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_FSYNC)
		sqe.Fd = int32(fd)
		sqe.OpFlags = flags
		sqe.UserData = userData
	})
}

// PrepTimeout prepares a timeout: ts is the duration, count is the number of
// completions to wait for (0 = just timeout), and flags can include
// IORING_TIMEOUT_ABS, IORING_TIMEOUT_BOOTTIME, etc.
func (r *Ring) PrepTimeout(ts *sys.Timespec, count uint64, flags uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_TIMEOUT)
		sqe.Fd = -1
		sqe.Addr = uint64(uintptr(unsafe.Pointer(ts)))
		sqe.Len = 1
		sqe.Off = count
		sqe.OpFlags = flags
		sqe.UserData = userData
	})
}

// PrepTimeoutRemove removes the in-flight timeout posted under
// targetUserData.
func (r *Ring) PrepTimeoutRemove(targetUserData uint64, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_TIMEOUT_REMOVE)
		sqe.Fd = -1
		sqe.Addr = targetUserData
		sqe.UserData = userData
	})
}

// PrepLinkTimeout prepares a linked timeout; must follow a Prep call plus
// SetSQELink to time out the linked operation.
func (r *Ring) PrepLinkTimeout(ts *sys.Timespec, flags uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_LINK_TIMEOUT)
		sqe.Fd = -1
		sqe.Addr = uint64(uintptr(unsafe.Pointer(ts)))
		sqe.Len = 1
		sqe.OpFlags = flags
		sqe.UserData = userData
	})
}

// PrepCancel cancels the in-flight operation posted under targetUserData.
// flags can include IORING_ASYNC_CANCEL_*.
func (r *Ring) PrepCancel(targetUserData uint64, flags uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_ASYNC_CANCEL)
		sqe.Fd = -1
		sqe.Addr = targetUserData
		sqe.OpFlags = flags
		sqe.UserData = userData
	})
}

// PrepAccept prepares an accept. addr and addrLen may be nil if the peer
// address isn't needed. flags are accept4 flags (e.g. syscall.SOCK_NONBLOCK).
func (r *Ring) PrepAccept(fd int, addr unsafe.Pointer, addrLen *uint32, flags uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_ACCEPT)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(addr))
		sqe.Off = uint64(uintptr(unsafe.Pointer(addrLen)))
		sqe.OpFlags = flags
		sqe.UserData = userData
	})
}

// PrepAcceptMultishot prepares a multishot accept: each accepted connection
// generates a CQE with IORING_CQE_F_MORE set.
func (r *Ring) PrepAcceptMultishot(fd int, addr unsafe.Pointer, addrLen *uint32, flags uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_ACCEPT)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(addr))
		sqe.Off = uint64(uintptr(unsafe.Pointer(addrLen)))
		sqe.OpFlags = flags
		sqe.Ioprio = uint16(sys.IORING_ACCEPT_MULTISHOT)
		sqe.UserData = userData
	})
}

// PrepConnect prepares a connect.
func (r *Ring) PrepConnect(fd int, addr unsafe.Pointer, addrLen uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_CONNECT)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(addr))
		sqe.Off = uint64(addrLen)
		sqe.UserData = userData
	})
}

// PrepSend prepares a send.
func (r *Ring) PrepSend(fd int, buf []byte, flags int, userData uint64) error {
	if len(buf) == 0 {
		return nil
	}
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SEND)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
		sqe.Len = uint32(len(buf))
		sqe.OpFlags = uint32(flags)
		sqe.UserData = userData
	})
}

// PrepRecv prepares a recv.
func (r *Ring) PrepRecv(fd int, buf []byte, flags int, userData uint64) error {
	if len(buf) == 0 {
		return nil
	}
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_RECV)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
		sqe.Len = uint32(len(buf))
		sqe.OpFlags = uint32(flags)
		sqe.UserData = userData
	})
}

// PrepRecvMultishot prepares a multishot recv against bufGroup; requires
// buffer-select to have been set up for that group.
func (r *Ring) PrepRecvMultishot(fd int, bufGroup uint16, flags int, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_RECV)
		sqe.Fd = int32(fd)
		sqe.Flags = sys.IOSQE_BUFFER_SELECT
		sqe.Ioprio = sys.IORING_RECV_MULTISHOT
		sqe.SetBufGroup(bufGroup)
		sqe.OpFlags = uint32(flags)
		sqe.UserData = userData
	})
}

// PrepClose prepares a close.
func (r *Ring) PrepClose(fd int, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_CLOSE)
		sqe.Fd = int32(fd)
		sqe.UserData = userData
	})
}

// PrepShutdown prepares a shutdown. how is SHUT_RD, SHUT_WR, or SHUT_RDWR.
func (r *Ring) PrepShutdown(fd int, how int, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SHUTDOWN)
		sqe.Fd = int32(fd)
		sqe.Len = uint32(how)
		sqe.UserData = userData
	})
}

// PrepSendmsg prepares a sendmsg. msg must remain valid until completion.
func (r *Ring) PrepSendmsg(fd int, msg *syscall.Msghdr, flags int, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SENDMSG)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(msg)))
		sqe.Len = 1
		sqe.OpFlags = uint32(flags)
		sqe.UserData = userData
	})
}

// PrepRecvmsg prepares a recvmsg. msg must remain valid until completion.
func (r *Ring) PrepRecvmsg(fd int, msg *syscall.Msghdr, flags int, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_RECVMSG)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(msg)))
		sqe.Len = 1
		sqe.OpFlags = uint32(flags)
		sqe.UserData = userData
	})
}

// PrepSocket prepares an async socket creation (5.19+); the new fd is
// delivered as the CQE result.
func (r *Ring) PrepSocket(domain, typ, protocol int, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SOCKET)
		sqe.Fd = int32(domain)
		sqe.Off = uint64(typ)
		sqe.Len = uint32(protocol)
		sqe.UserData = userData
	})
}

// PrepPollAdd prepares a poll add. pollMask is POLLIN, POLLOUT, etc.
func (r *Ring) PrepPollAdd(fd int, pollMask uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_POLL_ADD)
		sqe.Fd = int32(fd)
		sqe.OpFlags = pollMask
		sqe.UserData = userData
	})
}

// PrepPollAddMultishot prepares a multishot poll: it keeps generating CQEs
// until explicitly removed.
func (r *Ring) PrepPollAddMultishot(fd int, pollMask uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_POLL_ADD)
		sqe.Fd = int32(fd)
		sqe.OpFlags = pollMask
		sqe.Len = uint32(sys.IORING_POLL_ADD_MULTI)
		sqe.UserData = userData
	})
}

// PrepPollRemove removes the in-flight poll posted under targetUserData.
func (r *Ring) PrepPollRemove(targetUserData uint64, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_POLL_REMOVE)
		sqe.Fd = -1
		sqe.Addr = targetUserData
		sqe.UserData = userData
	})
}

// PrepOpenat prepares an openat. path must be a null-terminated string that
// remains valid until completion.
func (r *Ring) PrepOpenat(dirfd int, path *byte, flags int, mode uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_OPENAT)
		sqe.Fd = int32(dirfd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(path)))
		sqe.Len = uint32(mode)
		sqe.OpFlags = uint32(flags)
		sqe.UserData = userData
	})
}

// PrepStatx prepares a statx. path and statxbuf must remain valid until
// completion.
func (r *Ring) PrepStatx(dirfd int, path *byte, flags, mask int, statxbuf unsafe.Pointer, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_STATX)
		sqe.Fd = int32(dirfd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(path)))
		sqe.Len = uint32(mask)
		sqe.OpFlags = uint32(flags)
		sqe.Off = uint64(uintptr(statxbuf))
		sqe.UserData = userData
	})
}

// PrepSplice prepares a splice between two file descriptors.
func (r *Ring) PrepSplice(fdIn int, offIn int64, fdOut int, offOut int64, nbytes uint32, flags uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SPLICE)
		sqe.Fd = int32(fdOut)
		sqe.SpliceFdIn = int32(fdIn)
		sqe.Len = nbytes
		sqe.Off = uint64(offOut)
		sqe.SetSpliceOffIn(uint64(offIn))
		sqe.OpFlags = flags
		sqe.UserData = userData
	})
}

// SetSQEFlags sets flags on the most recently prepared SQE. Must be called
// immediately after a Prep call; not safe to interleave with other Prep
// calls from a different goroutine.
func (r *Ring) SetSQEFlags(flags uint8) {
	r.sqLock.Lock()
	if r.sqPending > 0 {
		tail := atomic.LoadUint32(r.sq.tail) + r.sqPending - 1
		idx := tail & r.sq.mask
		r.sq.sqes[idx].Flags |= flags
	}
	r.sqLock.Unlock()
}

// SetSQELink links the most recently prepared SQE to the next one.
func (r *Ring) SetSQELink() {
	r.SetSQEFlags(sys.IOSQE_IO_LINK)
}

// SetSQEAsync forces async execution for the most recently prepared SQE.
func (r *Ring) SetSQEAsync() {
	r.SetSQEFlags(sys.IOSQE_ASYNC)
}
