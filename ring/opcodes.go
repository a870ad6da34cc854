//go:build linux

package ring

import (
	"syscall"
	"unsafe"

	"github.com/corofd/iouco/internal/sys"
)

// prep allocates a free SQE under sqLock and hands it to fill. This is the
// table-driven counterpart to the hand-written Prep* methods below: each
// opcode family gets one row here instead of a fresh copy of the
// lock/getSQE/unlock boilerplate.
func (r *Ring) prep(fill func(sqe *sys.SQE)) error {
	r.sqLock.Lock()
	sqe := r.getSQE()
	if sqe == nil {
		r.sqLock.Unlock()
		return ErrSQFull
	}
	fill(sqe)
	r.sqLock.Unlock()
	return nil
}

// PrepOp is the generic low-level entry point the lazy package's awaiters
// build on: it hands the caller a freshly reserved, exclusively owned SQE
// and lets it set every field directly, including Flags (IOSQE_IO_LINK,
// IOSQE_ASYNC, IOSQE_CQE_SKIP_SUCCESS). This mirrors cloudwego-gopkg's
// userData.SetWriteOp/SetReadOp, which likewise build an SQE by writing
// its fields directly rather than going through a fixed-signature Prep*
// wrapper - necessary here because the SetSQEFlags/SetSQELink helpers below
// key off "the most recently prepared SQE", which is only safe
// when a single goroutine prepares SQEs one at a time. lazy awaiters run
// on arbitrary goroutines, so they use PrepOp and set flags on their own
// pointer instead.
func (r *Ring) PrepOp(fn func(sqe *sys.SQE)) error {
	return r.prep(fn)
}

// PrepFallocate prepares an fallocate operation.
func (r *Ring) PrepFallocate(fd int, mode uint32, offset, length int64, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_FALLOCATE)
		sqe.Fd = int32(fd)
		sqe.Off = uint64(offset)
		sqe.Addr = uint64(length)
		sqe.Len = mode
		sqe.UserData = userData
	})
}

// PrepFadvise prepares an fadvise operation.
func (r *Ring) PrepFadvise(fd int, offset int64, length uint32, advice uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_FADVISE)
		sqe.Fd = int32(fd)
		sqe.Off = uint64(offset)
		sqe.Len = length
		sqe.OpFlags = advice
		sqe.UserData = userData
	})
}

// PrepMadvise prepares a madvise operation.
func (r *Ring) PrepMadvise(addr unsafe.Pointer, length uint32, advice uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_MADVISE)
		sqe.Fd = -1
		sqe.Addr = uint64(uintptr(addr))
		sqe.Len = length
		sqe.OpFlags = advice
		sqe.UserData = userData
	})
}

// PrepSyncFileRange prepares a sync_file_range operation.
func (r *Ring) PrepSyncFileRange(fd int, offset int64, length uint32, flags uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SYNC_FILE_RANGE)
		sqe.Fd = int32(fd)
		sqe.Off = uint64(offset)
		sqe.Len = length
		sqe.OpFlags = flags
		sqe.UserData = userData
	})
}

// PrepTee prepares a tee operation between two pipe ends.
func (r *Ring) PrepTee(fdIn, fdOut int, nbytes uint32, flags uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_TEE)
		sqe.Fd = int32(fdOut)
		sqe.SpliceFdIn = int32(fdIn)
		sqe.Len = nbytes
		sqe.OpFlags = flags
		sqe.UserData = userData
	})
}

// PrepProvideBuffers registers a run of buffers into a buffer group for
// IOSQE_BUFFER_SELECT consumers (e.g. multishot recv).
func (r *Ring) PrepProvideBuffers(addr unsafe.Pointer, bufLen int, numBufs int, groupID uint16, bufIDStart uint16, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_PROVIDE_BUFFERS)
		sqe.Fd = int32(numBufs)
		sqe.Addr = uint64(uintptr(addr))
		sqe.Len = uint32(bufLen)
		sqe.Off = uint64(bufIDStart)
		sqe.SetBufGroup(groupID)
		sqe.UserData = userData
	})
}

// PrepRemoveBuffers releases numBufs buffers from groupID.
func (r *Ring) PrepRemoveBuffers(numBufs int, groupID uint16, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_REMOVE_BUFFERS)
		sqe.Fd = int32(numBufs)
		sqe.SetBufGroup(groupID)
		sqe.UserData = userData
	})
}

// PrepEpollCtl prepares an epoll_ctl operation.
func (r *Ring) PrepEpollCtl(epfd, fd, op int, event unsafe.Pointer, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_EPOLL_CTL)
		sqe.Fd = int32(epfd)
		sqe.Off = uint64(fd)
		sqe.Len = uint32(op)
		sqe.Addr = uint64(uintptr(event))
		sqe.UserData = userData
	})
}

// PrepFilesUpdate updates a range of the registered-files table.
func (r *Ring) PrepFilesUpdate(fds []int32, offset int, userData uint64) error {
	if len(fds) == 0 {
		return nil
	}
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_FILES_UPDATE)
		sqe.Fd = -1
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&fds[0])))
		sqe.Len = uint32(len(fds))
		sqe.Off = uint64(offset)
		sqe.UserData = userData
	})
}

// PrepRenameat prepares a renameat2-style rename.
func (r *Ring) PrepRenameat(oldDirfd int, oldPath *byte, newDirfd int, newPath *byte, flags uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_RENAMEAT)
		sqe.Fd = int32(oldDirfd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(oldPath)))
		sqe.Len = uint32(newDirfd)
		sqe.Off = uint64(uintptr(unsafe.Pointer(newPath)))
		sqe.OpFlags = flags
		sqe.UserData = userData
	})
}

// PrepUnlinkat prepares an unlinkat operation.
func (r *Ring) PrepUnlinkat(dirfd int, path *byte, flags uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_UNLINKAT)
		sqe.Fd = int32(dirfd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(path)))
		sqe.OpFlags = flags
		sqe.UserData = userData
	})
}

// PrepMkdirat prepares a mkdirat operation.
func (r *Ring) PrepMkdirat(dirfd int, path *byte, mode uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_MKDIRAT)
		sqe.Fd = int32(dirfd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(path)))
		sqe.Len = mode
		sqe.UserData = userData
	})
}

// PrepSymlinkat prepares a symlinkat operation.
func (r *Ring) PrepSymlinkat(target *byte, newDirfd int, linkpath *byte, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SYMLINKAT)
		sqe.Fd = int32(newDirfd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(target)))
		sqe.Addr3 = uint64(uintptr(unsafe.Pointer(linkpath)))
		sqe.UserData = userData
	})
}

// PrepLinkat prepares a linkat operation.
func (r *Ring) PrepLinkat(oldDirfd int, oldPath *byte, newDirfd int, newPath *byte, flags uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_LINKAT)
		sqe.Fd = int32(oldDirfd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(oldPath)))
		sqe.Len = uint32(newDirfd)
		sqe.Off = uint64(uintptr(unsafe.Pointer(newPath)))
		sqe.OpFlags = flags
		sqe.UserData = userData
	})
}

// PrepOpenat2 prepares an openat2 operation with full open_how control.
func (r *Ring) PrepOpenat2(dirfd int, path *byte, how *sys.OpenHow, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_OPENAT2)
		sqe.Fd = int32(dirfd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(path)))
		sqe.Off = uint64(uintptr(unsafe.Pointer(how)))
		sqe.Len = uint32(unsafe.Sizeof(*how))
		sqe.UserData = userData
	})
}

// PrepGetxattr prepares a getxattr operation.
func (r *Ring) PrepGetxattr(name, value *byte, path *byte, length uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_GETXATTR)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(name)))
		sqe.Addr3 = uint64(uintptr(unsafe.Pointer(value)))
		sqe.Off = uint64(uintptr(unsafe.Pointer(path)))
		sqe.Len = length
		sqe.UserData = userData
	})
}

// PrepSetxattr prepares a setxattr operation.
func (r *Ring) PrepSetxattr(name, value *byte, path *byte, length uint32, flags uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SETXATTR)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(name)))
		sqe.Addr3 = uint64(uintptr(unsafe.Pointer(value)))
		sqe.Off = uint64(uintptr(unsafe.Pointer(path)))
		sqe.Len = length
		sqe.OpFlags = flags
		sqe.UserData = userData
	})
}

// PrepFgetxattr prepares an fgetxattr operation against an open fd.
func (r *Ring) PrepFgetxattr(fd int, name, value *byte, length uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_FGETXATTR)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(name)))
		sqe.Addr3 = uint64(uintptr(unsafe.Pointer(value)))
		sqe.Len = length
		sqe.UserData = userData
	})
}

// PrepFsetxattr prepares an fsetxattr operation against an open fd.
func (r *Ring) PrepFsetxattr(fd int, name, value *byte, length uint32, flags uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_FSETXATTR)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(name)))
		sqe.Addr3 = uint64(uintptr(unsafe.Pointer(value)))
		sqe.Len = length
		sqe.OpFlags = flags
		sqe.UserData = userData
	})
}

// PrepSendZC prepares a zero-copy send.
func (r *Ring) PrepSendZC(fd int, buf []byte, flags int, zcFlags uint16, userData uint64) error {
	if len(buf) == 0 {
		return nil
	}
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SEND_ZC)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
		sqe.Len = uint32(len(buf))
		sqe.OpFlags = uint32(flags)
		sqe.Ioprio = zcFlags
		sqe.UserData = userData
	})
}

// PrepSendmsgZC prepares a zero-copy sendmsg.
func (r *Ring) PrepSendmsgZC(fd int, msg *syscall.Msghdr, flags int, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SENDMSG_ZC)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(msg)))
		sqe.Len = 1
		sqe.OpFlags = uint32(flags)
		sqe.UserData = userData
	})
}

// PrepSocketDirect prepares a socket creation that installs into a fixed
// file-table slot instead of returning a plain fd.
func (r *Ring) PrepSocketDirect(domain, typ, protocol int, fileIndex uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SOCKET)
		sqe.Fd = int32(domain)
		sqe.Off = uint64(typ)
		sqe.Len = uint32(protocol)
		sqe.SetFileIndex(int32(fileIndex))
		sqe.UserData = userData
	})
}

// PrepSocketDirectAlloc is PrepSocketDirect with kernel-chosen slot
// allocation (IORING_FILE_INDEX_ALLOC).
func (r *Ring) PrepSocketDirectAlloc(domain, typ, protocol int, userData uint64) error {
	return r.PrepSocketDirect(domain, typ, protocol, sys.IORING_FILE_INDEX_ALLOC, userData)
}

// PrepAcceptDirect is PrepAccept installing the new connection into a fixed
// file-table slot.
func (r *Ring) PrepAcceptDirect(fd int, addr unsafe.Pointer, addrLen *uint32, flags uint32, fileIndex uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_ACCEPT)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(addr))
		sqe.Off = uint64(uintptr(unsafe.Pointer(addrLen)))
		sqe.OpFlags = flags
		sqe.SetFileIndex(int32(fileIndex))
		sqe.UserData = userData
	})
}

// PrepAcceptMultishotDirect combines multishot accept with direct
// file-table installation.
func (r *Ring) PrepAcceptMultishotDirect(fd int, addr unsafe.Pointer, addrLen *uint32, flags uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_ACCEPT)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(addr))
		sqe.Off = uint64(uintptr(unsafe.Pointer(addrLen)))
		sqe.OpFlags = flags
		sqe.Ioprio = uint16(sys.IORING_ACCEPT_MULTISHOT)
		fileIndexAlloc := sys.IORING_FILE_INDEX_ALLOC
		sqe.SetFileIndex(int32(fileIndexAlloc))
		sqe.UserData = userData
	})
}

// PrepCloseDirect closes a fixed file-table slot instead of a plain fd.
func (r *Ring) PrepCloseDirect(fileIndex uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_CLOSE)
		sqe.Fd = -1
		sqe.SetFileIndex(int32(fileIndex))
		sqe.UserData = userData
	})
}

// PrepMsgRing posts a plain data value onto targetRingFd's completion
// queue without performing any I/O. skipCQE avoids a completion on the
// sending ring, used by the cross-worker co-spawn fast path.
func (r *Ring) PrepMsgRing(targetRingFd int, data uint64, skipCQE bool, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_MSG_RING)
		sqe.Fd = int32(targetRingFd)
		sqe.Len = uint32(data)
		sqe.Off = data
		sqe.OpFlags = sys.IORING_MSG_DATA
		if skipCQE {
			sqe.Flags |= sys.IOSQE_CQE_SKIP_SUCCESS
		}
		sqe.UserData = userData
	})
}

// PrepMsgRingCQEFlags is PrepMsgRing but also sets the delivered CQE's
// flags field on the target ring.
func (r *Ring) PrepMsgRingCQEFlags(targetRingFd int, data uint64, cqeFlags uint32, skipCQE bool, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_MSG_RING)
		sqe.Fd = int32(targetRingFd)
		sqe.Len = uint32(data)
		sqe.Off = data
		sqe.OpFlags = sys.IORING_MSG_DATA | sys.IORING_MSG_RING_FLAGS_PASS
		sqe.Addr3 = uint64(cqeFlags)
		if skipCQE {
			sqe.Flags |= sys.IOSQE_CQE_SKIP_SUCCESS
		}
		sqe.UserData = userData
	})
}

// PrepMsgRingFd passes an open file descriptor to another ring's registered
// file table.
func (r *Ring) PrepMsgRingFd(targetRingFd int, srcFd int, dstFileIndex uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_MSG_RING)
		sqe.Fd = int32(targetRingFd)
		sqe.Addr = uint64(srcFd)
		sqe.SetFileIndex(int32(dstFileIndex))
		sqe.OpFlags = sys.IORING_MSG_SEND_FD
		sqe.UserData = userData
	})
}

// PrepPollUpdate rewrites the mask or user_data of an in-flight poll
// request without a remove/re-add round trip.
func (r *Ring) PrepPollUpdate(targetUserData uint64, newUserData uint64, newMask uint32, flags uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_POLL_REMOVE)
		sqe.Fd = -1
		sqe.Addr = targetUserData
		sqe.Addr3 = newUserData
		sqe.OpFlags = flags | sys.IORING_POLL_UPDATE_EVENTS | sys.IORING_POLL_UPDATE_USER_DATA
		sqe.Len = newMask
		sqe.UserData = userData
	})
}

// PrepTimeoutUpdate rewrites the deadline of an in-flight timeout.
func (r *Ring) PrepTimeoutUpdate(targetUserData uint64, ts *sys.Timespec, flags uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_TIMEOUT_REMOVE)
		sqe.Fd = -1
		sqe.Addr = targetUserData
		sqe.Off = uint64(uintptr(unsafe.Pointer(ts)))
		sqe.OpFlags = flags | sys.IORING_TIMEOUT_UPDATE
		sqe.UserData = userData
	})
}

// PrepCancelFd cancels all in-flight operations on fd (IORING_ASYNC_CANCEL_FD).
func (r *Ring) PrepCancelFd(fd int, flags uint32, userData uint64) error {
	return r.prep(func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_ASYNC_CANCEL)
		sqe.Fd = int32(fd)
		sqe.OpFlags = flags | sys.IORING_ASYNC_CANCEL_FD
		sqe.UserData = userData
	})
}
