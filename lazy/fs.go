package lazy

import (
	"syscall"
	"unsafe"

	"github.com/corofd/iouco/internal/sys"
	"github.com/corofd/iouco/worker"
)

// Openat submits an openat(2). path must be a null-terminated string kept
// alive until Await returns (syscall.BytePtrFromString).
func Openat(w *worker.Worker, dirfd int, path *byte, flags int, mode uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_OPENAT)
		sqe.Fd = int32(dirfd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(path)))
		sqe.Len = uint32(mode)
		sqe.OpFlags = uint32(flags)
	}, opts...)
}

// Open is Openat relative to the current working directory.
func Open(w *worker.Worker, path *byte, flags int, mode uint32, opts ...Option) *Op {
	return Openat(w, syscall.AT_FDCWD, path, flags, mode, opts...)
}

// Openat2 submits an openat2(2) with full open_how control (RESOLVE_* flags).
func Openat2(w *worker.Worker, dirfd int, path *byte, how *sys.OpenHow, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_OPENAT2)
		sqe.Fd = int32(dirfd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(path)))
		sqe.Off = uint64(uintptr(unsafe.Pointer(how)))
		sqe.Len = uint32(unsafe.Sizeof(*how))
	}, opts...)
}

// Statx submits a statx(2). path and statxbuf must stay alive until Await
// returns.
func Statx(w *worker.Worker, dirfd int, path *byte, flags, mask int, statxbuf unsafe.Pointer, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_STATX)
		sqe.Fd = int32(dirfd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(path)))
		sqe.Len = uint32(mask)
		sqe.OpFlags = uint32(flags)
		sqe.Off = uint64(uintptr(statxbuf))
	}, opts...)
}

// Fadvise submits a posix_fadvise(2).
func Fadvise(w *worker.Worker, fd int, offset int64, length uint32, advice uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_FADVISE)
		sqe.Fd = int32(fd)
		sqe.Off = uint64(offset)
		sqe.Len = length
		sqe.OpFlags = advice
	}, opts...)
}

// Madvise submits a madvise(2) on the memory range [addr, addr+length).
func Madvise(w *worker.Worker, addr unsafe.Pointer, length uint32, advice uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_MADVISE)
		sqe.Fd = -1
		sqe.Addr = uint64(uintptr(addr))
		sqe.Len = length
		sqe.OpFlags = advice
	}, opts...)
}

// Fallocate submits an fallocate(2).
func Fallocate(w *worker.Worker, fd int, mode uint32, offset, length int64, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_FALLOCATE)
		sqe.Fd = int32(fd)
		sqe.Off = uint64(offset)
		sqe.Addr = uint64(length)
		sqe.Len = mode
	}, opts...)
}

// SyncFileRange submits a sync_file_range(2).
func SyncFileRange(w *worker.Worker, fd int, offset int64, length uint32, flags uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SYNC_FILE_RANGE)
		sqe.Fd = int32(fd)
		sqe.Off = uint64(offset)
		sqe.Len = length
		sqe.OpFlags = flags
	}, opts...)
}

// Unlinkat submits an unlinkat(2). flags may include AT_REMOVEDIR.
func Unlinkat(w *worker.Worker, dirfd int, path *byte, flags uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_UNLINKAT)
		sqe.Fd = int32(dirfd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(path)))
		sqe.OpFlags = flags
	}, opts...)
}

// Unlink is Unlinkat relative to the current working directory.
func Unlink(w *worker.Worker, path *byte, opts ...Option) *Op {
	return Unlinkat(w, syscall.AT_FDCWD, path, 0, opts...)
}

// Renameat submits a renameat2(2)-style rename.
func Renameat(w *worker.Worker, oldDirfd int, oldPath *byte, newDirfd int, newPath *byte, flags uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_RENAMEAT)
		sqe.Fd = int32(oldDirfd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(oldPath)))
		sqe.Len = uint32(newDirfd)
		sqe.Off = uint64(uintptr(unsafe.Pointer(newPath)))
		sqe.OpFlags = flags
	}, opts...)
}

// Rename is Renameat relative to the current working directory on both ends.
func Rename(w *worker.Worker, oldPath, newPath *byte, opts ...Option) *Op {
	return Renameat(w, syscall.AT_FDCWD, oldPath, syscall.AT_FDCWD, newPath, 0, opts...)
}

// Mkdirat submits a mkdirat(2).
func Mkdirat(w *worker.Worker, dirfd int, path *byte, mode uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_MKDIRAT)
		sqe.Fd = int32(dirfd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(path)))
		sqe.Len = mode
	}, opts...)
}

// Mkdir is Mkdirat relative to the current working directory.
func Mkdir(w *worker.Worker, path *byte, mode uint32, opts ...Option) *Op {
	return Mkdirat(w, syscall.AT_FDCWD, path, mode, opts...)
}

// Symlinkat submits a symlinkat(2): creates linkpath as a symlink to target.
func Symlinkat(w *worker.Worker, target *byte, newDirfd int, linkpath *byte, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SYMLINKAT)
		sqe.Fd = int32(newDirfd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(target)))
		sqe.Addr3 = uint64(uintptr(unsafe.Pointer(linkpath)))
	}, opts...)
}

// Symlink is Symlinkat relative to the current working directory.
func Symlink(w *worker.Worker, target, linkpath *byte, opts ...Option) *Op {
	return Symlinkat(w, target, syscall.AT_FDCWD, linkpath, opts...)
}

// Linkat submits a linkat(2).
func Linkat(w *worker.Worker, oldDirfd int, oldPath *byte, newDirfd int, newPath *byte, flags uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_LINKAT)
		sqe.Fd = int32(oldDirfd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(oldPath)))
		sqe.Len = uint32(newDirfd)
		sqe.Off = uint64(uintptr(unsafe.Pointer(newPath)))
		sqe.OpFlags = flags
	}, opts...)
}

// Link is Linkat relative to the current working directory on both ends.
func Link(w *worker.Worker, oldPath, newPath *byte, opts ...Option) *Op {
	return Linkat(w, syscall.AT_FDCWD, oldPath, syscall.AT_FDCWD, newPath, 0, opts...)
}

// Getxattr submits a getxattr against path.
func Getxattr(w *worker.Worker, name, value *byte, path *byte, length uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_GETXATTR)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(name)))
		sqe.Addr3 = uint64(uintptr(unsafe.Pointer(value)))
		sqe.Off = uint64(uintptr(unsafe.Pointer(path)))
		sqe.Len = length
	}, opts...)
}

// Setxattr submits a setxattr against path.
func Setxattr(w *worker.Worker, name, value *byte, path *byte, length uint32, flags uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SETXATTR)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(name)))
		sqe.Addr3 = uint64(uintptr(unsafe.Pointer(value)))
		sqe.Off = uint64(uintptr(unsafe.Pointer(path)))
		sqe.Len = length
		sqe.OpFlags = flags
	}, opts...)
}

// Fgetxattr is Getxattr against an already-open fd.
func Fgetxattr(w *worker.Worker, fd int, name, value *byte, length uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_FGETXATTR)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(name)))
		sqe.Addr3 = uint64(uintptr(unsafe.Pointer(value)))
		sqe.Len = length
	}, opts...)
}

// Fsetxattr is Setxattr against an already-open fd.
func Fsetxattr(w *worker.Worker, fd int, name, value *byte, length uint32, flags uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_FSETXATTR)
		sqe.Fd = int32(fd)
		sqe.Addr = uint64(uintptr(unsafe.Pointer(name)))
		sqe.Addr3 = uint64(uintptr(unsafe.Pointer(value)))
		sqe.Len = length
		sqe.OpFlags = flags
	}, opts...)
}

// Splice moves nbytes between two pipe-connected fds without a userspace
// copy. offIn/offOut of -1 mean "use and advance the fd's own position".
func Splice(w *worker.Worker, fdIn int, offIn int64, fdOut int, offOut int64, nbytes uint32, flags uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_SPLICE)
		sqe.Fd = int32(fdOut)
		sqe.SpliceFdIn = int32(fdIn)
		sqe.Len = nbytes
		sqe.Off = uint64(offOut)
		sqe.SetSpliceOffIn(uint64(offIn))
		sqe.OpFlags = flags
	}, opts...)
}

// Tee duplicates nbytes from one pipe to another without consuming them.
func Tee(w *worker.Worker, fdIn, fdOut int, nbytes uint32, flags uint32, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_TEE)
		sqe.Fd = int32(fdOut)
		sqe.SpliceFdIn = int32(fdIn)
		sqe.Len = nbytes
		sqe.OpFlags = flags
	}, opts...)
}
