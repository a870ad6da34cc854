package lazy

import (
	"time"
	"unsafe"

	"github.com/corofd/iouco/internal/sys"
	"github.com/corofd/iouco/worker"
)

// clockBias is added to every computed deadline so a timer never fires
// early because of clock-read/kernel-tick granularity.
const clockBias = 1 * time.Microsecond

// TimeoutOption augments a lazy timeout the way Option augments a plain Op.
type TimeoutOption func(sqe *sys.SQE)

// WithSuccessOnExpiry sets IORING_TIMEOUT_ETIME_SUCCESS: on kernels >= 6.0 a
// pure timer (count == 0) that expires naturally returns 0 instead of
// -ETIME. Has no effect on a timer used as a link-timeout wrapper, where
// expiry always surfaces as the wrapped op's -ECANCELED.
func WithSuccessOnExpiry() TimeoutOption {
	return func(sqe *sys.SQE) { sqe.OpFlags |= sys.IORING_TIMEOUT_ETIME_SUCCESS }
}

func durationTimespec(d time.Duration) *sys.Timespec {
	d += clockBias
	return &sys.Timespec{Sec: int64(d / time.Second), Nsec: int64(d % time.Second)}
}

func timespecAddr(ts *sys.Timespec) uint64 {
	return uint64(uintptr(unsafe.Pointer(ts)))
}

// Timeout submits a relative timer of duration d, using
// IORING_TIMEOUT_BOOTTIME: relative durations use the monotonic boot clock
// when the kernel supports it, so the timer is immune to wall-clock jumps.
func Timeout(w *worker.Worker, d time.Duration, opts ...TimeoutOption) *Op {
	ts := durationTimespec(d)
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_TIMEOUT)
		sqe.Fd = -1
		sqe.Addr = uint64(uintptr(unsafe.Pointer(ts)))
		sqe.Len = 1
		sqe.Off = 0
		sqe.OpFlags = sys.IORING_TIMEOUT_BOOTTIME
		for _, opt := range opts {
			opt(sqe)
		}
	})
}

// TimeoutAt submits an absolute timer against the system wall clock, using
// IORING_TIMEOUT_ABS|IORING_TIMEOUT_REALTIME: an absolute deadline taken
// from a wall-clock time uses the ABS|REALTIME combination when available.
func TimeoutAt(w *worker.Worker, deadline time.Time, opts ...TimeoutOption) *Op {
	deadline = deadline.Add(clockBias)
	ts := &sys.Timespec{Sec: deadline.Unix(), Nsec: int64(deadline.Nanosecond())}
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_TIMEOUT)
		sqe.Fd = -1
		sqe.Addr = uint64(uintptr(unsafe.Pointer(ts)))
		sqe.Len = 1
		sqe.Off = 0
		sqe.OpFlags = sys.IORING_TIMEOUT_ABS | sys.IORING_TIMEOUT_REALTIME
		for _, opt := range opts {
			opt(sqe)
		}
	})
}

// TimeoutRemove cancels the timer identified by targetUserData.
func TimeoutRemove(w *worker.Worker, targetUserData uint64, opts ...Option) *Op {
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_TIMEOUT_REMOVE)
		sqe.Fd = -1
		sqe.Addr = targetUserData
	}, opts...)
}

// TimeoutUpdate rewrites the deadline of an in-flight relative timer to d,
// without a remove/re-add round trip.
func TimeoutUpdate(w *worker.Worker, targetUserData uint64, d time.Duration, opts ...Option) *Op {
	ts := durationTimespec(d)
	return submit(w, func(sqe *sys.SQE) {
		sqe.Opcode = uint8(sys.IORING_OP_TIMEOUT_REMOVE)
		sqe.Fd = -1
		sqe.Addr = targetUserData
		sqe.Off = uint64(uintptr(unsafe.Pointer(ts)))
		sqe.OpFlags = sys.IORING_TIMEOUT_UPDATE
	}, opts...)
}
