// Package userdata implements the pointer-plus-tag encoding carried in an
// SQE's user_data field, and the per-operation completion record ("task
// info") that the tag points at.
//
// This is the kernel ABI boundary: a *Info is pinned for as long as its SQE
// is in flight and is never moved or aliased across goroutines. Completion
// handling reads through the raw uint64 before the SQE is reused, the same
// pointer-reinterpretation idiom cloudwego-gopkg's internal/iouring/userdata.go
// uses for its single-kind userData, generalized here to a 3-bit tag
// space so the worker loop can discriminate four completion kinds.
package userdata

import "unsafe"

// Tag occupies the low 3 bits of user_data. A pointer's own low bits are
// always zero on every architecture this module targets (8-byte alignment
// of *Info), so packing a 3-bit tag there never clobbers address bits.
type Tag uint64

const (
	// TagInfoPtr: pointer to an Info; completion writes the result and
	// schedules the stored handle.
	TagInfoPtr Tag = iota
	// TagHandle: pointer is itself the handle to resume; no result is
	// written anywhere.
	TagHandle
	// TagInfoPtrLinkSQE: like TagInfoPtr, but this is a non-terminal link
	// in a chain — write the result, do not schedule.
	TagInfoPtrLinkSQE
	// TagMsgRing: pointer is a handle delivered by a peer worker via
	// IORING_OP_MSG_RING; completion schedules it and counts as a reap.
	TagMsgRing
)

const tagMask = uint64(0x7)

// Reserved sentinel values below any valid heap pointer, used for internal
// CQEs that carry no Info at all (eventfd wake, bare nop).
const (
	SentinelEventfdWake uint64 = 1
	SentinelNop         uint64 = 2
)

// Info is the task-info record embedded inside a lazy awaiter. Its address
// is packed into an SQE's user_data field alongside a Tag. Completion
// writes Result here and, unless the tag says otherwise, signals Done to
// wake the owning goroutine.
type Info struct {
	// Done is closed or sent-to exactly once by the worker that reaps the
	// completion. Awaiters with TagInfoPtr/TagMsgRing/TagHandle arrange
	// for this to be the channel their Await is blocked receiving from.
	Done chan struct{}

	// Result is the kernel's signed 32-bit return value: non-negative is
	// a byte count or similar; negative is -errno.
	Result int32

	// Flags mirrors the completing CQE's flags (buffer id, more-coming,
	// notification, socket-nonempty) for multishot/zero-copy/buffer-select
	// consumers.
	Flags uint32
}

// NewInfo returns a fresh Info ready to be packed into an SQE.
func NewInfo() *Info {
	return &Info{Done: make(chan struct{}, 1)}
}

// Pack combines info's address with tag into a user_data value.
func Pack(info *Info, tag Tag) uint64 {
	addr := uint64(uintptr(unsafe.Pointer(info)))
	return addr | uint64(tag)
}

// PackHandle packs a raw resumption pointer (used for TagHandle and
// TagMsgRing, where no Info exists — the pointer IS the handle) with tag.
func PackHandle(p unsafe.Pointer, tag Tag) uint64 {
	return uint64(uintptr(p)) | uint64(tag)
}

// Unpack splits a user_data value back into its tag and pointer bits.
func Unpack(userData uint64) (tag Tag, addr uint64) {
	return Tag(userData & tagMask), userData &^ tagMask
}

// InfoFromUserData reinterprets the pointer bits of userData as an *Info.
// Callers must have already checked the tag is TagInfoPtr or
// TagInfoPtrLinkSQE.
//
//go:nocheckptr
func InfoFromUserData(userData uint64) *Info {
	_, addr := Unpack(userData)
	return (*Info)(unsafe.Pointer(uintptr(addr)))
}

// PointerFromUserData reinterprets the pointer bits of userData as an
// unsafe.Pointer, for tags (TagHandle, TagMsgRing) whose payload is a
// worker-package type userdata has no business knowing about.
func PointerFromUserData(userData uint64) unsafe.Pointer {
	_, addr := Unpack(userData)
	return unsafe.Pointer(uintptr(addr))
}

// Complete writes res/flags into info and wakes its waiter, matching
// handle_cq_entry's "write the result into the awaiter" step. Never blocks:
// a call made while an earlier completion is still unconsumed is ignored,
// so the first result wins.
func (info *Info) Complete(res int32, flags uint32) {
	if len(info.Done) > 0 {
		return
	}
	info.Result = res
	info.Flags = flags
	select {
	case info.Done <- struct{}{}:
	default:
	}
}

// Wait blocks until Complete has been called, then returns the stored
// result. This is the Go analogue of await_resume: a blocking channel
// receive stands in for coroutine suspension.
func (info *Info) Wait() (int32, uint32) {
	<-info.Done
	return info.Result, info.Flags
}
