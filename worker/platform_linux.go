//go:build linux

package worker

import "golang.org/x/sys/unix"

// gettid identifies the calling OS thread. Workers pin themselves to one
// OS thread with runtime.LockOSThread before registering, so this is a
// stable substitute for thread-local storage.
func gettid() int {
	return unix.Gettid()
}

// pinCurrentThread pins the calling OS thread to cpu. Grounded on
// momentics-hioload-ws's per-worker affinity pinning, reimplemented with
// golang.org/x/sys/unix.SchedSetaffinity instead of momentics's cgo
// pthread_setaffinity_np wrapper (see DESIGN.md).
func pinCurrentThread(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
