// Scheduling control helpers that don't go through the ring at all: yield,
// who-am-i, forget, and resume-on are scheduler operations, not io_uring
// opcodes, so they operate directly on worker's ready-queue instead of
// submitting an SQE.
package lazy

import "github.com/corofd/iouco/worker"

// Yield suspends the calling goroutine and re-enqueues it at the back of
// w's ready-queue, letting any other work already queued on w run first.
func Yield(w *worker.Worker) {
	done := make(chan struct{})
	w.SpawnAuto(func() { close(done) })
	<-done
}

// WhoAmI returns the Worker whose Run loop is executing on the calling
// goroutine's OS thread, or nil if the caller is not itself a worker's
// pinned loop goroutine (true of essentially all application code, which
// runs as ordinary unpinned goroutines communicating with workers through
// Await/SpawnAuto rather than executing on a worker's thread directly).
func WhoAmI() *worker.Worker {
	return worker.Current()
}

// Forget releases interest in op's eventual completion: op's Info is
// already sized to be safely ignored (Complete's send is non-blocking), so
// Forget exists purely to document the intent at call sites that submitted
// a non-Detach op but don't plan to Await it.
func Forget(op *Op) {
	_ = op
}

// ResumeOn parks the calling goroutine until target's loop has run a wake
// thunk, delivered through target's cross-worker inbox exactly like a
// spawned task would be (worker.SpawnAuto). The caller then continues as
// the same ordinary goroutine; it is not moved onto target's thread, so
// WhoAmI still reports what it did before the call.
func ResumeOn(target *worker.Worker) {
	done := make(chan struct{})
	target.SpawnAuto(func() { close(done) })
	<-done
}
