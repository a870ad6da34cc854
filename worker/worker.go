// Package worker drives one io_uring ring's event loop: it owns the ring,
// a bounded ready-queue of resumption actions, and the submit/reap
// counters that decide when the loop must block in the kernel versus keep
// spinning on local work. Grounded on cloudwego-gopkg's
// internal/iouring/eventloop.go (submit/reap split) collapsed into a
// single cooperative loop, and on momentics-hioload-ws's
// core/concurrency/executor.go for the stop-channel goroutine-lifecycle
// shape.
package worker

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/corofd/iouco/internal/rlog"
	"github.com/corofd/iouco/internal/spsc"
	"github.com/corofd/iouco/internal/sys"
	"github.com/corofd/iouco/internal/userdata"
	"github.com/corofd/iouco/ring"
)

// Handle is a resumption action: a spawned goroutine waiting to continue,
// or an I/O completion's final wake step. In the source this is a
// coroutine handle resumed synchronously on the worker thread; a goroutine
// has no such handle; a Handle here is the closure that unblocks it (a
// channel send/close), invoked by the worker's own loop goroutine.
type Handle func()

// defaultReadyQueueCapacity bounds the fixed-capacity ready-queue array.
const defaultReadyQueueCapacity = 4096

// Worker owns exactly one ring and one ready-queue.
type Worker struct {
	id int

	Ring *ring.Ring

	ready *spsc.Queue[Handle]

	requestsToReap   atomic.Int64
	requestsToSubmit atomic.Int64

	stop    chan struct{}
	stopped chan struct{}

	inbox inbox

	affinityCPU int
	pinThread   bool
}

var (
	registryMu sync.RWMutex
	registry   = map[int]*Worker{} // gettid -> owning worker
)

// Option configures a Worker at construction.
type Option func(*Worker)

// WithReadyQueueCapacity overrides the ready-queue's fixed capacity.
func WithReadyQueueCapacity(n int) Option {
	return func(w *Worker) {
		w.ready = spsc.NewQueue[Handle](n)
	}
}

// WithAffinity pins the worker's event loop to cpu once it starts running,
// using the same goroutine-to-OS-thread pinning shape
// momentics-hioload-ws's executor uses, but via golang.org/x/sys/unix's
// SchedSetaffinity instead of momentics's cgo pthread_setaffinity_np call
// (see DESIGN.md).
func WithAffinity(cpu int) Option {
	return func(w *Worker) {
		w.pinThread = true
		w.affinityCPU = cpu
	}
}

// New creates a worker owning a freshly set up ring of the given SQ depth.
func New(id int, entries uint32, ringOpts []ring.Option, opts ...Option) (*Worker, error) {
	r, err := ring.New(entries, ringOpts...)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		id:      id,
		Ring:    r,
		ready:   spsc.NewQueue[Handle](defaultReadyQueueCapacity),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.setupInbox(); err != nil {
		r.Close()
		return nil, err
	}
	return w, nil
}

// ID returns the worker's context id, exposed for cross-worker dispatch and
// diagnostics.
func (w *Worker) ID() int { return w.id }

// Current returns the Worker owning the calling goroutine's OS thread, or
// nil if the caller is not running inside any worker's Run loop. Used by
// SpawnAuto to decide whether a dispatch is local or cross-worker — since Go
// has no thread-local storage, identity is tracked by OS thread id
// (unix.Gettid), requiring the worker loop to pin itself with
// runtime.LockOSThread first.
func Current() *Worker {
	tid := gettid()
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[tid]
}

func (w *Worker) register() {
	tid := gettid()
	registryMu.Lock()
	registry[tid] = w
	registryMu.Unlock()
}

func (w *Worker) unregister() {
	tid := gettid()
	registryMu.Lock()
	delete(registry, tid)
	registryMu.Unlock()
}

// GetFreeSQE bumps requests_to_reap/requests_to_submit and returns a fresh
// SQE. In correct usage the ring is sized so this never observes a full
// queue; a full queue here indicates the caller issued more concurrent
// operations than the ring was configured for.
func (w *Worker) GetFreeSQE() (*sys.SQE, error) {
	sqe := w.Ring.GetSQE()
	if sqe == nil {
		return nil, ring.ErrSQFull
	}
	w.requestsToReap.Add(1)
	w.requestsToSubmit.Add(1)
	return sqe, nil
}

// PrepOp reserves an SQE and lets fn populate every field, bumping the
// submit/reap counters exactly once. This is the entry point lazy awaiters
// use instead of calling Ring.PrepOp directly, so the bookkeeping always
// stays correct.
func (w *Worker) PrepOp(fn func(sqe *sys.SQE)) error {
	w.requestsToReap.Add(1)
	w.requestsToSubmit.Add(1)
	if err := w.Ring.PrepOp(fn); err != nil {
		w.requestsToReap.Add(-1)
		w.requestsToSubmit.Add(-1)
		return err
	}
	return nil
}

// CompensateDetachedReap decrements requests_to_reap for an operation
// submitted with IOSQE_CQE_SKIP_SUCCESS: a successful completion produces
// no CQE, so nothing else will ever decrement the counter PrepOp bumped
// for it. Callers that submit detached SQEs must call this exactly once
// per detached SQE, immediately after submission.
func (w *Worker) CompensateDetachedReap() {
	w.requestsToReap.Add(-1)
}

// SpawnUnsafe pushes h onto the ready-queue. Caller must already be
// running on this worker (see Current).
func (w *Worker) SpawnUnsafe(h Handle) {
	for !w.ready.Push(h) {
		runtime.Gosched()
	}
}

// SpawnAuto pushes h onto the ready-queue directly if the caller is
// already this worker, otherwise dispatches through the cross-worker
// inbox (§4.3).
func (w *Worker) SpawnAuto(h Handle) {
	if Current() == w {
		w.SpawnUnsafe(h)
		return
	}
	w.inbox.deliver(w, h)
}

// HasTaskReady reports whether work_once would find something to run.
func (w *Worker) HasTaskReady() bool {
	return w.ready.Len() > 0
}

// NumberToSchedule estimates how much locally-ready work is outstanding.
func (w *Worker) NumberToSchedule() int {
	return w.ready.Len()
}

// WorkOnce pops one handle from the ready-queue and resumes it.
func (w *Worker) WorkOnce() bool {
	h, ok := w.ready.Pop()
	if !ok {
		return false
	}
	h()
	return true
}

// Schedule runs ready handles until the queue is empty.
func (w *Worker) Schedule() {
	for w.WorkOnce() {
	}
}

// PollSubmission flushes pending SQEs, blocking in the kernel for at least
// one completion when the ready-queue is empty and work remains
// outstanding.
func (w *Worker) PollSubmission() error {
	if w.requestsToSubmit.Load() == 0 {
		return nil
	}
	var err error
	if w.ready.Len() == 0 {
		_, err = w.Ring.SubmitAndWait(1)
	} else {
		_, err = w.Ring.SubmitAndWait(0)
	}
	w.requestsToSubmit.Store(0)
	return err
}

// PollCompletion reaps every visible CQE via handleCQE. ForEachCQE already
// advances the CQ head for every entry it hands to fn, so handleCQE must
// not call SeenCQE itself.
func (w *Worker) PollCompletion() {
	w.Ring.ForEachCQE(w.handleCQE)
}

// handleCQE decodes one CQE's user_data and either schedules a resumption
// or records a non-terminal link result.
func (w *Worker) handleCQE(ud uint64, res int32, flags uint32) bool {
	w.requestsToReap.Add(-1)

	switch ud {
	case userdata.SentinelEventfdWake:
		w.inbox.onWake(w)
		return true
	case userdata.SentinelNop:
		return true
	}

	tag, _ := userdata.Unpack(ud)
	switch tag {
	case userdata.TagInfoPtr:
		info := userdata.InfoFromUserData(ud)
		w.SpawnUnsafe(func() { info.Complete(res, flags) })
	case userdata.TagInfoPtrLinkSQE:
		info := userdata.InfoFromUserData(ud)
		info.Result = res
		info.Flags = flags
	case userdata.TagHandle, userdata.TagMsgRing:
		hp := (*Handle)(userdata.PointerFromUserData(ud))
		w.SpawnUnsafe(*hp)
	}
	return true
}

// Run drives the main loop until Stop is called. Kernel errors are logged
// and terminate the loop; individual operation failures are delivered as
// negative results to the awaiting goroutine instead.
func (w *Worker) Run() {
	// Pinned unconditionally: Current()'s gettid()-keyed registry is only
	// meaningful if this goroutine stays on the same OS thread for the
	// lifetime of the loop. WithAffinity additionally asks the kernel to
	// keep that thread on one CPU.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if w.pinThread {
		if err := pinCurrentThread(w.affinityCPU); err != nil {
			rlog.Errorf("worker: affinity pin failed", "worker", w.id, "cpu", w.affinityCPU, "err", err)
		}
	}

	w.register()
	defer w.unregister()
	defer close(w.stopped)

	for {
		select {
		case <-w.stop:
			w.drainOnStop()
			return
		default:
		}

		w.Schedule()

		if w.requestsToSubmit.Load() > 0 || w.requestsToReap.Load() > 0 {
			if err := w.PollSubmission(); err != nil {
				rlog.Fatalf("worker: submit failed", "worker", w.id, "err", err)
			}
		}

		w.PollCompletion()
	}
}

// drainOnStop runs any handles left ready so goroutines blocked on Await
// don't leak, then lets in-flight kernel operations finish without
// blocking the caller of Stop.
func (w *Worker) drainOnStop() {
	w.Schedule()
}

// Stop requests the main loop to exit after its current iteration and
// blocks until it has. Safe to call once.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.stopped
}

// Close releases the worker's ring and inbox resources. Call after Stop.
func (w *Worker) Close() error {
	w.inbox.close()
	return w.Ring.Close()
}
