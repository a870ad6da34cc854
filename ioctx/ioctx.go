// Package ioctx provides the top-level io_context façade: one owned worker
// plus the glue to launch it on its own pinned OS thread, queue work before
// it starts, and request a cooperative shutdown. OS thread pinning for
// Start is grounded on momentics-hioload-ws's per-worker
// runtime.LockOSThread + affinity pin shape, already carried into
// worker.Worker.Run/WithAffinity.
package ioctx

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/corofd/iouco/internal/rlog"
	"github.com/corofd/iouco/ring"
	"github.com/corofd/iouco/stopctx"
	"github.com/corofd/iouco/worker"
)

// Option configures a Context at construction.
type Option func(*Context)

// WithCPUAffinity pins the context's worker loop to cpu once started.
func WithCPUAffinity(cpu int) Option {
	return func(c *Context) { c.workerOpts = append(c.workerOpts, worker.WithAffinity(cpu)) }
}

// WithReadyQueueCapacity overrides the worker's ready-queue capacity.
func WithReadyQueueCapacity(n int) Option {
	return func(c *Context) { c.workerOpts = append(c.workerOpts, worker.WithReadyQueueCapacity(n)) }
}

// Context owns one worker and its lifecycle: queued-before-start tasks,
// the stop token handed to every spawned task, and the goroutine that
// drives the worker's Run loop when launched via Start.
type Context struct {
	W *worker.Worker // exported: lazy/netio operations need the worker directly

	stop *stopctx.Source

	running  atomic.Bool
	mu       sync.Mutex
	pending  []func(context.Context) error
	doneCh   chan struct{}
	stopOnce sync.Once

	workerOpts []worker.Option
}

// New sets up a ring of the given SQ depth and wraps it in a Context. The
// worker does not start running until Start or Run is called.
func New(entries uint32, ringOpts []ring.Option, opts ...Option) (*Context, error) {
	c := &Context{stop: stopctx.NewSource()}
	for _, opt := range opts {
		opt(c)
	}
	w, err := worker.New(0, entries, ringOpts, c.workerOpts...)
	if err != nil {
		return nil, err
	}
	c.W = w
	return c, nil
}

// Spawn schedules f to run on the context's worker. Before Start/Run, f is
// queued and dispatched once the worker is live; during Run, f is
// dispatched immediately via worker.SpawnAuto, which is safe to call from
// any goroutine regardless of which worker it happens to be running on.
// f observes RequestStop through the context.Context it is given.
func (c *Context) Spawn(f func(context.Context) error) {
	if c.running.Load() {
		c.dispatch(f)
		return
	}
	c.mu.Lock()
	if c.running.Load() {
		c.mu.Unlock()
		c.dispatch(f)
		return
	}
	c.pending = append(c.pending, f)
	c.mu.Unlock()
}

func (c *Context) dispatch(f func(context.Context) error) {
	c.W.SpawnAuto(func() {
		if err := f(c.stop.Token().Context()); err != nil {
			rlog.Errorf("ioctx: spawned task returned error", "err", err)
		}
	})
}

func (c *Context) flushPending() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, f := range pending {
		c.dispatch(f)
	}
}

// Start launches the worker's Run loop on a new goroutine (which pins
// itself to its own OS thread, see worker.Worker.Run) and returns
// immediately once every pending Spawn has been dispatched.
func (c *Context) Start() {
	c.doneCh = make(chan struct{})
	c.running.Store(true)
	go func() {
		defer close(c.doneCh)
		c.W.Run()
	}()
	c.flushPending()
}

// Run dispatches every pending Spawn and then drives the worker's Run loop
// on the calling goroutine, blocking until RequestStop/Stop completes.
func (c *Context) Run() {
	c.doneCh = make(chan struct{})
	c.running.Store(true)
	c.flushPending()
	defer close(c.doneCh)
	c.W.Run()
}

// Join blocks until the worker's Run loop has returned. Calling Join
// before Start/Run is a no-op: there is nothing running yet to wait for.
func (c *Context) Join() {
	if c.doneCh == nil {
		return
	}
	<-c.doneCh
}

// CanStop reports whether the context is running and has not already had
// RequestStop called.
func (c *Context) CanStop() bool {
	return c.running.Load() && !c.stop.Token().Requested()
}

// RequestStop fires the context's stop token (synchronously running every
// registered stopctx.Callback on the calling goroutine) and asks the worker
// loop to exit after its current iteration. RequestStop itself does not
// block; call Join to wait for the loop to actually stop.
func (c *Context) RequestStop() {
	c.stop.RequestStop()
	c.stopOnce.Do(func() {
		go c.W.Stop()
	})
}

// Token returns the stop token every Spawn'd task's context.Context is
// derived from, for callers that want to observe or register against it
// directly instead of through a spawned task's ctx parameter.
func (c *Context) Token() stopctx.Token {
	return c.stop.Token()
}
