// Package stopctx implements a stop-source/stop-token/stop-callback trio
// directly on top of context.Context, deliberately not hand-rolling its
// own primitive: context already is Go's idiomatic cooperative-
// cancellation mechanism, and code that needs cancellation (including
// WaitCQEContext-shaped call sites) already threads one through rather
// than inventing something else.
package stopctx

import (
	"context"
	"sync"
)

// Source is the cancellation authority: the only thing that can make a
// Token's Requested() become true.
type Source struct {
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	requested bool
	callbacks []*Callback
}

// NewSource returns an independent Source.
func NewSource() *Source {
	ctx, cancel := context.WithCancel(context.Background())
	return &Source{ctx: ctx, cancel: cancel}
}

// NewSourceWithParent derives a Source from an existing context.Context, so
// a caller that already carries one can have it double as a stop source:
// the returned Source also fires if parent is cancelled.
func NewSourceWithParent(parent context.Context) *Source {
	ctx, cancel := context.WithCancel(parent)
	return &Source{ctx: ctx, cancel: cancel}
}

// Token returns s's associated Token.
func (s *Source) Token() Token {
	return Token{src: s}
}

// RequestStop closes the underlying context so Token.Done()/Requested()
// observe the change, then fires every registered callback synchronously,
// on the calling goroutine, in registration order. Safe to call
// more than once; only the first call has any effect.
func (s *Source) RequestStop() {
	s.mu.Lock()
	if s.requested {
		s.mu.Unlock()
		return
	}
	s.requested = true
	cbs := s.callbacks
	s.callbacks = nil
	s.mu.Unlock()

	s.cancel()

	for _, cb := range cbs {
		cb.fire()
	}
}

// RegisterCallback runs fn exactly once, synchronously, the moment
// RequestStop is called — or immediately, on the calling goroutine, if s
// has already stopped, firing synchronously on the requesting goroutine
// in both cases.
func (s *Source) RegisterCallback(fn func()) *Callback {
	cb := &Callback{fn: fn}

	s.mu.Lock()
	if s.requested {
		s.mu.Unlock()
		cb.fire()
		return cb
	}
	s.callbacks = append(s.callbacks, cb)
	s.mu.Unlock()
	return cb
}

// Token is the caller-facing, read-only half of a Source: it can be polled
// or selected on, but cannot itself request a stop.
type Token struct {
	src *Source
}

// Requested reports whether the Token's Source has fired.
func (t Token) Requested() bool {
	if t.src == nil {
		return false
	}
	select {
	case <-t.src.ctx.Done():
		return true
	default:
		return false
	}
}

// Done returns a channel closed once the Source fires, for use directly in
// a select alongside other await points, polled at a suspension point.
func (t Token) Done() <-chan struct{} {
	if t.src == nil {
		return nil
	}
	return t.src.ctx.Done()
}

// Context exposes t as a plain context.Context, for call sites (like
// lazy.Op.Await) that already accept one.
func (t Token) Context() context.Context {
	if t.src == nil {
		return context.Background()
	}
	return t.src.ctx
}

// OnStop registers fn against t's Source; see Source.RegisterCallback.
func (t Token) OnStop(fn func()) *Callback {
	if t.src == nil {
		return &Callback{fn: fn}
	}
	return t.src.RegisterCallback(fn)
}

// Callback is a registered stop handler.
type Callback struct {
	mu      sync.Mutex
	fn      func()
	fired   bool
	removed bool
}

func (cb *Callback) fire() {
	cb.mu.Lock()
	if cb.removed || cb.fired {
		cb.mu.Unlock()
		return
	}
	cb.fired = true
	fn := cb.fn
	cb.mu.Unlock()
	fn()
}

// Remove prevents a not-yet-fired Callback from running. A Callback that
// has already fired is unaffected.
func (cb *Callback) Remove() {
	cb.mu.Lock()
	cb.removed = true
	cb.mu.Unlock()
}
