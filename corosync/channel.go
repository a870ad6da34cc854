package corosync

import "context"

// Channel is a bounded or rendezvous Channel[T]: one external contract,
// selected internal shape. N >= 1 uses a ring buffer guarded by a Mutex and
// two Conds (not-full, not-empty); N == 0 is a true rendezvous with no
// backing slot, handing a producer's value directly to a waiting consumer.
type Channel[T any] struct {
	n int

	mu       Mutex
	notFull  Cond
	notEmpty Cond
	buf      []T
	head     int
	count    int

	producerMu Mutex
	consumerMu Mutex
	matchMu    Mutex
	matchCond  Cond
	slot       *T
	hasSlot    bool
}

// NewChannel returns a Channel with capacity n. n == 0 is a rendezvous
// channel; n == 1 is a single optional slot; n >= 2 is a ring buffer.
func NewChannel[T any](n int) *Channel[T] {
	c := &Channel[T]{n: n}
	if n > 0 {
		c.buf = make([]T, n)
	}
	return c
}

// Release sends v on the channel, blocking until there is room (N >= 1) or
// a consumer is waiting to receive it (N == 0), or until ctx is done.
func (c *Channel[T]) Release(ctx context.Context, v T) error {
	if c.n == 0 {
		return c.rendezvousSend(ctx, v)
	}

	unlock, err := c.mu.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := c.notFull.WaitPred(ctx, &c.mu, func() bool { return c.count < c.n }); err != nil {
		return err
	}
	tail := (c.head + c.count) % c.n
	c.buf[tail] = v
	c.count++
	c.notEmpty.NotifyOne(&c.mu)
	return nil
}

// Acquire receives a value from the channel, blocking until one is
// available or ctx is done.
func (c *Channel[T]) Acquire(ctx context.Context) (T, error) {
	if c.n == 0 {
		return c.rendezvousRecv(ctx)
	}

	var zero T
	unlock, err := c.mu.Lock(ctx)
	if err != nil {
		return zero, err
	}
	defer unlock()

	if err := c.notEmpty.WaitPred(ctx, &c.mu, func() bool { return c.count > 0 }); err != nil {
		return zero, err
	}
	v := c.buf[c.head]
	c.buf[c.head] = zero
	c.head = (c.head + 1) % c.n
	c.count--
	c.notFull.NotifyOne(&c.mu)
	return v, nil
}

// Drop is Acquire without returning the value.
func (c *Channel[T]) Drop(ctx context.Context) error {
	_, err := c.Acquire(ctx)
	return err
}

// rendezvousSend implements the N == 0 handshake: wait for a consumer to
// publish a result slot, write into it, then wake the consumer.
// producerMu linearises producers against each other so only one is ever
// waiting on the match condition at a time.
func (c *Channel[T]) rendezvousSend(ctx context.Context, v T) error {
	unlockProducer, err := c.producerMu.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlockProducer()

	unlockMatch, err := c.matchMu.Lock(ctx)
	if err != nil {
		return err
	}
	if err := c.matchCond.WaitPred(ctx, &c.matchMu, func() bool { return c.hasSlot }); err != nil {
		unlockMatch()
		return err
	}
	*c.slot = v
	c.hasSlot = false
	c.slot = nil
	c.matchCond.NotifyAll(&c.matchMu)
	unlockMatch()
	return nil
}

// rendezvousRecv publishes a pointer to its own result slot, wakes any
// waiting producer, and waits until the producer writes and clears it.
// consumerMu linearises consumers against each other the same way
// producerMu does for producers.
func (c *Channel[T]) rendezvousRecv(ctx context.Context) (T, error) {
	var zero T
	unlockConsumer, err := c.consumerMu.Lock(ctx)
	if err != nil {
		return zero, err
	}
	defer unlockConsumer()

	var result T
	unlockMatch, err := c.matchMu.Lock(ctx)
	if err != nil {
		return zero, err
	}
	c.slot = &result
	c.hasSlot = true
	c.matchCond.NotifyAll(&c.matchMu)
	if err := c.matchCond.WaitPred(ctx, &c.matchMu, func() bool { return !c.hasSlot }); err != nil {
		unlockMatch()
		return zero, err
	}
	unlockMatch()
	return result, nil
}
