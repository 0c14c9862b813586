package ringchannel

import (
	"context"
)

// Waiter will use a channel signal to alert the reader to when a packet is
// available. Both the producer and the consumer must go through the same
// Waiter, so it only serves rings shared within one process.
type Waiter struct {
	Ring
	c   chan struct{}
	ctx context.Context
	rep Reporter
}

// WaiterConfigOption can be used to setup the waiter.
type WaiterConfigOption func(*Waiter)

// WithWaiterContext sets the context to cancel any retrieval (Next()). It
// will not change any results for adding packets (Push()). Default is
// context.Background().
func WithWaiterContext(ctx context.Context) WaiterConfigOption {
	return WaiterConfigOption(func(c *Waiter) {
		c.ctx = ctx
	})
}

// WithWaiterReporter sets the Reporter used for warnings.
func WithWaiterReporter(r Reporter) WaiterConfigOption {
	return WaiterConfigOption(func(c *Waiter) {
		c.rep = r
	})
}

// NewWaiter returns a new Waiter that wraps the given ring.
func NewWaiter(r Ring, opts ...WaiterConfigOption) *Waiter {
	w := new(Waiter)
	w.Ring = r
	w.c = make(chan struct{}, 1)
	w.ctx = context.Background()
	w.rep = reporter{}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Push invokes the wrapped ring's Push and, if it succeeded, uses broadcast
// to wake up any readers.
func (w *Waiter) Push(id uint16, payload []byte) error {
	if err := w.Ring.Push(id, payload); err != nil {
		return err
	}
	w.broadcast()
	return nil
}

// broadcast sends to the channel if it can.
func (w *Waiter) broadcast() {
	select {
	case w.c <- struct{}{}:
	default:
	}
}

// Next returns the next packet on the wrapped ring. If the ring is empty, it
// will wait for Push to be called or the context to be done. If the context
// is done, the context's error is returned.
func (w *Waiter) Next(hdr *PacketHeader, out []byte) (int, error) {
	for {
		n, ok, err := w.Ring.Pop(hdr, out)
		if err != nil {
			warnShortBuffer(w.rep, err)
			return 0, err
		}
		if ok {
			return n, nil
		}
		select {
		case <-w.ctx.Done():
			return 0, w.ctx.Err()
		case <-w.c:
		}
	}
}
