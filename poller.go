package ringchannel

import (
	"context"
	"errors"
	"time"
)

// Producer is the writing half of a ring.
type Producer interface {
	Push(id uint16, payload []byte) error
	Capacity() int
}

// Consumer is the reading half of a ring.
type Consumer interface {
	Pop(hdr *PacketHeader, out []byte) (n int, ok bool, err error)
}

// Ring is both halves of a ring, as seen by a single process.
type Ring interface {
	Producer
	Consumer
}

var (
	_ Ring = (*Channel)(nil)
	_ Ring = (*Waiter)(nil)
)

// Poller will poll a Consumer until a packet is available
type Poller struct {
	Consumer
	interval time.Duration
	ctx      context.Context
	rep      Reporter
}

// PollerConfigOption can be used to setup the poller
type PollerConfigOption func(*Poller)

// WithPollingInterval sets the interval at which the ring is queried
// for new packets. The default is 10ms.
func WithPollingInterval(interval time.Duration) PollerConfigOption {
	return PollerConfigOption(func(c *Poller) {
		c.interval = interval
	})
}

// WithPollerContext sets the context to cancel any retrieval (Next()).
// Default is context.Background().
func WithPollerContext(ctx context.Context) PollerConfigOption {
	return PollerConfigOption(func(c *Poller) {
		c.ctx = ctx
	})
}

// WithPollerReporter sets the Reporter used for warnings.
func WithPollerReporter(r Reporter) PollerConfigOption {
	return PollerConfigOption(func(c *Poller) {
		c.rep = r
	})
}

// NewPoller wraps a Consumer to allow reading packets via polling
func NewPoller(c Consumer, opts ...PollerConfigOption) *Poller {
	p := &Poller{
		Consumer: c,
		interval: 10 * time.Millisecond,
		ctx:      context.Background(),
		rep:      reporter{},
	}

	for _, o := range opts {
		o(p)
	}

	return p
}

// Next polls the ring until a packet is available and returns its payload
// length. It returns early with any error from Pop, or with the context's
// error once the context is done.
func (p *Poller) Next(hdr *PacketHeader, out []byte) (int, error) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		n, ok, err := p.Consumer.Pop(hdr, out)
		if err != nil {
			warnShortBuffer(p.rep, err)
			return 0, err
		}
		if ok {
			return n, nil
		}

		if timer == nil {
			timer = time.NewTimer(p.interval)
		} else {
			timer.Reset(p.interval)
		}
		select {
		case <-p.ctx.Done():
			return 0, p.ctx.Err()
		case <-timer.C:
		}
	}
}

func warnShortBuffer(r Reporter, err error) {
	var sb *ShortBufferError
	if errors.As(err, &sb) {
		r.Warn(sb.Error())
	}
}
