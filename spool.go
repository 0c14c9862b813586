package ringchannel

import (
	"errors"
	"fmt"

	"github.com/eapache/queue"
)

type spooled struct {
	id      uint16
	payload []byte
}

// Spool sits in front of a Producer and holds packets the ring could not
// take yet, replaying them in order on later calls. Like the Producer it
// wraps, a Spool must only be used by the producing goroutine.
type Spool struct {
	p     Producer
	q     *queue.Queue
	limit int
	rep   Reporter
}

// SpoolConfigOption can be used to setup the spool.
type SpoolConfigOption func(*Spool)

// WithSpoolLimit bounds the number of spooled packets. Once the limit is
// reached Push returns ErrFull. Zero, the default, means no limit.
func WithSpoolLimit(n int) SpoolConfigOption {
	return SpoolConfigOption(func(s *Spool) {
		s.limit = n
	})
}

// WithSpoolReporter sets the Reporter told about every spooled packet.
func WithSpoolReporter(r Reporter) SpoolConfigOption {
	return SpoolConfigOption(func(s *Spool) {
		s.rep = r
	})
}

// NewSpool wraps the given Producer.
func NewSpool(p Producer, opts ...SpoolConfigOption) *Spool {
	s := &Spool{
		p:   p,
		q:   queue.New(),
		rep: reporter{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Push pushes the packet to the ring, or spools a copy of it if the ring is
// full or older packets are still spooled. Packets that could never fit in
// the ring are rejected with ErrPayloadTooLarge.
func (s *Spool) Push(id uint16, payload []byte) error {
	if len(payload) > MaxPayloadSize || HeaderSize+len(payload) >= s.p.Capacity() {
		return fmt.Errorf("%w: %d byte packet cannot fit in a %d byte ring",
			ErrPayloadTooLarge, HeaderSize+len(payload), s.p.Capacity())
	}

	if err := s.Flush(); err != nil && !errors.Is(err, ErrFull) {
		return err
	}

	if s.q.Length() == 0 {
		err := s.p.Push(id, payload)
		if !errors.Is(err, ErrFull) {
			return err
		}
	}

	if s.limit > 0 && s.q.Length() >= s.limit {
		return ErrFull
	}

	s.q.Add(spooled{
		id:      id,
		payload: append([]byte(nil), payload...),
	})
	s.rep.Full(s.q.Length())
	return nil
}

// Flush pushes spooled packets to the ring in order until the spool is empty
// or the ring is full, in which case ErrFull is returned.
func (s *Spool) Flush() error {
	for s.q.Length() > 0 {
		next := s.q.Peek().(spooled)
		if err := s.p.Push(next.id, next.payload); err != nil {
			return err
		}
		s.q.Remove()
	}
	return nil
}

// Len returns the number of spooled packets.
func (s *Spool) Len() int {
	return s.q.Length()
}
