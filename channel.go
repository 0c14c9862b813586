package ringchannel

import (
	"math"
	"sync/atomic"
	"unsafe"
)

const (
	// ControlBlockSize is the size in bytes of the shared ControlBlock.
	ControlBlockSize = int(unsafe.Sizeof(ControlBlock{}))

	// HeaderSize is the size in bytes of a PacketHeader in the data region.
	HeaderSize = int(unsafe.Sizeof(PacketHeader{}))

	// MaxPayloadSize is the largest payload a single packet can carry.
	MaxPayloadSize = math.MaxUint16

	// PacketIDSkip is reserved. Push and Pop treat it like any other id.
	PacketIDSkip uint16 = 0

	cacheLineSize = 64
)

// ControlBlock holds the cursors shared by the producer and the consumer.
// The producer and consumer halves live on separate cache lines.
//
// Layout (128 bytes, native byte order):
//
//	[0,4)    write offset (producer)
//	[64,68)  read offset (consumer)
//	[68,72)  capacity
type ControlBlock struct {
	producer struct {
		writeOffset atomic.Uint32
		_           [cacheLineSize - 4]byte
	}
	consumer struct {
		readOffset atomic.Uint32
		capacity   uint32
		_          [cacheLineSize - 8]byte
	}
}

// Compile time layout checks.
var (
	_ [unsafe.Offsetof(ControlBlock{}.consumer) - cacheLineSize]struct{}
	_ [cacheLineSize - unsafe.Offsetof(ControlBlock{}.consumer)]struct{}
	_ [unsafe.Sizeof(ControlBlock{}) - 2*cacheLineSize]struct{}
	_ [2*cacheLineSize - unsafe.Sizeof(ControlBlock{})]struct{}
)

// WriteOffset returns the producer cursor.
func (cb *ControlBlock) WriteOffset() uint32 {
	return cb.producer.writeOffset.Load()
}

// ReadOffset returns the consumer cursor.
func (cb *ControlBlock) ReadOffset() uint32 {
	return cb.consumer.readOffset.Load()
}

// Capacity returns the data region size recorded by the owner.
func (cb *ControlBlock) Capacity() uint32 {
	return cb.consumer.capacity
}

func (cb *ControlBlock) reset(capacity uint32) {
	cb.consumer.capacity = capacity
	cb.producer.writeOffset.Store(0)
	cb.consumer.readOffset.Store(0)
}

// PacketHeader precedes every payload in the data region.
type PacketHeader struct {
	ID          uint16
	PayloadSize uint16
}

// bytes aliases the header in native byte order.
func (h *PacketHeader) bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(h)), HeaderSize)
}

// Channel is a framed single-producer/single-consumer ring buffer laid over
// caller owned memory. A Channel does not own its memory and must not be
// used after the memory is released.
//
// Push must only be called by one producer and Pop by one consumer. The two
// sides may be separate goroutines or separate processes mapping the same
// memory.
//
// The zero value is a detached Channel; Valid reports false for it.
type Channel struct {
	cb       *ControlBlock
	data     []byte
	capacity uint32
}

// NewEmbedded attaches a Channel to buf, which holds a ControlBlock followed
// by the data region. If owner is true the control block is initialised,
// otherwise the recorded capacity must match the size of buf.
func NewEmbedded(buf []byte, owner bool) (*Channel, error) {
	if len(buf) <= ControlBlockSize {
		return nil, ErrRegionTooSmall
	}
	cb, err := ControlBlockAt(buf)
	if err != nil {
		return nil, err
	}
	data := buf[ControlBlockSize:]
	if uint64(len(data)) > math.MaxUint32 {
		return nil, ErrRegionTooLarge
	}

	if !owner && cb.Capacity() != uint32(len(data)) {
		return nil, &CapacityMismatchError{
			Recorded: cb.Capacity(),
			Expected: uint32(len(data)),
		}
	}

	return attach(cb, data, owner), nil
}

// NewExternal attaches a Channel to a control block and a data region that
// live in separate memory.
func NewExternal(cb *ControlBlock, data []byte, owner bool) (*Channel, error) {
	if cb == nil {
		return nil, ErrNilControlBlock
	}
	if len(data) == 0 {
		return nil, ErrEmptyRegion
	}
	if uint64(len(data)) > math.MaxUint32 {
		return nil, ErrRegionTooLarge
	}

	return attach(cb, data, owner), nil
}

// ControlBlockAt interprets the start of buf as a ControlBlock.
func ControlBlockAt(buf []byte) (*ControlBlock, error) {
	if len(buf) < ControlBlockSize {
		return nil, ErrRegionTooSmall
	}
	p := unsafe.Pointer(&buf[0])
	if uintptr(p)%unsafe.Alignof(ControlBlock{}) != 0 {
		return nil, ErrMisaligned
	}
	return (*ControlBlock)(p), nil
}

func attach(cb *ControlBlock, data []byte, owner bool) *Channel {
	c := &Channel{
		cb:       cb,
		data:     data,
		capacity: uint32(len(data)),
	}
	if owner {
		cb.reset(c.capacity)
	}
	return c
}

// Valid reports whether the Channel is attached to memory.
func (c *Channel) Valid() bool {
	return c != nil && c.cb != nil && len(c.data) != 0 && c.capacity != 0
}

// ControlBlock returns the control block the Channel is attached to.
func (c *Channel) ControlBlock() *ControlBlock {
	if c == nil {
		return nil
	}
	return c.cb
}

// Capacity returns the size of the data region in bytes.
func (c *Channel) Capacity() int {
	if c == nil {
		return 0
	}
	return int(c.capacity)
}

// Push frames payload with id and appends it to the ring. It returns
// ErrFull without modifying the ring if there is not enough space.
// Push must only be called by the producer.
func (c *Channel) Push(id uint16, payload []byte) error {
	if !c.Valid() {
		return ErrInvalidChannel
	}
	if len(payload) > MaxPayloadSize {
		return ErrPayloadTooLarge
	}

	total := uint32(HeaderSize + len(payload))

	read := c.cb.consumer.readOffset.Load()
	write := c.cb.producer.writeOffset.Load()

	var free uint32
	if read <= write {
		free = (c.capacity - write) + read
	} else {
		free = read - write
	}

	// One byte always stays empty so a full ring never looks empty.
	if free <= total {
		return ErrFull
	}

	hdr := PacketHeader{ID: id, PayloadSize: uint16(len(payload))}
	c.writeWrapped(write, hdr.bytes())

	dataOffset := c.advance(write, uint32(HeaderSize))
	if len(payload) > 0 {
		c.writeWrapped(dataOffset, payload)
	}

	c.cb.producer.writeOffset.Store(c.advance(dataOffset, uint32(len(payload))))
	return nil
}

// Pop copies the next packet's header into hdr and its payload into out,
// returning the payload length. If the ring is empty ok is false and err is
// nil. If out is too small a *ShortBufferError is returned and the packet
// stays queued. Pop must only be called by the consumer.
func (c *Channel) Pop(hdr *PacketHeader, out []byte) (n int, ok bool, err error) {
	if !c.Valid() {
		return 0, false, ErrInvalidChannel
	}

	write := c.cb.producer.writeOffset.Load()
	read := c.cb.consumer.readOffset.Load()

	if read == write {
		return 0, false, nil
	}

	var h PacketHeader
	c.readWrapped(read, h.bytes())
	if hdr != nil {
		*hdr = h
	}

	size := int(h.PayloadSize)
	if size > len(out) {
		return 0, false, &ShortBufferError{Needed: size, Provided: len(out)}
	}

	if size > 0 {
		c.readWrapped(c.advance(read, uint32(HeaderSize)), out[:size])
	}

	c.cb.consumer.readOffset.Store(c.advance(read, uint32(HeaderSize+size)))
	return size, true, nil
}

// Len returns the number of bytes, headers included, currently queued.
func (c *Channel) Len() int {
	if !c.Valid() {
		return 0
	}
	read := c.cb.consumer.readOffset.Load()
	write := c.cb.producer.writeOffset.Load()
	return int(c.used(read, write))
}

// Free returns the number of unoccupied bytes. While anything is queued the
// slack byte separating the cursors is not counted.
func (c *Channel) Free() int {
	if !c.Valid() {
		return 0
	}
	read := c.cb.consumer.readOffset.Load()
	write := c.cb.producer.writeOffset.Load()
	if read == write {
		return int(c.capacity)
	}
	return int(c.capacity - c.used(read, write) - 1)
}

// Empty reports whether there is nothing to Pop.
func (c *Channel) Empty() bool {
	if !c.Valid() {
		return true
	}
	return c.cb.consumer.readOffset.Load() == c.cb.producer.writeOffset.Load()
}

func (c *Channel) used(read, write uint32) uint32 {
	if read <= write {
		return write - read
	}
	return c.capacity - read + write
}

// advance moves a cursor n bytes forward around the ring.
func (c *Channel) advance(off, n uint32) uint32 {
	return uint32((uint64(off) + uint64(n)) % uint64(c.capacity))
}
