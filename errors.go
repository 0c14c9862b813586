package ringchannel

import (
	"errors"
	"fmt"
)

var (
	// ErrRegionTooSmall is returned when a region cannot hold a ControlBlock
	// and at least one byte of data.
	ErrRegionTooSmall = errors.New("ringchannel: region too small for control block")

	// ErrRegionTooLarge is returned when a data region exceeds what the
	// 32-bit cursors can address.
	ErrRegionTooLarge = errors.New("ringchannel: region too large")

	// ErrNilControlBlock is returned by NewExternal for a nil control block.
	ErrNilControlBlock = errors.New("ringchannel: control block is nil")

	// ErrEmptyRegion is returned by NewExternal for an empty data region.
	ErrEmptyRegion = errors.New("ringchannel: data region is empty")

	// ErrMisaligned is returned when a ControlBlock cannot be placed at the
	// start of a buffer.
	ErrMisaligned = errors.New("ringchannel: control block is misaligned")

	// ErrCapacityMismatch is matched by *CapacityMismatchError.
	ErrCapacityMismatch = errors.New("ringchannel: capacity mismatch")

	// ErrInvalidChannel is returned by operations on a detached Channel.
	ErrInvalidChannel = errors.New("ringchannel: channel is not attached")

	// ErrFull is returned by Push when the packet does not fit. Nothing is
	// written; the producer may retry once the consumer catches up.
	ErrFull = errors.New("ringchannel: ring buffer full")

	// ErrPayloadTooLarge is returned by Push for payloads over MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("ringchannel: payload exceeds 65535 bytes")

	// ErrShortBuffer is matched by *ShortBufferError.
	ErrShortBuffer = errors.New("ringchannel: buffer too small")
)

// CapacityMismatchError is returned when attaching to a control block whose
// recorded capacity differs from the supplied region.
type CapacityMismatchError struct {
	Recorded uint32
	Expected uint32
}

func (e *CapacityMismatchError) Error() string {
	return fmt.Sprintf("%s: recorded %d, region holds %d", ErrCapacityMismatch, e.Recorded, e.Expected)
}

func (e *CapacityMismatchError) Unwrap() error {
	return ErrCapacityMismatch
}

// ShortBufferError is returned by Pop when the output buffer cannot hold the
// next payload. The packet is left in the ring.
type ShortBufferError struct {
	Needed   int
	Provided int
}

func (e *ShortBufferError) Error() string {
	return fmt.Sprintf("%s: needed %d, provided %d", ErrShortBuffer, e.Needed, e.Provided)
}

func (e *ShortBufferError) Unwrap() error {
	return ErrShortBuffer
}
