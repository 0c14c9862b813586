//go:build !unix

package shm

// Create is not supported on this platform.
func Create(name string, capacity int, opts ...Option) (*Segment, error) {
	return nil, ErrUnsupported
}

// Open is not supported on this platform.
func Open(name string, opts ...Option) (*Segment, error) {
	return nil, ErrUnsupported
}

// Close is not supported on this platform.
func (s *Segment) Close() error {
	return ErrUnsupported
}
