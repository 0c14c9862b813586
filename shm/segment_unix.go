//go:build unix

package shm

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	ringchannel "code.cloudfoundry.org/go-ringchannel"
)

// Create creates a new segment holding a ring with capacity bytes of data
// and initialises its control block. It fails if the segment already exists.
func Create(name string, capacity int, opts ...Option) (*Segment, error) {
	o := newOptions(opts)
	path, err := segmentPath(o.dir, name)
	if err != nil {
		return nil, err
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("shm: capacity must be positive, got %d", capacity)
	}
	size := ringchannel.ControlBlockSize + capacity

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shm: create %s: %w", path, err)
	}
	cleanup := func() {
		file.Close()
		os.Remove(path)
	}

	if err := unix.Ftruncate(int(file.Fd()), int64(size)); err != nil {
		cleanup()
		return nil, fmt.Errorf("shm: resize %s: %w", path, err)
	}

	mem, err := mmap(file, size)
	if err != nil {
		cleanup()
		return nil, err
	}

	ch, err := ringchannel.NewEmbedded(mem, true)
	if err != nil {
		unix.Munmap(mem)
		cleanup()
		return nil, err
	}

	o.log.Debug().Str("path", path).Int("capacity", capacity).Msg("created shared memory segment")
	return &Segment{file: file, mem: mem, path: path, ch: ch, log: o.log}, nil
}

// Open maps an existing segment and attaches to its ring without
// reinitialising it. The recorded capacity must match the file size.
func Open(name string, opts ...Option) (*Segment, error) {
	o := newOptions(opts)
	path, err := segmentPath(o.dir, name)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}

	var st unix.Stat_t
	if err := unix.Fstat(int(file.Fd()), &st); err != nil {
		file.Close()
		return nil, fmt.Errorf("shm: stat %s: %w", path, err)
	}
	size := int(st.Size)
	if size <= ringchannel.ControlBlockSize {
		file.Close()
		return nil, fmt.Errorf("shm: %s: %w", path, ringchannel.ErrRegionTooSmall)
	}

	mem, err := mmap(file, size)
	if err != nil {
		file.Close()
		return nil, err
	}

	ch, err := ringchannel.NewEmbedded(mem, false)
	if err != nil {
		unix.Munmap(mem)
		file.Close()
		return nil, fmt.Errorf("shm: attach %s: %w", path, err)
	}

	o.log.Debug().Str("path", path).Int("capacity", ch.Capacity()).Msg("opened shared memory segment")
	return &Segment{file: file, mem: mem, path: path, ch: ch, log: o.log}, nil
}

// Close unmaps the segment and closes its file. The file is left in place
// for other processes; use Remove to delete it.
func (s *Segment) Close() error {
	if s.mem == nil {
		return ErrClosed
	}
	var errs []error
	if err := unix.Munmap(s.mem); err != nil {
		errs = append(errs, fmt.Errorf("shm: munmap %s: %w", s.path, err))
	}
	if err := s.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("shm: close %s: %w", s.path, err))
	}
	s.mem = nil
	s.ch = nil
	s.log.Debug().Str("path", s.path).Msg("closed shared memory segment")
	return errors.Join(errs...)
}

func mmap(file *os.File, size int) ([]byte, error) {
	mem, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap %s: %w", file.Name(), err)
	}
	return mem, nil
}
