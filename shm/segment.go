package shm

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	ringchannel "code.cloudfoundry.org/go-ringchannel"
)

// FilePrefix is prepended to segment names to form file names.
const FilePrefix = "ringchannel_"

var (
	// ErrUnsupported is returned on platforms without mmap.
	ErrUnsupported = errors.New("shm: shared memory segments are not supported on this platform")

	// ErrInvalidName is returned for empty names or names containing a path
	// separator.
	ErrInvalidName = errors.New("shm: invalid segment name")

	// ErrClosed is returned when using a closed Segment.
	ErrClosed = errors.New("shm: segment is closed")
)

// Segment is a mapped shared-memory file holding a control block followed
// by the ring's data region.
type Segment struct {
	file *os.File
	mem  []byte
	path string
	ch   *ringchannel.Channel
	log  zerolog.Logger
}

type options struct {
	dir string
	log zerolog.Logger
}

// Option configures how a segment is created or opened.
type Option func(*options)

// WithDir places the segment file in dir instead of the default.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithLogger sets the logger used for lifecycle events. The default discards
// everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

func newOptions(opts []Option) options {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dir == "" {
		o.dir = defaultDir()
	}
	return o
}

// Channel returns the ring channel laid over the segment. It must not be
// used after Close.
func (s *Segment) Channel() *ringchannel.Channel {
	return s.ch
}

// Path returns the segment's file path.
func (s *Segment) Path() string {
	return s.path
}

// Size returns the mapped size in bytes.
func (s *Segment) Size() int {
	return len(s.mem)
}

// Remove closes the segment and deletes its file.
func (s *Segment) Remove() error {
	err := s.Close()
	if errors.Is(err, ErrClosed) {
		err = nil
	}
	if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return errors.Join(err, rmErr)
	}
	return err
}

func segmentPath(dir, name string) (string, error) {
	if name == "" || strings.ContainsRune(name, os.PathSeparator) || strings.ContainsRune(name, '/') {
		return "", ErrInvalidName
	}
	return filepath.Join(dir, FilePrefix+name), nil
}

// defaultDir prefers /dev/shm and falls back to the temporary directory.
func defaultDir() string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}
