package engine

import (
	"context"
	"io"
	"os"

	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// RandomAccessSource is a byte source that supports seeking: a file path
// with random-access reads (spec §4.1). Workers may open their own handle
// per partition; the engine never assumes a shared cursor.
type RandomAccessSource interface {
	// Length returns the total number of bytes in the source, or an
	// error if the length is not known.
	Length() (int64, error)
	// ReadAt reads into p starting at off, returning the number of bytes
	// read. A short read at end-of-file is not an error.
	ReadAt(p []byte, off int64) (int, error)
	// Close releases any resources held by this handle.
	Close() error
}

// SequentialSource is a byte source that can only be read forward: a pipe
// or decoder (spec §4.1). Only the Planner consumes it.
type SequentialSource interface {
	// Read reads into p, returning the number of bytes read. It may
	// return a short read; callers must loop until Count or EOF.
	Read(p []byte) (int, error)
}

// FileSource is a RandomAccessSource backed by a local file. Each call to
// Open returns an independent handle so that concurrent workers never
// share a cursor, matching spec §4.1 ("workers may open their own handle
// per partition").
type FileSource struct {
	Path       string
	BufferMode BufferMode
}

// NewFileSource returns a FileSource for path.
func NewFileSource(path string, mode BufferMode) *FileSource {
	return &FileSource{Path: path, BufferMode: mode}
}

// Length returns the size of the underlying file.
func (s *FileSource) Length() (int64, error) {
	fi, err := os.Stat(s.Path)
	if err != nil {
		return 0, errors.Wrapf(err, "engine: stat %s", s.Path)
	}
	return fi.Size(), nil
}

// openHandle implements RandomAccessSource over a single *os.File. Each
// worker calls FileSource.Open once to get its own one of these.
type openHandle struct {
	f *os.File
}

// Open opens an independent file handle. BufferMode.Unbuffered is a
// best-effort hint only; this implementation always falls back to
// ordinary buffered I/O since disabling the OS page cache is a
// platform-specific shim explicitly out of scope for the core engine
// (spec §1).
func (s *FileSource) Open() (RandomAccessSource, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "engine: open %s", s.Path)
	}
	return &openHandle{f: f}, nil
}

func (h *openHandle) Length() (int64, error) {
	fi, err := h.f.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "engine: stat %s", h.f.Name())
	}
	return fi.Size(), nil
}

func (h *openHandle) ReadAt(p []byte, off int64) (int, error) {
	n, err := h.f.ReadAt(p, off)
	if err == io.EOF {
		err = nil
	}
	if err != nil {
		err = errors.Wrapf(err, "engine: read %s at offset %d", h.f.Name(), off)
	}
	return n, err
}

func (h *openHandle) Close() error {
	return errors.Wrapf(h.f.Close(), "engine: close %s", h.f.Name())
}

// ReaderSource adapts an io.Reader (a pipe or decoder) to SequentialSource.
// It is the collaborator spec §1 calls out as external for decompression
// or download pipelines: callers hand us whatever io.Reader they've
// already built.
type ReaderSource struct {
	r io.Reader
}

// NewReaderSource wraps r as a SequentialSource.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r}
}

func (s *ReaderSource) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// OpenSequentialFile opens path with github.com/grailbio/base/file and
// returns a SequentialSource over it, matching the teacher's
// file.Open(ctx, path).Reader(ctx) idiom for forward-only reads.
func OpenSequentialFile(ctx context.Context, path string) (SequentialSource, func() error, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "engine: open %s", path)
	}
	closer := func() error { return errors.Wrapf(f.Close(ctx), "engine: close %s", path) }
	return NewReaderSource(f.Reader(ctx)), closer, nil
}

// readFull repeats Read until buf is full or the source is exhausted,
// returning the number of bytes actually read (spec §4.1: "possibly
// short; repeat until count or EOF").
func readFull(src SequentialSource, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := src.Read(buf[total:])
		total += n
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			return total, err
		}
		if n == 0 {
			return total, nil
		}
	}
	return total, nil
}
