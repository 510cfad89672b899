package bigmat

import (
	"os"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	mmapgo "github.com/edsrzf/mmap-go"
	"golang.org/x/exp/mmap"
)

// File provides read access to a stored matrix. Columns are served straight
// from the backing bytes: a read-only shared mapping for Open, a private heap
// copy for Load.
//
// A File is safe for concurrent use. Columns handed out stay valid until
// Close; using them afterwards is undefined.
type File struct {
	path   string
	header Header
	data   []byte
	mapped bool

	file   *os.File     // held for the shared lock while mapped
	unmap  func() error // nil for heap copies
	closed atomic.Bool
}

// Open memory-maps the matrix at path read-only. Writes made through another
// shared mapping of the same file (for instance a shared-memory segment) are
// visible through the returned File.
//
// Open takes a shared advisory lock that is held until Close, so a Writer
// cannot be created on the same file while it is open.
func Open(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open file")
	}
	if err := lockShared(file); err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "lock %s", path)
	}

	info, err := file.Stat()
	if err != nil {
		unlock(file)
		file.Close()
		return nil, errors.Wrap(err, "stat file")
	}
	if info.Size() < HeaderSize {
		unlock(file)
		file.Close()
		return nil, errors.Wrapf(ErrCorrupt, "file too small for header: %d bytes", info.Size())
	}

	m, err := mmapgo.Map(file, mmapgo.RDONLY, 0)
	if err != nil {
		unlock(file)
		file.Close()
		return nil, errors.Wrap(err, "mmap file")
	}

	f := &File{
		path:   path,
		data:   m,
		mapped: true,
		file:   file,
		unmap:  m.Unmap,
	}
	if f.header, err = decodeHeader(f.data); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return f, nil
}

// Load reads the whole matrix at path into memory. The file is only locked
// while it is being copied; the returned File does not depend on it
// afterwards.
func Load(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open file")
	}
	defer file.Close()
	if err := lockShared(file); err != nil {
		return nil, errors.Wrapf(err, "lock %s", path)
	}
	defer unlock(file)

	r, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "mmap file")
	}
	defer r.Close()

	data := make([]byte, r.Len())
	if _, err := r.ReadAt(data, 0); err != nil {
		return nil, errors.Wrap(err, "read mmap")
	}

	header, err := decodeHeader(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return &File{
		path:   path,
		header: header,
		data:   data,
	}, nil
}

// Close releases the mapping and the lock. It is safe to call more than once.
func (f *File) Close() error {
	if f == nil || !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if f.unmap != nil {
		err = errors.CombineErrors(err, f.unmap())
	}
	if f.file != nil {
		err = errors.CombineErrors(err, unlock(f.file))
		err = errors.CombineErrors(err, f.file.Close())
	}
	return err
}

// Path returns the path the matrix was opened from.
func (f *File) Path() string { return f.path }

// Header returns the decoded header.
func (f *File) Header() Header { return f.header }

// Rows returns the number of rows.
func (f *File) Rows() int { return f.header.Rows }

// Cols returns the number of columns.
func (f *File) Cols() int { return f.header.Cols }

// DType returns the element type.
func (f *File) DType() DType { return f.header.DType }

// Mapped reports whether columns are served from a memory mapping rather
// than a heap copy.
func (f *File) Mapped() bool { return f.mapped }

// Err returns ErrClosed once the File has been closed.
func (f *File) Err() error {
	if f.closed.Load() {
		return ErrClosed
	}
	return nil
}

// ColumnBytes returns the raw little-endian bytes of column j.
func (f *File) ColumnBytes(j int) ([]byte, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	if j < 0 || j >= f.header.Cols {
		return nil, errors.Wrapf(ErrColumnRange, "column %d of %d", j, f.header.Cols)
	}
	start, end := columnRange(f.header, j)
	return f.data[start:end:end], nil
}
