package bigmat

import (
	"math"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	mmapgo "github.com/edsrzf/mmap-go"
	"github.com/x448/float16"

	"github.com/lth/bigprod/internal/kernels"
)

// Writer fills a matrix through a read-write shared mapping. The header is
// written when the Writer is created; columns start out zero.
//
// A Writer holds an exclusive advisory lock on its file until Close, so
// readers cannot Open the matrix while it is being written.
type Writer struct {
	path   string
	header Header
	file   *os.File
	data   mmapgo.MMap
	closed atomic.Bool
}

// Create creates (or truncates) the file at path and maps it for writing.
func Create(path string, dtype DType, rows, cols int) (*Writer, error) {
	if err := validateShape(dtype, rows, cols); err != nil {
		return nil, err
	}
	h := Header{Version: Version, DType: dtype, Rows: rows, Cols: cols}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "create file")
	}
	if err := lockExclusive(file); err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "lock %s", path)
	}
	// Truncate after locking so a reader never sees the file shrink.
	if err := file.Truncate(0); err != nil {
		unlock(file)
		file.Close()
		return nil, errors.Wrap(err, "truncate file")
	}
	if err := file.Truncate(h.FileSize()); err != nil {
		unlock(file)
		file.Close()
		return nil, errors.Wrap(err, "size file")
	}

	m, err := mmapgo.Map(file, mmapgo.RDWR, 0)
	if err != nil {
		unlock(file)
		file.Close()
		return nil, errors.Wrap(err, "mmap file")
	}
	if err := encodeHeader(m, h); err != nil {
		m.Unmap()
		unlock(file)
		file.Close()
		return nil, errors.Wrap(err, "write header")
	}

	return &Writer{
		path:   path,
		header: h,
		file:   file,
		data:   m,
	}, nil
}

// Path returns the path of the file being written.
func (w *Writer) Path() string { return w.path }

// Header returns the header written to the file.
func (w *Writer) Header() Header { return w.header }

// Rows returns the number of rows.
func (w *Writer) Rows() int { return w.header.Rows }

// Cols returns the number of columns.
func (w *Writer) Cols() int { return w.header.Cols }

// DType returns the element type.
func (w *Writer) DType() DType { return w.header.DType }

// Err returns ErrClosed once the Writer has been closed.
func (w *Writer) Err() error {
	if w.closed.Load() {
		return ErrClosed
	}
	return nil
}

// ColumnBytes returns the raw bytes of column j. Writes to the slice go
// straight to the mapping.
func (w *Writer) ColumnBytes(j int) ([]byte, error) {
	if w.closed.Load() {
		return nil, ErrClosed
	}
	if j < 0 || j >= w.header.Cols {
		return nil, errors.Wrapf(ErrColumnRange, "column %d of %d", j, w.header.Cols)
	}
	start, end := columnRange(w.header, j)
	return w.data[start:end:end], nil
}

// MutableColumn returns column j of w as a writable []T. T must match the
// stored element type.
func MutableColumn[T kernels.Element](w *Writer, j int) ([]T, error) {
	if want, ok := DTypeOf[T](); !ok || want != w.header.DType {
		var zero T
		return nil, errors.Wrapf(kernels.ErrInvalidArgument,
			"cannot write %s matrix as %T", w.header.DType, zero)
	}
	b, err := w.ColumnBytes(j)
	if err != nil {
		return nil, err
	}
	if w.header.Rows == 0 {
		return []T{}, nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), w.header.Rows), nil
}

// SetColumn stores values into column j, converting to the stored element
// type. Integer types are rounded to nearest and saturated at their range.
func (w *Writer) SetColumn(j int, values []float64) error {
	if len(values) != w.header.Rows {
		return errors.Wrapf(kernels.ErrInvalidArgument,
			"column %d: got %d values, want %d", j, len(values), w.header.Rows)
	}
	b, err := w.ColumnBytes(j)
	if err != nil {
		return err
	}

	switch w.header.DType {
	case DTypeI8:
		for i, v := range values {
			b[i] = byte(int8(saturate(v, math.MinInt8, math.MaxInt8)))
		}
	case DTypeU8:
		for i, v := range values {
			b[i] = uint8(saturate(v, 0, math.MaxUint8))
		}
	case DTypeI16:
		for i, v := range values {
			byteOrder.PutUint16(b[2*i:], uint16(int16(saturate(v, math.MinInt16, math.MaxInt16))))
		}
	case DTypeI32:
		for i, v := range values {
			byteOrder.PutUint32(b[4*i:], uint32(int32(saturate(v, math.MinInt32, math.MaxInt32))))
		}
	case DTypeF16:
		for i, v := range values {
			byteOrder.PutUint16(b[2*i:], float16.Fromfloat32(float32(v)).Bits())
		}
	case DTypeF32:
		for i, v := range values {
			byteOrder.PutUint32(b[4*i:], math.Float32bits(float32(v)))
		}
	case DTypeF64:
		for i, v := range values {
			byteOrder.PutUint64(b[8*i:], math.Float64bits(v))
		}
	default:
		return errors.AssertionFailedf("unhandled dtype %s", w.header.DType)
	}
	return nil
}

// saturate rounds v to the nearest integer and clamps it to [lo, hi]. NaN
// maps to zero.
func saturate(v, lo, hi float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v <= lo:
		return int64(lo)
	case v >= hi:
		return int64(hi)
	}
	return int64(math.Round(v))
}

// Flush synchronously writes dirty pages back to the file.
func (w *Writer) Flush() error {
	if w.closed.Load() {
		return ErrClosed
	}
	return errors.Wrap(w.data.Flush(), "flush mapping")
}

// Close flushes, unmaps and unlocks the file. It is safe to call more than
// once.
func (w *Writer) Close() error {
	if w == nil || !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := errors.Wrap(w.data.Flush(), "flush mapping")
	err = errors.CombineErrors(err, w.data.Unmap())
	err = errors.CombineErrors(err, unlock(w.file))
	return errors.CombineErrors(err, w.file.Close())
}
