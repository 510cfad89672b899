package bigmat

import (
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/x448/float16"

	"github.com/lth/bigprod/internal/kernels"
)

// columnSource is implemented by File and Writer.
type columnSource interface {
	Header() Header
	ColumnBytes(j int) ([]byte, error)
	Err() error
}

// Typed is a zero-copy kernels.Matrix view over a stored matrix whose element
// type matches T.
type Typed[T kernels.Element] struct {
	src  columnSource
	rows int
	cols int
}

var (
	_ kernels.Matrix[int8]    = (*Typed[int8])(nil)
	_ kernels.Matrix[float32] = (*Float16)(nil)
)

// DTypeOf returns the storage type whose elements are T, and false when T
// has no on-disk representation.
func DTypeOf[T kernels.Element]() (DType, bool) {
	var zero T
	switch any(zero).(type) {
	case int8:
		return DTypeI8, true
	case uint8:
		return DTypeU8, true
	case int16:
		return DTypeI16, true
	case int32:
		return DTypeI32, true
	case float32:
		return DTypeF32, true
	case float64:
		return DTypeF64, true
	}
	return 0, false
}

// As returns a typed view of a File or Writer. It fails with
// kernels.ErrInvalidArgument when T does not match the stored element type.
func As[T kernels.Element](src columnSource) (*Typed[T], error) {
	h := src.Header()
	want, ok := DTypeOf[T]()
	if !ok || want != h.DType {
		var zero T
		return nil, errors.Wrapf(kernels.ErrInvalidArgument,
			"cannot view %s matrix as %T", h.DType, zero)
	}
	return &Typed[T]{src: src, rows: h.Rows, cols: h.Cols}, nil
}

// Err reports a nil view as kernels.ErrInvalidArgument and a closed backing
// store as ErrClosed.
func (v *Typed[T]) Err() error {
	if v == nil {
		return errors.Wrap(kernels.ErrInvalidArgument, "nil matrix view")
	}
	return v.src.Err()
}

// Rows returns the number of rows.
func (v *Typed[T]) Rows() int {
	if v == nil {
		return 0
	}
	return v.rows
}

// Cols returns the number of columns.
func (v *Typed[T]) Cols() int {
	if v == nil {
		return 0
	}
	return v.cols
}

// Column returns column j as a []T aliasing the backing store.
func (v *Typed[T]) Column(j int) ([]T, error) {
	if v == nil {
		return nil, errors.Wrap(kernels.ErrInvalidArgument, "nil matrix view")
	}
	b, err := v.src.ColumnBytes(j)
	if err != nil {
		return nil, err
	}
	if v.rows == 0 {
		return []T{}, nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), v.rows), nil
}

// Int8 returns a view of an I8 matrix.
func (f *File) Int8() (*Typed[int8], error) { return As[int8](f) }

// Uint8 returns a view of a U8 matrix.
func (f *File) Uint8() (*Typed[uint8], error) { return As[uint8](f) }

// Int16 returns a view of an I16 matrix.
func (f *File) Int16() (*Typed[int16], error) { return As[int16](f) }

// Int32 returns a view of an I32 matrix.
func (f *File) Int32() (*Typed[int32], error) { return As[int32](f) }

// Float32 returns a view of an F32 matrix.
func (f *File) Float32() (*Typed[float32], error) { return As[float32](f) }

// Float64 returns a view of an F64 matrix.
func (f *File) Float64() (*Typed[float64], error) { return As[float64](f) }

// Float16 widens an F16 matrix to float32 one column at a time. Each column
// is decoded on first use and kept, so it has a stable address for the life
// of the view, at the cost of twice the column's storage on the heap.
type Float16 struct {
	src  columnSource
	rows int
	cols []float16Column
}

type float16Column struct {
	once   sync.Once
	values []float32
}

// Float16 returns a widening view of an F16 matrix.
func (f *File) Float16() (*Float16, error) {
	return NewFloat16(f)
}

// NewFloat16 returns a widening view of an F16 File or Writer.
func NewFloat16(src columnSource) (*Float16, error) {
	h := src.Header()
	if h.DType != DTypeF16 {
		return nil, errors.Wrapf(kernels.ErrInvalidArgument,
			"cannot widen %s matrix as F16", h.DType)
	}
	return &Float16{
		src:  src,
		rows: h.Rows,
		cols: make([]float16Column, h.Cols),
	}, nil
}

// Err reports a nil view as kernels.ErrInvalidArgument and a closed backing
// store as ErrClosed.
func (v *Float16) Err() error {
	if v == nil {
		return errors.Wrap(kernels.ErrInvalidArgument, "nil matrix view")
	}
	return v.src.Err()
}

// Rows returns the number of rows.
func (v *Float16) Rows() int {
	if v == nil {
		return 0
	}
	return v.rows
}

// Cols returns the number of columns.
func (v *Float16) Cols() int {
	if v == nil {
		return 0
	}
	return len(v.cols)
}

// Column returns column j decoded to float32. It is safe for concurrent use.
func (v *Float16) Column(j int) ([]float32, error) {
	if v == nil {
		return nil, errors.Wrap(kernels.ErrInvalidArgument, "nil matrix view")
	}
	if j < 0 || j >= len(v.cols) {
		return nil, errors.Wrapf(ErrColumnRange, "column %d of %d", j, len(v.cols))
	}
	b, err := v.src.ColumnBytes(j)
	if err != nil {
		return nil, err
	}
	c := &v.cols[j]
	c.once.Do(func() {
		c.values = decodeFloat16(b, v.rows)
	})
	return c.values, nil
}

func decodeFloat16(b []byte, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float16.Frombits(byteOrder.Uint16(b[2*i:])).Float32()
	}
	return out
}
