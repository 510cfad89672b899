package kernels

import (
	"github.com/cockroachdb/errors"
)

// Dense is an in-process column-major matrix. It is mostly useful for tests
// and for small matrices that were already materialised on the heap.
type Dense[T Element] struct {
	rows, cols int
	data       []T
}

var _ Matrix[float64] = (*Dense[float64])(nil)

// NewDense wraps data, laid out column after column, as a rows×cols matrix.
// The slice is not copied.
func NewDense[T Element](rows, cols int, data []T) (*Dense[T], error) {
	if rows < 0 || cols < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "negative dimensions %dx%d", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, errors.Wrapf(ErrInvalidArgument,
			"data has %d values, want %d for %dx%d", len(data), rows*cols, rows, cols)
	}
	return &Dense[T]{rows: rows, cols: cols, data: data}, nil
}

// NewDenseColumns builds a matrix by copying the given columns, which must all
// have the same length.
func NewDenseColumns[T Element](columns ...[]T) (*Dense[T], error) {
	if len(columns) == 0 {
		return &Dense[T]{}, nil
	}
	rows := len(columns[0])
	data := make([]T, 0, rows*len(columns))
	for j, c := range columns {
		if len(c) != rows {
			return nil, errors.Wrapf(ErrInvalidArgument,
				"column %d has %d values, want %d", j, len(c), rows)
		}
		data = append(data, c...)
	}
	return &Dense[T]{rows: rows, cols: len(columns), data: data}, nil
}

// Err reports a nil receiver as ErrInvalidArgument.
func (d *Dense[T]) Err() error {
	if d == nil {
		return errors.Wrap(ErrInvalidArgument, "nil dense matrix")
	}
	return nil
}

// Rows returns the number of rows.
func (d *Dense[T]) Rows() int {
	if d == nil {
		return 0
	}
	return d.rows
}

// Cols returns the number of columns.
func (d *Dense[T]) Cols() int {
	if d == nil {
		return 0
	}
	return d.cols
}

// Column returns a view of column j.
func (d *Dense[T]) Column(j int) ([]T, error) {
	if d == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "nil dense matrix")
	}
	if j < 0 || j >= d.cols {
		return nil, errors.Wrapf(ErrInvalidArgument, "column %d out of range [0, %d)", j, d.cols)
	}
	return d.data[j*d.rows : (j+1)*d.rows : (j+1)*d.rows], nil
}
