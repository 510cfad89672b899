// Package kernels provides the pure-Go matrix × vector kernel used to multiply
// column-addressable external matrices (memory-mapped files, shared-memory
// segments, plain slices) by a dense float64 vector.
package kernels

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrInvalidArgument is returned for a nil or unbound matrix, a weight vector
// whose length differs from the column count, an unsupported unroll factor, or
// a column whose length differs from the row count. It is always reported
// before a result is handed back.
var ErrInvalidArgument = errors.New("kernels: invalid argument")

// Element is the set of column element types the kernel can widen to float64.
// Backing stores are free to use narrower types than the accumulator.
type Element interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~float32 | ~float64
}

// Matrix is a read-only n×m matrix stored column by column outside the
// kernel's ownership.
//
// Column(j) must return exactly Rows() values for every j in [0, Cols()),
// and the returned slice must stay valid and unmodified for the duration of
// a Multiply call. When Multiply runs with more than one worker, Column may be
// called from several goroutines at once.
type Matrix[T Element] interface {
	Rows() int
	Cols() int
	Column(j int) ([]T, error)
}

// handleChecker is implemented by matrices that can tell whether they are
// usable at all: a nil receiver, a released backing store. Multiply queries
// it before reading the dimensions, so an unbound handle is rejected even
// when it has no columns to resolve.
type handleChecker interface {
	Err() error
}

// Multiply returns m·w, where result[i] = Σ_j w[j] * m.Column(j)[i].
//
// Columns are consumed in blocks of the configured unroll factor. Within a
// block the per-row terms are summed as a balanced pairwise tree, and the
// tail columns that do not fill a block are accumulated one at a time. For a
// fixed unroll factor the result is bit-for-bit deterministic; different
// factors agree only up to rounding.
//
// The returned slice is freshly allocated and owned by the caller. Errors
// returned by m.Column are passed through as is.
func Multiply[T Element](m Matrix[T], w []float64, opts ...Option) ([]float64, error) {
	cfg := ApplyOptions(opts...)
	if err := validate(m, w, cfg.Unroll); err != nil {
		return nil, err
	}

	n := m.Rows()
	dst := make([]float64, n)

	var err error
	if workers := shardCount(n, cfg.Workers); workers > 1 {
		err = accumulateParallel(dst, m, w, cfg.Unroll, workers)
	} else {
		err = accumulate(context.Background(), dst, m, w, cfg.Unroll, 0, n)
	}
	if err != nil {
		return nil, err
	}
	return dst, nil
}

// Multiply2 is Multiply with an unroll factor of 2.
func Multiply2[T Element](m Matrix[T], w []float64) ([]float64, error) {
	return Multiply(m, w, WithUnroll(2))
}

// Multiply8 is Multiply with an unroll factor of 8.
func Multiply8[T Element](m Matrix[T], w []float64) ([]float64, error) {
	return Multiply(m, w, WithUnroll(8))
}

// Multiply16 is Multiply with an unroll factor of 16.
func Multiply16[T Element](m Matrix[T], w []float64) ([]float64, error) {
	return Multiply(m, w, WithUnroll(16))
}

// DefaultUnroll returns the unroll factor that suits the running CPU best.
func DefaultUnroll() int {
	return preferredUnroll()
}

// SupportedUnroll reports whether u can be passed to WithUnroll.
func SupportedUnroll(u int) bool {
	switch u {
	case 1, 2, 4, 8, 16, 32:
		return true
	}
	return false
}

func validate[T Element](m Matrix[T], w []float64, unroll int) error {
	if m == nil {
		return errors.Wrap(ErrInvalidArgument, "nil matrix")
	}
	if hc, ok := m.(handleChecker); ok {
		if err := hc.Err(); err != nil {
			return err
		}
	}
	if !SupportedUnroll(unroll) {
		return errors.Wrapf(ErrInvalidArgument, "unsupported unroll factor %d", unroll)
	}
	rows, cols := m.Rows(), m.Cols()
	if rows < 0 || cols < 0 {
		return errors.Wrapf(ErrInvalidArgument, "negative dimensions %dx%d", rows, cols)
	}
	if len(w) != cols {
		return errors.Wrapf(ErrInvalidArgument,
			"weights length %d does not match column count %d", len(w), cols)
	}
	return nil
}

// column resolves column j and checks it against the row count so the
// unrolled bodies never index past the end.
func column[T Element](m Matrix[T], j, rows int) ([]T, error) {
	c, err := m.Column(j)
	if err != nil {
		return nil, err
	}
	if len(c) != rows {
		return nil, errors.Wrapf(ErrInvalidArgument,
			"column %d has %d values, want %d", j, len(c), rows)
	}
	return c, nil
}

// accumulate adds the contribution of every column to dst[lo:hi]. It stops
// before the next block or tail column once ctx is done.
func accumulate[T Element](ctx context.Context, dst []float64, m Matrix[T], w []float64, unroll, lo, hi int) error {
	rows, cols := m.Rows(), m.Cols()
	out := dst[lo:hi]

	j := 0
	if unroll > 1 {
		body := blockBody[T](unroll)
		var block [MaxUnroll][]T
		for ; j+unroll <= cols; j += unroll {
			if err := ctx.Err(); err != nil {
				return err
			}
			// Resolve the block's columns once, not once per row.
			for k := 0; k < unroll; k++ {
				c, err := column(m, j+k, rows)
				if err != nil {
					return err
				}
				block[k] = c[lo:hi]
			}
			body(out, block[:unroll], w[j:j+unroll])
		}
	}

	for ; j < cols; j++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, err := column(m, j, rows)
		if err != nil {
			return err
		}
		accumulateColumn(out, c[lo:hi], w[j])
	}
	return nil
}
