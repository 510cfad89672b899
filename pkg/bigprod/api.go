// Package bigprod provides a high-level API for multiplying stored matrices by
// a vector.
package bigprod

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lth/bigprod/internal/bigmat"
	"github.com/lth/bigprod/internal/kernels"
	"github.com/lth/bigprod/internal/metrics"
)

// ErrInvalidArgument is returned when the weight vector does not match the
// matrix, the unroll factor is unsupported, or the matrix has been closed.
var ErrInvalidArgument = kernels.ErrInvalidArgument

// Options configures a Matrix
type Options struct {
	// Unroll is the number of columns accumulated per block: 1, 2, 4, 8, 16
	// or 32. Zero picks a factor suited to the host CPU, which makes results
	// machine dependent.
	//
	// Default: 8
	Unroll int

	// Workers caps the number of goroutines a single product may use. Rows
	// are split into contiguous shards of at least kernels.MinRowsPerWorker,
	// and the result is bit-identical to the single-goroutine one.
	//
	// Default: 1
	Workers int

	// LoadIntoRAM copies the matrix onto the heap instead of serving columns
	// from a shared read-only mapping.
	LoadIntoRAM bool

	// Logger receives debug output for every product. Default: zap.NewNop().
	Logger *zap.Logger

	// Metrics, when set, records every product.
	Metrics *metrics.Recorder
}

// Option is a functional option for configuring a Matrix
type Option func(*Options)

// WithUnroll sets the unroll factor
func WithUnroll(u int) Option {
	return func(o *Options) {
		o.Unroll = u
	}
}

// WithWorkers sets the maximum number of goroutines per product
func WithWorkers(k int) Option {
	return func(o *Options) {
		o.Workers = k
	}
}

// WithLoadIntoRAM copies the matrix into memory instead of mapping it
func WithLoadIntoRAM(load bool) Option {
	return func(o *Options) {
		o.LoadIntoRAM = load
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *Options) {
		o.Metrics = r
	}
}

// multiplyFunc is a kernels.Multiply call bound to a typed view.
type multiplyFunc func(w []float64, opts ...kernels.Option) ([]float64, error)

// Matrix is an opened matrix file. It is safe for concurrent use.
type Matrix struct {
	file     *bigmat.File
	multiply multiplyFunc
	options  Options
	log      *zap.Logger
}

// Open opens the matrix file at path.
func Open(path string, opts ...Option) (*Matrix, error) {
	options := Options{
		Unroll:  kernels.DefaultConfig.Unroll,
		Workers: kernels.DefaultConfig.Workers,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Unroll == 0 {
		options.Unroll = kernels.DefaultUnroll()
	}
	if !kernels.SupportedUnroll(options.Unroll) {
		return nil, errors.Wrapf(ErrInvalidArgument, "unsupported unroll factor %d", options.Unroll)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}

	var (
		file *bigmat.File
		err  error
	)
	if options.LoadIntoRAM {
		file, err = bigmat.Load(path)
	} else {
		file, err = bigmat.Open(path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "open matrix")
	}

	multiply, err := bindFile(file)
	if err != nil {
		file.Close()
		return nil, err
	}

	log := options.Logger.With(zap.String("path", path))
	log.Debug("opened matrix",
		zap.Stringer("dtype", file.DType()),
		zap.Int("rows", file.Rows()),
		zap.Int("cols", file.Cols()),
		zap.Bool("mapped", file.Mapped()),
		zap.Int("unroll", options.Unroll),
		zap.Int("workers", options.Workers),
	)

	return &Matrix{
		file:     file,
		multiply: multiply,
		options:  options,
		log:      log,
	}, nil
}

// bindFile picks the typed view matching the stored element type.
func bindFile(f *bigmat.File) (multiplyFunc, error) {
	switch f.DType() {
	case bigmat.DTypeI8:
		return bind[int8](f.Int8())
	case bigmat.DTypeU8:
		return bind[uint8](f.Uint8())
	case bigmat.DTypeI16:
		return bind[int16](f.Int16())
	case bigmat.DTypeI32:
		return bind[int32](f.Int32())
	case bigmat.DTypeF16:
		return bind[float32](f.Float16())
	case bigmat.DTypeF32:
		return bind[float32](f.Float32())
	case bigmat.DTypeF64:
		return bind[float64](f.Float64())
	}
	return nil, errors.AssertionFailedf("unhandled dtype %s", f.DType())
}

func bind[T kernels.Element, M kernels.Matrix[T]](m M, err error) (multiplyFunc, error) {
	if err != nil {
		return nil, err
	}
	return func(w []float64, opts ...kernels.Option) ([]float64, error) {
		return kernels.Multiply[T](m, w, opts...)
	}, nil
}

// Multiply returns the product of the matrix with w. len(w) must equal Cols().
func (m *Matrix) Multiply(w []float64) ([]float64, error) {
	return m.MultiplyUnroll(m.options.Unroll, w)
}

// MultiplyUnroll is Multiply with an explicit unroll factor, overriding the
// one the Matrix was opened with.
func (m *Matrix) MultiplyUnroll(unroll int, w []float64) ([]float64, error) {
	if unroll == 0 {
		unroll = kernels.DefaultUnroll()
	}
	start := time.Now()
	result, err := m.multiply(w,
		kernels.WithUnroll(unroll),
		kernels.WithWorkers(m.options.Workers),
	)
	elapsed := time.Since(start)

	m.options.Metrics.Observe(unroll, m.file.DType().String(), m.file.Rows(), m.file.Cols(), elapsed, err)
	if err != nil {
		m.log.Debug("product failed", zap.Int("unroll", unroll), zap.Error(err))
		return nil, err
	}
	m.log.Debug("product",
		zap.Int("unroll", unroll),
		zap.Duration("elapsed", elapsed),
	)
	return result, nil
}

// Rows returns the number of rows, which is the length of every result.
func (m *Matrix) Rows() int { return m.file.Rows() }

// Cols returns the number of columns, which is the required weight length.
func (m *Matrix) Cols() int { return m.file.Cols() }

// DType returns the stored element type.
func (m *Matrix) DType() bigmat.DType { return m.file.DType() }

// Mapped reports whether columns are read from a memory mapping.
func (m *Matrix) Mapped() bool { return m.file.Mapped() }

// Unroll returns the unroll factor Multiply uses.
func (m *Matrix) Unroll() int { return m.options.Unroll }

// Close releases the matrix file
func (m *Matrix) Close() error {
	return m.file.Close()
}
