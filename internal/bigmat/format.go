// Package bigmat stores large column-major matrices in files or shared-memory
// segments and exposes their columns, zero-copy, to the kernels package.
//
// File layout (little-endian):
//
//	offset  size  field
//	0       4     magic "BMAT"
//	4       2     version (1)
//	6       2     dtype
//	8       8     rows
//	16      8     cols
//	24      8     reserved, zero
//	32      ...   column 0, column 1, ... each rows*dtype.Size() bytes
//
// The payload starts at a 32-byte boundary, so every column of an aligned
// mapping is aligned for its element type.
package bigmat

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/lth/bigprod/internal/kernels"
)

// Format constants
const (
	Version    = 1
	HeaderSize = 32
)

var magic = [4]byte{'B', 'M', 'A', 'T'}

var byteOrder = binary.LittleEndian

var (
	// ErrCorrupt marks files whose header or length is inconsistent.
	ErrCorrupt = errors.New("bigmat: corrupt matrix file")

	// ErrClosed is returned when a column of a closed matrix is requested.
	// It is also an invalid argument from the kernel's point of view.
	ErrClosed = errors.Mark(errors.New("bigmat: matrix is closed"), kernels.ErrInvalidArgument)

	// ErrColumnRange is returned for a column index outside [0, cols).
	ErrColumnRange = errors.Mark(errors.New("bigmat: column out of range"), kernels.ErrInvalidArgument)

	// ErrLocked is returned when another handle holds a conflicting lock on
	// the same file: a writer excludes readers and vice versa.
	ErrLocked = errors.New("bigmat: matrix is locked by another handle")
)

// DType is the element type of a stored matrix.
type DType uint16

const (
	DTypeI8  DType = 0
	DTypeU8  DType = 1
	DTypeI16 DType = 2
	DTypeI32 DType = 3
	DTypeF16 DType = 4
	DTypeF32 DType = 5
	DTypeF64 DType = 6
)

var dtypeNames = map[DType]string{
	DTypeI8:  "I8",
	DTypeU8:  "U8",
	DTypeI16: "I16",
	DTypeI32: "I32",
	DTypeF16: "F16",
	DTypeF32: "F32",
	DTypeF64: "F64",
}

// String returns the name of the data type
func (d DType) String() string {
	if name, ok := dtypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint16(d))
}

// Size returns the size of one element in bytes, or 0 for unknown types.
func (d DType) Size() int {
	switch d {
	case DTypeI8, DTypeU8:
		return 1
	case DTypeI16, DTypeF16:
		return 2
	case DTypeI32, DTypeF32:
		return 4
	case DTypeF64:
		return 8
	default:
		return 0
	}
}

// Valid reports whether d is a known data type.
func (d DType) Valid() bool {
	return d.Size() > 0
}

// ParseDType parses a data type name such as "i8" or "F32".
func ParseDType(s string) (DType, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for d, name := range dtypeNames {
		if name == upper {
			return d, nil
		}
	}
	return 0, errors.Newf("bigmat: unknown dtype %q", s)
}

// Header describes a stored matrix.
type Header struct {
	Version uint16
	DType   DType
	Rows    int
	Cols    int
}

// ColumnSize returns the size of one column in bytes.
func (h Header) ColumnSize() int {
	return h.Rows * h.DType.Size()
}

// PayloadSize returns the size of all columns in bytes.
func (h Header) PayloadSize() int64 {
	return int64(h.Cols) * int64(h.ColumnSize())
}

// FileSize returns the minimum length of a file holding the matrix.
func (h Header) FileSize() int64 {
	return HeaderSize + h.PayloadSize()
}

// fileHeader is the on-disk encoding of Header.
type fileHeader struct {
	Magic   [4]byte
	Version uint16
	DType   uint16
	Rows    uint64
	Cols    uint64
	_       [8]byte
}

// validateShape checks dimensions and dtype and that the payload fits in an
// int on this platform.
func validateShape(dtype DType, rows, cols int) error {
	if !dtype.Valid() {
		return errors.Wrapf(kernels.ErrInvalidArgument, "unknown dtype %d", dtype)
	}
	if rows < 0 || cols < 0 {
		return errors.Wrapf(kernels.ErrInvalidArgument, "negative dimensions %dx%d", rows, cols)
	}
	if _, ok := payloadSize(dtype, uint64(rows), uint64(cols)); !ok {
		return errors.Wrapf(kernels.ErrInvalidArgument, "%dx%d %s matrix is too large", rows, cols, dtype)
	}
	return nil
}

// payloadSize computes rows*cols*size, reporting false on overflow of the
// platform int or when either dimension exceeds maxDim.
func payloadSize(dtype DType, rows, cols uint64) (int, bool) {
	if rows > maxDim || cols > maxDim {
		return 0, false
	}
	hi, elems := bits.Mul64(rows, cols)
	if hi != 0 {
		return 0, false
	}
	hi, size := bits.Mul64(elems, uint64(dtype.Size()))
	if hi != 0 || size > uint64(maxInt-HeaderSize) {
		return 0, false
	}
	return int(size), true
}

const maxInt = int(^uint(0) >> 1)

// maxDim bounds rows and cols so that a float64 vector of either length, the
// product result or the weights, fits in an int.
const maxDim = uint64(maxInt / 8)

func encodeHeader(dst []byte, h Header) error {
	fh := fileHeader{
		Magic:   magic,
		Version: Version,
		DType:   uint16(h.DType),
		Rows:    uint64(h.Rows),
		Cols:    uint64(h.Cols),
	}
	_, err := binary.Encode(dst[:HeaderSize], byteOrder, &fh)
	return err
}

// decodeHeader parses and validates the header at the start of data and
// checks that data is long enough to hold the payload.
func decodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, errors.Wrapf(ErrCorrupt, "file too small for header: %d bytes", len(data))
	}

	var fh fileHeader
	if _, err := binary.Decode(data[:HeaderSize], byteOrder, &fh); err != nil {
		return Header{}, errors.Mark(errors.Wrap(err, "decode header"), ErrCorrupt)
	}
	if fh.Magic != magic {
		return Header{}, errors.Wrapf(ErrCorrupt, "invalid magic: %q", fh.Magic[:])
	}
	if fh.Version != Version {
		return Header{}, errors.Wrapf(ErrCorrupt, "unsupported version: %d", fh.Version)
	}
	dtype := DType(fh.DType)
	if !dtype.Valid() {
		return Header{}, errors.Wrapf(ErrCorrupt, "unknown dtype: %d", fh.DType)
	}
	if fh.Rows > uint64(maxInt) || fh.Cols > uint64(maxInt) {
		return Header{}, errors.Wrapf(ErrCorrupt, "dimensions %dx%d out of range", fh.Rows, fh.Cols)
	}
	size, ok := payloadSize(dtype, fh.Rows, fh.Cols)
	if !ok {
		return Header{}, errors.Wrapf(ErrCorrupt, "%dx%d %s matrix is too large", fh.Rows, fh.Cols, dtype)
	}
	if len(data)-HeaderSize < size {
		return Header{}, errors.Wrapf(ErrCorrupt, "payload truncated: have %d bytes, want %d",
			len(data)-HeaderSize, size)
	}

	return Header{
		Version: fh.Version,
		DType:   dtype,
		Rows:    int(fh.Rows),
		Cols:    int(fh.Cols),
	}, nil
}

// columnRange returns the byte range of column j.
func columnRange(h Header, j int) (start, end int) {
	size := h.ColumnSize()
	start = HeaderSize + j*size
	return start, start + size
}
