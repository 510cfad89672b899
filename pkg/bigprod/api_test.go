package bigprod

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lth/bigprod/internal/bigmat"
	"github.com/lth/bigprod/internal/metrics"
)

// writeScenario stores the 3×3 matrix with columns [1,2,3], [4,5,6], [7,8,9].
func writeScenario(t *testing.T, dtype bigmat.DType) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.bmat")
	w, err := bigmat.Create(path, dtype, 3, 3)
	require.NoError(t, err)
	for j := 0; j < 3; j++ {
		col := []float64{float64(3*j + 1), float64(3*j + 2), float64(3*j + 3)}
		require.NoError(t, w.SetColumn(j, col))
	}
	require.NoError(t, w.Close())
	return path
}

func TestMultiplyEveryDType(t *testing.T) {
	dtypes := []bigmat.DType{
		bigmat.DTypeI8, bigmat.DTypeU8, bigmat.DTypeI16, bigmat.DTypeI32,
		bigmat.DTypeF16, bigmat.DTypeF32, bigmat.DTypeF64,
	}
	for _, dtype := range dtypes {
		for _, ram := range []bool{false, true} {
			name := dtype.String()
			if ram {
				name += "/ram"
			}
			t.Run(name, func(t *testing.T) {
				path := writeScenario(t, dtype)
				m, err := Open(path, WithLoadIntoRAM(ram))
				require.NoError(t, err)
				defer m.Close()

				require.Equal(t, 3, m.Rows())
				require.Equal(t, 3, m.Cols())
				require.Equal(t, dtype, m.DType())
				require.Equal(t, !ram, m.Mapped())

				for _, unroll := range []int{1, 2, 4, 8, 16, 32} {
					got, err := m.MultiplyUnroll(unroll, []float64{1, 0, 1})
					require.NoError(t, err)
					require.Equal(t, []float64{8, 10, 12}, got, "unroll %d", unroll)
				}
			})
		}
	}
}

func TestOpenOptions(t *testing.T) {
	path := writeScenario(t, bigmat.DTypeF64)

	m, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, 8, m.Unroll())
	require.NoError(t, m.Close())

	m, err = Open(path, WithUnroll(0))
	require.NoError(t, err)
	require.NotZero(t, m.Unroll())
	require.NoError(t, m.Close())

	_, err = Open(path, WithUnroll(3))
	require.True(t, errors.Is(err, ErrInvalidArgument), "got %v", err)

	_, err = Open(filepath.Join(t.TempDir(), "missing.bmat"))
	require.Error(t, err)
}

func TestMultiplyErrors(t *testing.T) {
	path := writeScenario(t, bigmat.DTypeI32)
	m, err := Open(path)
	require.NoError(t, err)

	got, err := m.Multiply([]float64{1, 2})
	require.True(t, errors.Is(err, ErrInvalidArgument), "got %v", err)
	require.Nil(t, got)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	_, err = m.Multiply([]float64{1, 0, 1})
	require.True(t, errors.Is(err, ErrInvalidArgument), "got %v", err)
	require.True(t, errors.Is(err, bigmat.ErrClosed), "got %v", err)
}

func TestMultiplyRecordsMetrics(t *testing.T) {
	path := writeScenario(t, bigmat.DTypeI8)
	rec := metrics.NewRecorder()
	m, err := Open(path, WithMetrics(rec), WithUnroll(2))
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Multiply([]float64{1, 1, 1})
	require.NoError(t, err)
	_, err = m.Multiply([]float64{1})
	require.Error(t, err)

	require.Equal(t, 2, mustGatherAndCount(t, rec))
}

func TestMultiplyLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	path := writeScenario(t, bigmat.DTypeF32)
	m, err := Open(path, WithLogger(zap.New(core)), WithWorkers(4))
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Multiply([]float64{1, 0, 1})
	require.NoError(t, err)

	require.Equal(t, 1, logs.FilterMessage("opened matrix").Len())
	entries := logs.FilterMessage("product").All()
	require.Len(t, entries, 1)
	require.Equal(t, path, entries[0].ContextMap()["path"])
	require.Equal(t, int64(8), entries[0].ContextMap()["unroll"])
}

func mustGatherAndCount(t *testing.T, rec *metrics.Recorder) int {
	t.Helper()
	n, err := testutil.GatherAndCount(rec.Registry(), "bigprod_products_total")
	require.NoError(t, err)
	return n
}
