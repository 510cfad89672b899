package bigmat

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lth/bigprod/internal/kernels"
)

func TestSharedSegment(t *testing.T) {
	name := fmt.Sprintf("bigmat-test-%d", os.Getpid())
	t.Cleanup(func() { RemoveShared(name) })

	w, err := CreateShared(name, DTypeF32, 6, 3)
	require.NoError(t, err)
	for j := 0; j < 3; j++ {
		require.NoError(t, w.SetColumn(j, testColumn(j, 6)))
	}
	require.NoError(t, w.Close())

	f, err := OpenShared(name)
	require.NoError(t, err)
	defer f.Close()
	require.True(t, f.Mapped())

	v, err := f.Float32()
	require.NoError(t, err)
	got, err := kernels.Multiply[float32](v, []float64{1, -1, 2}, kernels.WithUnroll(2))
	require.NoError(t, err)

	want := make([]float64, 6)
	for j, wj := range []float64{1, -1, 2} {
		for i, x := range testColumn(j, 6) {
			want[i] += wj * x
		}
	}
	require.Equal(t, want, got)

	require.NoError(t, RemoveShared(name))
	require.NoError(t, RemoveShared(name), "removing twice is not an error")

	// The mapping outlives the name.
	c, err := v.Column(0)
	require.NoError(t, err)
	require.EqualValues(t, testColumn(0, 6)[0], c[0])
}

func TestSharedPathValidation(t *testing.T) {
	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		_, err := SharedPath(name)
		require.ErrorIs(t, err, kernels.ErrInvalidArgument, "name %q", name)
		_, err = OpenShared(name)
		require.ErrorIs(t, err, kernels.ErrInvalidArgument)
	}

	p, err := SharedPath("segment")
	require.NoError(t, err)
	require.Contains(t, p, SharedDir())
}
