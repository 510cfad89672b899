//go:build linux || darwin || freebsd

package bigmat

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterExcludesReaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.bmat")

	w, err := Create(path, DTypeI8, 8, 2)
	require.NoError(t, err)

	_, err = Open(path)
	require.ErrorIs(t, err, ErrLocked)
	_, err = Load(path)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, w.Close())

	r1, err := Open(path)
	require.NoError(t, err)
	r2, err := Open(path)
	require.NoError(t, err, "readers share the lock")

	_, err = Create(path, DTypeI8, 8, 2)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, r1.Close())
	require.NoError(t, r2.Close())

	w, err = Create(path, DTypeI8, 8, 2)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}
