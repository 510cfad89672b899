package bigmat

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/lth/bigprod/internal/kernels"
)

// shmDir is where shared segments live when the system provides a tmpfs for
// them.
const shmDir = "/dev/shm"

// SharedDir returns the directory holding shared-memory segments: /dev/shm
// when present, the temporary directory otherwise.
func SharedDir() string {
	if info, err := os.Stat(shmDir); err == nil && info.IsDir() {
		return shmDir
	}
	return os.TempDir()
}

// SharedPath returns the path of the named segment.
func SharedPath(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", errors.Wrapf(kernels.ErrInvalidArgument, "invalid segment name %q", name)
	}
	return filepath.Join(SharedDir(), name), nil
}

// CreateShared creates a named shared-memory segment holding a rows×cols
// matrix. Other processes can map it with OpenShared once the Writer is
// closed.
func CreateShared(name string, dtype DType, rows, cols int) (*Writer, error) {
	path, err := SharedPath(name)
	if err != nil {
		return nil, err
	}
	return Create(path, dtype, rows, cols)
}

// OpenShared maps a named shared-memory segment read-only.
func OpenShared(name string) (*File, error) {
	path, err := SharedPath(name)
	if err != nil {
		return nil, err
	}
	return Open(path)
}

// RemoveShared deletes a named segment. Existing mappings stay valid until
// they are closed.
func RemoveShared(name string) error {
	path, err := SharedPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "remove segment %s", name)
	}
	return nil
}
