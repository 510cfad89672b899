//go:build linux || darwin || freebsd

package bigmat

import (
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// lockShared takes a non-blocking shared flock on f.
func lockShared(f *os.File) error {
	return flock(f, unix.LOCK_SH|unix.LOCK_NB)
}

// lockExclusive takes a non-blocking exclusive flock on f.
func lockExclusive(f *os.File) error {
	return flock(f, unix.LOCK_EX|unix.LOCK_NB)
}

func unlock(f *os.File) error {
	return flock(f, unix.LOCK_UN)
}

func flock(f *os.File, how int) error {
	for {
		err := unix.Flock(int(f.Fd()), how)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EWOULDBLOCK):
			return ErrLocked
		default:
			return errors.Wrap(err, "flock")
		}
	}
}
