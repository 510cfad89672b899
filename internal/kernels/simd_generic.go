//go:build (!amd64 && !arm64) || noasm

package kernels

// preferredUnroll falls back to the smallest block on platforms without
// feature detection.
func preferredUnroll() int {
	return 2
}
