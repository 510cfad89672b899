//go:build arm64 && !noasm

package kernels

import "golang.org/x/sys/cpu"

// SIMD support flags for ARM64
var (
	hasNEON = cpu.ARM64.HasASIMD // Advanced SIMD, always present on ARM64
	hasSVE  = cpu.ARM64.HasSVE
)

// preferredUnroll returns 16 with SVE, 8 with NEON.
func preferredUnroll() int {
	switch {
	case hasSVE:
		return 16
	case hasNEON:
		return 8
	default:
		return 2
	}
}
