//go:build !noasm

package kernels

import "golang.org/x/sys/cpu"

// Vector width flags. The kernel is pure Go; the flags only steer the unroll
// factor towards what the compiler can keep in registers.
var (
	hasAVX2   = cpu.X86.HasAVX2
	hasAVX512 = cpu.X86.HasAVX512F
)

// preferredUnroll returns 16 with AVX-512 (32 vector registers), 8 with AVX2
// and 2 on plain SSE2.
func preferredUnroll() int {
	switch {
	case hasAVX512:
		return 16
	case hasAVX2:
		return 8
	default:
		return 2
	}
}
