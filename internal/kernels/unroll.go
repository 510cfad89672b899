package kernels

// MaxUnroll is the largest supported unroll factor.
const MaxUnroll = 32

// blockFunc adds one block of len(cols) columns to dst. Every column in cols
// has at least len(dst) values and len(w) == len(cols).
type blockFunc[T Element] func(dst []float64, cols [][]T, w []float64)

// blockBody picks the block body for an unroll factor. 2, 8 and 16 are written
// out by hand; every other factor goes through blockTree, which produces the
// same bits for those three.
func blockBody[T Element](unroll int) blockFunc[T] {
	switch unroll {
	case 2:
		return block2[T]
	case 8:
		return block8[T]
	case 16:
		return block16[T]
	default:
		return blockTree[T]
	}
}

// Products are wrapped in an explicit float64 conversion throughout. The
// conversion forces rounding, so the compiler may not fuse a product with the
// following addition and results stay identical across architectures.

func accumulateColumn[T Element](dst []float64, col []T, w float64) {
	col = col[:len(dst)]
	for i, v := range col {
		dst[i] += float64(w * float64(v))
	}
}

func block2[T Element](dst []float64, cols [][]T, w []float64) {
	n := len(dst)
	c0, c1 := cols[0][:n], cols[1][:n]
	w0, w1 := w[0], w[1]
	for i := range dst {
		dst[i] += float64(w0*float64(c0[i])) + float64(w1*float64(c1[i]))
	}
}

func block8[T Element](dst []float64, cols [][]T, w []float64) {
	n := len(dst)
	c0, c1, c2, c3 := cols[0][:n], cols[1][:n], cols[2][:n], cols[3][:n]
	c4, c5, c6, c7 := cols[4][:n], cols[5][:n], cols[6][:n], cols[7][:n]
	w0, w1, w2, w3 := w[0], w[1], w[2], w[3]
	w4, w5, w6, w7 := w[4], w[5], w[6], w[7]
	for i := range dst {
		p0 := float64(w0 * float64(c0[i]))
		p1 := float64(w1 * float64(c1[i]))
		p2 := float64(w2 * float64(c2[i]))
		p3 := float64(w3 * float64(c3[i]))
		p4 := float64(w4 * float64(c4[i]))
		p5 := float64(w5 * float64(c5[i]))
		p6 := float64(w6 * float64(c6[i]))
		p7 := float64(w7 * float64(c7[i]))
		dst[i] += ((p0 + p1) + (p2 + p3)) + ((p4 + p5) + (p6 + p7))
	}
}

func block16[T Element](dst []float64, cols [][]T, w []float64) {
	n := len(dst)
	c0, c1, c2, c3 := cols[0][:n], cols[1][:n], cols[2][:n], cols[3][:n]
	c4, c5, c6, c7 := cols[4][:n], cols[5][:n], cols[6][:n], cols[7][:n]
	c8, c9, c10, c11 := cols[8][:n], cols[9][:n], cols[10][:n], cols[11][:n]
	c12, c13, c14, c15 := cols[12][:n], cols[13][:n], cols[14][:n], cols[15][:n]
	w0, w1, w2, w3 := w[0], w[1], w[2], w[3]
	w4, w5, w6, w7 := w[4], w[5], w[6], w[7]
	w8, w9, w10, w11 := w[8], w[9], w[10], w[11]
	w12, w13, w14, w15 := w[12], w[13], w[14], w[15]
	for i := range dst {
		p0 := float64(w0 * float64(c0[i]))
		p1 := float64(w1 * float64(c1[i]))
		p2 := float64(w2 * float64(c2[i]))
		p3 := float64(w3 * float64(c3[i]))
		p4 := float64(w4 * float64(c4[i]))
		p5 := float64(w5 * float64(c5[i]))
		p6 := float64(w6 * float64(c6[i]))
		p7 := float64(w7 * float64(c7[i]))
		p8 := float64(w8 * float64(c8[i]))
		p9 := float64(w9 * float64(c9[i]))
		p10 := float64(w10 * float64(c10[i]))
		p11 := float64(w11 * float64(c11[i]))
		p12 := float64(w12 * float64(c12[i]))
		p13 := float64(w13 * float64(c13[i]))
		p14 := float64(w14 * float64(c14[i]))
		p15 := float64(w15 * float64(c15[i]))
		dst[i] += (((p0 + p1) + (p2 + p3)) + ((p4 + p5) + (p6 + p7))) +
			(((p8 + p9) + (p10 + p11)) + ((p12 + p13) + (p14 + p15)))
	}
}

// blockTree handles any power-of-two block width up to MaxUnroll.
func blockTree[T Element](dst []float64, cols [][]T, w []float64) {
	var terms [MaxUnroll]float64
	u := len(cols)
	for i := range dst {
		for k := 0; k < u; k++ {
			terms[k] = float64(w[k] * float64(cols[k][i]))
		}
		dst[i] += pairwiseSum(terms[:u])
	}
}

// pairwiseSum reduces p (length a power of two) by adding neighbours level by
// level, overwriting p. p[0..1], p[2..3], ... first, then their sums, and so on.
func pairwiseSum(p []float64) float64 {
	for width := len(p); width > 1; width /= 2 {
		for k := 0; k < width/2; k++ {
			p[k] = p[2*k] + p[2*k+1]
		}
	}
	return p[0]
}
