package kernels

import (
	"fmt"
	"runtime"
	"testing"
)

// BenchmarkMultiplyUnroll compares the unroll factors on int8 columns, the
// element type big on-disk matrices are usually stored in.
func BenchmarkMultiplyUnroll(b *testing.B) {
	configs := []struct {
		name       string
		rows, cols int
	}{
		{"Small_1024x64", 1024, 64},
		{"Tall_65536x64", 65536, 64},
		{"Wide_1024x4096", 1024, 4096},
		{"Remainder_4096x1031", 4096, 1031},
	}

	for _, cfg := range configs {
		data := make([]int8, cfg.rows*cfg.cols)
		for i := range data {
			data[i] = int8(i%255 - 127)
		}
		w := make([]float64, cfg.cols)
		for j := range w {
			w[j] = float64(j%100) * 0.01
		}
		d, err := NewDense(cfg.rows, cfg.cols, data)
		if err != nil {
			b.Fatal(err)
		}

		for _, u := range allUnrolls {
			b.Run(fmt.Sprintf("%s/unroll=%d", cfg.name, u), func(b *testing.B) {
				b.SetBytes(int64(len(data)))
				b.ReportAllocs()
				for b.Loop() {
					if _, err := Multiply[int8](d, w, WithUnroll(u)); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

// BenchmarkMultiplyWorkers measures row sharding on a tall matrix.
func BenchmarkMultiplyWorkers(b *testing.B) {
	const rows, cols = 1 << 18, 128
	data := make([]float32, rows*cols)
	for i := range data {
		data[i] = float32(i%100) * 0.01
	}
	w := make([]float64, cols)
	for j := range w {
		w[j] = 1
	}
	d, err := NewDense(rows, cols, data)
	if err != nil {
		b.Fatal(err)
	}

	for _, workers := range []int{1, 2, 4, runtime.GOMAXPROCS(0)} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			b.SetBytes(int64(len(data) * 4))
			b.ReportAllocs()
			for b.Loop() {
				if _, err := Multiply[float32](d, w, WithWorkers(workers)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
