package kernels

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// MinRowsPerWorker is the smallest row shard worth handing to its own
// goroutine. Below it the spawn cost dominates the column walk.
const MinRowsPerWorker = 1024

// shardCount caps the requested worker count so that each shard has at least
// MinRowsPerWorker rows.
func shardCount(rows, workers int) int {
	if workers < 2 {
		return 1
	}
	return max(1, min(workers, rows/MinRowsPerWorker))
}

// accumulateParallel splits the row range into contiguous shards. Each row is
// still accumulated in exactly the same order as in the serial walk, so the
// result does not depend on the number of workers. The first failing shard
// cancels the others at their next block boundary.
func accumulateParallel[T Element](dst []float64, m Matrix[T], w []float64, unroll, workers int) error {
	n := len(dst)
	chunk := (n + workers - 1) / workers

	g, ctx := errgroup.WithContext(context.Background())
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			return accumulate(ctx, dst, m, w, unroll, lo, hi)
		})
	}
	return g.Wait()
}
