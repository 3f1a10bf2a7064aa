// Package par runs data-parallel loops over index ranges.
package par

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minChunk keeps per-goroutine work large enough to amortize scheduling.
const minChunk = 256

// Workers returns n if positive, else the number of usable CPUs.
func Workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

// For calls fn(i) for every i in [0,n) using at most workers goroutines.
// Indices are split in contiguous chunks. The first error returned by fn
// stops the scheduling of new chunks and is returned once all running
// chunks finish. For returns only after every call to fn has returned,
// which makes it a barrier between passes.
func For(ctx context.Context, n, workers int, fn func(i int) error) error {
	return ForChunk(ctx, n, workers, func(start, end int) error {
		for i := start; i < end; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	})
}

// ForChunk is like For but hands contiguous [start,end) ranges to fn.
func ForChunk(ctx context.Context, n, workers int, fn func(start, end int) error) error {
	if n <= 0 {
		return ctx.Err()
	}
	workers = Workers(workers)
	chunk := (n + 4*workers - 1) / (4 * workers)
	if chunk < minChunk {
		chunk = minChunk
	}
	if chunk >= n || workers == 1 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(0, n)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < n; start += chunk {
		if gctx.Err() != nil {
			break
		}
		start, end := start, min(start+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(start, end)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
