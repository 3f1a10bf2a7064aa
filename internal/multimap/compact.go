package multimap

import (
	"context"
	"fmt"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/internal/par"
)

// Writer receives the output of one item of a Compact source. In the
// count pass it only counts.
type Writer[T any] struct {
	dst []T
	n   int
}

// Put appends v to the item's output range.
func (w *Writer[T]) Put(v T) {
	if w.n < len(w.dst) {
		w.dst[w.n] = v
	}
	w.n++
}

// Counting reports whether the writer is in the count pass. Sources may
// skip expensive value construction when it returns true.
func (w *Writer[T]) Counting() bool { return w.dst == nil }

// Compact runs source over [0,n) twice. The first pass records how many
// values each item produces, a prefix sum sizes the output exactly and
// the second pass writes each item's values into its reserved range.
// Output order follows item order, so equal input gives equal output.
// The returned offsets slice has n+1 entries: values of item i live in
// out[offsets[i]:offsets[i+1]].
func Compact[T any](ctx context.Context, n, workers int, source func(i int, w *Writer[T]) error) (out []T, offsets []int, err error) {
	counts := make([]int, n+1)
	err = par.For(ctx, n, workers, func(i int) error {
		var w Writer[T]
		if err := source(i, &w); err != nil {
			return err
		}
		counts[i+1] = w.n
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	for i := 1; i <= n; i++ {
		counts[i] += counts[i-1]
	}
	offsets = counts
	out = make([]T, offsets[n])
	err = par.For(ctx, n, workers, func(i int) error {
		start, end := offsets[i], offsets[i+1]
		if start == end {
			// Nothing reserved: run in count mode to detect disagreement.
			var w Writer[T]
			if err := source(i, &w); err != nil {
				return err
			}
			if w.n != 0 {
				return fmt.Errorf("%w: item %d wrote %d values into empty range", fluid.ErrHashCapacityExceeded, i, w.n)
			}
			return nil
		}
		w := Writer[T]{dst: out[start:end:end]}
		if err := source(i, &w); err != nil {
			return err
		}
		if w.n != end-start {
			return fmt.Errorf("%w: item %d wrote %d values, %d reserved", fluid.ErrHashCapacityExceeded, i, w.n, end-start)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, offsets, nil
}
