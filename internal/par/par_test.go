package par

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestForVisitsEveryIndexOnce(t *testing.T) {
	for _, n := range []int{0, 1, 255, 256, 257, 10000} {
		for _, workers := range []int{0, 1, 3} {
			hits := make([]int32, n)
			err := For(context.Background(), n, workers, func(i int) error {
				atomic.AddInt32(&hits[i], 1)
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
			for i, h := range hits {
				if h != 1 {
					t.Fatalf("n=%d workers=%d: index %d visited %d times", n, workers, i, h)
				}
			}
		}
	}
}

func TestForChunkRanges(t *testing.T) {
	const n = 5000
	var covered atomic.Int64
	err := ForChunk(context.Background(), n, 4, func(start, end int) error {
		if start < 0 || end > n || start >= end {
			return errors.New("bad range")
		}
		covered.Add(int64(end - start))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if covered.Load() != n {
		t.Errorf("covered %d indices, want %d", covered.Load(), n)
	}
}

func TestForError(t *testing.T) {
	errStop := errors.New("stop")
	err := For(context.Background(), 10000, 4, func(i int) error {
		if i == 5000 {
			return errStop
		}
		return nil
	})
	if !errors.Is(err, errStop) {
		t.Fatalf("got %v, want %v", err, errStop)
	}
}

func TestForCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	err := For(ctx, 10000, 4, func(i int) error {
		calls.Add(1)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if calls.Load() != 0 {
		t.Errorf("canceled loop ran %d calls", calls.Load())
	}
}

func TestWorkers(t *testing.T) {
	if Workers(3) != 3 {
		t.Error("explicit worker count not kept")
	}
	if Workers(0) < 1 || Workers(-1) < 1 {
		t.Error("default worker count must be positive")
	}
}
