// Package multimap implements the two-pass count-then-fill build shared by
// face deduplication, output compaction and vertex compression.
//
// Every build runs a user supplied source twice over the same items: the
// first pass only counts, the second writes into exactly sized storage.
// Sources must therefore emit the same entries on both passes.
package multimap

import (
	"context"
	"fmt"
	"sync/atomic"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/internal/par"
)

// Map is an immutable bucketed multimap. Entries of a bucket are stored
// contiguously, in unspecified order.
type Map[K comparable, V any] struct {
	offsets []int32 // len(buckets)+1, prefix sum of bucket sizes.
	keys    []K
	vals    []V
}

// Inserter receives the entries emitted by a Build source.
type Inserter[K comparable, V any] struct {
	m      *Map[K, V]
	counts []int32
	fill   bool
	err    error
}

// Insert adds an entry to the bucket hash%buckets. hash must be the same
// on both passes for the same entry.
func (in *Inserter[K, V]) Insert(key K, hash uint32, val V) {
	b := int(hash % uint32(len(in.counts)))
	c := atomic.AddInt32(&in.counts[b], 1) - 1
	if !in.fill {
		return
	}
	start, end := in.m.offsets[b], in.m.offsets[b+1]
	slot := start + c
	if slot >= end {
		if in.err == nil {
			in.err = fmt.Errorf("%w: bucket %d holds %d entries, fill wrote entry %d", fluid.ErrHashCapacityExceeded, b, end-start, c)
		}
		return
	}
	in.m.keys[slot] = key
	in.m.vals[slot] = val
}

// Config parametrizes Build.
type Config struct {
	Buckets int // number of hash buckets, at least 1
	Workers int // goroutine limit, 0 uses all CPUs
}

// Build calls source for every item in [0,n) once to count entries per
// bucket, computes the bucket offsets and calls it again to fill the
// buckets. The second pass starts only after the first finished. Entry
// order inside a bucket is unspecified.
func Build[K comparable, V any](ctx context.Context, n int, cfg Config, source func(i int, in *Inserter[K, V]) error) (*Map[K, V], error) {
	if cfg.Buckets < 1 {
		return nil, fluid.ErrMsg("multimap needs at least one bucket")
	}
	m := &Map[K, V]{offsets: make([]int32, cfg.Buckets+1)}
	counts := make([]int32, cfg.Buckets)
	err := par.ForChunk(ctx, n, cfg.Workers, func(start, end int) error {
		in := Inserter[K, V]{m: m, counts: counts}
		for i := start; i < end; i++ {
			if err := source(i, &in); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for b, c := range counts {
		m.offsets[b+1] = m.offsets[b] + c
		counts[b] = 0 // Reused as write cursor.
	}
	total := m.offsets[cfg.Buckets]
	m.keys = make([]K, total)
	m.vals = make([]V, total)
	err = par.ForChunk(ctx, n, cfg.Workers, func(start, end int) error {
		in := Inserter[K, V]{m: m, counts: counts, fill: true}
		for i := start; i < end; i++ {
			if err := source(i, &in); err != nil {
				return err
			}
			if in.err != nil {
				return in.err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for b, c := range counts {
		if want := m.offsets[b+1] - m.offsets[b]; c != want {
			return nil, fmt.Errorf("%w: bucket %d filled %d of %d entries", fluid.ErrHashCapacityExceeded, b, c, want)
		}
	}
	return m, nil
}

// Buckets returns the number of buckets.
func (m *Map[K, V]) Buckets() int { return len(m.offsets) - 1 }

// Len returns the number of entries.
func (m *Map[K, V]) Len() int { return len(m.keys) }

// BucketOf returns the bucket an entry with the given hash lives in.
func (m *Map[K, V]) BucketOf(hash uint32) int {
	return int(hash % uint32(m.Buckets()))
}

// Bucket returns the keys and values stored in the bucket of hash. The
// returned slices alias the map storage.
func (m *Map[K, V]) Bucket(hash uint32) ([]K, []V) {
	b := m.BucketOf(hash)
	start, end := m.offsets[b], m.offsets[b+1]
	return m.keys[start:end:end], m.vals[start:end:end]
}

// Count returns the number of entries stored under key.
func (m *Map[K, V]) Count(key K, hash uint32) int {
	keys, _ := m.Bucket(hash)
	n := 0
	for _, k := range keys {
		if k == key {
			n++
		}
	}
	return n
}

// Lookup returns the value of the first entry stored under key.
func (m *Map[K, V]) Lookup(key K, hash uint32) (v V, ok bool) {
	keys, vals := m.Bucket(hash)
	for i, k := range keys {
		if k == key {
			return vals[i], true
		}
	}
	return v, false
}
