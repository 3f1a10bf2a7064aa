// Package voxel rasterizes point sampled vector fields into sparse voxel
// grids and samples sparse and dense voxel volumes.
package voxel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/internal/d3"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/internal/par"
	"gonum.org/v1/gonum/spatial/r3"
)

const numShards = 64

type shard struct {
	mu    sync.Mutex
	slots map[fluid.V3i]int32
}

// Grid is a sparse voxel grid holding the average of the vector samples
// rasterized into each voxel. Voxel k is centered at k*VoxelSize. Voxels
// no sample fell into hold no data. A Grid is immutable once built and
// safe for concurrent sampling.
type Grid struct {
	voxelSize float64
	shards    [numShards]shard
	values    []r3.Vec
	counts    []int32
	bounds    d3.Box // index space bounds of populated voxels
}

func (g *Grid) shardOf(k fluid.V3i) *shard {
	return &g.shards[k.Hash()&(numShards-1)]
}

// Rasterize accumulates values[i] into the voxel nearest to points[i]
// and finalizes every populated voxel to the mean of its samples.
// Points are processed concurrently; voxel slots are claimed under shard
// locks and accumulated with atomic adds.
func Rasterize(ctx context.Context, points, values []r3.Vec, voxelSize float64, workers int) (*Grid, error) {
	if err := fluid.CheckField(len(points), values); err != nil {
		return nil, err
	}
	if !(voxelSize > 0) || math.IsInf(voxelSize, 0) {
		return nil, fmt.Errorf("invalid voxel size %g", voxelSize)
	}
	g := &Grid{voxelSize: voxelSize, bounds: d3.EmptyBox()}
	for i := range g.shards {
		g.shards[i].slots = make(map[fluid.V3i]int32)
	}
	keys := make([]fluid.V3i, len(points))
	slots := make([]int32, len(points))
	var next atomic.Int32
	// Claim pass: the first writer of a voxel allocates its slot.
	err := par.For(ctx, len(points), workers, func(i int) error {
		if !d3.IsFinite(points[i]) {
			return fmt.Errorf("point %d is not finite: %v", i, points[i])
		}
		k := fluid.RoundV3(g.WorldToIndex(points[i]))
		sh := g.shardOf(k)
		sh.mu.Lock()
		slot, ok := sh.slots[k]
		if !ok {
			slot = next.Add(1) - 1
			sh.slots[k] = slot
		}
		sh.mu.Unlock()
		keys[i] = k
		slots[i] = slot
		return nil
	})
	if err != nil {
		return nil, err
	}
	n := int(next.Load())
	sums := make([]uint64, 3*n) // float64 bits
	g.counts = make([]int32, n)
	err = par.For(ctx, len(points), workers, func(i int) error {
		s := int(slots[i])
		v := values[i]
		atomicAddFloat64(&sums[3*s], v.X)
		atomicAddFloat64(&sums[3*s+1], v.Y)
		atomicAddFloat64(&sums[3*s+2], v.Z)
		atomic.AddInt32(&g.counts[s], 1)
		return nil
	})
	if err != nil {
		return nil, err
	}
	g.values = make([]r3.Vec, n)
	for s := range g.values {
		c := float64(g.counts[s])
		if c == 0 {
			return nil, errors.New("voxel slot claimed without samples")
		}
		g.values[s] = r3.Vec{
			X: math.Float64frombits(sums[3*s]) / c,
			Y: math.Float64frombits(sums[3*s+1]) / c,
			Z: math.Float64frombits(sums[3*s+2]) / c,
		}
	}
	for _, k := range keys {
		g.bounds = g.bounds.Include(k.ToV3())
	}
	return g, nil
}

func atomicAddFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		sum := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(addr, old, sum) {
			return
		}
	}
}

// VoxelSize returns the edge length of a voxel in world units.
func (g *Grid) VoxelSize() float64 { return g.voxelSize }

// Len returns the number of populated voxels.
func (g *Grid) Len() int { return len(g.values) }

// IndexBounds returns the index space box of the populated voxels.
func (g *Grid) IndexBounds() d3.Box { return g.bounds }

// WorldToIndex maps a world position to continuous index coordinates.
func (g *Grid) WorldToIndex(p r3.Vec) r3.Vec {
	return r3.Scale(1/g.voxelSize, p)
}

// Voxel returns the averaged value stored at voxel k.
func (g *Grid) Voxel(k fluid.V3i) (r3.Vec, bool) {
	s, ok := g.shardOf(k).slots[k]
	if !ok {
		return r3.Vec{}, false
	}
	return g.values[s], true
}

// Count returns the number of samples rasterized into voxel k.
func (g *Grid) Count(k fluid.V3i) int {
	s, ok := g.shardOf(k).slots[k]
	if !ok {
		return 0
	}
	return int(g.counts[s])
}

// Sample interpolates the grid at world position p. It reports false when
// the voxel nearest to p holds no data. The value is the trilinear blend
// of the populated voxels among the 8 surrounding p; weights of empty
// voxels are dropped and the rest renormalized so that missing data never
// reads as zero.
func (g *Grid) Sample(p r3.Vec) (r3.Vec, bool) {
	idx := g.WorldToIndex(p)
	if _, ok := g.Voxel(fluid.RoundV3(idx)); !ok {
		return r3.Vec{}, false
	}
	base := fluid.FloorV3(idx)
	frac := r3.Sub(idx, base.ToV3())
	var acc r3.Vec
	var wsum float64
	for c := 0; c < 8; c++ {
		off := fluid.V3i{c & 1, (c >> 1) & 1, (c >> 2) & 1}
		v, ok := g.Voxel(base.Add(off))
		if !ok {
			continue
		}
		w := lerpWeight(frac.X, off[0]) * lerpWeight(frac.Y, off[1]) * lerpWeight(frac.Z, off[2])
		acc = r3.Add(acc, r3.Scale(w, v))
		wsum += w
	}
	// The nearest voxel is populated and weighs at least 1/8.
	return r3.Scale(1/wsum, acc), true
}

func lerpWeight(t float64, side int) float64 {
	if side == 0 {
		return 1 - t
	}
	return t
}
