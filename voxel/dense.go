package voxel

import (
	"fmt"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sample is a field value read from a dense volume.
type Sample struct {
	Velocity r3.Vec
	Pressure float64 // zero for 3 component volumes
}

// Dense is a dense voxel volume of float32 records with 3 (velocity) or
// 4 (velocity and pressure) components, x varying fastest. Voxel (i,j,k)
// is centered at Origin + (i,j,k)*VoxelSize.
type Dense struct {
	Dims       [3]int
	Components int
	Data       []float32
	Origin     r3.Vec
	VoxelSize  r3.Vec
	// Mask marks the voxels holding data, x fastest. Nil means all do.
	Mask []bool
}

// NewDense validates the layout of data and returns a volume over it.
func NewDense(dims [3]int, components int, data []float32, origin, voxelSize r3.Vec) (*Dense, error) {
	if components != 3 && components != 4 {
		return nil, fmt.Errorf("%w: dense volume with %d components", fluid.ErrUnsupportedElementType, components)
	}
	n := 1
	for _, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("invalid dense volume dimensions %v", dims)
		}
		n *= d
	}
	if len(data) != n*components {
		return nil, fmt.Errorf("%w: dense volume %v needs %d values, got %d", fluid.ErrLengthMismatch, dims, n*components, len(data))
	}
	if !(voxelSize.X > 0 && voxelSize.Y > 0 && voxelSize.Z > 0) {
		return nil, fmt.Errorf("invalid voxel size %v", voxelSize)
	}
	for i, v := range data {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return nil, fmt.Errorf("dense volume value %d is not finite", i)
		}
	}
	return &Dense{Dims: dims, Components: components, Data: data, Origin: origin, VoxelSize: voxelSize}, nil
}

// SetMask restricts the volume to the voxels marked true in mask.
// Samples whose nearest voxel is unmarked report no data, and unmarked
// voxels are left out of the trilinear blend of their neighbors.
func (d *Dense) SetMask(mask []bool) error {
	if mask != nil && len(mask) != d.Dims[0]*d.Dims[1]*d.Dims[2] {
		return fmt.Errorf("%w: mask of %d for dense volume %v", fluid.ErrLengthMismatch, len(mask), d.Dims)
	}
	d.Mask = mask
	return nil
}

// HasPressure reports whether the volume carries a pressure component.
func (d *Dense) HasPressure() bool { return d.Components == 4 }

// WorldToIndex maps a world position to continuous index coordinates.
func (d *Dense) WorldToIndex(p r3.Vec) r3.Vec {
	q := r3.Sub(p, d.Origin)
	return r3.Vec{X: q.X / d.VoxelSize.X, Y: q.Y / d.VoxelSize.Y, Z: q.Z / d.VoxelSize.Z}
}

func (d *Dense) index(i, j, k int) int {
	return (k*d.Dims[1]+j)*d.Dims[0] + i
}

func (d *Dense) record(v int) []float32 {
	off := v * d.Components
	return d.Data[off : off+d.Components]
}

func (d *Dense) valid(v int) bool {
	return d.Mask == nil || d.Mask[v]
}

// cell returns the lower corner index and fraction along one axis. An
// index on the upper face is folded into the last cell.
func cell(x float32, dim int) (int, float32, bool) {
	if x < 0 || x > float32(dim-1) {
		return 0, 0, false
	}
	if dim == 1 {
		return 0, 0, true
	}
	i := int(math32.Floor(x))
	if i >= dim-1 {
		i = dim - 2
	}
	return i, x - float32(i), true
}

// Sample trilinearly interpolates the volume at world position p. It
// reports false outside of the voxel centers' hull and, for masked
// volumes, when the voxel nearest to p holds no data.
func (d *Dense) Sample(p r3.Vec) (Sample, bool) {
	idx := d.WorldToIndex(p)
	i, fx, okx := cell(float32(idx.X), d.Dims[0])
	j, fy, oky := cell(float32(idx.Y), d.Dims[1])
	k, fz, okz := cell(float32(idx.Z), d.Dims[2])
	if !okx || !oky || !okz {
		return Sample{}, false
	}
	if d.Mask != nil {
		ni := min(i+nearestSide(fx), d.Dims[0]-1)
		nj := min(j+nearestSide(fy), d.Dims[1]-1)
		nk := min(k+nearestSide(fz), d.Dims[2]-1)
		if !d.valid(d.index(ni, nj, nk)) {
			return Sample{}, false
		}
	}
	var acc [4]float32
	var wsum float32
	for c := 0; c < 8; c++ {
		dx, dy, dz := c&1, (c>>1)&1, (c>>2)&1
		w := axisWeight(fx, dx) * axisWeight(fy, dy) * axisWeight(fz, dz)
		if w == 0 {
			continue
		}
		v := d.index(min(i+dx, d.Dims[0]-1), min(j+dy, d.Dims[1]-1), min(k+dz, d.Dims[2]-1))
		if !d.valid(v) {
			continue
		}
		wsum += w
		for m, x := range d.record(v) {
			acc[m] += w * x
		}
	}
	if d.Mask != nil && wsum > 0 {
		for m := range acc {
			acc[m] /= wsum
		}
	}
	return Sample{
		Velocity: r3.Vec{X: float64(acc[0]), Y: float64(acc[1]), Z: float64(acc[2])},
		Pressure: float64(acc[3]),
	}, true
}

func nearestSide(t float32) int {
	if t > 0.5 {
		return 1
	}
	return 0
}

func axisWeight(t float32, side int) float32 {
	if side == 0 {
		return 1 - t
	}
	return t
}

// Magnitude returns the float32 length of the sampled velocity.
func (s Sample) Magnitude() float64 {
	x, y, z := float32(s.Velocity.X), float32(s.Velocity.Y), float32(s.Velocity.Z)
	return float64(math32.Sqrt(x*x + y*y + z*z))
}

// DenseFromSamples packs values sampled on a regular lattice into a
// dense volume. values holds dims[0]*dims[1]*dims[2] velocities x
// fastest; pressure is optional and, when present, parallel to values.
func DenseFromSamples(dims [3]int, origin, voxelSize r3.Vec, values []r3.Vec, pressure []float64) (*Dense, error) {
	comps := 3
	if pressure != nil {
		comps = 4
		if len(pressure) != len(values) {
			return nil, fmt.Errorf("%w: %d pressures for %d velocities", fluid.ErrLengthMismatch, len(pressure), len(values))
		}
	}
	data := make([]float32, 0, comps*len(values))
	for i, v := range values {
		data = append(data, float32(v.X), float32(v.Y), float32(v.Z))
		if comps == 4 {
			data = append(data, float32(pressure[i]))
		}
	}
	return NewDense(dims, comps, data, origin, voxelSize)
}
