package fluid

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// V3i is a 3D integer vector. It addresses voxels of a grid.
type V3i [3]int

// RoundV3 returns the nearest integer vector to v.
func RoundV3(v r3.Vec) V3i {
	return V3i{int(math.Round(v.X)), int(math.Round(v.Y)), int(math.Round(v.Z))}
}

// FloorV3 returns the integer vector of the cell containing v.
func FloorV3(v r3.Vec) V3i {
	return V3i{int(math.Floor(v.X)), int(math.Floor(v.Y)), int(math.Floor(v.Z))}
}

// ToV3 converts V3i (integer) to r3.Vec (float).
func (a V3i) ToV3() r3.Vec {
	return r3.Vec{X: float64(a[0]), Y: float64(a[1]), Z: float64(a[2])}
}

// Add adds two vectors. Return v = a + b.
func (a V3i) Add(b V3i) V3i {
	return V3i{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

// Hash folds the vector into a non-negative 32 bit value.
func (a V3i) Hash() uint32 {
	h := uint32(a[0])*73856093 ^ uint32(a[1])*19349663 ^ uint32(a[2])*83492791
	return h & 0x7FFFFFFF
}
