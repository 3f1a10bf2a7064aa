// Package integrate advects particles through sampled velocity fields and
// records their streamlines.
package integrate

import (
	"fmt"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
)

// Technique selects how the velocity field is sampled and how particles
// are advanced.
type Technique uint8

const (
	undefinedTechnique Technique = iota
	// ElementBVH locates the mesh element holding the particle through the
	// element tree and advances with explicit Euler steps.
	ElementBVH
	// MultiResolutionVoxel samples a cascade of sparse voxel grids and
	// advances with explicit Euler steps.
	MultiResolutionVoxel
	// SingleVoxel samples one voxel volume and advances with adaptive
	// Runge-Kutta-Fehlberg 4(5) steps.
	SingleVoxel
)

// ParseTechnique converts a technique name to a Technique.
func ParseTechnique(s string) (Technique, error) {
	switch s {
	case "ELEMENT_BVH":
		return ElementBVH, nil
	case "MULTI_RESOLUTION_VOXEL":
		return MultiResolutionVoxel, nil
	case "SINGLE_VOXEL":
		return SingleVoxel, nil
	}
	return undefinedTechnique, fmt.Errorf("%w: %q", fluid.ErrUnsupportedTechnique, s)
}

func (t Technique) String() string {
	switch t {
	case ElementBVH:
		return "ELEMENT_BVH"
	case MultiResolutionVoxel:
		return "MULTI_RESOLUTION_VOXEL"
	case SingleVoxel:
		return "SINGLE_VOXEL"
	}
	return fmt.Sprintf("Technique(%d)", uint8(t))
}

// ScalarKind selects the scalar recorded with every streamline sample.
type ScalarKind uint8

const (
	// VelocityMagnitude records |v|.
	VelocityMagnitude ScalarKind = iota
	// Pressure records the pressure component of the field. Sources
	// without pressure fall back to VelocityMagnitude.
	Pressure
)

// ParseScalarKind converts a scalar name to a ScalarKind.
func ParseScalarKind(s string) (ScalarKind, error) {
	switch s {
	case "", "velocity":
		return VelocityMagnitude, nil
	case "pressure":
		return Pressure, nil
	}
	return 0, fmt.Errorf("unknown streamline scalar %q", s)
}

func (k ScalarKind) String() string {
	switch k {
	case VelocityMagnitude:
		return "velocity"
	case Pressure:
		return "pressure"
	}
	return fmt.Sprintf("ScalarKind(%d)", uint8(k))
}
