package integrate

import (
	"fmt"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/element"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/voxel"
	"gonum.org/v1/gonum/spatial/r3"
)

// MeshSource is a velocity field sampled at the vertices of a volume mesh.
type MeshSource struct {
	Locator *element.Locator
	Field   []r3.Vec
	// Pressure is an optional nodal scalar recorded when the Pressure
	// scalar is selected.
	Pressure []float64
}

// VelocityFunc returns the velocity at p or false when p has no data.
type VelocityFunc func(p r3.Vec) (r3.Vec, bool)

// sampler reads the velocity and the recorded scalar at a point.
type sampler interface {
	sample(p r3.Vec) (v r3.Vec, scalar float64, ok bool)
}

type meshSampler struct {
	src      MeshSource
	pressure bool
}

func (m meshSampler) sample(p r3.Vec) (r3.Vec, float64, bool) {
	elem, ref, ok := m.src.Locator.Locate(p)
	if !ok {
		return r3.Vec{}, 0, false
	}
	mesh := m.src.Locator.Mesh
	v := element.Interpolate(mesh, elem, ref, m.src.Field)
	if m.pressure {
		return v, element.InterpolateScalar(mesh, elem, ref, m.src.Pressure), true
	}
	return v, r3.Norm(v), true
}

type cascadeSampler struct{ c *voxel.Cascade }

func (s cascadeSampler) sample(p r3.Vec) (r3.Vec, float64, bool) {
	v, _, ok := s.c.Sample(p)
	return v, r3.Norm(v), ok
}

type gridSampler struct{ g *voxel.Grid }

func (s gridSampler) sample(p r3.Vec) (r3.Vec, float64, bool) {
	v, ok := s.g.Sample(p)
	return v, r3.Norm(v), ok
}

type denseSampler struct {
	d        *voxel.Dense
	pressure bool
}

func (s denseSampler) sample(p r3.Vec) (r3.Vec, float64, bool) {
	smp, ok := s.d.Sample(p)
	if !ok {
		return r3.Vec{}, 0, false
	}
	if s.pressure {
		return smp.Velocity, smp.Pressure, true
	}
	return smp.Velocity, smp.Magnitude(), true
}

// newSampler pairs a field source with the technique that reads it.
// pressureLost reports a Pressure request the source cannot serve.
func newSampler(cfg Config, source any) (s sampler, pressureLost bool, err error) {
	wantPressure := cfg.Scalar == Pressure
	switch cfg.Technique {
	case ElementBVH:
		var src MeshSource
		switch v := source.(type) {
		case MeshSource:
			src = v
		case *MeshSource:
			src = *v
		default:
			return nil, false, mismatch(cfg.Technique, source)
		}
		if src.Locator == nil {
			return nil, false, fmt.Errorf("%w: mesh source without locator", fluid.ErrUnsupportedTechnique)
		}
		if err := fluid.CheckField(len(src.Locator.Mesh.Vertices), src.Field); err != nil {
			return nil, false, err
		}
		hasPressure := src.Pressure != nil
		if hasPressure && len(src.Pressure) != len(src.Field) {
			return nil, false, fmt.Errorf("%w: %d pressures for %d vertices", fluid.ErrLengthMismatch, len(src.Pressure), len(src.Field))
		}
		return meshSampler{src: src, pressure: wantPressure && hasPressure}, wantPressure && !hasPressure, nil
	case MultiResolutionVoxel:
		c, ok := source.(*voxel.Cascade)
		if !ok || c == nil || len(c.Levels) == 0 {
			return nil, false, mismatch(cfg.Technique, source)
		}
		return cascadeSampler{c}, wantPressure, nil
	case SingleVoxel:
		switch v := source.(type) {
		case *voxel.Dense:
			return denseSampler{d: v, pressure: wantPressure && v.HasPressure()}, wantPressure && !v.HasPressure(), nil
		case *voxel.Grid:
			return gridSampler{v}, wantPressure, nil
		}
		return nil, false, mismatch(cfg.Technique, source)
	}
	return nil, false, fmt.Errorf("%w: %v", fluid.ErrUnsupportedTechnique, cfg.Technique)
}

func mismatch(t Technique, source any) error {
	return fmt.Errorf("%w: %v cannot sample a %T", fluid.ErrUnsupportedTechnique, t, source)
}
