package element

import (
	"context"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/bvh"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/internal/par"
	"gonum.org/v1/gonum/spatial/r3"
)

// Locator finds the element containing a point. Candidates come from the
// tree and are refined with the exact reference coordinate test.
type Locator struct {
	Mesh fluid.Mesh
	Tree *bvh.Tree
}

// NewLocator validates mesh and builds its element tree.
func NewLocator(ctx context.Context, mesh fluid.Mesh, workers int) (*Locator, error) {
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	tree, err := bvh.FromMesh(ctx, mesh, workers)
	if err != nil {
		return nil, err
	}
	return &Locator{Mesh: mesh, Tree: tree}, nil
}

// Locate returns the first candidate element containing p and the
// reference coordinates of p in it.
func (l *Locator) Locate(p r3.Vec) (elem int, ref r3.Vec, ok bool) {
	for cand := range l.Tree.QueryPoint(p) {
		f, ok := NewFrame(l.Mesh, cand)
		if !ok {
			continue
		}
		ref = f.Reference(p)
		if InsideReference(l.Mesh.Type, ref) {
			return cand, ref, true
		}
	}
	return -1, r3.Vec{}, false
}

// Velocity interpolates the nodal field at p. It reports false when no
// element contains p.
func (l *Locator) Velocity(field []r3.Vec, p r3.Vec) (r3.Vec, bool) {
	elem, ref, ok := l.Locate(p)
	if !ok {
		return r3.Vec{}, false
	}
	return Interpolate(l.Mesh, elem, ref, field), true
}

// SampleField interpolates the nodal field at every point. found[i] is
// false for points outside the mesh, whose value is left zero.
func (l *Locator) SampleField(ctx context.Context, field []r3.Vec, points []r3.Vec, workers int) (values []r3.Vec, found []bool, err error) {
	if err := fluid.CheckField(len(l.Mesh.Vertices), field); err != nil {
		return nil, nil, err
	}
	values = make([]r3.Vec, len(points))
	found = make([]bool, len(points))
	err = par.For(ctx, len(points), workers, func(i int) error {
		values[i], found[i] = l.Velocity(field, points[i])
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return values, found, nil
}
