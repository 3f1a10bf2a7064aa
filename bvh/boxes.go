package bvh

import (
	"context"
	"fmt"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/internal/d3"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/internal/par"
)

// ElementBoxes computes the axis aligned bounding box of every element of
// mesh. Elements are processed in parallel by up to workers goroutines.
func ElementBoxes(ctx context.Context, mesh fluid.Mesh, workers int) ([]d3.Box, error) {
	arity := mesh.Type.Arity()
	if !mesh.Type.IsVolume() {
		return nil, fmt.Errorf("element boxes: %w: %v", fluid.ErrUnsupportedElementType, mesh.Type)
	}
	if len(mesh.Conn)%arity != 0 {
		return nil, fmt.Errorf("element boxes: %w: connectivity length %d not a multiple of %d", fluid.ErrLengthMismatch, len(mesh.Conn), arity)
	}
	nv := len(mesh.Vertices)
	boxes := make([]d3.Box, mesh.NumElements())
	err := par.For(ctx, len(boxes), workers, func(i int) error {
		b := d3.EmptyBox()
		for _, idx := range mesh.Element(i) {
			if idx < 0 || int(idx) >= nv {
				return &fluid.ElementError{Element: i, Index: int(idx), Err: fluid.ErrIndexOutOfRange}
			}
			b = b.Include(mesh.Vertices[idx])
		}
		boxes[i] = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return boxes, nil
}

// FromMesh computes the element boxes of mesh and builds a tree over them.
func FromMesh(ctx context.Context, mesh fluid.Mesh, workers int) (*Tree, error) {
	boxes, err := ElementBoxes(ctx, mesh, workers)
	if err != nil {
		return nil, err
	}
	return Build(boxes), nil
}
