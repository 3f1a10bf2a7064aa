package element

import (
	"context"

	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/internal/d3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// LatticePoints returns n*n*n points evenly spread over box, pulled in by
// eps from every face so that none lies exactly on the boundary.
func LatticePoints(box d3.Box, n int, eps float64) []r3.Vec {
	if n < 2 {
		return []r3.Vec{box.Center()}
	}
	xs := floats.Span(make([]float64, n), box.Min.X+eps, box.Max.X-eps)
	ys := floats.Span(make([]float64, n), box.Min.Y+eps, box.Max.Y-eps)
	zs := floats.Span(make([]float64, n), box.Min.Z+eps, box.Max.Z-eps)
	pts := make([]r3.Vec, 0, n*n*n)
	for _, z := range zs {
		for _, y := range ys {
			for _, x := range xs {
				pts = append(pts, r3.Vec{X: x, Y: y, Z: z})
			}
		}
	}
	return pts
}

// PointCloud samples the nodal field of the locator's mesh on an n^3
// lattice over the mesh bounds. Lattice points outside every element are
// dropped. The result feeds voxel rasterization when only a point cloud
// representation of the field is wanted.
func (l *Locator) PointCloud(ctx context.Context, field []r3.Vec, n, workers int) (points, values []r3.Vec, err error) {
	const eps = 1e-8
	lattice := LatticePoints(l.Tree.Bounds(), n, eps)
	vals, found, err := l.SampleField(ctx, field, lattice, workers)
	if err != nil {
		return nil, nil, err
	}
	for i, ok := range found {
		if ok {
			points = append(points, lattice[i])
			values = append(values, vals[i])
		}
	}
	return points, values, nil
}
