// Package render writes boundary surfaces, volume meshes and streamlines
// to STL and VTK files and produces quick previews of them.
package render

import (
	"fmt"
	"io"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/hull"
	"github.com/soypat/glgl/math/ms3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Renderer streams triangles. ReadTriangles returns io.EOF once every
// triangle has been read.
type Renderer interface {
	ReadTriangles(dst []ms3.Triangle) (int, error)
}

// SurfaceRenderer streams the triangles of a boundary surface. Quad
// surfaces are split along the first diagonal of each face.
type SurfaceRenderer struct {
	vertices []r3.Vec
	tris     []int32
	next     int
}

var _ Renderer = (*SurfaceRenderer)(nil)

// NewSurfaceRenderer returns a Renderer over the faces of s, whose indices
// address vertices.
func NewSurfaceRenderer(vertices []r3.Vec, s *hull.Surface) (*SurfaceRenderer, error) {
	if err := s.Validate(len(vertices)); err != nil {
		return nil, err
	}
	return &SurfaceRenderer{vertices: vertices, tris: s.Triangles()}, nil
}

// NewSceneRenderer returns a Renderer over a compressed scene mesh. A
// scene without faces yields no triangles.
func NewSceneRenderer(sc *hull.Scene) (*SurfaceRenderer, error) {
	if len(sc.FaceVertexCounts) == 0 {
		if len(sc.FaceVertexIndices) != 0 {
			return nil, fmt.Errorf("%w: %d face indices without face counts", fluid.ErrLengthMismatch, len(sc.FaceVertexIndices))
		}
		return &SurfaceRenderer{vertices: sc.Points}, nil
	}
	s := &hull.Surface{Faces: sc.FaceVertexIndices, Arity: int(sc.FaceVertexCounts[0])}
	return NewSurfaceRenderer(sc.Points, s)
}

// ReadTriangles implements Renderer.
func (r *SurfaceRenderer) ReadTriangles(dst []ms3.Triangle) (n int, err error) {
	for n < len(dst) && 3*r.next < len(r.tris) {
		i := 3 * r.next
		dst[n] = ms3.Triangle{
			toMS3(r.vertices[r.tris[i]]),
			toMS3(r.vertices[r.tris[i+1]]),
			toMS3(r.vertices[r.tris[i+2]]),
		}
		n++
		r.next++
	}
	if 3*r.next >= len(r.tris) {
		return n, io.EOF
	}
	return n, nil
}

// Len returns the number of triangles the renderer streams in total.
func (r *SurfaceRenderer) Len() int { return len(r.tris) / 3 }

func toMS3(v r3.Vec) ms3.Vec {
	return ms3.Vec{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}
