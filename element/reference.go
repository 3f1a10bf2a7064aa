// Package element locates points in tetrahedra and hexahedra and
// interpolates nodal fields using reference coordinates.
package element

import (
	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
	"gonum.org/v1/gonum/spatial/r3"
)

// Tolerance is the slack applied to reference coordinate bounds so that
// points on shared faces match at least one element despite round-off.
const Tolerance = 1e-6

// detEpsilon is the smallest edge triple product treated as non-singular,
// relative to the cube of the longest edge.
const detEpsilon = 1e-12

// Local node used as origin of the reference frame and the three local
// nodes whose edges from the origin span it.
var (
	tetFrame = [4]int{0, 1, 2, 3}
	hexFrame = [4]int{3, 0, 2, 7}
)

// Frame is the affine map from world to reference coordinates of one
// element: ref = Inv * (p - Origin). The rows of Inv are the rows of the
// inverse of the matrix whose columns are the frame edges.
type Frame struct {
	Origin r3.Vec
	Inv    [3]r3.Vec
}

// NewFrame returns the reference frame of element elem. It reports false
// for a degenerate (zero volume) element or a type without connectivity.
func NewFrame(mesh fluid.Mesh, elem int) (Frame, bool) {
	var f *[4]int
	switch mesh.Type {
	case fluid.Tetra4:
		f = &tetFrame
	case fluid.Hexa8:
		f = &hexFrame
	default:
		return Frame{}, false
	}
	a := mesh.Node(elem, f[0])
	return frameFromEdges(a,
		r3.Sub(mesh.Node(elem, f[1]), a),
		r3.Sub(mesh.Node(elem, f[2]), a),
		r3.Sub(mesh.Node(elem, f[3]), a),
	)
}

func frameFromEdges(origin, e1, e2, e3 r3.Vec) (Frame, bool) {
	c23 := r3.Cross(e2, e3)
	det := r3.Dot(e1, c23)
	scale := max(r3.Norm2(e1), r3.Norm2(e2), r3.Norm2(e3))
	if det == 0 || det*det <= detEpsilon*detEpsilon*scale*scale*scale {
		return Frame{}, false
	}
	inv := 1 / det
	return Frame{
		Origin: origin,
		Inv: [3]r3.Vec{
			r3.Scale(inv, c23),
			r3.Scale(inv, r3.Cross(e3, e1)),
			r3.Scale(inv, r3.Cross(e1, e2)),
		},
	}, true
}

// Reference transforms p into the frame's reference coordinates.
func (f Frame) Reference(p r3.Vec) r3.Vec {
	d := r3.Sub(p, f.Origin)
	return r3.Vec{
		X: r3.Dot(f.Inv[0], d),
		Y: r3.Dot(f.Inv[1], d),
		Z: r3.Dot(f.Inv[2], d),
	}
}

// Reference returns the reference coordinates of p in element elem.
func Reference(mesh fluid.Mesh, elem int, p r3.Vec) (r3.Vec, bool) {
	f, ok := NewFrame(mesh, elem)
	if !ok {
		return r3.Vec{}, false
	}
	return f.Reference(p), true
}
