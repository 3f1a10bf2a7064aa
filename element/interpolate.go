package element

import (
	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
	"gonum.org/v1/gonum/spatial/r3"
)

// InsideReference reports whether reference coordinates lie inside the
// reference element of typ, with Tolerance slack.
//
// Hexahedra are tested against the unit cube in the linear frame spanned
// by three edges. This is exact for parallelepipeds only; for general
// trilinear hexahedra points near curved faces may be misclassified.
func InsideReference(typ fluid.ElementType, ref r3.Vec) bool {
	const lo, hi = -Tolerance, 1 + Tolerance
	if ref.X < lo || ref.Y < lo || ref.Z < lo {
		return false
	}
	switch typ {
	case fluid.Tetra4:
		return ref.X+ref.Y+ref.Z <= hi
	case fluid.Hexa8:
		return ref.X <= hi && ref.Y <= hi && ref.Z <= hi
	}
	return false
}

// Contains reports whether element elem of mesh contains p.
func Contains(mesh fluid.Mesh, elem int, p r3.Vec) bool {
	ref, ok := Reference(mesh, elem, p)
	return ok && InsideReference(mesh.Type, ref)
}

// hexOrder maps the corners f0..f7 of the unit cube blend, in the order
// (0,0,0) (0,1,0) (1,1,0) (1,0,0) (0,0,1) (1,0,1) (1,1,1) (0,1,1) of the
// reference axes, to local hexahedron nodes.
var hexOrder = [8]int{3, 2, 1, 0, 7, 4, 5, 6}

// Weights returns the nodal interpolation weights at reference coordinates
// ref, indexed by local node. Only the first typ.Arity() are meaningful.
func Weights(typ fluid.ElementType, ref r3.Vec) (w [8]float64) {
	x, y, z := ref.X, ref.Y, ref.Z
	switch typ {
	case fluid.Tetra4:
		// f0 + (f1-f0)x + (f2-f0)y + (f3-f0)z
		w[0] = 1 - x - y - z
		w[1] = x
		w[2] = y
		w[3] = z
	case fluid.Hexa8:
		// f0 + x(f3-f0) + y(f1-f0) + z(f4-f0) + xy(f0-f1+f2-f3)
		//    + xz(f0-f3-f4+f5) + yz(f0-f1-f4+f7)
		//    + xyz(-f0+f1-f2+f3+f4-f5+f6-f7)
		xy, xz, yz, xyz := x*y, x*z, y*z, x*y*z
		f := [8]float64{
			1 - x - y - z + xy + xz + yz - xyz,
			y - xy - yz + xyz,
			xy - xyz,
			x - xy - xz + xyz,
			z - xz - yz + xyz,
			xz - xyz,
			xyz,
			yz - xyz,
		}
		for k, node := range hexOrder {
			w[node] = f[k]
		}
	}
	return w
}

// Interpolate blends the nodal vector field of element elem at reference
// coordinates ref. field is indexed by vertex.
func Interpolate(mesh fluid.Mesh, elem int, ref r3.Vec, field []r3.Vec) r3.Vec {
	w := Weights(mesh.Type, ref)
	var v r3.Vec
	for j, node := range mesh.Element(elem) {
		v = r3.Add(v, r3.Scale(w[j], field[node]))
	}
	return v
}

// InterpolateScalar blends a nodal scalar field of element elem at
// reference coordinates ref.
func InterpolateScalar(mesh fluid.Mesh, elem int, ref r3.Vec, field []float64) float64 {
	w := Weights(mesh.Type, ref)
	var s float64
	for j, node := range mesh.Element(elem) {
		s += w[j] * field[node]
	}
	return s
}
