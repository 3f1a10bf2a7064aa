// Package hull extracts the boundary surface of a volume mesh: the faces
// that belong to exactly one element.
package hull

import (
	"slices"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
)

// Local node numbers of the faces of each element type, wound so that the
// normal points out of a positively oriented element.
var (
	tetFaces = [4][3]int{
		{0, 2, 1},
		{0, 1, 3},
		{0, 3, 2},
		{1, 2, 3},
	}
	// bottom, right, back, left, front, top
	hexFaces = [6][4]int{
		{0, 3, 2, 1},
		{0, 1, 5, 4},
		{1, 2, 6, 5},
		{2, 3, 7, 6},
		{0, 4, 7, 3},
		{4, 5, 6, 7},
	}
)

// FaceArity returns the number of nodes of a face of typ.
func FaceArity(typ fluid.ElementType) int {
	switch typ {
	case fluid.Tetra4:
		return 3
	case fluid.Hexa8:
		return 4
	}
	return 0
}

// faceNodes writes the global node ids of local face f of element elem
// into dst in face winding order and returns the filled prefix.
func faceNodes(dst *[4]int32, mesh fluid.Mesh, elem, f int) []int32 {
	nodes := mesh.Element(elem)
	switch mesh.Type {
	case fluid.Tetra4:
		for i, j := range tetFaces[f] {
			dst[i] = nodes[j]
		}
		return dst[:3]
	case fluid.Hexa8:
		for i, j := range hexFaces[f] {
			dst[i] = nodes[j]
		}
		return dst[:4]
	}
	return dst[:0]
}

// Key identifies a face independently of its winding: its node ids in
// ascending order. Triangle keys pad the last entry with -1.
type Key [4]int32

// NewKey returns the canonical key of a face with 3 or 4 nodes.
func NewKey(nodes []int32) Key {
	k := Key{-1, -1, -1, -1}
	copy(k[:], nodes)
	slices.Sort(k[:len(nodes)])
	return k
}

// Hash mixes the key with a multiply-add chain over the primes 31, 37, 41
// and 43 and clears the sign bit.
func (k Key) Hash() uint32 {
	primes := [4]uint32{31, 37, 41, 43}
	var h uint32
	for i, p := range primes {
		if k[i] < 0 {
			break
		}
		h = p*h + uint32(k[i])
	}
	return h & 0x7FFFFFFF
}

// Face names local face Local of element Element.
type Face struct {
	Element int32
	Local   int8
}
