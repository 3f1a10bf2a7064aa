// Package fluid holds the mesh data model shared by the streamline
// tracer and the boundary extractor: element types, volume meshes, voxel
// coordinates, the error taxonomy and small fixture meshes.
package fluid

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// ElementType identifies the cell kind of a volume mesh or the kind of
// sample storage backing a vector field. It is resolved once, before any
// parallel work starts.
type ElementType uint8

const (
	undefinedElement ElementType = iota
	// Tetra4 is a linear tetrahedron with 4 nodes.
	Tetra4
	// Hexa8 is a linear hexahedron with 8 nodes in CGNS order.
	Hexa8
	// Points is an unconnected point cloud.
	Points
	// VDB is a dense or sparse voxel volume supplied by a collaborator.
	VDB
)

// ParseElementType converts the collaborator naming (as found in CGNS
// element type strings) to an ElementType.
func ParseElementType(s string) (ElementType, error) {
	switch s {
	case "TETRA_4":
		return Tetra4, nil
	case "HEXA_8":
		return Hexa8, nil
	case "POINTS":
		return Points, nil
	case "VDB":
		return VDB, nil
	}
	return undefinedElement, fmt.Errorf("%w: %q", ErrUnsupportedElementType, s)
}

func (t ElementType) String() string {
	switch t {
	case Tetra4:
		return "TETRA_4"
	case Hexa8:
		return "HEXA_8"
	case Points:
		return "POINTS"
	case VDB:
		return "VDB"
	}
	return fmt.Sprintf("ElementType(%d)", uint8(t))
}

// Arity returns the number of nodes per element. Types without
// connectivity return 0.
func (t ElementType) Arity() int {
	switch t {
	case Tetra4:
		return 4
	case Hexa8:
		return 8
	}
	return 0
}

// NumFaces returns the number of faces bounding one element.
func (t ElementType) NumFaces() int {
	switch t {
	case Tetra4:
		return 4
	case Hexa8:
		return 6
	}
	return 0
}

// IsVolume reports whether t is an element type with connectivity.
func (t ElementType) IsVolume() bool { return t == Tetra4 || t == Hexa8 }

// Mesh is a volume mesh of a single element type. Connectivity is stored
// flat, Type.Arity() indices per element.
type Mesh struct {
	Type     ElementType
	Vertices []r3.Vec
	Conn     []int32
}

// NewMesh returns a validated mesh.
func NewMesh(typ ElementType, vertices []r3.Vec, conn []int32) (Mesh, error) {
	m := Mesh{Type: typ, Vertices: vertices, Conn: conn}
	return m, m.Validate()
}

// NumElements returns the number of elements in the mesh.
func (m Mesh) NumElements() int {
	n := m.Type.Arity()
	if n == 0 {
		return 0
	}
	return len(m.Conn) / n
}

// Element returns the node indices of element i. The returned slice
// aliases the mesh connectivity.
func (m Mesh) Element(i int) []int32 {
	n := m.Type.Arity()
	return m.Conn[i*n : i*n+n : i*n+n]
}

// Node returns the position of local node j of element i.
func (m Mesh) Node(i, j int) r3.Vec {
	return m.Vertices[m.Conn[i*m.Type.Arity()+j]]
}

// Validate checks the element type is a volume type, the connectivity
// length is a multiple of the arity and every index addresses a vertex.
func (m Mesh) Validate() error {
	if !m.Type.IsVolume() {
		return fmt.Errorf("%w: %v has no connectivity", ErrUnsupportedElementType, m.Type)
	}
	n := m.Type.Arity()
	if len(m.Conn)%n != 0 {
		return fmt.Errorf("%w: connectivity length %d not a multiple of %d", ErrLengthMismatch, len(m.Conn), n)
	}
	nv := len(m.Vertices)
	for i, idx := range m.Conn {
		if idx < 0 || int(idx) >= nv {
			return &ElementError{Element: i / n, Index: int(idx), Err: ErrIndexOutOfRange}
		}
	}
	return nil
}

// CheckField returns an error if a field sample array does not match the
// length of the geometry array it belongs to.
func CheckField(geometryLen int, field []r3.Vec) error {
	if len(field) != geometryLen {
		return fmt.Errorf("%w: field has %d samples, geometry has %d", ErrLengthMismatch, len(field), geometryLen)
	}
	return nil
}
