package fluid

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// TwoHexes returns two unit cubes sharing the x=1 face, with vertices in
// CGNS layout. The field runs along +x with a small swirl.
func TwoHexes() (Mesh, []r3.Vec) {
	vertices := []r3.Vec{
		{X: 1, Y: 0, Z: 0},
		{X: 1, Y: 1, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 0},

		{X: 1, Y: 0, Z: 1},
		{X: 1, Y: 1, Z: 1},
		{X: 0, Y: 1, Z: 1},
		{X: 0, Y: 0, Z: 1},

		{X: 2, Y: 0, Z: 0},
		{X: 2, Y: 1, Z: 0},
		{X: 2, Y: 1, Z: 1},
		{X: 2, Y: 0, Z: 1},
	}
	conn := []int32{
		0, 1, 2, 3, 4, 5, 6, 7,
		8, 9, 1, 0, 11, 10, 5, 4,
	}
	field := []r3.Vec{
		{X: 0.5, Y: 0.1, Z: 0.1},
		{X: 0.5, Y: -0.1, Z: 0.1},
		{X: 0.5, Y: -0.1, Z: 0.1},
		{X: 0.5, Y: 0.1, Z: 0.1},

		{X: 0.5, Y: 0.1, Z: -0.1},
		{X: 0.5, Y: -0.1, Z: -0.1},
		{X: 0.5, Y: -0.1, Z: -0.1},
		{X: 0.5, Y: 0.1, Z: -0.1},

		{X: 0.5, Y: 0.1, Z: 0.1},
		{X: 0.5, Y: -0.1, Z: 0.1},
		{X: 0.5, Y: -0.1, Z: -0.1},
		{X: 0.5, Y: 0.1, Z: -0.1},
	}
	return Mesh{Type: Hexa8, Vertices: vertices, Conn: conn}, field
}

// TwoTets returns two tetrahedra sharing the face (1,2,3).
func TwoTets() Mesh {
	return Mesh{
		Type: Tetra4,
		Vertices: []r3.Vec{
			{X: 0, Y: 0, Z: 0},
			{X: 1, Y: 0, Z: 0},
			{X: 0, Y: 1, Z: 0},
			{X: 0, Y: 0, Z: 1},
			{X: 1, Y: 1, Z: 1},
		},
		Conn: []int32{0, 1, 2, 3, 1, 2, 3, 4},
	}
}

// HexBlock returns a structured block of nx*ny*nz hexahedra filling box.
// Vertices are numbered x fastest. Node order follows CGNS conventions
// with node 3 at the lowest corner, so that the reference edges of every
// element point along +x, +y and +z.
func HexBlock(nx, ny, nz int, box r3.Box) Mesh {
	if nx < 1 || ny < 1 || nz < 1 {
		panic("block must have at least one cell per axis")
	}
	size := r3.Sub(box.Max, box.Min)
	h := r3.Vec{X: size.X / float64(nx), Y: size.Y / float64(ny), Z: size.Z / float64(nz)}
	vx, vy := nx+1, ny+1
	vertices := make([]r3.Vec, 0, vx*vy*(nz+1))
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				vertices = append(vertices, r3.Vec{
					X: box.Min.X + float64(i)*h.X,
					Y: box.Min.Y + float64(j)*h.Y,
					Z: box.Min.Z + float64(k)*h.Z,
				})
			}
		}
	}
	id := func(i, j, k int) int32 { return int32(i + vx*(j+vy*k)) }
	conn := make([]int32, 0, 8*nx*ny*nz)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				conn = append(conn,
					id(i+1, j, k), id(i+1, j+1, k), id(i, j+1, k), id(i, j, k),
					id(i+1, j, k+1), id(i+1, j+1, k+1), id(i, j+1, k+1), id(i, j, k+1),
				)
			}
		}
	}
	return Mesh{Type: Hexa8, Vertices: vertices, Conn: conn}
}

// hexToTets splits a hexahedron in CGNS order into six tetrahedra sharing
// the diagonal from node 3 to node 5.
var hexToTets = [6][4]int{
	{3, 0, 1, 5},
	{3, 1, 2, 5},
	{3, 2, 6, 5},
	{3, 6, 7, 5},
	{3, 7, 4, 5},
	{3, 4, 0, 5},
}

// TetBlock returns the hexahedra of HexBlock split into six tetrahedra
// each. Faces between neighbouring cells match because every cell uses
// the same diagonal direction.
func TetBlock(nx, ny, nz int, box r3.Box) Mesh {
	hex := HexBlock(nx, ny, nz, box)
	conn := make([]int32, 0, 24*hex.NumElements())
	for e := 0; e < hex.NumElements(); e++ {
		nodes := hex.Element(e)
		for _, tet := range hexToTets {
			a, b, c, d := nodes[tet[0]], nodes[tet[1]], nodes[tet[2]], nodes[tet[3]]
			if tetVolume(hex.Vertices[a], hex.Vertices[b], hex.Vertices[c], hex.Vertices[d]) < 0 {
				b, c = c, b
			}
			conn = append(conn, a, b, c, d)
		}
	}
	return Mesh{Type: Tetra4, Vertices: hex.Vertices, Conn: conn}
}

func tetVolume(a, b, c, d r3.Vec) float64 {
	return r3.Dot(r3.Sub(b, a), r3.Cross(r3.Sub(c, a), r3.Sub(d, a))) / 6
}
