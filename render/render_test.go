package render_test

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/hull"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/integrate"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/render"
	"gonum.org/v1/gonum/spatial/r3"
)

func blockSurface(t *testing.T) (fluid.Mesh, *hull.Surface) {
	t.Helper()
	mesh := fluid.HexBlock(2, 1, 1, r3.Box{Max: r3.Vec{X: 2, Y: 1, Z: 1}})
	s, err := hull.Extract(context.Background(), mesh, hull.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return mesh, s
}

func TestSTLCreateWriteRead(t *testing.T) {
	mesh, s := blockSurface(t)
	stlName := filepath.Join(t.TempDir(), "block.stl")
	r, err := render.NewSurfaceRenderer(mesh.Vertices, s)
	if err != nil {
		t.Fatal(err)
	}
	if err := render.CreateSTL(stlName, r); err != nil {
		t.Fatal(err)
	}
	bfile, err := os.ReadFile(stlName)
	if err != nil {
		t.Fatal(err)
	}
	r, _ = render.NewSurfaceRenderer(mesh.Vertices, s)
	model, err := render.RenderAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(model) != 2*s.NumFaces() {
		t.Fatalf("want %d triangles, got %d", 2*s.NumFaces(), len(model))
	}
	var b bytes.Buffer
	if _, err = render.WriteSTL(&b, model); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b.Bytes(), bfile) {
		t.Fatalf("WriteSTL and CreateSTL output mismatch: %d vs %d bytes", b.Len(), len(bfile))
	}
	got, err := render.ReadSTL(&b)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(model) {
		t.Fatalf("read back %d triangles, want %d", len(got), len(model))
	}
	for i := range got {
		if got[i] != model[i] {
			t.Fatalf("triangle %d: got %v, want %v", i, got[i], model[i])
		}
	}
}

func TestSceneRenderer(t *testing.T) {
	mesh, s := blockSurface(t)
	sc, err := hull.NewScene(context.Background(), mesh.Vertices, s, 0)
	if err != nil {
		t.Fatal(err)
	}
	r, err := render.NewSceneRenderer(sc)
	if err != nil {
		t.Fatal(err)
	}
	if r.Len() != 20 {
		t.Errorf("want 20 triangles from 10 quads, got %d", r.Len())
	}

	empty, err := render.NewSceneRenderer(&hull.Scene{})
	if err != nil {
		t.Fatalf("empty scene: %v", err)
	}
	tris, err := render.RenderAll(empty)
	if err != nil || len(tris) != 0 {
		t.Errorf("empty scene: got %d triangles, err %v", len(tris), err)
	}
	_, err = render.NewSceneRenderer(&hull.Scene{FaceVertexIndices: []int32{0, 1, 2}})
	if !errors.Is(err, fluid.ErrLengthMismatch) {
		t.Errorf("indices without counts: got %v", err)
	}
}

func TestReadSTLErrors(t *testing.T) {
	if _, err := render.ReadSTL(bytes.NewReader(make([]byte, 10))); err == nil {
		t.Error("short header must fail")
	}
	if _, err := render.ReadSTL(bytes.NewReader(make([]byte, 84))); err == nil {
		t.Error("zero triangle count must fail")
	}
	if _, err := render.WriteSTL(&bytes.Buffer{}, nil); err == nil {
		t.Error("empty model must fail")
	}
}

func TestVTKMeshRoundTrip(t *testing.T) {
	mesh, field := fluid.TwoHexes()
	pressure := make([]float64, len(mesh.Vertices))
	for i := range pressure {
		pressure[i] = float64(i) / 3
	}
	g, err := render.MeshGrid(mesh, field, pressure)
	if err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	if _, err := g.WriteTo(&b); err != nil {
		t.Fatal(err)
	}
	text := b.String()
	for _, want := range []string{"# vtk DataFile Version 4.2\n", "DATASET UNSTRUCTURED_GRID\n", "CELLS 2 18\n", "CELL_TYPES 2\n12\n12\n", "VECTORS velocity double\n"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q", want)
		}
	}
	got, err := render.ReadVTK(&b)
	if err != nil {
		t.Fatal(err)
	}
	back, err := got.Mesh()
	if err != nil {
		t.Fatal(err)
	}
	if back.Type != fluid.Hexa8 || len(back.Conn) != len(mesh.Conn) || len(back.Vertices) != len(mesh.Vertices) {
		t.Fatalf("mesh mismatch: %v %d %d", back.Type, len(back.Conn), len(back.Vertices))
	}
	for i := range mesh.Conn {
		if back.Conn[i] != mesh.Conn[i] {
			t.Fatalf("conn %d: got %d, want %d", i, back.Conn[i], mesh.Conn[i])
		}
	}
	for i := range mesh.Vertices {
		if back.Vertices[i] != mesh.Vertices[i] {
			t.Fatalf("vertex %d: got %v, want %v", i, back.Vertices[i], mesh.Vertices[i])
		}
	}
	vel, ok := got.Field("velocity")
	if !ok {
		t.Fatal("velocity field not read back")
	}
	for i := range field {
		if vel.Vectors[i] != field[i] {
			t.Fatalf("velocity %d: got %v, want %v", i, vel.Vectors[i], field[i])
		}
	}
	pr, ok := got.Field("pressure")
	if !ok || pr.Scalars[5] != pressure[5] {
		t.Fatal("pressure field not read back")
	}
}

func TestReadVTKTetra(t *testing.T) {
	const src = `# vtk DataFile Version 3.0
two tets
ASCII
DATASET UNSTRUCTURED_GRID
POINTS 5 float
0 0 0  1 0 0  0 1 0
0 0 1  1 1 1
CELLS 2 10
4 0 1 2 3
4 1 2 3 4
CELL_TYPES 2
10
10
CELL_DATA 2
SCALARS id int 1
LOOKUP_TABLE default
0 1
`
	g, err := render.ReadVTK(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if g.Title != "two tets" {
		t.Errorf("title %q", g.Title)
	}
	mesh, err := g.Mesh()
	if err != nil {
		t.Fatal(err)
	}
	if mesh.Type != fluid.Tetra4 || mesh.NumElements() != 2 {
		t.Fatalf("got %v with %d elements", mesh.Type, mesh.NumElements())
	}
	if len(g.Fields) != 0 {
		t.Errorf("cell data must not become point fields, got %d", len(g.Fields))
	}
}

func TestReadVTKErrors(t *testing.T) {
	const head = "# vtk DataFile Version 3.0\nt\nASCII\nDATASET UNSTRUCTURED_GRID\n"
	const onePoint = head + "POINTS 1 float\n0 0 0\n"
	for _, src := range []string{
		head + "POINTS -3 float\n",
		head + "POINTS 4000000000 float\n0 0 0\n",
		head + "POINTS x float\n",
		onePoint + "CELLS -1 2\n",
		onePoint + "CELLS 3000000000 3000000000\n1 0\n",
		onePoint + "CELLS 1 2\n-1 0\n",
		onePoint + "CELL_TYPES -2\n",
		onePoint + "POINT_DATA 1\nSCALARS p float x\nLOOKUP_TABLE default\n1\n",
		onePoint + "POINT_DATA 1\nSCALARS p float 0\nLOOKUP_TABLE default\n1\n",
		onePoint + "POINT_DATA -1\n",
		onePoint + "FIELD f -1\n",
		"not vtk\n",
		"# vtk DataFile Version 3.0\nt\nBINARY\nDATASET UNSTRUCTURED_GRID\n",
		"# vtk DataFile Version 3.0\nt\nASCII\nDATASET POLYDATA\n",
		"# vtk DataFile Version 3.0\nt\nASCII\nDATASET UNSTRUCTURED_GRID\nPOINTS 2 float\n0 0 0\n",
		"# vtk DataFile Version 3.0\nt\nASCII\nDATASET UNSTRUCTURED_GRID\nPOINTS 1 float\n0 0 0\nCELLS 1 2\n1 3\nCELL_TYPES 1\n1\n",
	} {
		if _, err := render.ReadVTK(strings.NewReader(src)); err == nil {
			t.Errorf("expected error for %q", src)
		}
	}
}

func TestSurfaceAndStreamlineGrids(t *testing.T) {
	mesh, s := blockSurface(t)
	g, err := render.SurfaceGrid(mesh.Vertices, s)
	if err != nil {
		t.Fatal(err)
	}
	if g.NumCells() != 10 || g.Types[0] != render.CellQuad {
		t.Fatalf("want 10 quads, got %d cells of type %d", g.NumCells(), g.Types[0])
	}
	if _, err := g.Mesh(); err == nil {
		t.Error("surface grid must not convert to a volume mesh")
	}
	lines := []integrate.Streamline{
		{Positions: []r3.Vec{{}, {X: 1}, {X: 2}}, Scalars: []float64{1, 1, 1}},
		{Positions: []r3.Vec{{Y: 1}, {X: 1, Y: 1}}, Scalars: []float64{2, 0}},
	}
	sg := render.StreamlineGrid(lines, integrate.VelocityMagnitude)
	var b bytes.Buffer
	if _, err := sg.WriteTo(&b); err != nil {
		t.Fatal(err)
	}
	text := b.String()
	for _, want := range []string{"POINTS 5 double\n", "CELLS 2 7\n3 0 1 2\n2 3 4\n", "CELL_TYPES 2\n4\n4\n", "POINT_DATA 5\n"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestWriteScalarPlot(t *testing.T) {
	lines := []integrate.Streamline{
		{Scalars: []float64{1, 2, 3}},
		{Scalars: []float64{3, 2, 0}},
	}
	var b bytes.Buffer
	if err := render.WriteScalarPlot(&b, lines, integrate.Pressure); err != nil {
		t.Fatal(err)
	}
	if _, err := png.Decode(&b); err != nil {
		t.Fatal(err)
	}
	if err := render.WriteScalarPlot(&b, nil, integrate.Pressure); err == nil {
		t.Error("plotting no streamlines must fail")
	}
}

func TestPreviewSTL(t *testing.T) {
	mesh, s := blockSurface(t)
	dir := t.TempDir()
	stlName := filepath.Join(dir, "block.stl")
	pngName := filepath.Join(dir, "block.png")
	r, err := render.NewSurfaceRenderer(mesh.Vertices, s)
	if err != nil {
		t.Fatal(err)
	}
	if err := render.CreateSTL(stlName, r); err != nil {
		t.Fatal(err)
	}
	const w, h = 64, 48
	if err := render.PreviewSTL(stlName, pngName, w, h, render.DefaultView()); err != nil {
		t.Fatal(err)
	}
	fp, err := os.Open(pngName)
	if err != nil {
		t.Fatal(err)
	}
	defer fp.Close()
	img, err := png.Decode(fp)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		t.Errorf("preview size %v, want %dx%d", b, w, h)
	}
}
