package render

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/hull"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/integrate"
	"gonum.org/v1/gonum/spatial/r3"
)

// CellType is a legacy VTK cell type id.
type CellType uint8

const (
	CellPolyLine   CellType = 4
	CellTriangle   CellType = 5
	CellQuad       CellType = 9
	CellTetra      CellType = 10
	CellHexahedron CellType = 12
)

// ElementType returns the mesh element type of volume cells.
func (c CellType) ElementType() (fluid.ElementType, error) {
	switch c {
	case CellTetra:
		return fluid.Tetra4, nil
	case CellHexahedron:
		return fluid.Hexa8, nil
	}
	return 0, fmt.Errorf("%w: VTK cell type %d", fluid.ErrUnsupportedElementType, c)
}

func cellTypeOf(t fluid.ElementType) (CellType, error) {
	switch t {
	case fluid.Tetra4:
		return CellTetra, nil
	case fluid.Hexa8:
		return CellHexahedron, nil
	}
	return 0, fmt.Errorf("%w: %v", fluid.ErrUnsupportedElementType, t)
}

// PointField is a named per point attribute. Exactly one of Vectors and
// Scalars is set.
type PointField struct {
	Name    string
	Vectors []r3.Vec
	Scalars []float64
}

// VTKGrid is an unstructured grid in the legacy VTK layout. Cell i uses
// Counts[i] indices of Conn starting after the indices of cells 0..i-1.
// VTK hexahedron node order matches Hexa8.
type VTKGrid struct {
	Title  string
	Points []r3.Vec
	Conn   []int32
	Counts []int32
	Types  []CellType
	Fields []PointField
}

// MeshGrid lays out a volume mesh with optional nodal velocity and
// pressure fields.
func MeshGrid(mesh fluid.Mesh, velocity []r3.Vec, pressure []float64) (*VTKGrid, error) {
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	ct, err := cellTypeOf(mesh.Type)
	if err != nil {
		return nil, err
	}
	g := &VTKGrid{Title: mesh.Type.String() + " mesh", Points: mesh.Vertices, Conn: mesh.Conn}
	g.uniformCells(mesh.NumElements(), mesh.Type.Arity(), ct)
	if velocity != nil {
		if err := fluid.CheckField(len(mesh.Vertices), velocity); err != nil {
			return nil, err
		}
		g.Fields = append(g.Fields, PointField{Name: "velocity", Vectors: velocity})
	}
	if pressure != nil {
		if len(pressure) != len(mesh.Vertices) {
			return nil, fmt.Errorf("%w: %d pressure samples for %d vertices", fluid.ErrLengthMismatch, len(pressure), len(mesh.Vertices))
		}
		g.Fields = append(g.Fields, PointField{Name: "pressure", Scalars: pressure})
	}
	return g, nil
}

// SurfaceGrid lays out a boundary surface as triangle or quad cells.
func SurfaceGrid(vertices []r3.Vec, s *hull.Surface) (*VTKGrid, error) {
	if err := s.Validate(len(vertices)); err != nil {
		return nil, err
	}
	ct := CellTriangle
	if s.Arity == 4 {
		ct = CellQuad
	}
	g := &VTKGrid{Title: "boundary surface", Points: vertices, Conn: s.Faces}
	g.uniformCells(s.NumFaces(), s.Arity, ct)
	return g, nil
}

// StreamlineGrid lays out one poly line per streamline with the traced
// scalar as point data.
func StreamlineGrid(lines []integrate.Streamline, scalar integrate.ScalarKind) *VTKGrid {
	positions, scalars, counts := integrate.Flatten(lines)
	g := &VTKGrid{
		Title:  "streamlines",
		Points: positions,
		Conn:   make([]int32, len(positions)),
		Counts: make([]int32, len(counts)),
		Types:  make([]CellType, len(counts)),
		Fields: []PointField{{Name: scalar.String(), Scalars: scalars}},
	}
	for i := range g.Conn {
		g.Conn[i] = int32(i)
	}
	for i, c := range counts {
		g.Counts[i] = int32(c)
		g.Types[i] = CellPolyLine
	}
	return g
}

func (g *VTKGrid) uniformCells(n, arity int, ct CellType) {
	g.Counts = make([]int32, n)
	g.Types = make([]CellType, n)
	for i := range g.Counts {
		g.Counts[i] = int32(arity)
		g.Types[i] = ct
	}
}

// NumCells returns the number of cells.
func (g *VTKGrid) NumCells() int { return len(g.Types) }

// Field returns the point field with the given name.
func (g *VTKGrid) Field(name string) (PointField, bool) {
	for _, f := range g.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return PointField{}, false
}

// Mesh returns the grid as a volume mesh. Every cell must be a tetrahedron
// or every cell a hexahedron.
func (g *VTKGrid) Mesh() (fluid.Mesh, error) {
	if len(g.Types) == 0 {
		return fluid.Mesh{}, errors.New("grid has no cells")
	}
	typ, err := g.Types[0].ElementType()
	if err != nil {
		return fluid.Mesh{}, err
	}
	for i, ct := range g.Types {
		if ct != g.Types[0] || int(g.Counts[i]) != typ.Arity() {
			return fluid.Mesh{}, fmt.Errorf("%w: cell %d is type %d with %d nodes, want uniform %v cells", fluid.ErrUnsupportedElementType, i, ct, g.Counts[i], typ)
		}
	}
	return fluid.NewMesh(typ, g.Points, g.Conn)
}

func (g *VTKGrid) validate() error {
	if len(g.Counts) != len(g.Types) {
		return fmt.Errorf("%w: %d cell counts, %d cell types", fluid.ErrLengthMismatch, len(g.Counts), len(g.Types))
	}
	total := 0
	for _, c := range g.Counts {
		total += int(c)
	}
	if total != len(g.Conn) {
		return fmt.Errorf("%w: cells reference %d indices, connectivity has %d", fluid.ErrLengthMismatch, total, len(g.Conn))
	}
	for i, idx := range g.Conn {
		if idx < 0 || int(idx) >= len(g.Points) {
			return fmt.Errorf("%w: connectivity entry %d is %d, grid has %d points", fluid.ErrIndexOutOfRange, i, idx, len(g.Points))
		}
	}
	for _, f := range g.Fields {
		n := len(f.Scalars)
		if f.Vectors != nil {
			n = len(f.Vectors)
		}
		if n != len(g.Points) {
			return fmt.Errorf("%w: point field %q has %d samples for %d points", fluid.ErrLengthMismatch, f.Name, n, len(g.Points))
		}
	}
	return nil
}

// WriteTo writes the grid in legacy ASCII VTK format.
func (g *VTKGrid) WriteTo(w io.Writer) (int64, error) {
	if err := g.validate(); err != nil {
		return 0, err
	}
	cw := &countWriter{w: w}
	bw := bufio.NewWriter(cw)
	title := strings.ReplaceAll(g.Title, "\n", " ")
	fmt.Fprintf(bw, "# vtk DataFile Version 4.2\n%s\nASCII\nDATASET UNSTRUCTURED_GRID\n", title)
	fmt.Fprintf(bw, "POINTS %d double\n", len(g.Points))
	var num []byte
	for _, p := range g.Points {
		num = appendVec(num[:0], p)
		bw.Write(num)
	}
	fmt.Fprintf(bw, "CELLS %d %d\n", len(g.Counts), len(g.Counts)+len(g.Conn))
	off := 0
	for _, c := range g.Counts {
		num = strconv.AppendInt(num[:0], int64(c), 10)
		for _, idx := range g.Conn[off : off+int(c)] {
			num = append(num, ' ')
			num = strconv.AppendInt(num, int64(idx), 10)
		}
		num = append(num, '\n')
		bw.Write(num)
		off += int(c)
	}
	fmt.Fprintf(bw, "CELL_TYPES %d\n", len(g.Types))
	for _, ct := range g.Types {
		num = strconv.AppendInt(num[:0], int64(ct), 10)
		num = append(num, '\n')
		bw.Write(num)
	}
	if len(g.Fields) > 0 {
		fmt.Fprintf(bw, "POINT_DATA %d\n", len(g.Points))
	}
	for _, f := range g.Fields {
		name := strings.ReplaceAll(f.Name, " ", "_")
		if f.Vectors != nil {
			fmt.Fprintf(bw, "VECTORS %s double\n", name)
			for _, v := range f.Vectors {
				num = appendVec(num[:0], v)
				bw.Write(num)
			}
			continue
		}
		fmt.Fprintf(bw, "SCALARS %s double 1\nLOOKUP_TABLE default\n", name)
		for _, s := range f.Scalars {
			num = strconv.AppendFloat(num[:0], s, 'g', -1, 64)
			num = append(num, '\n')
			bw.Write(num)
		}
	}
	err := bw.Flush()
	return cw.n, err
}

func appendVec(b []byte, v r3.Vec) []byte {
	b = strconv.AppendFloat(b, v.X, 'g', -1, 64)
	b = append(b, ' ')
	b = strconv.AppendFloat(b, v.Y, 'g', -1, 64)
	b = append(b, ' ')
	b = strconv.AppendFloat(b, v.Z, 'g', -1, 64)
	return append(b, '\n')
}

type countWriter struct {
	w io.Writer
	n int64
}

func (c *countWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += int64(n)
	return n, err
}

// maxPrealloc caps capacity reserved from counts declared in a file.
const maxPrealloc = 1 << 20

// ReadVTK parses a legacy ASCII VTK unstructured grid. Point data VECTORS
// and SCALARS are kept; cell data and field arrays are skipped.
func ReadVTK(r io.Reader) (*VTKGrid, error) {
	br := bufio.NewReader(r)
	version, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading VTK version line: %w", err)
	}
	if !strings.HasPrefix(version, "# vtk DataFile") {
		return nil, fmt.Errorf("not a legacy VTK file: %q", strings.TrimSpace(version))
	}
	title, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading VTK title: %w", err)
	}
	g := &VTKGrid{Title: strings.TrimSpace(title)}
	sc := newTokenizer(br)
	if format := sc.word(); !strings.EqualFold(format, "ASCII") {
		return nil, fmt.Errorf("unsupported VTK format %q", format)
	}
	if kw, ds := sc.word(), sc.word(); kw != "DATASET" || ds != "UNSTRUCTURED_GRID" {
		return nil, fmt.Errorf("unsupported VTK dataset %q %q", kw, ds)
	}
	section := ""
	for {
		kw, ok := sc.next()
		if !ok {
			break
		}
		switch strings.ToUpper(kw) {
		case "POINTS":
			n := sc.count()
			sc.word() // data type
			if sc.err != nil {
				break
			}
			g.Points = make([]r3.Vec, 0, min(n, maxPrealloc))
			for i := 0; i < n && sc.err == nil; i++ {
				g.Points = append(g.Points, sc.vec())
			}
		case "CELLS":
			n, size := sc.count(), sc.count()
			if sc.err != nil {
				break
			}
			g.Counts = make([]int32, 0, min(n, maxPrealloc))
			g.Conn = make([]int32, 0, min(max(size-n, 0), maxPrealloc))
			for i := 0; i < n && sc.err == nil; i++ {
				c := sc.count()
				g.Counts = append(g.Counts, int32(c))
				for j := 0; j < c && sc.err == nil; j++ {
					g.Conn = append(g.Conn, int32(sc.count()))
				}
			}
		case "CELL_TYPES":
			n := sc.count()
			if sc.err != nil {
				break
			}
			g.Types = make([]CellType, 0, min(n, maxPrealloc))
			for i := 0; i < n && sc.err == nil; i++ {
				g.Types = append(g.Types, CellType(sc.count()))
			}
		case "POINT_DATA":
			section = "point"
			if n := sc.count(); sc.err == nil && n != len(g.Points) {
				sc.fail(fmt.Errorf("%w: POINT_DATA %d for %d points", fluid.ErrLengthMismatch, n, len(g.Points)))
			}
		case "CELL_DATA":
			section = "cell"
			sc.count()
		case "VECTORS":
			name := sc.word()
			sc.word()
			n := sc.attributeLen(section, len(g.Points), len(g.Types))
			if sc.err != nil {
				break
			}
			f := PointField{Name: name, Vectors: make([]r3.Vec, n)}
			for i := range f.Vectors {
				f.Vectors[i] = sc.vec()
			}
			if section == "point" {
				g.Fields = append(g.Fields, f)
			}
		case "SCALARS":
			name := sc.word()
			sc.word()
			// Optional component count, then the mandatory lookup table.
			comps := 1
			if tok := sc.word(); !strings.EqualFold(tok, "LOOKUP_TABLE") && sc.err == nil {
				c, err := strconv.Atoi(tok)
				if err != nil || c < 1 || c > 4 {
					sc.fail(fmt.Errorf("invalid VTK scalar component count %q", tok))
				}
				comps = c
				sc.word()
			}
			sc.word()
			n := sc.attributeLen(section, len(g.Points), len(g.Types))
			if sc.err != nil {
				break
			}
			f := PointField{Name: name, Scalars: make([]float64, n)}
			for i := range f.Scalars {
				f.Scalars[i] = sc.number()
				for c := 1; c < comps; c++ {
					sc.number()
				}
			}
			if section == "point" {
				g.Fields = append(g.Fields, f)
			}
		case "FIELD":
			sc.word()
			for a := sc.count(); a > 0 && sc.err == nil; a-- {
				sc.word()
				comps, tuples := sc.count(), sc.count()
				sc.word()
				for i := 0; i < comps*tuples && sc.err == nil; i++ {
					sc.number()
				}
			}
		case "METADATA":
			// Terminated by a blank line, which the tokenizer cannot see.
			return nil, errors.New("VTK METADATA blocks are not supported")
		default:
			sc.fail(fmt.Errorf("unexpected VTK keyword %q", kw))
		}
		if sc.err != nil {
			return nil, sc.err
		}
	}
	if sc.err != nil {
		return nil, sc.err
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

type tokenizer struct {
	s   *bufio.Scanner
	err error
}

func newTokenizer(r io.Reader) *tokenizer {
	s := bufio.NewScanner(r)
	s.Split(bufio.ScanWords)
	return &tokenizer{s: s}
}

func (t *tokenizer) fail(err error) {
	if t.err == nil {
		t.err = err
	}
}

func (t *tokenizer) next() (string, bool) {
	if t.err != nil || !t.s.Scan() {
		if t.err == nil {
			t.err = t.s.Err()
		}
		return "", false
	}
	return t.s.Text(), true
}

func (t *tokenizer) word() string {
	w, ok := t.next()
	if !ok {
		t.fail(io.ErrUnexpectedEOF)
	}
	return w
}

func (t *tokenizer) count() int {
	w := t.word()
	if t.err != nil {
		return 0
	}
	v, err := strconv.Atoi(w)
	if err != nil {
		t.fail(err)
		return 0
	} else if v < 0 {
		t.fail(fmt.Errorf("negative VTK count %d", v))
		return 0
	}
	return v
}

func (t *tokenizer) number() float64 {
	w := t.word()
	if t.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(w, 64)
	if err != nil {
		t.fail(err)
	}
	return v
}

func (t *tokenizer) vec() r3.Vec {
	return r3.Vec{X: t.number(), Y: t.number(), Z: t.number()}
}

func (t *tokenizer) attributeLen(section string, points, cells int) int {
	switch section {
	case "point":
		return points
	case "cell":
		return cells
	}
	t.fail(errors.New("VTK attribute outside of POINT_DATA or CELL_DATA"))
	return 0
}
