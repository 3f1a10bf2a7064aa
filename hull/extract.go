package hull

import (
	"context"
	"fmt"
	"log/slog"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/internal/multimap"
	"gonum.org/v1/gonum/spatial/r3"
)

// Options configures Extract.
type Options struct {
	Workers int
	// Buckets sets the face table size. Zero uses three buckets per element.
	Buckets int
	Logger  *slog.Logger
}

// Surface is a boundary surface of a single face kind. Faces holds Arity
// vertex indices per face, in the winding of the element they bound.
type Surface struct {
	Type  fluid.ElementType // element type of the source mesh
	Arity int
	Faces []int32
}

// NumFaces returns the number of faces.
func (s *Surface) NumFaces() int {
	if s.Arity == 0 {
		return 0
	}
	return len(s.Faces) / s.Arity
}

// Face returns the vertex indices of face i.
func (s *Surface) Face(i int) []int32 {
	return s.Faces[i*s.Arity : (i+1)*s.Arity]
}

// Triangles returns the faces as triangles, quads split along their
// first diagonal.
func (s *Surface) Triangles() []int32 {
	if s.Arity == 3 {
		return s.Faces
	}
	tris := make([]int32, 0, 6*s.NumFaces())
	for i := 0; i < s.NumFaces(); i++ {
		f := s.Face(i)
		tris = append(tris, f[0], f[1], f[2], f[0], f[2], f[3])
	}
	return tris
}

// Area returns the total area of the surface.
func (s *Surface) Area(vertices []r3.Vec) float64 {
	tris := s.Triangles()
	var area float64
	for i := 0; i+2 < len(tris); i += 3 {
		t := r3.Triangle{vertices[tris[i]], vertices[tris[i+1]], vertices[tris[i+2]]}
		area += t.Area()
	}
	return area
}

// Extract returns the faces of mesh that belong to a single element.
//
// Every face of every element is inserted into a bucketed table keyed by
// its sorted node ids. A face whose key appears once is on the boundary;
// twice it is interior. Any other count means the mesh is not manifold or
// the table is inconsistent and fails with a *fluid.TopologyError.
// Faces are emitted in element order.
func Extract(ctx context.Context, mesh fluid.Mesh, opts Options) (*Surface, error) {
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	nelem := mesh.NumElements()
	nfaces := mesh.Type.NumFaces()
	buckets := opts.Buckets
	if buckets <= 0 {
		buckets = max(3*nelem, 1)
	}
	table, err := multimap.Build(ctx, nelem, multimap.Config{Buckets: buckets, Workers: opts.Workers},
		func(i int, in *multimap.Inserter[Key, Face]) error {
			var buf [4]int32
			for f := 0; f < nfaces; f++ {
				k := NewKey(faceNodes(&buf, mesh, i, f))
				in.Insert(k, k.Hash(), Face{Element: int32(i), Local: int8(f)})
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	faces, _, err := multimap.Compact(ctx, nelem, opts.Workers, func(i int, w *multimap.Writer[int32]) error {
		var buf [4]int32
		for f := 0; f < nfaces; f++ {
			nodes := faceNodes(&buf, mesh, i, f)
			k := NewKey(nodes)
			h := k.Hash()
			switch n := table.Count(k, h); n {
			case 1:
				for _, v := range nodes {
					w.Put(v)
				}
			case 2:
			default:
				kind := fluid.ErrNonManifoldFace
				if n == 0 {
					kind = fluid.ErrNoMatchingFace
				}
				return &fluid.TopologyError{Err: kind, Element: i, Face: f, Bucket: table.BucketOf(h), Matches: n}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s := &Surface{Type: mesh.Type, Arity: FaceArity(mesh.Type), Faces: faces}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Debug("extracted hull",
		slog.String("type", mesh.Type.String()),
		slog.Int("elements", nelem),
		slog.Int("buckets", buckets),
		slog.Int("faces", s.NumFaces()),
	)
	return s, nil
}

// Validate checks every face index addresses one of n vertices.
func (s *Surface) Validate(n int) error {
	if s.Arity != 3 && s.Arity != 4 {
		return fmt.Errorf("%w: face arity %d", fluid.ErrUnsupportedElementType, s.Arity)
	}
	if len(s.Faces)%s.Arity != 0 {
		return fmt.Errorf("%w: %d face indices not a multiple of %d", fluid.ErrLengthMismatch, len(s.Faces), s.Arity)
	}
	for i, v := range s.Faces {
		if v < 0 || int(v) >= n {
			return &fluid.ElementError{Element: i / s.Arity, Index: int(v), Err: fluid.ErrIndexOutOfRange}
		}
	}
	return nil
}
