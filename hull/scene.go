package hull

import (
	"context"
	"fmt"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/compress"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultFacetLimit is the largest surface handed to scene authoring.
const DefaultFacetLimit = 1000000

// Scene is a polygon mesh in the points, face vertex indices and face
// vertex counts layout of scene description formats.
type Scene struct {
	Points            []r3.Vec
	FaceVertexIndices []int32
	FaceVertexCounts  []int32
}

// NewScene compresses the vertices referenced by s and lays the surface
// out for authoring. Surfaces with more than facetLimit faces fail with
// fluid.ErrFacetLimit; facetLimit <= 0 disables the check.
func NewScene(ctx context.Context, vertices []r3.Vec, s *Surface, facetLimit int) (*Scene, error) {
	if facetLimit > 0 && s.NumFaces() > facetLimit {
		return nil, fmt.Errorf("%w: %d faces, limit %d", fluid.ErrFacetLimit, s.NumFaces(), facetLimit)
	}
	if err := s.Validate(len(vertices)); err != nil {
		return nil, err
	}
	points, indices, err := compress.Vertices(ctx, vertices, s.Faces, compress.Options{})
	if err != nil {
		return nil, err
	}
	counts := make([]int32, s.NumFaces())
	for i := range counts {
		counts[i] = int32(s.Arity)
	}
	return &Scene{Points: points, FaceVertexIndices: indices, FaceVertexCounts: counts}, nil
}
