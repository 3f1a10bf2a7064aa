package voxel

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// Spacing selects how the base voxel size of a point cloud is estimated.
type Spacing uint8

const (
	// SpacingExtent divides the coordinate extent of the cloud by the
	// cube root of its size, as if the points were evenly spread.
	SpacingExtent Spacing = iota
	// SpacingNearest uses the mean nearest neighbour distance.
	SpacingNearest
)

func (s Spacing) String() string {
	switch s {
	case SpacingExtent:
		return "extent"
	case SpacingNearest:
		return "nearest"
	}
	return fmt.Sprintf("Spacing(%d)", uint8(s))
}

// ParseSpacing converts a configuration name to a Spacing.
func ParseSpacing(s string) (Spacing, error) {
	switch s {
	case "", "extent":
		return SpacingExtent, nil
	case "nearest":
		return SpacingNearest, nil
	}
	return 0, fmt.Errorf("unknown voxel spacing %q", s)
}

var errZeroRadius = errors.New("point cloud has no spatial extent")

// Radius estimates a voxel size for points scaled by factor.
func Radius(points []r3.Vec, factor float64, mode Spacing) (float64, error) {
	if len(points) == 0 {
		return 0, errors.New("empty point cloud")
	}
	if !(factor > 0) {
		return 0, fmt.Errorf("invalid radius factor %g", factor)
	}
	var base float64
	switch mode {
	case SpacingExtent:
		coords := make([]float64, 0, 3*len(points))
		for _, p := range points {
			coords = append(coords, p.X, p.Y, p.Z)
		}
		extent := floats.Max(coords) - floats.Min(coords)
		base = extent / math.Cbrt(float64(len(points)))
	case SpacingNearest:
		if len(points) < 2 {
			return 0, errZeroRadius
		}
		base = meanNearest(points)
	default:
		return 0, fmt.Errorf("unknown voxel spacing %v", mode)
	}
	r := base * factor
	if !(r > 0) || math.IsInf(r, 0) {
		return 0, errZeroRadius
	}
	return r, nil
}

// meanNearest returns the mean distance from every point to its nearest
// neighbour. Duplicated points count as distance zero.
func meanNearest(points []r3.Vec) float64 {
	pts := make(kdtree.Points, len(points))
	for i, p := range points {
		pts[i] = kdtree.Point{p.X, p.Y, p.Z}
	}
	queries := make([]kdtree.Point, len(pts))
	copy(queries, pts)
	tree := kdtree.New(pts, false)
	dists := make([]float64, len(queries))
	for i, q := range queries {
		keep := kdtree.NewNKeeper(2)
		tree.NearestSet(keep, q)
		// Results are sorted by distance and the closest is q itself.
		dists[i] = math.Sqrt(keep.Heap[len(keep.Heap)-1].Dist)
	}
	return floats.Sum(dists) / float64(len(dists))
}
