package voxel

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultCascadeFactors scale the base radius of each cascade level,
// finest first.
var DefaultCascadeFactors = []float64{0.1, 0.5, 1, 2}

// CascadeOptions configures NewCascade.
type CascadeOptions struct {
	Factors []float64 // nil means DefaultCascadeFactors
	Spacing Spacing
	Workers int
}

// Cascade is a stack of sparse grids over the same samples at growing
// voxel sizes. Fine levels resolve detail, coarse levels fill the gaps
// fine levels leave empty.
type Cascade struct {
	Levels []*Grid
}

// NewCascade rasterizes points and values once per radius factor.
func NewCascade(ctx context.Context, points, values []r3.Vec, opts CascadeOptions) (*Cascade, error) {
	factors := opts.Factors
	if len(factors) == 0 {
		factors = DefaultCascadeFactors
	}
	c := &Cascade{Levels: make([]*Grid, 0, len(factors))}
	for i, f := range factors {
		r, err := Radius(points, f, opts.Spacing)
		if err != nil {
			return nil, fmt.Errorf("cascade level %d: %w", i, err)
		}
		g, err := Rasterize(ctx, points, values, r, opts.Workers)
		if err != nil {
			return nil, fmt.Errorf("cascade level %d: %w", i, err)
		}
		c.Levels = append(c.Levels, g)
	}
	return c, nil
}

// Sample returns the value of the finest level holding data at p and
// that level's index. It reports false when no level does.
func (c *Cascade) Sample(p r3.Vec) (v r3.Vec, level int, ok bool) {
	for i, g := range c.Levels {
		if v, ok := g.Sample(p); ok {
			return v, i, true
		}
	}
	return r3.Vec{}, -1, false
}
