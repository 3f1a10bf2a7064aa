package integrate

import (
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/internal/d3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// SeedOptions controls seed placement.
type SeedOptions struct {
	// Line places N seeds on a line along z at mid height in y instead of
	// an N by N grid on the y-z plane.
	Line bool
	// N is the number of seeds per axis, 10 if zero.
	N int
	// Inset pulls seeds in from the bounds by this fraction of the
	// extent on each axis, 0.05 if zero.
	Inset float64
}

// Seeds places seeds on the upstream face x = min.X of bounds.
func Seeds(bounds d3.Box, opts SeedOptions) []r3.Vec {
	n := opts.N
	if n <= 0 {
		n = 10
	}
	inset := opts.Inset
	if inset == 0 {
		inset = 0.05
	}
	b := bounds.Inset(inset)
	x := b.Min.X
	span := func(lo, hi float64) []float64 {
		if n == 1 {
			return []float64{(lo + hi) / 2}
		}
		return floats.Span(make([]float64, n), lo, hi)
	}
	zs := span(b.Min.Z, b.Max.Z)
	if opts.Line {
		y := (b.Min.Y + b.Max.Y) / 2
		seeds := make([]r3.Vec, n)
		for i, z := range zs {
			seeds[i] = r3.Vec{X: x, Y: y, Z: z}
		}
		return seeds
	}
	ys := span(b.Min.Y, b.Max.Y)
	seeds := make([]r3.Vec, 0, n*n)
	for _, z := range zs {
		for _, y := range ys {
			seeds = append(seeds, r3.Vec{X: x, Y: y, Z: z})
		}
	}
	return seeds
}
