package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/buffer"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/element"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/hull"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/integrate"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/internal/par"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/render"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/voxel"
	"gonum.org/v1/gonum/spatial/r3"
)

// dataset is a volume mesh with nodal velocity and pressure.
type dataset struct {
	mesh     fluid.Mesh
	velocity []r3.Vec
	pressure []float64
}

// result collects what a run produced.
type result struct {
	lines   []integrate.Streamline
	surface *hull.Surface
	scene   *hull.Scene
	files   []string
}

func run(ctx context.Context, cfg config, logger *slog.Logger) (*result, error) {
	tc, err := cfg.tracerConfig(logger)
	if err != nil {
		return nil, err
	}
	ds, err := loadDataset(cfg.Mesh)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded mesh", slog.String("type", ds.mesh.Type.String()),
		slog.Int("elements", ds.mesh.NumElements()), slog.Int("vertices", len(ds.mesh.Vertices)))

	start := time.Now()
	loc, err := element.NewLocator(ctx, ds.mesh, tc.Workers)
	if err != nil {
		return nil, err
	}
	logger.Debug("built element tree", slog.Int("boxes", loc.Tree.Len()), slog.Duration("took", time.Since(start)))

	source, err := fieldSource(ctx, cfg, tc, loc, ds, logger)
	if err != nil {
		return nil, err
	}
	tracer, err := integrate.NewTracer(tc, source)
	if err != nil {
		return nil, err
	}
	seeds := integrate.Seeds(loc.Tree.Bounds(), integrate.SeedOptions{Line: cfg.Trace.SeedLine, N: cfg.Trace.Seeds})
	start = time.Now()
	lines, err := tracer.Trace(ctx, seeds)
	if err != nil {
		return nil, err
	}
	stalled := 0
	for _, sl := range lines {
		if sl.Stalled >= 0 {
			stalled++
		}
	}
	logger.Info("traced streamlines", slog.String("technique", tc.Technique.String()),
		slog.Int("seeds", len(seeds)), slog.Int("stalled", stalled), slog.Duration("took", time.Since(start)))

	surface, err := hull.Extract(ctx, ds.mesh, hull.Options{Workers: tc.Workers, Logger: logger})
	if err != nil {
		return nil, err
	}
	res := &result{lines: lines, surface: surface}
	res.scene, err = hull.NewScene(ctx, ds.mesh.Vertices, surface, cfg.Output.FacetLimit)
	switch {
	case errors.Is(err, fluid.ErrFacetLimit):
		logger.Warn("boundary surface not authored", slog.String("err", err.Error()))
	case err != nil:
		return nil, err
	default:
		logger.Info("extracted boundary", slog.Int("faces", surface.NumFaces()),
			slog.Int("points", len(res.scene.Points)), slog.Float64("area", surface.Area(ds.mesh.Vertices)))
	}
	res.files, err = writeOutputs(cfg, tc, ds, res)
	if err != nil {
		return nil, err
	}
	for _, f := range res.files {
		logger.Info("wrote", slog.String("file", f))
	}
	return res, nil
}

func loadDataset(mc meshConfig) (dataset, error) {
	var ds dataset
	if mc.File != "" {
		fp, err := os.Open(mc.File)
		if err != nil {
			return ds, err
		}
		defer fp.Close()
		g, err := render.ReadVTK(fp)
		if err != nil {
			return ds, fmt.Errorf("%s: %w", mc.File, err)
		}
		if ds.mesh, err = g.Mesh(); err != nil {
			return ds, fmt.Errorf("%s: %w", mc.File, err)
		}
		if f, ok := g.Field("velocity"); ok && f.Vectors != nil {
			ds.velocity = f.Vectors
		}
		if f, ok := g.Field("pressure"); ok && f.Scalars != nil {
			ds.pressure = f.Scalars
		}
	} else {
		for _, c := range mc.Cells {
			if c <= 0 {
				return ds, fmt.Errorf("fixture cell counts must be positive, got %v", mc.Cells)
			}
		}
		box := r3.Box{Max: r3.Vec{X: mc.Size[0], Y: mc.Size[1], Z: mc.Size[2]}}
		switch strings.ToLower(mc.Fixture) {
		case "hex", "":
			ds.mesh = fluid.HexBlock(mc.Cells[0], mc.Cells[1], mc.Cells[2], box)
		case "tet":
			ds.mesh = fluid.TetBlock(mc.Cells[0], mc.Cells[1], mc.Cells[2], box)
		default:
			return ds, fmt.Errorf("%w: fixture %q", fluid.ErrUnsupportedElementType, mc.Fixture)
		}
	}
	if ds.velocity == nil {
		ds.velocity, ds.pressure = syntheticField(ds.mesh.Vertices, mc)
	}
	return ds, nil
}

// syntheticField is a uniform stream plus a solid body swirl about the
// x axis through the center of the vertices. Pressure follows Bernoulli
// with unit density.
func syntheticField(vertices []r3.Vec, mc meshConfig) ([]r3.Vec, []float64) {
	var c r3.Vec
	for _, v := range vertices {
		c = r3.Add(c, v)
	}
	if len(vertices) > 0 {
		c = r3.Scale(1/float64(len(vertices)), c)
	}
	u := r3.Vec{X: mc.Velocity[0], Y: mc.Velocity[1], Z: mc.Velocity[2]}
	vel := make([]r3.Vec, len(vertices))
	prs := make([]float64, len(vertices))
	for i, v := range vertices {
		d := r3.Sub(v, c)
		vel[i] = r3.Add(u, r3.Scale(mc.Swirl, r3.Vec{Y: -d.Z, Z: d.Y}))
		prs[i] = -0.5 * r3.Norm2(vel[i])
	}
	return vel, prs
}

// fieldSource prepares the field representation the technique samples.
func fieldSource(ctx context.Context, cfg config, tc integrate.Config, loc *element.Locator, ds dataset, logger *slog.Logger) (any, error) {
	switch tc.Technique {
	case integrate.ElementBVH:
		return integrate.MeshSource{Locator: loc, Field: ds.velocity, Pressure: ds.pressure}, nil
	case integrate.MultiResolutionVoxel:
		spacing, err := voxel.ParseSpacing(cfg.Voxel.Spacing)
		if err != nil {
			return nil, err
		}
		points, values, err := loc.PointCloud(ctx, ds.velocity, cfg.Voxel.Lattice, tc.Workers)
		if err != nil {
			return nil, err
		}
		c, err := voxel.NewCascade(ctx, points, values, voxel.CascadeOptions{
			Factors: cfg.Voxel.Factors,
			Spacing: spacing,
			Workers: tc.Workers,
		})
		if err != nil {
			return nil, err
		}
		for i, g := range c.Levels {
			logger.Debug("cascade level", slog.Int("level", i), slog.Float64("voxel_size", g.VoxelSize()), slog.Int("voxels", g.Len()))
		}
		return c, nil
	case integrate.SingleVoxel:
		return denseVolume(ctx, loc, ds, cfg.Voxel.Lattice, tc.Workers, logger)
	}
	return nil, fmt.Errorf("%w: %v", fluid.ErrUnsupportedTechnique, tc.Technique)
}

// denseVolume samples the mesh field on an n^3 lattice and hands the
// packed volume through device memory, the way a volume produced by a
// simulation service arrives as an external allocation.
func denseVolume(ctx context.Context, loc *element.Locator, ds dataset, n, workers int, logger *slog.Logger) (*voxel.Dense, error) {
	if n < 2 {
		return nil, fmt.Errorf("dense lattice needs at least 2 samples per axis, got %d", n)
	}
	const eps = 1e-8
	bounds := loc.Tree.Bounds()
	lattice := element.LatticePoints(bounds, n, eps)
	vel := make([]r3.Vec, len(lattice))
	prs := make([]float64, len(lattice))
	missing := make([]bool, len(lattice))
	err := par.For(ctx, len(lattice), workers, func(i int) error {
		elem, ref, ok := loc.Locate(lattice[i])
		if !ok {
			missing[i] = true
			return nil
		}
		vel[i] = element.Interpolate(ds.mesh, elem, ref, ds.velocity)
		if ds.pressure != nil {
			prs[i] = element.InterpolateScalar(ds.mesh, elem, ref, ds.pressure)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	var mask []bool
	nmiss := 0
	for _, m := range missing {
		if m {
			nmiss++
		}
	}
	if nmiss > 0 {
		mask = make([]bool, len(missing))
		for i, m := range missing {
			mask[i] = !m
		}
		logger.Debug("lattice samples outside of mesh masked", slog.Int("count", nmiss))
	}
	if ds.pressure == nil {
		prs = nil
	}
	size := r3.Sub(bounds.Max, bounds.Min)
	step := r3.Scale(1/float64(n-1), r3.Sub(size, r3.Vec{X: 2 * eps, Y: 2 * eps, Z: 2 * eps}))
	origin := r3.Add(bounds.Min, r3.Vec{X: eps, Y: eps, Z: eps})
	dims := [3]int{n, n, n}
	host, err := voxel.DenseFromSamples(dims, origin, step, vel, prs)
	if err != nil {
		return nil, err
	}

	dev := buffer.NewHostDevice(0)
	pool := new(buffer.StagingPool)
	cache := buffer.NewInteropCache(dev)
	up := buffer.NewHost(host.Data, buffer.Float32)
	if err := up.Upload(dev, pool); err != nil {
		return nil, err
	}
	h, err := up.Handle()
	if err != nil {
		return nil, err
	}
	external, sizeBytes, err := dev.Export(h)
	if err != nil {
		return nil, err
	}
	imported, err := cache.Resolve(external, sizeBytes)
	if err != nil {
		return nil, err
	}
	down := buffer.FromDevice(dev, imported, len(host.Data), buffer.Float32)
	if err := down.Download(pool); err != nil {
		return nil, err
	}
	cache.Invalidate(external)
	if err := dev.Free(h); err != nil {
		return nil, err
	}
	if err := pool.AssertAllReleased(); err != nil {
		return nil, err
	}
	data, err := down.Host()
	if err != nil {
		return nil, err
	}
	logger.Debug("dense volume transferred", slog.String("device", dev.Name()),
		slog.Int("bytes", sizeBytes), slog.Int("in_use", dev.InUse()))
	dense, err := voxel.NewDense(dims, host.Components, data, origin, step)
	if err != nil {
		return nil, err
	}
	if err := dense.SetMask(mask); err != nil {
		return nil, err
	}
	return dense, nil
}

func writeOutputs(cfg config, tc integrate.Config, ds dataset, res *result) (files []string, err error) {
	oc := cfg.Output
	if err := os.MkdirAll(oc.Dir, 0o755); err != nil {
		return nil, err
	}
	path := func(name string) string { return filepath.Join(oc.Dir, name) }
	writeFile := func(name string, write func(fp *os.File) error) error {
		fp, err := os.Create(path(name))
		if err != nil {
			return err
		}
		if err := write(fp); err != nil {
			fp.Close()
			return fmt.Errorf("%s: %w", name, err)
		}
		files = append(files, path(name))
		return fp.Close()
	}
	if oc.STL && res.scene != nil {
		r, err := render.NewSceneRenderer(res.scene)
		if err != nil {
			return files, err
		}
		if err := render.CreateSTL(path("hull.stl"), r); err != nil {
			return files, err
		}
		files = append(files, path("hull.stl"))
		if oc.PNG {
			if err := render.PreviewSTL(path("hull.stl"), path("hull.png"), oc.Width, oc.Height, render.DefaultView()); err != nil {
				return files, err
			}
			files = append(files, path("hull.png"))
		}
	}
	if oc.VTK {
		grids := []struct {
			name string
			grid func() (*render.VTKGrid, error)
		}{
			{"mesh.vtk", func() (*render.VTKGrid, error) { return render.MeshGrid(ds.mesh, ds.velocity, ds.pressure) }},
			{"hull.vtk", func() (*render.VTKGrid, error) { return render.SurfaceGrid(ds.mesh.Vertices, res.surface) }},
			{"streamlines.vtk", func() (*render.VTKGrid, error) { return render.StreamlineGrid(res.lines, tc.Scalar), nil }},
		}
		for _, g := range grids {
			grid, err := g.grid()
			if err != nil {
				return files, err
			}
			err = writeFile(g.name, func(fp *os.File) error {
				_, err := grid.WriteTo(fp)
				return err
			})
			if err != nil {
				return files, err
			}
		}
	}
	if oc.Plot && len(res.lines) > 0 {
		err := writeFile("scalars.png", func(fp *os.File) error {
			return render.WriteScalarPlot(fp, res.lines, tc.Scalar)
		})
		if err != nil {
			return files, err
		}
	}
	return files, nil
}
