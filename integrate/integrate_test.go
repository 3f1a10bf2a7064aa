package integrate

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"testing"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/element"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/internal/d3"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/voxel"
	"gonum.org/v1/gonum/spatial/r3"
)

func uniformCube(t *testing.T, v r3.Vec) MeshSource {
	t.Helper()
	mesh := fluid.HexBlock(1, 1, 1, r3.Box{Max: d3.Elem(1)})
	loc, err := element.NewLocator(context.Background(), mesh, 0)
	if err != nil {
		t.Fatal(err)
	}
	field := make([]r3.Vec, len(mesh.Vertices))
	for i := range field {
		field[i] = v
	}
	return MeshSource{Locator: loc, Field: field}
}

func TestEulerUniformField(t *testing.T) {
	src := uniformCube(t, r3.Vec{X: 1})
	tr, err := NewTracer(DefaultConfig(ElementBVH), src)
	if err != nil {
		t.Fatal(err)
	}
	lines, err := tr.Trace(context.Background(), []r3.Vec{{}})
	if err != nil {
		t.Fatal(err)
	}
	sl := lines[0]
	if sl.Stalled != -1 {
		t.Errorf("particle stalled at step %d", sl.Stalled)
	}
	if len(sl.Positions) != 5 || len(sl.Scalars) != 5 {
		t.Fatalf("want 5 samples, got %d positions, %d scalars", len(sl.Positions), len(sl.Scalars))
	}
	for i, s := range sl.Scalars {
		if math.Abs(s-1) > 1e-12 {
			t.Errorf("step %d: scalar %g, want 1", i, s)
		}
		if want := (r3.Vec{X: 0.1 * float64(i)}); !d3.EqualWithin(sl.Positions[i], want, 1e-12) {
			t.Errorf("step %d: position %v, want %v", i, sl.Positions[i], want)
		}
	}
	if want := (r3.Vec{X: 0.5}); !d3.EqualWithin(sl.End, want, 1e-12) {
		t.Errorf("end position %v, want %v", sl.End, want)
	}
}

func TestHexFixtureStalls(t *testing.T) {
	mesh, field := fluid.TwoHexes()
	loc, err := element.NewLocator(context.Background(), mesh, 0)
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig(ElementBVH)
	cfg.Dt = 0.4
	cfg.Steps = 10
	tr, err := NewTracer(cfg, MeshSource{Locator: loc, Field: field})
	if err != nil {
		t.Fatal(err)
	}
	seeds := []r3.Vec{
		{X: 0.25, Y: 0.25, Z: 0.25},
		{X: 0.25, Y: 0.75, Z: 0.25},
		{X: 0.25, Y: 0.25, Z: 0.75},
		{X: 0.25, Y: 0.75, Z: 0.75},
	}
	lines, err := tr.Trace(context.Background(), seeds)
	if err != nil {
		t.Fatal(err)
	}
	for i, sl := range lines {
		if sl.Stalled != 9 {
			t.Errorf("seed %d: stalled at %d, want 9", i, sl.Stalled)
		}
		for step := 0; step < 9; step++ {
			if want := 0.25 + 0.2*float64(step); math.Abs(sl.Positions[step].X-want) > 1e-9 {
				t.Errorf("seed %d step %d: x=%g, want %g", i, step, sl.Positions[step].X, want)
			}
			if sl.Scalars[step] <= 0.5-1e-9 {
				t.Errorf("seed %d step %d: speed %g below axial speed", i, step, sl.Scalars[step])
			}
		}
		if sl.Scalars[9] != 0 {
			t.Errorf("seed %d: stalled scalar %g, want 0", i, sl.Scalars[9])
		}
		if sl.Positions[9] != sl.End {
			t.Errorf("seed %d: stalled particle moved from %v to %v", i, sl.Positions[9], sl.End)
		}
	}
}

func TestStallOutside(t *testing.T) {
	src := uniformCube(t, r3.Vec{X: 1})
	tr, err := NewTracer(DefaultConfig(ElementBVH), &src)
	if err != nil {
		t.Fatal(err)
	}
	seed := r3.Vec{X: -3}
	lines, err := tr.Trace(context.Background(), []r3.Vec{seed})
	if err != nil {
		t.Fatal(err)
	}
	sl := lines[0]
	if sl.Stalled != 0 || len(sl.Positions) != 5 {
		t.Fatalf("stalled=%d with %d samples", sl.Stalled, len(sl.Positions))
	}
	for i := range sl.Positions {
		if sl.Positions[i] != seed || sl.Scalars[i] != 0 {
			t.Errorf("step %d: %v %g, want seed with zero scalar", i, sl.Positions[i], sl.Scalars[i])
		}
	}
}

func TestMeshPressure(t *testing.T) {
	src := uniformCube(t, r3.Vec{X: 1})
	src.Pressure = make([]float64, len(src.Field))
	for i, v := range src.Locator.Mesh.Vertices {
		src.Pressure[i] = 2 * v.X
	}
	cfg := DefaultConfig(ElementBVH)
	cfg.Scalar = Pressure
	tr, err := NewTracer(cfg, src)
	if err != nil {
		t.Fatal(err)
	}
	lines, err := tr.Trace(context.Background(), []r3.Vec{{Y: 0.5, Z: 0.5}})
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range lines[0].Scalars {
		if want := 2 * lines[0].Positions[i].X; math.Abs(s-want) > 1e-9 {
			t.Errorf("step %d: pressure %g, want %g", i, s, want)
		}
	}
}

func uniformDense(t *testing.T, v r3.Vec) *voxel.Dense {
	t.Helper()
	dims := [3]int{51, 3, 3}
	values := make([]r3.Vec, dims[0]*dims[1]*dims[2])
	for i := range values {
		values[i] = v
	}
	d, err := voxel.DenseFromSamples(dims, r3.Vec{}, r3.Vec{X: 0.1, Y: 0.5, Z: 0.5}, values, nil)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestSingleVoxelUniform(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig(SingleVoxel)
	cfg.Scalar = Pressure
	cfg.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	tr, err := NewTracer(cfg, uniformDense(t, r3.Vec{X: 1}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "no pressure") {
		t.Errorf("missing pressure fallback warning, log: %q", buf.String())
	}
	lines, err := tr.Trace(context.Background(), []r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}})
	if err != nil {
		t.Fatal(err)
	}
	sl := lines[0]
	// Zero error doubles the step until DtMax caps it.
	wantX := []float64{0.5, 0.6, 0.8, 1.2, 2.0}
	for i, x := range wantX {
		if math.Abs(sl.Positions[i].X-x) > 1e-9 {
			t.Errorf("step %d: x=%g, want %g", i, sl.Positions[i].X, x)
		}
		if math.Abs(sl.Scalars[i]-1) > 1e-6 {
			t.Errorf("step %d: scalar %g, want 1", i, sl.Scalars[i])
		}
	}
	if math.Abs(sl.End.X-3) > 1e-9 {
		t.Errorf("end x=%g, want 3", sl.End.X)
	}
}

func TestNextDtMonotone(t *testing.T) {
	ctl := StepControl{DtMin: 0.01, DtMax: 1, Tolerance: 1e-3}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		dt := ctl.DtMin + rng.Float64()*(ctl.DtMax-ctl.DtMin)
		errEst := rng.Float64() * 2 * ctl.Tolerance
		next := NextDt(dt, errEst, ctl)
		if next > ctl.DtMax {
			t.Fatalf("dt=%g err=%g: next %g exceeds max", dt, errEst, next)
		}
		if errEst < ctl.Tolerance && next < dt {
			t.Fatalf("dt=%g err=%g: step shrank to %g below tolerance", dt, errEst, next)
		}
		if errEst >= ctl.Tolerance && (next > dt || next < ctl.DtMin) {
			t.Fatalf("dt=%g err=%g: shrink gave %g", dt, errEst, next)
		}
	}
	if got := NextDt(0.3, 0, ctl); got != 0.6 {
		t.Errorf("zero error: got %g, want 0.6", got)
	}
	if got := NextDt(0.7, 0, ctl); got != 1 {
		t.Errorf("zero error near max: got %g, want 1", got)
	}
}

func TestRKF45Rotation(t *testing.T) {
	rotate := func(p r3.Vec) (r3.Vec, bool) { return r3.Vec{X: -p.Y, Y: p.X}, true }
	ctl := StepControl{DtMin: 0.01, DtMax: 1, Tolerance: 1e-3}
	p, dt := r3.Vec{X: 1}, 0.1
	for i := 0; i < 20; i++ {
		k1, _ := rotate(p)
		st := RKF45(rotate, p, k1, dt, ctl)
		if st.Partial {
			t.Fatal("partial step in an unbounded field")
		}
		if st.Err < ctl.Tolerance && st.Dt < dt {
			t.Fatalf("step %d: error %g below tolerance shrank dt %g to %g", i, st.Err, dt, st.Dt)
		}
		if st.Dt > ctl.DtMax {
			t.Fatalf("step %d: dt %g exceeds max", i, st.Dt)
		}
		p, dt = st.Next, st.Dt
		// Fifth order steps stay close to the unit circle.
		if r := r3.Norm(p); math.Abs(r-1) > 0.05 {
			t.Fatalf("step %d: radius drifted to %g", i, r)
		}
	}
}

func TestRKF45Partial(t *testing.T) {
	bounded := func(p r3.Vec) (r3.Vec, bool) { return r3.Vec{X: 1}, p.X <= 1 }
	ctl := StepControl{DtMin: 0.01, DtMax: 1, Tolerance: 1e-3}
	st := RKF45(bounded, r3.Vec{X: 0.9}, r3.Vec{X: 1}, 0.5, ctl)
	if !st.Partial || st.Dt != 0.5 {
		t.Fatalf("got %+v, want partial step keeping dt", st)
	}
	if !d3.EqualWithin(st.Next, r3.Vec{X: 1.4}, 1e-12) {
		t.Errorf("fallback position %v, want Euler step to 1.4", st.Next)
	}
}

func TestMultiResolutionVoxel(t *testing.T) {
	ctx := context.Background()
	mesh, field := fluid.TwoHexes()
	loc, err := element.NewLocator(ctx, mesh, 0)
	if err != nil {
		t.Fatal(err)
	}
	points, values, err := loc.PointCloud(ctx, field, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	c, err := voxel.NewCascade(ctx, points, values, voxel.CascadeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig(MultiResolutionVoxel)
	cfg.Dt = 0.4
	tr, err := NewTracer(cfg, c)
	if err != nil {
		t.Fatal(err)
	}
	seeds := Seeds(loc.Tree.Bounds(), SeedOptions{N: 3})
	lines, err := tr.Trace(ctx, seeds)
	if err != nil {
		t.Fatal(err)
	}
	for i, sl := range lines {
		if sl.Stalled == 0 {
			t.Errorf("seed %v has no data", seeds[i])
		}
		if sl.Positions[1].X <= sl.Positions[0].X {
			t.Errorf("seed %v did not move downstream", seeds[i])
		}
		if math.Abs(sl.Scalars[0]-0.5) > 0.1 {
			t.Errorf("seed %v: speed %g far from 0.5", seeds[i], sl.Scalars[0])
		}
	}
}

func TestSourceMismatch(t *testing.T) {
	src := uniformCube(t, r3.Vec{X: 1})
	for _, test := range []struct {
		tech   Technique
		source any
	}{
		{ElementBVH, &voxel.Cascade{}},
		{MultiResolutionVoxel, src},
		{MultiResolutionVoxel, &voxel.Cascade{}},
		{SingleVoxel, src},
		{undefinedTechnique, src},
	} {
		_, err := NewTracer(DefaultConfig(test.tech), test.source)
		if !errors.Is(err, fluid.ErrUnsupportedTechnique) {
			t.Errorf("%v with %T: got %v", test.tech, test.source, err)
		}
	}
	src.Field = src.Field[:2]
	if _, err := NewTracer(DefaultConfig(ElementBVH), src); !errors.Is(err, fluid.ErrLengthMismatch) {
		t.Errorf("short field: got %v", err)
	}
}

func TestParseTechnique(t *testing.T) {
	for _, tech := range []Technique{ElementBVH, MultiResolutionVoxel, SingleVoxel} {
		got, err := ParseTechnique(tech.String())
		if err != nil || got != tech {
			t.Errorf("%v: got %v, %v", tech, got, err)
		}
	}
	if _, err := ParseTechnique("RK4"); !errors.Is(err, fluid.ErrUnsupportedTechnique) {
		t.Errorf("unknown technique: got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	for _, test := range []struct {
		name   string
		modify func(*Config)
	}{
		{"zero steps", func(c *Config) { c.Steps = 0 }},
		{"negative dt", func(c *Config) { c.Dt = -1 }},
		{"inverted bounds", func(c *Config) { c.DtMin, c.DtMax = 1, 0.1 }},
		{"dt above max", func(c *Config) { c.Dt = 2 }},
		{"zero tolerance", func(c *Config) { c.Tolerance = 0 }},
		{"bad scalar", func(c *Config) { c.Scalar = 7 }},
	} {
		cfg := DefaultConfig(SingleVoxel)
		test.modify(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: accepted", test.name)
		}
	}
	if err := DefaultConfig(SingleVoxel).Validate(); err != nil {
		t.Errorf("default config: %v", err)
	}
}

func TestSeeds(t *testing.T) {
	b := d3.Box{Min: r3.Vec{X: -1}, Max: r3.Vec{X: 1, Y: 2, Z: 4}}
	plane := Seeds(b, SeedOptions{})
	if len(plane) != 100 {
		t.Fatalf("plane seeds: got %d, want 100", len(plane))
	}
	for _, s := range plane {
		if math.Abs(s.X+0.9) > 1e-12 {
			t.Fatalf("seed %v off the inset upstream face", s)
		}
	}
	if !d3.EqualWithin(plane[0], r3.Vec{X: -0.9, Y: 0.1, Z: 0.2}, 1e-12) || plane[1].Z != plane[0].Z {
		t.Errorf("plane starts at %v, %v", plane[0], plane[1])
	}
	line := Seeds(b, SeedOptions{Line: true, N: 4})
	if len(line) != 4 {
		t.Fatalf("line seeds: got %d, want 4", len(line))
	}
	for _, s := range line {
		if math.Abs(s.Y-1) > 1e-12 {
			t.Errorf("line seed %v not at mid height", s)
		}
	}
	if math.Abs(line[0].Z-0.2) > 1e-12 || math.Abs(line[3].Z-3.8) > 1e-12 {
		t.Errorf("line spans [%g, %g], want [0.2, 3.8]", line[0].Z, line[3].Z)
	}
}

func TestFlatten(t *testing.T) {
	lines := []Streamline{
		{Positions: []r3.Vec{{X: 1}, {X: 2}}, Scalars: []float64{1, 2}},
		{Positions: []r3.Vec{{Y: 1}}, Scalars: []float64{3}},
	}
	pos, sc, counts := Flatten(lines)
	if len(pos) != 3 || len(sc) != 3 || counts[0] != 2 || counts[1] != 1 {
		t.Fatalf("got %v %v %v", pos, sc, counts)
	}
	if pos[2] != (r3.Vec{Y: 1}) || sc[2] != 3 {
		t.Errorf("second curve misplaced: %v %g", pos[2], sc[2])
	}
}
