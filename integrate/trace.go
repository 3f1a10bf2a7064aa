package integrate

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/internal/par"
	"gonum.org/v1/gonum/spatial/r3"
)

// Streamline is the path of one particle. Positions and Scalars hold one
// entry per step. A particle leaving the field stalls: its last position
// repeats with scalar zero for the remaining steps.
type Streamline struct {
	Positions []r3.Vec
	Scalars   []float64
	// Stalled is the first step with no field data, or -1.
	Stalled int
	// End is the position after the last step.
	End r3.Vec
}

// Tracer integrates streamlines through one field source. It is safe for
// concurrent use.
type Tracer struct {
	cfg Config
	src sampler
	log *slog.Logger
}

// NewTracer checks cfg and pairs it with source, which must be a
// MeshSource for ElementBVH, a *voxel.Cascade for MultiResolutionVoxel and
// a *voxel.Dense or *voxel.Grid for SingleVoxel. Mismatches fail with
// fluid.ErrUnsupportedTechnique.
func NewTracer(cfg Config, source any) (*Tracer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s, pressureLost, err := newSampler(cfg, source)
	if err != nil {
		return nil, err
	}
	log := cfg.logger()
	if pressureLost {
		log.Warn("field has no pressure, recording velocity magnitude", slog.String("technique", cfg.Technique.String()))
	}
	return &Tracer{cfg: cfg, src: s, log: log}, nil
}

// Config returns the tracer parameters.
func (t *Tracer) Config() Config { return t.cfg }

// Trace integrates one streamline per seed in parallel.
func (t *Tracer) Trace(ctx context.Context, seeds []r3.Vec) ([]Streamline, error) {
	lines := make([]Streamline, len(seeds))
	var stalled atomic.Int64
	err := par.For(ctx, len(seeds), t.cfg.Workers, func(i int) error {
		if t.cfg.Technique == SingleVoxel {
			lines[i] = t.traceAdaptive(seeds[i])
		} else {
			lines[i] = t.traceEuler(seeds[i])
		}
		if lines[i].Stalled >= 0 {
			stalled.Add(1)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.log.Debug("traced streamlines",
		slog.String("technique", t.cfg.Technique.String()),
		slog.Int("seeds", len(seeds)),
		slog.Int("steps", t.cfg.Steps),
		slog.Int64("stalled", stalled.Load()),
	)
	return lines, nil
}

func newStreamline(steps int) Streamline {
	return Streamline{
		Positions: make([]r3.Vec, 0, steps),
		Scalars:   make([]float64, 0, steps),
		Stalled:   -1,
	}
}

func (sl *Streamline) record(p r3.Vec, scalar float64) {
	sl.Positions = append(sl.Positions, p)
	sl.Scalars = append(sl.Scalars, scalar)
}

// stall fills the remaining steps from step on with the stalled position.
func (sl *Streamline) stall(p r3.Vec, step, steps int) {
	sl.Stalled = step
	for ; step < steps; step++ {
		sl.record(p, 0)
	}
	sl.End = p
}

func (t *Tracer) traceEuler(seed r3.Vec) Streamline {
	sl := newStreamline(t.cfg.Steps)
	p := seed
	for step := 0; step < t.cfg.Steps; step++ {
		v, scalar, ok := t.src.sample(p)
		if !ok {
			sl.stall(p, step, t.cfg.Steps)
			return sl
		}
		sl.record(p, scalar)
		p = Euler(p, v, t.cfg.Dt)
	}
	sl.End = p
	return sl
}

func (t *Tracer) traceAdaptive(seed r3.Vec) Streamline {
	sl := newStreamline(t.cfg.Steps)
	ctl := StepControl{DtMin: t.cfg.DtMin, DtMax: t.cfg.DtMax, Tolerance: t.cfg.Tolerance}
	velocity := func(p r3.Vec) (r3.Vec, bool) {
		v, _, ok := t.src.sample(p)
		return v, ok
	}
	p, dt := seed, t.cfg.Dt
	for step := 0; step < t.cfg.Steps; step++ {
		k1, scalar, ok := t.src.sample(p)
		if !ok {
			sl.stall(p, step, t.cfg.Steps)
			return sl
		}
		sl.record(p, scalar)
		st := RKF45(velocity, p, k1, dt, ctl)
		p, dt = st.Next, st.Dt
	}
	sl.End = p
	return sl
}

// Flatten packs streamlines into the flat layout of curve primitives:
// all positions back to back, their scalars, and the vertex count of
// every curve.
func Flatten(lines []Streamline) (positions []r3.Vec, scalars []float64, counts []int) {
	n := 0
	for _, l := range lines {
		n += len(l.Positions)
	}
	positions = make([]r3.Vec, 0, n)
	scalars = make([]float64, 0, n)
	counts = make([]int, len(lines))
	for i, l := range lines {
		positions = append(positions, l.Positions...)
		scalars = append(scalars, l.Scalars...)
		counts[i] = len(l.Positions)
	}
	return positions, scalars, counts
}
