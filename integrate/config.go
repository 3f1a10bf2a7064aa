package integrate

import (
	"errors"
	"fmt"
	"log/slog"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
)

// Config holds the parameters of a tracing run.
type Config struct {
	Technique Technique
	// Dt is the time step of Euler techniques and the initial step of
	// SingleVoxel.
	Dt    float64
	Steps int // samples per streamline
	// DtMin, DtMax and Tolerance control the adaptive step of SingleVoxel.
	DtMin     float64
	DtMax     float64
	Tolerance float64
	Scalar    ScalarKind
	Workers   int // <= 0 uses every CPU
	Logger    *slog.Logger
}

// DefaultConfig returns the default parameters for technique t.
func DefaultConfig(t Technique) Config {
	return Config{
		Technique: t,
		Dt:        0.1,
		Steps:     5,
		DtMin:     0.01,
		DtMax:     1.0,
		Tolerance: 0.001,
	}
}

// Validate checks the parameters are usable.
func (c Config) Validate() error {
	switch c.Technique {
	case ElementBVH, MultiResolutionVoxel, SingleVoxel:
	default:
		return fmt.Errorf("%w: %v", fluid.ErrUnsupportedTechnique, c.Technique)
	}
	if c.Scalar != VelocityMagnitude && c.Scalar != Pressure {
		return fmt.Errorf("unknown streamline scalar %v", c.Scalar)
	}
	if c.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", c.Steps)
	}
	if !(c.Dt > 0) {
		return fmt.Errorf("time step must be positive, got %g", c.Dt)
	}
	if c.Technique != SingleVoxel {
		return nil
	}
	if !(c.DtMin > 0) || c.DtMin > c.DtMax {
		return fmt.Errorf("invalid step bounds [%g, %g]", c.DtMin, c.DtMax)
	}
	if c.Dt < c.DtMin || c.Dt > c.DtMax {
		return fmt.Errorf("initial step %g outside of [%g, %g]", c.Dt, c.DtMin, c.DtMax)
	}
	if !(c.Tolerance > 0) {
		return errors.New("error tolerance must be positive")
	}
	return nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
