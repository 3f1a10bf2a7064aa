package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/integrate"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/voxel"
	"github.com/pelletier/go-toml/v2"
)

// config is the TOML run description. Flags override file values.
type config struct {
	Mesh   meshConfig   `toml:"mesh"`
	Trace  traceConfig  `toml:"trace"`
	Voxel  voxelConfig  `toml:"voxel"`
	Output outputConfig `toml:"output"`
	Log    logConfig    `toml:"log"`
}

type meshConfig struct {
	// File is a legacy VTK unstructured grid of tetrahedra or hexahedra.
	// Empty generates Fixture instead.
	File    string     `toml:"file"`
	Fixture string     `toml:"fixture"` // "hex" or "tet"
	Cells   [3]int     `toml:"cells"`
	Size    [3]float64 `toml:"size"`
	// Velocity and Swirl define the synthetic field used when the mesh
	// carries no "velocity" point data.
	Velocity [3]float64 `toml:"velocity"`
	Swirl    float64    `toml:"swirl"`
}

type traceConfig struct {
	Technique string  `toml:"technique"`
	Dt        float64 `toml:"dt"`
	Steps     int     `toml:"steps"`
	DtMin     float64 `toml:"dt_min"`
	DtMax     float64 `toml:"dt_max"`
	Tolerance float64 `toml:"tolerance"`
	Scalar    string  `toml:"scalar"`
	Seeds     int     `toml:"seeds"`
	SeedLine  bool    `toml:"seed_line"`
	Workers   int     `toml:"workers"`
}

type voxelConfig struct {
	Spacing string    `toml:"spacing"`
	Factors []float64 `toml:"factors"`
	// Lattice is the number of samples per axis taken from the mesh to
	// build voxel volumes.
	Lattice int `toml:"lattice"`
}

type outputConfig struct {
	Dir        string `toml:"dir"`
	STL        bool   `toml:"stl"`
	VTK        bool   `toml:"vtk"`
	PNG        bool   `toml:"png"`
	Plot       bool   `toml:"plot"`
	FacetLimit int    `toml:"facet_limit"`
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
}

type logConfig struct {
	Level string `toml:"level"`
}

func defaultConfig() config {
	tc := integrate.DefaultConfig(integrate.ElementBVH)
	return config{
		Mesh: meshConfig{
			Fixture:  "hex",
			Cells:    [3]int{8, 4, 4},
			Size:     [3]float64{4, 2, 2},
			Velocity: [3]float64{1, 0, 0},
		},
		Trace: traceConfig{
			Technique: tc.Technique.String(),
			Dt:        tc.Dt,
			Steps:     tc.Steps,
			DtMin:     tc.DtMin,
			DtMax:     tc.DtMax,
			Tolerance: tc.Tolerance,
			Scalar:    tc.Scalar.String(),
			Seeds:     10,
		},
		Voxel: voxelConfig{
			Spacing: voxel.SpacingExtent.String(),
			Factors: append([]float64(nil), voxel.DefaultCascadeFactors...),
			Lattice: 24,
		},
		Output: outputConfig{
			Dir:        ".",
			STL:        true,
			VTK:        true,
			FacetLimit: 1000000,
			Width:      800,
			Height:     600,
		},
		Log: logConfig{Level: "info"},
	}
}

// decodeConfig overlays the TOML document in r onto cfg. Unknown keys
// are errors so typos do not silently fall back to defaults.
func decodeConfig(r io.Reader, cfg *config) error {
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}

// parseArgs builds the run configuration from the optional config file
// and the command line flags.
func parseArgs(args []string, stderr io.Writer) (config, error) {
	cfg := defaultConfig()
	fs := flag.NewFlagSet("streamtrace", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cfgPath   = fs.String("config", "", "TOML configuration file")
		meshFile  = fs.String("mesh", "", "legacy VTK volume mesh (overrides [mesh] file)")
		technique = fs.String("technique", "", "ELEMENT_BVH, MULTI_RESOLUTION_VOXEL or SINGLE_VOXEL")
		steps     = fs.Int("steps", 0, "samples per streamline")
		dt        = fs.Float64("dt", 0, "time step")
		scalar    = fs.String("scalar", "", "streamline scalar: velocity or pressure")
		seeds     = fs.Int("seeds", 0, "seeds per axis")
		workers   = fs.Int("workers", 0, "parallel workers, 0 uses every CPU")
		outDir    = fs.String("out", "", "output directory")
		level     = fs.String("log-level", "", "debug, info, warn or error")
	)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if *cfgPath != "" {
		fp, err := os.Open(*cfgPath)
		if err != nil {
			return cfg, err
		}
		defer fp.Close()
		if err := decodeConfig(fp, &cfg); err != nil {
			return cfg, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mesh":
			cfg.Mesh.File = *meshFile
		case "technique":
			cfg.Trace.Technique = *technique
		case "steps":
			cfg.Trace.Steps = *steps
		case "dt":
			cfg.Trace.Dt = *dt
		case "scalar":
			cfg.Trace.Scalar = *scalar
		case "seeds":
			cfg.Trace.Seeds = *seeds
		case "workers":
			cfg.Trace.Workers = *workers
		case "out":
			cfg.Output.Dir = *outDir
		case "log-level":
			cfg.Log.Level = *level
		}
	})
	return cfg, nil
}

// tracerConfig converts the trace section into integrator parameters.
func (c config) tracerConfig(logger *slog.Logger) (integrate.Config, error) {
	t, err := integrate.ParseTechnique(strings.ToUpper(c.Trace.Technique))
	if err != nil {
		return integrate.Config{}, err
	}
	scalar, err := integrate.ParseScalarKind(c.Trace.Scalar)
	if err != nil {
		return integrate.Config{}, err
	}
	tc := integrate.Config{
		Technique: t,
		Dt:        c.Trace.Dt,
		Steps:     c.Trace.Steps,
		DtMin:     c.Trace.DtMin,
		DtMax:     c.Trace.DtMax,
		Tolerance: c.Trace.Tolerance,
		Scalar:    scalar,
		Workers:   c.Trace.Workers,
		Logger:    logger,
	}
	return tc, tc.Validate()
}

func (c config) logLevel() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(c.Log.Level))
	return lvl, err
}
