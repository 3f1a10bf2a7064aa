// Package compress drops the vertices a surface does not reference and
// renumbers its indices densely.
package compress

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/internal/multimap"
	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/internal/par"
	"gonum.org/v1/gonum/spatial/r3"
)

const unused = -1

// Options configures Vertices.
type Options struct {
	Workers int
	Logger  *slog.Logger // nil uses slog.Default
}

// Vertices returns the vertices referenced by indices and the indices
// rewritten to address them. Referenced vertices keep their relative
// order, so compressing an already compressed set is the identity.
func Vertices(ctx context.Context, vertices []r3.Vec, indices []int32, opts Options) (dense []r3.Vec, remapped []int32, err error) {
	mapping := make([]int32, len(vertices))
	for i := range mapping {
		mapping[i] = unused
	}
	nv := len(vertices)
	// Claim: the first index referencing a vertex marks it used.
	var claimed atomic.Int64
	err = par.For(ctx, len(indices), opts.Workers, func(i int) error {
		idx := indices[i]
		if idx < 0 || int(idx) >= nv {
			return fmt.Errorf("%w: index %d at position %d, %d vertices", fluid.ErrIndexOutOfRange, idx, i, nv)
		}
		if atomic.CompareAndSwapInt32(&mapping[idx], unused, 0) {
			claimed.Add(1)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	used, offsets, err := multimap.Compact(ctx, nv, opts.Workers, func(v int, w *multimap.Writer[int32]) error {
		if mapping[v] != unused {
			w.Put(int32(v))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if int64(len(used)) != claimed.Load() {
		return nil, nil, fmt.Errorf("%w: %d vertices claimed, %d compacted", fluid.ErrHashCapacityExceeded, claimed.Load(), len(used))
	}
	dense = make([]r3.Vec, len(used))
	err = par.For(ctx, len(used), opts.Workers, func(j int) error {
		v := used[j]
		mapping[v] = int32(offsets[v])
		dense[j] = vertices[v]
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	remapped = make([]int32, len(indices))
	err = par.For(ctx, len(indices), opts.Workers, func(i int) error {
		remapped[i] = mapping[indices[i]]
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Debug("compressed vertices", slog.Int("before", nv), slog.Int("after", len(dense)))
	return dense, remapped, nil
}
