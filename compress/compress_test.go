package compress

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"testing"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestVertices(t *testing.T) {
	vertices := []r3.Vec{{X: 0}, {X: 1}, {X: 2}, {X: 3}, {X: 4}}
	indices := []int32{4, 1, 4, 3, 1}
	dense, remapped, err := Vertices(context.Background(), vertices, indices, Options{})
	if err != nil {
		t.Fatal(err)
	}
	wantDense := []r3.Vec{{X: 1}, {X: 3}, {X: 4}}
	wantIdx := []int32{2, 0, 2, 1, 0}
	if !slices.Equal(dense, wantDense) {
		t.Errorf("dense vertices: got %v, want %v", dense, wantDense)
	}
	if !slices.Equal(remapped, wantIdx) {
		t.Errorf("indices: got %v, want %v", remapped, wantIdx)
	}
}

func TestVerticesRoundTripIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	vertices := make([]r3.Vec, 5000)
	for i := range vertices {
		vertices[i] = r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}
	}
	indices := make([]int32, 20000)
	for i := range indices {
		indices[i] = int32(rng.Intn(len(vertices) / 2))
	}
	ctx := context.Background()
	dense, remapped, err := Vertices(ctx, vertices, indices, Options{Workers: 8})
	if err != nil {
		t.Fatal(err)
	}
	if len(dense) > len(vertices)/2 {
		t.Fatalf("%d vertices survived, at most %d referenced", len(dense), len(vertices)/2)
	}
	for i, idx := range indices {
		if dense[remapped[i]] != vertices[idx] {
			t.Fatalf("index %d: compressed vertex %v, original %v", i, dense[remapped[i]], vertices[idx])
		}
	}
	dense2, remapped2, err := Vertices(ctx, dense, remapped, Options{Workers: 3})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(dense, dense2) || !slices.Equal(remapped, remapped2) {
		t.Error("compressing twice changed the output")
	}
}

func TestVerticesOutOfRange(t *testing.T) {
	_, _, err := Vertices(context.Background(), make([]r3.Vec, 3), []int32{0, 3}, Options{})
	if !errors.Is(err, fluid.ErrIndexOutOfRange) {
		t.Errorf("got %v, want ErrIndexOutOfRange", err)
	}
	_, _, err = Vertices(context.Background(), make([]r3.Vec, 3), []int32{-1}, Options{})
	if !errors.Is(err, fluid.ErrIndexOutOfRange) {
		t.Errorf("negative index: got %v", err)
	}
}

func TestVerticesEmpty(t *testing.T) {
	dense, remapped, err := Vertices(context.Background(), make([]r3.Vec, 4), nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(dense) != 0 || len(remapped) != 0 {
		t.Errorf("got %d vertices, %d indices", len(dense), len(remapped))
	}
}
