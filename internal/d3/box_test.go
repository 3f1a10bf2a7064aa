package d3

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestBoxOverlaps(t *testing.T) {
	unit := Box{Max: Elem(1)}
	for _, test := range []struct {
		b    Box
		want bool
	}{
		{Box{Min: Elem(0.5), Max: Elem(2)}, true},
		{Box{Min: Elem(1), Max: Elem(2)}, true}, // touching corner
		{Box{Min: r3.Vec{X: 1.01}, Max: Elem(2)}, false},
		{Box{Min: Elem(-1), Max: Elem(3)}, true},
		{EmptyBox(), false},
	} {
		if got := unit.Overlaps(test.b); got != test.want {
			t.Errorf("%v overlaps %v: got %v, want %v", unit, test.b, got, test.want)
		}
		if got := test.b.Overlaps(unit); got != test.want {
			t.Errorf("overlap of %v not symmetric", test.b)
		}
	}
}

func TestBoxBuilders(t *testing.T) {
	pts := []r3.Vec{{X: 1, Y: -2, Z: 3}, {X: -1, Y: 4, Z: 0}, {}}
	b := BoundingBox(pts)
	want := Box{Min: r3.Vec{X: -1, Y: -2}, Max: r3.Vec{X: 1, Y: 4, Z: 3}}
	if !b.Equals(want, 0) {
		t.Fatalf("got %v, want %v", b, want)
	}
	if !EmptyBox().Extend(b).Equals(b, 0) {
		t.Error("extending the empty box must yield the argument")
	}
	in := b.Inset(0.25)
	if !in.Equals(Box{Min: r3.Vec{X: -0.5, Y: -0.5, Z: 0.75}, Max: r3.Vec{X: 0.5, Y: 2.5, Z: 2.25}}, 1e-12) {
		t.Errorf("inset: got %v", in)
	}
	if c := b.Center(); !EqualWithin(c, r3.Vec{Y: 1, Z: 1.5}, 1e-12) {
		t.Errorf("center: got %v", c)
	}
	for _, v := range b.Vertices() {
		if !b.Equals(b.Include(v), 0) {
			t.Errorf("corner %v outside box", v)
		}
	}
}
