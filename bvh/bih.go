// Package bvh implements a bounding interval hierarchy over element
// bounding boxes for point location in volume meshes.
package bvh

import (
	"iter"
	"math"
	"sort"

	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	LEAF = iota
	X_CLIP
	Y_CLIP
	Z_CLIP
)

// LeafSize is the maximum number of boxes stored in a leaf.
const LeafSize = 4

// QueryEpsilon is the half size of the box used by QueryPoint. It must
// exceed the round-off of vertex coordinates so a point lying exactly on
// a shared face still overlaps the boxes of both elements.
const QueryEpsilon = 1e-8

type bihInternal struct {
	flags       int // offset to children is stored in the upper bits, lower two bits are used as flags
	left, right int64
	// either:
	// - left child max and right child min clip planes (float64 bits)
	// - or offset into the item list and the end of the leaf's items
}

func (b *bihInternal) is_leaf() bool {
	return (b.flags & 3) == LEAF
}

func (b *bihInternal) axis() int {
	return (b.flags & 3) - 1
}

func (b *bihInternal) leftClip() float64 {
	return math.Float64frombits(uint64(b.left))
}

func (b *bihInternal) rightClip() float64 {
	return math.Float64frombits(uint64(b.right))
}

// Tree is an immutable bounding interval hierarchy. It is safe for
// concurrent queries.
type Tree struct {
	bih    []bihInternal
	items  []int32  // element ids, permuted so each leaf is contiguous
	boxes  []d3.Box // indexed by element id
	bounds d3.Box
}

// Build constructs a tree over boxes. Box i is reported as candidate i by
// queries. boxes is retained by the tree and must not be modified.
func Build(boxes []d3.Box) *Tree {
	t := &Tree{
		items:  make([]int32, len(boxes)),
		boxes:  boxes,
		bounds: d3.EmptyBox(),
	}
	centroids := make([]r3.Vec, len(boxes))
	for i, b := range boxes {
		t.items[i] = int32(i)
		centroids[i] = b.Center()
		t.bounds = t.bounds.Extend(b)
	}
	t.bih = make([]bihInternal, 1, max(1, 2*len(boxes)/LeafSize))
	t.bih = subdivide(t.bih, 0, 0, t.items, boxes, centroids)
	return t
}

func subdivide(b []bihInternal, bih_idx int, item_idx int, items []int32, boxes []d3.Box, centroids []r3.Vec) []bihInternal {
	if len(items) <= LeafSize {
		b[bih_idx] = bihInternal{
			flags: LEAF,
			left:  int64(item_idx),
			right: int64(item_idx + len(items)),
		}
		return b
	}
	// Classical heuristic: split the longest axis of the centroid bounds
	// using the median as the pivot point.
	cb := d3.EmptyBox()
	for _, it := range items {
		cb = cb.Include(centroids[it])
	}
	dims := cb.Size()
	clipping_plane := X_CLIP
	if dims.X >= dims.Y && dims.X >= dims.Z {
		clipping_plane = X_CLIP
	} else if dims.Y >= dims.X && dims.Y >= dims.Z {
		clipping_plane = Y_CLIP
	} else {
		clipping_plane = Z_CLIP
	}
	axis := clipping_plane - 1
	sort.Slice(items, func(i, j int) bool {
		return d3.Comp(centroids[items[i]], axis) < d3.Comp(centroids[items[j]], axis)
	})

	left_half := len(items) / 2
	left_plane := -math.MaxFloat64
	right_plane := math.MaxFloat64
	for _, it := range items[:left_half] {
		left_plane = math.Max(left_plane, d3.Comp(boxes[it].Max, axis))
	}
	for _, it := range items[left_half:] {
		right_plane = math.Min(right_plane, d3.Comp(boxes[it].Min, axis))
	}

	// append two new nodes to store the children
	children_idx := len(b)
	b = append(b, bihInternal{}, bihInternal{})
	b = subdivide(b, children_idx, item_idx, items[:left_half], boxes, centroids)
	b = subdivide(b, children_idx+1, item_idx+left_half, items[left_half:], boxes, centroids)

	b[bih_idx] = bihInternal{
		flags: (children_idx << 2) | clipping_plane,
		left:  int64(math.Float64bits(left_plane)),
		right: int64(math.Float64bits(right_plane)),
	}
	return b
}

// Len returns the number of boxes in the tree.
func (t *Tree) Len() int { return len(t.boxes) }

// Bounds returns the box enclosing every box of the tree.
func (t *Tree) Bounds() d3.Box { return t.bounds }

// Box returns the i'th box the tree was built with.
func (t *Tree) Box(i int) d3.Box { return t.boxes[i] }

// Query returns the ids of the boxes overlapping q. Ids are produced
// lazily, each in-order traversal is independent of any other and may be
// abandoned early.
func (t *Tree) Query(q d3.Box) iter.Seq[int] {
	return func(yield func(int) bool) {
		if len(t.boxes) == 0 || !t.bounds.Overlaps(q) {
			return
		}
		var stackBuf [64]int
		stack := append(stackBuf[:0], 0)
		for len(stack) > 0 {
			node := &t.bih[stack[len(stack)-1]]
			stack = stack[:len(stack)-1]
			if node.is_leaf() {
				for _, it := range t.items[node.left:node.right] {
					if t.boxes[it].Overlaps(q) && !yield(int(it)) {
						return
					}
				}
				continue
			}
			axis := node.axis()
			left_idx := node.flags >> 2
			// Push right first so the left child is visited first.
			if d3.Comp(q.Max, axis) >= node.rightClip() {
				stack = append(stack, left_idx+1)
			}
			if d3.Comp(q.Min, axis) <= node.leftClip() {
				stack = append(stack, left_idx)
			}
		}
	}
}

// QueryPoint returns the ids of the boxes containing p, grown by
// QueryEpsilon on every side.
func (t *Tree) QueryPoint(p r3.Vec) iter.Seq[int] {
	return t.Query(d3.PointBox(p, QueryEpsilon))
}
