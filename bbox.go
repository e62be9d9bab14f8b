package rtree

import (
	"fmt"
	"math"
)

// BBox is an axis-aligned bounding box in three dimensions.
type BBox struct {
	Min, Max [3]float64
}

// emptyBBox is the identity for combine. It is what the native library
// stores as the bounds of a node without children.
func emptyBBox() BBox {
	inf := math.Inf(+1)
	return BBox{
		Min: [3]float64{inf, inf, inf},
		Max: [3]float64{-inf, -inf, -inf},
	}
}

// Valid reports whether max is strictly greater than min on every axis.
func (b BBox) Valid() bool {
	for i := 0; i < 3; i++ {
		if !(b.Max[i] > b.Min[i]) {
			return false
		}
	}
	return true
}

// Union gives the smallest bounding box containing both a and b. It fails
// with ErrDegenerateBox if the result has zero or negative extent on any
// axis.
func Union(a, b BBox) (BBox, error) {
	bb := combine(a, b)
	if !bb.Valid() {
		return BBox{}, fmt.Errorf("union of %v and %v: %w", a, b, ErrDegenerateBox)
	}
	return bb, nil
}

// HalfWidth returns half the extent of the box along each axis.
func (b BBox) HalfWidth() [3]float64 {
	return [3]float64{
		(b.Max[0] - b.Min[0]) * .5,
		(b.Max[1] - b.Min[1]) * .5,
		(b.Max[2] - b.Min[2]) * .5,
	}
}

// SurfaceArea is the total area of the six faces of the box.
func (b BBox) SurfaceArea() float64 {
	h := b.HalfWidth()
	// Each face is 4 half-width products, and there are 2 faces per axis.
	return (h[0]*h[1] + h[1]*h[2] + h[2]*h[0]) * 8
}

// String formats the extent of the box, which is what the dump tool cares
// about far more than its position.
func (b BBox) String() string {
	return fmt.Sprintf("(%5.1f %5.1f %5.1f)",
		b.Max[0]-b.Min[0], b.Max[1]-b.Min[1], b.Max[2]-b.Min[2])
}

// combine gives the smallest bounding box containing both bbox1 and bbox2.
func combine(bbox1, bbox2 BBox) BBox {
	var bb BBox
	for i := 0; i < 3; i++ {
		bb.Min[i] = math.Min(bbox1.Min[i], bbox2.Min[i])
		bb.Max[i] = math.Max(bbox1.Max[i], bbox2.Max[i])
	}
	return bb
}

// center returns the midpoint of the box along an axis, doubled. Only the
// ordering matters to the packer so the halving is skipped.
func center(bb BBox, axis int) float64 {
	return bb.Min[axis] + bb.Max[axis]
}

func overlap(bbox1, bbox2 BBox) bool {
	for i := 0; i < 3; i++ {
		if bbox1.Min[i] > bbox2.Max[i] || bbox1.Max[i] < bbox2.Min[i] {
			return false
		}
	}
	return true
}
