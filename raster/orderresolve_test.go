package raster

import (
	"testing"

	"github.com/mbirtwell/octray/order"
	"github.com/soypat/glgl/math/ms3"
)

func TestResolveOrderPicksLeastScreenAlignedAxisFirst(t *testing.T) {
	// Z points along the view direction (largest |z|, the most view-aligned
	// axis, so it must be last in the permutation); X and Y lie mostly in the
	// screen plane.
	ao, _ := resolveOrder(
		ms3.Vec{X: 10, Y: 0, Z: 0.1},
		ms3.Vec{X: 0, Y: 10, Z: 0.2},
		ms3.Vec{X: 0, Y: 0, Z: 1},
	)
	if ao != order.XYZ {
		t.Fatalf("axis order = %v, want XYZ", ao)
	}
}

func TestResolveOrderIsPermutationInvariantToScale(t *testing.T) {
	x := ms3.Vec{X: 1, Y: 0, Z: 5}
	y := ms3.Vec{X: 0, Y: 1, Z: 2}
	z := ms3.Vec{X: 0, Y: 0, Z: 8}
	ao1, oct1 := resolveOrder(x, y, z)
	ao2, oct2 := resolveOrder(ms3.Scale(3, x), ms3.Scale(3, y), ms3.Scale(3, z))
	if ao1 != ao2 || oct1 != oct2 {
		t.Fatalf("scaling axes changed result: (%v,%d) vs (%v,%d)", ao1, oct1, ao2, oct2)
	}
}
