package raster

import (
	"github.com/chewxy/math32"
	"github.com/mbirtwell/octray/order"
	"github.com/soypat/glgl/math/ms3"
)

// resolveOrder derives the axis-order and camera-octant indices that select
// an order.Queue for a node, from the node's three (possibly non-orthogonal)
// view-space edge vectors (spec §4.6).
func resolveOrder(x, y, z ms3.Vec) (order.AxisOrder, uint8) {
	absZ := [3]float32{math32.Abs(x.Z), math32.Abs(y.Z), math32.Abs(z.Z)}
	// Rank the three axis indices (0=X,1=Y,2=Z) by ascending |.z|; perm[0]
	// is least screen-normal-aligned (leading letter), perm[2] most so.
	var perm [3]uint8
	if absZ[0] <= absZ[1] && absZ[1] <= absZ[2] {
		perm = [3]uint8{0, 1, 2} // XYZ
	} else if absZ[0] <= absZ[2] && absZ[2] <= absZ[1] {
		perm = [3]uint8{0, 2, 1} // XZY
	} else if absZ[1] <= absZ[0] && absZ[0] <= absZ[2] {
		perm = [3]uint8{1, 0, 2} // YXZ
	} else if absZ[1] <= absZ[2] && absZ[2] <= absZ[0] {
		perm = [3]uint8{1, 2, 0} // YZX
	} else if absZ[2] <= absZ[0] && absZ[0] <= absZ[1] {
		perm = [3]uint8{2, 0, 1} // ZXY
	} else {
		perm = [3]uint8{2, 1, 0} // ZYX
	}
	ao := axisOrderFromPermutation(perm)

	var octant uint8
	if y.Y*z.X-y.X*z.Y > 0 {
		octant |= 1
	}
	if z.Y*x.X-z.X*x.Y > 0 {
		octant |= 2
	}
	if x.Y*y.X-x.X*y.Y > 0 {
		octant |= 4
	}
	return ao, octant
}

// axisOrderFromPermutation matches a least-to-most-screen-aligned axis
// permutation to its order.AxisOrder constant; must agree with the
// permutation table order.go builds its traversal queues from.
func axisOrderFromPermutation(perm [3]uint8) order.AxisOrder {
	switch perm {
	case [3]uint8{0, 1, 2}:
		return order.XYZ
	case [3]uint8{0, 2, 1}:
		return order.XZY
	case [3]uint8{1, 0, 2}:
		return order.YXZ
	case [3]uint8{1, 2, 0}:
		return order.YZX
	case [3]uint8{2, 0, 1}:
		return order.ZXY
	default:
		return order.ZYX
	}
}
