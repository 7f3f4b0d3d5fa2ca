package raster

import (
	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"
)

// Mat is a synthesized affine approximation of a node's perspective
// projection: Origin is the node's (screenX, screenY, viewDepth) center and
// X, Y, Z are the half-extent edge vectors in the same space, built by
// BuildAffine once a grid is found to project near-linearly (spec §4.5).
type Mat struct {
	Origin ms3.Vec
	X, Y, Z ms3.Vec
}

// BuildAffine runs the affine-approximation test of spec §4.4: for the
// three grid edges from the (negative,negative,negative) corner, it
// compares the perspective-correct midpoint against the linear
// interpolation of the two endpoints. If every edge's screen-space
// deviation is within tolerance, it synthesizes M from the (now validated
// near-linear) corner-to-corner half vectors and returns true.
func BuildAffine(grid *Grid, tolerance, pixelScale float32, perspective bool) (Mat, bool) {
	origin := grid.Corner(0)
	for _, axisOctant := range [3]uint8{1, 2, 4} {
		far := grid.Corner(axisOctant)
		avgPos := ms3.Scale(0.5, ms3.Add(origin.Position, far.Position))
		trueMid := project(avgPos, pixelScale, perspective)
		linearMid := ms3.Scale(0.5, ms3.Add(origin.Projection, far.Projection))
		if math32.Abs(trueMid.X-linearMid.X) > tolerance || math32.Abs(trueMid.Y-linearMid.Y) > tolerance {
			return Mat{}, false
		}
	}
	x := ms3.Scale(0.5, ms3.Sub(grid.Corner(1).Projection, origin.Projection))
	y := ms3.Scale(0.5, ms3.Sub(grid.Corner(2).Projection, origin.Projection))
	z := ms3.Scale(0.5, ms3.Sub(grid.Corner(4).Projection, origin.Projection))
	// Screen X/Y come from the projections; the depth components come from
	// the view-space positions, so Origin.Z and the axes' Z are view depths.
	x.Z = 0.5 * (grid.Corner(1).Position.Z - origin.Position.Z)
	y.Z = 0.5 * (grid.Corner(2).Position.Z - origin.Position.Z)
	z.Z = 0.5 * (grid.Corner(4).Position.Z - origin.Position.Z)
	center := ms3.Add(origin.Projection, ms3.Add(x, ms3.Add(y, z)))
	center.Z = origin.Position.Z + x.Z + y.Z + z.Z
	return Mat{Origin: center, X: x, Y: y, Z: z}, true
}

// IsApproximatelyAffine reports whether grid would pass BuildAffine's
// distortion test at the given tolerance, without constructing the matrix.
// It is monotone in tolerance: raising tolerance can only turn a failing
// grid into a passing one, never the reverse (spec §8).
func IsApproximatelyAffine(grid *Grid, tolerance, pixelScale float32, perspective bool) bool {
	_, ok := BuildAffine(grid, tolerance, pixelScale, perspective)
	return ok
}
