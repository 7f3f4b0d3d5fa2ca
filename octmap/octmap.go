// Package octmap bakes the octant occupancy map consulted by the affine
// splatter (spec §4.3, §4.5): a square bitmask image where texel (x,y)
// carries a bit for every octant whose projected extent covers that pixel.
package octmap

import (
	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms2"
)

// MinShift and MaxShift bound the valid map resolutions (spec §6,
// map_shift ∈ [4..8]).
const (
	MinShift = 4
	MaxShift = 8
)

// ClampShift clamps shift into [MinShift, MaxShift], per §7's
// "out-of-range configuration... clamped silently" rule.
func ClampShift(shift int) int {
	if shift < MinShift {
		return MinShift
	}
	if shift > MaxShift {
		return MaxShift
	}
	return shift
}

// Map is a square bitmask image: bit i of texel (x,y) is set iff octant i's
// projected half-extent covers that pixel.
type Map struct {
	shift int
	side  int
	bits  []uint8
}

// New allocates a Map of side 1<<shift. shift is clamped to [MinShift,MaxShift].
func New(shift int) *Map {
	shift = ClampShift(shift)
	side := 1 << uint(shift)
	return &Map{shift: shift, side: side, bits: make([]uint8, side*side)}
}

// Shift returns log2(Side()).
func (m *Map) Shift() int { return m.shift }

// Side returns the map's width/height in texels.
func (m *Map) Side() int { return m.side }

// At returns the octant bitmask at texel (x,y). Out-of-range coordinates
// return 0.
func (m *Map) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= m.side || y >= m.side {
		return 0
	}
	return m.bits[y*m.side+x]
}

// Row returns the bitmask row y, indexable by x. The splatter reads one
// texel of it per rectangle pixel and ANDs that texel with the node's mask.
func (m *Map) Row(y int) []uint8 {
	if y < 0 || y >= m.side {
		return nil
	}
	return m.bits[y*m.side : y*m.side+m.side]
}

// octantSigns enumerates the 8 octants in (z⊗y⊗x) order with (-1,+1) signs,
// matching the delta-table enumeration of spec §4.5.
var octantSigns = [8][3]float32{
	{-1, -1, -1}, {+1, -1, -1},
	{-1, +1, -1}, {+1, +1, -1},
	{-1, -1, +1}, {+1, -1, +1},
	{-1, +1, +1}, {+1, +1, +1},
}

// Bake fills m with the octant occupancy of a node centered at center with
// screen-space half-axes axes (the 2D projections of the node's X, Y, Z
// edge vectors, already scaled to half-extent). For each texel and each
// octant, the texel's offset from the octant's local center is projected
// onto each axis (normalized by that axis's squared length) and the octant
// is considered to cover the texel when all three normalized projections
// fall within [-0.5, 0.5] of a margin-widened band — the "three dot
// products against face normals bounded by a margin" test of spec §4.5,
// specialized to a (possibly non-orthogonal) 2D screen-space basis.
func (m *Map) Bake(center ms2.Vec, axes [3]ms2.Vec, margin float32) {
	lenSq := [3]float32{
		ms2.Dot(axes[0], axes[0]),
		ms2.Dot(axes[1], axes[1]),
		ms2.Dot(axes[2], axes[2]),
	}
	for y := 0; y < m.side; y++ {
		py := float32(y) + 0.5
		for x := 0; x < m.side; x++ {
			px := float32(x) + 0.5
			p := ms2.Vec{X: px, Y: py}
			var mask uint8
			for oct, signs := range octantSigns {
				octCenter := ms2.Add(
					ms2.Add(ms2.Scale(0.5*signs[0], axes[0]), ms2.Scale(0.5*signs[1], axes[1])),
					ms2.Scale(0.5*signs[2], axes[2]),
				)
				d := ms2.Sub(ms2.Sub(p, center), octCenter)
				inside := true
				for i := 0; i < 3; i++ {
					if lenSq[i] == 0 {
						continue
					}
					proj := ms2.Dot(d, axes[i]) / lenSq[i]
					if proj > 0.5+margin || proj < -0.5-margin {
						inside = false
						break
					}
				}
				if inside {
					mask |= 1 << uint(oct)
				}
			}
			m.bits[y*m.side+x] = mask
		}
	}
}

// Clear zeroes every texel.
func (m *Map) Clear() {
	for i := range m.bits {
		m.bits[i] = 0
	}
}

// NeedsRebuild reports whether the axes used to bake a map have drifted far
// enough from newAxes that the bake is stale (spec §3: "Lifetime: rebuilt
// each time a node's affine splatter is invoked whose axes changed
// significantly"). It reports true as soon as any component of any of the
// three axes differs by more than tolerance in absolute terms.
func NeedsRebuild(oldAxes, newAxes [3]ms2.Vec, tolerance float32) bool {
	for i := 0; i < 3; i++ {
		d := ms2.Sub(newAxes[i], oldAxes[i])
		if math32.Abs(d.X) > tolerance || math32.Abs(d.Y) > tolerance {
			return true
		}
	}
	return false
}
