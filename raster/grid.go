// Package raster implements the perspective-correct recursive traverser and
// the fixed-point affine splatter that together rasterize a chunked sparse
// voxel octree into a framebuf.Buffer (spec §4.4, §4.5).
package raster

import "github.com/soypat/glgl/math/ms3"

// Vertex is one node of a projected grid: its model-view position and the
// screen-space projection derived from it.
type Vertex struct {
	Position   ms3.Vec // model-view space.
	Projection ms3.Vec // (x*pz, y*pz, pz) where pz = pixel_scale/z for perspective, or Position verbatim for ortho.
}

// Grid is the 3x3x3 array of projected vertices a traversal step works with.
// Only the 8 corners (see cornerIndex) are meaningful until Subdivide fills
// in the 19 midpoints.
type Grid struct {
	V [27]Vertex
}

func gridIndex(xi, yi, zi int) int { return xi + 3*yi + 9*zi }

// cornerIndex maps an octant id (bit0=x, bit1=y, bit2=z; 0=negative side,
// 1=positive side) to its flat index in the 3x3x3 array.
func cornerIndex(octant uint8) int {
	xi, yi, zi := 0, 0, 0
	if octant&1 != 0 {
		xi = 2
	}
	if octant&2 != 0 {
		yi = 2
	}
	if octant&4 != 0 {
		zi = 2
	}
	return gridIndex(xi, yi, zi)
}

// Corner returns the grid vertex at the given octant corner.
func (g *Grid) Corner(octant uint8) Vertex { return g.V[cornerIndex(octant)] }

// NewRootGrid builds a fresh grid from 8 model-view corners (in octant-id
// order; see cornerIndex), projecting each one. Only the corners are
// populated; Subdivide must run before any child grid can be carved out of
// it.
func NewRootGrid(corners [8]ms3.Vec, pixelScale float32, perspective bool) *Grid {
	g := &Grid{}
	for oct, c := range corners {
		g.V[cornerIndex(uint8(oct))] = Vertex{Position: c, Projection: project(c, pixelScale, perspective)}
	}
	return g
}

// project computes a vertex's screen-space projection from its model-view
// position (spec §3: "(x·z', y·z', z' = pixel_scale/z) for perspective;
// identity for ortho").
func project(pos ms3.Vec, pixelScale float32, perspective bool) ms3.Vec {
	if !perspective {
		return pos
	}
	pz := pixelScale / pos.Z
	return ms3.Vec{X: pos.X * pz, Y: pos.Y * pz, Z: pz}
}

// Subdivide fills in the 19 non-corner vertices of g by position averaging
// and reprojection (spec §4.4 step 7, §8's midpoint invariant). It requires
// only that g's 8 corners are already populated, and processes vertices in
// order of how many of their 3x3x3 indices are the "middle" value 1, so
// that every averaged pair is already resolved by the time it's needed.
func Subdivide(g *Grid, pixelScale float32, perspective bool) {
	for ones := 1; ones <= 3; ones++ {
		for xi := 0; xi < 3; xi++ {
			for yi := 0; yi < 3; yi++ {
				for zi := 0; zi < 3; zi++ {
					coords := [3]int{xi, yi, zi}
					n := 0
					axis := -1
					for i, c := range coords {
						if c == 1 {
							n++
							if axis < 0 {
								axis = i
							}
						}
					}
					if n != ones {
						continue
					}
					lo, hi := coords, coords
					lo[axis], hi[axis] = 0, 2
					a := g.V[gridIndex(lo[0], lo[1], lo[2])]
					b := g.V[gridIndex(hi[0], hi[1], hi[2])]
					pos := ms3.Scale(0.5, ms3.Add(a.Position, b.Position))
					g.V[gridIndex(xi, yi, zi)] = Vertex{Position: pos, Projection: project(pos, pixelScale, perspective)}
				}
			}
		}
	}
}

// subgridCornerIndices[octant*8+corner] gives the flat index into a
// subdivided 27-vertex parent grid of the given corner (0..7, octant
// convention) of the given child octant (0..7). Precomputed once at init,
// per spec §4.4 step 9's "precomputed subgrid_corner_indices table".
var subgridCornerIndices [8 * 8]int

func init() {
	for octant := 0; octant < 8; octant++ {
		base := [3]int{0, 0, 0}
		if octant&1 != 0 {
			base[0] = 1
		}
		if octant&2 != 0 {
			base[1] = 1
		}
		if octant&4 != 0 {
			base[2] = 1
		}
		for corner := 0; corner < 8; corner++ {
			xi, yi, zi := base[0], base[1], base[2]
			if corner&1 != 0 {
				xi++
			}
			if corner&2 != 0 {
				yi++
			}
			if corner&4 != 0 {
				zi++
			}
			subgridCornerIndices[octant*8+corner] = gridIndex(xi, yi, zi)
		}
	}
}

// ChildCorners extracts the 8 model-view corners of the given child octant
// of parent (which must already be subdivided) in octant-id order.
func ChildCorners(parent *Grid, octant uint8) [8]ms3.Vec {
	var out [8]ms3.Vec
	for corner := 0; corner < 8; corner++ {
		out[corner] = parent.V[subgridCornerIndices[int(octant)*8+corner]].Position
	}
	return out
}

// ChildGrid builds the (corners-only) grid for the given child octant of an
// already-subdivided parent. The parent's vertices are already positioned
// and projected, so no reprojection is needed here.
func ChildGrid(parent *Grid, octant uint8) *Grid {
	g := &Grid{}
	for corner := 0; corner < 8; corner++ {
		g.V[cornerIndex(uint8(corner))] = parent.V[subgridCornerIndices[int(octant)*8+corner]]
	}
	return g
}
