package raster

import (
	"github.com/chewxy/math32"
	"github.com/mbirtwell/octray/framebuf"
	"github.com/mbirtwell/octray/node"
	"github.com/mbirtwell/octray/order"
	"github.com/soypat/glgl/math/ms3"
)

// promotionMaxPixels bounds the pixel-rectangle side below which affine
// promotion may trigger. The spec states the threshold in subpixel units
// (32768) at the splatter's own fixed-point scale; dividing by 1<<subpixelShift
// gives the equivalent bound in the general traverser's plain-pixel rectangle.
const promotionMaxPixels = 32768 >> subpixelShift

// Traverse is the general, perspective-correct recursive traverser (spec
// §4.4). grid holds the current node's corners (already projected); level
// is the remaining recursion budget; yMin is the parent's "don't redraw
// pixels already seen" scissor clamp.
func Traverse(ctx *Context, fb *framebuf.Buffer, tree *node.Tree, grid *Grid, level int, addr int32, mask uint8, color [3]uint8, yMin int32) {
	// Step 1: bounds.
	minX, minY := grid.Corner(0).Projection.X, grid.Corner(0).Projection.Y
	maxX, maxY := minX, minY
	minZ, maxZ := grid.Corner(0).Position.Z, grid.Corner(0).Position.Z
	for oct := uint8(1); oct < 8; oct++ {
		v := grid.Corner(oct)
		minX, maxX = math32.Min(minX, v.Projection.X), math32.Max(maxX, v.Projection.X)
		minY, maxY = math32.Min(minY, v.Projection.Y), math32.Max(maxY, v.Projection.Y)
		minZ, maxZ = math32.Min(minZ, v.Position.Z), math32.Max(maxZ, v.Position.Z)
	}

	// Step 2: scissor.
	if maxX < 0 || minX > float32(fb.Width()) || maxY < 0 || minY > float32(fb.Height()) {
		return
	}
	if maxZ < ctx.ZNear || minZ > ctx.ZFar {
		return
	}

	// Step 3: pixel rectangle, inward-rounded and clamped to the
	// framebuffer and the parent's y-min.
	ixMin, ixMax := ceil32(math32.Max(minX, 0)), floor32(math32.Min(maxX, float32(fb.Width()-1)))
	iyMin, iyMax := ceil32(math32.Max(minY, float32(yMin))), floor32(math32.Min(maxY, float32(fb.Height()-1)))
	if ixMin > ixMax || iyMin > iyMax {
		return
	}

	// Step 4: level / residency.
	if level <= 0 {
		mask = 0
	}
	if mask != 0 && addr < 0 {
		mask = 0 // children exist logically but are paged out.
		ctx.logf("raster: traverse node paged out at recursion budget %d; drawing as leaf", level)
	}
	ctx.NodesVisited++

	childYMin := yMin
	if minZ > ctx.ZNear {
		// Step 5: near-plane split.
		iz := ctx.ToDepth(minZ - ctx.ZNear)
		if (ixMin == ixMax && iyMin == iyMax) || mask == 0 {
			drawRect(fb, ixMin, iyMin, ixMax, iyMax, iz, addr, color, ctx.DrawCircles)
			return
		}
		firstY, occluded := occlusionTestRect(fb, ixMin, iyMin, ixMax, iyMax, iz)
		if occluded {
			return
		}
		childYMin = firstY
		side := ixMax - ixMin + 1
		if h := iyMax - iyMin + 1; h > side {
			side = h
		}
		if maxZ < ctx.ZFar && side < promotionMaxPixels {
			if m, ok := BuildAffine(grid, ctx.DistortionTolerance, ctx.PixelScale, ctx.Perspective); ok {
				Splat(ctx, fb, tree, m, addr, mask, color, ixMin, childYMin, ixMax, iyMax)
				return
			}
		}
	} else if maxZ > ctx.ZNear {
		// Step 6: near-plane straddle. Splatting is unsafe (depths would
		// invert); only subdivide-or-skip is allowed.
		if mask == 0 || (ixMin == ixMax && iyMin == iyMax) {
			return
		}
	}

	if mask == 0 {
		return
	}

	// Step 7: subdivide.
	Subdivide(grid, ctx.PixelScale, ctx.Perspective)

	// Step 8: order, from the mid-to-mid (face-center to face-center)
	// view-space axis vectors.
	xAxis := ms3.Sub(grid.V[gridIndex(2, 1, 1)].Position, grid.V[gridIndex(0, 1, 1)].Position)
	yAxis := ms3.Sub(grid.V[gridIndex(1, 2, 1)].Position, grid.V[gridIndex(1, 0, 1)].Position)
	zAxis := ms3.Sub(grid.V[gridIndex(1, 1, 2)].Position, grid.V[gridIndex(1, 1, 0)].Position)
	ao, startOctant := resolveOrder(xAxis, yAxis, zAxis)

	effectiveMask := mask
	drawingCube := ctx.DrawCubes && mask == 0
	if drawingCube {
		effectiveMask = 0xFF
	}

	// Step 9: recurse. Children are visited in forward (front-to-back)
	// order via ordinary recursive calls, which already gives the same
	// early-occlusion benefit the source's explicit back-to-front push /
	// front-to-back pop worklist achieves (see DESIGN.md).
	queue := order.Forward(ao, startOctant, effectiveMask)
	for {
		oct, rest, ok := queue.Next()
		if !ok {
			break
		}
		queue = rest
		var child node.Node
		if drawingCube {
			child = node.Node{Address: addr, Mask: 0, Color: color}
		} else {
			var childOK bool
			child, childOK = tree.Child(node.Node{Address: addr, Mask: mask, Color: color}, oct)
			if !childOK {
				continue
			}
		}
		childGrid := ChildGrid(grid, oct)
		Traverse(ctx, fb, tree, childGrid, level-1, child.Address, child.Mask, child.Color, childYMin)
	}
}

func drawRect(fb *framebuf.Buffer, ixMin, iyMin, ixMax, iyMax, depth, addr int32, color [3]uint8, circles bool) {
	radius2 := float32(0)
	midX := float32(ixMin+ixMax) / 2
	midY := float32(iyMin+iyMax) / 2
	if circles {
		dx := float32(ixMax - ixMin + 1)
		dy := float32(iyMax - iyMin + 1)
		diag := dx
		if dy > diag {
			diag = dy
		}
		r := diag/2 + 0.5
		radius2 = r * r
	}
	for y := iyMin; y <= iyMax; y++ {
		for x := ixMin; x <= ixMax; x++ {
			if circles {
				ddx := float32(x) - midX
				ddy := float32(y) - midY
				if ddx*ddx+ddy*ddy > radius2 {
					continue
				}
			}
			fb.Touch(int(x), int(y))
			if p := fb.At(int(x), int(y)); depth < p.Depth {
				fb.Set(int(x), int(y), framebuf.Pixel{Address: addr, Depth: depth, Color: [4]uint8{color[0], color[1], color[2], 255}})
			}
		}
	}
}

// occlusionTestRect walks the rectangle until it finds a pixel not yet as
// near as depth, returning that row. occluded is true if the whole
// rectangle is already nearer than depth.
func occlusionTestRect(fb *framebuf.Buffer, ixMin, iyMin, ixMax, iyMax, depth int32) (firstY int32, occluded bool) {
	for y := iyMin; y <= iyMax; y++ {
		for x := ixMin; x <= ixMax; x++ {
			fb.Touch(int(x), int(y))
			if p := fb.At(int(x), int(y)); depth < p.Depth {
				return y, false
			}
		}
	}
	return 0, true
}

func ceil32(v float32) int32  { return int32(math32.Ceil(v)) }
func floor32(v float32) int32 { return int32(math32.Floor(v)) }
