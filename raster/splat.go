package raster

import (
	"github.com/chewxy/math32"
	"github.com/mbirtwell/octray/framebuf"
	"github.com/mbirtwell/octray/node"
	"github.com/mbirtwell/octray/octmap"
	"github.com/mbirtwell/octray/order"
	"github.com/soypat/glgl/math/ms2"
	"github.com/soypat/glgl/math/ms3"
)

// subpixelShift is the fractional-bit count of the splatter's fixed-point
// screen coordinates (spec glossary: "subpixel shift").
const subpixelShift = 8

// fixedVec3 is a {dx, dy, dz} fixed-point delta in subpixelShift-fractional
// units (dz shares the same scale as framebuf.Pixel.Depth via Context.ToDepth).
type fixedVec3 struct{ X, Y, Z int32 }

func (a fixedVec3) add(b fixedVec3) fixedVec3 {
	return fixedVec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}
func (a fixedVec3) scaleSign(s float32) fixedVec3 {
	if s < 0 {
		return fixedVec3{-a.X, -a.Y, -a.Z}
	}
	return a
}
func (a fixedVec3) shr(level int) fixedVec3 {
	if level <= 0 {
		return a
	}
	return fixedVec3{a.X >> uint(level), a.Y >> uint(level), a.Z >> uint(level)}
}

// octantSigns enumerates the 8 octants in (z⊗y⊗x) order with (-1,+1) signs,
// matching octmap's convention (spec §4.5: "signs enumerates the 8 octants
// in (z⊗y⊗x) order with (−1,+1)").
var octantSigns = [8][3]float32{
	{-1, -1, -1}, {+1, -1, -1},
	{-1, +1, -1}, {+1, +1, -1},
	{-1, -1, +1}, {+1, -1, +1},
	{-1, +1, +1}, {+1, +1, +1},
}

// setup holds the per-node fixed-point state built once before an affine
// splatter traversal begins.
type setup struct {
	potShift int
	x, y, z  fixedVec3 // node half-extent axes at level 1, in subpixel+depth units.
	delta    [8]fixedVec3
	omap     *octmap.Map
}

// maxf returns the largest of vs, via repeated math32.Max.
func maxf(vs ...float32) float32 {
	m := vs[0]
	for _, v := range vs[1:] {
		m = math32.Max(m, v)
	}
	return m
}

// buildSetup computes pot_shift, the fixed-point axis vectors, the 8
// octant deltas, and bakes the octant occupancy map (spec §4.5 "Setup").
func buildSetup(ctx *Context, m Mat) setup {
	maxSpan := 0.5 * maxf(
		math32.Abs(m.X.X)+math32.Abs(m.Y.X),
		math32.Abs(m.X.Y)+math32.Abs(m.Y.Y),
		math32.Abs(m.Y.X)+math32.Abs(m.Z.X),
		math32.Abs(m.Y.Y)+math32.Abs(m.Z.Y),
		math32.Abs(m.Z.X)+math32.Abs(m.X.X),
		math32.Abs(m.Z.Y)+math32.Abs(m.X.Y),
	)
	potShift := 0
	for float32(int32(1)<<uint(potShift)) < maxSpan {
		potShift++
	}

	toFixed := func(v float32) int32 { return int32(v * float32(int32(1)<<subpixelShift)) }
	s := setup{potShift: potShift}
	s.x = fixedVec3{toFixed(m.X.X), toFixed(m.X.Y), ctx.ToDepth(m.X.Z)}
	s.y = fixedVec3{toFixed(m.Y.X), toFixed(m.Y.Y), ctx.ToDepth(m.Y.Z)}
	s.z = fixedVec3{toFixed(m.Z.X), toFixed(m.Z.Y), ctx.ToDepth(m.Z.Z)}

	// Guard against fixed-point overflow: if the integer max-gap exceeds
	// 1<<subpixelShift, halve the axes and bump pot_shift once more (spec
	// §4.5, §9 "integer-overflow hazards in fixed-point deltas").
	intGap := func(a, b int32) int32 {
		if a < 0 {
			a = -a
		}
		if b < 0 {
			b = -b
		}
		return a + b
	}
	maxGap := intGap(s.x.X, s.y.X)
	for _, g := range []int32{intGap(s.x.Y, s.y.Y), intGap(s.y.X, s.z.X), intGap(s.y.Y, s.z.Y), intGap(s.z.X, s.x.X), intGap(s.z.Y, s.x.Y)} {
		if g > maxGap {
			maxGap = g
		}
	}
	if maxGap > int32(1)<<subpixelShift {
		s.potShift++
		s.x = fixedVec3{s.x.X / 2, s.x.Y / 2, s.x.Z / 2}
		s.y = fixedVec3{s.y.X / 2, s.y.Y / 2, s.y.Z / 2}
		s.z = fixedVec3{s.z.X / 2, s.z.Y / 2, s.z.Z / 2}
	}

	for oct, signs := range octantSigns {
		s.delta[oct] = s.x.scaleSign(signs[0]).add(s.y.scaleSign(signs[1])).add(s.z.scaleSign(signs[2]))
	}

	omap := octmap.New(ctx.MapShift)
	side := float32(omap.Side())
	omap.Bake(
		ms2.Vec{X: side / 2, Y: side / 2},
		[3]ms2.Vec{{X: m.X.X, Y: m.X.Y}, {X: m.Y.X, Y: m.Y.Y}, {X: m.Z.X, Y: m.Z.Y}},
		0.5,
	)
	s.omap = omap
	return s
}

// splatState is one frame of the affine splatter's explicit stack (spec
// §4.5 "Traversal": "NodeState{x0,y0,x1,y1, cx,cy,cz, level, address,
// node_info}").
type splatState struct {
	x0, y0, x1, y1 int32
	cx, cy, cz     int32
	level          int
	addr           int32
	mask           uint8
	color          [3]uint8
	// parentColor is the enclosing node's aggregate base_color, consulted
	// only when this node is force-truncated at the level budget (spec
	// §4.5 "Blend-to-parent at the leaf boundary").
	parentColor [3]uint8
}

// Splat runs the fixed-point affine splatter over the framebuffer rectangle
// [x0,y0]..[x1,y1], rooted at the node (addr, mask, color) approximated by
// m (spec §4.5).
func Splat(ctx *Context, fb *framebuf.Buffer, tree *node.Tree, m Mat, addr int32, mask uint8, color [3]uint8, x0, y0, x1, y1 int32) {
	s := buildSetup(ctx, m)
	cx := int32(m.Origin.X * float32(int32(1)<<subpixelShift))
	cy := int32(m.Origin.Y * float32(int32(1)<<subpixelShift))
	cz := ctx.ToDepth(m.Origin.Z)

	stack := []splatState{{x0, y0, x1, y1, cx, cy, cz, 1, addr, mask, color, color}}
	for len(stack) > 0 {
		st := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		splatNode(ctx, fb, tree, &s, st, &stack)
	}
}

func splatNode(ctx *Context, fb *framebuf.Buffer, tree *node.Tree, s *setup, st splatState, stack *[]splatState) {
	if st.x1 < st.x0 || st.y1 < st.y0 {
		return
	}
	ctx.NodesVisited++

	hadChildren := st.mask != 0
	if st.mask != 0 && st.addr < 0 {
		// Children logically exist but are paged out: treat as leaf
		// (spec §4.5 step 1).
		st.mask = 0
		ctx.logf("raster: splat node at level %d paged out; drawing as leaf", st.level)
	}

	if st.level >= ctx.MaxLevel || st.mask == 0 {
		color := st.color
		if hadChildren && st.addr >= 0 && st.level >= ctx.MaxLevel {
			// Forced truncation by the level budget, not a true leaf nor a
			// paged-out fallback: blend toward the parent's aggregate
			// color by how much unresolved detail this node's remaining
			// screen footprint implies (spec §4.5 "Blend-to-parent at the
			// leaf boundary").
			color = blendTowardParent(st.color, st.parentColor, lodBlendFactor(st))
		}
		splatRect(fb, st, color, ctx.DrawCircles)
		return
	}

	lastY := occlusionTest(fb, st)
	if lastY > st.y1 {
		return // entire rectangle occluded; skip the subtree.
	}
	st.y0 = lastY

	side := st.x1 - st.x0 + 1
	if h := st.y1 - st.y0 + 1; h > side {
		side = h
	}
	if int(side) <= ctx.SplatAt {
		splatChildrenDirect(ctx, fb, tree, s, st)
		return
	}

	enumerateAndPush(ctx, fb, tree, s, st, stack)
}

// splatRect draws every pixel of the rectangle whose fixed-point depth
// beats what's already stored (spec §4.5 step 2), optionally restricted to
// a disk (circles mode). color is the (possibly parent-blended) color to
// write; st.color is left untouched so callers can still read the node's
// own color afterward.
func splatRect(fb *framebuf.Buffer, st splatState, color [3]uint8, circles bool) {
	depth := st.cz
	radius2 := float32(0)
	if circles {
		dx := float32(st.x1 - st.x0 + 1)
		dy := float32(st.y1 - st.y0 + 1)
		diag := dx
		if dy > diag {
			diag = dy
		}
		r := diag/2 + 0.5
		radius2 = r * r
	}
	midX := float32(st.x0+st.x1) / 2
	midY := float32(st.y0+st.y1) / 2
	for y := st.y0; y <= st.y1; y++ {
		for x := st.x0; x <= st.x1; x++ {
			if circles {
				ddx := float32(x) - midX
				ddy := float32(y) - midY
				if ddx*ddx+ddy*ddy > radius2 {
					continue
				}
			}
			fb.Touch(int(x), int(y))
			if p := fb.At(int(x), int(y)); depth < p.Depth {
				fb.Set(int(x), int(y), framebuf.Pixel{
					Address: st.addr,
					Depth:   depth,
					Color:   [4]uint8{color[0], color[1], color[2], 255},
				})
			}
		}
	}
}

// lodBlendFactor derives, for a node force-truncated by the level budget,
// how far past its configured level of detail it is from its remaining
// screen footprint: a node whose rectangle still spans many pixels needed
// much more subdivision than it got, so it blends strongly toward its
// parent's averaged color; one already close to a single pixel needed
// almost none (spec §4.5 "a factor derived from how far past the
// configured LOD the node is").
func lodBlendFactor(st splatState) float32 {
	side := st.x1 - st.x0 + 1
	if h := st.y1 - st.y0 + 1; h > side {
		side = h
	}
	if side <= 1 {
		return 0
	}
	return 1 - 1/float32(side)
}

// blendTowardParent linearly interpolates leaf toward parent by factor
// (0 = leaf's own color, 1 = parent's).
func blendTowardParent(leaf, parent [3]uint8, factor float32) [3]uint8 {
	var out [3]uint8
	for i := range leaf {
		out[i] = uint8(float32(leaf[i])*(1-factor) + float32(parent[i])*factor + 0.5)
	}
	return out
}

// occlusionTest walks the rectangle row by row and returns the y of the
// first row containing a non-occluded pixel, or y1+1 if every pixel in the
// rectangle is already nearer than this node (spec §4.5 step 3).
func occlusionTest(fb *framebuf.Buffer, st splatState) int32 {
	for y := st.y0; y <= st.y1; y++ {
		for x := st.x0; x <= st.x1; x++ {
			fb.Touch(int(x), int(y))
			if p := fb.At(int(x), int(y)); st.cz < p.Depth {
				return y
			}
		}
	}
	return st.y1 + 1
}

// splatChildrenDirect draws each present child as a single pixel (or disk)
// at its computed center, in forward (front-to-back) octant order — the
// "cheap single-pixel per child path" of spec §4.5 step 4.
func splatChildrenDirect(ctx *Context, fb *framebuf.Buffer, tree *node.Tree, s *setup, st splatState) {
	ao, startOctant := resolveOrder(toVec(s.x), toVec(s.y), toVec(s.z))
	queue := order.Forward(ao, startOctant, st.mask)
	for {
		oct, rest, ok := queue.Next()
		if !ok {
			break
		}
		queue = rest
		child, childOK := tree.Child(node.Node{Address: st.addr, Mask: st.mask, Color: st.color}, oct)
		if !childOK {
			continue
		}
		d := s.delta[oct].shr(st.level)
		cx, cy, cz := st.cx+d.X, st.cy+d.Y, st.cz+d.Z
		px := int32(cx >> subpixelShift)
		py := int32(cy >> subpixelShift)
		if px < st.x0 || px > st.x1 || py < st.y0 || py > st.y1 {
			continue
		}
		drawDisk(fb, px, py, cz, child.Color, child.Address, ctx.RadiusShift, ctx.DrawCircles)
	}
}

func drawDisk(fb *framebuf.Buffer, px, py, depth int32, color [3]uint8, addr int32, radiusShift int, circles bool) {
	if !circles || radiusShift <= 0 {
		fb.Touch(int(px), int(py))
		if p := fb.At(int(px), int(py)); depth < p.Depth {
			fb.Set(int(px), int(py), framebuf.Pixel{Address: addr, Depth: depth, Color: [4]uint8{color[0], color[1], color[2], 255}})
		}
		return
	}
	r := int32(1) << uint(radiusShift-1)
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy > r*r {
				continue
			}
			x, y := px+dx, py+dy
			fb.Touch(int(x), int(y))
			if p := fb.At(int(x), int(y)); depth < p.Depth {
				fb.Set(int(x), int(y), framebuf.Pixel{Address: addr, Depth: depth, Color: [4]uint8{color[0], color[1], color[2], 255}})
			}
		}
	}
}

// enumerateAndPush walks the rectangle using the baked octant map to find
// which children are visible at all, then pushes their recursive states in
// back-to-front order so the LIFO stack pops them front-to-back (spec §4.5
// step 5; spec §5's "reverse axis-order push, front-to-back pop" ordering
// invariant).
func enumerateAndPush(ctx *Context, fb *framebuf.Buffer, tree *node.Tree, s *setup, st splatState, stack *[]splatState) {
	ao, startOctant := resolveOrder(toVec(s.x), toVec(s.y), toVec(s.z))
	seen := uint8(0)
	effectiveMask := st.mask
	if ctx.DrawCubes && st.mask == 0 {
		effectiveMask = 0xFF
	}
	mapSide := int32(s.omap.Side())
	for y := st.y0; y <= st.y1 && seen != effectiveMask; y++ {
		my := (y - st.y0) * mapSide / (st.y1 - st.y0 + 1)
		row := s.omap.Row(int(my))
		if row == nil {
			continue
		}
		for x := st.x0; x <= st.x1 && seen != effectiveMask; x++ {
			mx := (x - st.x0) * mapSide / (st.x1 - st.x0 + 1)
			covering := row[mx] & effectiveMask & ^seen
			if covering == 0 {
				continue
			}
			fwd := order.Forward(ao, startOctant, covering)
			oct, _, ok := fwd.Next()
			if !ok {
				continue
			}
			seen |= 1 << oct
		}
	}
	// seen now holds every child octant visible anywhere in the rectangle;
	// push them back-to-front so popping this LIFO stack visits
	// front-to-back.
	rev := order.Reverse(ao, startOctant, seen)
	for {
		oct, rest, ok := rev.Next()
		if !ok {
			break
		}
		rev = rest
		pushChild(ctx, tree, s, st, oct, stack)
	}
}

func pushChild(ctx *Context, tree *node.Tree, s *setup, st splatState, oct uint8, stack *[]splatState) {
	var child node.Node
	var ok bool
	if ctx.DrawCubes && st.mask == 0 {
		child = node.Node{Address: st.addr, Mask: 0xFF, Color: st.color}
		ok = true
	} else {
		child, ok = tree.Child(node.Node{Address: st.addr, Mask: st.mask, Color: st.color}, oct)
	}
	if !ok {
		return
	}
	d := s.delta[oct].shr(st.level)
	cx, cy, cz := st.cx+d.X, st.cy+d.Y, st.cz+d.Z
	halfW := (st.x1 - st.x0 + 1) / 4
	halfH := (st.y1 - st.y0 + 1) / 4
	if halfW < 1 {
		halfW = 1
	}
	if halfH < 1 {
		halfH = 1
	}
	px := cx >> subpixelShift
	py := cy >> subpixelShift
	next := splatState{
		x0: maxi32(st.x0, px-halfW), x1: mini32(st.x1, px+halfW),
		y0: maxi32(st.y0, py-halfH), y1: mini32(st.y1, py+halfH),
		cx: cx, cy: cy, cz: cz,
		level:       st.level + 1,
		addr:        child.Address, mask: child.Mask, color: child.Color,
		parentColor: st.color,
	}
	*stack = append(*stack, next)
}

func toVec(v fixedVec3) ms3.Vec { return ms3.Vec{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)} }

func maxi32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
func mini32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}
