package raster

import (
	"testing"

	"github.com/mbirtwell/octray/framebuf"
	"github.com/mbirtwell/octray/node"
	"github.com/soypat/glgl/math/ms3"
)

func newTestContext() *Context {
	return &Context{
		MaxLevel:            6,
		MapShift:            4,
		SplatAt:             2,
		DistortionTolerance: 0.05,
		RadiusShift:         0,
		PixelScale:          64,
		Perspective:         true,
		ZNear:               0.1,
		ZFar:                1000,
		DepthScale:          1000,
	}
}

// Projection has no viewport-centering offset baked in (spec §3: screen
// coordinates are (x*pz, y*pz)), so a world-space position of (16,16,64)
// with pixel_scale=64 projects to screen-space (16,16,1) — these tests place
// geometry in world space accordingly, rather than around the view axis.

func TestTraverseSingleLeafFillsCoveredPixels(t *testing.T) {
	ctx := newTestContext()
	fb := framebuf.New(32, 32, false)
	fb.Clear([4]uint8{0, 0, 0, 255})
	tree := node.New(node.Sparse, node.Node{Address: -1, Mask: 0, Color: [3]uint8{200, 10, 10}}, 0)

	corners := cubeCorners(ms3.Vec{X: 16, Y: 16, Z: 64}, 2)
	grid := NewRootGrid(corners, ctx.PixelScale, ctx.Perspective)

	Traverse(ctx, fb, tree, grid, ctx.MaxLevel, -1, 0, [3]uint8{200, 10, 10}, 0)

	center := fb.At(16, 16)
	if !center.Drawn() {
		t.Fatal("expected the leaf to draw over its projected footprint")
	}
	if center.Color != [4]uint8{200, 10, 10, 255} {
		t.Fatalf("center color = %+v, want leaf color", center.Color)
	}
	corner := fb.At(0, 0)
	if corner.Drawn() {
		t.Fatal("expected a screen corner far from the leaf's footprint to be untouched")
	}
}

func TestTraverseNearerLeafOccludesFartherLeaf(t *testing.T) {
	ctx := newTestContext()
	fb := framebuf.New(32, 32, false)
	fb.Clear([4]uint8{0, 0, 0, 255})
	tree := node.New(node.Sparse, node.Node{Address: -1, Mask: 0}, 0)

	far := NewRootGrid(cubeCorners(ms3.Vec{X: 64, Y: 64, Z: 256}, 8), ctx.PixelScale, ctx.Perspective)
	Traverse(ctx, fb, tree, far, ctx.MaxLevel, -1, 0, [3]uint8{10, 10, 10}, 0)

	near := NewRootGrid(cubeCorners(ms3.Vec{X: 16, Y: 16, Z: 64}, 2), ctx.PixelScale, ctx.Perspective)
	Traverse(ctx, fb, tree, near, ctx.MaxLevel, -1, 0, [3]uint8{250, 250, 250}, 0)

	c := fb.At(16, 16)
	if c.Color != [4]uint8{250, 250, 250, 255} {
		t.Fatalf("expected the nearer leaf's color to win, got %+v", c.Color)
	}

	// Drawing the far leaf again afterward must not override the nearer one.
	Traverse(ctx, fb, tree, far, ctx.MaxLevel, -1, 0, [3]uint8{10, 10, 10}, 0)
	if c := fb.At(16, 16); c.Color != [4]uint8{250, 250, 250, 255} {
		t.Fatalf("farther redraw overwrote nearer pixel: got %+v", c.Color)
	}
}

func TestTraverseRecursesIntoChildren(t *testing.T) {
	ctx := newTestContext()
	ctx.MaxLevel = 8
	fb := framebuf.New(64, 64, false)
	fb.Clear([4]uint8{0, 0, 0, 255})

	root := node.Node{Address: 0, Mask: 0xFF, Color: [3]uint8{128, 128, 128}}
	tree := node.New(node.Sparse, root, 1)
	children := make([]node.Node, node.ChunkSize())
	for i := range children[:8] {
		children[i] = node.Node{Address: -1, Mask: 0, Color: [3]uint8{uint8(i * 30), 0, 255 - uint8(i*30)}}
	}
	tree.SetChunkBytes(0, node.EncodeChunk(children))

	// A cube large relative to its distance, so its projected footprint
	// spans many pixels and each octant occupies a distinct screen region.
	grid := NewRootGrid(cubeCorners(ms3.Vec{X: 32, Y: 32, Z: 32}, 16), ctx.PixelScale, ctx.Perspective)
	Traverse(ctx, fb, tree, grid, ctx.MaxLevel, root.Address, root.Mask, root.Color, 0)

	if ctx.NodesVisited < 2 {
		t.Fatalf("expected traversal to visit the root and at least one child, got %d visits", ctx.NodesVisited)
	}
	drawnAny := false
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if fb.At(x, y).Drawn() {
				drawnAny = true
			}
		}
	}
	if !drawnAny {
		t.Fatal("expected recursion into children to draw at least one pixel")
	}
}

func TestTraverseBeyondMaxLevelDrawsParentColorAsLeaf(t *testing.T) {
	ctx := newTestContext()
	ctx.MaxLevel = 0
	fb := framebuf.New(16, 16, false)
	fb.Clear([4]uint8{0, 0, 0, 255})
	tree := node.New(node.Sparse, node.Node{Address: 0, Mask: 0xFF, Color: [3]uint8{5, 5, 5}}, 1)

	grid := NewRootGrid(cubeCorners(ms3.Vec{X: 8, Y: 8, Z: 64}, 2), ctx.PixelScale, ctx.Perspective)
	Traverse(ctx, fb, tree, grid, 0, 0, 0xFF, [3]uint8{9, 9, 9}, 0)

	c := fb.At(8, 8)
	if c.Color != [4]uint8{9, 9, 9, 255} {
		t.Fatalf("expected budget-exhausted node to draw as a leaf in its own color, got %+v", c.Color)
	}
}
