package raster

import (
	"testing"

	"github.com/mbirtwell/octray/framebuf"
	"github.com/mbirtwell/octray/node"
	"github.com/soypat/glgl/math/ms3"
)

func TestSplatLeafFillsRectangle(t *testing.T) {
	ctx := newTestContext()
	fb := framebuf.New(16, 16, false)
	fb.Clear([4]uint8{0, 0, 0, 255})
	tree := node.New(node.Sparse, node.Node{Address: -1, Mask: 0}, 0)

	m := Mat{
		Origin: ms3.Vec{X: 8, Y: 8, Z: 1000},
		X:      ms3.Vec{X: 4, Y: 0, Z: 0},
		Y:      ms3.Vec{X: 0, Y: 4, Z: 0},
		Z:      ms3.Vec{X: 0, Y: 0, Z: 0},
	}
	Splat(ctx, fb, tree, m, -1, 0, [3]uint8{77, 88, 99}, 4, 4, 12, 12)

	c := fb.At(8, 8)
	if c.Color != [4]uint8{77, 88, 99, 255} {
		t.Fatalf("center pixel = %+v, want splatted leaf color", c.Color)
	}
	edge := fb.At(4, 4)
	if edge.Color != [4]uint8{77, 88, 99, 255} {
		t.Fatalf("rectangle edge pixel = %+v, want splatted leaf color", edge.Color)
	}
}

func TestSplatNearerLeafOccludesFartherSplat(t *testing.T) {
	ctx := newTestContext()
	fb := framebuf.New(16, 16, false)
	fb.Clear([4]uint8{0, 0, 0, 255})
	tree := node.New(node.Sparse, node.Node{Address: -1, Mask: 0}, 0)

	far := Mat{
		Origin: ms3.Vec{X: 8, Y: 8, Z: 2000},
		X:      ms3.Vec{X: 4, Y: 0, Z: 0},
		Y:      ms3.Vec{X: 0, Y: 4, Z: 0},
	}
	Splat(ctx, fb, tree, far, -1, 0, [3]uint8{10, 10, 10}, 4, 4, 12, 12)

	near := Mat{
		Origin: ms3.Vec{X: 8, Y: 8, Z: 500},
		X:      ms3.Vec{X: 4, Y: 0, Z: 0},
		Y:      ms3.Vec{X: 0, Y: 4, Z: 0},
	}
	Splat(ctx, fb, tree, near, -1, 0, [3]uint8{250, 250, 250}, 4, 4, 12, 12)

	if c := fb.At(8, 8); c.Color != [4]uint8{250, 250, 250, 255} {
		t.Fatalf("expected nearer splat to win, got %+v", c.Color)
	}

	Splat(ctx, fb, tree, far, -1, 0, [3]uint8{10, 10, 10}, 4, 4, 12, 12)
	if c := fb.At(8, 8); c.Color != [4]uint8{250, 250, 250, 255} {
		t.Fatalf("farther re-splat overwrote nearer pixel: got %+v", c.Color)
	}
}

func TestSplatRecursesIntoChildrenWhenRectLargerThanSplatAt(t *testing.T) {
	ctx := newTestContext()
	ctx.SplatAt = 1 // force enumerateAndPush's subdivision path, not the direct-point path.
	ctx.MaxLevel = 4
	fb := framebuf.New(32, 32, false)
	fb.Clear([4]uint8{0, 0, 0, 255})

	root := node.Node{Address: 0, Mask: 0xFF, Color: [3]uint8{128, 128, 128}}
	tree := node.New(node.Sparse, root, 1)
	children := make([]node.Node, node.ChunkSize())
	for i := range children[:8] {
		children[i] = node.Node{Address: -1, Mask: 0, Color: [3]uint8{uint8(i * 20), 0, 255 - uint8(i*20)}}
	}
	tree.SetChunkBytes(0, node.EncodeChunk(children))

	m := Mat{
		Origin: ms3.Vec{X: 16, Y: 16, Z: 1000},
		X:      ms3.Vec{X: 10, Y: 0, Z: 0},
		Y:      ms3.Vec{X: 0, Y: 10, Z: 0},
		Z:      ms3.Vec{X: 0, Y: 0, Z: 50},
	}
	Splat(ctx, fb, tree, m, root.Address, root.Mask, root.Color, 0, 0, 31, 31)

	if ctx.NodesVisited < 2 {
		t.Fatalf("expected splatter to recurse past the root, got %d node visits", ctx.NodesVisited)
	}
	drawnAny := false
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if fb.At(x, y).Drawn() {
				drawnAny = true
			}
		}
	}
	if !drawnAny {
		t.Fatal("expected recursive splatting to draw at least one pixel")
	}
}

func TestSplatBlendsTowardParentColorWhenTruncatedByLevelBudget(t *testing.T) {
	ctx := newTestContext()
	ctx.SplatAt = 1 // force enumerateAndPush's subdivision path, not the direct-point path.
	ctx.MaxLevel = 2 // the child level is the level budget: recursion stops there even though it still has children.
	fb := framebuf.New(32, 32, false)
	fb.Clear([4]uint8{0, 0, 0, 255})

	rootColor := [3]uint8{0, 0, 0}
	root := node.Node{Address: 0, Mask: 0xFF, Color: rootColor}
	tree := node.New(node.Sparse, root, 1)
	children := make([]node.Node, node.ChunkSize())
	childColor := [3]uint8{200, 200, 200}
	for i := range children[:8] {
		// Every child still has children of its own (mask != 0, address
		// resolvable), so reaching it at the level budget is a forced
		// truncation, not a true leaf and not a paged-out fallback.
		children[i] = node.Node{Address: 0, Mask: 0xFF, Color: childColor}
	}
	tree.SetChunkBytes(0, node.EncodeChunk(children))

	m := Mat{
		Origin: ms3.Vec{X: 16, Y: 16, Z: 1000},
		X:      ms3.Vec{X: 10, Y: 0, Z: 0},
		Y:      ms3.Vec{X: 0, Y: 10, Z: 0},
		Z:      ms3.Vec{X: 0, Y: 0, Z: 50},
	}
	Splat(ctx, fb, tree, m, root.Address, root.Mask, root.Color, 0, 0, 31, 31)

	blended := false
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			c := fb.At(x, y).Color
			if !fb.At(x, y).Drawn() {
				continue
			}
			if c == [4]uint8{childColor[0], childColor[1], childColor[2], 255} {
				t.Fatalf("pixel (%d,%d) drew the child's own color %v unblended; truncation at the level budget must blend toward the parent", x, y, c)
			}
			if c[0] != rootColor[0] || c[1] != rootColor[1] || c[2] != rootColor[2] {
				blended = true
			}
		}
	}
	if !blended {
		t.Fatal("expected at least one pixel blended between child and parent color")
	}
}
