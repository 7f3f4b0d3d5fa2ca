// Command octraydump loads a cached octree and renders one frame headlessly
// to a PNG file, for inspecting a cache or debugging the traverser without a
// display.
package main

import (
	"flag"
	"fmt"
	"image/png"
	"log"
	"os"

	"github.com/mbirtwell/octray"
	"github.com/mbirtwell/octray/cachefmt"
	"github.com/mbirtwell/octray/framebuf"
	"github.com/mbirtwell/octray/model"
	"github.com/mbirtwell/octray/node"
	"github.com/soypat/glgl/math/ms3"
)

func main() {
	var (
		inPath      = flag.String("in", "", "path to a cachefmt-encoded octree (required)")
		outPath     = flag.String("out", "out.png", "path to write the rendered PNG")
		width       = flag.Int("width", 512, "framebuffer width")
		height      = flag.Int("height", 512, "framebuffer height")
		maxLevel    = flag.Int("max-level", 12, "recursion depth budget")
		mapShift    = flag.Int("map-shift", 6, "octant map resolution, 4..8")
		splatAt     = flag.Int("splat-at", 2, "affine splatter leaf threshold in pixels")
		tolerance   = flag.Float64("distortion-tolerance", 0.5, "affine-promotion distortion tolerance")
		pixelScale  = flag.Float64("pixel-scale", 256, "projection pixel scale")
		zNear       = flag.Float64("z-near", 0.1, "near clip distance")
		zFar        = flag.Float64("z-far", 1000, "far clip distance")
		cameraZ     = flag.Float64("camera-distance", 4, "distance from the camera to the octree's center, in octree half-widths")
		drawCircles = flag.Bool("draw-circles", false, "splat leaves as circles instead of squares")
		drawCubes   = flag.Bool("draw-cubes", false, "set the renderer's DrawCubes toggle (the rendered image is the same with or without it)")
		useAddress  = flag.Bool("use-address", false, "recolor pixels from the owning node's address instead of the stored color")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "octraydump: ", log.LstdFlags)

	if *inPath == "" {
		logger.Fatal("missing -in")
	}
	if err := run(logger, *inPath, *outPath, *width, *height, *maxLevel, *mapShift, *splatAt,
		float32(*tolerance), float32(*pixelScale), float32(*zNear), float32(*zFar), float32(*cameraZ),
		*drawCircles, *drawCubes, *useAddress); err != nil {
		logger.Fatal(err)
	}
}

func run(logger *log.Logger, inPath, outPath string, width, height, maxLevel, mapShift, splatAt int,
	tolerance, pixelScale, zNear, zFar, cameraZ float32, drawCircles, drawCubes, useAddress bool) error {

	raw, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("octraydump: reading %s: %w", inPath, err)
	}
	root, nodes, err := cachefmt.Decode(raw)
	if err != nil {
		return fmt.Errorf("octraydump: decoding %s: %w", inPath, err)
	}
	tree := buildResidentTree(root, nodes)

	params := octray.Params{
		MaxLevel:            maxLevel,
		MapShift:            mapShift,
		SplatAt:             splatAt,
		DistortionTolerance: tolerance,
		RadiusShift:         1,
		DrawCircles:         drawCircles,
		DrawCubes:           drawCubes,
		UseAddress:          useAddress,
	}
	renderer := octray.NewRenderer(params, width, height, octray.WithLogger(logger),
		octray.WithColorOf(func(address int32) (r, g, b uint8) {
			c := tree.Resolve(address).Color
			return c[0], c[1], c[2]
		}))

	// Cage corners are placed directly in front of the camera along +Z by
	// cameraZ half-widths, since the instance transform stays identity.
	m := singleCubeModel(tree, ms3.Vec{X: 0, Y: 0, Z: cameraZ})
	inst := model.NewInstance(m)
	view := ms3.ScalingMat4(ms3.Vec{X: 1, Y: 1, Z: 1})

	renderer.RenderFrame(view, []*model.Instance{inst}, pixelScale, zNear, zFar, true, [4]uint8{20, 20, 20, 255})
	img := renderer.Blit(framebuf.ModeColor)

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("octraydump: creating %s: %w", outPath, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("octraydump: encoding PNG: %w", err)
	}
	logger.Printf("wrote %s (%dx%d)", outPath, width, height)
	return nil
}

// buildResidentTree installs a cachefmt-decoded node array into a Tree with
// every chunk resident from the start — octraydump inspects an already
// fully-decoded cache snapshot rather than paging chunks in lazily.
func buildResidentTree(root node.Node, nodes []node.Node) *node.Tree {
	chunkSize := node.ChunkSize()
	numChunks := (len(nodes) + chunkSize - 1) / chunkSize
	if numChunks == 0 {
		numChunks = 1
	}
	tr := node.New(node.Sparse, root, numChunks)
	padded := make([]node.Node, numChunks*chunkSize)
	copy(padded, nodes)
	for i := range padded[len(nodes):] {
		padded[len(nodes)+i] = node.Node{Address: -1, Mask: 0}
	}
	for c := 0; c < numChunks; c++ {
		tr.SetChunkBytes(int32(c), node.EncodeChunk(padded[c*chunkSize:(c+1)*chunkSize]))
		// Unpack recovers from corrupt data by leaving the chunk all-leaf.
		_ = tr.Unpack(int32(c))
	}
	return tr
}

// singleCubeModel wraps tree in a Model with one part covering the unit
// cube [-1,1]^3 centered at center, the cage octraydump places in front of
// the camera.
func singleCubeModel(tree *node.Tree, center ms3.Vec) *model.Model {
	offsets := [8]ms3.Vec{
		{X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: -1},
		{X: -1, Y: 1, Z: -1}, {X: 1, Y: 1, Z: -1},
		{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1},
		{X: -1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1},
	}
	cage := make([]ms3.Vec, 8)
	for i, o := range offsets {
		cage[i] = ms3.Add(center, o)
	}
	m := &model.Model{
		CageVertices: cage,
		Geometries:   []model.Geometry{{Kind: model.KindChunkedOctree, Tree: tree}},
	}
	m.Parts = []model.Part{{Vertices: [8]int{0, 1, 2, 3, 4, 5, 6, 7}, Geometries: []int{0}}}
	return m
}
