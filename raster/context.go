package raster

import "log"

// Context is the render-context struct threaded explicitly through every
// traversal and splat call: per-frame view parameters, quality/budget
// knobs, debug toggles, and counters that would otherwise be global mutable
// state (spec §9 design note: "hoist into a render-context struct passed
// explicitly through the stack frames").
type Context struct {
	// MaxLevel caps both the general traverser's recursion depth and the
	// affine splatter's node-relative level counter (spec §6 max_level).
	MaxLevel int
	// MapShift selects the octant map resolution (spec §6 map_shift).
	MapShift int
	// SplatAt is the pixel-rectangle side at or below which the splatter
	// draws children as single points instead of recursing (spec §6
	// splat_at).
	SplatAt int
	// DistortionTolerance bounds the general traverser's affine-promotion
	// test (spec §6 distortion_tolerance).
	DistortionTolerance float32
	// RadiusShift scales the disk radius used by circles mode.
	RadiusShift int
	DrawCircles bool
	DrawCubes   bool
	UseAddress  bool

	// PixelScale and Perspective parameterize Vertex projection for this
	// frame (spec §3: "pz = pixel_scale/z for perspective; identity for
	// ortho").
	PixelScale  float32
	Perspective bool
	// ZNear and ZFar bound the view-space depth range considered for
	// drawing (spec §4.4 step 2).
	ZNear, ZFar float32
	// DepthScale converts a view-space depth into the fixed-point units
	// stored in framebuf.Pixel.Depth (spec §4.4 step 5's "iz = (min_z -
	// z_near) * depth_scale").
	DepthScale float32

	// NodesVisited counts node visits this frame. The per-pixel complexity
	// heatmap counter (framebuf.Pixel.ID) is kept separately by
	// framebuf.Buffer.Touch.
	NodesVisited int32

	Logger *log.Logger
}

// ToDepth converts a view-space depth value into this context's fixed-point
// depth units.
func (c *Context) ToDepth(z float32) int32 {
	return int32(z * c.DepthScale)
}

func (c *Context) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}
