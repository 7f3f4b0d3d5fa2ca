package octray

import (
	"image"
	"log"
	"sort"

	"github.com/mbirtwell/octray/framebuf"
	"github.com/mbirtwell/octray/model"
	"github.com/mbirtwell/octray/node"
	"github.com/mbirtwell/octray/raster"
	"github.com/soypat/glgl/math/ms3"
)

// Option configures a Renderer at construction time.
type Option func(*Renderer)

// WithLogger sets the logger passed through to raster.Context for
// recovered-corruption and diagnostic reporting. A nil logger (the
// default) disables logging.
func WithLogger(l *log.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// WithColorOf sets the resolver Blit uses to recolor pixels by their
// owning node's address when Params.UseAddress is set (spec §4.3).
func WithColorOf(colorOf framebuf.ColorOf) Option {
	return func(r *Renderer) { r.colorOf = colorOf }
}

// Renderer drives one frame at a time (spec §4.7): it projects instance
// cages, seeds raster.Traverse per part, and blits the shared framebuffer.
type Renderer struct {
	params Params
	fb     *framebuf.Buffer
	logger *log.Logger

	colorOf framebuf.ColorOf

	frame       int32
	pixelScale  float32
	perspective bool
	zNear, zFar float32
}

// NewRenderer allocates a Renderer targeting a width x height framebuffer.
// params is clamped per spec §7 before use.
func NewRenderer(params Params, width, height int, opts ...Option) *Renderer {
	params.Clamp()
	r := &Renderer{
		params: params,
		fb:     framebuf.New(width, height, params.Subsample),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resize reallocates the backing framebuffer for a new display size,
// honoring RenderSize's cap on the internal render resolution.
func (r *Renderer) Resize(width, height int) {
	width, height = r.clampToRenderSize(width, height)
	r.fb.Resize(width, height, r.params.Subsample)
}

func (r *Renderer) clampToRenderSize(width, height int) (int, int) {
	if r.params.RenderSize <= 0 {
		return width, height
	}
	longest := width
	if height > longest {
		longest = height
	}
	if longest <= r.params.RenderSize {
		return width, height
	}
	scale := float32(r.params.RenderSize) / float32(longest)
	w := int(float32(width) * scale)
	h := int(float32(height) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// Params returns the renderer's current configuration.
func (r *Renderer) Params() Params { return r.params }

// SetParams replaces the renderer's configuration, clamped per spec §7.
func (r *Renderer) SetParams(p Params) {
	p.Clamp()
	r.params = p
}

// instanceDraw is one instance-part pairing resolved and ready to traverse,
// ordered by ascending view-space Z (nearest first) across the whole frame
// (spec §4.7 step 3, §5).
type instanceDraw struct {
	viewZ float32
	grid  *raster.Grid
	geom  model.Geometry
}

// RenderFrame renders one frame of instances as seen from viewMat (spec
// §4.7). pixelScale and perspective parameterize the projection (spec §3);
// zNear/zFar bound the considered depth range. background is the clear
// color. The returned buffer is ready for Blit.
func (r *Renderer) RenderFrame(viewMat ms3.Mat4, instances []*model.Instance, pixelScale, zNear, zFar float32, perspective bool, background [4]uint8) *framebuf.Buffer {
	r.pixelScale, r.perspective, r.zNear, r.zFar = pixelScale, perspective, zNear, zFar
	ctx := r.newContext()

	draws := r.projectInstances(viewMat, instances)
	// Step 3: ascending view-space Z, i.e. nearest part first, since +Z
	// points away from the camera (spec §4.7, §5).
	sort.Slice(draws, func(i, j int) bool { return draws[i].viewZ < draws[j].viewZ })

	r.fb.Clear(background)
	if r.params.Subsample {
		r.fb.AdvanceFrame()
	}
	for _, d := range draws {
		root := d.geom.Root()
		var tree *node.Tree
		if d.geom.Kind == model.KindChunkedOctree {
			tree = d.geom.Tree
			// Stamp this frame's number onto the tree so Resolve's chunk
			// accesses timestamp correctly for LRU eviction (spec §4.1), and
			// propagate update_cache so a disabled cache leaves evicted
			// chunks as their parent's leaf fallback instead of re-paging
			// them in (spec §6, §8 scenario 6).
			tree.SetFrame(r.frame)
			tree.SetUpdateCache(r.params.UpdateCache)
		}
		raster.Traverse(ctx, r.fb, tree, d.grid, ctx.MaxLevel, root.Address, root.Mask, root.Color, 0)
	}
	r.frame++
	return r.fb
}

// projectInstances builds one instanceDraw per (instance, part), culling
// any whose cage lies entirely outside the view frustum (spec §4.7 step 2)
// and computing each survivor's view-space Z for the nearest-first sort
// (spec §4.7 step 3) from its cage center.
func (r *Renderer) projectInstances(viewMat ms3.Mat4, instances []*model.Instance) []instanceDraw {
	var draws []instanceDraw
	for _, inst := range instances {
		for pi := range inst.Model.Parts {
			worldCorners := inst.WorldCageCorners(pi)
			var viewCorners [8]ms3.Vec
			var center ms3.Vec
			for i, c := range worldCorners {
				vc := ms3.MulMatVec(viewMat, c)
				viewCorners[i] = vc
				center = ms3.Add(center, vc)
			}
			center = ms3.Scale(1.0/8, center)
			if r.frustumCull(viewCorners) {
				continue
			}
			draws = append(draws, instanceDraw{
				viewZ: center.Z,
				grid:  raster.NewRootGrid(viewCorners, r.pixelScale, r.perspective),
				geom:  inst.Geometry(pi),
			})
		}
	}
	return draws
}

// frustumCull reports whether every one of corners' view-space Z values
// lies entirely in front of or behind the near/far planes the current
// frame was configured with; such a part can contribute nothing and is
// dropped before it ever reaches raster.Traverse (spec §4.7 step 2).
func (r *Renderer) frustumCull(corners [8]ms3.Vec) bool {
	allNear, allFar := true, true
	for _, c := range corners {
		if c.Z >= r.zNear {
			allNear = false
		}
		if c.Z <= r.zFar {
			allFar = false
		}
	}
	return allNear || allFar
}

// newContext builds this frame's raster.Context from the renderer's
// configuration and the current per-frame projection parameters.
func (r *Renderer) newContext() *raster.Context {
	return &raster.Context{
		MaxLevel:            r.params.MaxLevel,
		MapShift:            r.params.MapShift,
		SplatAt:             r.params.SplatAt,
		DistortionTolerance: r.params.DistortionTolerance,
		RadiusShift:         r.params.RadiusShift,
		DrawCircles:         r.params.DrawCircles,
		DrawCubes:           r.params.DrawCubes,
		UseAddress:          r.params.UseAddress,
		PixelScale:          r.pixelScale,
		Perspective:         r.perspective,
		ZNear:               r.zNear,
		ZFar:                r.zFar,
		DepthScale:          depthScale(r.zNear, r.zFar),
		Logger:              r.logger,
	}
}

// depthScale picks a fixed-point scale that maps [0, zFar-zNear] onto
// [0, 1<<30] of framebuf.Pixel.Depth's positive range.
func depthScale(zNear, zFar float32) float32 {
	span := zFar - zNear
	if span <= 0 {
		return 1
	}
	return float32(1<<30) / span
}

// Blit renders the most recent frame to an RGBA image (spec §4.3).
// depthShift selects the visualization mode; see framebuf.Buffer.Blit.
func (r *Renderer) Blit(depthShift int) *image.RGBA {
	return r.fb.Blit(r.params.UseAddress, depthShift, r.colorOf)
}
