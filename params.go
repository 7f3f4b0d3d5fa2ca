// Package octray is the per-frame render driver (spec §4.7): it projects
// model instances, seeds the general traverser per part, and blits the
// resulting framebuffer.
package octray

import "github.com/mbirtwell/octray/octmap"

// Params collects the rendering configuration exposed to callers (spec §6
// "Rendering parameters").
type Params struct {
	// MaxLevel caps recursion depth, 0..16.
	MaxLevel int
	// MapShift selects the octant-map resolution, clamped into [4..8].
	MapShift int
	// SplatAt is the pixel threshold for the splatter's direct per-child
	// path, 1..8.
	SplatAt int
	// DistortionTolerance bounds the affine-promotion test.
	DistortionTolerance float32
	// RenderSize caps max(width,height) of the internal framebuffer; 0
	// means track the display size exactly.
	RenderSize int
	// RadiusShift scales the disk radius used in circles mode.
	RadiusShift int

	Subsample   bool
	DrawCircles bool
	DrawCubes   bool
	// UpdateCache controls whether Renderer.RenderFrame may page an evicted
	// chunk back in (spec §8 scenario 6); disabling it leaves non-resident
	// chunks as a leaf fallback instead.
	UpdateCache bool
	UseAddress  bool
}

// DefaultParams returns the configuration a new Renderer should start from.
func DefaultParams() Params {
	return Params{
		MaxLevel:            12,
		MapShift:            6,
		SplatAt:             2,
		DistortionTolerance: 0.5,
		RenderSize:          0,
		RadiusShift:         1,
		UpdateCache:         true,
	}
}

// Clamp enforces the out-of-range-configuration rule of spec §7: invalid
// values are silently clamped rather than rejected.
func (p *Params) Clamp() {
	p.MapShift = octmap.ClampShift(p.MapShift)
	if p.MaxLevel < 0 {
		p.MaxLevel = 0
	} else if p.MaxLevel > 16 {
		p.MaxLevel = 16
	}
	if p.SplatAt < 1 {
		p.SplatAt = 1
	} else if p.SplatAt > 8 {
		p.SplatAt = 8
	}
	if p.DistortionTolerance < 0 {
		p.DistortionTolerance = 0
	}
	if p.RenderSize < 0 {
		p.RenderSize = 0
	}
}
