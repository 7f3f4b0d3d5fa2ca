// Package framebuf implements the per-pixel depth/address/color/id
// framebuffer (spec §4.3) and its clear/blit/resize operations.
package framebuf

import (
	"image"
	"image/color"
	"math/bits"

	"golang.org/x/image/draw"
)

// Pixel is one framebuffer texel.
type Pixel struct {
	Address int32    // index of the node last drawn here, or -1.
	Depth   int32    // view-space depth in fixed units; math.MaxInt32 means never drawn.
	Color   [4]uint8 // straight RGBA.
	ID      int32    // node-access counter, for complexity visualization.
}

// Buffer is a power-of-two-strided depth/color/address/id framebuffer with
// an optional 2x2 temporal-jitter subsample accumulation texture.
type Buffer struct {
	width, height int
	stride        int // power of two, >= width.
	pixels        []Pixel

	subsample     bool
	display       []color.RGBA // len == displayStride*2*height when subsample.
	displayStride int
	frameCounter  uint32
}

// New allocates a Buffer for the given logical resolution. If subsample is
// true, a 2x2-larger temporal accumulation texture backs Blit's output
// (spec §4.3 "Subsample mode").
func New(width, height int, subsample bool) *Buffer {
	b := &Buffer{}
	b.Resize(width, height, subsample)
	return b
}

func nextPow2(v int) int {
	if v <= 1 {
		return 1
	}
	return 1 << uint(bits.Len(uint(v-1)))
}

// Resize reallocates the buffer for a new logical resolution and subsample
// mode. Existing contents are discarded.
func (b *Buffer) Resize(width, height int, subsample bool) {
	b.width, b.height = width, height
	b.stride = nextPow2(width)
	b.pixels = make([]Pixel, b.stride*height)
	b.subsample = subsample
	if subsample {
		b.displayStride = nextPow2(width * 2)
		b.display = make([]color.RGBA, b.displayStride*height*2)
	} else {
		b.display = nil
	}
}

// Width and Height return the logical (render target) resolution.
func (b *Buffer) Width() int  { return b.width }
func (b *Buffer) Height() int { return b.height }

// Stride returns the power-of-two row stride used to index Pixels.
func (b *Buffer) Stride() int { return b.stride }

// index computes the pixel-array offset for logical (x,y) using the
// power-of-two stride shift, per spec §3 ("y << shift indexing").
func (b *Buffer) index(x, y int) int {
	shift := bits.TrailingZeros(uint(b.stride))
	return (y << uint(shift)) + x
}

// At returns the pixel at logical (x,y). Out-of-range coordinates return
// the zero Pixel.
func (b *Buffer) At(x, y int) Pixel {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return Pixel{}
	}
	return b.pixels[b.index(x, y)]
}

// Drawn reports whether p was written since the last Clear (a pixel at
// i32::MAX depth and address -1 has never been drawn).
func (p Pixel) Drawn() bool { return p.Address >= 0 || p.Depth != maxDepth }

// Touch increments a pixel's node-access counter without otherwise
// modifying it, for the complexity-heatmap visualization (spec §3's
// "id: node-access counter"). Traversal and splat call this on every pixel
// they inspect, whether or not the inspection results in a write.
func (b *Buffer) Touch(x, y int) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return
	}
	b.pixels[b.index(x, y)].ID++
}

const maxDepth = int32(1<<31 - 1)

// Set writes a pixel at logical (x,y) and, in subsample mode, propagates
// the write into this frame's jittered subpixel of the display texture,
// blending the three sibling subpixels toward the new value. p.ID is
// ignored; the access counter is maintained solely by Touch, so writers
// don't need to round-trip it.
func (b *Buffer) Set(x, y int, p Pixel) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return
	}
	p.ID = b.pixels[b.index(x, y)].ID
	b.pixels[b.index(x, y)] = p
	if b.subsample {
		b.propagateSubpixel(x, y, p.Color)
	}
}

// subpixelOffsets gives the (dx,dy) of the written subpixel for each value
// of frameCounter&0b11, per spec §4.3.
var subpixelOffsets = [4][2]int{{0, 0}, {1, 1}, {1, 0}, {0, 1}}

func (b *Buffer) propagateSubpixel(x, y int, newColor [4]uint8) {
	base := [2]int{x * 2, y * 2}
	written := subpixelOffsets[b.frameCounter&0b11]
	for dy := 0; dy < 2; dy++ {
		for dx := 0; dx < 2; dx++ {
			px, py := base[0]+dx, base[1]+dy
			idx := py*b.displayStride + px
			if dx == written[0] && dy == written[1] {
				b.display[idx] = color.RGBA{newColor[0], newColor[1], newColor[2], newColor[3]}
				continue
			}
			old := b.display[idx]
			b.display[idx] = blendToward(old, newColor)
		}
	}
}

// blendToward implements the preferred blend form from spec §9's Open
// Question: factor scales with how different the incoming color is from
// the sibling's current value, so sharp edges refresh fast and flat areas
// refresh slowly.
func blendToward(old color.RGBA, newColor [4]uint8) color.RGBA {
	delta := absDiff(old.R, newColor[0])
	delta = maxu8(delta, absDiff(old.G, newColor[1]))
	delta = maxu8(delta, absDiff(old.B, newColor[2]))
	fac := uint16(delta) * 4 // proportional to color delta, saturating.
	if fac > 255 {
		fac = 255
	}
	inv := 255 - fac
	return color.RGBA{
		R: uint8((uint16(old.R)*inv + uint16(newColor[0])*fac + 255) >> 8),
		G: uint8((uint16(old.G)*inv + uint16(newColor[1])*fac + 255) >> 8),
		B: uint8((uint16(old.B)*inv + uint16(newColor[2])*fac + 255) >> 8),
		A: 255,
	}
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

func maxu8(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}

// AdvanceFrame moves the jitter pattern to the next frame. Call once per
// rendered frame before Set is used, when subsample mode is enabled.
func (b *Buffer) AdvanceFrame() { b.frameCounter++ }

// Clear resets every pixel to the background color, never-drawn depth, and
// no owning node (spec §7, §8: "after clear(bg), every pixel has
// depth==i32::MAX and address==-1").
func (b *Buffer) Clear(background [4]uint8) {
	bg := Pixel{Address: -1, Depth: maxDepth, Color: background}
	for i := range b.pixels {
		b.pixels[i] = bg
	}
}

// ColorOf resolves a node's aggregate color into RGBA bytes for Blit's
// use-address path. The driver supplies this by indexing into the node
// storage it owns (framebuf does not depend on package node to keep the
// dependency direction leaf-ward).
type ColorOf func(address int32) (r, g, b uint8)

// Blit renders the buffer to an RGBA image at native (possibly 2x
// subsampled) resolution. depthShift selects the visualization:
// negative values produce a complexity heatmap from the ID counter,
// zero derives screen-space normals from neighboring depths, and positive
// values expose raw depth bits. When useAddress is true and a pixel's
// address is non-negative, its color is resolved via colorOf instead of
// the stored Color.
func (b *Buffer) Blit(useAddress bool, depthShift int, colorOf ColorOf) *image.RGBA {
	if b.subsample {
		return b.blitSubsampled(useAddress, depthShift, colorOf)
	}
	img := image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			img.SetRGBA(x, y, b.pixelColor(x, y, useAddress, depthShift, colorOf))
		}
	}
	return img
}

func (b *Buffer) blitSubsampled(useAddress bool, depthShift int, colorOf ColorOf) *image.RGBA {
	w, h := b.width*2, b.height*2
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := b.display[y*b.displayStride+x]
			if depthShift != ModeColor {
				// Debug visualizations are computed at logical resolution.
				c = b.pixelColor(x/2, y/2, useAddress, depthShift, colorOf)
			} else if useAddress {
				// Address-based recoloring is only meaningful at the
				// logical resolution the traverser wrote.
				if p := b.At(x/2, y/2); p.Address >= 0 {
					r, g, bl := colorOf(p.Address)
					c = color.RGBA{r, g, bl, 255}
				}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// ModeColor is a depthShift sentinel selecting plain color output (the
// stored pixel color, or the owning node's aggregate color when
// useAddress is set) rather than one of the three debug visualizations the
// spec enumerates for depthShift. The spec names visualization modes for
// negative/zero/positive depthShift but leaves the "just show me the
// picture" path implicit; ModeColor is this repo's resolution of that gap
// (see DESIGN.md).
const ModeColor = 1 << 30

func (b *Buffer) pixelColor(x, y int, useAddress bool, depthShift int, colorOf ColorOf) color.RGBA {
	p := b.At(x, y)
	switch {
	case depthShift == ModeColor:
		return b.resolvedColor(p, useAddress, colorOf)
	case depthShift < 0:
		v := clampu8(p.ID << uint(-depthShift-1))
		return color.RGBA{v, v, v, 255}
	case depthShift == 0:
		return b.normalColor(x, y)
	default:
		v := clampu8(p.Depth >> uint(depthShift))
		return color.RGBA{v, v, v, 255}
	}
}

// resolvedColor implements spec §4.3: "When use_address is true and
// address >= 0, the color is resampled from the referenced node's
// base_color."
func (b *Buffer) resolvedColor(p Pixel, useAddress bool, colorOf ColorOf) color.RGBA {
	if useAddress && p.Address >= 0 && colorOf != nil {
		r, g, bl := colorOf(p.Address)
		return color.RGBA{r, g, bl, 255}
	}
	return color.RGBA{p.Color[0], p.Color[1], p.Color[2], p.Color[3]}
}

func (b *Buffer) normalColor(x, y int) color.RGBA {
	p := b.At(x, y)
	right := b.At(x+1, y)
	down := b.At(x, y+1)
	dzdx := float32(right.Depth - p.Depth)
	dzdy := float32(down.Depth - p.Depth)
	nx := clampSignedu8(dzdx / 256)
	ny := clampSignedu8(dzdy / 256)
	return color.RGBA{nx, ny, 255, 255}
}

func clampu8[T ~int32](v T) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func clampSignedu8(v float32) uint8 {
	centered := v + 128
	if centered < 0 {
		return 0
	}
	if centered > 255 {
		return 255
	}
	return uint8(centered)
}

// BlitScaled draws the buffer into dst at rect using a GPU-free bilinear
// resample, the CPU-rasterizer equivalent of a GPU texture blit: when
// render_size (spec §6) caps the internal render resolution below the
// display's, this is what stretches the result back up.
func (b *Buffer) BlitScaled(dst draw.Image, rect image.Rectangle, useAddress bool, depthShift int, colorOf ColorOf) {
	src := b.Blit(useAddress, depthShift, colorOf)
	draw.ApproxBiLinear.Scale(dst, rect, src, src.Bounds(), draw.Over, nil)
}
