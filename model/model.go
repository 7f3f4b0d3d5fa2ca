// Package model implements the cage/part/geometry data model consumed by
// the render driver (spec §3, §6).
package model

import (
	"github.com/mbirtwell/octray/node"
	"github.com/soypat/glgl/math/ms3"
)

// StaticColor is a placeholder Geometry for parts simple enough that
// paging a full octree isn't worth it — e.g. a distant-LOD stand-in
// rendered as one solid leaf (spec §9's tagged-variant design note).
type StaticColor struct {
	Color [3]uint8
}

// Geometry is the tagged variant of spec §9: "model as a tagged variant
// Geometry = ChunkedOctree(...) | Other(...) on a per-part basis; the hot
// path monomorphizes over the ChunkedOctree variant." Exactly one of Tree
// or Static is meaningful, selected by Kind.
type Geometry struct {
	Kind   GeometryKind
	Tree   *node.Tree
	Static StaticColor
}

// GeometryKind tags which field of Geometry is populated.
type GeometryKind uint8

const (
	KindChunkedOctree GeometryKind = iota
	KindStatic
)

// Root returns the geometry's root node, synthesizing a single leaf for
// the Static variant.
func (g Geometry) Root() node.Node {
	if g.Kind == KindStatic {
		return node.Node{Address: -1, Mask: 0, Color: g.Static.Color}
	}
	return g.Tree.Root()
}

// Part selects 8 cage-vertex indices as its bounding box and lists one
// geometry index per animation frame.
type Part struct {
	// Vertices indexes Model.CageVertices; exactly 8 entries, the part's
	// local bounding cube corners (spec §3, §6).
	Vertices [8]int
	// Geometries indexes Model.Geometries, one per animation frame.
	Geometries []int
}

// Model owns a cage, its parts, and the geometries those parts reference.
type Model struct {
	CageVertices []ms3.Vec
	Parts        []Part
	Geometries   []Geometry
}

// CageCorners returns the 8 model-space corners of part's bounding cube.
func (m *Model) CageCorners(part *Part) [8]ms3.Vec {
	var out [8]ms3.Vec
	for i, vi := range part.Vertices {
		out[i] = m.CageVertices[vi]
	}
	return out
}

// Instance owns a transform and per-part animation state for one placement
// of a Model in the scene.
type Instance struct {
	Model *Model
	// Transform maps model space to world space.
	Transform ms3.Mat4
	// FrameIndex holds, per part, the index into that part's Geometries.
	FrameIndex []int
	// LastCageUpdateFrame is the frame number Transform was last applied,
	// used by drivers that cache projected cage corners across frames.
	LastCageUpdateFrame int32
}

// NewInstance creates an instance of m at the identity transform, with
// every part's animation frame at 0.
func NewInstance(m *Model) *Instance {
	return &Instance{
		Model:      m,
		Transform:  ms3.ScalingMat4(ms3.Vec{X: 1, Y: 1, Z: 1}),
		FrameIndex: make([]int, len(m.Parts)),
	}
}

// Geometry resolves the currently selected geometry for part index i.
func (inst *Instance) Geometry(partIdx int) Geometry {
	part := &inst.Model.Parts[partIdx]
	gi := part.Geometries[inst.FrameIndex[partIdx]]
	return inst.Model.Geometries[gi]
}

// WorldCageCorners projects part's cage corners through the instance
// transform into world space.
func (inst *Instance) WorldCageCorners(partIdx int) [8]ms3.Vec {
	corners := inst.Model.CageCorners(&inst.Model.Parts[partIdx])
	var out [8]ms3.Vec
	for i, c := range corners {
		out[i] = ms3.MulMatVec(inst.Transform, c)
	}
	return out
}

// Bounds returns the world-space axis-aligned bounding box of all of
// instance's parts.
func (inst *Instance) Bounds() ms3.Box {
	var bb ms3.Box
	first := true
	for pi := range inst.Model.Parts {
		for _, c := range inst.WorldCageCorners(pi) {
			pointBox := ms3.Box{Min: c, Max: c}
			if first {
				bb = pointBox
				first = false
				continue
			}
			bb = bb.Union(pointBox)
		}
	}
	return bb
}
