package vgeom

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// PrimitiveKind is the way a primitive assembles vertices.
type PrimitiveKind uint8

const (
	Points PrimitiveKind = iota
	Lines
	LineStrips
	Triangles
	TriangleStrips
	TriangleFans
	// Patches are fixed-size groups for tessellation; the group size is set
	// per primitive.
	Patches
)

// PrimitiveFamily groups kinds that may share a Geom.
type PrimitiveFamily uint8

const (
	FamilyPoints PrimitiveFamily = iota
	FamilyLines
	FamilyPolygons
	FamilyPatches
)

func (k PrimitiveKind) String() string {
	switch k {
	case Points:
		return "points"
	case Lines:
		return "lines"
	case LineStrips:
		return "line_strips"
	case Triangles:
		return "triangles"
	case TriangleStrips:
		return "triangle_strips"
	case TriangleFans:
		return "triangle_fans"
	case Patches:
		return "patches"
	default:
		return fmt.Sprintf("PrimitiveKind(%d)", uint8(k))
	}
}

// IsComplex reports whether the kind is made of variable-length runs.
func (k PrimitiveKind) IsComplex() bool {
	return k == LineStrips || k == TriangleStrips || k == TriangleFans
}

// Family returns the kind's family.
func (k PrimitiveKind) Family() PrimitiveFamily {
	switch k {
	case Points:
		return FamilyPoints
	case Lines, LineStrips:
		return FamilyLines
	case Patches:
		return FamilyPatches
	default:
		return FamilyPolygons
	}
}

// arity returns the fixed vertex count per primitive, or 0 for complex kinds
// and patches.
func (k PrimitiveKind) arity() int {
	switch k {
	case Points:
		return 1
	case Lines:
		return 2
	case Triangles:
		return 3
	}
	return 0
}

// MinRunVertices returns the smallest run a complex kind accepts.
func (k PrimitiveKind) MinRunVertices() int {
	switch k {
	case LineStrips:
		return 2
	case TriangleStrips, TriangleFans:
		return 3
	}
	return k.arity()
}

// Decomposed returns the simple kind a complex kind decomposes to.
func (k PrimitiveKind) Decomposed() PrimitiveKind {
	switch k {
	case LineStrips:
		return Lines
	case TriangleStrips, TriangleFans:
		return Triangles
	}
	return k
}

// Topology returns the WebGPU topology for the kind. Fans and patches have
// none and must be decomposed or tessellated first.
func (k PrimitiveKind) Topology() (gputypes.PrimitiveTopology, bool) {
	switch k {
	case Points:
		return gputypes.PrimitiveTopologyPointList, true
	case Lines:
		return gputypes.PrimitiveTopologyLineList, true
	case LineStrips:
		return gputypes.PrimitiveTopologyLineStrip, true
	case Triangles:
		return gputypes.PrimitiveTopologyTriangleList, true
	case TriangleStrips:
		return gputypes.PrimitiveTopologyTriangleStrip, true
	}
	return 0, false
}
