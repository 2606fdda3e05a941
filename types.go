package vgeom

import (
	"cmp"
	"fmt"
)

// NumericType is the storage type of one column component.
type NumericType uint8

const (
	// Uint8 stores each component in one byte.
	Uint8 NumericType = iota
	// Uint16 stores each component in two bytes.
	Uint16
	// Uint32 stores each component in four bytes.
	Uint32
	// PackedDCBA stores a whole RGBA colour in one 32-bit component with the
	// bytes laid out R,G,B,A in memory (the OpenGL order).
	PackedDCBA
	// PackedDABC stores a whole colour in one 32-bit component with the bytes
	// laid out B,G,R,A in memory (the DirectX ARGB order).
	PackedDABC
	// Float32 stores each component as an IEEE-754 single.
	Float32
)

// ComponentBytes returns the size of one component.
func (t NumericType) ComponentBytes() int {
	switch t {
	case Uint8:
		return 1
	case Uint16:
		return 2
	default:
		return 4
	}
}

// IsPacked reports whether one component holds four logical values.
func (t NumericType) IsPacked() bool {
	return t == PackedDCBA || t == PackedDABC
}

func (t NumericType) String() string {
	switch t {
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case PackedDCBA:
		return "packed_dcba"
	case PackedDABC:
		return "packed_dabc"
	case Float32:
		return "float32"
	default:
		return fmt.Sprintf("NumericType(%d)", uint8(t))
	}
}

// Contents describes what a column's values mean. It decides how values are
// normalized and which components are filled by default.
type Contents uint8

const (
	ContentsOther Contents = iota
	// ContentsPoint is a position that transforms with the full matrix.
	ContentsPoint
	// ContentsClipPoint is a position already in clip space.
	ContentsClipPoint
	// ContentsVector is a direction; it ignores translation.
	ContentsVector
	ContentsTexcoord
	// ContentsColor maps integer components to [0,1].
	ContentsColor
	ContentsIndex
	// ContentsMorphDelta is added to a base column, scaled by a slider.
	ContentsMorphDelta
)

func (c Contents) String() string {
	switch c {
	case ContentsOther:
		return "other"
	case ContentsPoint:
		return "point"
	case ContentsClipPoint:
		return "clip_point"
	case ContentsVector:
		return "vector"
	case ContentsTexcoord:
		return "texcoord"
	case ContentsColor:
		return "color"
	case ContentsIndex:
		return "index"
	case ContentsMorphDelta:
		return "morph_delta"
	default:
		return fmt.Sprintf("Contents(%d)", uint8(c))
	}
}

// UsageHint tells a backend how often the data is expected to change.
type UsageHint uint8

const (
	UsageStatic UsageHint = iota
	UsageDynamic
	UsageStream
)

func (u UsageHint) String() string {
	switch u {
	case UsageStatic:
		return "static"
	case UsageDynamic:
		return "dynamic"
	case UsageStream:
		return "stream"
	default:
		return fmt.Sprintf("UsageHint(%d)", uint8(u))
	}
}

// AnimationType says who performs vertex animation.
type AnimationType uint8

const (
	// AnimationNone means the data is not animated.
	AnimationNone AnimationType = iota
	// AnimationCPU means VertexData.Animate blends vertices on the CPU using
	// the transform blend table.
	AnimationCPU
	// AnimationHardware means per-vertex weight (and optionally index)
	// columns are sent to the backend.
	AnimationHardware
)

func (a AnimationType) String() string {
	switch a {
	case AnimationNone:
		return "none"
	case AnimationCPU:
		return "cpu"
	case AnimationHardware:
		return "hardware"
	default:
		return fmt.Sprintf("AnimationType(%d)", uint8(a))
	}
}

// AnimationSpec describes how a format is animated.
type AnimationSpec struct {
	Type AnimationType
	// NumTransforms is the number of transforms that may affect one vertex,
	// for hardware animation.
	NumTransforms int
	// Indexed selects a transform_index column; otherwise vertex i is
	// affected by transforms 0..NumTransforms-1 of the table.
	Indexed bool
}

// HardwareAnimation returns a hardware AnimationSpec.
func HardwareAnimation(numTransforms int, indexed bool) AnimationSpec {
	return AnimationSpec{Type: AnimationHardware, NumTransforms: numTransforms, Indexed: indexed}
}

// CPUAnimation returns a CPU AnimationSpec.
func CPUAnimation() AnimationSpec {
	return AnimationSpec{Type: AnimationCPU}
}

// Compare orders animation specs.
func (a AnimationSpec) Compare(b AnimationSpec) int {
	if a.Type != b.Type {
		return cmp.Compare(a.Type, b.Type)
	}
	if a.Type != AnimationHardware {
		return 0
	}
	if a.NumTransforms != b.NumTransforms {
		return cmp.Compare(a.NumTransforms, b.NumTransforms)
	}
	return cmpBool(a.Indexed, b.Indexed)
}

func (a AnimationSpec) String() string {
	if a.Type == AnimationHardware {
		if a.Indexed {
			return fmt.Sprintf("hardware(%d, indexed)", a.NumTransforms)
		}
		return fmt.Sprintf("hardware(%d)", a.NumTransforms)
	}
	return a.Type.String()
}

// ShadeModel says which vertex of a primitive carries per-primitive values.
type ShadeModel uint8

const (
	ShadeUniform ShadeModel = iota
	ShadeSmooth
	ShadeFlatFirstVertex
	ShadeFlatLastVertex
)

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}
