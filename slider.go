package vgeom

import (
	"slices"
	"sync/atomic"

	"github.com/chewxy/math32"

	"github.com/gogpu/vgeom/internal/cow"
)

// VertexSlider is a scalar that weighs a morph target.
//
// VertexSlider is safe for concurrent use.
type VertexSlider struct {
	name     *Name
	value    atomic.Uint32
	modified atomic.Uint64
}

// NewVertexSlider creates a slider at value 0.
func NewVertexSlider(name *Name) *VertexSlider {
	s := &VertexSlider{name: name}
	s.modified.Store(uint64(NextUpdateSeq()))
	return s
}

// Name returns the slider name morph columns refer to.
func (s *VertexSlider) Name() *Name { return s.name }

// Value returns the current weight.
func (s *VertexSlider) Value() float32 { return math32.Float32frombits(s.value.Load()) }

// SetValue changes the weight and bumps the modification stamp.
func (s *VertexSlider) SetValue(v float32) {
	s.value.Store(math32.Float32bits(v))
	s.modified.Store(uint64(NextUpdateSeq()))
}

// Modified returns the stamp of the last SetValue.
func (s *VertexSlider) Modified() UpdateSeq { return UpdateSeq(s.modified.Load()) }

// SliderTable collects the sliders that drive a VertexData's morphs.
type SliderTable struct {
	cow.Ref
	sliders  []*VertexSlider
	modified UpdateSeq
}

// NewSliderTable creates a table of the given sliders.
func NewSliderTable(sliders ...*VertexSlider) *SliderTable {
	return &SliderTable{sliders: slices.Clone(sliders), modified: NextUpdateSeq()}
}

// Clone returns an unshared copy.
func (t *SliderTable) Clone() *SliderTable {
	return &SliderTable{sliders: slices.Clone(t.sliders), modified: t.modified}
}

// AddSlider appends s.
func (t *SliderTable) AddSlider(s *VertexSlider) {
	if t.IsShared() {
		violation("AddSlider on shared slider table")
		return
	}
	t.sliders = append(t.sliders, s)
	t.modified = NextUpdateSeq()
}

// NumSliders returns the table length.
func (t *SliderTable) NumSliders() int { return len(t.sliders) }

// Slider returns the i-th slider, or nil if i is out of range.
func (t *SliderTable) Slider(i int) *VertexSlider {
	if i < 0 || i >= len(t.sliders) {
		violation("slider %d out of range [0,%d)", i, len(t.sliders))
		return nil
	}
	return t.sliders[i]
}

// Find returns the sliders with the given name.
func (t *SliderTable) Find(name *Name) []*VertexSlider {
	var out []*VertexSlider
	for _, s := range t.sliders {
		if s.name == name {
			out = append(out, s)
		}
	}
	return out
}

// Modified returns the latest stamp of the table or any slider.
func (t *SliderTable) Modified() UpdateSeq {
	m := t.modified
	for _, s := range t.sliders {
		m = max(m, s.Modified())
	}
	return m
}
