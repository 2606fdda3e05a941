package vgeom

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// MorphSpec names one morph target: the delta column is added to the base
// column, scaled by the slider's value.
type MorphSpec struct {
	Slider *Name
	Base   *Name
	Delta  *Name
}

// columnRef locates a column within a format.
type columnRef struct {
	array  int
	column *Column
}

// Format is a complete vertex format: one or more array formats plus the
// animation mode. Registered formats are interned by a FormatRegistry; two
// registered formats are structurally equal exactly when their pointers are.
//
// Like ArrayFormat, an unregistered Format is a single-goroutine builder.
type Format struct {
	registered atomic.Bool
	id         uint64
	reg        *FormatRegistry

	animation AnimationSpec
	arrays    []*ArrayFormat

	// Derived at registration.
	columns   map[*Name]columnRef
	points    []*Name
	vectors   []*Name
	texcoords []*Name
	morphs    []MorphSpec

	postOnce     sync.Once
	postAnimated *Format
}

// NewFormat creates an unregistered format from arrays.
func NewFormat(arrays ...*ArrayFormat) *Format {
	return &Format{arrays: slices.Clone(arrays)}
}

// NewFormatWith creates an unregistered format with an animation mode.
func NewFormatWith(animation AnimationSpec, arrays ...*ArrayFormat) *Format {
	return &Format{animation: animation, arrays: slices.Clone(arrays)}
}

func (f *Format) checkMutable(op string) bool {
	if f.registered.Load() {
		violation("%s on registered format", op)
		return false
	}
	return true
}

// IsRegistered reports whether the format is interned.
func (f *Format) IsRegistered() bool { return f.registered.Load() }

// ID returns the registry-assigned identifier, or 0 before registration.
func (f *Format) ID() uint64 { return f.id }

// Animation returns the animation mode.
func (f *Format) Animation() AnimationSpec { return f.animation }

// SetAnimation sets the animation mode of an unregistered format.
func (f *Format) SetAnimation(a AnimationSpec) {
	if f.checkMutable("SetAnimation") {
		f.animation = a
	}
}

// NumArrays returns the number of arrays.
func (f *Format) NumArrays() int { return len(f.arrays) }

// Array returns the i-th array format, or nil if i is out of range.
func (f *Format) Array(i int) *ArrayFormat {
	if i < 0 || i >= len(f.arrays) {
		violation("array format %d out of range [0,%d)", i, len(f.arrays))
		return nil
	}
	return f.arrays[i]
}

// Arrays returns the array formats.
func (f *Format) Arrays() []*ArrayFormat { return slices.Clone(f.arrays) }

// AddArray appends an array format and returns its index.
func (f *Format) AddArray(a *ArrayFormat) int {
	if !f.checkMutable("AddArray") {
		return -1
	}
	f.arrays = append(f.arrays, a)
	return len(f.arrays) - 1
}

// InsertArray inserts an array format at index i.
func (f *Format) InsertArray(i int, a *ArrayFormat) {
	if !f.checkMutable("InsertArray") {
		return
	}
	if i < 0 || i > len(f.arrays) {
		violation("InsertArray index %d out of range [0,%d]", i, len(f.arrays))
		i = len(f.arrays)
	}
	f.arrays = slices.Insert(f.arrays, i, a)
}

// RemoveArray removes the i-th array format.
func (f *Format) RemoveArray(i int) {
	if !f.checkMutable("RemoveArray") {
		return
	}
	if i < 0 || i >= len(f.arrays) {
		violation("RemoveArray index %d out of range [0,%d)", i, len(f.arrays))
		return
	}
	f.arrays = slices.Delete(f.arrays, i, i+1)
}

// ModifyArray returns array i for modification, replacing a registered array
// with an unregistered copy first.
func (f *Format) ModifyArray(i int) *ArrayFormat {
	if !f.checkMutable("ModifyArray") {
		return f.arrays[i].Copy()
	}
	if f.arrays[i].IsRegistered() {
		f.arrays[i] = f.arrays[i].Copy()
	}
	return f.arrays[i]
}

// RemoveColumn removes the named column from whichever array holds it,
// dropping the array if it becomes empty.
func (f *Format) RemoveColumn(name *Name) bool {
	if !f.checkMutable("RemoveColumn") {
		return false
	}
	for i, a := range f.arrays {
		if !a.HasColumn(name) {
			continue
		}
		m := f.ModifyArray(i)
		m.RemoveColumn(name)
		if m.NumColumns() == 0 {
			f.arrays = slices.Delete(f.arrays, i, i+1)
		}
		return true
	}
	return false
}

// Column returns the index of the array holding the named column and the
// column itself, or (-1, nil).
func (f *Format) Column(name *Name) (int, *Column) {
	if f.columns != nil {
		if r, ok := f.columns[name]; ok {
			return r.array, r.column
		}
		return -1, nil
	}
	for i, a := range f.arrays {
		if c := a.ColumnByName(name); c != nil {
			return i, c
		}
	}
	return -1, nil
}

// HasColumn reports whether the named column is present.
func (f *Format) HasColumn(name *Name) bool {
	_, c := f.Column(name)
	return c != nil
}

// NumColumns returns the number of columns across all arrays.
func (f *Format) NumColumns() int {
	n := 0
	for _, a := range f.arrays {
		n += a.NumColumns()
	}
	return n
}

// Points returns the names of point columns. Valid after registration.
func (f *Format) Points() []*Name { return f.points }

// Vectors returns the names of vector columns. Valid after registration.
func (f *Format) Vectors() []*Name { return f.vectors }

// Texcoords returns the names of texture coordinate columns. Valid after
// registration.
func (f *Format) Texcoords() []*Name { return f.texcoords }

// Morphs returns the morph targets found among the columns. Valid after
// registration.
func (f *Format) Morphs() []MorphSpec { return f.morphs }

// Copy returns an unregistered copy sharing the (immutable) registered arrays.
func (f *Format) Copy() *Format {
	return &Format{animation: f.animation, arrays: slices.Clone(f.arrays)}
}

// Compare orders formats by animation mode, array count, then arrays.
func (f *Format) Compare(other *Format) int {
	if f == other {
		return 0
	}
	if r := f.animation.Compare(other.animation); r != 0 {
		return r
	}
	if r := cmp.Compare(len(f.arrays), len(other.arrays)); r != 0 {
		return r
	}
	for i, a := range f.arrays {
		if r := a.Compare(other.arrays[i]); r != 0 {
			return r
		}
	}
	return 0
}

func (f *Format) key() string {
	var sb strings.Builder
	sb.WriteString(f.animation.String())
	for _, a := range f.arrays {
		sb.WriteString("#")
		sb.WriteString(a.key())
	}
	return sb.String()
}

func (f *Format) String() string {
	var sb strings.Builder
	for i, a := range f.arrays {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "  %d: %s", i, a)
	}
	if f.animation.Type != AnimationNone {
		fmt.Fprintf(&sb, "\n  anim: %s", f.animation)
	}
	return sb.String()
}

// deriveIndexes fills the lookup tables of a format being registered.
// Duplicate column names keep the first occurrence.
func (f *Format) deriveIndexes() {
	f.columns = make(map[*Name]columnRef)
	f.points, f.vectors, f.texcoords, f.morphs = nil, nil, nil, nil
	for i, a := range f.arrays {
		for _, c := range a.Columns() {
			if _, dup := f.columns[c.name]; dup {
				continue
			}
			f.columns[c.name] = columnRef{array: i, column: c}
			switch c.contents {
			case ContentsPoint:
				f.points = append(f.points, c.name)
			case ContentsVector:
				f.vectors = append(f.vectors, c.name)
			case ContentsTexcoord:
				f.texcoords = append(f.texcoords, c.name)
			case ContentsMorphDelta:
				if base, slider, ok := c.name.MorphBase(); ok {
					f.morphs = append(f.morphs, MorphSpec{Slider: slider, Base: base, Delta: c.name})
				}
			}
		}
	}
}

// isAnimationColumn reports whether a column only feeds vertex animation.
func isAnimationColumn(c *Column) bool {
	switch c.name {
	case NameTransformBlend, NameTransformWeight, NameTransformIndex:
		return true
	}
	return c.contents == ContentsMorphDelta
}

// PostAnimatedFormat returns the registered format of the data Animate
// produces: the same columns minus the animation inputs, unanimated.
// The receiver must be registered.
func (f *Format) PostAnimatedFormat() *Format {
	if !f.IsRegistered() {
		violation("PostAnimatedFormat on unregistered format")
		return f
	}
	f.postOnce.Do(func() {
		f.postAnimated = f.registry().Register(f.withoutAnimationColumns())
	})
	return f.postAnimated
}

func (f *Format) withoutAnimationColumns() *Format {
	out := &Format{}
	for _, a := range f.arrays {
		b := a.Copy()
		for _, c := range a.Columns() {
			if isAnimationColumn(c) {
				b.RemoveColumn(c.name)
			}
		}
		if b.NumColumns() > 0 {
			b.Pack()
			out.arrays = append(out.arrays, b)
		}
	}
	return out
}

// UnionFormat returns a registered format holding every column of f and of
// other. Columns present in both keep the wider of the two shapes; columns
// only in other are appended as new arrays grouped as in other.
func (f *Format) UnionFormat(other *Format) *Format {
	out := &Format{animation: f.animation}
	if other.animation.Compare(f.animation) > 0 {
		out.animation = other.animation
	}
	for _, a := range f.arrays {
		b := NewArrayFormat()
		for _, c := range a.Columns() {
			w := c
			if _, oc := other.Column(c.name); oc != nil && wider(oc, c) {
				w = oc
			}
			b.AddColumn(w.name, w.numComponents, w.numericType, w.contents, -1)
		}
		b.SetPadTo(a.padTo)
		out.arrays = append(out.arrays, b)
	}
	for _, a := range other.arrays {
		b := NewArrayFormat()
		for _, c := range a.Columns() {
			if !f.HasColumn(c.name) {
				b.AddColumn(c.name, c.numComponents, c.numericType, c.contents, -1)
			}
		}
		if b.NumColumns() > 0 {
			out.arrays = append(out.arrays, b)
		}
	}
	return f.registry().Register(out)
}

// wider reports whether a can hold every value of b.
func wider(a, b *Column) bool {
	if a.numValues != b.numValues {
		return a.numValues > b.numValues
	}
	return a.numericType == Float32 && b.numericType != Float32
}

// registry returns the registry a registered format belongs to.
func (f *Format) registry() *FormatRegistry {
	if f.reg != nil {
		return f.reg
	}
	return DefaultRegistry()
}
