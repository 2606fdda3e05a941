package vgeom

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/gogpu/gputypes"
)

// ColumnSpec is the shape of a column to be added at the next free offset.
type ColumnSpec struct {
	Name          *Name
	NumComponents int
	Type          NumericType
	Contents      Contents
}

// ArrayFormat describes the rows of one interleaved vertex array: a stride
// and a set of non-overlapping columns.
//
// An unregistered ArrayFormat is a builder owned by one goroutine. Once
// registered it is immutable and may be shared freely; mutating it is a
// precondition violation and is ignored.
type ArrayFormat struct {
	registered atomic.Bool

	stride     int
	totalBytes int
	padTo      int

	columns []*Column
	byName  map[*Name]*Column
	sorted  bool
}

// NewArrayFormat creates an array format with the given columns packed in order.
func NewArrayFormat(cols ...ColumnSpec) *ArrayFormat {
	a := &ArrayFormat{
		padTo:  1,
		byName: make(map[*Name]*Column),
		sorted: true,
	}
	for _, c := range cols {
		a.AddColumn(c.Name, c.NumComponents, c.Type, c.Contents, -1)
	}
	return a
}

func alignUp(n, a int) int {
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}

func (a *ArrayFormat) checkMutable(op string) bool {
	if a.registered.Load() {
		violation("%s on registered array format %s", op, a)
		return false
	}
	return true
}

// AddColumn adds a column and returns its byte offset, or -1 if the format is
// registered. A negative start places the column at the next offset aligned
// to its component size. Any existing column with the same name or an
// overlapping byte range is removed first.
func (a *ArrayFormat) AddColumn(name *Name, numComponents int, nt NumericType, contents Contents, start int) int {
	if !a.checkMutable("AddColumn") {
		return -1
	}
	a.RemoveColumn(name)
	c := NewColumn(name, numComponents, nt, contents, 0)
	if start < 0 {
		start = alignUp(a.totalBytes, c.componentBytes)
	}
	return a.AddColumnDesc(c.withStart(start))
}

// AddColumnDesc adds c at its own offset, evicting same-named and
// overlapping columns, and returns the offset.
func (a *ArrayFormat) AddColumnDesc(c *Column) int {
	if !a.checkMutable("AddColumnDesc") {
		return -1
	}
	a.RemoveColumn(c.name)
	a.columns = slices.DeleteFunc(a.columns, func(o *Column) bool {
		if o.OverlapsWith(c.start, c.totalBytes) {
			delete(a.byName, o.name)
			return true
		}
		return false
	})
	if n := len(a.columns); n > 0 && a.columns[n-1].start > c.start {
		a.sorted = false
	}
	a.columns = append(a.columns, c)
	a.byName[c.name] = c
	a.recomputeTotalBytes()
	a.stride = max(a.stride, alignUp(a.totalBytes, a.padTo))
	return c.start
}

// recomputeTotalBytes sets totalBytes to the end of the last column.
func (a *ArrayFormat) recomputeTotalBytes() {
	a.totalBytes = 0
	for _, c := range a.columns {
		a.totalBytes = max(a.totalBytes, c.End())
	}
}

// RemoveColumn removes the named column, leaving a gap in the row. The
// stride is unchanged.
func (a *ArrayFormat) RemoveColumn(name *Name) bool {
	if !a.checkMutable("RemoveColumn") {
		return false
	}
	if _, ok := a.byName[name]; !ok {
		return false
	}
	delete(a.byName, name)
	a.columns = slices.DeleteFunc(a.columns, func(o *Column) bool { return o.name == name })
	a.recomputeTotalBytes()
	return true
}

// ClearColumns removes every column and resets the row size.
func (a *ArrayFormat) ClearColumns() {
	if !a.checkMutable("ClearColumns") {
		return
	}
	a.columns = nil
	clear(a.byName)
	a.totalBytes = 0
	a.stride = 0
	a.sorted = true
}

// Pack moves every column down to close gaps, keeping their order.
func (a *ArrayFormat) Pack() {
	if !a.checkMutable("Pack") {
		return
	}
	a.considerSort()
	cols := a.columns
	a.columns = nil
	clear(a.byName)
	a.totalBytes = 0
	a.stride = 0
	for _, c := range cols {
		a.AddColumnDesc(c.withStart(alignUp(a.totalBytes, c.componentBytes)))
	}
}

// AlignColumnsForAnimation widens 3-component float points and vectors to 4
// components on 16-byte boundaries, the layout SIMD animation code expects.
func (a *ArrayFormat) AlignColumnsForAnimation() {
	if !a.checkMutable("AlignColumnsForAnimation") {
		return
	}
	a.considerSort()
	cols := a.columns
	a.columns = nil
	clear(a.byName)
	a.totalBytes = 0
	a.stride = 0
	a.padTo = max(a.padTo, 16)
	for _, c := range cols {
		if c.numericType == Float32 && c.numComponents >= 3 &&
			(c.contents == ContentsPoint || c.contents == ContentsVector) {
			a.AddColumnDesc(NewColumn(c.name, 4, Float32, c.contents, alignUp(a.totalBytes, 16)))
			continue
		}
		a.AddColumnDesc(c.withStart(alignUp(a.totalBytes, c.componentBytes)))
	}
	a.stride = alignUp(a.stride, 16)
}

// SetStride sets the row size. It never shrinks below the columns' extent.
func (a *ArrayFormat) SetStride(stride int) {
	if !a.checkMutable("SetStride") {
		return
	}
	a.stride = max(stride, a.totalBytes)
}

// SetPadTo sets the multiple the stride is rounded up to.
func (a *ArrayFormat) SetPadTo(padTo int) {
	if !a.checkMutable("SetPadTo") {
		return
	}
	a.padTo = max(padTo, 1)
	a.stride = alignUp(max(a.stride, a.totalBytes), a.padTo)
}

// Stride returns the row size in bytes.
func (a *ArrayFormat) Stride() int { return a.stride }

// TotalBytes returns the extent of the columns, without trailing padding.
func (a *ArrayFormat) TotalBytes() int { return a.totalBytes }

// PadTo returns the stride alignment.
func (a *ArrayFormat) PadTo() int { return a.padTo }

// IsRegistered reports whether the format has been interned.
func (a *ArrayFormat) IsRegistered() bool { return a.registered.Load() }

// NumColumns returns the number of columns.
func (a *ArrayFormat) NumColumns() int { return len(a.columns) }

// Column returns the i-th column in byte-offset order.
func (a *ArrayFormat) Column(i int) *Column {
	a.considerSort()
	return a.columns[i]
}

// Columns returns the columns in byte-offset order.
func (a *ArrayFormat) Columns() []*Column {
	a.considerSort()
	return slices.Clone(a.columns)
}

// ColumnByName returns the named column, or nil.
func (a *ArrayFormat) ColumnByName(name *Name) *Column {
	return a.byName[name]
}

// HasColumn reports whether the named column is present.
func (a *ArrayFormat) HasColumn(name *Name) bool {
	_, ok := a.byName[name]
	return ok
}

// IsLinear reports whether the columns fill the row with no gaps.
func (a *ArrayFormat) IsLinear() bool {
	return a.CountUnusedSpace() == 0
}

// CountUnusedSpace returns the number of bytes per row not covered by a column.
func (a *ArrayFormat) CountUnusedSpace() int {
	used := 0
	for _, c := range a.columns {
		used += c.totalBytes
	}
	return a.stride - used
}

// IsDataSubsetOf reports whether every column of a is present, byte for byte,
// in other and both have the same stride. Rows of other can then be read as
// rows of a without a copy.
func (a *ArrayFormat) IsDataSubsetOf(other *ArrayFormat) bool {
	if a.stride != other.stride || len(a.columns) > len(other.columns) {
		return false
	}
	for _, c := range a.columns {
		o := other.byName[c.name]
		if o == nil || !c.IsDataEqual(o) {
			return false
		}
	}
	return true
}

// considerSort restores byte-offset order after out-of-order additions.
// Registered formats are sorted before they are published.
func (a *ArrayFormat) considerSort() {
	if a.sorted {
		return
	}
	slices.SortStableFunc(a.columns, func(x, y *Column) int { return x.Compare(y) })
	a.sorted = true
}

// Compare orders array formats by stride, size, padding and then columns.
func (a *ArrayFormat) Compare(other *ArrayFormat) int {
	if a == other {
		return 0
	}
	if r := cmp.Compare(a.stride, other.stride); r != 0 {
		return r
	}
	if r := cmp.Compare(a.totalBytes, other.totalBytes); r != 0 {
		return r
	}
	if r := cmp.Compare(a.padTo, other.padTo); r != 0 {
		return r
	}
	if r := cmp.Compare(len(a.columns), len(other.columns)); r != 0 {
		return r
	}
	a.considerSort()
	other.considerSort()
	for i, c := range a.columns {
		if r := c.Compare(other.columns[i]); r != 0 {
			return r
		}
	}
	return 0
}

// Copy returns an unregistered copy that may be modified.
func (a *ArrayFormat) Copy() *ArrayFormat {
	a.considerSort()
	b := &ArrayFormat{
		stride:     a.stride,
		totalBytes: a.totalBytes,
		padTo:      a.padTo,
		columns:    slices.Clone(a.columns),
		byName:     make(map[*Name]*Column, len(a.columns)),
		sorted:     true,
	}
	for _, c := range b.columns {
		b.byName[c.name] = c
	}
	return b
}

// key returns a string that is equal for two formats exactly when Compare
// returns 0.
func (a *ArrayFormat) key() string {
	a.considerSort()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d/%d/%d", a.stride, a.totalBytes, a.padTo)
	for _, c := range a.columns {
		fmt.Fprintf(&sb, "|%d:%s:%d:%d:%d", c.start, c.name, c.numComponents, c.numericType, c.contents)
	}
	return sb.String()
}

func (a *ArrayFormat) String() string {
	a.considerSort()
	var sb strings.Builder
	sb.WriteString("[")
	for i, c := range a.columns {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(c.String())
	}
	fmt.Fprintf(&sb, "] stride %d", a.stride)
	return sb.String()
}

// BufferLayout describes the array as a WebGPU vertex buffer, assigning shader
// locations from firstLocation in column order. It reports false if some
// column has no WebGPU vertex format.
func (a *ArrayFormat) BufferLayout(firstLocation uint32) (gputypes.VertexBufferLayout, bool) {
	a.considerSort()
	layout := gputypes.VertexBufferLayout{
		ArrayStride: uint64(a.stride),
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes:  make([]gputypes.VertexAttribute, 0, len(a.columns)),
	}
	for i, c := range a.columns {
		vf, ok := c.VertexFormat()
		if !ok {
			return gputypes.VertexBufferLayout{}, false
		}
		layout.Attributes = append(layout.Attributes, gputypes.VertexAttribute{
			Format:         vf,
			Offset:         uint64(c.start),
			ShaderLocation: firstLocation + uint32(i),
		})
	}
	return layout, true
}
