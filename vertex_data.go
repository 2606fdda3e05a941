package vgeom

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/vgeom/internal/cow"
	"github.com/gogpu/vgeom/pipeline"
)

// vertexDataCData is the cycled part of a VertexData.
type vertexDataCData struct {
	format         *Format
	usage          UsageHint
	arrays         []*VertexArray
	transformTable *TransformTable
	blendTable     *TransformBlendTable
	sliderTable    *SliderTable
	modified       UpdateSeq
}

// cloneVertexDataCData makes a stage-private copy. Arrays and tables stay
// shared and are copied on their next write.
func cloneVertexDataCData(c *vertexDataCData) *vertexDataCData {
	n := *c
	n.arrays = slices.Clone(c.arrays)
	cow.ShareAll(n.arrays)
	n.shareTables()
	return &n
}

func (c *vertexDataCData) shareTables() {
	if c.transformTable != nil {
		c.transformTable.MarkShared()
	}
	if c.blendTable != nil {
		c.blendTable.MarkShared()
	}
	if c.sliderTable != nil {
		c.sliderTable.MarkShared()
	}
}

// modifiedSeq returns the latest stamp of the payload, its arrays, and the
// animation palettes with every transform and slider they reference.
func (c *vertexDataCData) modifiedSeq() UpdateSeq {
	m := max(c.modified, c.animationSeq())
	for _, a := range c.arrays {
		m = max(m, a.modified)
	}
	return m
}

// animationSeq returns the latest stamp of the CPU animation inputs.
func (c *vertexDataCData) animationSeq() UpdateSeq {
	var m UpdateSeq
	if c.blendTable != nil {
		m = c.blendTable.Modified()
	}
	if c.sliderTable != nil {
		m = max(m, c.sliderTable.Modified())
	}
	return m
}

func (c *vertexDataCData) numRows() int {
	if len(c.arrays) == 0 {
		return 0
	}
	return c.arrays[0].NumRows()
}

// VertexData is a table of vertices: one VertexArray per array of its
// Format, plus the palettes vertex animation reads.
//
// VertexData has value semantics: Copy and every conversion share storage
// with the original, and writes copy what they touch first. Methods read and
// write the upstream pipeline stage (stage 0); use AtStage for a snapshot of
// another stage.
//
// Methods are safe for concurrent use: an array or table handed out by a
// getter is never written again, since the next write copies it. Writes made
// through a VertexArray from ModifyArray or through a VertexWriter are not
// synchronized with readers of the same stage, and such a handle must not be
// kept across a pipeline cycle.
type VertexData struct {
	cow.Ref

	name   string
	opts   objectOptions
	cycler *pipeline.Cycler[vertexDataCData]

	animMu      sync.Mutex
	animated    *VertexData
	animatedSeq UpdateSeq
}

// NewVertexData creates an empty table for format, registering the format
// if needed.
func NewVertexData(name string, format *Format, usage UsageHint, opts ...Option) *VertexData {
	o := applyOptions(opts)
	format = o.registry.Register(format)
	c := &vertexDataCData{
		format:   format,
		usage:    usage,
		arrays:   make([]*VertexArray, format.NumArrays()),
		modified: NextUpdateSeq(),
	}
	for i := range c.arrays {
		c.arrays[i] = NewVertexArray(format.Array(i), usage)
	}
	return newVertexDataFrom(name, o, c)
}

func newVertexDataFrom(name string, o objectOptions, c *vertexDataCData) *VertexData {
	return &VertexData{
		name:   name,
		opts:   o,
		cycler: pipeline.NewCycler(o.pipeline, c, cloneVertexDataCData),
	}
}

func (d *VertexData) cdata() *vertexDataCData { return d.cycler.Read(0) }

// view runs fn on the upstream payload without handing it out.
func (d *VertexData) view(fn func(c *vertexDataCData)) { d.cycler.View(0, fn) }

func (d *VertexData) write(fn func(c *vertexDataCData)) {
	d.cycler.Write(0, fn)
}

// Copy returns a new VertexData with the same contents. Storage is shared
// until either side writes.
func (d *VertexData) Copy() *VertexData {
	return newVertexDataFrom(d.name, d.opts, cloneVertexDataCData(d.cdata()))
}

// Clone is Copy; it lets a Geom hold its data copy-on-write.
func (d *VertexData) Clone() *VertexData { return d.Copy() }

// AtStage returns a detached copy of the payload visible at a pipeline
// stage. The render side uses it to read the downstream stage.
func (d *VertexData) AtStage(stage int) *VertexData {
	return newVertexDataFrom(d.name, d.opts, cloneVertexDataCData(d.cycler.Read(stage)))
}

// Name returns the descriptive name given at creation.
func (d *VertexData) Name() string { return d.name }

// Format returns the registered format.
func (d *VertexData) Format() *Format {
	var f *Format
	d.view(func(c *vertexDataCData) { f = c.format })
	return f
}

// UsageHint returns the expected update frequency.
func (d *VertexData) UsageHint() UsageHint {
	var u UsageHint
	d.view(func(c *vertexDataCData) { u = c.usage })
	return u
}

// Pipeline returns the pipeline the data is cycled by.
func (d *VertexData) Pipeline() *pipeline.Pipeline { return d.opts.pipeline }

// Modified returns the stamp of the last change to the table, its arrays,
// or the transforms and sliders that animate it.
func (d *VertexData) Modified() UpdateSeq {
	var m UpdateSeq
	d.view(func(c *vertexDataCData) { m = c.modifiedSeq() })
	return m
}

// NumRows returns the number of vertices.
func (d *VertexData) NumRows() int {
	var n int
	d.view(func(c *vertexDataCData) { n = c.numRows() })
	return n
}

// NumArrays returns the number of arrays.
func (d *VertexData) NumArrays() int {
	var n int
	d.view(func(c *vertexDataCData) { n = len(c.arrays) })
	return n
}

// Array returns array i for reading. The array must not be modified.
func (d *VertexData) Array(i int) *VertexArray {
	c := d.cdata()
	if i < 0 || i >= len(c.arrays) {
		violation("Array(%d) out of range [0,%d)", i, len(c.arrays))
		return nil
	}
	return c.arrays[i]
}

// HasColumn reports whether the format has the named column.
func (d *VertexData) HasColumn(name *Name) bool { return d.Format().HasColumn(name) }

// TransformTable returns the hardware animation table, or nil.
func (d *VertexData) TransformTable() *TransformTable { return d.cdata().transformTable }

// TransformBlendTable returns the CPU animation palette, or nil.
func (d *VertexData) TransformBlendTable() *TransformBlendTable { return d.cdata().blendTable }

// SliderTable returns the morph sliders, or nil.
func (d *VertexData) SliderTable() *SliderTable { return d.cdata().sliderTable }

// TotalBytes returns the size of all arrays, for cache accounting.
func (d *VertexData) TotalBytes() int64 {
	var n int64
	d.view(func(c *vertexDataCData) {
		for _, a := range c.arrays {
			n += int64(a.DataSize())
		}
	})
	return n
}

// ModifyArray returns array i for writing. If the array is shared it is
// replaced by a private copy first.
func (d *VertexData) ModifyArray(i int) *VertexArray {
	var out *VertexArray
	d.write(func(c *vertexDataCData) {
		if i < 0 || i >= len(c.arrays) {
			violation("ModifyArray(%d) out of range [0,%d)", i, len(c.arrays))
			return
		}
		c.arrays[i] = cow.Unique(c.arrays[i])
		c.modified = NextUpdateSeq()
		out = c.arrays[i]
	})
	return out
}

// SetArray replaces array i. The array's format must be the format's i-th
// array; a is shared from then on and must not be written by the caller.
func (d *VertexData) SetArray(i int, a *VertexArray) {
	d.write(func(c *vertexDataCData) {
		if i < 0 || i >= len(c.arrays) {
			violation("SetArray(%d) out of range [0,%d)", i, len(c.arrays))
			return
		}
		if a.format != c.format.Array(i) {
			violation("SetArray(%d) with array format %s, want %s", i, a.format, c.format.Array(i))
			return
		}
		c.arrays[i] = cow.Share(a)
		c.modified = NextUpdateSeq()
	})
}

// SetUsageHint changes the update frequency of every array.
func (d *VertexData) SetUsageHint(u UsageHint) {
	d.write(func(c *vertexDataCData) {
		c.usage = u
		for i, a := range c.arrays {
			if a.usage != u {
				c.arrays[i] = cow.Unique(a)
				c.arrays[i].SetUsageHint(u)
			}
		}
		c.modified = NextUpdateSeq()
	})
}

// SetNumRows grows or shrinks every array to n rows. New rows are zero,
// except that a colour column reads as opaque white. It reports whether the
// row count changed.
func (d *VertexData) SetNumRows(n int) bool {
	changed := false
	d.write(func(c *vertexDataCData) {
		old := c.numRows()
		for i, a := range c.arrays {
			if a.NumRows() == n {
				continue
			}
			c.arrays[i] = cow.Unique(a)
			c.arrays[i].SetNumRows(n)
			changed = true
		}
		if !changed {
			return
		}
		c.modified = NextUpdateSeq()
		if n > old {
			if ai, col := c.format.Column(NameColor); col != nil {
				a := c.arrays[ai]
				for r := old; r < n; r++ {
					col.set4(a.data[r*a.format.stride:], [4]float32{1, 1, 1, 1})
				}
			}
		}
	})
	return changed
}

// ClearRows removes every vertex.
func (d *VertexData) ClearRows() {
	d.write(func(c *vertexDataCData) {
		for i, a := range c.arrays {
			if a.NumRows() > 0 {
				c.arrays[i] = cow.Unique(a)
				c.arrays[i].ClearRows()
			}
		}
		c.modified = NextUpdateSeq()
	})
}

// SetTransformTable sets the hardware animation table. t is shared from
// then on.
func (d *VertexData) SetTransformTable(t *TransformTable) {
	d.write(func(c *vertexDataCData) {
		if t != nil {
			t.MarkShared()
		}
		c.transformTable = t
		c.modified = NextUpdateSeq()
	})
}

// SetTransformBlendTable sets the CPU animation palette. t is shared from
// then on.
func (d *VertexData) SetTransformBlendTable(t *TransformBlendTable) {
	d.write(func(c *vertexDataCData) {
		if t != nil {
			t.MarkShared()
		}
		c.blendTable = t
		c.modified = NextUpdateSeq()
	})
}

// ModifyTransformBlendTable returns a private palette for writing, creating
// an empty one if there is none.
func (d *VertexData) ModifyTransformBlendTable() *TransformBlendTable {
	var out *TransformBlendTable
	d.write(func(c *vertexDataCData) {
		if c.blendTable == nil {
			c.blendTable = NewTransformBlendTable()
		} else {
			c.blendTable = cow.Unique(c.blendTable)
		}
		c.modified = NextUpdateSeq()
		out = c.blendTable
	})
	return out
}

// SetSliderTable sets the morph sliders. t is shared from then on.
func (d *VertexData) SetSliderTable(t *SliderTable) {
	d.write(func(c *vertexDataCData) {
		if t != nil {
			t.MarkShared()
		}
		c.sliderTable = t
		c.modified = NextUpdateSeq()
	})
}

// SetFormat converts the table to format in place.
func (d *VertexData) SetFormat(format *Format) error {
	conv, err := d.ConvertTo(format)
	if err != nil {
		return err
	}
	if conv == d {
		return nil
	}
	src := conv.cdata()
	d.write(func(c *vertexDataCData) {
		c.format = src.format
		c.arrays = slices.Clone(src.arrays)
		cow.ShareAll(c.arrays)
		c.transformTable = src.transformTable
		c.blendTable = src.blendTable
		c.sliderTable = src.sliderTable
		c.modified = NextUpdateSeq()
	})
	return nil
}

// CopyRowFrom copies row srcRow of src into row dstRow of d, converting every
// column d's format shares with src by name.
func (d *VertexData) CopyRowFrom(dstRow int, src *VertexData, srcRow int) error {
	if dstRow < 0 || dstRow >= d.NumRows() {
		return fmt.Errorf("%w: destination row %d of %d", ErrRowOutOfRange, dstRow, d.NumRows())
	}
	if srcRow < 0 || srcRow >= src.NumRows() {
		return fmt.Errorf("%w: source row %d of %d", ErrRowOutOfRange, srcRow, src.NumRows())
	}
	sc := src.cdata()
	format := d.Format()
	for ai := 0; ai < format.NumArrays(); ai++ {
		af := format.Array(ai)
		var dst *VertexArray
		for _, dc := range af.Columns() {
			si, sCol := sc.format.Column(dc.name)
			if sCol == nil {
				continue
			}
			if !convertible(sCol, dc) {
				return fmt.Errorf("%w: %s to %s", ErrNoConversion, sCol, dc)
			}
			if dst == nil {
				dst = d.ModifyArray(ai)
			}
			copyColumnRows(dst.ModifyBytes()[dstRow*af.stride:], af.stride, dc,
				sc.arrays[si].Row(srcRow), sc.arrays[si].format.stride, sCol, 1)
		}
	}
	return nil
}

// ReplaceColumn replaces the named column, or adds it, with a column of the
// given shape that lives in a new array of its own. The other columns keep
// their bytes: the array that held the column keeps its layout with a gap.
// The new column is zero except for colours, which read as opaque white.
func (d *VertexData) ReplaceColumn(name *Name, numComponents int, nt NumericType, contents Contents) {
	d.write(func(c *vertexDataCData) {
		rows := c.numRows()
		f := c.format.Copy()
		arrays := slices.Clone(c.arrays)

		if ai, _ := c.format.Column(name); ai >= 0 {
			stripped := f.ModifyArray(ai)
			stripped.RemoveColumn(name)
			if stripped.NumColumns() == 0 {
				f.RemoveArray(ai)
				arrays = slices.Delete(arrays, ai, ai+1)
			} else {
				reg := d.opts.registry.RegisterArray(stripped)
				f.arrays[ai] = reg
				old := arrays[ai]
				old.MarkShared()
				view := &VertexArray{format: reg, usage: old.usage, data: old.data, modified: old.modified}
				view.MarkShared()
				arrays[ai] = view
			}
		}
		af := NewArrayFormat(ColumnSpec{name, numComponents, nt, contents})
		f.AddArray(af)
		f = d.opts.registry.Register(f)

		na := NewVertexArray(f.Array(f.NumArrays()-1), c.usage)
		na.SetNumRows(rows)
		if contents == ContentsColor {
			col := na.format.ColumnByName(name)
			for r := 0; r < rows; r++ {
				col.set4(na.data[r*na.format.stride:], [4]float32{1, 1, 1, 1})
			}
		}
		c.format = f
		c.arrays = append(arrays, na)
		c.modified = NextUpdateSeq()
	})
}

func (d *VertexData) String() string {
	c := d.cdata()
	return fmt.Sprintf("VertexData(%q, %d rows, %d arrays)", d.name, c.numRows(), len(c.arrays))
}
