package vgeom

import (
	"cmp"
	"fmt"

	"github.com/gogpu/gputypes"
)

// Column describes how one named attribute is stored inside each row of an
// array. Columns are immutable once created.
type Column struct {
	name           *Name
	numComponents  int
	numValues      int
	numericType    NumericType
	contents       Contents
	start          int
	componentBytes int
	totalBytes     int
	pk             *packer
}

// NewColumn creates a column descriptor. Packed colour types always hold one
// component of four logical values; numComponents is forced to 1 for them.
func NewColumn(name *Name, numComponents int, nt NumericType, contents Contents, start int) *Column {
	if numComponents < 1 {
		violation("column %s with %d components", name, numComponents)
		numComponents = 1
	}
	if start < 0 {
		start = 0
	}
	c := &Column{
		name:          name,
		numComponents: numComponents,
		numValues:     numComponents,
		numericType:   nt,
		contents:      contents,
		start:         start,
	}
	if nt.IsPacked() {
		c.numComponents = 1
		c.numValues = 4
	}
	c.componentBytes = nt.ComponentBytes()
	c.totalBytes = c.componentBytes * c.numComponents
	c.pk = packerFor(c)
	return c
}

// withStart returns a copy of c placed at a different offset.
func (c *Column) withStart(start int) *Column {
	return NewColumn(c.name, c.numComponents, c.numericType, c.contents, start)
}

// Name returns the column's attribute name.
func (c *Column) Name() *Name { return c.name }

// NumComponents returns the number of stored components.
func (c *Column) NumComponents() int { return c.numComponents }

// NumValues returns the number of logical scalar values. A packed colour
// stores one component but four values.
func (c *Column) NumValues() int { return c.numValues }

// NumericType returns the component storage type.
func (c *Column) NumericType() NumericType { return c.numericType }

// Contents returns the semantic contents tag.
func (c *Column) Contents() Contents { return c.contents }

// Start returns the byte offset of the column within a row.
func (c *Column) Start() int { return c.start }

// ComponentBytes returns the size of one component.
func (c *Column) ComponentBytes() int { return c.componentBytes }

// TotalBytes returns the size of the column within a row.
func (c *Column) TotalBytes() int { return c.totalBytes }

// End returns the offset just past the column.
func (c *Column) End() int { return c.start + c.totalBytes }

// IsPackedColor reports whether the column is a packed 32-bit colour.
func (c *Column) IsPackedColor() bool { return c.numericType.IsPacked() }

// HasHomogeneousCoord reports whether the column is a 4-component point whose
// fourth value is w.
func (c *Column) HasHomogeneousCoord() bool {
	return (c.contents == ContentsPoint || c.contents == ContentsClipPoint) && c.numValues == 4
}

// OverlapsWith reports whether the column shares any byte with [start, start+n).
func (c *Column) OverlapsWith(start, n int) bool {
	return c.start < start+n && start < c.start+c.totalBytes
}

// IsBytewiseEquivalent reports whether a value copied byte for byte from c
// means the same in other.
func (c *Column) IsBytewiseEquivalent(other *Column) bool {
	return c.numComponents == other.numComponents &&
		c.numericType == other.numericType &&
		c.componentBytes == other.componentBytes
}

// IsDataEqual reports whether c and other describe the same bytes the same way.
func (c *Column) IsDataEqual(other *Column) bool {
	return c.Compare(other) == 0
}

// Compare orders columns by start, name, then storage shape.
func (c *Column) Compare(other *Column) int {
	if c == other {
		return 0
	}
	if r := cmp.Compare(c.start, other.start); r != 0 {
		return r
	}
	if r := c.name.Compare(other.name); r != 0 {
		return r
	}
	if r := cmp.Compare(c.numComponents, other.numComponents); r != 0 {
		return r
	}
	if r := cmp.Compare(c.numericType, other.numericType); r != 0 {
		return r
	}
	return cmp.Compare(c.contents, other.contents)
}

func (c *Column) String() string {
	return fmt.Sprintf("%s(%d %s %s @%d)", c.name, c.numComponents, c.numericType, c.contents, c.start)
}

// VertexFormat returns the WebGPU vertex format that reads this column as is.
// It reports false when WebGPU has no matching format (3-wide 8 or 16 bit
// columns, the DirectX colour order).
func (c *Column) VertexFormat() (gputypes.VertexFormat, bool) {
	norm := c.contents == ContentsColor
	switch c.numericType {
	case Float32:
		switch c.numComponents {
		case 1:
			return gputypes.VertexFormatFloat32, true
		case 2:
			return gputypes.VertexFormatFloat32x2, true
		case 3:
			return gputypes.VertexFormatFloat32x3, true
		case 4:
			return gputypes.VertexFormatFloat32x4, true
		}
	case Uint32:
		switch c.numComponents {
		case 1:
			return gputypes.VertexFormatUint32, true
		case 2:
			return gputypes.VertexFormatUint32x2, true
		case 3:
			return gputypes.VertexFormatUint32x3, true
		case 4:
			return gputypes.VertexFormatUint32x4, true
		}
	case Uint16:
		switch {
		case c.numComponents == 2 && norm:
			return gputypes.VertexFormatUnorm16x2, true
		case c.numComponents == 4 && norm:
			return gputypes.VertexFormatUnorm16x4, true
		case c.numComponents == 2:
			return gputypes.VertexFormatUint16x2, true
		case c.numComponents == 4:
			return gputypes.VertexFormatUint16x4, true
		}
	case Uint8:
		switch {
		case c.numComponents == 2 && norm:
			return gputypes.VertexFormatUnorm8x2, true
		case c.numComponents == 4 && norm:
			return gputypes.VertexFormatUnorm8x4, true
		case c.numComponents == 2:
			return gputypes.VertexFormatUint8x2, true
		case c.numComponents == 4:
			return gputypes.VertexFormatUint8x4, true
		}
	case PackedDCBA:
		return gputypes.VertexFormatUnorm8x4, true
	}
	return gputypes.VertexFormatUndefined, false
}
