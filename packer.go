package vgeom

import (
	"encoding/binary"

	"github.com/chewxy/math32"

	"github.com/gogpu/vgeom/internal/color"
)

// packerKind selects the accessors for one storage shape.
type packerKind uint8

const (
	packFloat32 packerKind = iota
	packUint32
	packUint16
	packUint16Norm
	packUint8
	packUint8Norm
	packDCBA
	packDABC
)

// packer reads and writes logical values of one column. row starts at the
// column's first byte; i is the logical value index.
type packer struct {
	kind packerKind
	get  func(row []byte, i int) float32
	set  func(row []byte, i int, v float32)
	geti func(row []byte, i int) int
	seti func(row []byte, i int, v int)
}

var le = binary.LittleEndian

// maxUint32Float is the largest float32 that converts to uint32 exactly.
const maxUint32Float = 4294967040

// dabcOrder maps logical R,G,B,A to byte positions of a DABC colour.
var dabcOrder = [4]int{2, 1, 0, 3}

var packers = [...]packer{
	packFloat32: {
		kind: packFloat32,
		get:  func(r []byte, i int) float32 { return math32.Float32frombits(le.Uint32(r[4*i:])) },
		set:  func(r []byte, i int, v float32) { le.PutUint32(r[4*i:], math32.Float32bits(v)) },
		geti: func(r []byte, i int) int { return int(math32.Float32frombits(le.Uint32(r[4*i:]))) },
		seti: func(r []byte, i int, v int) { le.PutUint32(r[4*i:], math32.Float32bits(float32(v))) },
	},
	packUint32: {
		kind: packUint32,
		get:  func(r []byte, i int) float32 { return float32(le.Uint32(r[4*i:])) },
		set:  func(r []byte, i int, v float32) { le.PutUint32(r[4*i:], uint32(clampRound(v, maxUint32Float))) },
		geti: func(r []byte, i int) int { return int(le.Uint32(r[4*i:])) },
		seti: func(r []byte, i int, v int) { le.PutUint32(r[4*i:], uint32(v)) },
	},
	packUint16: {
		kind: packUint16,
		get:  func(r []byte, i int) float32 { return float32(le.Uint16(r[2*i:])) },
		set:  func(r []byte, i int, v float32) { le.PutUint16(r[2*i:], uint16(clampRound(v, 65535))) },
		geti: func(r []byte, i int) int { return int(le.Uint16(r[2*i:])) },
		seti: func(r []byte, i int, v int) { le.PutUint16(r[2*i:], uint16(v)) },
	},
	packUint16Norm: {
		kind: packUint16Norm,
		get:  func(r []byte, i int) float32 { return float32(le.Uint16(r[2*i:])) / 65535 },
		set:  func(r []byte, i int, v float32) { le.PutUint16(r[2*i:], color.UnitToU16(v)) },
		geti: func(r []byte, i int) int { return int(le.Uint16(r[2*i:])) },
		seti: func(r []byte, i int, v int) { le.PutUint16(r[2*i:], uint16(v)) },
	},
	packUint8: {
		kind: packUint8,
		get:  func(r []byte, i int) float32 { return float32(r[i]) },
		set:  func(r []byte, i int, v float32) { r[i] = uint8(clampRound(v, 255)) },
		geti: func(r []byte, i int) int { return int(r[i]) },
		seti: func(r []byte, i int, v int) { r[i] = uint8(v) },
	},
	packUint8Norm: {
		kind: packUint8Norm,
		get:  func(r []byte, i int) float32 { return float32(r[i]) / 255 },
		set:  func(r []byte, i int, v float32) { r[i] = color.UnitToU8(v) },
		geti: func(r []byte, i int) int { return int(r[i]) },
		seti: func(r []byte, i int, v int) { r[i] = uint8(v) },
	},
	packDCBA: {
		kind: packDCBA,
		get:  func(r []byte, i int) float32 { return float32(r[i]) / 255 },
		set:  func(r []byte, i int, v float32) { r[i] = color.UnitToU8(v) },
		geti: func(r []byte, i int) int { return int(r[i]) },
		seti: func(r []byte, i int, v int) { r[i] = uint8(v) },
	},
	packDABC: {
		kind: packDABC,
		get:  func(r []byte, i int) float32 { return float32(r[dabcOrder[i]]) / 255 },
		set:  func(r []byte, i int, v float32) { r[dabcOrder[i]] = color.UnitToU8(v) },
		geti: func(r []byte, i int) int { return int(r[dabcOrder[i]]) },
		seti: func(r []byte, i int, v int) { r[dabcOrder[i]] = uint8(v) },
	},
}

// packerFor picks the accessors for a column once, at construction.
// Integer colour components are normalized to [0,1]; other integers are
// read as raw values.
func packerFor(c *Column) *packer {
	norm := c.contents == ContentsColor
	switch c.numericType {
	case Float32:
		return &packers[packFloat32]
	case Uint32:
		return &packers[packUint32]
	case Uint16:
		if norm {
			return &packers[packUint16Norm]
		}
		return &packers[packUint16]
	case Uint8:
		if norm {
			return &packers[packUint8Norm]
		}
		return &packers[packUint8]
	case PackedDCBA:
		return &packers[packDCBA]
	case PackedDABC:
		return &packers[packDABC]
	}
	panic("vgeom: unknown numeric type " + c.numericType.String())
}

func clampRound(v, hi float32) float32 {
	if !(v > 0) {
		return 0
	}
	if v >= hi {
		return hi
	}
	return math32.Round(v)
}

// defaultValues returns the value seen for components a column does not
// store: zero, except that points and colours read w or alpha as 1.
func (c *Column) defaultValues() [4]float32 {
	switch c.contents {
	case ContentsPoint, ContentsClipPoint, ContentsColor:
		return [4]float32{0, 0, 0, 1}
	}
	return [4]float32{}
}

// get4 reads up to four values from a full row, filling missing components
// with the column's defaults.
func (c *Column) get4(row []byte) [4]float32 {
	out := c.defaultValues()
	r := row[c.start:]
	n := min(c.numValues, 4)
	for i := 0; i < n; i++ {
		out[i] = c.pk.get(r, i)
	}
	return out
}

// set4 writes up to four values into a full row.
func (c *Column) set4(row []byte, v [4]float32) {
	r := row[c.start:]
	n := min(c.numValues, 4)
	for i := 0; i < n; i++ {
		c.pk.set(r, i, v[i])
	}
}

// setN writes values into a full row. Values beyond len(v) are set to the
// column defaults.
func (c *Column) setN(row []byte, v []float32) {
	r := row[c.start:]
	def := c.defaultValues()
	for i := 0; i < c.numValues; i++ {
		switch {
		case i < len(v):
			c.pk.set(r, i, v[i])
		case i < 4:
			c.pk.set(r, i, def[i])
		default:
			c.pk.set(r, i, 0)
		}
	}
}

func (c *Column) getN(row []byte, dst []float32) []float32 {
	r := row[c.start:]
	for i := 0; i < c.numValues; i++ {
		dst = append(dst, c.pk.get(r, i))
	}
	return dst
}

func (c *Column) geti(row []byte, i int) int {
	return c.pk.geti(row[c.start:], i)
}

func (c *Column) seti(row []byte, i, v int) {
	c.pk.seti(row[c.start:], i, v)
}
