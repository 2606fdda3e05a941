package vgeom

import (
	"golang.org/x/image/math/f32"
)

// colorShape returns the shape of d's colour column, or 4 x uint8 if it has
// none.
func (d *VertexData) colorShape() (int, NumericType, Contents) {
	if _, c := d.Format().Column(NameColor); c != nil {
		return c.numComponents, c.numericType, c.contents
	}
	return 4, Uint8, ContentsColor
}

// ScaleColor returns a copy whose colours are multiplied by scale. The colour
// column moves to its own array; the other arrays are shared with d. Data
// without a colour column is returned as is.
func (d *VertexData) ScaleColor(scale f32.Vec4) *VertexData {
	return d.ScaleColorOffset(scale, f32.Vec4{})
}

// ScaleColorOffset returns a copy whose colours are color*scale + offset.
func (d *VertexData) ScaleColorOffset(scale, offset f32.Vec4) *VertexData {
	if !d.HasColumn(NameColor) {
		return d
	}
	out := d.Copy()
	n, nt, contents := d.colorShape()
	out.ReplaceColumn(NameColor, n, nt, contents)

	r := NewVertexReader(d, NameColor)
	w := NewVertexWriter(out, NameColor)
	for !r.IsAtEnd() {
		c := r.GetData4()
		w.SetData4([4]float32{
			c[0]*scale[0] + offset[0],
			c[1]*scale[1] + offset[1],
			c[2]*scale[2] + offset[2],
			c[3]*scale[3] + offset[3],
		})
	}
	return out
}

// SetColor returns a copy in which every vertex has colour c. The colour
// column, added if missing, lives in its own array.
func (d *VertexData) SetColor(c f32.Vec4) *VertexData {
	out := d.Copy()
	n, nt, contents := d.colorShape()
	out.ReplaceColumn(NameColor, n, nt, contents)

	w := NewVertexWriter(out, NameColor)
	for !w.IsAtEnd() {
		w.SetData4([4]float32(c))
	}
	return out
}

// ReverseNormals returns a copy with every normal negated.
func (d *VertexData) ReverseNormals() *VertexData {
	if !d.HasColumn(NameNormal) {
		return d
	}
	out := d.Copy()
	rw := NewVertexRewriter(out, NameNormal)
	var buf []float32
	for !rw.IsAtEnd() {
		buf = rw.GetDataN(buf[:0])
		for i := range buf {
			buf[i] = -buf[i]
		}
		rw.SetDataN(buf...)
	}
	return out
}
