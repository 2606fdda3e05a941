package vgeom

import (
	"golang.org/x/image/math/f32"
)

// Animate returns the table with CPU vertex animation applied: morph
// targets scaled by their sliders first, then each vertex moved by the
// weighted blend of its transforms. The result is in the format's
// PostAnimatedFormat.
//
// The result is cached and recomputed only after the table, its palettes,
// or any transform or slider they reference has changed. Data that is not
// CPU-animated is returned as is.
func (d *VertexData) Animate() *VertexData {
	c := d.cdata()
	if c.format.Animation().Type != AnimationCPU || (c.blendTable == nil && c.sliderTable == nil) {
		return d
	}
	seq := c.modifiedSeq()

	d.animMu.Lock()
	defer d.animMu.Unlock()
	if d.animated != nil && d.animatedSeq == seq {
		return d.animated
	}

	out, err := d.ConvertTo(c.format.PostAnimatedFormat())
	if err != nil {
		violation("animate %s: %v", d.name, err)
		return d
	}
	if out == d {
		out = d.Copy()
	}
	if c.sliderTable != nil {
		applyMorphs(out, c)
	}
	if c.blendTable != nil {
		applyBlends(out, c)
	}
	d.animated = out
	d.animatedSeq = seq
	Logger().Debug("vgeom: vertex data animated", "name", d.name, "rows", c.numRows())
	return out
}

// applyMorphs adds each morph delta of src, weighted by its sliders, to the
// base column in out. A delta applied to a point with a w coordinate is
// scaled by w.
func applyMorphs(out *VertexData, src *vertexDataCData) {
	rows := src.numRows()
	for _, m := range src.format.Morphs() {
		var weight float32
		for _, s := range src.sliderTable.Find(m.Slider) {
			weight += s.Value()
		}
		if weight == 0 {
			continue
		}
		di, dCol := src.format.Column(m.Delta)
		if dCol == nil {
			continue
		}
		rw := NewVertexRewriter(out, m.Base)
		if !rw.HasColumn() {
			continue
		}
		homogeneous := rw.Column().HasHomogeneousCoord()
		darr := src.arrays[di]
		for r := 0; r < rows; r++ {
			base := rw.GetData4()
			delta := dCol.get4(darr.Row(r))
			scale := weight
			if homogeneous {
				scale *= base[3]
			}
			for i := 0; i < 3; i++ {
				base[i] += delta[i] * scale
			}
			rw.SetData4(base)
		}
	}
}

// applyBlends moves every point and vector column of out by the blend each
// vertex's transform_blend index selects.
func applyBlends(out *VertexData, src *vertexDataCData) {
	bi, bCol := src.format.Column(NameTransformBlend)
	if bCol == nil {
		return
	}
	bt := src.blendTable
	matrices := make([]f32.Mat4, bt.NumBlends())
	for i := range matrices {
		matrices[i] = bt.Blend(i).Matrix()
	}
	barr := src.arrays[bi]
	rows := src.numRows()

	post := out.Format()
	move := func(name *Name, vector bool) {
		rw := NewVertexRewriter(out, name)
		for r := 0; r < rows; r++ {
			idx := bCol.geti(barr.Row(r), 0)
			if idx < 0 || idx >= len(matrices) {
				rw.SetRow(r + 1)
				continue
			}
			v := rw.GetData4()
			if vector {
				v = xformVector(&matrices[idx], v)
			} else {
				v = xformPoint(&matrices[idx], v)
			}
			rw.SetData4(v)
		}
	}
	for _, p := range post.Points() {
		move(p, false)
	}
	for _, v := range post.Vectors() {
		move(v, true)
	}
}
