package vgeom

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/vgeom/internal/color"
	"github.com/gogpu/vgeom/internal/cow"
)

// ConvertTo returns the table converted to format. It returns d itself when
// the format is unchanged.
//
// Destination arrays whose columns all exist byte for byte in a source array
// share that array's storage. The remaining arrays are filled column by
// column, matched by name, converting between numeric types as needed;
// columns with no source are zero (colours white). If format asks for
// hardware animation and d is animated on the CPU, the blend palette is
// turned into per-vertex weight (and index) columns.
func (d *VertexData) ConvertTo(format *Format) (*VertexData, error) {
	format = d.opts.registry.Register(format)
	src := d.cdata()
	if format == src.format {
		return d, nil
	}
	rows := src.numRows()

	dst := &vertexDataCData{
		format:         format,
		usage:          src.usage,
		arrays:         make([]*VertexArray, format.NumArrays()),
		transformTable: src.transformTable,
		blendTable:     src.blendTable,
		sliderTable:    src.sliderTable,
		modified:       NextUpdateSeq(),
	}
	dst.shareTables()

	// Arrays that can read the source bytes as they are.
	var pending []int
	for j := range dst.arrays {
		af := format.Array(j)
		if shared := shareableArray(af, src.arrays); shared != nil {
			dst.arrays[j] = shared
			continue
		}
		na := NewVertexArray(af, src.usage)
		na.SetNumRows(rows)
		dst.arrays[j] = na
		pending = append(pending, j)
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, j := range pending {
		g.Go(func() error {
			return fillArray(dst.arrays[j], src, rows)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if format.Animation().Type == AnimationHardware && src.format.Animation().Type == AnimationCPU {
		if err := remapHardwareAnimation(dst, src, rows); err != nil {
			return nil, err
		}
	}

	Logger().Debug("vgeom: vertex data converted",
		"name", d.name, "rows", rows, "arrays", len(dst.arrays), "copied", len(pending))
	return newVertexDataFrom(d.name, d.opts, dst), nil
}

// shareableArray returns an array with layout af over the bytes of a source
// array whose columns include all of af's at the same offsets, or nil.
func shareableArray(af *ArrayFormat, srcs []*VertexArray) *VertexArray {
	for _, s := range srcs {
		if s.format == af {
			return cow.Share(s)
		}
	}
	for _, s := range srcs {
		if af.NumColumns() > 0 && af.IsDataSubsetOf(s.format) {
			s.MarkShared()
			view := &VertexArray{format: af, usage: s.usage, data: s.data, modified: s.modified}
			view.MarkShared()
			return view
		}
	}
	return nil
}

// fillArray converts every column of a fresh destination array from src.
func fillArray(dst *VertexArray, src *vertexDataCData, rows int) error {
	af := dst.format
	for _, dc := range af.Columns() {
		si, sc := src.format.Column(dc.name)
		if sc == nil {
			if dc.contents == ContentsColor {
				for r := 0; r < rows; r++ {
					dc.set4(dst.data[r*af.stride:], [4]float32{1, 1, 1, 1})
				}
			}
			continue
		}
		if !convertible(sc, dc) {
			return fmt.Errorf("%w: %s to %s", ErrNoConversion, sc, dc)
		}
		sa := src.arrays[si]
		copyColumnRows(dst.data, af.stride, dc, sa.data, sa.format.stride, sc, rows)
	}
	return nil
}

// convertible reports whether values of src can be written to dst. Packed
// colours only convert to and from colour columns.
func convertible(src, dst *Column) bool {
	if src.IsPackedColor() && dst.contents != ContentsColor {
		return false
	}
	if dst.IsPackedColor() && src.contents != ContentsColor {
		return false
	}
	return true
}

// copyColumnRows copies n rows of column sc in src into column dc in dst.
// Both slices start at row 0 of their arrays.
//
// Strategies, in order: a raw byte copy when both columns store the same
// shape (one copy for the whole run when both arrays hold nothing else), a
// byte swizzle between the two colour orders, and a per-value conversion
// through float32 that fills missing values with the column defaults.
func copyColumnRows(dst []byte, dstStride int, dc *Column, src []byte, srcStride int, sc *Column, n int) {
	if n <= 0 {
		return
	}
	if dc.IsBytewiseEquivalent(sc) && dc.pk.kind == sc.pk.kind {
		size := dc.totalBytes
		if dstStride == size && srcStride == size {
			copy(dst[:n*size], src[:n*size])
			return
		}
		for r := 0; r < n; r++ {
			copy(dst[r*dstStride+dc.start:r*dstStride+dc.start+size], src[r*srcStride+sc.start:])
		}
		return
	}
	if o1, o2, ok := colorOrders(sc, dc); ok {
		for r := 0; r < n; r++ {
			s := src[r*srcStride+sc.start:]
			d := dst[r*dstStride+dc.start:]
			if o1 == o2 {
				copy(d[:4], s[:4])
			} else {
				color.Swizzle(d, s, 1)
			}
		}
		return
	}

	var buf []float32
	for r := 0; r < n; r++ {
		buf = sc.getN(src[r*srcStride:], buf[:0])
		if len(buf) < 4 {
			def := sc.defaultValues()
			for i := len(buf); i < 4; i++ {
				buf = append(buf, def[i])
			}
		}
		dc.setN(dst[r*dstStride:], buf)
	}
}

// colorOrders reports the byte orders of two 4-byte colour columns, for the
// packed and 4 x uint8 colour combinations that are pure byte moves.
func colorOrders(sc, dc *Column) (color.Order, color.Order, bool) {
	o1, ok1 := byteColorOrder(sc)
	o2, ok2 := byteColorOrder(dc)
	return o1, o2, ok1 && ok2
}

func byteColorOrder(c *Column) (color.Order, bool) {
	switch {
	case c.numericType == PackedDCBA:
		return color.OrderDCBA, true
	case c.numericType == PackedDABC:
		return color.OrderDABC, true
	case c.numericType == Uint8 && c.numComponents == 4 && c.contents == ContentsColor:
		return color.OrderDCBA, true
	}
	return 0, false
}

// remapHardwareAnimation writes transform_weight (and transform_index)
// columns of dst from src's blend palette and per-vertex blend indices.
func remapHardwareAnimation(dst, src *vertexDataCData, rows int) error {
	bt := src.blendTable
	bi, bCol := src.format.Column(NameTransformBlend)
	wi, wCol := dst.format.Column(NameTransformWeight)
	if bt == nil || bCol == nil || wCol == nil {
		return nil
	}
	anim := dst.format.Animation()
	ii, iCol := dst.format.Column(NameTransformIndex)
	indexed := anim.Indexed && iCol != nil

	table := NewTransformTable()
	if !indexed {
		for b := 0; b < bt.NumBlends(); b++ {
			blend := bt.Blend(b)
			for k := 0; k < blend.NumTransforms(); k++ {
				if t := blend.Entry(k).Transform; table.Index(t) < 0 {
					table.AddTransform(t)
				}
			}
		}
		if table.NumTransforms() > wCol.numValues {
			return fmt.Errorf("vgeom: %d distinct transforms do not fit %d weight slots",
				table.NumTransforms(), wCol.numValues)
		}
	}

	barr := src.arrays[bi]
	warr := cow.Unique(dst.arrays[wi])
	dst.arrays[wi] = warr
	var iarr *VertexArray
	if indexed {
		iarr = cow.Unique(dst.arrays[ii])
		dst.arrays[ii] = iarr
	}
	weights := make([]float32, wCol.numValues)
	for r := 0; r < rows; r++ {
		idx := bCol.geti(barr.Row(r), 0)
		if idx < 0 || idx >= bt.NumBlends() {
			violation("row %d refers to blend %d of %d", r, idx, bt.NumBlends())
			continue
		}
		blend := bt.Blend(idx)
		clear(weights)
		wrow := warr.data[r*warr.format.stride:]
		if indexed {
			irow := iarr.data[r*iarr.format.stride:]
			for k := 0; k < blend.NumTransforms() && k < len(weights); k++ {
				e := blend.Entry(k)
				ti := table.Index(e.Transform)
				if ti < 0 {
					ti = table.AddTransform(e.Transform)
				}
				iCol.seti(irow, k, ti)
				weights[k] = e.Weight
			}
		} else {
			for k := 0; k < table.NumTransforms(); k++ {
				weights[k] = blend.Weight(table.Transform(k))
			}
		}
		wCol.setN(wrow, weights)
	}
	table.MarkShared()
	dst.transformTable = table
	dst.blendTable = nil
	return nil
}
