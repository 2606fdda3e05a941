package vgeom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterAppendsRows(t *testing.T) {
	d := NewVertexData(t.Name(), FormatV3T2(), UsageStatic)
	w := NewVertexWriter(d, NameTexcoord)
	require.True(t, w.HasColumn())
	for i := range 5 {
		w.AddData2(float32(i), float32(-i))
	}
	assert.Equal(t, 5, d.NumRows())
	assert.True(t, w.IsAtEnd())

	r := NewVertexReader(d, NameTexcoord)
	assert.Equal(t, 5, r.NumRows())
	for i := range 5 {
		assert.Equal(t, [2]float32{float32(i), float32(-i)}, r.GetData2())
	}
	assert.True(t, r.IsAtEnd())
	assert.Equal(t, 5, r.Row())
}

func TestWriterKeepsWritingAfterSnapshot(t *testing.T) {
	d := newPoints(t, [3]float32{1, 2, 3}, [3]float32{4, 5, 6})
	w := NewVertexWriter(d, NameVertex)
	w.SetData3(7, 7, 7)

	snap := d.Array(0)
	d.SetUsageHint(UsageDynamic)
	w.SetData3(8, 8, 8)

	assert.Equal(t, [][3]float32{{7, 7, 7}, {8, 8, 8}}, readAll3(d, NameVertex))
	r := NewArrayReader(snap, NameVertex)
	r.SetRow(1)
	assert.Equal(t, [3]float32{4, 5, 6}, r.GetData3(), "snapshot untouched")
}

func TestWriterSetDoesNotGrow(t *testing.T) {
	d := NewVertexData(t.Name(), FormatV3(), UsageStatic)
	d.SetNumRows(1)
	w := NewVertexWriter(d, NameVertex)
	w.SetData3(1, 2, 3)
	w.SetData3(4, 5, 6)
	assert.Equal(t, 1, d.NumRows())
	assert.Equal(t, [][3]float32{{1, 2, 3}}, readAll3(d, NameVertex))
}

func TestCursorsMissingColumn(t *testing.T) {
	d := newPoints(t, [3]float32{1, 2, 3})
	r := NewVertexReader(d, NameNormal)
	assert.False(t, r.HasColumn())
	assert.Nil(t, r.Column())
	assert.Zero(t, r.NumRows())
	assert.Equal(t, [4]float32{}, r.GetData4())
	assert.Empty(t, r.GetDataN(nil))

	before := d.Modified()
	w := NewVertexWriter(d, NameNormal)
	assert.False(t, w.HasColumn())
	w.AddData3(1, 1, 1)
	assert.Equal(t, 1, d.NumRows())
	assert.Equal(t, before, d.Modified(), "writes to a missing column are dropped")
}

func TestReaderPastEnd(t *testing.T) {
	d := newPoints(t, [3]float32{1, 2, 3})
	r := NewVertexReader(d, NameVertex)
	r.GetData3()
	assert.Equal(t, [3]float32{}, r.GetData3())
}

func TestReaderDefaults(t *testing.T) {
	d := newPoints(t, [3]float32{1, 2, 3})
	r := NewVertexReader(d, NameVertex)
	assert.Equal(t, [4]float32{1, 2, 3, 1}, r.GetData4(), "w of a point defaults to 1")
	r.SetRow(0)
	assert.Equal(t, float32(1), r.GetData1())
	r.SetRow(0)
	assert.Equal(t, []float32{1, 2, 3}, r.GetDataN(nil))
}

func TestIntegerColumns(t *testing.T) {
	f := NewFormat(NewArrayFormat(
		specVertex,
		ColumnSpec{NameIndex, 1, Uint16, ContentsIndex},
	))
	d := NewVertexData(t.Name(), f, UsageStatic)
	w := NewVertexWriter(d, NameIndex)
	w.AddData1i(7)
	w.AddData1i(65535)
	w.AddData1(70000)

	r := NewVertexReader(d, NameIndex)
	assert.Equal(t, 7, r.GetData1i())
	assert.Equal(t, 65535, r.GetData1i())
	assert.Equal(t, 65535, r.GetData1i(), "float writes clamp to the column range")
}

func TestRewriterReadsInPlace(t *testing.T) {
	d := newPoints(t, [3]float32{1, 2, 3}, [3]float32{4, 5, 6})
	cp := d.Copy()
	rw := NewVertexRewriter(cp, NameVertex)
	for !rw.IsAtEnd() {
		v := rw.GetData4()
		assert.Equal(t, v, rw.GetData4(), "reading does not advance")
		rw.SetData3(v[0]*2, v[1]*2, v[2]*2)
	}
	assert.Equal(t, [][3]float32{{2, 4, 6}, {8, 10, 12}}, readAll3(cp, NameVertex))
	assert.Equal(t, [][3]float32{{1, 2, 3}, {4, 5, 6}}, readAll3(d, NameVertex))
	assert.Zero(t, rw.GetData1i(), "past the end")
}

func TestArrayReader(t *testing.T) {
	d := newPoints(t, [3]float32{1, 2, 3})
	r := NewArrayReader(d.Array(0), NameColor)
	require.True(t, r.HasColumn())
	assert.Equal(t, [4]float32{1, 0, 0, 1}, r.GetData4())
	assert.False(t, NewArrayReader(d.Array(0), NameNormal).HasColumn())
}
