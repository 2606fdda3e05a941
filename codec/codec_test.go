package codec

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/vgeom"
)

func newQuad(t *testing.T) *vgeom.Geom {
	t.Helper()
	d := vgeom.NewVertexData("quad", vgeom.FormatV3C4(), vgeom.UsageStatic)
	v := vgeom.NewVertexWriter(d, vgeom.NameVertex)
	c := vgeom.NewVertexWriter(d, vgeom.NameColor)
	for _, p := range [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}} {
		v.AddData3(p[0], p[1], p[2])
		c.AddData4([4]float32{p[0], p[1], 0.5, 1})
	}

	tris := vgeom.NewPrimitive(vgeom.Triangles)
	for _, i := range []int{0, 1, 2, 0, 2, 3} {
		tris.AddVertex(i)
	}
	require.NoError(t, tris.ClosePrimitive())
	strip := vgeom.NewPrimitive(vgeom.TriangleStrips)
	strip.SetShadeModel(vgeom.ShadeFlatLastVertex)
	strip.AddConsecutiveVertices(0, 4)
	require.NoError(t, strip.ClosePrimitive())
	strip.AddConsecutiveVertices(1, 3)
	require.NoError(t, strip.ClosePrimitive())

	g := vgeom.NewGeom(d)
	require.NoError(t, g.AddPrimitive(tris))
	require.NoError(t, g.AddPrimitive(strip))
	return g
}

func roundTrip(t *testing.T, objs []any, opts ...DecoderOption) []any {
	t.Helper()
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, o := range objs {
		require.NoError(t, enc.Encode(o))
	}
	dec := NewDecoder(&buf, opts...)
	out := make([]any, len(objs))
	for i := range objs {
		v, err := dec.Decode()
		require.NoError(t, err)
		out[i] = v
	}
	_, err := dec.Decode()
	require.ErrorIs(t, err, io.EOF)
	return out
}

func assertSamePrimitive(t *testing.T, want, got *vgeom.Primitive) {
	t.Helper()
	assert.Equal(t, want.Kind(), got.Kind())
	assert.Equal(t, want.ShadeModel(), got.ShadeModel())
	assert.Equal(t, want.IsIndexed(), got.IsIndexed())
	assert.Equal(t, want.VertexList(), got.VertexList())
	assert.Equal(t, want.Ends(), got.Ends())
	assert.Equal(t, want.NumPrimitives(), got.NumPrimitives())
}

func TestRoundTripGeom(t *testing.T) {
	g := newQuad(t)
	out := roundTrip(t, []any{g})[0].(*vgeom.Geom)

	d, od := g.VertexData(), out.VertexData()
	assert.Same(t, vgeom.FormatV3C4(), od.Format(), "decoded formats are interned")
	assert.Equal(t, d.Name(), od.Name())
	assert.Equal(t, d.UsageHint(), od.UsageHint())
	assert.Equal(t, d.NumRows(), od.NumRows())
	assert.Equal(t, d.Array(0).Bytes(), od.Array(0).Bytes())

	require.Equal(t, g.NumPrimitives(), out.NumPrimitives())
	for i := range g.NumPrimitives() {
		assertSamePrimitive(t, g.Primitive(i), out.Primitive(i))
	}
	assert.Equal(t, vgeom.ShadeFlatLastVertex, out.ShadeModel())
	assert.True(t, out.CheckValid())
}

func TestRoundTripKeepsSharing(t *testing.T) {
	a := newQuad(t)
	b := vgeom.NewGeom(a.VertexData())
	require.NoError(t, b.AddPrimitive(a.Primitive(1)))

	out := roundTrip(t, []any{a, b, a})
	oa, ob := out[0].(*vgeom.Geom), out[1].(*vgeom.Geom)
	assert.Same(t, oa, out[2], "an object encoded twice decodes to one pointer")
	assert.Same(t, oa.VertexData(), ob.VertexData())
	assert.Same(t, oa.Primitive(1), ob.Primitive(0))

	p := ob.ModifyPrimitive(0)
	p.AddConsecutiveVertices(0, 3)
	assert.NotSame(t, oa.Primitive(1), ob.Primitive(0), "shared primitives are copied before writing")
	assert.Equal(t, 2, oa.Primitive(1).NumPrimitives())
}

func TestRoundTripAnimationTables(t *testing.T) {
	smile := vgeom.MakeName("smile")
	f := vgeom.NewFormatWith(vgeom.CPUAnimation(),
		vgeom.NewArrayFormat(
			vgeom.ColumnSpec{Name: vgeom.NameVertex, NumComponents: 3, Type: vgeom.Float32, Contents: vgeom.ContentsPoint},
			vgeom.ColumnSpec{Name: vgeom.NameTransformBlend, NumComponents: 1, Type: vgeom.Uint16, Contents: vgeom.ContentsIndex},
		),
		vgeom.NewArrayFormat(
			vgeom.ColumnSpec{Name: vgeom.NameVertex.Morph(smile), NumComponents: 3, Type: vgeom.Float32, Contents: vgeom.ContentsMorphDelta},
		),
	)
	d := vgeom.NewVertexData("face", f, vgeom.UsageDynamic)

	move := vgeom.Identity4
	move[3] = 2
	t1 := vgeom.NewVertexTransform("jaw", move)
	t2 := vgeom.NewVertexTransform("head", vgeom.Identity4)
	d.SetTransformTable(vgeom.NewTransformTable(t1, t2))
	bt := d.ModifyTransformBlendTable()
	b0 := bt.AddBlend(vgeom.NewTransformBlend(vgeom.BlendEntry{Transform: t1, Weight: 1}))
	b1 := bt.AddBlend(vgeom.NewTransformBlend(
		vgeom.BlendEntry{Transform: t1, Weight: 0.5},
		vgeom.BlendEntry{Transform: t2, Weight: 0.5},
	))
	s := vgeom.NewVertexSlider(smile)
	s.SetValue(0.5)
	d.SetSliderTable(vgeom.NewSliderTable(s))

	v := vgeom.NewVertexWriter(d, vgeom.NameVertex)
	b := vgeom.NewVertexWriter(d, vgeom.NameTransformBlend)
	m := vgeom.NewVertexWriter(d, vgeom.NameVertex.Morph(smile))
	v.AddData3(0, 0, 0)
	b.AddData1i(b0)
	m.SetData3(0, 2, 0)
	v.AddData3(1, 1, 1)
	b.AddData1i(b1)
	m.SetData3(0, 0, 4)

	out := roundTrip(t, []any{d})[0].(*vgeom.VertexData)
	assert.Same(t, d.Format(), out.Format())

	ot := out.TransformTable()
	require.NotNil(t, ot)
	require.Equal(t, 2, ot.NumTransforms())
	assert.Equal(t, "jaw", ot.Transform(0).Name())
	assert.Equal(t, f32.Mat4(move), ot.Transform(0).Matrix())

	obt := out.TransformBlendTable()
	require.NotNil(t, obt)
	require.Equal(t, 2, obt.NumBlends())
	assert.Same(t, ot.Transform(0), obt.Blend(1).Entry(0).Transform, "transforms stay shared between tables")
	assert.Equal(t, float32(0.5), obt.Blend(1).Weight(ot.Transform(1)))

	ost := out.SliderTable()
	require.NotNil(t, ost)
	require.Equal(t, 1, ost.NumSliders())
	assert.Same(t, smile, ost.Slider(0).Name())
	assert.Equal(t, float32(0.5), ost.Slider(0).Value())

	want, got := d.Animate(), out.Animate()
	for r := range 2 {
		wr := vgeom.NewVertexReader(want, vgeom.NameVertex)
		gr := vgeom.NewVertexReader(got, vgeom.NameVertex)
		wr.SetRow(r)
		gr.SetRow(r)
		assert.Equal(t, wr.GetData3(), gr.GetData3(), "row %d", r)
	}
}

func TestRoundTripPatchesAndNonindexed(t *testing.T) {
	p := vgeom.NewPatches(4)
	p.AddConsecutiveVertices(10, 8)
	require.NoError(t, p.ClosePrimitive())

	out := roundTrip(t, []any{p})[0].(*vgeom.Primitive)
	assert.Equal(t, 4, out.VerticesPerPrimitive())
	assert.False(t, out.IsIndexed())
	assertSamePrimitive(t, p, out)

	idx := vgeom.NewPrimitive(vgeom.Lines)
	idx.AddConsecutiveVertices(0, 2)
	idx.MakeIndexed()
	assert.True(t, roundTrip(t, []any{idx})[0].(*vgeom.Primitive).IsIndexed(), "indexed storage is kept")
}

func TestDecodeIntoSeparateTables(t *testing.T) {
	names := vgeom.NewNameTable()
	reg := vgeom.NewFormatRegistry()
	out := roundTrip(t, []any{vgeom.FormatV3N3()}, WithNames(names), WithRegistry(reg))[0].(*vgeom.Format)

	assert.True(t, out.IsRegistered())
	assert.NotSame(t, vgeom.FormatV3N3(), out)
	assert.Equal(t, 1, reg.Len())
	_, col := out.Column(names.Make("normal"))
	require.NotNil(t, col)
	assert.Equal(t, vgeom.ContentsVector, col.Contents())
	assert.False(t, out.HasColumn(vgeom.NameNormal), "names come from the given table")
}

func TestRoundTripNames(t *testing.T) {
	n := vgeom.MakeName("texcoord.lightmap")
	out := roundTrip(t, []any{n, vgeom.DefaultNames().Root()})
	assert.Same(t, n, out[0])
	assert.Same(t, vgeom.DefaultNames().Root(), out[1])
}

func TestEncodeUnsupported(t *testing.T) {
	enc := NewEncoder(io.Discard)
	assert.ErrorIs(t, enc.Encode(42), ErrUnsupportedType)
	var g *vgeom.Geom
	assert.ErrorIs(t, enc.Encode(g), ErrUnsupportedType)
}

func TestDecodeErrors(t *testing.T) {
	var good bytes.Buffer
	require.NoError(t, NewEncoder(&good).Encode(newQuad(t)))
	stream := good.Bytes()

	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"empty", nil, io.EOF},
		{"short header", []byte("VG"), ErrBadMagic},
		{"bad magic", []byte("NOPE\x01\x00"), ErrBadMagic},
		{"newer version", []byte("VGEO\x09\x00"), ErrUnsupportedVersion},
		{"truncated", stream[:len(stream)-3], ErrCorrupt},
		{"unknown tag", []byte("VGEO\x01\x00\x7f\x01\x00"), ErrCorrupt},
		{"dangling root", []byte("VGEO\x01\x00\x09\x00\x01\x05"), ErrCorrupt},
		{"reference of wrong type", []byte("VGEO\x01\x00\x01\x01\x01\x00\x03\x02\x05\x00\x00\x00\x01\x01\x09\x00\x01\x02"), ErrCorrupt},
		{"truncated record body", []byte("VGEO\x01\x00\x03\x02\x01\x01\x09\x00\x01\x02"), ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(bytes.NewReader(tt.in)).Decode()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeHeaderOnly(t *testing.T) {
	_, err := NewDecoder(strings.NewReader("VGEO\x01\x00")).Decode()
	assert.ErrorIs(t, err, io.EOF)
}
