package backend

import (
	"slices"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/vgeom"
)

// newStripGeom builds seven packed-colour rows drawn by one indexed triangle
// list and one two-run triangle strip.
func newStripGeom(t testing.TB) *vgeom.Geom {
	t.Helper()
	d := vgeom.NewVertexData(t.Name(), vgeom.FormatV3CP(), vgeom.UsageStatic)
	v := vgeom.NewVertexWriter(d, vgeom.NameVertex)
	c := vgeom.NewVertexWriter(d, vgeom.NameColor)
	for i := range 7 {
		v.AddData3(float32(i), 0, 0)
		c.AddData4([4]float32{1, 0, 0, 1})
	}

	tris := vgeom.NewPrimitive(vgeom.Triangles)
	for _, i := range []int{0, 1, 2, 2, 1, 3} {
		tris.AddVertex(i)
	}
	require.NoError(t, tris.ClosePrimitive())

	strip := vgeom.NewPrimitive(vgeom.TriangleStrips)
	strip.AddConsecutiveVertices(0, 4)
	require.NoError(t, strip.ClosePrimitive())
	strip.AddConsecutiveVertices(4, 3)
	require.NoError(t, strip.ClosePrimitive())

	g := vgeom.NewGeom(d)
	require.NoError(t, g.AddPrimitive(tris))
	require.NoError(t, g.AddPrimitive(strip))
	return g
}

func TestSoftwareBackendName(t *testing.T) {
	b := NewSoftwareBackend()
	assert.Equal(t, "software", b.Name())
}

func TestSoftwareBackendInit(t *testing.T) {
	b := NewSoftwareBackend()
	assert.Nil(t, b.Munger(), "no munger before Init")
	require.NoError(t, b.Init())
	defer b.Close()

	assert.Same(t, b.Munger(), vgeom.RegisterMunger(NewSoftwareMunger(nil)),
		"equal software mungers share the registered instance")
}

func TestSoftwareBackendDrawBeforeInit(t *testing.T) {
	b := NewSoftwareBackend()
	var rec Recorder
	_, err := b.DrawGeom(newStripGeom(t), &rec)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestSoftwareBackendDrawGeom(t *testing.T) {
	b := NewSoftwareBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	g := newStripGeom(t)
	var rec Recorder
	drawn, err := b.DrawGeom(g, &rec)
	require.NoError(t, err)
	require.True(t, drawn)
	require.Len(t, rec.Geoms, 1)
	assert.True(t, rec.Geoms[0].Ended)

	state := rec.Geoms[0].State
	assert.Equal(t, 7, state.NumVertices())
	_, col := state.Data.Format().Column(vgeom.NameColor)
	require.NotNil(t, col)
	assert.Equal(t, vgeom.Float32, col.NumericType(), "packed colours are widened to floats")
	assert.Equal(t, 4, col.NumComponents())
	r := vgeom.NewVertexReader(state.Data, vgeom.NameColor)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, r.GetData4())

	calls := rec.Geoms[0].Calls
	require.Len(t, calls, 2, "the strip is decomposed into one triangle list")
	for _, c := range calls {
		assert.Equal(t, gputypes.PrimitiveTopologyTriangleList, c.Topology)
		assert.Equal(t, vgeom.Triangles, c.Primitive.Kind())
		assert.Nil(t, c.IndexBuffer)
	}
	assert.Equal(t, 6, calls[0].Count)
	assert.Equal(t, 9, calls[1].Count, "2 + 1 triangles from the two runs")

	assert.Equal(t, vgeom.TriangleStrips, g.Primitive(1).Kind(), "the source geom is untouched")
}

func TestSoftwareBackendReusesMungeCache(t *testing.T) {
	b := NewSoftwareBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	g := newStripGeom(t)
	var rec Recorder
	for range 2 {
		_, err := b.DrawGeom(g, &rec)
		require.NoError(t, err)
	}
	require.Len(t, rec.Geoms, 2)
	assert.Same(t, rec.Geoms[0].State.Data, rec.Geoms[1].State.Data)

	w := vgeom.NewVertexWriter(g.ModifyVertexData(), vgeom.NameVertex)
	w.SetData3(9, 9, 9)
	_, err := b.DrawGeom(g, &rec)
	require.NoError(t, err)
	assert.NotSame(t, rec.Geoms[1].State.Data, rec.Geoms[2].State.Data, "modified data is munged again")
}

func TestSoftwareBackendSkipsInvalidGeom(t *testing.T) {
	b := NewSoftwareBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	g := newStripGeom(t)
	p := g.ModifyPrimitive(0)
	p.AddConsecutiveVertices(20, 3)
	require.NoError(t, p.ClosePrimitive())
	require.False(t, g.CheckValid())

	var rec Recorder
	drawn, err := b.DrawGeom(g, &rec)
	require.NoError(t, err)
	assert.False(t, drawn)
	assert.Empty(t, rec.Geoms)
}

func TestSoftwareBackendRejectingSink(t *testing.T) {
	b := NewSoftwareBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	rec := Recorder{Reject: true}
	drawn, err := b.DrawGeom(newStripGeom(t), &rec)
	require.NoError(t, err)
	assert.False(t, drawn)
	assert.Empty(t, rec.Calls())
}

func TestSoftwareBackendAnimates(t *testing.T) {
	f := vgeom.NewFormatWith(vgeom.CPUAnimation(), vgeom.NewArrayFormat(
		vgeom.ColumnSpec{Name: vgeom.NameVertex, NumComponents: 3, Type: vgeom.Float32, Contents: vgeom.ContentsPoint},
		vgeom.ColumnSpec{Name: vgeom.NameTransformBlend, NumComponents: 1, Type: vgeom.Uint16, Contents: vgeom.ContentsIndex},
	))
	d := vgeom.NewVertexData(t.Name(), f, vgeom.UsageDynamic)
	move := vgeom.Identity4
	move[3] = 5
	bt := d.ModifyTransformBlendTable()
	joint := vgeom.NewVertexTransform("move", move)
	b0 := bt.AddBlend(vgeom.NewTransformBlend(vgeom.BlendEntry{Transform: joint, Weight: 1}))
	v := vgeom.NewVertexWriter(d, vgeom.NameVertex)
	bw := vgeom.NewVertexWriter(d, vgeom.NameTransformBlend)
	for i := range 3 {
		v.AddData3(float32(i), 0, 0)
		bw.AddData1i(b0)
	}
	p := vgeom.NewPrimitive(vgeom.Triangles)
	p.AddConsecutiveVertices(0, 3)
	require.NoError(t, p.ClosePrimitive())
	g := vgeom.NewGeom(d)
	require.NoError(t, g.AddPrimitive(p))

	b := NewSoftwareBackend()
	require.NoError(t, b.Init())
	defer b.Close()
	var rec Recorder
	_, err := b.DrawGeom(g, &rec)
	require.NoError(t, err)

	out := rec.Geoms[0].State.Data
	assert.False(t, out.HasColumn(vgeom.NameTransformBlend))
	r := vgeom.NewVertexReader(out, vgeom.NameVertex)
	assert.Equal(t, [3]float32{5, 0, 0}, r.GetData3())

	move[3] = 100
	joint.SetMatrix(move)
	_, err = b.DrawGeom(g, &rec)
	require.NoError(t, err)
	require.Len(t, rec.Geoms, 2)
	r = vgeom.NewVertexReader(rec.Geoms[1].State.Data, vgeom.NameVertex)
	assert.Equal(t, [3]float32{100, 0, 0}, r.GetData3(), "the next frame follows the joint")
}

func TestDrawPrimitivesRuns(t *testing.T) {
	strip := vgeom.NewPrimitive(vgeom.TriangleStrips)
	strip.AddConsecutiveVertices(0, 4)
	require.NoError(t, strip.ClosePrimitive())
	strip.AddConsecutiveVertices(4, 3)
	require.NoError(t, strip.ClosePrimitive())

	patches := vgeom.NewPatches(3)
	patches.AddConsecutiveVertices(0, 3)
	require.NoError(t, patches.ClosePrimitive())

	lines := vgeom.NewPrimitive(vgeom.Lines)
	lines.AddConsecutiveVertices(2, 4)
	require.NoError(t, lines.ClosePrimitive())

	var rec Recorder
	require.True(t, rec.BeginDrawPrimitives(&DrawState{}))
	n, err := DrawPrimitives(&rec, []*vgeom.Primitive{strip, patches, vgeom.NewPrimitive(vgeom.Points), lines}, nil)
	rec.EndDrawPrimitives()
	require.NoError(t, err)
	assert.Equal(t, 3, n, "patches and empty primitives are skipped")

	calls := rec.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, gputypes.PrimitiveTopologyTriangleStrip, calls[0].Topology)
	assert.Equal(t, [2]int{0, 4}, [2]int{calls[0].First, calls[0].Count})
	assert.Equal(t, [2]int{4, 3}, [2]int{calls[1].First, calls[1].Count})
	assert.Equal(t, gputypes.PrimitiveTopologyLineList, calls[2].Topology)
	assert.False(t, calls[2].Indexed)
	assert.Equal(t, [2]int{2, 4}, [2]int{calls[2].First, calls[2].Count}, "non-indexed draws start at the first vertex")
}

func TestRecorderDrawWithoutBegin(t *testing.T) {
	var rec Recorder
	assert.ErrorIs(t, rec.Draw(DrawCall{}), ErrNotInitialized)
	rec.EndDrawPrimitives()
	rec.Reset()
	assert.Empty(t, rec.Geoms)
}

func TestSoftwareMungerCompare(t *testing.T) {
	a := NewSoftwareMunger(nil)
	assert.Zero(t, a.Compare(NewSoftwareMunger(vgeom.DefaultRegistry())))
	assert.NotZero(t, a.Compare(NewSoftwareMunger(vgeom.NewFormatRegistry())))
	assert.NotZero(t, CompareMungerTypes(a, otherMunger{}))
}

type otherMunger struct{ vgeom.Munger }

func TestRegistryRegisterAndGet(t *testing.T) {
	// Software backend is auto-registered via init()
	require.True(t, IsRegistered("software"))

	b := Get("software")
	require.NotNil(t, b)
	assert.Equal(t, "software", b.Name())
}

func TestRegistryGetUnregistered(t *testing.T) {
	assert.Nil(t, Get("nonexistent"))
}

func TestRegistryAvailable(t *testing.T) {
	available := Available()
	assert.Contains(t, available, "software")
	assert.True(t, slices.IsSorted(available))
}

func TestRegistryDefault(t *testing.T) {
	b := Default()
	require.NotNil(t, b)
	// Software is the default when no GPU backend is registered.
	assert.Equal(t, "software", b.Name())
}

func TestRegistryMustDefault(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.NotNil(t, MustDefault())
	})
}

func TestRegistryInitDefault(t *testing.T) {
	Register(BackendWebGPU, func() Backend { return brokenBackend{} })
	defer Unregister(BackendWebGPU)

	b, err := InitDefault()
	require.NoError(t, err)
	require.NotNil(t, b)
	defer b.Close()
	assert.Equal(t, "software", b.Name(), "a failing GPU backend falls through to software")
	assert.NotNil(t, b.Munger(), "the returned backend is initialized")
}

func TestRegistryInitDefaultNoneWorks(t *testing.T) {
	saved := backends
	backends = map[string]BackendFactory{"broken": func() Backend { return brokenBackend{} }}
	defer func() { backends = saved }()

	_, err := InitDefault()
	assert.ErrorIs(t, err, ErrBackendNotAvailable)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

type brokenBackend struct{ Backend }

func (brokenBackend) Name() string { return "broken" }
func (brokenBackend) Init() error  { return ErrNotInitialized }

func TestRegistryUnregister(t *testing.T) {
	Register("test-backend", func() Backend { return &SoftwareBackend{} })
	assert.True(t, IsRegistered("test-backend"))

	Unregister("test-backend")
	assert.False(t, IsRegistered("test-backend"))
}

func TestRegistryIsRegistered(t *testing.T) {
	assert.True(t, IsRegistered("software"))
	assert.False(t, IsRegistered("nonexistent"))
}

// Benchmark tests

func BenchmarkSoftwareBackendDrawGeom(b *testing.B) {
	backend := NewSoftwareBackend()
	_ = backend.Init()
	defer backend.Close()

	g := newStripGeom(b)
	var rec Recorder

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec.Reset()
		_, _ = backend.DrawGeom(g, &rec)
	}
}
