package vgeom

import (
	"cmp"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/vgeom/cache"
	"github.com/gogpu/vgeom/pipeline"
)

// countingMunger converts to packed colours and counts the conversions.
type countingMunger struct {
	id     int
	calls  atomic.Int32
	failOn error
}

func (m *countingMunger) MungeFormat(f *Format) *Format { return FormatV3CP() }

func (m *countingMunger) MungeData(d *VertexData) (*VertexData, error) {
	m.calls.Add(1)
	if m.failOn != nil {
		return nil, m.failOn
	}
	return d.ConvertTo(m.MungeFormat(d.Format()))
}

func (m *countingMunger) MungeGeom(g *Geom, d *VertexData) (*Geom, *VertexData) {
	return g, d
}

func (m *countingMunger) Compare(other Munger) int {
	o, ok := other.(*countingMunger)
	if !ok {
		return -1
	}
	return cmp.Compare(m.id, o.id)
}

// newTriangleGeom builds a one-triangle geom with positions and colours.
func newTriangleGeom(t *testing.T, mgr *cache.Manager) (*Geom, *VertexData) {
	t.Helper()
	opts := []Option{WithPipeline(pipeline.New(t.Name(), 1)), WithCacheManager(mgr)}

	d := NewVertexData("triangle", FormatV3C4(), UsageStatic, opts...)
	vw := NewVertexWriter(d, NameVertex)
	cw := NewVertexWriter(d, NameColor)
	for _, v := range [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}} {
		vw.AddData3(v[0], v[1], v[2])
		cw.AddData4([4]float32{1, 0, 0, 1})
	}
	require.Equal(t, 3, d.NumRows())

	p := NewPrimitive(Triangles, opts...)
	p.AddConsecutiveVertices(0, 3)
	require.NoError(t, p.ClosePrimitive())

	g := NewGeom(d, opts...)
	require.NoError(t, g.AddPrimitive(p))
	return g, d
}

func TestGeomMungeCacheHit(t *testing.T) {
	mgr := cache.NewManager(1 << 20)
	g, d := newTriangleGeom(t, mgr)
	m := &countingMunger{}

	g1, d1, err := g.MungeGeom(m, d)
	require.NoError(t, err)
	g2, d2, err := g.MungeGeom(m, d)
	require.NoError(t, err)

	assert.Equal(t, int32(1), m.calls.Load())
	assert.Same(t, g1, g2)
	assert.Same(t, d1, d2)
	assert.Equal(t, FormatV3CP(), d1.Format())
	assert.Equal(t, 1, g.CacheSize())
	assert.Len(t, mgr.EntriesFor(g), 1)
}

// animatingMunger applies CPU animation and counts the passes.
type animatingMunger struct {
	calls atomic.Int32
}

func (m *animatingMunger) MungeFormat(f *Format) *Format { return f.PostAnimatedFormat() }

func (m *animatingMunger) MungeData(d *VertexData) (*VertexData, error) {
	m.calls.Add(1)
	return d.Animate(), nil
}

func (m *animatingMunger) MungeGeom(g *Geom, d *VertexData) (*Geom, *VertexData) { return g, d }

func (m *animatingMunger) Compare(other Munger) int {
	if _, ok := other.(*animatingMunger); ok {
		return 0
	}
	return 1
}

func newPointsGeom(t *testing.T, d *VertexData) *Geom {
	t.Helper()
	p := NewPrimitive(Points)
	p.AddConsecutiveVertices(0, d.NumRows())
	require.NoError(t, p.ClosePrimitive())
	g := NewGeom(d)
	require.NoError(t, g.AddPrimitive(p))
	return g
}

func TestGeomMungeFollowsTransforms(t *testing.T) {
	t1 := NewVertexTransform("t1", translate(1, 2, 3))
	t2 := NewVertexTransform("t2", Identity4)
	d := newBlendedData(t, t1, t2)
	g := newPointsGeom(t, d)
	m := &animatingMunger{}

	_, first, err := g.MungeGeom(m, d)
	require.NoError(t, err)
	assert.Equal(t, [3]float32{0.25, 0.5, 0.75}, readAll3(first, NameVertex)[1])
	_, again, err := g.MungeGeom(m, d)
	require.NoError(t, err)
	assert.Same(t, first, again)

	t2.SetMatrix(translate(4, 0, 0))
	_, moved, err := g.MungeGeom(m, d)
	require.NoError(t, err)
	assert.NotSame(t, first, moved, "a transform change invalidates the munged data")
	assert.Equal(t, [3]float32{3.25, 0.5, 0.75}, readAll3(moved, NameVertex)[1])
	assert.Equal(t, int32(2), m.calls.Load())
}

func TestGeomMungeFollowsSliders(t *testing.T) {
	smile := MakeName("smile")
	f := NewFormatWith(CPUAnimation(), NewArrayFormat(
		specVertex,
		ColumnSpec{NameVertex.Morph(smile), 3, Float32, ContentsMorphDelta},
	))
	d := NewVertexData(t.Name(), f, UsageDynamic)
	NewVertexWriter(d, NameVertex).AddData3(1, 2, 3)
	NewVertexWriter(d, NameVertex.Morph(smile)).SetData3(2, 0, 0)
	s := NewVertexSlider(smile)
	d.SetSliderTable(NewSliderTable(s))
	g := newPointsGeom(t, d)
	m := &animatingMunger{}

	_, rest, err := g.MungeGeom(m, d)
	require.NoError(t, err)
	assert.Equal(t, [][3]float32{{1, 2, 3}}, readAll3(rest, NameVertex))

	s.SetValue(0.5)
	_, smiling, err := g.MungeGeom(m, d)
	require.NoError(t, err)
	assert.Equal(t, [][3]float32{{2, 2, 3}}, readAll3(smiling, NameVertex))
	assert.Equal(t, int32(2), m.calls.Load())
}

func TestGeomMungeStaleRecomputesOnce(t *testing.T) {
	mgr := cache.NewManager(1 << 20)
	g, d := newTriangleGeom(t, mgr)
	m := &countingMunger{}

	_, first, err := g.MungeGeom(m, d)
	require.NoError(t, err)
	entries := mgr.EntriesFor(g)
	require.Len(t, entries, 1)

	NewVertexWriter(d, NameColor).SetData4([4]float32{0, 1, 0, 1})

	_, second, err := g.MungeGeom(m, d)
	require.NoError(t, err)
	_, third, err := g.MungeGeom(m, d)
	require.NoError(t, err)

	assert.Equal(t, int32(2), m.calls.Load())
	assert.NotSame(t, first, second)
	assert.Same(t, second, third)
	assert.False(t, mgr.Contains(entries[0]), "stale ledger row must be removed")
	assert.Equal(t, [4]float32{0, 1, 0, 1}, NewVertexReader(second, NameColor).GetData4())
}

func TestGeomMungePrimitiveChangeIsStale(t *testing.T) {
	g, d := newTriangleGeom(t, cache.NewManager(1<<20))
	m := &countingMunger{}

	_, _, err := g.MungeGeom(m, d)
	require.NoError(t, err)
	p := g.ModifyPrimitive(0)
	_, _, err = g.MungeGeom(m, d)
	require.NoError(t, err)
	assert.Equal(t, int32(2), m.calls.Load())

	// A change made through the private primitive later is seen as well.
	p.SetShadeModel(ShadeFlatLastVertex)
	_, _, err = g.MungeGeom(m, d)
	require.NoError(t, err)
	assert.Equal(t, int32(3), m.calls.Load())

	_, _, err = g.MungeGeom(m, d)
	require.NoError(t, err)
	assert.Equal(t, int32(3), m.calls.Load())
}

func TestGeomMungeSeparateMungers(t *testing.T) {
	mgr := cache.NewManager(1 << 20)
	g, d := newTriangleGeom(t, mgr)
	a, b := &countingMunger{id: 1}, &countingMunger{id: 2}

	_, da, err := g.MungeGeom(a, d)
	require.NoError(t, err)
	_, db, err := g.MungeGeom(b, d)
	require.NoError(t, err)

	assert.NotSame(t, da, db)
	assert.Equal(t, 2, g.CacheSize())
	assert.Len(t, mgr.EntriesFor(g), 2)
}

func TestGeomMungeError(t *testing.T) {
	mgr := cache.NewManager(1 << 20)
	g, d := newTriangleGeom(t, mgr)
	boom := errors.New("boom")

	_, _, err := g.MungeGeom(&countingMunger{failOn: boom}, d)
	require.ErrorIs(t, err, boom)
	assert.Zero(t, g.CacheSize())
	assert.Zero(t, mgr.Len())
}

func TestGeomMungeZeroBudget(t *testing.T) {
	mgr := cache.NewManager(0)
	g, d := newTriangleGeom(t, mgr)
	m := &countingMunger{}

	for i := 0; i < 3; i++ {
		_, out, err := g.MungeGeom(m, d)
		require.NoError(t, err)
		assert.Equal(t, 3, out.NumRows())
	}
	assert.Equal(t, int32(3), m.calls.Load(), "nothing is kept with a zero budget")
	assert.Zero(t, g.CacheSize())
	assert.Zero(t, mgr.TotalSize())
}

func TestGeomMungeEvictedByBudget(t *testing.T) {
	mgr := cache.NewManager(0)
	g1, d1 := newTriangleGeom(t, mgr)
	m := &countingMunger{}

	_, out, err := g1.MungeGeom(m, d1)
	require.NoError(t, err)
	require.Zero(t, g1.CacheSize())

	mgr.SetBudget(out.TotalBytes())
	_, _, err = g1.MungeGeom(m, d1)
	require.NoError(t, err)
	require.Equal(t, 1, g1.CacheSize())

	g2, d2 := newTriangleGeom(t, mgr)
	_, _, err = g2.MungeGeom(m, d2)
	require.NoError(t, err)

	assert.Zero(t, g1.CacheSize(), "least recently used row is evicted from its owner")
	assert.Equal(t, 1, g2.CacheSize())
	assert.LessOrEqual(t, mgr.TotalSize(), mgr.Budget())
}

// End to end: a hit, then replacing the data forces a miss and leaves no
// ledger row for the old data.
func TestGeomMungeEndToEnd(t *testing.T) {
	mgr := cache.NewManager(1 << 20)
	g, d := newTriangleGeom(t, mgr)
	m := RegisterMunger(&countingMunger{id: 42}).(*countingMunger)
	t.Cleanup(func() { UnregisterMunger(m) })

	_, _, err := g.MungeGeom(m, d)
	require.NoError(t, err)
	_, _, err = g.MungeGeom(m, d)
	require.NoError(t, err)
	require.Equal(t, int32(1), m.calls.Load())

	old := mgr.EntriesFor(g)
	require.Len(t, old, 1)

	nd := d.Copy()
	NewVertexWriter(nd, NameVertex).SetData3(2, 2, 2)
	g.SetVertexData(nd)

	_, out, err := g.MungeGeom(m, g.VertexData())
	require.NoError(t, err)
	assert.Equal(t, int32(2), m.calls.Load())
	assert.False(t, mgr.Contains(old[0]))
	for _, e := range mgr.Entries() {
		assert.NotEqual(t, d, e.Key().(mungeKey).data)
	}
	assert.Equal(t, [3]float32{2, 2, 2}, NewVertexReader(out, NameVertex).GetData3())
}

func TestGeomMungeConcurrent(t *testing.T) {
	g, d := newTriangleGeom(t, cache.NewManager(1<<20))
	m := &countingMunger{}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, out, err := g.MungeGeom(m, d)
			assert.NoError(t, err)
			assert.Equal(t, 3, out.NumRows())
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, g.CacheSize())
}

func TestGeomReleaseClearsLedger(t *testing.T) {
	mgr := cache.NewManager(1 << 20)
	g, d := newTriangleGeom(t, mgr)
	_, _, err := g.MungeGeom(&countingMunger{}, d)
	require.NoError(t, err)
	require.Equal(t, 1, mgr.Len())

	g.Release()
	assert.Zero(t, mgr.Len())
	assert.Zero(t, g.CacheSize())
}

func TestGeomAddPrimitiveCompatibility(t *testing.T) {
	g, _ := newTriangleGeom(t, cache.NewManager(1<<20))

	strip := NewPrimitive(TriangleStrips)
	assert.NoError(t, g.AddPrimitive(strip), "strips share the polygon family")

	lines := NewPrimitive(Lines)
	assert.ErrorIs(t, g.AddPrimitive(lines), ErrIncompatiblePrimitive)

	first := NewPrimitive(Triangles)
	first.SetShadeModel(ShadeFlatFirstVertex)
	require.NoError(t, g.AddPrimitive(first))
	assert.Equal(t, ShadeFlatFirstVertex, g.ShadeModel())

	last := NewPrimitive(Triangles)
	last.SetShadeModel(ShadeFlatLastVertex)
	assert.ErrorIs(t, g.AddPrimitive(last), ErrIncompatiblePrimitive)
	assert.Equal(t, 3, g.NumPrimitives())

	f, ok := g.Family()
	require.True(t, ok)
	assert.Equal(t, FamilyPolygons, f)

	g.ClearPrimitives()
	_, ok = g.Family()
	assert.False(t, ok)
	assert.NoError(t, g.AddPrimitive(lines))
}

func TestGeomSetAndRemovePrimitive(t *testing.T) {
	g, _ := newTriangleGeom(t, cache.NewManager(1<<20))
	fan := NewPrimitive(TriangleFans)
	fan.AddConsecutiveVertices(0, 3)
	require.NoError(t, fan.ClosePrimitive())

	require.NoError(t, g.SetPrimitive(0, fan))
	assert.Same(t, fan, g.Primitive(0))
	assert.NoError(t, g.SetPrimitive(0, NewPrimitive(Points)), "a lone primitive may change family")

	g.RemovePrimitive(0)
	assert.Zero(t, g.NumPrimitives())
}

func TestGeomCopyOnWrite(t *testing.T) {
	g, d := newTriangleGeom(t, cache.NewManager(1<<20))
	c := g.MakeCopy()

	cd := c.ModifyVertexData()
	assert.NotSame(t, d, cd, "shared data is copied before writing")
	NewVertexWriter(cd, NameVertex).SetData3(9, 9, 9)
	assert.Equal(t, [3]float32{0, 0, 0}, NewVertexReader(g.VertexData(), NameVertex).GetData3())

	cp := c.ModifyPrimitive(0)
	assert.NotSame(t, g.Primitive(0), cp)
	cp.AddConsecutiveVertices(0, 3)
	assert.Equal(t, 3, g.Primitive(0).NumVertices())
	assert.Equal(t, 6, cp.NumVertices())
}

func TestGeomDecomposeInPlace(t *testing.T) {
	g, _ := newTriangleGeom(t, cache.NewManager(1<<20))
	strip := NewPrimitive(TriangleStrips)
	strip.AddConsecutiveVertices(0, 3)
	require.NoError(t, strip.ClosePrimitive())
	require.NoError(t, g.AddPrimitive(strip))

	out := g.Decompose()
	assert.Equal(t, TriangleStrips, g.Primitive(1).Kind())
	assert.Equal(t, Triangles, out.Primitive(1).Kind())
	assert.Equal(t, []int{0, 1, 2}, out.Primitive(1).VertexList())
}

func TestGeomCheckValid(t *testing.T) {
	g, d := newTriangleGeom(t, cache.NewManager(1<<20))
	assert.True(t, g.CheckValid())
	require.NoError(t, g.Validate())

	small := d.Copy()
	small.SetNumRows(2)
	assert.False(t, g.CheckValidWith(small))

	g.ModifyPrimitive(0).AddVertex(7)
	assert.False(t, g.CheckValid())
	assert.ErrorIs(t, g.Validate(), ErrInvalidGeom)

	empty := NewGeom(nil)
	assert.ErrorIs(t, empty.Validate(), ErrInvalidGeom)
}

func TestGeomPipelineStages(t *testing.T) {
	p := pipeline.New(t.Name(), 2)
	mgr := cache.NewManager(1 << 20)
	d := NewVertexData("staged", FormatV3(), UsageDynamic, WithPipeline(p))
	NewVertexWriter(d, NameVertex).AddData3(1, 2, 3)
	g := NewGeom(d, WithPipeline(p), WithCacheManager(mgr))
	m := &countingMunger{}

	_, _, err := g.MungeGeom(m, d)
	require.NoError(t, err)

	// The upstream edit is invisible downstream until the pipeline cycles.
	NewVertexWriter(d, NameVertex).SetData3(4, 5, 6)
	_, _, err = g.MungeGeom(m, d)
	require.NoError(t, err)
	assert.Equal(t, int32(1), m.calls.Load())

	p.Cycle()
	_, out, err := g.MungeGeom(m, d)
	require.NoError(t, err)
	assert.Equal(t, int32(2), m.calls.Load())
	assert.Equal(t, [3]float32{4, 5, 6}, NewVertexReader(out, NameVertex).GetData3())
}
