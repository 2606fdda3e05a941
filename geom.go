package vgeom

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/vgeom/internal/cow"
	"github.com/gogpu/vgeom/pipeline"
)

// geomCData is the cycled part of a Geom.
type geomCData struct {
	data       *VertexData
	primitives []*Primitive
	shade      ShadeModel
	modified   UpdateSeq
}

func cloneGeomCData(c *geomCData) *geomCData {
	n := *c
	if n.data != nil {
		n.data = cow.Share(c.data)
	}
	n.primitives = slices.Clone(c.primitives)
	cow.ShareAll(n.primitives)
	return &n
}

// modifiedSeq folds the primitives' stamps into the geom's own. render
// selects the primitives' downstream stage.
func (c *geomCData) modifiedSeq(render bool) UpdateSeq {
	seq := c.modified
	for _, p := range c.primitives {
		stage := 0
		if render {
			stage = p.cycler.NumStages() - 1
		}
		p.cycler.View(stage, func(pc *primitiveCData) { seq = max(seq, pc.modified) })
	}
	return seq
}

// Geom couples one VertexData with primitives of a single family. It also
// owns the munge cache: the results of converting its data for each Munger
// that has drawn it.
//
// Data and primitives are held copy-on-write; the Modify methods return
// private instances the caller may change. Methods read and write the
// upstream pipeline stage and are safe for concurrent use; a value handed out
// by a getter is never written again.
type Geom struct {
	cow.Ref

	opts   objectOptions
	cycler *pipeline.Cycler[geomCData]

	cacheMu sync.Mutex
	cache   map[mungeKey]*mungeRow
}

// NewGeom creates a geom drawing data. Primitives are added with
// AddPrimitive.
func NewGeom(data *VertexData, opts ...Option) *Geom {
	return newGeom(applyOptions(opts), &geomCData{
		data:     data,
		shade:    ShadeSmooth,
		modified: NextUpdateSeq(),
	})
}

func newGeom(o objectOptions, c *geomCData) *Geom {
	return &Geom{
		opts:   o,
		cycler: pipeline.NewCycler(o.pipeline, c, cloneGeomCData),
	}
}

func (g *Geom) cdata() *geomCData { return g.cycler.Read(0) }

// view runs fn on the upstream payload without handing it out.
func (g *Geom) view(fn func(c *geomCData)) { g.cycler.View(0, fn) }

func (g *Geom) write(fn func(c *geomCData)) {
	g.cycler.Write(0, func(c *geomCData) {
		fn(c)
		c.modified = NextUpdateSeq()
	})
}

// MakeCopy returns a geom sharing g's data and primitives copy-on-write.
// The copy starts with an empty munge cache.
func (g *Geom) MakeCopy() *Geom {
	return newGeom(g.opts, cloneGeomCData(g.cdata()))
}

// Clone is MakeCopy.
func (g *Geom) Clone() *Geom { return g.MakeCopy() }

// AtStage returns a detached copy of the geom visible at a pipeline stage.
func (g *Geom) AtStage(stage int) *Geom {
	return newGeom(g.opts, cloneGeomCData(g.cycler.Read(stage)))
}

// renderView returns g as the downstream stage sees it: g itself when the
// pipeline has one stage, otherwise a detached snapshot.
func (g *Geom) renderView() *Geom {
	st := g.cycler.NumStages() - 1
	if st == 0 {
		return g
	}
	return g.AtStage(st)
}

// VertexData returns the vertex data. The returned value may be shared;
// use ModifyVertexData to change it.
func (g *Geom) VertexData() *VertexData { return g.cdata().data }

// ModifyVertexData returns the geom's vertex data, made private to g first.
func (g *Geom) ModifyVertexData() *VertexData {
	var (
		out     *VertexData
		changed bool
	)
	g.write(func(c *geomCData) {
		if c.data == nil {
			return
		}
		out = cow.Unique(c.data)
		changed = out != c.data
		c.data = out
	})
	if changed {
		g.ClearCache()
	}
	return out
}

// SetVertexData replaces the vertex data and drops every munge result.
func (g *Geom) SetVertexData(d *VertexData) {
	g.write(func(c *geomCData) { c.data = d })
	g.ClearCache()
}

// Modified returns the latest stamp of g and its primitives.
func (g *Geom) Modified() UpdateSeq {
	var m UpdateSeq
	g.view(func(c *geomCData) { m = c.modifiedSeq(false) })
	return m
}

// NumPrimitives returns the number of primitives.
func (g *Geom) NumPrimitives() int {
	var n int
	g.view(func(c *geomCData) { n = len(c.primitives) })
	return n
}

// Primitive returns primitive i. The returned value may be shared; use
// ModifyPrimitive to change it.
func (g *Geom) Primitive(i int) *Primitive {
	c := g.cdata()
	if i < 0 || i >= len(c.primitives) {
		violation("Geom.Primitive(%d) of %d", i, len(c.primitives))
		return nil
	}
	return c.primitives[i]
}

// Primitives returns the primitive list.
func (g *Geom) Primitives() []*Primitive { return slices.Clone(g.cdata().primitives) }

// ModifyPrimitive returns primitive i, made private to g first.
func (g *Geom) ModifyPrimitive(i int) *Primitive {
	var out *Primitive
	g.write(func(c *geomCData) {
		if i < 0 || i >= len(c.primitives) {
			violation("Geom.ModifyPrimitive(%d) of %d", i, len(c.primitives))
			return
		}
		out = cow.Unique(c.primitives[i])
		c.primitives[i] = out
	})
	return out
}

// Family returns the family of the geom's primitives; ok is false while g
// has none.
func (g *Geom) Family() (f PrimitiveFamily, ok bool) {
	g.view(func(c *geomCData) {
		if len(c.primitives) > 0 {
			f, ok = c.primitives[0].Kind().Family(), true
		}
	})
	return f, ok
}

// ShadeModel returns the flat shade model of the primitives, or ShadeSmooth.
func (g *Geom) ShadeModel() ShadeModel {
	var s ShadeModel
	g.view(func(c *geomCData) { s = c.shade })
	return s
}

// compatible reports whether p may join primitives with the given family
// and shade model.
func compatible(c *geomCData, p *Primitive) error {
	if len(c.primitives) > 0 {
		if f := c.primitives[0].Kind().Family(); f != p.Kind().Family() {
			return fmt.Errorf("%w: %s in a geom of %s", ErrIncompatiblePrimitive, p.Kind(), c.primitives[0].Kind())
		}
	}
	if s := p.ShadeModel(); isFlat(s) && isFlat(c.shade) && s != c.shade {
		return fmt.Errorf("%w: shade model %d, geom has %d", ErrIncompatiblePrimitive, s, c.shade)
	}
	return nil
}

func isFlat(s ShadeModel) bool {
	return s == ShadeFlatFirstVertex || s == ShadeFlatLastVertex
}

// AddPrimitive appends p. It fails with ErrIncompatiblePrimitive if p's
// family or flat shade model differs from the primitives already present.
// p is held shared: ModifyPrimitive copies it before writing.
func (g *Geom) AddPrimitive(p *Primitive) error {
	var err error
	g.write(func(c *geomCData) {
		if err = compatible(c, p); err != nil {
			return
		}
		c.primitives = append(c.primitives, cow.Share(p))
		if isFlat(p.ShadeModel()) {
			c.shade = p.ShadeModel()
		}
	})
	return err
}

// SetPrimitive replaces primitive i.
func (g *Geom) SetPrimitive(i int, p *Primitive) error {
	var err error
	g.write(func(c *geomCData) {
		if i < 0 || i >= len(c.primitives) {
			violation("Geom.SetPrimitive(%d) of %d", i, len(c.primitives))
			return
		}
		others := *c
		others.primitives = slices.Delete(slices.Clone(c.primitives), i, i+1)
		if len(others.primitives) == 0 {
			others.shade = ShadeSmooth
		}
		if err = compatible(&others, p); err != nil {
			return
		}
		c.primitives[i] = cow.Share(p)
		if isFlat(p.ShadeModel()) {
			c.shade = p.ShadeModel()
		}
	})
	return err
}

// RemovePrimitive removes primitive i.
func (g *Geom) RemovePrimitive(i int) {
	g.write(func(c *geomCData) {
		if i < 0 || i >= len(c.primitives) {
			violation("Geom.RemovePrimitive(%d) of %d", i, len(c.primitives))
			return
		}
		c.primitives = slices.Delete(slices.Clone(c.primitives), i, i+1)
		if len(c.primitives) == 0 {
			c.shade = ShadeSmooth
		}
	})
}

// ClearPrimitives removes every primitive.
func (g *Geom) ClearPrimitives() {
	g.write(func(c *geomCData) {
		c.primitives = nil
		c.shade = ShadeSmooth
	})
}

// DecomposeInPlace replaces every strip and fan with its simple form.
func (g *Geom) DecomposeInPlace() {
	g.write(func(c *geomCData) {
		prims := make([]*Primitive, len(c.primitives))
		for i, p := range c.primitives {
			prims[i] = cow.Share(p.Decompose())
		}
		c.primitives = prims
	})
}

// Decompose returns a copy of g with every strip and fan decomposed.
func (g *Geom) Decompose() *Geom {
	out := g.MakeCopy()
	out.DecomposeInPlace()
	return out
}

// NumBytes returns the size of the primitives' index storage.
func (g *Geom) NumBytes() int {
	n := 0
	for _, p := range g.cdata().primitives {
		n += p.NumBytes()
	}
	return n
}

// CheckValid reports whether every primitive references rows of the geom's
// own vertex data.
func (g *Geom) CheckValid() bool {
	return g.CheckValidWith(g.VertexData())
}

// CheckValidWith reports whether g would be valid drawn with d.
func (g *Geom) CheckValidWith(d *VertexData) bool {
	if d == nil {
		return false
	}
	for _, p := range g.cdata().primitives {
		if !p.CheckValid(d) {
			return false
		}
	}
	return true
}

// Validate is CheckValid as an error.
func (g *Geom) Validate() error {
	d := g.VertexData()
	if d == nil {
		return fmt.Errorf("%w: no vertex data", ErrInvalidGeom)
	}
	if !g.CheckValidWith(d) {
		return fmt.Errorf("%w: %d rows", ErrInvalidGeom, d.NumRows())
	}
	return nil
}

// Release drops every cached result held by g and its primitives. A
// primitive shared with another geom recomputes its decomposition on next
// use.
func (g *Geom) Release() {
	g.ClearCache()
	for _, p := range g.cdata().primitives {
		p.ClearCache()
	}
}

func (g *Geom) String() string {
	c := g.cdata()
	rows := 0
	if c.data != nil {
		rows = c.data.NumRows()
	}
	return fmt.Sprintf("Geom(%d rows, %d primitives)", rows, len(c.primitives))
}
