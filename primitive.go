package vgeom

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/vgeom/internal/cow"
	"github.com/gogpu/vgeom/pipeline"
)

// indexBuffer holds the slices of a primitive, shared copy-on-write
// between stages and copies.
type indexBuffer struct {
	cow.Ref
	indices []uint32
	ends    []int // exclusive end of each run, complex kinds only
}

func (b *indexBuffer) Clone() *indexBuffer {
	return &indexBuffer{indices: slices.Clone(b.indices), ends: slices.Clone(b.ends)}
}

// primitiveCData is the cycled part of a Primitive.
//
// A non-indexed primitive uses vertices first, first+1, ... first+count-1
// and has nil indices.
type primitiveCData struct {
	buf   *indexBuffer
	first int
	count int

	shade    ShadeModel
	modified UpdateSeq
}

func newPrimitiveCData() *primitiveCData {
	return &primitiveCData{buf: &indexBuffer{}, shade: ShadeSmooth, modified: NextUpdateSeq()}
}

func clonePrimitiveCData(c *primitiveCData) *primitiveCData {
	n := *c
	n.buf = cow.Share(c.buf)
	return &n
}

// own makes the slices private before an in-place write.
func (c *primitiveCData) own() {
	c.buf = cow.Unique(c.buf)
	c.modified = NextUpdateSeq()
}

func (c *primitiveCData) numVertices() int {
	if c.buf.indices != nil {
		return len(c.buf.indices)
	}
	return c.count
}

func (c *primitiveCData) vertex(i int) int {
	if c.buf.indices != nil {
		return int(c.buf.indices[i])
	}
	return c.first + i
}

// makeIndexed converts the consecutive range into an explicit index list.
func (c *primitiveCData) makeIndexed() {
	if c.buf.indices != nil {
		return
	}
	c.buf.indices = make([]uint32, c.count, max(c.count, 8))
	for i := range c.buf.indices {
		c.buf.indices[i] = uint32(c.first + i)
	}
	c.first, c.count = 0, 0
}

// Primitive is a list of vertex indices that a Geom assembles into points,
// lines, triangles or patches. Strip and fan kinds are split into runs by
// ClosePrimitive.
//
// Methods read and write the upstream pipeline stage and are safe for
// concurrent use; slices handed out by a getter are never written again.
type Primitive struct {
	cow.Ref

	kind          PrimitiveKind
	patchVertices int
	opts          objectOptions
	cycler        *pipeline.Cycler[primitiveCData]

	memoMu  sync.Mutex
	memoSeq UpdateSeq
	minV    int
	maxV    int

	decompMu sync.Mutex
	decomp   *decomposeRow
}

// NewPrimitive creates an empty primitive of the given kind. Use NewPatches
// for patches.
func NewPrimitive(kind PrimitiveKind, opts ...Option) *Primitive {
	if kind == Patches {
		violation("NewPrimitive(Patches): use NewPatches")
		return NewPatches(3, opts...)
	}
	return newPrimitive(kind, 0, applyOptions(opts), newPrimitiveCData())
}

// NewPatches creates an empty patch list with verticesPerPatch control points.
func NewPatches(verticesPerPatch int, opts ...Option) *Primitive {
	if verticesPerPatch < 1 {
		violation("NewPatches(%d)", verticesPerPatch)
		verticesPerPatch = 1
	}
	return newPrimitive(Patches, verticesPerPatch, applyOptions(opts), newPrimitiveCData())
}

func newPrimitive(kind PrimitiveKind, patch int, o objectOptions, c *primitiveCData) *Primitive {
	return &Primitive{
		kind:          kind,
		patchVertices: patch,
		opts:          o,
		cycler:        pipeline.NewCycler(o.pipeline, c, clonePrimitiveCData),
	}
}

func (p *Primitive) cdata() *primitiveCData { return p.cycler.Read(0) }

func (p *Primitive) write(fn func(c *primitiveCData)) { p.cycler.Write(0, fn) }

// view runs fn on the upstream payload without handing it out.
func (p *Primitive) view(fn func(c *primitiveCData)) { p.cycler.View(0, fn) }

// Copy returns an independent primitive with the same vertices.
func (p *Primitive) Copy() *Primitive {
	return newPrimitive(p.kind, p.patchVertices, p.opts, clonePrimitiveCData(p.cdata()))
}

// Clone is Copy; it lets a Geom hold its primitives copy-on-write.
func (p *Primitive) Clone() *Primitive { return p.Copy() }

// AtStage returns a detached copy of the payload visible at a pipeline stage.
func (p *Primitive) AtStage(stage int) *Primitive {
	return newPrimitive(p.kind, p.patchVertices, p.opts, clonePrimitiveCData(p.cycler.Read(stage)))
}

// Kind returns the primitive kind.
func (p *Primitive) Kind() PrimitiveKind { return p.kind }

// ShadeModel returns which vertex carries per-primitive values.
func (p *Primitive) ShadeModel() ShadeModel {
	var s ShadeModel
	p.view(func(c *primitiveCData) { s = c.shade })
	return s
}

// SetShadeModel changes the shade model.
func (p *Primitive) SetShadeModel(s ShadeModel) {
	p.write(func(c *primitiveCData) {
		c.shade = s
		c.modified = NextUpdateSeq()
	})
}

// Modified returns the stamp of the last change.
func (p *Primitive) Modified() UpdateSeq {
	var m UpdateSeq
	p.view(func(c *primitiveCData) { m = c.modified })
	return m
}

// IsIndexed reports whether the primitive stores explicit indices.
func (p *Primitive) IsIndexed() bool {
	var ok bool
	p.view(func(c *primitiveCData) { ok = c.buf.indices != nil })
	return ok
}

// NumVertices returns the total number of vertex references.
func (p *Primitive) NumVertices() int {
	var n int
	p.view(func(c *primitiveCData) { n = c.numVertices() })
	return n
}

// Vertex returns the i-th vertex reference.
func (p *Primitive) Vertex(i int) int {
	v, n := 0, 0
	p.view(func(c *primitiveCData) {
		if n = c.numVertices(); i >= 0 && i < n {
			v = c.vertex(i)
		}
	})
	if i < 0 || i >= n {
		violation("Vertex(%d) out of range [0,%d)", i, n)
		return 0
	}
	return v
}

// VertexList returns every vertex reference in order.
func (p *Primitive) VertexList() []int {
	c := p.cdata()
	out := make([]int, c.numVertices())
	for i := range out {
		out[i] = c.vertex(i)
	}
	return out
}

// Indices returns the references as 32-bit indices, building them for a
// non-indexed primitive. The slice must not be modified.
func (p *Primitive) Indices() []uint32 {
	c := p.cdata()
	if c.buf.indices != nil {
		return c.buf.indices
	}
	out := make([]uint32, c.count)
	for i := range out {
		out[i] = uint32(c.first + i)
	}
	return out
}

// Ends returns the exclusive end of every run of a complex primitive. The
// slice must not be modified.
func (p *Primitive) Ends() []int { return p.cdata().buf.ends }

// AddVertex appends one vertex reference. A primitive stays non-indexed as
// long as the references are consecutive.
func (p *Primitive) AddVertex(v int) {
	if v < 0 {
		violation("AddVertex(%d)", v)
		return
	}
	p.write(func(c *primitiveCData) {
		c.own()
		if c.buf.indices == nil {
			if c.count == 0 {
				c.first, c.count = v, 1
				return
			}
			if v == c.first+c.count {
				c.count++
				return
			}
			c.makeIndexed()
		}
		c.buf.indices = append(c.buf.indices, uint32(v))
	})
}

// AddConsecutiveVertices appends start, start+1, ... start+n-1.
func (p *Primitive) AddConsecutiveVertices(start, n int) {
	if start < 0 || n < 0 {
		violation("AddConsecutiveVertices(%d, %d)", start, n)
		return
	}
	if n == 0 {
		return
	}
	p.write(func(c *primitiveCData) {
		c.own()
		if c.buf.indices == nil {
			if c.count == 0 {
				c.first, c.count = start, n
				return
			}
			if start == c.first+c.count {
				c.count += n
				return
			}
			c.makeIndexed()
		}
		for i := 0; i < n; i++ {
			c.buf.indices = append(c.buf.indices, uint32(start+i))
		}
	})
}

// AddNextVertices appends the n vertices following the last one referenced.
func (p *Primitive) AddNextVertices(n int) {
	c := p.cdata()
	next := 0
	if k := c.numVertices(); k > 0 {
		next = c.vertex(k-1) + 1
	}
	p.AddConsecutiveVertices(next, n)
}

// ClosePrimitive ends the current primitive. For strips and fans it records
// a run boundary; the run must have the kind's minimum length. For
// fixed-size kinds the vertex count must be a whole number of primitives.
// On error nothing is recorded.
func (p *Primitive) ClosePrimitive() error {
	var err error
	p.write(func(c *primitiveCData) {
		total := c.numVertices()
		if !p.kind.IsComplex() {
			if a := p.arity(); a > 0 && total%a != 0 {
				err = fmt.Errorf("%w: %d vertices for %s of %d", ErrPrimitiveArity, total, p.kind, a)
			}
			return
		}
		last := 0
		if len(c.buf.ends) > 0 {
			last = c.buf.ends[len(c.buf.ends)-1]
		}
		if n := total - last; n < p.kind.MinRunVertices() {
			err = fmt.Errorf("%w: run of %d vertices for %s needs %d", ErrPrimitiveArity, n, p.kind, p.kind.MinRunVertices())
			return
		}
		c.own()
		c.buf.ends = append(c.buf.ends, total)
	})
	if err != nil {
		Logger().Warn("vgeom: primitive not closed", "err", err)
	}
	return err
}

func (p *Primitive) arity() int {
	if p.kind == Patches {
		return p.patchVertices
	}
	return p.kind.arity()
}

// VerticesPerPrimitive returns the fixed vertex count per primitive, or 0
// for strips and fans.
func (p *Primitive) VerticesPerPrimitive() int { return p.arity() }

// NumPrimitives returns the number of closed primitives.
func (p *Primitive) NumPrimitives() int {
	var n int
	p.view(func(c *primitiveCData) { n = c.numPrimitives(p) })
	return n
}

func (c *primitiveCData) numPrimitives(p *Primitive) int {
	if p.kind.IsComplex() {
		return len(c.buf.ends)
	}
	return c.numVertices() / p.arity()
}

// runBounds returns the reference range [start, end) of primitive i, which
// must be below numPrimitives.
func (c *primitiveCData) runBounds(p *Primitive, i int) (start, end int) {
	if !p.kind.IsComplex() {
		return i * p.arity(), (i + 1) * p.arity()
	}
	if i > 0 {
		start = c.buf.ends[i-1]
	}
	return start, c.buf.ends[i]
}

// bounds returns the reference range of primitive i. An out-of-range i is a
// violation and yields an empty range.
func (p *Primitive) bounds(i int) (start, end int) {
	n := 0
	p.view(func(c *primitiveCData) {
		if n = c.numPrimitives(p); i >= 0 && i < n {
			start, end = c.runBounds(p, i)
		}
	})
	if i < 0 || i >= n {
		violation("primitive %d out of range [0,%d)", i, n)
		return 0, 0
	}
	return start, end
}

// PrimitiveStart returns the index of the first vertex reference of
// primitive i.
func (p *Primitive) PrimitiveStart(i int) int {
	start, _ := p.bounds(i)
	return start
}

// PrimitiveEnd returns the index just past the last vertex reference of
// primitive i.
func (p *Primitive) PrimitiveEnd(i int) int {
	_, end := p.bounds(i)
	return end
}

// PrimitiveNumVertices returns the number of vertex references of
// primitive i.
func (p *Primitive) PrimitiveNumVertices(i int) int {
	start, end := p.bounds(i)
	return end - start
}

// minMax returns the smallest and largest referenced vertex, memoized until
// the next change. Both are -1 when there are no references.
func (p *Primitive) minMax() (int, int) {
	p.memoMu.Lock()
	defer p.memoMu.Unlock()
	p.view(func(c *primitiveCData) {
		if p.memoSeq == c.modified && p.memoSeq != 0 {
			return
		}
		lo, hi := -1, -1
		switch n := c.numVertices(); {
		case n == 0:
		case c.buf.indices == nil:
			lo, hi = c.first, c.first+c.count-1
		default:
			lo, hi = int(slices.Min(c.buf.indices)), int(slices.Max(c.buf.indices))
		}
		p.memoSeq, p.minV, p.maxV = c.modified, lo, hi
	})
	return p.minV, p.maxV
}

// MinVertex returns the smallest referenced vertex, or -1.
func (p *Primitive) MinVertex() int {
	lo, _ := p.minMax()
	return lo
}

// MaxVertex returns the largest referenced vertex, or -1.
func (p *Primitive) MaxVertex() int {
	_, hi := p.minMax()
	return hi
}

// ClearVertices removes every reference and run.
func (p *Primitive) ClearVertices() {
	p.write(func(c *primitiveCData) {
		c.own()
		c.buf.indices, c.buf.ends = nil, nil
		c.first, c.count = 0, 0
	})
}

// Offset adds n to every vertex reference.
func (p *Primitive) Offset(n int) {
	if n == 0 {
		return
	}
	if lo := p.MinVertex(); lo >= 0 && lo+n < 0 {
		violation("Offset(%d) makes vertex %d negative", n, lo)
		return
	}
	p.write(func(c *primitiveCData) {
		c.own()
		if c.buf.indices == nil {
			c.first += n
			return
		}
		for i := range c.buf.indices {
			c.buf.indices[i] = uint32(int(c.buf.indices[i]) + n)
		}
	})
}

// MakeIndexed stores the references as explicit indices.
func (p *Primitive) MakeIndexed() {
	if p.IsIndexed() {
		return
	}
	p.write(func(c *primitiveCData) {
		c.own()
		c.makeIndexed()
	})
}

// MakeNonindexed drops the index list if the references are consecutive,
// and reports whether the primitive is now non-indexed.
func (p *Primitive) MakeNonindexed() bool {
	ok := true
	p.write(func(c *primitiveCData) {
		if c.buf.indices == nil {
			return
		}
		for i := 1; i < len(c.buf.indices); i++ {
			if c.buf.indices[i] != c.buf.indices[i-1]+1 {
				ok = false
				return
			}
		}
		c.own()
		if len(c.buf.indices) > 0 {
			c.first = int(c.buf.indices[0])
		}
		c.count = len(c.buf.indices)
		c.buf.indices = nil
	})
	return ok
}

// IndexFormat returns the narrowest index type that holds every reference.
func (p *Primitive) IndexFormat() gputypes.IndexFormat {
	if p.MaxVertex() < 0xffff {
		return gputypes.IndexFormatUint16
	}
	return gputypes.IndexFormatUint32
}

// Topology returns the WebGPU topology of the primitive's kind.
func (p *Primitive) Topology() (gputypes.PrimitiveTopology, bool) { return p.kind.Topology() }

// NumBytes returns the size of the stored references.
func (p *Primitive) NumBytes() int {
	var n int
	p.view(func(c *primitiveCData) { n = 4*len(c.buf.indices) + 8*len(c.buf.ends) })
	return n
}

// CheckValid reports whether every reference is a row of d.
func (p *Primitive) CheckValid(d *VertexData) bool {
	hi := p.MaxVertex()
	return hi < d.NumRows()
}

// Reverse returns a primitive with the opposite winding. Runs of even length
// in a triangle strip gain a repeated first vertex to keep the alternation.
func (p *Primitive) Reverse() *Primitive {
	c := p.cdata()
	out := newPrimitiveCData()
	out.shade = c.shade
	n := c.numPrimitives(p)
	for i := 0; i < n; i++ {
		start, end := c.runBounds(p, i)
		run := make([]uint32, 0, end-start+1)
		switch p.kind {
		case TriangleFans:
			run = append(run, uint32(c.vertex(start)))
			for j := end - 1; j > start; j-- {
				run = append(run, uint32(c.vertex(j)))
			}
		default:
			if p.kind == TriangleStrips && (end-start)%2 == 0 {
				run = append(run, uint32(c.vertex(end-1)))
			}
			for j := end - 1; j >= start; j-- {
				run = append(run, uint32(c.vertex(j)))
			}
		}
		out.buf.indices = append(out.buf.indices, run...)
		if p.kind.IsComplex() {
			out.buf.ends = append(out.buf.ends, len(out.buf.indices))
		}
	}
	if out.buf.indices == nil {
		out.buf.indices = []uint32{}
	}
	return newPrimitive(p.kind, p.patchVertices, p.opts, out)
}

func (p *Primitive) String() string {
	return fmt.Sprintf("%s(%d vertices, %d primitives)", p.kind, p.NumVertices(), p.NumPrimitives())
}
