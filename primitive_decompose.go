package vgeom

import (
	"github.com/gogpu/vgeom/cache"
)

// decomposeKey is the only cache key a Primitive records.
type decomposeKey struct{}

// decomposeRow is a Primitive's cached decomposition.
type decomposeRow struct {
	seq    UpdateSeq
	result *Primitive
	entry  *cache.Entry
}

// Decompose returns the primitive rewritten in the simple kind of its family:
// strips and fans become triangles, line strips become lines. Simple kinds
// return p itself. Degenerate triangles from repeated strip indices are
// dropped.
//
// The result is cached on p until p changes and is recorded in the cache
// manager, which may evict it under memory pressure.
func (p *Primitive) Decompose() *Primitive {
	if !p.kind.IsComplex() {
		return p
	}
	seq := p.Modified()
	mgr := p.opts.cache

	p.decompMu.Lock()
	row := p.decomp
	if row != nil && row.seq == seq {
		p.decompMu.Unlock()
		if row.entry != nil {
			mgr.Touch(row.entry)
		}
		return row.result
	}
	p.decomp = nil
	p.decompMu.Unlock()
	if row != nil && row.entry != nil {
		mgr.Remove(row.entry)
	}

	result := p.decompose()
	if !ActiveConfig().DecomposeCache {
		return result
	}
	e := cache.NewEntry(p, decomposeKey{}, int64(result.NumBytes()))
	p.decompMu.Lock()
	p.decomp = &decomposeRow{seq: seq, result: result, entry: e}
	p.decompMu.Unlock()
	mgr.Record(e)
	return result
}

// EvictCacheEntry drops the cached decomposition if e still refers to it.
func (p *Primitive) EvictCacheEntry(e *cache.Entry) {
	p.decompMu.Lock()
	defer p.decompMu.Unlock()
	if p.decomp != nil && p.decomp.entry == e {
		p.decomp = nil
	}
}

// ClearCache drops the cached decomposition and its ledger row.
func (p *Primitive) ClearCache() {
	p.decompMu.Lock()
	row := p.decomp
	p.decomp = nil
	p.decompMu.Unlock()
	if row != nil && row.entry != nil {
		p.opts.cache.Remove(row.entry)
	}
}

func (p *Primitive) decompose() *Primitive {
	c := p.cdata()
	out := newPrimitiveCData()
	out.shade = c.shade
	out.buf.indices = make([]uint32, 0, c.numVertices()*3)
	idx := out.buf.indices

	n := c.numPrimitives(p)
	for i := 0; i < n; i++ {
		start, end := c.runBounds(p, i)
		switch p.kind {
		case LineStrips:
			for j := start; j+1 < end; j++ {
				idx = append(idx, uint32(c.vertex(j)), uint32(c.vertex(j+1)))
			}
		case TriangleFans:
			v0 := uint32(c.vertex(start))
			for j := start + 1; j+1 < end; j++ {
				idx = appendTriangle(idx, v0, uint32(c.vertex(j)), uint32(c.vertex(j+1)))
			}
		case TriangleStrips:
			for j := start; j+2 < end; j++ {
				a, b, v := uint32(c.vertex(j)), uint32(c.vertex(j+1)), uint32(c.vertex(j+2))
				if (j-start)%2 == 1 {
					a, b = b, a
				}
				idx = appendTriangle(idx, a, b, v)
			}
		}
	}
	out.buf.indices = idx
	return newPrimitive(p.kind.Decomposed(), 0, p.opts, out)
}

func appendTriangle(idx []uint32, a, b, c uint32) []uint32 {
	if a == b || b == c || a == c {
		return idx
	}
	return append(idx, a, b, c)
}
