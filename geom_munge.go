package vgeom

import (
	"fmt"

	"github.com/gogpu/vgeom/cache"
)

// mungeKey identifies a munge cache row. It holds no references of its own
// and is used both for lookup and as the ledger key.
type mungeKey struct {
	data   *VertexData
	munger Munger
}

// mungeRow is one computed munge result.
type mungeRow struct {
	dataSeq UpdateSeq
	geomSeq UpdateSeq
	geom    *Geom
	data    *VertexData
	entry   *cache.Entry
}

// renderSeq returns the modification stamp of d's downstream stage,
// including the transforms and sliders CPU animation reads.
func (d *VertexData) renderSeq() (seq UpdateSeq) {
	d.cycler.View(d.cycler.NumStages()-1, func(c *vertexDataCData) { seq = c.modifiedSeq() })
	return seq
}

// renderView returns d as the downstream stage sees it.
func (d *VertexData) renderView() *VertexData {
	st := d.cycler.NumStages() - 1
	if st == 0 {
		return d
	}
	return d.AtStage(st)
}

// renderSeq returns the modification stamp of g's downstream stage.
func (g *Geom) renderSeq() (seq UpdateSeq) {
	g.cycler.View(g.cycler.NumStages()-1, func(c *geomCData) { seq = c.modifiedSeq(true) })
	return seq
}

// MungeGeom returns g and d converted by m, as the downstream pipeline stage
// sees them. Results are cached on g per (d, m) and reused until g or d
// changes; each cached result is recorded in g's cache manager, which may
// evict it at any time.
//
// m should be the value returned by RegisterMunger so that equal mungers
// share rows. Its dynamic type must be comparable.
func (g *Geom) MungeGeom(m Munger, d *VertexData) (*Geom, *VertexData, error) {
	if d == nil {
		d = g.renderView().VertexData()
		if d == nil {
			return nil, nil, fmt.Errorf("%w: no vertex data", ErrInvalidGeom)
		}
	}
	key := mungeKey{data: d, munger: m}
	dataSeq := d.renderSeq()
	geomSeq := g.renderSeq()
	mgr := g.opts.cache
	log := Logger()

	g.cacheMu.Lock()
	row := g.cache[key]
	if row != nil && row.dataSeq >= dataSeq && row.geomSeq >= geomSeq {
		g.cacheMu.Unlock()
		if row.entry != nil {
			mgr.Touch(row.entry)
		}
		log.Debug("vgeom: munge cache hit", "data", d.Name())
		return row.geom, row.data, nil
	}
	if row != nil {
		delete(g.cache, key)
	}
	g.cacheMu.Unlock()

	if row != nil {
		log.Debug("vgeom: munge cache stale", "data", d.Name())
		if row.entry != nil {
			mgr.Remove(row.entry)
		}
	} else {
		log.Debug("vgeom: munge cache miss", "data", d.Name())
	}

	src := d.renderView()
	munged, err := m.MungeData(src)
	if err != nil {
		return nil, nil, fmt.Errorf("munge %q: %w", d.Name(), err)
	}
	outGeom, outData := m.MungeGeom(g.renderView(), munged)

	size := outData.TotalBytes()
	if outGeom != g {
		size += int64(outGeom.NumBytes())
	}
	row = &mungeRow{dataSeq: dataSeq, geomSeq: geomSeq, geom: outGeom, data: outData}
	row.entry = cache.NewEntry(g, key, size)

	g.cacheMu.Lock()
	if g.cache == nil {
		g.cache = make(map[mungeKey]*mungeRow)
	}
	prev := g.cache[key]
	g.cache[key] = row
	g.cacheMu.Unlock()

	if prev != nil && prev.entry != nil {
		mgr.Remove(prev.entry)
	}
	mgr.Record(row.entry)
	return outGeom, outData, nil
}

// EvictCacheEntry drops the munge row e refers to, if it is still current.
func (g *Geom) EvictCacheEntry(e *cache.Entry) {
	key, ok := e.Key().(mungeKey)
	if !ok {
		return
	}
	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()
	if row := g.cache[key]; row != nil && row.entry == e {
		delete(g.cache, key)
		Logger().Debug("vgeom: munge cache evicted", "data", key.data.Name(), "bytes", e.Size())
	}
}

// ClearCache drops every munge result and its ledger row.
func (g *Geom) ClearCache() {
	g.cacheMu.Lock()
	rows := g.cache
	g.cache = nil
	g.cacheMu.Unlock()

	for _, row := range rows {
		if row.entry != nil {
			g.opts.cache.Remove(row.entry)
		}
	}
}

// CacheSize returns the number of cached munge results.
func (g *Geom) CacheSize() int {
	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()
	return len(g.cache)
}
