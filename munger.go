package vgeom

import (
	"slices"
	"sync"

	"github.com/gogpu/vgeom/cache"
)

// Munger converts vertex data and geoms into the form a renderer consumes.
// A backend supplies one Munger per distinct render configuration.
//
// A Munger must be a pure function of its inputs and its own immutable
// configuration: its results are cached per (vertex data, munger). Mungers
// are used as map keys, so implementations must be comparable; pointer
// types are the norm. Use RegisterMunger to obtain the canonical instance
// among equal mungers.
type Munger interface {
	// MungeFormat returns the registered format data of format f is
	// converted to.
	MungeFormat(f *Format) *Format

	// MungeData returns d converted for the renderer. It must not modify d.
	MungeData(d *VertexData) (*VertexData, error)

	// MungeGeom may replace the geom (for example with decomposed
	// primitives) and the munged data it is drawn with. It must not modify
	// its arguments.
	MungeGeom(g *Geom, d *VertexData) (*Geom, *VertexData)

	// Compare orders mungers; 0 means interchangeable.
	Compare(other Munger) int
}

var (
	mungersMu sync.Mutex
	mungers   []Munger
)

// RegisterMunger returns the registered munger that compares equal to m,
// registering m if there is none. Two equal mungers then share one munge
// cache row per vertex data.
func RegisterMunger(m Munger) Munger {
	mungersMu.Lock()
	defer mungersMu.Unlock()
	for _, r := range mungers {
		if r.Compare(m) == 0 {
			return r
		}
	}
	mungers = append(mungers, m)
	return m
}

// UnregisterMunger removes m from the munger registry.
func UnregisterMunger(m Munger) {
	mungersMu.Lock()
	defer mungersMu.Unlock()
	mungers = slices.DeleteFunc(mungers, func(r Munger) bool { return r == m })
}

// FormatMunger implements MungeFormat and MungeData for mungers whose data
// conversion is a pure format rewrite. It memoizes the rewrite per source
// format and forgets a row when that format is unregistered from its
// registry.
//
// Embed it in a backend munger and supply the rewrite function.
type FormatMunger struct {
	registry *FormatRegistry
	rewrite  func(*Format) *Format
	memo     *cache.ShardedCache[formatKey, *Format]
}

// formatKey identifies a registered format across registries; format ids
// are only unique within one.
type formatKey struct {
	registry uint64
	format   uint64
}

func keyOf(f *Format) formatKey {
	return formatKey{registry: f.registry().ID(), format: f.ID()}
}

func hashFormatKey(k formatKey) uint64 {
	return cache.Uint64Hasher(k.registry<<40 ^ k.format)
}

// NewFormatMunger creates a FormatMunger. rewrite receives a registered
// format and returns an unregistered or registered one; a nil registry means
// the default registry. Unregistered inputs and every rewrite result are
// interned in registry.
func NewFormatMunger(registry *FormatRegistry, rewrite func(*Format) *Format) *FormatMunger {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &FormatMunger{
		registry: registry,
		rewrite:  rewrite,
		memo:     cache.NewSharded[formatKey, *Format](cache.DefaultCapacity, hashFormatKey),
	}
}

// MungeFormat returns the rewritten, registered form of f. A format already
// registered elsewhere keeps its own registry.
func (m *FormatMunger) MungeFormat(f *Format) *Format {
	f = m.registry.Register(f)
	k := keyOf(f)
	if out, ok := m.memo.Get(k); ok {
		return out
	}
	out := m.registry.Register(m.rewrite(f))
	m.memo.Set(k, out)
	f.registry().AddObserver(f, m)
	return out
}

// MungeData converts d to the rewritten format.
func (m *FormatMunger) MungeData(d *VertexData) (*VertexData, error) {
	return d.ConvertTo(m.MungeFormat(d.Format()))
}

// FormatUnregistered drops the memoized rewrite of f.
func (m *FormatMunger) FormatUnregistered(f *Format) {
	m.memo.Delete(keyOf(f))
}

// Registry returns the registry rewritten formats are interned in.
func (m *FormatMunger) Registry() *FormatRegistry { return m.registry }

// NumFormats returns the number of memoized rewrites.
func (m *FormatMunger) NumFormats() int { return m.memo.Len() }
