package vgeom

import (
	"github.com/gogpu/vgeom/cache"
	"github.com/gogpu/vgeom/pipeline"
)

// Option configures a VertexData, Primitive or Geom during creation.
// Without options the process-wide pipeline, cache manager and format
// registry are used.
//
// Example:
//
//	// Isolated instances for a test or a second renderer:
//	mgr := cache.NewManager(1 << 20)
//	g := vgeom.NewGeom(data, vgeom.WithCacheManager(mgr))
type Option func(*objectOptions)

// objectOptions holds the services an object is bound to.
type objectOptions struct {
	pipeline *pipeline.Pipeline
	cache    *cache.Manager
	registry *FormatRegistry
}

// defaultOptions returns the process-wide services.
func defaultOptions() objectOptions {
	return objectOptions{
		pipeline: pipeline.Default(),
		cache:    cache.Default(),
		registry: DefaultRegistry(),
	}
}

func applyOptions(opts []Option) objectOptions {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithPipeline binds the object's cycler to p.
func WithPipeline(p *pipeline.Pipeline) Option {
	return func(o *objectOptions) {
		if p != nil {
			o.pipeline = p
		}
	}
}

// WithCacheManager records the object's cache rows in m.
func WithCacheManager(m *cache.Manager) Option {
	return func(o *objectOptions) {
		if m != nil {
			o.cache = m
		}
	}
}

// WithRegistry registers the object's formats in r.
func WithRegistry(r *FormatRegistry) Option {
	return func(o *objectOptions) {
		if r != nil {
			o.registry = r
		}
	}
}
