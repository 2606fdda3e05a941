// Package backend provides a pluggable draw backend abstraction.
//
// A backend owns a vgeom.Munger and turns geoms into draw calls: it munges
// the geom (served from the geom's munge cache when fresh), skips geometry
// that fails validation, and reports the vertex input and each primitive
// draw to a DrawSink.
//
// # Backend Registration
//
// Backends are registered via init() functions and selected at runtime.
// The software backend is automatically registered on import:
//
//	import _ "github.com/gogpu/vgeom/backend"
//
// The GPU backend registers itself when its package is imported:
//
//	import _ "github.com/gogpu/vgeom/backend/webgpu"
//
// # Backend Selection
//
// Use InitDefault() to initialize the best backend that works on this
// machine, or Get() to request a specific backend by name:
//
//	b, err := backend.InitDefault()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
//	var rec backend.Recorder
//	drawn, err := b.DrawGeom(geom, &rec)
//
// # Available Backends
//
//   - "software": float columns, CPU animation, decomposed strips (always available)
//   - "webgpu": buffers uploaded through gogpu/wgpu hal
package backend
