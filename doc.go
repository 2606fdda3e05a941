// Package vgeom is the vertex and geometry data model of a real-time
// renderer.
//
// # Overview
//
// Geometry is described by a Format: one or more interleaved arrays, each
// made of named Columns with a numeric type and a meaning (point, vector,
// colour, texture coordinate, morph delta). Formats are interned by a
// FormatRegistry, so two structurally equal formats are the same pointer.
//
// VertexData holds the rows of one Format. Primitive holds index runs that
// assemble those rows into points, lines, triangles or patches. Geom couples
// one VertexData with primitives of a single family.
//
// # Quick Start
//
//	import "github.com/gogpu/vgeom"
//
//	d := vgeom.NewVertexData("quad", vgeom.FormatV3C4(), vgeom.UsageStatic)
//	w := vgeom.NewVertexWriter(d, vgeom.NameVertex)
//	w.AddData3(0, 0, 0)
//	w.AddData3(1, 0, 0)
//	w.AddData3(1, 1, 0)
//
//	tri := vgeom.NewPrimitive(vgeom.Triangles)
//	tri.AddConsecutiveVertices(0, 3)
//	_ = tri.ClosePrimitive()
//
//	g := vgeom.NewGeom(d)
//	_ = g.AddPrimitive(tri)
//
// # Munging
//
// A renderer rarely consumes data in the format it was authored in. A Munger
// converts formats, data and geoms into the renderer's form; Geom.MungeGeom
// caches the result per (vertex data, munger) and returns it until either
// side changes. Every cached result is recorded in the cache manager, which
// keeps a byte budget across all geoms and evicts least recently used
// results.
//
// # Pipelining
//
// Objects keep their state in a pipeline.Cycler. The application writes the
// upstream stage; a render thread reads the downstream stage, which only
// changes when the scheduler calls Pipeline.Cycle. With the default
// single-stage pipeline both sides see the same state.
//
// # Sharing
//
// VertexData, arrays, tables and primitives have value semantics: copies
// share storage, and the first write to a shared piece copies it. A Modify
// method returns a private instance that may be written.
//
// # Errors
//
// Operations that can fail on valid input return errors wrapping the
// package's sentinels (ErrNoConversion, ErrPrimitiveArity, ...). Misuse, such
// as writing a registered format, is a precondition violation: it panics in
// builds tagged vgeom_debug and is logged and ignored otherwise.
//
// # Logging
//
// The package is silent by default. SetLogger installs a *slog.Logger for
// this package and its subpackages.
package vgeom

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)
