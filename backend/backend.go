package backend

import (
	"errors"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/vgeom"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// Backend draws geoms for one rendering target.
//
// A backend supplies the Munger that converts geoms into its preferred form
// and issues the draw calls for the munged result. Backends are registered
// via Register() and selected via Get() or Default().
type Backend interface {
	// Name returns the backend identifier (e.g., "software", "webgpu").
	Name() string

	// Init initializes the backend.
	// This should be called before any drawing operations.
	Init() error

	// Close releases all backend resources.
	// The backend should not be used after Close is called.
	Close()

	// Munger returns the registered munger geoms are converted with.
	Munger() vgeom.Munger

	// DrawGeom munges g and issues its draw calls on sink. It reports false
	// without an error when g is skipped: invalid geometry, nothing to draw,
	// or a sink that declined the geom.
	DrawGeom(g *vgeom.Geom, sink DrawSink) (bool, error)
}

// DrawState is the vertex input shared by every draw call of one geom.
type DrawState struct {
	// Data is the munged vertex data.
	Data *vgeom.VertexData

	// Layouts describes one vertex buffer per array of Data's format.
	// Empty for backends without GPU buffers.
	Layouts []gputypes.VertexBufferLayout

	// VertexBuffers holds the uploaded arrays, parallel to Layouts.
	VertexBuffers []hal.Buffer

	// Shader is the vertex stage reading Layouts, if the backend built one.
	Shader hal.ShaderModule
}

// NumVertices returns the number of rows of the munged data.
func (s *DrawState) NumVertices() int {
	if s.Data == nil {
		return 0
	}
	return s.Data.NumRows()
}

// DrawCall is one draw of a primitive or of one run of a strip.
type DrawCall struct {
	// Primitive is the munged primitive being drawn.
	Primitive *vgeom.Primitive

	// Topology is the WebGPU topology of the primitive's kind.
	Topology gputypes.PrimitiveTopology

	// IndexBuffer is set for indexed primitives uploaded by a GPU backend.
	IndexBuffer hal.Buffer

	// IndexFormat is the element type of IndexBuffer.
	IndexFormat gputypes.IndexFormat

	// Indexed reports whether First counts indices rather than vertices.
	Indexed bool

	// First is the first index (indexed) or the first vertex.
	First int

	// Count is the number of indices or vertices.
	Count int
}

// DrawSink receives the draw calls of a geom.
//
// BeginDrawPrimitives is called once per geom; when it returns false the
// geom is skipped. Otherwise Draw is called for each primitive or strip run
// and EndDrawPrimitives closes the geom.
type DrawSink interface {
	BeginDrawPrimitives(state *DrawState) bool
	Draw(call DrawCall) error
	EndDrawPrimitives()
}

// RecordedGeom is what a Recorder saw for one geom.
type RecordedGeom struct {
	State *DrawState
	Calls []DrawCall
	Ended bool
}

// Recorder is a DrawSink that keeps every call it receives.
type Recorder struct {
	Geoms []RecordedGeom

	// Reject makes BeginDrawPrimitives decline every geom.
	Reject bool
}

// BeginDrawPrimitives starts a new recorded geom.
func (r *Recorder) BeginDrawPrimitives(state *DrawState) bool {
	if r.Reject {
		return false
	}
	r.Geoms = append(r.Geoms, RecordedGeom{State: state})
	return true
}

// Draw records call on the current geom.
func (r *Recorder) Draw(call DrawCall) error {
	if len(r.Geoms) == 0 {
		return ErrNotInitialized
	}
	g := &r.Geoms[len(r.Geoms)-1]
	g.Calls = append(g.Calls, call)
	return nil
}

// EndDrawPrimitives marks the current geom finished.
func (r *Recorder) EndDrawPrimitives() {
	if len(r.Geoms) > 0 {
		r.Geoms[len(r.Geoms)-1].Ended = true
	}
}

// Calls returns every recorded call in order.
func (r *Recorder) Calls() []DrawCall {
	var out []DrawCall
	for _, g := range r.Geoms {
		out = append(out, g.Calls...)
	}
	return out
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() { r.Geoms = nil }
