package webgpu

import (
	"fmt"
	"math"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/vgeom/backend"
)

// PassSink is a backend.DrawSink that records draws into a render pass.
// The caller sets the pipeline, whose vertex layouts must match the
// DrawState; PassSink binds the vertex and index buffers and draws.
type PassSink struct {
	Pass hal.RenderPassEncoder

	// Instances is the instance count of every draw; zero means one.
	Instances uint32

	indexBuf hal.Buffer
}

// NewPassSink returns a sink drawing into pass.
func NewPassSink(pass hal.RenderPassEncoder) *PassSink {
	return &PassSink{Pass: pass}
}

// BeginDrawPrimitives binds the geom's vertex buffers. It declines states
// without uploaded buffers.
func (s *PassSink) BeginDrawPrimitives(state *backend.DrawState) bool {
	if len(state.VertexBuffers) == 0 || len(state.VertexBuffers) != len(state.Layouts) {
		return false
	}
	for slot, buf := range state.VertexBuffers {
		s.Pass.SetVertexBuffer(uint32(slot), buf, 0)
	}
	s.indexBuf = nil
	return true
}

// Draw issues one draw, binding the index buffer when it changes.
func (s *PassSink) Draw(call backend.DrawCall) error {
	if call.First < 0 || call.Count < 0 || int64(call.First)+int64(call.Count) > math.MaxUint32 {
		return fmt.Errorf("webgpu: draw range %d+%d out of range", call.First, call.Count)
	}
	instances := max(s.Instances, 1)
	if !call.Indexed {
		s.Pass.Draw(uint32(call.Count), instances, uint32(call.First), 0)
		return nil
	}
	if call.IndexBuffer == nil {
		return fmt.Errorf("webgpu: indexed %s draw without index buffer", call.Primitive.Kind())
	}
	if call.IndexBuffer != s.indexBuf {
		s.Pass.SetIndexBuffer(call.IndexBuffer, call.IndexFormat, 0)
		s.indexBuf = call.IndexBuffer
	}
	s.Pass.DrawIndexed(uint32(call.Count), instances, uint32(call.First), 0, 0)
	return nil
}

// EndDrawPrimitives finishes the geom. The pass stays open.
func (s *PassSink) EndDrawPrimitives() {
	s.indexBuf = nil
}
