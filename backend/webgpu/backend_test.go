package webgpu

import (
	"fmt"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/vgeom"
	"github.com/gogpu/vgeom/backend"
)

func TestBackendRegistered(t *testing.T) {
	require.True(t, backend.IsRegistered(backend.BackendWebGPU))
	b := backend.Get(backend.BackendWebGPU)
	require.NotNil(t, b)
	assert.Equal(t, "webgpu", b.Name())
	assert.Equal(t, backend.BackendWebGPU, backend.Default().Name(), "webgpu is preferred over software")
}

func TestBackendBeforeInit(t *testing.T) {
	b := NewBackend()
	assert.Nil(t, b.Munger())
	assert.Nil(t, b.Renderer())
	_, err := b.DrawGeom(newFanGeom(t), &backend.Recorder{})
	assert.ErrorIs(t, err, ErrNotInitialized)
	b.Close()
}

func TestBackendInitNoop(t *testing.T) {
	b := NewBackend(WithBufferBudget(1 << 20))
	require.NoError(t, b.Init())
	defer b.Close()
	require.NoError(t, b.Init(), "Init is idempotent")

	require.NotNil(t, b.Renderer())
	_, ok := b.Munger().(*Munger)
	assert.True(t, ok)

	var rec backend.Recorder
	drawn, err := b.DrawGeom(newFanGeom(t), &rec)
	require.NoError(t, err)
	assert.True(t, drawn)
	assert.Len(t, rec.Calls(), 3)

	b.Close()
	assert.Nil(t, b.Renderer())
	_, err = b.DrawGeom(newFanGeom(t), &rec)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

// spyPass records the vertex, index and draw commands of a render pass.
type spyPass struct {
	hal.RenderPassEncoder
	calls []string
}

func (p *spyPass) record(format string, args ...any) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func (p *spyPass) SetVertexBuffer(slot uint32, _ hal.Buffer, offset uint64) {
	p.record("vertex %d %d", slot, offset)
}

func (p *spyPass) SetIndexBuffer(_ hal.Buffer, format gputypes.IndexFormat, offset uint64) {
	p.record("index %t %d", format == gputypes.IndexFormatUint32, offset)
}

func (p *spyPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.record("draw %d %d %d %d", vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *spyPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.record("indexed %d %d %d %d %d", indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func TestPassSinkDrawGeom(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	pass := &spyPass{}
	sink := NewPassSink(pass)

	drawn, err := r.DrawGeom(newIndexedGeom(t), sink)
	require.NoError(t, err)
	require.True(t, drawn)

	assert.Equal(t, []string{
		"vertex 0 0",
		"index false 0",
		"indexed 9 1 0 0 0",
		"draw 4 1 0 0",
		"draw 4 1 4 0",
		"index false 0",
		"indexed 3 1 0 0 0",
	}, pass.calls)
}

func TestPassSinkInstances(t *testing.T) {
	pass := &spyPass{}
	sink := &PassSink{Pass: pass, Instances: 5}
	require.True(t, sink.BeginDrawPrimitives(&backend.DrawState{
		Layouts:       make([]gputypes.VertexBufferLayout, 1),
		VertexBuffers: make([]hal.Buffer, 1),
	}))
	require.NoError(t, sink.Draw(backend.DrawCall{First: 2, Count: 3}))
	sink.EndDrawPrimitives()
	assert.Equal(t, []string{"vertex 0 0", "draw 3 5 2 0"}, pass.calls)
}

func TestPassSinkDeclines(t *testing.T) {
	sink := NewPassSink(&spyPass{})
	assert.False(t, sink.BeginDrawPrimitives(&backend.DrawState{}), "no vertex buffers")
	assert.False(t, sink.BeginDrawPrimitives(&backend.DrawState{
		VertexBuffers: make([]hal.Buffer, 2),
		Layouts:       make([]gputypes.VertexBufferLayout, 1),
	}), "buffers and layouts disagree")
}

func TestPassSinkRejectsBadCalls(t *testing.T) {
	sink := NewPassSink(&spyPass{})
	assert.Error(t, sink.Draw(backend.DrawCall{First: -1, Count: 3}))
	assert.Error(t, sink.Draw(backend.DrawCall{
		Primitive: vgeom.NewPrimitive(vgeom.Triangles),
		Indexed:   true,
		Count:     3,
	}), "indexed draws need an index buffer")
}
