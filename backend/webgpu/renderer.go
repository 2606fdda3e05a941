package webgpu

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/vgeom"
	"github.com/gogpu/vgeom/backend"
	"github.com/gogpu/vgeom/cache"
)

// DefaultBufferBudget is the GPU buffer budget of a renderer (64 MB).
const DefaultBufferBudget int64 = 64 * 1024 * 1024

// RendererOption configures a Renderer.
type RendererOption func(*rendererOptions)

type rendererOptions struct {
	munger  vgeom.Munger
	budget  int64
	shaders bool
}

// WithMunger sets the munger geoms are converted with. It is registered
// with vgeom.RegisterMunger. The default is NewMunger(nil,
// DefaultMungerConfig()).
func WithMunger(m vgeom.Munger) RendererOption {
	return func(o *rendererOptions) { o.munger = m }
}

// WithBufferBudget sets the byte budget of uploaded buffers. Buffers beyond
// it are released least recently used first; zero keeps nothing between
// draws.
func WithBufferBudget(bytes int64) RendererOption {
	return func(o *rendererOptions) { o.budget = bytes }
}

// WithVertexStubs makes DrawGeom compile a vertex stub per munged format
// and pass its shader module in the DrawState.
func WithVertexStubs(enabled bool) RendererOption {
	return func(o *rendererOptions) { o.shaders = enabled }
}

// gpuBuffer is one uploaded vertex array or index list.
type gpuBuffer struct {
	buf   hal.Buffer
	seq   vgeom.UpdateSeq
	size  uint64
	entry *cache.Entry
}

// stub is a compiled vertex stub and its shader module.
type stub struct {
	*VertexStub
	module hal.ShaderModule
}

// RendererStats is a snapshot of a renderer's buffer cache.
type RendererStats struct {
	Buffers int
	Bytes   int64
	Uploads uint64
	Retired int
	Shaders int
}

// Renderer uploads munged geoms into hal buffers and issues their draws.
//
// Uploaded buffers are cached per vertex array and per primitive until the
// source changes, and recorded in a cache.Manager of the renderer's own so
// GPU memory has its own budget. Buffers that leave the cache are retired,
// not destroyed: a draw recorded this frame may still read them. EndFrame
// destroys retired buffers.
//
// Renderer is safe for concurrent use.
type Renderer struct {
	device hal.Device
	queue  hal.Queue
	munger vgeom.Munger
	ledger *cache.Manager
	stubs  bool

	uploads atomic.Uint64

	mu      sync.Mutex
	buffers map[any]*gpuBuffer
	retired []hal.Buffer
	shaders map[*vgeom.Format]*stub
	closed  bool
}

// NewRenderer creates a renderer drawing with device and queue.
func NewRenderer(device hal.Device, queue hal.Queue, opts ...RendererOption) *Renderer {
	o := rendererOptions{budget: DefaultBufferBudget}
	for _, opt := range opts {
		opt(&o)
	}
	if o.munger == nil {
		o.munger = NewMunger(nil, DefaultMungerConfig())
	}
	r := &Renderer{
		device:  device,
		queue:   queue,
		munger:  vgeom.RegisterMunger(o.munger),
		ledger:  cache.NewManager(o.budget),
		stubs:   o.shaders,
		buffers: make(map[any]*gpuBuffer),
		shaders: make(map[*vgeom.Format]*stub),
	}
	vgeom.Logger().Info("webgpu: renderer created", "budget", o.budget, "stubs", o.shaders)
	return r
}

// Munger returns the registered munger the renderer draws with.
func (r *Renderer) Munger() vgeom.Munger { return r.munger }

// DrawGeom munges g, uploads its buffers and issues its draws on sink. It
// reports false without an error for geoms that fail validation, have
// nothing drawable, or that sink declines.
func (r *Renderer) DrawGeom(g *vgeom.Geom, sink backend.DrawSink) (bool, error) {
	mg, md, err := g.MungeGeom(r.munger, nil)
	if err != nil {
		return false, err
	}
	if !mg.CheckValidWith(md) {
		vgeom.Logger().Debug("webgpu: skipping invalid geom", "data", md.Name(), "rows", md.NumRows())
		return false, nil
	}

	state := &backend.DrawState{Data: md}
	if state.Layouts, err = VertexLayouts(md.Format()); err != nil {
		return false, err
	}
	for i := range md.NumArrays() {
		buf, err := r.vertexBuffer(md.Array(i))
		if err != nil {
			return false, err
		}
		state.VertexBuffers = append(state.VertexBuffers, buf)
	}
	if r.stubs {
		s, err := r.stub(md.Format())
		if err != nil {
			return false, err
		}
		state.Shader = s.module
	}

	if !sink.BeginDrawPrimitives(state) {
		return false, nil
	}
	defer sink.EndDrawPrimitives()
	n, err := backend.DrawPrimitives(sink, mg.Primitives(), r.indexBuffer)
	return n > 0, err
}

// VertexStub returns the compiled vertex stub of f, compiling and creating
// its shader module on first use.
func (r *Renderer) VertexStub(f *vgeom.Format) (*VertexStub, error) {
	s, err := r.stub(f)
	if err != nil {
		return nil, err
	}
	return s.VertexStub, nil
}

func (r *Renderer) stub(f *vgeom.Format) (*stub, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	s := r.shaders[f]
	r.mu.Unlock()
	if s != nil {
		return s, nil
	}

	vs, err := CompileVertexStub(f)
	if err != nil {
		return nil, err
	}
	module, err := r.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "vgeom vertex stub",
		Source: hal.ShaderSource{SPIRV: vs.SPIRV},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShaderCompilation, err)
	}
	s = &stub{VertexStub: vs, module: module}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev := r.shaders[f]; prev != nil {
		r.device.DestroyShaderModule(module)
		return prev, nil
	}
	r.shaders[f] = s
	return s, nil
}

func (r *Renderer) vertexBuffer(a *vgeom.VertexArray) (hal.Buffer, error) {
	return r.upload(a, a.Modified(), gputypes.BufferUsageVertex, "vgeom vertices", a.Bytes)
}

func (r *Renderer) indexBuffer(p *vgeom.Primitive) (hal.Buffer, gputypes.IndexFormat, error) {
	format := p.IndexFormat()
	buf, err := r.upload(p, p.Modified(), gputypes.BufferUsageIndex, "vgeom indices", func() []byte {
		return encodeIndices(p.Indices(), format)
	})
	return buf, format, err
}

// encodeIndices writes idx in the given index format.
func encodeIndices(idx []uint32, format gputypes.IndexFormat) []byte {
	if format == gputypes.IndexFormatUint16 {
		out := make([]byte, 0, 2*len(idx))
		for _, v := range idx {
			out = binary.LittleEndian.AppendUint16(out, uint16(v))
		}
		return out
	}
	out := make([]byte, 0, 4*len(idx))
	for _, v := range idx {
		out = binary.LittleEndian.AppendUint32(out, v)
	}
	return out
}

// upload returns the buffer cached for key if it was uploaded at seq, or
// uploads data() into a new buffer. Buffer sizes are padded to 4 bytes.
func (r *Renderer) upload(key any, seq vgeom.UpdateSeq, usage gputypes.BufferUsage, label string, data func() []byte) (hal.Buffer, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	prev := r.buffers[key]
	if prev != nil && prev.seq == seq {
		r.mu.Unlock()
		r.ledger.Touch(prev.entry)
		return prev.buf, nil
	}
	if prev != nil {
		delete(r.buffers, key)
		r.retired = append(r.retired, prev.buf)
	}
	r.mu.Unlock()
	if prev != nil {
		r.ledger.Remove(prev.entry)
	}

	payload := data()
	size := max(alignUp(len(payload), 4), 4)
	if len(payload) != size {
		padded := make([]byte, size)
		copy(padded, payload)
		payload = padded
	}
	buf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(size),
		Usage: usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create %d bytes: %w", ErrUploadFailed, size, err)
	}
	if err := r.queue.WriteBuffer(buf, 0, payload); err != nil {
		r.device.DestroyBuffer(buf)
		return nil, fmt.Errorf("%w: write %d bytes: %w", ErrUploadFailed, size, err)
	}
	r.uploads.Add(1)

	row := &gpuBuffer{buf: buf, seq: seq, size: uint64(size)}
	row.entry = cache.NewEntry(r, key, int64(size))

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.device.DestroyBuffer(buf)
		return nil, ErrClosed
	}
	lost := r.buffers[key]
	if lost != nil {
		r.retired = append(r.retired, lost.buf)
	}
	r.buffers[key] = row
	r.mu.Unlock()

	if lost != nil {
		r.ledger.Remove(lost.entry)
	}
	r.ledger.Record(row.entry)
	vgeom.Logger().Debug("webgpu: buffer uploaded", "label", label, "bytes", size)
	return buf, nil
}

// EvictCacheEntry retires the buffer e refers to, if it is still current.
func (r *Renderer) EvictCacheEntry(e *cache.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row := r.buffers[e.Key()]; row != nil && row.entry == e {
		delete(r.buffers, e.Key())
		r.retired = append(r.retired, row.buf)
		vgeom.Logger().Debug("webgpu: buffer evicted", "bytes", e.Size())
	}
}

// EndFrame destroys the buffers retired since the last call. Call it once
// the GPU has finished the frame that may still read them.
func (r *Renderer) EndFrame() {
	r.mu.Lock()
	retired := r.retired
	r.retired = nil
	r.mu.Unlock()
	for _, b := range retired {
		r.device.DestroyBuffer(b)
	}
}

// Stats returns a snapshot of the renderer's caches.
func (r *Renderer) Stats() RendererStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := RendererStats{
		Buffers: len(r.buffers),
		Uploads: r.uploads.Load(),
		Retired: len(r.retired),
		Shaders: len(r.shaders),
	}
	for _, b := range r.buffers {
		s.Bytes += int64(b.size)
	}
	return s
}

// Close destroys every buffer and shader module. The renderer cannot be
// used afterwards; the device is not destroyed.
func (r *Renderer) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	buffers, retired, shaders := r.buffers, r.retired, r.shaders
	r.buffers, r.retired, r.shaders = nil, nil, nil
	r.mu.Unlock()

	r.ledger.Flush()
	for _, b := range buffers {
		r.device.DestroyBuffer(b.buf)
	}
	for _, b := range retired {
		r.device.DestroyBuffer(b)
	}
	for _, s := range shaders {
		r.device.DestroyShaderModule(s.module)
	}
}
