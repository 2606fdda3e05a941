package webgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/vgeom"
	"github.com/gogpu/vgeom/backend"
)

// init registers the webgpu backend on package import.
func init() {
	backend.Register(backend.BackendWebGPU, func() backend.Backend {
		return NewBackend()
	})
}

// Backend is the GPU draw backend. It opens a device on the most capable
// hal backend registered with gogpu/wgpu and draws through a Renderer.
// It implements the backend.Backend interface.
//
// Backend is safe for concurrent use from multiple goroutines.
type Backend struct {
	mu   sync.RWMutex
	opts []RendererOption

	// GPU resources via hal
	instance hal.Instance
	device   hal.Device
	renderer *Renderer
	info     gputypes.AdapterInfo
}

// NewBackend creates a new webgpu backend.
// The backend must be initialized with Init() before use.
func NewBackend(opts ...RendererOption) *Backend {
	return &Backend{opts: opts}
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return backend.BackendWebGPU
}

// Init opens a device:
//   - selecting the best registered hal backend (Vulkan > Metal > DX12 > GL > noop)
//   - creating an instance and taking its first adapter
//   - opening a logical device and queue with default limits
//
// Returns an error if no backend offers an adapter or the device fails to open.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.renderer != nil {
		return nil
	}

	api, err := hal.SelectBestBackend()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoAdapter, err)
	}
	instance, err := api.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceCreationFailed, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return ErrNoAdapter
	}
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("%w: %w", ErrDeviceCreationFailed, err)
	}

	b.instance = instance
	b.device = open.Device
	b.info = adapters[0].Info
	b.renderer = NewRenderer(open.Device, open.Queue, b.opts...)
	vgeom.Logger().Info("webgpu: device opened", "adapter", b.info.Name, "api", api.Variant())
	return nil
}

// Close releases all backend resources.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.renderer != nil {
		b.renderer.Close()
		b.renderer = nil
	}
	if b.device != nil {
		b.device.Destroy()
		b.device = nil
	}
	if b.instance != nil {
		b.instance.Destroy()
		b.instance = nil
	}
}

// Munger returns the renderer's registered munger, or nil before Init.
func (b *Backend) Munger() vgeom.Munger {
	r := b.Renderer()
	if r == nil {
		return nil
	}
	return r.Munger()
}

// DrawGeom draws g through the backend's renderer.
func (b *Backend) DrawGeom(g *vgeom.Geom, sink backend.DrawSink) (bool, error) {
	r := b.Renderer()
	if r == nil {
		return false, ErrNotInitialized
	}
	return r.DrawGeom(g, sink)
}

// Renderer returns the renderer, or nil before Init.
func (b *Backend) Renderer() *Renderer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.renderer
}

// AdapterInfo describes the adapter the device was opened on.
func (b *Backend) AdapterInfo() gputypes.AdapterInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.info
}
