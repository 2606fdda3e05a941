// Package webgpu provides a GPU draw backend using gogpu/wgpu.
//
// The backend opens a device on the best hal backend linked into the
// program (Vulkan, Metal, DX12, GL, or the noop backend in tests) and draws
// vgeom geoms from GPU buffers:
//
//	Geom -> Munger -> Renderer (upload vertex and index buffers) -> DrawSink
//
// Key components:
//
//   - Backend: entry point implementing backend.Backend
//   - Munger: rewrites formats into WebGPU vertex formats, 4-byte aligned,
//     with optional hardware animation columns, and decomposes fans
//   - Renderer: per-array and per-primitive buffer cache with its own
//     cache.Manager budget; evicted buffers are destroyed at EndFrame
//   - VertexLayouts: gputypes vertex buffer layouts for a munged format
//   - VertexStub: a WGSL vertex stage declaring every column, compiled to
//     SPIR-V with gogpu/naga
//   - PassSink: issues the draws into a hal.RenderPassEncoder
//
// # Usage
//
//	b := webgpu.NewBackend()
//	if err := b.Init(); err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
//	sink := webgpu.NewPassSink(pass) // pipeline already set on pass
//	if _, err := b.DrawGeom(geom, sink); err != nil {
//		log.Fatal(err)
//	}
//	b.Renderer().EndFrame() // once the GPU has finished the frame
//
// # Registration
//
// Importing the package registers the backend as backend.BackendWebGPU,
// ahead of the software backend in backend.InitDefault.
package webgpu
