package webgpu

import "errors"

// Package errors for the webgpu backend.
var (
	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("webgpu: backend not initialized")

	// ErrNoAdapter is returned when no hal backend offers an adapter.
	ErrNoAdapter = errors.New("webgpu: no GPU adapter available")

	// ErrDeviceCreationFailed is returned when GPU device creation fails.
	ErrDeviceCreationFailed = errors.New("webgpu: device creation failed")

	// ErrUnsupportedFormat is returned for a munged format some column of
	// which has no WebGPU vertex format.
	ErrUnsupportedFormat = errors.New("webgpu: format has no vertex layout")

	// ErrUploadFailed is returned when a buffer cannot be created or written.
	ErrUploadFailed = errors.New("webgpu: buffer upload failed")

	// ErrShaderCompilation is returned when the vertex stub does not compile.
	ErrShaderCompilation = errors.New("webgpu: vertex stub compilation failed")

	// ErrClosed is returned by a renderer after Close.
	ErrClosed = errors.New("webgpu: renderer closed")
)
