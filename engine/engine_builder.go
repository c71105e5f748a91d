package engine

import (
	"github.com/Carmen-Shannon/oxy-map/engine/camera"
	"github.com/Carmen-Shannon/oxy-map/engine/loader"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/resource"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, every completed frame is recorded and stats are logged once per second
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithRendererFactory replaces the function that creates the renderer during Init.
// The factory runs on the GPU worker.
//
// Parameters:
//   - factory: the renderer constructor
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRendererFactory(factory RendererFactory) EngineBuilderOption {
	return func(e *engine) {
		e.rendererFactory = factory
	}
}

// WithRendererOptions passes options to the default renderer factory. Ignored with WithRendererFactory.
//
// Parameters:
//   - options: the renderer options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRendererOptions(options ...renderer.RendererBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.rendererOptions = append(e.rendererOptions, options...)
	}
}

// WithLoader sets the asset loader. The engine does not close a loader it did not create.
//
// Parameters:
//   - l: the loader
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLoader(l loader.Loader) EngineBuilderOption {
	return func(e *engine) {
		e.loader = l
	}
}

// WithLoaderOptions configures the loader the engine creates when none is set with WithLoader.
//
// Parameters:
//   - options: the loader options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLoaderOptions(options ...loader.LoaderBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.loaderOptions = append(e.loaderOptions, options...)
	}
}

// WithCameraOptions configures the camera created by WithMap. They are applied after the pixel ratio and
// canvas size of the surface.
//
// Parameters:
//   - options: the camera options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCameraOptions(options ...camera.CameraControllerOption) EngineBuilderOption {
	return func(e *engine) {
		e.cameraOptions = append(e.cameraOptions, options...)
	}
}

// WithManagerOptions configures the resource manager created by Init.
//
// Parameters:
//   - options: the manager options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithManagerOptions(options ...resource.ManagerOption) EngineBuilderOption {
	return func(e *engine) {
		e.managerOptions = append(e.managerOptions, options...)
	}
}
