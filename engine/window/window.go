package window

import (
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/oxy-map/engine/camera"
)

// Window is the host window of the map. It reports input in CSS pixels, the way the engine's commands expect
// it, and hands its presentation target over as a Surface.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving the new width and height in device pixels
	SetResizeCallback(callback func(width, height int))

	// SetWheelCallback sets the callback for mouse wheel events.
	//
	// Parameters:
	//   - callback: function receiving the wheel event
	SetWheelCallback(callback func(e camera.WheelEvent))

	// SetPointerDownCallback sets the callback for primary button presses.
	//
	// Parameters:
	//   - callback: function receiving the pointer position
	SetPointerDownCallback(callback func(e camera.PointerEvent))

	// SetPointerUpCallback sets the callback for primary button releases.
	//
	// Parameters:
	//   - callback: function receiving the pointer position
	SetPointerUpCallback(callback func(e camera.PointerEvent))

	// SetPointerMoveCallback sets the callback for cursor movement.
	//
	// Parameters:
	//   - callback: function receiving the pointer position and movement since the previous event
	//   - pressed: whether the primary button is held
	SetPointerMoveCallback(callback func(e camera.PointerEvent, pressed bool))

	// SetKeyDownCallback sets the callback for key press events.
	//
	// Parameters:
	//   - callback: function receiving the GLFW key code
	SetKeyDownCallback(callback func(keyCode uint32))

	// Surface returns the transferable presentation target of the window. Every call returns the same
	// Surface, so it can be taken only once.
	//
	// Returns:
	//   - *Surface: the window surface, or nil if the window is not initialized
	Surface() *Surface

	// PixelRatio returns the number of device pixels per CSS pixel.
	//
	// Returns:
	//   - float64: the content scale of the window
	PixelRatio() float64

	// IsRunning returns true if the window is still active.
	//
	// Returns:
	//   - bool: true if window is running, false if closed
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if close operation fails
	Close() error

	// ProcessMessages runs the window message loop.
	// Blocks until the window is closed. Calls the update callback each iteration.
	ProcessMessages()

	// Width returns the current framebuffer width in device pixels.
	//
	// Returns:
	//   - int: width in pixels
	Width() int

	// Height returns the current framebuffer height in device pixels.
	//
	// Returns:
	//   - int: height in pixels
	Height() int
}

// engineWindow is the implementation of the Window interface.
// Holds window configuration, GLFW state, and event callbacks.
type engineWindow struct {
	title string

	// width and height are the framebuffer size in device pixels.
	width, height int

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any
	surface        *Surface

	onUpdate      func()
	onResize      func(width, height int)
	onWheel       func(e camera.WheelEvent)
	onPointerDown func(e camera.PointerEvent)
	onPointerUp   func(e camera.PointerEvent)
	onPointerMove func(e camera.PointerEvent, pressed bool)
	onKeyDown     func(keyCode uint32)

	pointer pointerTracker
	pressed bool
}

var _ Window = &engineWindow{}

// NewWindow creates a new Window with the specified options.
// Applies default values first, then each option in order.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the configured window
//   - error: error if the platform window cannot be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := newEngineWindow(options...)
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("failed to create platform window: %w", err)
	}
	return w, nil
}

// The canvas never grows past the whole map, and never shrinks below what the zoom and pick math needs.
const (
	minCanvasWidth  = 320
	minCanvasHeight = 200
	maxCanvasWidth  = camera.MapWidth
	maxCanvasHeight = camera.MapHeight
)

// newEngineWindow applies the defaults and options without touching the platform.
func newEngineWindow(options ...WindowBuilderOption) *engineWindow {
	w := &engineWindow{
		title:  "oxy-map",
		width:  1280,
		height: 720,
	}
	for _, opt := range options {
		opt(w)
	}
	w.width = min(max(w.width, minCanvasWidth), maxCanvasWidth)
	w.height = min(max(w.height, minCanvasHeight), maxCanvasHeight)
	return w
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetWheelCallback(callback func(e camera.WheelEvent)) {
	w.onWheel = callback
}

func (w *engineWindow) SetPointerDownCallback(callback func(e camera.PointerEvent)) {
	w.onPointerDown = callback
}

func (w *engineWindow) SetPointerUpCallback(callback func(e camera.PointerEvent)) {
	w.onPointerUp = callback
}

func (w *engineWindow) SetPointerMoveCallback(callback func(e camera.PointerEvent, pressed bool)) {
	w.onPointerMove = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) Surface() *Surface {
	if w.surface == nil && w.internalWindow != nil {
		w.surface = NewSurface(platformGetSurfaceDescriptor(w), w.width, w.height)
	}
	return w.surface
}

func (w *engineWindow) PixelRatio() float64 {
	return platformPixelRatio(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if succ := platformProcessMessages(w); !succ {
			break
		}

		if w.onUpdate != nil {
			w.onUpdate()
		}

		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}
