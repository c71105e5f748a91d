package camera

// CameraController owns the viewport of the world map.
// The map is a horizontally wrapping cylinder: the focus point wraps modulo MapWidth horizontally and is
// hard-clamped vertically so the viewport never leaves the map. Every mutating operation re-establishes
// MinScale <= Scale <= MaxScale and the focus clamp before returning.
type CameraController interface {
	// State returns a snapshot of the full viewport state.
	//
	// Returns:
	//   - State: the current focus, scale, pixel ratio and canvas size
	State() State

	// Restore replaces the viewport state with a snapshot. A snapshot taken by State comes back unchanged,
	// any other state is brought back within the scale and focus bounds.
	//
	// Parameters:
	//   - s: the snapshot to restore
	Restore(s State)

	// Focus returns the world coordinates at the center of the canvas.
	//
	// Returns:
	//   - x, y: world-space focus point
	Focus() (x, y float64)

	// Scale returns the current scale.
	//
	// Returns:
	//   - float64: the number of map widths that fit the canvas width
	Scale() float64

	// MinScale returns the minimum scale for the current canvas aspect.
	//
	// Returns:
	//   - float64: the minimum scale
	MinScale() float64

	// MaxScale returns the maximum scale for the current canvas size.
	//
	// Returns:
	//   - float64: the maximum scale
	MaxScale() float64

	// PixelRatio returns the device pixel ratio.
	//
	// Returns:
	//   - float64: device pixels per CSS pixel
	PixelRatio() float64

	// SetPixelRatio changes the device pixel ratio. It does not resize the canvas.
	//
	// Parameters:
	//   - ratio: device pixels per CSS pixel, must be positive
	SetPixelRatio(ratio float64)

	// CanvasSize returns the canvas backing store size.
	//
	// Returns:
	//   - width, height: size in device pixels
	CanvasSize() (width, height int)

	// MoveCamera translates the focus point by a pointer delta, then clamps.
	//
	// Parameters:
	//   - dx, dy: pointer movement in CSS pixels
	MoveCamera(dx, dy float64)

	// OnWheel zooms around the cursor. Events arriving more than WheelTimeout after the previous one,
	// and the very first event, only record their timestamp.
	//
	// Parameters:
	//   - e: the wheel event
	//   - rect: the canvas bounding rectangle, nil if client coordinates are already canvas-relative
	//
	// Returns:
	//   - bool: true if the scale changed
	OnWheel(e WheelEvent, rect *Rect) bool

	// ZoomIn increases the scale by one fixed step.
	ZoomIn()

	// ZoomOut decreases the scale by one fixed step.
	ZoomOut()

	// Resize updates the backing store from a CSS size multiplied by the pixel ratio.
	//
	// Parameters:
	//   - cssWidth, cssHeight: canvas size in CSS pixels
	Resize(cssWidth, cssHeight float64)

	// ResizeCanvas sets the backing store size directly in device pixels.
	//
	// Parameters:
	//   - width, height: canvas size in device pixels
	ResizeCanvas(width, height int)

	// MoveTo centers the viewport on a world position.
	//
	// Parameters:
	//   - x, y: world coordinates
	//   - offsetX: horizontal offset of the center in CSS pixels, used when part of the canvas is covered
	MoveTo(x, y, offsetX float64)

	// SetScale sets the scale directly, clamped to the bounds.
	//
	// Parameters:
	//   - scale: the requested scale
	SetScale(scale float64)

	// CanvasToWorld converts a canvas position to world coordinates. The x result is wrapped into [0, MapWidth).
	//
	// Parameters:
	//   - x, y: canvas-relative position in CSS pixels
	//
	// Returns:
	//   - wx, wy: world coordinates
	CanvasToWorld(x, y float64) (wx, wy float64)

	// Uniform returns the display pass parameters for the current viewport.
	//
	// Parameters:
	//   - renderTerrain: whether the terrain layers should be sampled
	//
	// Returns:
	//   - DisplayUniform: the uniform data for the display pass
	Uniform(renderTerrain bool) DisplayUniform
}
