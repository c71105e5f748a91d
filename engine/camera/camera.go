// Package camera implements the viewport controller of the world map: scale, focus point, pixel ratio,
// zoom bounds and the wrap-around aware clamp.
package camera

import "math"

const (
	// MapWidth is the logical width of the world map in world pixels.
	MapWidth = 5632
	// MapHeight is the logical height of the world map in world pixels.
	MapHeight = 2048
	// HemisphereWidth is the width of a single hemisphere tile.
	HemisphereWidth = MapWidth / 2

	// MapAspect is the fixed aspect ratio of the world map.
	MapAspect = float64(MapWidth) / float64(MapHeight)

	// WheelTimeout is the largest gap in milliseconds between two wheel events for the second to take effect.
	WheelTimeout = 300.0
	// wheelGapCap caps the gap used to scale the wheel zoom factor.
	wheelGapCap = 64.0
	// wheelDeltaCap caps the magnitude of a single wheel delta.
	wheelDeltaCap = 30.0
	// DefaultMaxPixelZoom is the number of device pixels a single world pixel may cover at maximum zoom.
	DefaultMaxPixelZoom = 8.0
	// zoomSteps is the divisor of maxScale used by ZoomIn and ZoomOut.
	zoomSteps = 3.0
)

// State is a complete snapshot of the viewport.
type State struct {
	// FocusX and FocusY are the world coordinates at the center of the canvas.
	FocusX, FocusY float64
	// Scale is the number of map widths that fit in the canvas width.
	Scale float64
	// PixelRatio is the number of device pixels per CSS pixel.
	PixelRatio float64
	// CanvasWidth and CanvasHeight are the backing store dimensions in device pixels.
	CanvasWidth, CanvasHeight int
}

// WheelEvent is a mouse wheel event in CSS pixels.
type WheelEvent struct {
	DeltaY  float64 `json:"deltaY"`
	ClientX float64 `json:"clientX"`
	ClientY float64 `json:"clientY"`
	// TimeStamp is the event time in milliseconds.
	TimeStamp float64 `json:"timeStamp"`
}

// PointerEvent is a pointer event in CSS pixels.
type PointerEvent struct {
	ClientX   float64 `json:"clientX"`
	ClientY   float64 `json:"clientY"`
	MovementX float64 `json:"movementX"`
	MovementY float64 `json:"movementY"`
}

// Rect is the bounding rectangle of the canvas element in CSS pixels.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MinScale returns the smallest scale at which the full map height still fits the canvas.
//
// Parameters:
//   - aspect: canvas width divided by canvas height
//
// Returns:
//   - float64: the minimum scale, never below 1
func MinScale(aspect float64) float64 {
	if aspect <= 0 || math.IsNaN(aspect) || math.IsInf(aspect, 0) {
		return 1
	}
	return math.Max(1, MapAspect/aspect)
}

// MaxScale returns the largest scale, at which one world pixel covers maxPixelZoom device pixels.
//
// Parameters:
//   - canvasWidth: the canvas backing width in device pixels
//   - aspect: canvas width divided by canvas height
//   - maxPixelZoom: device pixels per world pixel at maximum zoom
//
// Returns:
//   - float64: the maximum scale, never below MinScale(aspect)
func MaxScale(canvasWidth int, aspect, maxPixelZoom float64) float64 {
	minScale := MinScale(aspect)
	if canvasWidth <= 0 {
		return minScale
	}
	return math.Max(minScale, maxPixelZoom*MapWidth/float64(canvasWidth))
}

// WheelFactor returns the multiplicative zoom factor of a wheel event.
//
// Parameters:
//   - deltaY: the wheel delta, positive when scrolling down
//   - gapMs: milliseconds since the previous wheel event
//
// Returns:
//   - float64: the factor applied to scale, 1 when the event must be ignored
func WheelFactor(deltaY, gapMs float64) float64 {
	if gapMs > WheelTimeout || gapMs < 0 {
		return 1
	}
	d := math.Max(-wheelDeltaCap, math.Min(wheelDeltaCap, deltaY))
	return math.Pow(2, d*-0.01*math.Min(gapMs, wheelGapCap)/wheelGapCap)
}
