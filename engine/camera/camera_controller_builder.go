package camera

// CameraControllerOption is a functional option for configuring a CameraController.
type CameraControllerOption func(*cameraControllerImpl)

// WithPixelRatio sets the initial device pixel ratio.
//
// Parameters:
//   - ratio: device pixels per CSS pixel
//
// Returns:
//   - CameraControllerOption: functional option to set the pixel ratio
func WithPixelRatio(ratio float64) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		if ratio > 0 {
			cc.pixelRatio = ratio
		}
	}
}

// WithCanvasSize sets the initial backing store size.
//
// Parameters:
//   - width: canvas width in device pixels
//   - height: canvas height in device pixels
//
// Returns:
//   - CameraControllerOption: functional option to set the canvas size
func WithCanvasSize(width, height int) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.canvasWidth = width
		cc.canvasHeight = height
	}
}

// WithFocus sets the initial focus point.
//
// Parameters:
//   - x: world X coordinate
//   - y: world Y coordinate
//
// Returns:
//   - CameraControllerOption: functional option to set the focus point
func WithFocus(x, y float64) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.focusX = x
		cc.focusY = y
	}
}

// WithScale sets the initial scale. It is clamped once the controller is built.
//
// Parameters:
//   - scale: the initial scale
//
// Returns:
//   - CameraControllerOption: functional option to set the scale
func WithScale(scale float64) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.scale = scale
	}
}

// WithMaxPixelZoom sets how many device pixels a world pixel may cover at maximum zoom.
//
// Parameters:
//   - zoom: device pixels per world pixel
//
// Returns:
//   - CameraControllerOption: functional option to set the maximum pixel zoom
func WithMaxPixelZoom(zoom float64) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		if zoom > 0 {
			cc.maxPixelZoom = zoom
		}
	}
}

// WithFlipY flips the vertical axis of the display pass, for surfaces with a bottom-left origin.
//
// Parameters:
//   - flip: whether to flip the Y axis
//
// Returns:
//   - CameraControllerOption: functional option to set the flip flag
func WithFlipY(flip bool) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.flipY = flip
	}
}
