package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-map/common"
)

// cameraControllerImpl is the single implementation of CameraController.
type cameraControllerImpl struct {
	mu *sync.Mutex

	focusX, focusY float64
	scale          float64
	pixelRatio     float64

	canvasWidth  int
	canvasHeight int

	maxPixelZoom float64
	flipY        bool

	// Timestamp of the previous wheel event in milliseconds, NaN before the first one
	lastWheel float64
}

// Compile-time interface compliance check
var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates a new camera controller framing the whole map on a 1024x768 canvas by default.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		mu:           &sync.Mutex{},
		focusX:       MapWidth / 2,
		focusY:       MapHeight / 2,
		pixelRatio:   1,
		canvasWidth:  1024,
		canvasHeight: 768,
		maxPixelZoom: DefaultMaxPixelZoom,
		lastWheel:    math.NaN(),
	}

	for _, option := range options {
		option(cc)
	}

	if cc.scale == 0 {
		cc.scale = cc.minScale()
	}
	cc.clamp()
	return cc
}

func (cc *cameraControllerImpl) State() State {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return State{
		FocusX:       cc.focusX,
		FocusY:       cc.focusY,
		Scale:        cc.scale,
		PixelRatio:   cc.pixelRatio,
		CanvasWidth:  cc.canvasWidth,
		CanvasHeight: cc.canvasHeight,
	}
}

func (cc *cameraControllerImpl) Restore(s State) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.focusX = s.FocusX
	cc.focusY = s.FocusY
	cc.scale = s.Scale
	cc.pixelRatio = 1
	if s.PixelRatio > 0 {
		cc.pixelRatio = s.PixelRatio
	}
	cc.resize(s.CanvasWidth, s.CanvasHeight)
}

func (cc *cameraControllerImpl) Focus() (x, y float64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.focusX, cc.focusY
}

func (cc *cameraControllerImpl) Scale() float64 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.scale
}

func (cc *cameraControllerImpl) MinScale() float64 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.minScale()
}

func (cc *cameraControllerImpl) MaxScale() float64 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.maxScale()
}

func (cc *cameraControllerImpl) PixelRatio() float64 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.pixelRatio
}

func (cc *cameraControllerImpl) SetPixelRatio(ratio float64) {
	if ratio <= 0 || math.IsNaN(ratio) {
		return
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.pixelRatio = ratio
}

func (cc *cameraControllerImpl) CanvasSize() (width, height int) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.canvasWidth, cc.canvasHeight
}

func (cc *cameraControllerImpl) MoveCamera(dx, dy float64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	k := cc.worldPerDevicePixel()
	cc.focusX -= dx * cc.pixelRatio * k
	cc.focusY -= dy * cc.pixelRatio * k
	cc.clamp()
}

func (cc *cameraControllerImpl) OnWheel(e WheelEvent, rect *Rect) bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	gap := e.TimeStamp - cc.lastWheel
	first := math.IsNaN(cc.lastWheel)
	cc.lastWheel = e.TimeStamp
	if first || gap > WheelTimeout {
		return false
	}

	factor := WheelFactor(e.DeltaY, gap)
	if factor == 1 {
		return false
	}

	x, y := e.ClientX, e.ClientY
	if rect != nil {
		x -= rect.Left
		y -= rect.Top
	}
	return cc.zoomAround(cc.scale*factor, x, y)
}

func (cc *cameraControllerImpl) ZoomIn() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.scale += cc.scale / (cc.maxScale() / zoomSteps)
	cc.clamp()
}

func (cc *cameraControllerImpl) ZoomOut() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.scale -= cc.scale / (cc.maxScale() / zoomSteps)
	cc.clamp()
}

func (cc *cameraControllerImpl) Resize(cssWidth, cssHeight float64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.resize(int(math.Round(cssWidth*cc.pixelRatio)), int(math.Round(cssHeight*cc.pixelRatio)))
}

func (cc *cameraControllerImpl) ResizeCanvas(width, height int) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.resize(width, height)
}

func (cc *cameraControllerImpl) MoveTo(x, y, offsetX float64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.focusX = x + offsetX*cc.pixelRatio*cc.worldPerDevicePixel()
	cc.focusY = y
	cc.clamp()
}

func (cc *cameraControllerImpl) SetScale(scale float64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.scale = scale
	cc.clamp()
}

func (cc *cameraControllerImpl) CanvasToWorld(x, y float64) (wx, wy float64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	wx, wy = cc.canvasToWorld(x, y)
	return common.WrapFloat(wx, MapWidth), wy
}

func (cc *cameraControllerImpl) Uniform(renderTerrain bool) DisplayUniform {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	u := DisplayUniform{
		Focus:      [2]float32{float32(cc.focusX), float32(cc.focusY)},
		Scale:      float32(cc.scale),
		MaxScale:   float32(cc.maxScale()),
		Resolution: [2]float32{float32(cc.canvasWidth), float32(cc.canvasHeight)},
	}
	if cc.flipY {
		u.FlipY = 1
	}
	if renderTerrain {
		u.RenderTerrain = 1
	}
	return u
}

// zoomAround changes the scale while keeping the world point under the given canvas position fixed.
// Caller must hold cc.mu.
func (cc *cameraControllerImpl) zoomAround(scale, x, y float64) bool {
	before := cc.scale
	wx, wy := cc.canvasToWorld(x, y)

	cc.scale = common.Clamp(scale, cc.minScale(), cc.maxScale())
	if cc.scale == before {
		return false
	}

	k := cc.worldPerDevicePixel()
	cc.focusX = wx - (x*cc.pixelRatio-float64(cc.canvasWidth)/2)*k
	cc.focusY = wy - (y*cc.pixelRatio-float64(cc.canvasHeight)/2)*k
	cc.clamp()
	return true
}

// canvasToWorld returns the unwrapped world position of a canvas position. Caller must hold cc.mu.
func (cc *cameraControllerImpl) canvasToWorld(x, y float64) (float64, float64) {
	k := cc.worldPerDevicePixel()
	wx := cc.focusX + (x*cc.pixelRatio-float64(cc.canvasWidth)/2)*k
	wy := cc.focusY + (y*cc.pixelRatio-float64(cc.canvasHeight)/2)*k
	return wx, wy
}

// Caller must hold cc.mu.
func (cc *cameraControllerImpl) resize(width, height int) {
	cc.canvasWidth = max(width, 1)
	cc.canvasHeight = max(height, 1)
	cc.clamp()
}

// worldPerDevicePixel returns the number of world pixels covered by one device pixel. Caller must hold cc.mu.
func (cc *cameraControllerImpl) worldPerDevicePixel() float64 {
	return MapWidth / (cc.scale * float64(max(cc.canvasWidth, 1)))
}

func (cc *cameraControllerImpl) aspect() float64 {
	return float64(max(cc.canvasWidth, 1)) / float64(max(cc.canvasHeight, 1))
}

func (cc *cameraControllerImpl) minScale() float64 {
	return MinScale(cc.aspect())
}

func (cc *cameraControllerImpl) maxScale() float64 {
	return MaxScale(cc.canvasWidth, cc.aspect(), cc.maxPixelZoom)
}

// clamp enforces the scale bounds, the vertical focus bounds and the horizontal wrap. Caller must hold cc.mu.
func (cc *cameraControllerImpl) clamp() {
	if math.IsNaN(cc.scale) {
		cc.scale = cc.minScale()
	}
	cc.scale = common.Clamp(cc.scale, cc.minScale(), cc.maxScale())

	visibleHeight := float64(cc.canvasHeight) * cc.worldPerDevicePixel()
	if visibleHeight >= MapHeight {
		cc.focusY = MapHeight / 2
	} else {
		cc.focusY = common.Clamp(cc.focusY, visibleHeight/2, MapHeight-visibleHeight/2)
	}

	if math.IsNaN(cc.focusX) || math.IsInf(cc.focusX, 0) {
		cc.focusX = MapWidth / 2
	}
	cc.focusX = common.WrapFloat(cc.focusX, MapWidth)
}
